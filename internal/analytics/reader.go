package analytics

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/nexapi/nexapi/internal/models"
	"github.com/nexapi/nexapi/internal/repository"
)

type DayTraffic struct {
	Date    string `json:"date"`
	Calls   int64  `json:"calls"`
	Errors  int64  `json:"errors"`
	Latency int64  `json:"latency"`
}

type TrafficReport struct {
	TotalCalls     int64        `json:"totalCalls"`
	ErrorRate      float64      `json:"errorRate"`
	AverageLatency int64        `json:"averageLatency"`
	Data           []DayTraffic `json:"data"`
}

type DayUsers struct {
	Date        string `json:"date"`
	ActiveUsers int    `json:"activeUsers"`
}

type UserReport struct {
	ActiveUsers int        `json:"activeUsers"`
	TotalUsers  int        `json:"totalUsers"`
	Data        []DayUsers `json:"data"`
}

// Reader computes read-side rollups over the endpoint log stream. Pure
// reads; recording is the aggregator's job.
type Reader struct {
	logs *repository.LogRepository
}

func NewReader(logs *repository.LogRepository) *Reader {
	return &Reader{logs: logs}
}

// Traffic buckets the API's logged calls by UTC calendar day over the
// trailing window. An empty window yields an all-zero report.
func (r *Reader) Traffic(ctx context.Context, apiID uuid.UUID, windowDays int) (*TrafficReport, error) {
	logs, err := r.fetch(ctx, apiID, windowDays)
	if err != nil {
		return nil, err
	}

	report := &TrafficReport{Data: []DayTraffic{}}
	if len(logs) == 0 {
		return report, nil
	}

	type dayStats struct {
		calls        int64
		errors       int64
		latencyTotal int64
	}

	days := make(map[string]*dayStats)
	var totalErrors, latencyTotal int64

	for _, entry := range logs {
		date := entry.CreatedAt.UTC().Format("2006-01-02")
		day := days[date]
		if day == nil {
			day = &dayStats{}
			days[date] = day
		}

		day.calls++
		day.latencyTotal += entry.Latency
		latencyTotal += entry.Latency

		if !entry.Success {
			day.errors++
			totalErrors++
		}
	}

	report.TotalCalls = int64(len(logs))
	report.ErrorRate = round2(float64(totalErrors) / float64(report.TotalCalls) * 100)
	report.AverageLatency = roundToInt(float64(latencyTotal) / float64(report.TotalCalls))

	for date, day := range days {
		report.Data = append(report.Data, DayTraffic{
			Date:    date,
			Calls:   day.calls,
			Errors:  day.errors,
			Latency: roundToInt(float64(day.latencyTotal) / float64(day.calls)),
		})
	}

	sort.Slice(report.Data, func(i, j int) bool {
		return report.Data[i].Date < report.Data[j].Date
	})

	return report, nil
}

// Users reports distinct callers over the window plus those active in
// the preceding 24 hours. Anonymous calls carry no user and are skipped.
func (r *Reader) Users(ctx context.Context, apiID uuid.UUID, windowDays int) (*UserReport, error) {
	logs, err := r.fetch(ctx, apiID, windowDays)
	if err != nil {
		return nil, err
	}

	report := &UserReport{Data: []DayUsers{}}
	if len(logs) == 0 {
		return report, nil
	}

	activeSince := time.Now().UTC().Add(-24 * time.Hour)

	total := make(map[uuid.UUID]struct{})
	active := make(map[uuid.UUID]struct{})
	days := make(map[string]map[uuid.UUID]struct{})

	for _, entry := range logs {
		if entry.UserID == nil {
			continue
		}

		total[*entry.UserID] = struct{}{}
		if entry.CreatedAt.After(activeSince) {
			active[*entry.UserID] = struct{}{}
		}

		date := entry.CreatedAt.UTC().Format("2006-01-02")
		if days[date] == nil {
			days[date] = make(map[uuid.UUID]struct{})
		}
		days[date][*entry.UserID] = struct{}{}
	}

	report.TotalUsers = len(total)
	report.ActiveUsers = len(active)

	for date, users := range days {
		report.Data = append(report.Data, DayUsers{Date: date, ActiveUsers: len(users)})
	}

	sort.Slice(report.Data, func(i, j int) bool {
		return report.Data[i].Date < report.Data[j].Date
	})

	return report, nil
}

// Summary returns the lifetime rollup maintained by the aggregator. An
// API with no recorded calls yields a zero-valued row.
func (r *Reader) Summary(ctx context.Context, apiID uuid.UUID) (*models.APILog, error) {
	apiLog, err := r.logs.GetAPILog(ctx, apiID)
	if err != nil {
		return nil, err
	}
	if apiLog == nil {
		return &models.APILog{APIID: apiID}, nil
	}

	return apiLog, nil
}

// RecentCalls lists the newest log entries for one endpoint.
func (r *Reader) RecentCalls(ctx context.Context, endpointID uuid.UUID, limit int) ([]models.EndpointLog, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}

	return r.logs.FindForEndpoint(ctx, endpointID, limit)
}

func (r *Reader) fetch(ctx context.Context, apiID uuid.UUID, windowDays int) ([]models.EndpointLog, error) {
	if windowDays <= 0 {
		windowDays = 7
	}

	since := time.Now().UTC().AddDate(0, 0, -windowDays)
	return r.logs.FindForAPISince(ctx, apiID, since)
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func roundToInt(value float64) int64 {
	return int64(math.Round(value))
}
