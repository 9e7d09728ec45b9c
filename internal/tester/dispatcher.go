package tester

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nexapi/nexapi/internal/models"
	"github.com/nexapi/nexapi/internal/repository"
	"github.com/nexapi/nexapi/internal/stats"
	"github.com/sirupsen/logrus"
)

// Upstream bodies larger than this are truncated before parsing.
const maxResponseBytes = 10 << 20

// Caller-visible outcome of one test call.
type TestResult struct {
	Success bool              `json:"success"`
	Status  int               `json:"status"`
	Data    interface{}       `json:"data"`
	Headers map[string]string `json:"headers"`
}

// Resolves the active consumer key for an (api, user) pair. Implemented
// by the API key service (redis-cached) and by the raw repository.
type KeyValidator interface {
	FindActive(ctx context.Context, apiID, userID uuid.UUID) (*models.APIKey, error)
}

// Dispatcher runs one endpoint test end to end: authorization, request
// construction, the outbound call, outcome classification and stats
// recording.
type Dispatcher struct {
	apis      *repository.APIRepository
	endpoints *repository.EndpointRepository
	keys      KeyValidator
	builder   *Builder
	stats     *stats.Aggregator
	client    *http.Client
	logger    *logrus.Logger
}

func NewDispatcher(
	apis *repository.APIRepository,
	endpoints *repository.EndpointRepository,
	keys KeyValidator,
	builder *Builder,
	aggregator *stats.Aggregator,
	timeout time.Duration,
	logger *logrus.Logger,
) *Dispatcher {
	return &Dispatcher{
		apis:      apis,
		endpoints: endpoints,
		keys:      keys,
		builder:   builder,
		stats:     aggregator,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

// Test executes a live call against the endpoint's upstream. Builder and
// authorization failures return an error and leave no log entry; once
// the outbound attempt is made, the outcome is always recorded before
// returning.
func (d *Dispatcher) Test(ctx context.Context, apiID, endpointID uuid.UUID, callerID *uuid.UUID, presentedKey string, bundle RequestBundle) (*TestResult, error) {
	endpoint, err := d.endpoints.FindByID(ctx, apiID, endpointID)
	if err != nil {
		return nil, err
	}
	if endpoint == nil {
		return nil, ErrNotFound
	}

	api, err := d.apis.FindByID(ctx, endpoint.APIID)
	if err != nil {
		return nil, err
	}
	if api == nil {
		return nil, ErrNotFound
	}

	if err := d.authorize(ctx, api, endpoint, callerID, presentedKey); err != nil {
		return nil, err
	}

	built, err := d.builder.Build(api, endpoint, bundle)
	if err != nil {
		return nil, err
	}

	result, success, latency, errorMessage := d.perform(ctx, built)

	// Synchronous but best effort: must finish before the response goes
	// out, must never fail the request. Detached from the caller's
	// context so a disconnect cannot drop the record of a call that ran.
	d.stats.Record(context.WithoutCancel(ctx), endpoint.ID, api.ID, callerID, success, latency, errorMessage)

	return result, nil
}

// Single authorization step: pure function of API policy, caller
// identity and presented credential.
func (d *Dispatcher) authorize(ctx context.Context, api *models.API, endpoint *models.Endpoint, callerID *uuid.UUID, presentedKey string) error {
	if endpoint.AuthRequired && callerID == nil {
		return ErrAuthRequired
	}

	if !api.RequiresAPIKey {
		return nil
	}

	// The owner always tests without a key
	if callerID != nil && *callerID == api.OwnerID {
		return nil
	}

	if presentedKey == "" {
		return ErrAuthRequired
	}
	if callerID == nil {
		// Keys are issued per (api, user); an anonymous caller cannot
		// hold one.
		return ErrInvalidCredential
	}

	apiKey, err := d.keys.FindActive(ctx, api.ID, *callerID)
	if err != nil {
		return err
	}
	if apiKey == nil || subtle.ConstantTimeCompare([]byte(apiKey.Key), []byte(presentedKey)) != 1 {
		return ErrInvalidCredential
	}

	return nil
}

// perform runs the outbound call and classifies the outcome. Latency
// covers the call only, not request construction.
func (d *Dispatcher) perform(ctx context.Context, built *BuiltRequest) (*TestResult, bool, int64, string) {
	var bodyReader io.Reader
	if built.Body != nil {
		bodyReader = bytes.NewReader(built.Body)
	}

	req, err := http.NewRequestWithContext(ctx, built.Method, built.URL, bodyReader)
	if err != nil {
		message := fmt.Sprintf("failed to construct request: %v", err)
		return failedResult(message), false, 0, message
	}
	req.Header = built.Header

	start := time.Now()
	resp, err := d.client.Do(req)
	latency := time.Since(start).Milliseconds()

	if err != nil {
		// Network failure or timeout; treated identically
		message := fmt.Sprintf("failed to reach upstream: %v", err)
		d.logger.WithField("url", built.URL).WithError(err).Debug("test call failed")
		return failedResult(message), false, latency, message
	}
	defer resp.Body.Close()

	rawBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if readErr != nil {
		rawBody = nil
	}

	var data interface{}
	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rawBody, &data); err != nil {
			data = string(rawBody)
		}
	} else {
		data = string(rawBody)
	}

	headers := make(map[string]string, len(resp.Header))
	for name := range resp.Header {
		headers[strings.ToLower(name)] = resp.Header.Get(name)
	}

	success := resp.StatusCode >= 200 && resp.StatusCode < 300

	errorMessage := ""
	if !success {
		errorMessage = fmt.Sprintf("upstream returned status %d", resp.StatusCode)
	}

	return &TestResult{
		Success: success,
		Status:  resp.StatusCode,
		Data:    data,
		Headers: headers,
	}, success, latency, errorMessage
}

func failedResult(message string) *TestResult {
	return &TestResult{
		Success: false,
		Status:  http.StatusInternalServerError,
		Data:    map[string]interface{}{"error": "failed to fetch endpoint", "details": message},
		Headers: map[string]string{},
	}
}
