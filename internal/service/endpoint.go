package service

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/nexapi/nexapi/internal/models"
	"github.com/nexapi/nexapi/internal/repository"
)

var allowedMethods = []string{
	http.MethodGet, http.MethodPost, http.MethodPut,
	http.MethodPatch, http.MethodDelete, http.MethodHead,
}

type EndpointInput struct {
	Path            string                `json:"path"`
	Method          string                `json:"method"`
	Description     string                `json:"description"`
	QueryParameters models.ParameterSpecs `json:"queryParameters"`
	BodyParameters  models.ParameterSpecs `json:"bodyParameters"`
	Headers         models.HeaderSpecs    `json:"headers"`
	BodyContentType string                `json:"bodyContentType"`
	AuthRequired    bool                  `json:"authRequired"`
}

type EndpointPatch struct {
	Path            *string                `json:"path"`
	Method          *string                `json:"method"`
	Description     *string                `json:"description"`
	QueryParameters *models.ParameterSpecs `json:"queryParameters"`
	BodyParameters  *models.ParameterSpecs `json:"bodyParameters"`
	Headers         *models.HeaderSpecs    `json:"headers"`
	BodyContentType *string                `json:"bodyContentType"`
	AuthRequired    *bool                  `json:"authRequired"`
}

type EndpointService struct {
	apis      *repository.APIRepository
	endpoints *repository.EndpointRepository
}

func NewEndpointService(apis *repository.APIRepository, endpoints *repository.EndpointRepository) *EndpointService {
	return &EndpointService{apis: apis, endpoints: endpoints}
}

func (s *EndpointService) Create(ctx context.Context, apiID, callerID uuid.UUID, input EndpointInput) (*models.Endpoint, error) {
	api, err := s.ownedAPI(ctx, apiID, callerID)
	if err != nil {
		return nil, err
	}

	if input.Path == "" || input.Method == "" {
		return nil, invalid("path and method are required")
	}

	method := strings.ToUpper(input.Method)
	if !contains(allowedMethods, method) {
		return nil, invalid("unsupported method: " + input.Method)
	}

	contentType := input.BodyContentType
	if contentType == "" {
		contentType = models.BodyContentJSON
	}
	if contentType != models.BodyContentJSON && contentType != models.BodyContentFormData {
		return nil, invalid("bodyContentType must be json or form-data")
	}

	endpoint := &models.Endpoint{
		APIID:           api.ID,
		Path:            input.Path,
		Method:          method,
		Description:     input.Description,
		QueryParameters: orEmptyParams(input.QueryParameters),
		BodyParameters:  orEmptyParams(input.BodyParameters),
		Headers:         orEmptyHeaders(input.Headers),
		BodyContentType: contentType,
		AuthRequired:    input.AuthRequired,
	}

	if err := s.endpoints.Create(ctx, endpoint); err != nil {
		return nil, err
	}

	return endpoint, nil
}

func (s *EndpointService) List(ctx context.Context, apiID uuid.UUID) ([]models.Endpoint, error) {
	return s.endpoints.FindByAPI(ctx, apiID)
}

func (s *EndpointService) Get(ctx context.Context, apiID, id uuid.UUID) (*models.Endpoint, error) {
	endpoint, err := s.endpoints.FindByID(ctx, apiID, id)
	if err != nil {
		return nil, err
	}
	if endpoint == nil {
		return nil, ErrNotFound
	}

	return endpoint, nil
}

func (s *EndpointService) Update(ctx context.Context, apiID, id, callerID uuid.UUID, patch EndpointPatch) (*models.Endpoint, error) {
	if _, err := s.ownedAPI(ctx, apiID, callerID); err != nil {
		return nil, err
	}

	endpoint, err := s.endpoints.FindByID(ctx, apiID, id)
	if err != nil {
		return nil, err
	}
	if endpoint == nil {
		return nil, ErrNotFound
	}

	updates := make(map[string]interface{})
	setField(updates, "description", patch.Description)
	setField(updates, "path", patch.Path)

	if patch.Method != nil {
		method := strings.ToUpper(*patch.Method)
		if !contains(allowedMethods, method) {
			return nil, invalid("unsupported method: " + *patch.Method)
		}
		updates["method"] = method
	}
	if patch.BodyContentType != nil {
		if *patch.BodyContentType != models.BodyContentJSON && *patch.BodyContentType != models.BodyContentFormData {
			return nil, invalid("bodyContentType must be json or form-data")
		}
		updates["body_content_type"] = *patch.BodyContentType
	}
	if patch.QueryParameters != nil {
		updates["query_parameters"] = orEmptyParams(*patch.QueryParameters)
	}
	if patch.BodyParameters != nil {
		updates["body_parameters"] = orEmptyParams(*patch.BodyParameters)
	}
	if patch.Headers != nil {
		updates["headers"] = orEmptyHeaders(*patch.Headers)
	}
	if patch.AuthRequired != nil {
		updates["auth_required"] = *patch.AuthRequired
	}

	if len(updates) == 0 {
		return nil, invalid("no fields provided to update")
	}

	if err := s.endpoints.Update(ctx, apiID, id, updates); err != nil {
		return nil, err
	}

	return s.endpoints.FindByID(ctx, apiID, id)
}

func (s *EndpointService) Delete(ctx context.Context, apiID, id, callerID uuid.UUID) error {
	if _, err := s.ownedAPI(ctx, apiID, callerID); err != nil {
		return err
	}

	endpoint, err := s.endpoints.FindByID(ctx, apiID, id)
	if err != nil {
		return err
	}
	if endpoint == nil {
		return ErrNotFound
	}

	return s.endpoints.Delete(ctx, apiID, id)
}

func (s *EndpointService) ownedAPI(ctx context.Context, apiID, callerID uuid.UUID) (*models.API, error) {
	api, err := s.apis.FindByID(ctx, apiID)
	if err != nil {
		return nil, err
	}
	if api == nil {
		return nil, ErrNotFound
	}
	if api.OwnerID != callerID {
		return nil, ErrForbidden
	}

	return api, nil
}

func orEmptyParams(specs models.ParameterSpecs) models.ParameterSpecs {
	if specs == nil {
		return models.ParameterSpecs{}
	}
	return specs
}

func orEmptyHeaders(specs models.HeaderSpecs) models.HeaderSpecs {
	if specs == nil {
		return models.HeaderSpecs{}
	}
	return specs
}
