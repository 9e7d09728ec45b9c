package tester

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/nexapi/nexapi/internal/crypto"
	"github.com/nexapi/nexapi/internal/models"
)

// Caller-supplied parameters for one test call, as posted to the test
// route.
type ParameterBundle struct {
	QueryParams map[string]interface{} `json:"queryParams"`
	BodyParams  map[string]interface{} `json:"bodyParams"`
}

type RequestBundle struct {
	Parameters ParameterBundle   `json:"parameters"`
	Headers    map[string]string `json:"headers"`
}

// Fully resolved outbound request, ready for dispatch.
type BuiltRequest struct {
	URL    string
	Method string
	Header http.Header
	Body   []byte
}

var pathParamPattern = regexp.MustCompile(`:(\w+)`)

// Fallback base for malformed or relative base URLs; keeps the builder
// total instead of crashing on bad registrations.
const placeholderBase = "http://localhost"

// Builder assembles the outbound request from an endpoint definition and
// a caller bundle. All failures are validation errors raised before any
// network activity.
type Builder struct {
	codec *crypto.Codec
}

func NewBuilder(codec *crypto.Codec) *Builder {
	return &Builder{codec: codec}
}

func (b *Builder) Build(api *models.API, endpoint *models.Endpoint, bundle RequestBundle) (*BuiltRequest, error) {
	queryParams := cloneParams(bundle.Parameters.QueryParams)
	bodyParams := cloneParams(bundle.Parameters.BodyParams)

	// Resolve :name placeholders from query params first, then body
	// params. Consumed values are removed so they are not re-appended
	// to the query string or body. Only the endpoint path is scanned;
	// a port in the base URL must not read as a placeholder.
	path := endpoint.Path
	for _, match := range pathParamPattern.FindAllStringSubmatch(path, -1) {
		name := match[1]

		value, ok := queryParams[name]
		if !ok {
			value, ok = bodyParams[name]
		}
		if !ok {
			return nil, &MissingPathParamError{Name: name}
		}

		path = strings.Replace(path, match[0], url.PathEscape(paramString(value)), 1)
		delete(queryParams, name)
		delete(bodyParams, name)
	}

	// Base and path joined with exactly one slash
	raw := strings.TrimRight(api.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")

	target, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnparsableURL, raw)
	}
	if !target.IsAbs() {
		base, _ := url.Parse(placeholderBase)
		target = base.ResolveReference(target)
	}

	// Endpoint-declared static headers first, caller headers override
	header := http.Header{}
	for _, declared := range endpoint.Headers {
		header.Set(declared.Name, declared.Value)
	}
	for name, value := range bundle.Headers {
		header.Set(name, value)
	}

	query := target.Query()

	// Inject the provider credential, decrypted only at this moment
	if api.ProviderAuthType == models.ProviderAuthAPIKey &&
		api.ProviderAuthLocation != "" && api.ProviderAuthField != "" && api.ProviderAuthKey != "" {

		providerKey, err := b.codec.Decrypt(api.ProviderAuthKey)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt provider credential: %w", err)
		}

		switch api.ProviderAuthLocation {
		case models.AuthLocationHeader:
			header.Set(api.ProviderAuthField, providerKey)
		case models.AuthLocationQuery:
			query.Set(api.ProviderAuthField, providerKey)
		}
	}

	// Remaining query params, enum-validated against the declared schema
	for name, value := range queryParams {
		str := paramString(value)

		if spec := endpoint.QueryParameters.Find(name); spec != nil && spec.Type == "enum" && len(spec.EnumValues) > 0 {
			if !slices.Contains(spec.EnumValues, str) {
				return nil, &InvalidEnumValueError{Name: name, Value: str}
			}
		}

		query.Set(name, str)
	}
	target.RawQuery = query.Encode()

	method := strings.ToUpper(endpoint.Method)

	var body []byte
	if method != http.MethodGet {
		body, err = encodeBody(endpoint.BodyContentType, bodyParams, header)
		if err != nil {
			return nil, err
		}
	}

	return &BuiltRequest{
		URL:    target.String(),
		Method: method,
		Header: header,
		Body:   body,
	}, nil
}

func encodeBody(contentType string, bodyParams map[string]interface{}, header http.Header) ([]byte, error) {
	if contentType == models.BodyContentFormData {
		buf := &bytes.Buffer{}
		writer := multipart.NewWriter(buf)

		for name, value := range bodyParams {
			if err := writer.WriteField(name, paramString(value)); err != nil {
				return nil, fmt.Errorf("failed to encode form field %s: %w", name, err)
			}
		}
		if err := writer.Close(); err != nil {
			return nil, err
		}

		header.Set("Content-Type", writer.FormDataContentType())
		return buf.Bytes(), nil
	}

	body, err := json.Marshal(bodyParams)
	if err != nil {
		return nil, fmt.Errorf("failed to encode json body: %w", err)
	}

	// Never override a caller-supplied Content-Type
	if header.Get("Content-Type") == "" {
		header.Set("Content-Type", "application/json")
	}

	return body, nil
}

func cloneParams(params map[string]interface{}) map[string]interface{} {
	cloned := make(map[string]interface{}, len(params))
	for name, value := range params {
		cloned[name] = value
	}
	return cloned
}

func paramString(value interface{}) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", value)
}
