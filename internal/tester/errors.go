package tester

import (
	"errors"
	"fmt"
)

var (
	// Endpoint or owning API does not exist.
	ErrNotFound = errors.New("endpoint not found")

	// Caller must authenticate (missing x-api-key, or endpoint is
	// restricted to signed-in users).
	ErrAuthRequired = errors.New("authentication required")

	// Presented key does not match an active key for (api, caller).
	ErrInvalidCredential = errors.New("invalid or inactive api key")

	// Base URL + path could not be parsed into a target URL.
	ErrUnparsableURL = errors.New("unparsable target url")
)

// Path template contained a :name placeholder with no value in either
// the query or body parameter bundle.
type MissingPathParamError struct {
	Name string
}

func (e *MissingPathParamError) Error() string {
	return fmt.Sprintf("missing path parameter: %s", e.Name)
}

// A supplied query value is not in the parameter's declared enum set.
type InvalidEnumValueError struct {
	Name  string
	Value string
}

func (e *InvalidEnumValueError) Error() string {
	return fmt.Sprintf("invalid value for enum parameter %s: %s", e.Name, e.Value)
}

// IsBuildError reports whether err is a synchronous request-construction
// failure, i.e. a client fault raised before any outbound attempt.
func IsBuildError(err error) bool {
	var missing *MissingPathParamError
	var invalidEnum *InvalidEnumValueError

	return errors.As(err, &missing) ||
		errors.As(err, &invalidEnum) ||
		errors.Is(err, ErrUnparsableURL)
}
