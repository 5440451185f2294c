package config

import (
	"fmt"
	"strings"

	"github.com/daffinity/serverless-offline/internal/common/cnst"
)

// Location represents a configuration location
type Location struct {
	Function string
	Endpoint string
}

// ValidationError represents a project validation error
type ValidationError struct {
	Message   string
	Locations []Location
	Err       error
}

func (e *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)
	sb.WriteString("\n\n")
	for _, loc := range e.Locations {
		sb.WriteString("--> ")
		sb.WriteString(loc.Function)
		if loc.Endpoint != "" {
			sb.WriteString(" ")
			sb.WriteString(loc.Endpoint)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ValidationErrors aggregates every problem found in a project
type ValidationErrors []*ValidationError

func (es ValidationErrors) Error() string {
	var sb strings.Builder
	for i, err := range es {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Is lets errors.Is match any of the aggregated sentinels
func (es ValidationErrors) Is(target error) bool {
	for _, err := range es {
		if err.Err == target {
			return true
		}
	}
	return false
}

// ValidateProject validates a project definition
func ValidateProject(cfg *ProjectConfig) error {
	var errors ValidationErrors

	if cfg.Stages.Len() == 0 {
		errors = append(errors, &ValidationError{
			Message: "no stage found: declare at least one stage",
			Err:     cnst.ErrNoStage,
		})
	}

	// Check for duplicate function names
	functionNames := make(map[string][]Location)
	for _, fn := range cfg.Functions {
		functionNames[fn.Name] = append(functionNames[fn.Name], Location{Function: fn.Name})
	}
	for name, locations := range functionNames {
		if len(locations) > 1 {
			errors = append(errors, &ValidationError{
				Message:   fmt.Sprintf("duplicate function name %q", name),
				Locations: locations,
				Err:       cnst.ErrDuplicateFunctionName,
			})
		}
	}

	routes := make(map[string][]Location)
	for _, fn := range cfg.Functions {
		for _, ep := range fn.Endpoints {
			loc := Location{Function: fn.Name, Endpoint: strings.ToUpper(ep.Method) + " " + ep.Path}

			if ep.Method == "" || ep.Path == "" {
				errors = append(errors, &ValidationError{
					Message:   "endpoint requires both method and path",
					Locations: []Location{loc},
				})
				continue
			}
			routes[loc.Endpoint] = append(routes[loc.Endpoint], loc)

			if _, ok := ep.Responses.Get(cnst.DefaultResponseName); !ok {
				errors = append(errors, &ValidationError{
					Message:   fmt.Sprintf("endpoint has no %q response", cnst.DefaultResponseName),
					Locations: []Location{loc},
					Err:       cnst.ErrNoDefaultResponse,
				})
			}
		}
	}
	for route, locations := range routes {
		if len(locations) > 1 {
			errors = append(errors, &ValidationError{
				Message:   fmt.Sprintf("duplicate route %q", route),
				Locations: locations,
				Err:       cnst.ErrDuplicateRoute,
			})
		}
	}

	if len(errors) > 0 {
		return errors
	}
	return nil
}
