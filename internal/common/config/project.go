package config

import (
	"time"

	"github.com/daffinity/serverless-offline/internal/common/cnst"
)

type (
	// ProjectConfig describes the functions and endpoints being emulated
	ProjectConfig struct {
		Name      string                  `json:"name" yaml:"name"`
		Stages    OrderedMap[StageConfig] `json:"stages" yaml:"stages"`
		Context   ContextConfig           `json:"context,omitempty" yaml:"context,omitempty"`
		Functions []FunctionConfig        `json:"functions" yaml:"functions"`
	}

	// StageConfig holds the stage variables and the regions of a stage
	StageConfig struct {
		Vars    map[string]string          `json:"vars,omitempty" yaml:"vars,omitempty"`
		Regions OrderedMap[map[string]any] `json:"regions,omitempty" yaml:"regions,omitempty"`
	}

	// ContextConfig overrides the identity fields exposed to mapping templates
	ContextConfig struct {
		APIID      string           `json:"apiId,omitempty" yaml:"apiId,omitempty"`
		ResourceID string           `json:"resourceId,omitempty" yaml:"resourceId,omitempty"`
		Authorizer AuthorizerConfig `json:"authorizer,omitempty" yaml:"authorizer,omitempty"`
		Identity   IdentityConfig   `json:"identity,omitempty" yaml:"identity,omitempty"`
	}

	AuthorizerConfig struct {
		PrincipalID string `json:"principalId,omitempty" yaml:"principalId,omitempty"`
	}

	IdentityConfig struct {
		AccountID                     string `json:"accountId,omitempty" yaml:"accountId,omitempty"`
		APIKey                        string `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
		Caller                        string `json:"caller,omitempty" yaml:"caller,omitempty"`
		CognitoAuthenticationProvider string `json:"cognitoAuthenticationProvider,omitempty" yaml:"cognitoAuthenticationProvider,omitempty"`
		CognitoAuthenticationType     string `json:"cognitoAuthenticationType,omitempty" yaml:"cognitoAuthenticationType,omitempty"`
		User                          string `json:"user,omitempty" yaml:"user,omitempty"`
		UserArn                       string `json:"userArn,omitempty" yaml:"userArn,omitempty"`
	}

	FunctionConfig struct {
		Name        string           `json:"name" yaml:"name"`
		Runtime     cnst.Runtime     `json:"runtime" yaml:"runtime"`
		Handler     string           `json:"handler" yaml:"handler"`                     // e.g. users/handler.create
		Timeout     int              `json:"timeout,omitempty" yaml:"timeout,omitempty"` // seconds
		Environment any              `json:"environment,omitempty" yaml:"environment,omitempty"`
		Endpoints   []EndpointConfig `json:"endpoints,omitempty" yaml:"endpoints,omitempty"`
	}

	EndpointConfig struct {
		Path             string                     `json:"path" yaml:"path"`
		Method           string                     `json:"method" yaml:"method"`
		RequestTemplates map[string]any             `json:"requestTemplates,omitempty" yaml:"requestTemplates,omitempty"`
		Responses        OrderedMap[ResponseConfig] `json:"responses" yaml:"responses"`
	}

	// ResponseConfig is one response variant of an endpoint
	ResponseConfig struct {
		StatusCode         int                `json:"statusCode,omitempty" yaml:"statusCode,omitempty"`
		SelectionPattern   string             `json:"selectionPattern,omitempty" yaml:"selectionPattern,omitempty"`
		ResponseParameters OrderedMap[string] `json:"responseParameters,omitempty" yaml:"responseParameters,omitempty"`
		ResponseTemplates  OrderedMap[any]    `json:"responseTemplates,omitempty" yaml:"responseTemplates,omitempty"`
	}
)

// DefaultStage returns the first declared stage
func (p *ProjectConfig) DefaultStage() string {
	name, _, _ := p.Stages.First()
	return name
}

// DefaultRegion returns the first declared region of the stage
func (s StageConfig) DefaultRegion() string {
	name, _, _ := s.Regions.First()
	return name
}

// TimeoutDuration returns the declared timeout, defaulting to six seconds
func (f *FunctionConfig) TimeoutDuration() time.Duration {
	if f.Timeout <= 0 {
		return cnst.DefaultTimeoutSeconds * time.Second
	}
	return time.Duration(f.Timeout) * time.Second
}
