package template

import (
	"encoding/json"
	"strings"

	"github.com/daffinity/serverless-offline/pkg/utils"
)

// Placeholders used when a deployment does not override an identity field.
const (
	SentinelAPIID                         = "offlineContext_apiId"
	SentinelResourceID                    = "offlineContext_resourceId"
	SentinelRequestID                     = "offlineContext_requestId"
	SentinelStage                         = "offlineContext_stage"
	SentinelPrincipalID                   = "offlineContext_authorizer_principalId"
	SentinelAccountID                     = "offlineContext_accountId"
	SentinelAPIKey                        = "offlineContext_apiKey"
	SentinelCaller                        = "offlineContext_caller"
	SentinelCognitoAuthenticationProvider = "offlineContext_cognitoAuthenticationProvider"
	SentinelCognitoAuthenticationType     = "offlineContext_cognitoAuthenticationType"
	SentinelUser                          = "offlineContext_user"
	SentinelUserArn                       = "offlineContext_userArn"
)

type (
	// Request is the part of an inbound HTTP request visible to templates
	Request struct {
		Method     string
		Path       string // route pattern, e.g. /users/{id}
		RemoteAddr string
		Headers    map[string]string
		Query      map[string]string
		Params     map[string]string
	}

	// Options carries deployment level overrides. Every empty field falls
	// back to its sentinel.
	Options struct {
		APIID          string
		ResourceID     string
		RequestID      string
		Stage          string
		PrincipalID    string
		Identity       IdentityOptions
		StageVariables map[string]string
	}

	IdentityOptions struct {
		AccountID                     string
		APIKey                        string
		Caller                        string
		CognitoAuthenticationProvider string
		CognitoAuthenticationType     string
		User                          string
		UserArn                       string
	}

	// Context is the evaluation context handed to every template.
	//
	//	{{ .Context.Identity.SourceIP }}
	//	{{ .Input.JSON "$.user" }}
	//	{{ .Input.Params "id" }}
	//	{{ .StageVariables.table }}
	//	{{ .Util.Base64Encode "x" }}
	Context struct {
		Context        RequestContext    `json:"context"`
		Input          *Input            `json:"-"`
		StageVariables map[string]string `json:"stageVariables"`
		Util           Util              `json:"-"`
	}

	RequestContext struct {
		APIID        string     `json:"apiId"`
		Authorizer   Authorizer `json:"authorizer"`
		HTTPMethod   string     `json:"httpMethod"`
		Identity     Identity   `json:"identity"`
		RequestID    string     `json:"requestId"`
		ResourceID   string     `json:"resourceId"`
		ResourcePath string     `json:"resourcePath"`
		Stage        string     `json:"stage"`
	}

	Authorizer struct {
		PrincipalID string `json:"principalId"`
	}

	Identity struct {
		AccountID                     string `json:"accountId"`
		APIKey                        string `json:"apiKey"`
		Caller                        string `json:"caller"`
		CognitoAuthenticationProvider string `json:"cognitoAuthenticationProvider"`
		CognitoAuthenticationType     string `json:"cognitoAuthenticationType"`
		SourceIP                      string `json:"sourceIp"`
		User                          string `json:"user"`
		UserAgent                     string `json:"userAgent"`
		UserArn                       string `json:"userArn"`
	}

	// Input exposes the payload and the request parameters
	Input struct {
		payload any
		path    map[string]string
		query   map[string]string
		header  map[string]string
	}
)

// BuildContext assembles the evaluation context for one request. It never
// fails: nil maps become empty ones and empty overrides become sentinels.
func BuildContext(req Request, opts *Options, payload any) *Context {
	if opts == nil {
		opts = &Options{}
	}
	if payload == nil {
		payload = map[string]any{}
	}
	stageVariables := opts.StageVariables
	if stageVariables == nil {
		stageVariables = map[string]string{}
	}

	return &Context{
		Context: RequestContext{
			APIID: utils.FirstNonEmpty(opts.APIID, SentinelAPIID),
			Authorizer: Authorizer{
				PrincipalID: utils.FirstNonEmpty(opts.PrincipalID, SentinelPrincipalID),
			},
			HTTPMethod: strings.ToUpper(req.Method),
			Identity: Identity{
				AccountID:                     utils.FirstNonEmpty(opts.Identity.AccountID, SentinelAccountID),
				APIKey:                        utils.FirstNonEmpty(opts.Identity.APIKey, SentinelAPIKey),
				Caller:                        utils.FirstNonEmpty(opts.Identity.Caller, SentinelCaller),
				CognitoAuthenticationProvider: utils.FirstNonEmpty(opts.Identity.CognitoAuthenticationProvider, SentinelCognitoAuthenticationProvider),
				CognitoAuthenticationType:     utils.FirstNonEmpty(opts.Identity.CognitoAuthenticationType, SentinelCognitoAuthenticationType),
				SourceIP:                      req.RemoteAddr,
				User:                          utils.FirstNonEmpty(opts.Identity.User, SentinelUser),
				UserAgent:                     headerValue(req.Headers, "User-Agent"),
				UserArn:                       utils.FirstNonEmpty(opts.Identity.UserArn, SentinelUserArn),
			},
			RequestID:    utils.FirstNonEmpty(opts.RequestID, SentinelRequestID),
			ResourceID:   utils.FirstNonEmpty(opts.ResourceID, SentinelResourceID),
			ResourcePath: req.Path,
			Stage:        utils.FirstNonEmpty(opts.Stage, SentinelStage),
		},
		Input: &Input{
			payload: payload,
			path:    nonNil(req.Params),
			query:   nonNil(req.Query),
			header:  nonNil(req.Headers),
		},
		StageVariables: stageVariables,
	}
}

// Body returns the payload the context was built from
func (in *Input) Body() any {
	return in.payload
}

// Path evaluates a JSONPath expression against the payload. A miss yields nil.
func (in *Input) Path(expr string) any {
	return Query(in.payload, expr)
}

// JSON is Path serialised as JSON. A miss renders as nothing.
func (in *Input) JSON(expr string) (string, error) {
	v := in.Path(expr)
	if v == nil {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Params with a name returns the first non-empty value among path
// parameters, query string and headers. Without a name it returns all three
// sources keyed path, querystring and header.
func (in *Input) Params(name ...string) any {
	if len(name) == 0 {
		return map[string]map[string]string{
			"path":        in.path,
			"querystring": in.query,
			"header":      in.header,
		}
	}
	key := name[0]
	if v := utils.FirstNonEmpty(in.path[key], in.query[key], headerValue(in.header, key)); v != "" {
		return v
	}
	return nil
}

// headerValue looks a header up ignoring case
func headerValue(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func nonNil(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

// templateData is the view templates execute against. The request context
// is exposed as nested maps keyed by field name, so a reference to a field
// that does not exist renders empty instead of failing.
func (c *Context) templateData() map[string]any {
	rc := c.Context
	return map[string]any{
		"Context": map[string]any{
			"APIID": rc.APIID,
			"Authorizer": map[string]any{
				"PrincipalID": rc.Authorizer.PrincipalID,
			},
			"HTTPMethod": rc.HTTPMethod,
			"Identity": map[string]any{
				"AccountID":                     rc.Identity.AccountID,
				"APIKey":                        rc.Identity.APIKey,
				"Caller":                        rc.Identity.Caller,
				"CognitoAuthenticationProvider": rc.Identity.CognitoAuthenticationProvider,
				"CognitoAuthenticationType":     rc.Identity.CognitoAuthenticationType,
				"SourceIP":                      rc.Identity.SourceIP,
				"User":                          rc.Identity.User,
				"UserAgent":                     rc.Identity.UserAgent,
				"UserArn":                       rc.Identity.UserArn,
			},
			"RequestID":    rc.RequestID,
			"ResourceID":   rc.ResourceID,
			"ResourcePath": rc.ResourcePath,
			"Stage":        rc.Stage,
		},
		"Input":          c.Input,
		"StageVariables": c.StageVariables,
		"Util":           c.Util,
	}
}
