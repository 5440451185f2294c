package cnst

// Tracer names used across the services
const (
	// TraceCore is the tracer name for the gateway core
	TraceCore = "serverless-offline/core"
	// TraceFunction is the tracer name for handler invocation
	TraceFunction = "serverless-offline/function"
)

// Common span names
const (
	SpanRequestTemplate  = "offline.request_template"
	SpanInvoke           = "offline.invoke"
	SpanResponseTemplate = "offline.response_template"
	SpanProcess          = "offline.process"
)

// Common attribute keys
const (
	AttrFunctionName   = "faas.name"
	AttrResponseName   = "offline.response"
	AttrContentType    = "http.request.content_type"
	AttrClientAddr     = "client.remote_addr"
	AttrErrorReason    = "error.reason"
	AttrHTTPStatusCode = "http.status_code"
	AttrOutcome        = "offline.outcome"
	AttrProcessPath    = "process.executable.path"
	AttrEnvCount       = "offline.env.count"
)
