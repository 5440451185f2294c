package cnst

const (
	AppName     = "serverless-offline"
	CommandName = "offline"
)

const (
	// OfflineYaml is the default gateway configuration file name
	OfflineYaml = "offline.yaml"
	// ProjectYaml is the default project definition file name
	ProjectYaml = "serverless.yaml"
	// BuiltinModule holds the handlers compiled into the offline binary
	BuiltinModule = "offline"
)

const (
	// DefaultContentType is what API Gateway assumes when a request carries none
	DefaultContentType = "application/json"
	// DefaultTimeoutSeconds is the function timeout used when none is declared
	DefaultTimeoutSeconds = 6
	// DefaultResponseName is the response variant used on success and as fallback
	DefaultResponseName = "default"
)

// DefaultCORSHeaders are the allowed headers when none are configured
var DefaultCORSHeaders = []string{"Accept", "Authorization", "Content-Type", "If-None-Match"}

const (
	RedisClusterTypeSentinel = "sentinel"
	RedisClusterTypeCluster  = "cluster"
	RedisClusterTypeSingle   = "single"
)
