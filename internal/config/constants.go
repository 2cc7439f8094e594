package config

// Cache backend modes recognized by CacheConfig.Mode.
const (
	CacheModeMemory   = "memory"
	CacheModeRedis    = "redis"
	CacheModeDisabled = "disabled"
)

// Application identity used for logging, metrics and the health surface.
const (
	AppName    = "fintools"
	AppVersion = "1.2.0"
)
