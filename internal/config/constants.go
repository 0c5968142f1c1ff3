package config

import "time"

const (
	EnvPrefix = "MULTIPOST"

	DefaultStorageDir   = "storage"
	DefaultCookieDir    = "cookies"
	DefaultLogDir       = "logs"
	DefaultMediaAddr    = "127.0.0.1:0"
	DefaultFetchTimeout = 5 * time.Minute
)
