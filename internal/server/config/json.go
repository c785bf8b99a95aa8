package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/nexuskit/authkeeper/internal/flagx"
	"github.com/nexuskit/authkeeper/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "15m" and integer nanoseconds.
//
// This struct is an intermediate DTO (Data Transfer Object) used only for
// reading JSON configuration files. After unmarshalling, its fields are
// copied into the runtime Config struct which uses time.Duration.
type JsonConfig struct {
	EndpointAddrHTTP             string         `json:"endpoint_addr_http"`
	DatabaseDSN                  string         `json:"database_dsn"`
	RedisAddr                    string         `json:"redis_addr"`
	SecretKey                    string         `json:"secret_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	RotateRefreshTokens          bool           `json:"rotate_refresh_tokens"`
	LoginRateLimit               int            `json:"login_rate_limit"`
	LoginRateWindow              timex.Duration `json:"login_rate_window"`
	PermissionCacheTTL           timex.Duration `json:"permission_cache_ttl"`
	CORSAllowedOrigins           []string       `json:"cors_allowed_origins"`
	AdminUsername                string         `json:"admin_username"`
	AdminEmail                   string         `json:"admin_email"`
	AdminPassword                string         `json:"admin_password"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The lookup order for the JSON file path is:
//
//	The -c or -config command-line flags.
//	If it is not set, no JSON file is loaded.
//
// If the file path is found, parseJson attempts to read and unmarshal it
// into a JsonConfig. The resulting values are copied into the target Config.
// If the file cannot be read or contains invalid JSON, the function panics.
//
// The caller is expected to merge these values with defaults, environment
// variables, and command-line flags as part of the full configuration process.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	config.EndpointAddrHTTP = c.EndpointAddrHTTP
	config.DatabaseDSN = c.DatabaseDSN
	config.RedisAddr = c.RedisAddr
	config.SecretKey = c.SecretKey
	config.AccessTokenValidityDuration = time.Duration(c.AccessTokenValidityDuration.Duration)
	config.RefreshTokenValidityDuration = time.Duration(c.RefreshTokenValidityDuration.Duration)
	config.RotateRefreshTokens = c.RotateRefreshTokens
	config.LoginRateLimit = c.LoginRateLimit
	config.LoginRateWindow = time.Duration(c.LoginRateWindow.Duration)
	config.PermissionCacheTTL = time.Duration(c.PermissionCacheTTL.Duration)
	config.CORSAllowedOrigins = c.CORSAllowedOrigins
	config.AdminUsername = c.AdminUsername
	config.AdminEmail = c.AdminEmail
	config.AdminPassword = c.AdminPassword
}
