package config

import (
	"strings"

	"github.com/nexuskit/authkeeper/internal/flagx"
)

// parseEnv overlays configuration from environment variables. Unset or empty
// variables leave the current value untouched; malformed values panic the
// same way a malformed JSON file does.
func parseEnv(config *Config) {
	config.EndpointAddrHTTP = flagx.EnvString("ADDRESS", config.EndpointAddrHTTP)
	config.DatabaseDSN = flagx.EnvString("DATABASE_DSN", config.DatabaseDSN)
	config.RedisAddr = flagx.EnvString("REDIS_ADDR", config.RedisAddr)
	config.SecretKey = flagx.EnvString("SECRET_KEY", config.SecretKey)
	config.AccessTokenValidityDuration = flagx.EnvDuration("ACCESS_TOKEN_TTL", config.AccessTokenValidityDuration)
	config.RefreshTokenValidityDuration = flagx.EnvDuration("REFRESH_TOKEN_TTL", config.RefreshTokenValidityDuration)
	config.RotateRefreshTokens = flagx.EnvBool("ROTATE_REFRESH_TOKENS", config.RotateRefreshTokens)
	config.LoginRateLimit = flagx.EnvInt("LOGIN_RATE_LIMIT", config.LoginRateLimit)
	config.LoginRateWindow = flagx.EnvDuration("LOGIN_RATE_WINDOW", config.LoginRateWindow)
	config.PermissionCacheTTL = flagx.EnvDuration("PERMISSION_CACHE_TTL", config.PermissionCacheTTL)
	config.AdminUsername = flagx.EnvString("ADMIN_USERNAME", config.AdminUsername)
	config.AdminEmail = flagx.EnvString("ADMIN_EMAIL", config.AdminEmail)
	config.AdminPassword = flagx.EnvString("ADMIN_PASSWORD", config.AdminPassword)

	if origins := flagx.EnvString("CORS_ALLOWED_ORIGINS", ""); origins != "" {
		config.CORSAllowedOrigins = splitOrigins(origins)
	}
}

func splitOrigins(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
