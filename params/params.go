package params

import "time"

const (
	ServerBodyLimit    = 1048576 // 1 MiB
	ServerIdleTimeout  = 30 * time.Second
	ServerReadTimeout  = 10 * time.Second
	ServerWriteTimeout = 10 * time.Second

	// shared store key prefixes
	BlacklistKeyPrefix        = "blacklist:token:"
	AuthCodeKeyPrefix         = "oauth:auth_code:"
	UserCodeIndexKeyPrefix    = "oauth:user_codes:"
	ClientCodeIndexKeyPrefix  = "oauth:client_codes:"
	LoginAttemptKeyPrefix     = "login_attempts:"
	AccountLockKeyPrefix      = "account_lock:"
	SuspiciousSourceKeyPrefix = "suspicious_source:"
	DefenseStatsKeyPrefix     = "defense:"
	SSOTokenKeyPrefix         = "sso:token:"
	SSOSessionKeyPrefix       = "sso:session:"
	SSOAppsKeyPrefix          = "sso:apps:"

	AccessTokenExpiration     = 1 * time.Hour
	RefreshTokenExpiration    = 30 * 24 * time.Hour
	IDTokenExpiration         = AccessTokenExpiration
	PasswordResetExpiration   = 1 * time.Hour
	AuthCodeExpiration        = 10 * time.Minute // authorization codes are single use within this window
	AuthCodeLength            = 43               // 32 random bytes, base64url encoded
	LoginFailureWindow        = 60 * time.Minute // rolling window for failed login counting
	LoginLockThreshold        = 10               // failures within the window before the account locks
	LoginWarnThreshold        = 5                // failures before remaining attempts are reported
	LoginLockDuration         = 1 * time.Hour
	SuspiciousSourceThreshold = 20 // failures from one address before it is flagged high risk
	SuspiciousSourceWindow    = 60 * time.Minute
	SSOSessionExpiration      = 8 * time.Hour // sliding, refreshed on every successful validation
	GatewayConnectTimeout     = 5 * time.Second
	GatewayResponseTimeout    = 30 * time.Second
	AuthRateLimitMaxRequests  = 30 // per source address per window on /auth endpoints
	AuthRateLimitWindow       = 1 * time.Minute
	ClientSecretLength        = 32
	HealthCheckServerAddr     = ":3001"
)
