package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/joho/godotenv"
)

const (
	StorageDriverMySQL  = "mysql"
	StorageDriverMemory = "memory"
)

// MinPasswordLength is the floor no configured policy can go below.
const MinPasswordLength = 8

type Config struct {
	App      AppConfig
	HTTP     HTTPConfig
	GRPC     GRPCConfig
	Storage  StorageConfig
	JWT      JWTConfig
	Tokens   TokenConfig
	Sessions SessionConfig
	Password PasswordConfig
	OAuth    OAuthConfig
	Log      LogConfig
}

type AppConfig struct {
	Env      string
	RootURL  string
	LoginURL string

	// RequireVerifiedEmail gates profile and password changes behind a verified address.
	RequireVerifiedEmail bool
}

type HTTPConfig struct {
	Host string
	Port string

	// CORSAllowedOrigins enables credentialed cross-origin requests from the
	// listed origins only. Empty keeps the default CORS policy without credentials.
	CORSAllowedOrigins []string
}

type GRPCConfig struct {
	Host                string
	Port                string
	HealthCheckInterval time.Duration
}

type StorageConfig struct {
	Driver         string
	MySQLDSN       string
	MigrateOnStart bool
}

type JWTConfig struct {
	Secret   string
	TokenTTL time.Duration
}

type TokenConfig struct {
	ResetTTL time.Duration
}

type SessionConfig struct {
	SweepInterval time.Duration
}

type PasswordConfig struct {
	Policy     PasswordPolicy
	BcryptCost int
}

type OAuthConfig struct {
	Google ProviderConfig
	GitHub ProviderConfig
}

// ProviderConfig holds the client credentials registered with an OAuth provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Enabled reports whether both client credentials are present.
func (p ProviderConfig) Enabled() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

type LogConfig struct {
	Level  string
	Format string
}

type PasswordPolicy struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireNumber    bool
	RequireSpecial   bool
}

func (p PasswordPolicy) Validate(password string) error {
	minLength := max(p.MinLength, MinPasswordLength)
	if len(password) < minLength {
		return fmt.Errorf("password must be at least %d characters long", minLength)
	}

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasNumber = true
		case unicode.IsPunct(ch) || unicode.IsSymbol(ch):
			hasSpecial = true
		}
	}

	var missing []string
	if p.RequireUppercase && !hasUpper {
		missing = append(missing, "uppercase letter")
	}
	if p.RequireLowercase && !hasLower {
		missing = append(missing, "lowercase letter")
	}
	if p.RequireNumber && !hasNumber {
		missing = append(missing, "number")
	}
	if p.RequireSpecial && !hasSpecial {
		missing = append(missing, "special character")
	}

	if len(missing) > 0 {
		return fmt.Errorf("password must contain at least one: %s", strings.Join(missing, ", "))
	}

	return nil
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignores error if not found)
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET environment variable is required")
	}

	storage, err := loadStorage()
	if err != nil {
		return nil, err
	}

	return &Config{
		App: AppConfig{
			Env:      getEnv("APP_ENV", "development"),
			RootURL:  getEnv("APP_ROOT_URL", "/"),
			LoginURL: getEnv("APP_LOGIN_URL", "/login"),

			RequireVerifiedEmail: getBoolEnv("REQUIRE_VERIFIED_EMAIL", false),
		},
		HTTP: HTTPConfig{
			Host: getEnv("HTTP_HOST", ""),
			Port: getEnv("HTTP_PORT", "8080"),

			CORSAllowedOrigins: getListEnv("HTTP_CORS_ALLOWED_ORIGINS"),
		},
		GRPC: GRPCConfig{
			Host:                getEnv("GRPC_HOST", ""),
			Port:                getEnv("GRPC_PORT", "9090"),
			HealthCheckInterval: getDurationEnv("HEALTH_CHECK_INTERVAL", 15*time.Second),
		},
		Storage: storage,
		JWT: JWTConfig{
			Secret:   jwtSecret,
			TokenTTL: getDurationEnv("JWT_TOKEN_TTL", 7*24*time.Hour),
		},
		Tokens: TokenConfig{
			ResetTTL: getDurationEnv("RESET_TOKEN_TTL", time.Hour),
		},
		Sessions: SessionConfig{
			SweepInterval: getDurationEnv("SESSION_SWEEP_INTERVAL", time.Hour),
		},
		Password: PasswordConfig{
			Policy:     loadPasswordPolicy(),
			BcryptCost: getIntEnv("BCRYPT_COST", 12),
		},
		OAuth: OAuthConfig{
			Google: loadProvider("GOOGLE"),
			GitHub: loadProvider("GITHUB"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}, nil
}

// IsProduction controls the Secure attribute of auth cookies.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.App.Env, "production")
}

func (c *Config) DSN() string {
	return c.Storage.MySQLDSN
}

func loadStorage() (StorageConfig, error) {
	driver := strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverMySQL))
	cfg := StorageConfig{
		Driver:         driver,
		MySQLDSN:       os.Getenv("MYSQL_DSN"),
		MigrateOnStart: getBoolEnv("MIGRATE_ON_START", false),
	}

	switch driver {
	case StorageDriverMySQL:
		if cfg.MySQLDSN == "" {
			return cfg, errors.New("MYSQL_DSN environment variable is required")
		}
	case StorageDriverMemory:
	default:
		return cfg, fmt.Errorf("unsupported STORAGE_DRIVER %q", driver)
	}

	return cfg, nil
}

func loadProvider(prefix string) ProviderConfig {
	return ProviderConfig{
		ClientID:     os.Getenv(prefix + "_CLIENT_ID"),
		ClientSecret: os.Getenv(prefix + "_CLIENT_SECRET"),
		RedirectURL:  os.Getenv(prefix + "_REDIRECT_URL"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv accepts Go duration strings ("90m", "168h") or a bare number of minutes.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
		if minutes, err := strconv.Atoi(value); err == nil && minutes > 0 {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getListEnv(key string) []string {
	var values []string
	for _, value := range strings.Split(os.Getenv(key), ",") {
		if value = strings.TrimSpace(value); value != "" {
			values = append(values, value)
		}
	}
	return values
}

func loadPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:        max(getIntEnv("PASSWORD_MIN_LENGTH", MinPasswordLength), MinPasswordLength),
		RequireUppercase: getBoolEnv("PASSWORD_REQUIRE_UPPERCASE", false),
		RequireLowercase: getBoolEnv("PASSWORD_REQUIRE_LOWERCASE", false),
		RequireNumber:    getBoolEnv("PASSWORD_REQUIRE_NUMBER", false),
		RequireSpecial:   getBoolEnv("PASSWORD_REQUIRE_SPECIAL", false),
	}
}
