package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ajharbinger/rei-deal-drop/internal/scoring"
)

// Config holds application configuration
type Config struct {
	DatabaseURL string
	JWTSecret   string
	Port        string
	Environment string
	LogLevel    string
	// Property data provider
	PropertyDataEndpoint string
	PropertyDataAPIKey   string
	PropertyDataRPS      int
	// Listing import; comma-separated hosts, empty disables it
	ListingAllowedHosts string
	// Ingestion
	MinRehabPerSqFt   float64
	ScoringPolicyPath string
	// Rescore pipeline
	RescoreBatchSize       int
	RescoreIntervalMinutes int
	RescoreMaxConcurrent   int
	// Security configuration
	AllowedOrigins     string
	TrustedProxies     string
	EnableRateLimit    bool
	RateLimitPerMinute int
	MaxRequestSize     int64
}

// New creates a new configuration instance from environment variables
func New() *Config {
	return &Config{
		DatabaseURL:            getEnv("DATABASE_URL", "sqlite://dealdrop.db"),
		JWTSecret:              getEnv("JWT_SECRET", ""),
		Port:                   getEnv("PORT", "8080"),
		Environment:            getEnv("ENV", "development"),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		PropertyDataEndpoint:   getEnv("PROPERTY_DATA_ENDPOINT", "https://api.rentcast.io/v1"),
		PropertyDataAPIKey:     getEnv("PROPERTY_DATA_API_KEY", ""),
		PropertyDataRPS:        getEnvAsInt("PROPERTY_DATA_RPS", 5),
		ListingAllowedHosts:    getEnv("LISTING_ALLOWED_HOSTS", ""),
		MinRehabPerSqFt:        getEnvAsFloat("MIN_REHAB_PER_SQFT", 10),
		ScoringPolicyPath:      getEnv("SCORING_POLICY_PATH", ""),
		RescoreBatchSize:       getEnvAsInt("RESCORE_BATCH_SIZE", 200),
		RescoreIntervalMinutes: getEnvAsInt("RESCORE_INTERVAL_MINUTES", 60),
		RescoreMaxConcurrent:   getEnvAsInt("RESCORE_MAX_CONCURRENT", 8),
		// Security configuration
		AllowedOrigins:     getEnv("ALLOWED_ORIGINS", ""),
		TrustedProxies:     getEnv("TRUSTED_PROXIES", ""),
		EnableRateLimit:    getEnv("ENABLE_RATE_LIMIT", "true") == "true",
		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 100),
		MaxRequestSize:     getEnvAsInt64("MAX_REQUEST_SIZE", 1024*1024), // 1MB default
	}
}

// Validate checks settings the server cannot start without
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.IsProduction() && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
	}
	if c.MinRehabPerSqFt < 0 {
		return fmt.Errorf("MIN_REHAB_PER_SQFT must not be negative")
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// HasPropertyDataCredentials returns true if the property data provider is configured
func (c *Config) HasPropertyDataCredentials() bool {
	return c.PropertyDataAPIKey != "" && c.PropertyDataEndpoint != ""
}

// LoadScoringPolicy returns the default policy overlaid with the YAML file at
// path. An empty path yields the default policy.
func LoadScoringPolicy(path string) (scoring.Policy, error) {
	policy := scoring.DefaultPolicy()
	if path == "" {
		return policy, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return policy, fmt.Errorf("read scoring policy %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return policy, fmt.Errorf("parse scoring policy %q: %w", path, err)
	}
	if err := policy.Validate(); err != nil {
		return policy, fmt.Errorf("invalid scoring policy %q: %w", path, err)
	}
	return policy, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// GetAllowedOrigins returns a slice of allowed CORS origins
func (c *Config) GetAllowedOrigins() []string {
	if c.AllowedOrigins == "" {
		return []string{}
	}
	origins := strings.Split(c.AllowedOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return origins
}

// GetListingHosts returns the hosts listing import may fetch from
func (c *Config) GetListingHosts() []string {
	var hosts []string
	for _, h := range strings.Split(c.ListingAllowedHosts, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}

// GetTrustedProxies returns a slice of trusted proxy IPs
func (c *Config) GetTrustedProxies() []string {
	if c.TrustedProxies == "" {
		return []string{} // No trusted proxies by default
	}
	return strings.Split(c.TrustedProxies, ",")
}
