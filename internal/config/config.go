package config

import (
	"encoding/json"
	"fmt"
	"os"

	pkgconfig "github.com/utafrali/RelistGo/pkg/config"
)

// Config holds all configuration for the relist service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"RELIST_HTTP_PORT" envDefault:"8010"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"relist"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"relist_secret"`
	PostgresDB   string `env:"RELIST_DB_NAME" envDefault:"relist_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Redis (optional second translation-cache layer)
	RedisEnabled  bool   `env:"REDIS_ENABLED" envDefault:"false"`
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka (optional event emission; single-process deployments run without it)
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Upstream marketplace (Rakumart)
	RakumartBaseURL   string `env:"RAKUMART_BASE_URL" envDefault:"https://apiwww.rakumart.com"`
	RakumartAppKey    string `env:"RAKUMART_APP_KEY"`
	RakumartAppSecret string `env:"RAKUMART_APP_SECRET"`

	// Rakuten RMS
	RakutenBaseURL         string `env:"RAKUTEN_BASE_URL" envDefault:"https://api.rms.rakuten.co.jp"`
	RakutenCredentialsFile string `env:"RAKUTEN_CREDENTIALS_FILE"`

	// Machine translation
	TranslatorAPIKey string `env:"TRANSLATOR_API_KEY"`

	// Content generation (empty key selects the deterministic fallback)
	GenAIAPIKey string `env:"GENAI_API_KEY"`
	GenAIModel  string `env:"GENAI_MODEL" envDefault:"gemini-2.0-flash"`

	// Object storage (empty bucket selects the in-process store)
	S3Bucket    string `env:"S3_BUCKET"`
	S3Region    string `env:"S3_REGION" envDefault:"ap-northeast-1"`
	S3Endpoint  string `env:"S3_ENDPOINT"`
	S3AccessKey string `env:"S3_ACCESS_KEY"`
	S3SecretKey string `env:"S3_SECRET_KEY"`
	S3PublicURL string `env:"S3_PUBLIC_URL"`

	// Image transformation endpoint (empty disables inpainting)
	ImageTransformEndpoint string `env:"IMAGE_TRANSFORM_ENDPOINT"`

	// Outbound call timeouts in seconds
	ProductAPITimeoutSecs    int `env:"PRODUCT_API_TIMEOUT_SECONDS" envDefault:"30"`
	ImageFetchTimeoutSecs    int `env:"IMAGE_FETCH_TIMEOUT_SECONDS" envDefault:"15"`
	CabinetUploadTimeoutSecs int `env:"CABINET_UPLOAD_TIMEOUT_SECONDS" envDefault:"60"`
	TranslatorTimeoutSecs    int `env:"TRANSLATOR_TIMEOUT_SECONDS" envDefault:"15"`

	// Materialization fan-out
	MaterializeConcurrency int `env:"MATERIALIZE_CONCURRENCY" envDefault:"4"`

	// Scheduled keyword re-harvesting
	AutoRefreshEnabled      bool     `env:"AUTO_REFRESH_ENABLED" envDefault:"false"`
	AutoRefreshIntervalMins int      `env:"AUTO_REFRESH_INTERVAL_MINUTES" envDefault:"360"`
	AutoRefreshKeywords     []string `env:"AUTO_REFRESH_KEYWORDS" envSeparator:","`
	AutoRefreshPageSize     int      `env:"AUTO_REFRESH_PAGE_SIZE" envDefault:"20"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load relist config: %w", err)
	}
	if cfg.HTTPPort < 1 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("invalid HTTP port: %d", cfg.HTTPPort)
	}
	if cfg.PostgresHost == "" {
		return nil, fmt.Errorf("POSTGRES_HOST is required")
	}
	if cfg.PostgresUser == "" {
		return nil, fmt.Errorf("POSTGRES_USER is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED=true")
	}
	if cfg.MaterializeConcurrency < 1 {
		return nil, fmt.Errorf("MATERIALIZE_CONCURRENCY must be at least 1, got %d", cfg.MaterializeConcurrency)
	}
	if cfg.AutoRefreshEnabled && cfg.AutoRefreshIntervalMins < 1 {
		return nil, fmt.Errorf("AUTO_REFRESH_INTERVAL_MINUTES must be at least 1, got %d", cfg.AutoRefreshIntervalMins)
	}
	if cfg.AutoRefreshEnabled && len(cfg.AutoRefreshKeywords) == 0 {
		return nil, fmt.Errorf("AUTO_REFRESH_KEYWORDS is required when AUTO_REFRESH_ENABLED=true")
	}
	if cfg.OTELSampleRate < 0 || cfg.OTELSampleRate > 1.0 {
		return nil, fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", cfg.OTELSampleRate)
	}
	return cfg, nil
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSL,
	)
}

// RakutenCredentials is the RMS keypair used for the ESA Authorization
// header.
type RakutenCredentials struct {
	ServiceSecret string `json:"service_secret"`
	LicenseKey    string `json:"license_key"`
}

// LoadRakutenCredentials reads the RMS keypair from the JSON file at path,
// then lets SERVICE_SECRET / LICENSE_KEY environment variables override
// individual fields so containerized runs can inject secrets without a
// mounted file. An empty path with no environment overrides yields empty
// credentials; registration calls will fail with an auth error until they
// are provided.
func LoadRakutenCredentials(path string) (RakutenCredentials, error) {
	var creds RakutenCredentials
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return RakutenCredentials{}, fmt.Errorf("read rakuten credentials file: %w", err)
		}
		if err := json.Unmarshal(data, &creds); err != nil {
			return RakutenCredentials{}, fmt.Errorf("parse rakuten credentials file: %w", err)
		}
	}
	if v := os.Getenv("SERVICE_SECRET"); v != "" {
		creds.ServiceSecret = v
	}
	if v := os.Getenv("LICENSE_KEY"); v != "" {
		creds.LicenseKey = v
	}
	return creds, nil
}
