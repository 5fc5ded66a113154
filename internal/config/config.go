package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Skotchmaster/product_catalog/internal/upload"
)

type MinIO struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func (m MinIO) Enabled() bool { return m.Endpoint != "" }

type Config struct {
	ServiceName string
	ServerPort  int
	LogLevel    string

	SecretKey    []byte
	SessionTTL   time.Duration
	CookieSecure bool
	CSRFEnabled  bool

	DatabaseURL string
	DBDriver    string

	UploadDir         string
	AllowedExtensions []string
	MaxUploadBytes    int64

	MinPasswordLength int
	AdminEmail        string
	AdminPassword     string

	KafkaBrokers []string

	ESURL      string
	ESUser     string
	ESPassword string
	ESIndex    string

	RedisAddr      string
	RedisPassword  string
	LoginRateLimit int

	MinIO MinIO
}

func Load() Config {
	return Config{
		ServiceName: EnvDefault("SERVICE_NAME", "catalog"),
		ServerPort:  EnvIntDefault("SERVER_PORT", 8080),
		LogLevel:    EnvDefault("LOG_LEVEL", "info"),

		SecretKey:    []byte(os.Getenv("SECRET_KEY")),
		SessionTTL:   time.Duration(EnvIntDefault("SESSION_TTL_HOURS", 24)) * time.Hour,
		CookieSecure: EnvBoolDefault("COOKIE_SECURE", false),
		CSRFEnabled:  EnvBoolDefault("CSRF_ENABLED", true),

		DatabaseURL: EnvDefault("DATABASE_URL", "sqlite://catalog.db"),
		DBDriver:    os.Getenv("DB_DRIVER"),

		UploadDir:         EnvDefault("UPLOAD_DIR", "uploads"),
		AllowedExtensions: CSVDefault(os.Getenv("ALLOWED_EXTENSIONS"), upload.DefaultExtensions),
		MaxUploadBytes:    EnvInt64Default("MAX_UPLOAD_BYTES", upload.DefaultMaxBytes),

		MinPasswordLength: EnvIntDefault("MIN_PASSWORD_LENGTH", 6),
		AdminEmail:        EnvDefault("ADMIN_EMAIL", "admin@rexinehouse.com"),
		AdminPassword:     os.Getenv("ADMIN_PASSWORD"),

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),

		ESURL:      os.Getenv("ES_URL"),
		ESUser:     os.Getenv("ES_USER"),
		ESPassword: os.Getenv("ES_PASSWORD"),
		ESIndex:    EnvDefault("ES_INDEX", "products"),

		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		LoginRateLimit: EnvIntDefault("LOGIN_RATE_LIMIT", 10),

		MinIO: MinIO{
			Endpoint:  os.Getenv("MINIO_ENDPOINT"),
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			Bucket:    EnvDefault("MINIO_BUCKET", "catalog-uploads"),
			UseSSL:    EnvBoolDefault("MINIO_USE_SSL", false),
		},
	}
}

func (c Config) Validate() error {
	var errs []error
	if len(c.SecretKey) == 0 {
		errs = append(errs, errors.New("missing required env SECRET_KEY"))
	}
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("missing required env DATABASE_URL"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes))
	}
	if len(c.AllowedExtensions) == 0 {
		errs = append(errs, errors.New("ALLOWED_EXTENSIONS must list at least one extension"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL_HOURS must be positive"))
	}
	if c.MinIO.Enabled() && (c.MinIO.AccessKey == "" || c.MinIO.SecretKey == "") {
		errs = append(errs, errors.New("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required with MINIO_ENDPOINT"))
	}
	return errors.Join(errs...)
}

// String masks secrets so the config can be logged at startup.
func (c Config) String() string {
	return fmt.Sprintf(
		"Config{ServiceName: %s, ServerPort: %d, DatabaseURL: %s, UploadDir: %s, MaxUploadBytes: %d, Kafka: %v, ES: %s, Redis: %s, MinIO: %s, SecretKey: [REDACTED]}",
		c.ServiceName, c.ServerPort, maskURL(c.DatabaseURL), c.UploadDir, c.MaxUploadBytes,
		c.KafkaBrokers, maskURL(c.ESURL), c.RedisAddr, c.MinIO.Endpoint,
	)
}

func maskURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "[REDACTED_INVALID_URL]"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "REDACTED")
	}
	return u.String()
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func CSVDefault(v string, def []string) []string {
	if out := CSV(v); len(out) > 0 {
		return out
	}
	return append([]string(nil), def...)
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func EnvInt64Default(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func EnvBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
