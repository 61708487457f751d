package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DB      DBConfig
	Storage StorageConfig
	JWT     JWTConfig
	Server  ServerConfig
	Mail    MailConfig
	Upload  UploadConfig
	Notify  NotifyConfig
}

type DBConfig struct {
	Driver     string
	Host       string
	Port       string
	User       string
	Password   string
	Name       string
	SSLMode    string
	SQLitePath string
}

type StorageConfig struct {
	Driver string
	MinIO  MinIOConfig
	S3     S3Config
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// S3Config also covers S3-compatible providers (R2, Wasabi) through Endpoint.
type S3Config struct {
	Endpoint     string
	Region       string
	AccessKey    string
	SecretKey    string
	Bucket       string
	UsePathStyle bool
}

type JWTConfig struct {
	Secret          string
	ExpirationHours int
}

type ServerConfig struct {
	Port        string
	FrontendURL string
	// AppURL is the base of download links placed in notification emails.
	AppURL string
}

type MailConfig struct {
	Driver  string
	APIKey  string
	BaseURL string
	From    string
	Timeout time.Duration
}

type UploadConfig struct {
	MaxFileSize int64
}

type NotifyConfig struct {
	QueueBufferSize int
	MaxAttempts     int
	RetryDelay      time.Duration
}

func Load() *Config {
	loadEnvFile()

	return &Config{
		DB: DBConfig{
			Driver:     getEnv("DB_DRIVER", "postgres"),
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnv("DB_PORT", "5432"),
			User:       getEnv("DB_USER", "securetransfer"),
			Password:   getEnv("DB_PASSWORD", "securetransfer_secret"),
			Name:       getEnv("DB_NAME", "securetransfer"),
			SSLMode:    getEnv("DB_SSLMODE", "disable"),
			SQLitePath: getEnv("DB_SQLITE_PATH", "securetransfer.db"),
		},
		Storage: StorageConfig{
			Driver: getEnv("STORAGE_DRIVER", "minio"),
			MinIO: MinIOConfig{
				Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
				AccessKey: getEnv("MINIO_ACCESS_KEY", "securetransfer"),
				SecretKey: getEnv("MINIO_SECRET_KEY", "securetransfer_secret"),
				Bucket:    getEnv("MINIO_BUCKET", "secure-transfers"),
				Region:    getEnv("MINIO_REGION", "us-east-1"),
				UseSSL:    getEnvAsBool("MINIO_USE_SSL", false),
			},
			S3: S3Config{
				Endpoint:     getEnv("S3_ENDPOINT", ""),
				Region:       getEnv("S3_REGION", "auto"),
				AccessKey:    getEnv("S3_ACCESS_KEY_ID", ""),
				SecretKey:    getEnv("S3_SECRET_ACCESS_KEY", ""),
				Bucket:       getEnv("S3_BUCKET", "secure-transfers"),
				UsePathStyle: getEnvAsBool("S3_USE_PATH_STYLE", true),
			},
		},
		JWT: JWTConfig{
			Secret:          getEnv("JWT_SECRET", "change-me-in-production"),
			ExpirationHours: getEnvAsInt("JWT_EXPIRATION_HOURS", 24),
		},
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),
			AppURL:      getEnv("APP_URL", getEnv("FRONTEND_URL", "http://localhost:5173")),
		},
		Mail: MailConfig{
			Driver:  getEnv("MAIL_DRIVER", "log"),
			APIKey:  getEnv("RESEND_API_KEY", ""),
			BaseURL: getEnv("RESEND_BASE_URL", "https://api.resend.com"),
			From:    getEnv("MAIL_FROM", "SecureTransfer <onboarding@resend.dev>"),
			Timeout: getEnvAsDuration("MAIL_TIMEOUT", 15*time.Second),
		},
		Upload: UploadConfig{
			MaxFileSize: getEnvAsInt64("UPLOAD_MAX_FILE_SIZE", 100*1024*1024),
		},
		Notify: NotifyConfig{
			QueueBufferSize: getEnvAsInt("NOTIFY_QUEUE_BUFFER_SIZE", 100),
			MaxAttempts:     getEnvAsInt("NOTIFY_MAX_ATTEMPTS", 2),
			RetryDelay:      getEnvAsDuration("NOTIFY_RETRY_DELAY", 1*time.Minute),
		},
	}
}

// loadEnvFile reads ENV_FILE (default .env) into the process environment.
// Variables already set win over the file.
func loadEnvFile() {
	envFile := getEnv("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		log.Printf("failed loading %s: %v", envFile, err)
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsInt64(key string, fallback int64) int64 {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}
