package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort  int
	JWTSecret   string
	TokenTTL    time.Duration
	FrontendURL string
	Database    DatabaseConfig
	Mongo       MongoConfig
	SMTP        SMTPConfig
	MQ          MQConfig
	Storage     StorageConfig
	RateLimit   RateLimitConfig
	Client      ClientConfig
}

type DatabaseConfig struct {
	Driver       string
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	UseSSL       bool
	MaxOpenConns int
}

type MongoConfig struct {
	URI      string
	Database string
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
}

type MQConfig struct {
	Backend  string
	Channel  string
	RabbitMQ RabbitMQConfig
	PubSub   PubSubConfig

	// MaxAttempts bounds deliveries of a failing message before it is
	// dead-lettered.
	MaxAttempts int
}

type RabbitMQConfig struct {
	URL             string
	QueueDurable    bool
	QueueAutoDelete bool
	PrefetchCount   int
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
}

type StorageConfig struct {
	Backend string
	Minio   MinioConfig
	GCS     GCSConfig
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type GCSConfig struct {
	Bucket          string
	ProjectID       string
	CredentialsFile string
}

type RateLimitConfig struct {
	// ForgotPasswordPerMinute is the sustained number of forgot-password
	// requests allowed per client IP.
	ForgotPasswordPerMinute int
	ForgotPasswordBurst     int
	// TrustProxy takes the client IP from X-Forwarded-For / X-Real-IP.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxy bool
}

type ClientConfig struct {
	APIURL    string
	TokenFile string
}

func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	dbConfig := DatabaseConfig{
		Driver:       strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		Host:         getEnv("DB_HOST", "localhost"),
		Port:         getEnvInt("DB_PORT", 5432),
		User:         getEnv("DB_USER", "adb"),
		Password:     getEnv("DB_PASSWORD", "password"),
		DBName:       getEnv("DB_NAME", "adb_analytics"),
		UseSSL:       getEnvBool("DB_USE_SSL", false),
		MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
	}

	mqConfig := MQConfig{
		Backend:     strings.ToLower(getEnv("MQ_BACKEND", "none")),
		Channel:     getEnv("MQ_EMAIL_CHANNEL", "emails"),
		MaxAttempts: getEnvInt("MQ_MAX_ATTEMPTS", 3),
		RabbitMQ: RabbitMQConfig{
			URL:             getEnv("RABBITMQ_URL", ""),
			QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
			QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", false),
			PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH", 10),
		},
		PubSub: PubSubConfig{
			ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
			CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
			SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
		},
	}

	storageConfig := StorageConfig{
		Backend: strings.ToLower(getEnv("STORAGE_BACKEND", "none")),
		Minio: MinioConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", "adb-reports"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		GCS: GCSConfig{
			Bucket:          getEnv("GCS_BUCKET", ""),
			ProjectID:       getEnv("GCS_PROJECT_ID", ""),
			CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
		},
	}

	return Config{
		ServerPort:  getEnvInt("SERVER_PORT", 8080),
		JWTSecret:   strings.TrimSpace(getEnv("JWT_SECRET", "")),
		TokenTTL:    getEnvDuration("TOKEN_TTL", 24*time.Hour),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),
		Database:    dbConfig,
		Mongo: MongoConfig{
			URI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGO_DB", "adb_analytics"),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnvInt("SMTP_PORT", 587),
			User:     getEnv("SMTP_USER", ""),
			Password: getEnv("SMTP_PASS", ""),
		},
		MQ:      mqConfig,
		Storage: storageConfig,
		RateLimit: RateLimitConfig{
			ForgotPasswordPerMinute: getEnvInt("FORGOT_PASSWORD_RATE", 5),
			ForgotPasswordBurst:     getEnvInt("FORGOT_PASSWORD_BURST", 3),
			TrustProxy:              getEnvBool("TRUST_PROXY", false),
		},
		Client: ClientConfig{
			APIURL:    getEnv("ADB_API_URL", "http://localhost:8080"),
			TokenFile: getEnv("ADB_TOKEN_FILE", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		if _, err := fmt.Sscanf(valueStr, "%d", &value); err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	switch strings.ToLower(strings.TrimSpace(valueStr)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultValue
	}
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	d, err := time.ParseDuration(strings.TrimSpace(valueStr))
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}
