package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

type Config struct {
	ServerPort int
	Env        string
	LogLevel   string
	GatewayURL string

	GatewayTimeout time.Duration
	CORSOrigins    []string

	Database DatabaseConfig
	Session  SessionConfig
	Google   GoogleConfig
	Secrets  SecretsConfig
	MQ       MQConfig
	Storage  StorageConfig
}

type DatabaseConfig struct {
	Driver         string
	Host           string
	Port           int
	User           string
	Password       string
	DBName         string
	UseSSL         bool
	ConnectTimeout time.Duration
}

type SessionConfig struct {
	Secret string
	TTL    time.Duration
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// SecretsConfig holds the key used to seal cluster credentials at rest.
// CredentialsKey is base64 encoded and must decode to 32 bytes.
type SecretsConfig struct {
	CredentialsKey string
}

type MQConfig struct {
	Backend  string
	RabbitMQ RabbitMQConfig
	PubSub   PubSubConfig
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

// IsProduction reports whether cookies must be marked secure.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func LoadConfig() Config {
	env := getEnv("APP_ENV", getEnv("NODE_ENV", "development"))
	if env == "dev" || env == "development" {
		godotenv.Load()
		env = getEnv("APP_ENV", getEnv("NODE_ENV", env))
	}

	driver := strings.ToLower(getEnv("DB_DRIVER", DriverMySQL))
	defaultPort := 3306
	if driver == DriverPostgres {
		defaultPort = 5432
	}

	dbConfig := DatabaseConfig{
		Driver:         driver,
		Host:           getEnv("DB_HOST", "localhost"),
		Port:           getEnvInt("DB_PORT", defaultPort),
		User:           getEnv("DB_USER", "elasticdoctor"),
		Password:       getEnv("DB_PASSWORD", "password"),
		DBName:         getEnv("DB_NAME", "elasticdoctor"),
		UseSSL:         getEnvBool("DB_USE_SSL", false),
		ConnectTimeout: getEnvDuration("DB_CONNECT_TIMEOUT", 10*time.Second),
	}

	return Config{
		ServerPort:     getEnvInt("SERVER_PORT", 8080),
		Env:            env,
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		GatewayURL:     strings.TrimRight(getEnv("GATEWAY_URL", "http://localhost:8000"), "/"),
		GatewayTimeout: getEnvDuration("GATEWAY_TIMEOUT", 10*time.Second),
		CORSOrigins:    getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		Database:       dbConfig,
		Session: SessionConfig{
			Secret: getEnv("SESSION_SECRET", ""),
			TTL:    getEnvDuration("SESSION_TTL", 30*24*time.Hour),
		},
		Google: GoogleConfig{
			ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			RedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8080/api/auth/google/callback"),
		},
		Secrets: SecretsConfig{
			CredentialsKey: getEnv("CLUSTER_CREDENTIALS_KEY", ""),
		},
		MQ: MQConfig{
			Backend: strings.ToLower(getEnv("MQ_BACKEND", "memory")),
			RabbitMQ: RabbitMQConfig{
				URL:             getEnv("RABBITMQ_URL", ""),
				QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
				QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", false),
				PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH_COUNT", 10),
			},
			PubSub: PubSubConfig{
				ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
				CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
				SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
			},
		},
		Storage: StorageConfig{
			Backend: strings.ToLower(getEnv("STORAGE_BACKEND", "none")),
			Minio: MinioConfig{
				Endpoint:  getEnv("MINIO_ENDPOINT", ""),
				AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
				SecretKey: getEnv("MINIO_SECRET_KEY", ""),
				Bucket:    getEnv("MINIO_BUCKET", "elasticdoctor"),
				UseSSL:    getEnvBool("MINIO_USE_SSL", false),
			},
			GCS: GCSConfig{
				Bucket:          getEnv("GCS_BUCKET", ""),
				ProjectID:       getEnv("GCS_PROJECT_ID", ""),
				CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
			},
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
	if valueStr, exists := os.LookupEnv(key); exists {
		switch strings.ToLower(strings.TrimSpace(valueStr)) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := time.ParseDuration(strings.TrimSpace(valueStr))
		if err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	var values []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	return values
}
