package config

import (
	"os"
	"strconv"
)

type Config struct {
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	RedisHost     string
	RedisPort     string
	EtcdEndpoints []string

	// CapacitySweepInterval paces cmd/scheduler's periodic capacity/risk
	// sweep and orphaned-plan-task reconciliation.
	CapacitySweepInterval string
	LeaderElectionTTL     int
	APIPort               string

	// Auth settings
	JWTSecret   string
	JWTIssuer   string
	AuthEnabled bool

	// Tracing
	TracingEnabled  bool
	TracingEndpoint string

	// Artifact export storage: "local" or "s3"
	ArtifactBackend string
	ArtifactDir     string
	S3Bucket        string
	S3Region        string
	S3Endpoint      string
	S3AccessKeyID   string
	S3SecretKey     string
}

func LoadConfig() *Config {
	return &Config{
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "5432"),
		DBUser:        getEnv("DB_USER", "planner"),
		DBPassword:    getEnv("DB_PASSWORD", "password"),
		DBName:        getEnv("DB_NAME", "planner"),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		EtcdEndpoints: []string{getEnv("ETCD_ENDPOINTS", "localhost:2379")},

		CapacitySweepInterval: getEnv("CAPACITY_SWEEP_INTERVAL", "5m"),
		LeaderElectionTTL:     getEnvAsInt("LEADER_ELECTION_TTL", 15),
		APIPort:               getEnv("API_PORT", "8080"),

		JWTSecret:   getEnv("JWT_SECRET", ""),
		JWTIssuer:   getEnv("JWT_ISSUER", "sij-manager"),
		AuthEnabled: getEnvAsBool("AUTH_ENABLED", false),

		TracingEnabled:  getEnvAsBool("TRACING_ENABLED", false),
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),

		ArtifactBackend: getEnv("ARTIFACT_BACKEND", "local"),
		ArtifactDir:     getEnv("ARTIFACT_DIR", "/var/lib/planner/exports"),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Region:        getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:      getEnv("S3_ENDPOINT", ""),
		S3AccessKeyID:   getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretKey:     getEnv("S3_SECRET_ACCESS_KEY", ""),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	return valueStr == "true" || valueStr == "1" || valueStr == "yes"
}
