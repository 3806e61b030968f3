package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers       []string
	KafkaGroupID       string
	KafkaIncomingTopic string
	KafkaRoutedTopic   string

	// Document analysis
	AnalysisEndpoint     string
	AnalysisAPIKey       string
	AnalysisModelID      string
	AnalysisAPIVersion   string
	AnalysisPollInterval time.Duration
	AnalysisPollTimeout  time.Duration

	// Referral API
	ReferralEndpoint       string
	ReferralTokenEndpoint  string
	ReferralClientID       string
	ReferralClientSecret   string
	ReferralOrganization   string
	ReferralRequestTimeout time.Duration
	PayloadSchemaPath      string

	// Blob storage
	StorageRegion     string
	StorageEndpoint   string
	IncomingContainer string
	ReviewContainer   string
	PassedContainer   string
	FailedContainer   string

	// Routing
	MinConfidenceScore float64
	FaxTimezone        string
	FieldMappingPath   string
	RulesPath          string

	// Ledger
	LedgerTTL         time.Duration
	ReconcileInterval time.Duration
	ReconcileAfter    time.Duration

	// Notification
	GraphEndpoint      string
	AADEndpoint        string
	TenantID           string
	NotifyClientID     string
	NotifyClientSecret string
	NotifyFromAddress  string
	NotifyRecipients   []string
}

func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 5*time.Minute),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 64*1024)),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "referral"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "referral123"),
		PostgresDB:       getEnv("POSTGRES_DB", "referraldb"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers:       getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:       getEnv("KAFKA_GROUP_ID", "referral-intake"),
		KafkaIncomingTopic: getEnv("KAFKA_INCOMING_TOPIC", "fax-incoming"),
		KafkaRoutedTopic:   getEnv("KAFKA_ROUTED_TOPIC", "referral-routed"),

		AnalysisEndpoint:     getEnv("DOCUMENT_INTELLIGENCE_ENDPOINT", ""),
		AnalysisAPIKey:       getEnv("DOCUMENT_INTELLIGENCE_API_KEY", ""),
		AnalysisModelID:      getEnv("DOCUMENT_INTELLIGENCE_MODEL_ID", ""),
		AnalysisAPIVersion:   getEnv("DOCUMENT_INTELLIGENCE_API_VERSION", "2023-07-31"),
		AnalysisPollInterval: getDuration("DOCUMENT_INTELLIGENCE_POLL_INTERVAL", 2*time.Second),
		AnalysisPollTimeout:  getDuration("DOCUMENT_INTELLIGENCE_POLL_TIMEOUT", 3*time.Minute),

		ReferralEndpoint:       getEnv("ENDPOINT_URI", ""),
		ReferralTokenEndpoint:  getEnv("TOKEN_ENDPOINT_URI", ""),
		ReferralClientID:       getEnv("ENDPOINT_AUTH_USER", ""),
		ReferralClientSecret:   getEnv("ENDPOINT_AUTH_PASS", ""),
		ReferralOrganization:   getEnv("REFERRAL_ORGANIZATION", ""),
		ReferralRequestTimeout: getDuration("REFERRAL_REQUEST_TIMEOUT", 60*time.Second),
		PayloadSchemaPath:      getEnv("PAYLOAD_SCHEMA_PATH", ""),

		StorageRegion:     getEnv("STORAGE_REGION", "ap-southeast-2"),
		StorageEndpoint:   getEnv("STORAGE_ENDPOINT_URL", ""),
		IncomingContainer: getEnv("INCOMING_CONTAINER", "incoming"),
		ReviewContainer:   getEnv("REVIEW_CONTAINER", "review"),
		PassedContainer:   getEnv("PASSED_CONTAINER", "passed"),
		FailedContainer:   getEnv("FAILED_CONTAINER", "failed"),

		MinConfidenceScore: getFloatEnv("MIN_CONFIDENCE_SCORE", 0.8),
		FaxTimezone:        getEnv("FAX_TIMEZONE", "UTC"),
		FieldMappingPath:   getEnv("FIELD_MAPPING_PATH", ""),
		RulesPath:          getEnv("CLASSIFICATION_RULES_PATH", ""),

		LedgerTTL:         getDuration("LEDGER_TTL", 7*24*time.Hour),
		ReconcileInterval: getDuration("RECONCILE_INTERVAL", 10*time.Minute),
		ReconcileAfter:    getDuration("RECONCILE_AFTER", 15*time.Minute),

		GraphEndpoint:      getEnv("GRAPH_ENDPOINT", "https://graph.microsoft.com"),
		AADEndpoint:        getEnv("AAD_ENDPOINT", "https://login.microsoftonline.com"),
		TenantID:           getEnv("TENANT_ID", ""),
		NotifyClientID:     getEnv("CLIENT_ID", ""),
		NotifyClientSecret: getEnv("CLIENT_SECRET", ""),
		NotifyFromAddress:  getEnv("FROM_ADDRESS", ""),
		NotifyRecipients:   getListEnv("EMAIL_TO_ADDRESSES", ";", nil),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	return getListEnv(key, ",", defaultValue)
}

func getListEnv(key, sep string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, sep) {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
