package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Task storage backends
const (
	BackendMemory    = "memory"
	BackendPostgres  = "postgres"
	BackendFirestore = "firestore"
)

// Session token verifiers
const (
	AuthJWT      = "jwt"
	AuthFirebase = "firebase"
)

// Lifecycle event transports
const (
	EventsNone   = "none"
	EventsPubSub = "pubsub"
	EventsNATS   = "nats"
)

type Config struct {
	Port      string
	JWTSecret string
	// AuthProvider selects how bearer tokens are verified: jwt or firebase
	AuthProvider string

	TaskBackend string
	DatabaseURL string

	FirebaseProjectID   string
	FirebaseCredentials string

	EventsBackend     string
	GoogleProjectID   string
	GooglePubSubTopic string
	GoogleCredentials string
	NATSURL           string
	NATSSubject       string

	ReminderEnabled  bool
	ReminderInterval time.Duration
	// ReminderHour is the local hour after which the daily reminder may go out
	ReminderHour   int
	QuickViewLimit int
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:                getEnv("PORT", "8080"),
		JWTSecret:           getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		AuthProvider:        strings.ToLower(getEnv("AUTH_PROVIDER", AuthJWT)),
		TaskBackend:         strings.ToLower(getEnv("TASK_BACKEND", BackendMemory)),
		DatabaseURL:         getEnv("DATABASE_URL", "host=localhost user=postgres password=postgres dbname=plantpal port=5432 sslmode=disable"),
		FirebaseProjectID:   getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseCredentials: getEnv("FIREBASE_CREDENTIALS", ""),
		EventsBackend:       strings.ToLower(getEnv("EVENTS_BACKEND", EventsNone)),
		GoogleProjectID:     getEnv("GOOGLE_PROJECT_ID", ""),
		GooglePubSubTopic:   getEnv("GOOGLE_PUBSUB_TOPIC", "task-events"),
		GoogleCredentials:   getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		NATSURL:             getEnv("NATS_URL", "nats://127.0.0.1:4222"),
		NATSSubject:         getEnv("NATS_SUBJECT", "plantpal.tasks"),
		ReminderEnabled:     getEnvBool("REMINDER_ENABLED", true),
		ReminderInterval:    getEnvDuration("REMINDER_INTERVAL", 15*time.Minute),
		ReminderHour:        getEnvInt("REMINDER_HOUR", 9),
		QuickViewLimit:      getEnvInt("QUICK_VIEW_LIMIT", 3),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
		log.Printf("[Config] Invalid duration for %s: %q, using %s", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
		log.Printf("[Config] Invalid integer for %s: %q, using %d", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
