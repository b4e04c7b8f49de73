package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultRefundWindowSeconds = 86400
	DefaultStartingBalance     = 10000
)

// Config regroupe toute la configuration lue depuis l'environnement
type Config struct {
	Port     string
	LogLevel string
	GinMode  string

	// "scylla" (défaut), "postgres" ou "memory"
	StoreDriver string

	ScyllaHosts         []string
	ScyllaKeyspace      string
	ScyllaAuditKeyspace string
	ScyllaUsername      string
	ScyllaPassword      string
	ScyllaAutoMigrate   bool

	PostgresDSN         string
	PostgresAutoMigrate bool

	RedisHost     string
	RedisPassword string

	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOUseSSL    bool

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	SessionSecret string
	SessionSecure bool
	JWTSecret     string
	CORSOrigins   []string

	RefundWindow           time.Duration
	StartingBalance        int64
	RequireReturnOwnership bool
}

// Load charge le fichier .env s'il existe puis lit la configuration
func Load() Config {
	err := godotenv.Load(".env")
	if err != nil {
		log.Println("⚠️  Aucun fichier .env trouvé, on continue avec les variables d'environnement du système")
	} else {
		log.Println("✅ Fichier .env chargé avec succès")
	}
	return FromEnv()
}

// FromEnv lit la configuration sans toucher au fichier .env
func FromEnv() Config {
	return Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		GinMode:  getEnv("GIN_MODE", "release"),

		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", "scylla")),

		ScyllaHosts:         getEnvAsList("SCYLLA_HOSTS", []string{"127.0.0.1"}),
		ScyllaKeyspace:      getEnv("SCYLLA_KEYSPACE", "ks_shop"),
		ScyllaAuditKeyspace: getEnv("SCYLLA_AUDIT_KEYSPACE", ""),
		ScyllaUsername:      getEnv("SCYLLA_USERNAME", ""),
		ScyllaPassword:      getEnv("SCYLLA_PASSWORD", ""),
		ScyllaAutoMigrate:   getEnvAsBool("SCYLLA_AUTO_MIGRATE", false),

		PostgresDSN:         getEnv("POSTGRES_DSN", ""),
		PostgresAutoMigrate: getEnvAsBool("POSTGRES_AUTO_MIGRATE", true),

		RedisHost:     getEnv("REDIS_HOST", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		MinIOEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinIOBucket:    getEnv("MINIO_BUCKET", "shop-images"),
		MinIOUseSSL:    getEnvAsBool("MINIO_USE_SSL", false),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@localhost"),

		SessionSecret: getEnv("SESSION_SECRET", ""),
		SessionSecure: getEnvAsBool("SESSION_SECURE", false),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		CORSOrigins:   getEnvAsList("CORS_ORIGINS", nil),

		RefundWindow:           time.Duration(getEnvAsInt("REFUND_WINDOW_SECONDS", DefaultRefundWindowSeconds)) * time.Second,
		StartingBalance:        int64(getEnvAsInt("STARTING_BALANCE", DefaultStartingBalance)),
		RequireReturnOwnership: getEnvAsBool("RETURN_REQUIRE_OWNERSHIP", true),
	}
}

// Validate vérifie les clés indispensables au démarrage
func (c Config) Validate() []string {
	var problems []string
	if c.SessionSecret == "" {
		problems = append(problems, "SESSION_SECRET manquant")
	}
	if c.JWTSecret == "" {
		problems = append(problems, "JWT_SECRET manquant")
	}
	switch c.StoreDriver {
	case "scylla":
		if len(c.ScyllaHosts) == 0 || c.ScyllaKeyspace == "" {
			problems = append(problems, "SCYLLA_HOSTS / SCYLLA_KEYSPACE manquants")
		}
		// les verrous de ligne passent par redis
		if c.RedisHost == "" {
			problems = append(problems, "REDIS_HOST manquant (requis par STORE_DRIVER=scylla)")
		}
	case "postgres":
		if c.PostgresDSN == "" {
			problems = append(problems, "POSTGRES_DSN manquant")
		}
	case "memory":
	default:
		problems = append(problems, "STORE_DRIVER inconnu: "+c.StoreDriver)
	}
	if c.RefundWindow < 0 {
		problems = append(problems, "REFUND_WINDOW_SECONDS négatif")
	}
	if c.StartingBalance < 0 {
		problems = append(problems, "STARTING_BALANCE négatif")
	}
	return problems
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultVal int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	valStr := getEnv(key, "")
	if val, err := strconv.ParseBool(valStr); err == nil {
		return val
	}
	return defaultVal
}

func getEnvAsList(key string, defaultVal []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
