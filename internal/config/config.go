package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values. Each field corresponds to an
// environment variable. Values are read once at startup; there is no hot
// reload.
type Config struct {
	Env   string // application environment (e.g. "dev", "prod")
	Port  string // HTTP port to listen on
	Debug bool   // when true, error responses include internal detail

	// Database backend selection. DatabaseType is either "mysql" or "mongo";
	// the rest of the fields configure whichever backend is selected.
	DatabaseType string
	DBUser       string
	DBPass       string
	DBHost       string
	DBPort       string
	DBName       string
	MongoURL     string

	// Redis backs the token revocation registry so that revocations are
	// visible across server instances.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshTTLDays int    // refresh token time-to-live in days

	BcryptCost        int // bcrypt cost for password hashing
	PasswordMinLength int // minimum accepted password length

	Enable2FA  bool   // whether TOTP enrollment endpoints are active
	TOTPIssuer string // issuer label embedded in provisioning URIs

	RabbitURL string // AMQP broker for domain events (optional)

	// Payment gateway boundary.
	PaymentBaseURL       string
	PaymentAPIKey        string
	PaymentWebhookSecret string
}

// Load reads configuration from the environment. A .env file is loaded first
// when present. Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("config: no .env file loaded: %v", err)
	}

	cfg := Config{
		Env:   getenv("APP_ENV", "dev"),
		Port:  getenv("APP_PORT", "8080"),
		Debug: getbool("DEBUG", false),

		DatabaseType: getenv("DATABASE_TYPE", "mysql"),
		DBUser:       os.Getenv("DB_USER"),
		DBPass:       os.Getenv("DB_PASS"),
		DBHost:       getenv("DB_HOST", "localhost"),
		DBPort:       getenv("DB_PORT", "3306"),
		DBName:       getenv("DB_NAME", "school_management"),
		MongoURL:     os.Getenv("MONGO_URL"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getint("REDIS_DB", 0),

		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   getint("ACCESS_TOKEN_TTL_MIN", 30),
		RefreshTTLDays: getint("REFRESH_TOKEN_TTL_DAYS", 7),

		BcryptCost:        getint("BCRYPT_COST", 12),
		PasswordMinLength: getint("PASSWORD_MIN_LENGTH", 8),

		Enable2FA:  getbool("ENABLE_2FA", true),
		TOTPIssuer: getenv("TOTP_ISSUER", "School Management System"),

		RabbitURL: os.Getenv("RABBITMQ_URL"),

		PaymentBaseURL:       os.Getenv("PAYMENT_BASE_URL"),
		PaymentAPIKey:        os.Getenv("PAYMENT_API_KEY"),
		PaymentWebhookSecret: os.Getenv("PAYMENT_WEBHOOK_SECRET"),
	}

	switch cfg.DatabaseType {
	case "mysql":
		if cfg.DBUser == "" {
			log.Fatal("config: DB_USER is required when DATABASE_TYPE=mysql")
		}
	case "mongo":
		if cfg.MongoURL == "" {
			log.Fatal("config: MONGO_URL is required when DATABASE_TYPE=mongo")
		}
	default:
		log.Fatalf("config: unsupported DATABASE_TYPE: %q", cfg.DatabaseType)
	}

	return cfg
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// getenv returns the variable's value or a default when unset.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getint is like getenv but converts the value into an integer.
func getint(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

// getbool treats "true" and "1" as true, "false" and "0" as false.
func getbool(key string, def bool) bool {
	switch os.Getenv(key) {
	case "true", "1":
		return true
	case "false", "0":
		return false
	default:
		return def
	}
}
