package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerAddress string
	JWTSecret     string
	JWTExpiration time.Duration

	// Empty MongoURI selects the in-memory services.
	MongoURI string
	MongoDB  string

	SendGridAPIKey string
	MailFromEmail  string
	MailFromName   string

	AdminEmail    string
	CaptchaSecret string

	UploadDir       string
	MaxUploadSizeMB int64
	DataDir         string
}

func Load() *Config {
	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err == nil {
		log.Println("loaded environment from .env")
	}

	return &Config{
		ServerAddress:   getEnv("SERVER_ADDRESS", ":8080"),
		JWTSecret:       getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		JWTExpiration:   getEnvDuration("JWT_EXPIRATION", 24*time.Hour),
		MongoURI:        getEnv("MONGODB_URI", ""),
		MongoDB:         getEnv("MONGODB_DATABASE", "campusfound"),
		SendGridAPIKey:  getEnv("SENDGRID_API_KEY", ""),
		MailFromEmail:   getEnv("MAIL_FROM_EMAIL", ""),
		MailFromName:    getEnv("MAIL_FROM_NAME", "CampusFound"),
		AdminEmail:      getEnv("ADMIN_EMAIL", ""),
		CaptchaSecret:   getEnv("CAPTCHA_SECRET", ""),
		UploadDir:       getEnv("UPLOAD_DIR", "./uploads"),
		MaxUploadSizeMB: getEnvInt64("MAX_UPLOAD_SIZE_MB", 10),
		DataDir:         getEnv("DATA_DIR", "./data"),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
		log.Printf("invalid %s=%q, using default %d", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("invalid %s=%q, using default %s", key, value, defaultValue)
	}
	return defaultValue
}
