package config

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerAddr     string
	MysqlDSN       string
	JWTSecret      string
	Environment    string
	AllowedOrigins string
}

var Cfg *Config

func Load() {
	// A missing .env file is fine, deployments set the environment directly.
	_ = godotenv.Load()

	Cfg = &Config{
		ServerAddr:     ":" + getEnv("PORT", "8080"),
		MysqlDSN:       getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/chatapi?charset=utf8mb4&parseTime=True&loc=Local"),
		JWTSecret:      getEnv("JWT_SECRET", "chatapi-secret-key-change-in-production"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
