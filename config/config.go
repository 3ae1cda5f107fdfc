package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	TelegramToken string
	MarketAPIURL  string
	DBPath        string
}

// NewConfig creates a new configuration from environment variables
func NewConfig() *Config {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: .env file not found, using default values")
	}

	return &Config{
		TelegramToken: getEnv("TELEGRAM_BOT_TOKEN", "YOUR_TELEGRAM_BOT_TOKEN"),
		MarketAPIURL:  getEnv("MARKET_API_URL", "https://api.hiraya.market"),
		DBPath:        getEnv("DB_PATH", "./subasta.db"),
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
} 