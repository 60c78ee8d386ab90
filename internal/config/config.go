package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Host string
	Env  string

	// MongoDB
	MongoURI     string
	DatabaseName string
	MongoTimeout int

	// JWT
	JWTSecret     string
	JWTExpiration int

	// Notification gateways (empty disables the channel)
	EmailGatewayURL  string
	SMSGatewayURL    string
	TransportTimeout int

	// Geocoding service for coordinate validation
	GeocodeURL     string
	GeocodeTimeout int

	// Event queue
	EventQueueSize int

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	config := &Config{
		Port:              getEnv("PORT", "8080"),
		Host:              getEnv("HOST", "0.0.0.0"),
		Env:               getEnv("ENV", "development"),
		MongoURI:          getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DatabaseName:      getEnv("DATABASE_NAME", "relieflink"),
		MongoTimeout:      getEnvAsInt("MONGO_TIMEOUT", 10),
		JWTSecret:         getEnv("JWT_SECRET", "your-secret-key"),
		JWTExpiration:     getEnvAsInt("JWT_EXPIRATION", 24), // hours
		EmailGatewayURL:   getEnv("EMAIL_GATEWAY_URL", ""),
		SMSGatewayURL:     getEnv("SMS_GATEWAY_URL", ""),
		TransportTimeout:  getEnvAsInt("TRANSPORT_TIMEOUT", 10), // seconds
		GeocodeURL:        getEnv("GEOCODE_URL", ""),
		GeocodeTimeout:    getEnvAsInt("GEOCODE_TIMEOUT", 5), // seconds
		EventQueueSize:    getEnvAsInt("EVENT_QUEUE_SIZE", 256),
		RateLimitRequests: getEnvAsInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   getEnvAsInt("RATE_LIMIT_WINDOW", 60), // seconds
	}

	return config
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
