package config

import (
	"os"
	"strings"
)

// parseEnv overlays the few settings that deployment platforms usually
// inject as environment variables. godotenv may have populated them from a
// local .env file before this runs.
func parseEnv(config *Config) {
	if port := os.Getenv("PORT"); port != "" {
		config.EndpointAddrHTTP = ":" + port
	}
	setString(&config.DatabaseDSN, os.Getenv("DATABASE_URL"))
	setString(&config.SecretKey, os.Getenv("SECRET_KEY"))
	setString(&config.AMQPURL, os.Getenv("AMQP_URL"))
	setString(&config.SMSGatewayToken, os.Getenv("SMS_GATEWAY_TOKEN"))

	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		config.CORSAllowedOrigins = nil
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				config.CORSAllowedOrigins = append(config.CORSAllowedOrigins, o)
			}
		}
	}
}
