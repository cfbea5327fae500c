package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/claimgate/internal/flagx"
	"github.com/dmitrijs2005/claimgate/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Durations use
// timex.Duration so both "15m" and integer nanoseconds are accepted.
type JsonConfig struct {
	EndpointAddrHTTP   string         `json:"endpoint_addr_http"`
	DatabaseDSN        string         `json:"database_dsn"`
	SecretKey          string         `json:"secret_key"`
	LogLevel           string         `json:"log_level"`
	OTPValidity        timex.Duration `json:"otp_validity"`
	AuthTokenValidity  timex.Duration `json:"auth_token_validity"`
	RequiredSignatures int            `json:"required_signatures"`
	SMSDriver          string         `json:"sms_driver"`
	SMSGatewayURL      string         `json:"sms_gateway_url"`
	SMSGatewayToken    string         `json:"sms_gateway_token"`
	AMQPURL            string         `json:"amqp_url"`
	SMSQueue           string         `json:"sms_queue"`
	SMSTimeout         timex.Duration `json:"sms_timeout"`
	ShutdownTimeout    timex.Duration `json:"shutdown_timeout"`
	CORSAllowedOrigins []string       `json:"cors_allowed_origins"`
}

// parseJson overlays config with the JSON file named by -c/-config (or
// $CONFIG). Keys absent from the file leave the current value untouched.
// An unreadable or malformed file panics.
func parseJson(config *Config) {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.SMSDriver, c.SMSDriver)
	setString(&config.SMSGatewayURL, c.SMSGatewayURL)
	setString(&config.SMSGatewayToken, c.SMSGatewayToken)
	setString(&config.AMQPURL, c.AMQPURL)
	setString(&config.SMSQueue, c.SMSQueue)

	if c.OTPValidity.Duration > 0 {
		config.OTPValidity = c.OTPValidity.Duration
	}
	if c.AuthTokenValidity.Duration > 0 {
		config.AuthTokenValidity = c.AuthTokenValidity.Duration
	}
	if c.SMSTimeout.Duration > 0 {
		config.SMSTimeout = c.SMSTimeout.Duration
	}
	if c.ShutdownTimeout.Duration > 0 {
		config.ShutdownTimeout = c.ShutdownTimeout.Duration
	}
	if len(c.CORSAllowedOrigins) > 0 {
		config.CORSAllowedOrigins = c.CORSAllowedOrigins
	}
	if c.RequiredSignatures > 0 {
		config.RequiredSignatures = c.RequiredSignatures
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
