package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/claimgate/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   HMAC secret for claim authorization tokens
//	-l string   log level
//	-o int      OTP validity / cooldown, seconds
//	-t int      claim authorization token validity, seconds
//	-q int      distinct signatures required per claim
//	-m string   SMS driver: log, http or amqp
//	-g string   SMS gateway URL
//	-k string   SMS gateway bearer token
//	-r string   AMQP broker URL
//	-n string   AMQP queue for outbound SMS
//	-w int      SMS send timeout, seconds
//
// Only the flags listed above are taken from os.Args (see flagx.FilterArgs),
// so the config file flag does not collide with them.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-l", "-o", "-t", "-q", "-m", "-g", "-k", "-r", "-n", "-w"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	otpValidity := fs.Int("o", int(config.OTPValidity.Seconds()), "otp validity (in seconds)")
	tokenValidity := fs.Int("t", int(config.AuthTokenValidity.Seconds()), "claim authorization token validity (in seconds)")

	fs.IntVar(&config.RequiredSignatures, "q", config.RequiredSignatures, "signatures required per claim")
	fs.StringVar(&config.SMSDriver, "m", config.SMSDriver, "sms driver (log, http, amqp)")
	fs.StringVar(&config.SMSGatewayURL, "g", config.SMSGatewayURL, "sms gateway url")
	fs.StringVar(&config.SMSGatewayToken, "k", config.SMSGatewayToken, "sms gateway token")
	fs.StringVar(&config.AMQPURL, "r", config.AMQPURL, "amqp broker url")
	fs.StringVar(&config.SMSQueue, "n", config.SMSQueue, "amqp sms queue")

	smsTimeout := fs.Int("w", int(config.SMSTimeout.Seconds()), "sms send timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.OTPValidity = time.Duration(*otpValidity) * time.Second
	config.AuthTokenValidity = time.Duration(*tokenValidity) * time.Second
	config.SMSTimeout = time.Duration(*smsTimeout) * time.Second
}
