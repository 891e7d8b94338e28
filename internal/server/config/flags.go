package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/cloudvault/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-ga string  gRPC bind address (e.g., ":50051")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret
//	-j string   JWKS URL of the identity provider
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint
//	-k string   comma-separated Kafka brokers
//	-r string   Redis address
//	-l string   log level
//	-q bool     enforce storage quota as a hard cap
//	-m bool     use in-memory stores
//
// args are filtered through flagx.FilterArgs first, so flags owned by other
// layers (such as -c) do not trip the parser.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{
		"-a", "-ga", "-d", "-s", "-j", "-b", "-g", "-e", "-k", "-r", "-l", "-q", "-m",
	})

	fs := flag.NewFlagSet("cloudvault", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "HTTP address and port")
	fs.StringVar(&config.GRPCAddr, "ga", config.GRPCAddr, "gRPC address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.JWTSecret, "s", config.JWTSecret, "JWT HMAC secret")
	fs.StringVar(&config.JWKSURL, "j", config.JWKSURL, "JWKS URL")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	brokers := fs.String("k", "", "Kafka brokers, comma separated")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "Redis address")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.BoolVar(&config.EnforceQuota, "q", config.EnforceQuota, "enforce storage quota")
	fs.BoolVar(&config.MemoryBackend, "m", config.MemoryBackend, "in-memory backend")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *brokers != "" {
		config.KafkaBrokers = splitList(*brokers)
	}
	return nil
}
