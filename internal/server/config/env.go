package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "CLOUDVAULT_"

// dotenvFile is a var so tests can point it elsewhere.
var dotenvFile = ".env"

// parseEnv loads dotenvFile (when present) into the process environment
// without overriding variables that are already set, then copies every
// CLOUDVAULT_* variable it knows about into config.
func parseEnv(config *Config) error {
	if err := godotenv.Load(dotenvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", dotenvFile, err)
	}

	var errs []error
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = b
		}
	}

	str("HTTP_ADDR", &config.HTTPAddr)
	str("GRPC_ADDR", &config.GRPCAddr)
	str("DATABASE_DSN", &config.DatabaseDSN)
	str("S3_ACCESS_KEY", &config.S3AccessKey)
	str("S3_SECRET_KEY", &config.S3SecretKey)
	str("S3_BUCKET", &config.S3Bucket)
	str("S3_REGION", &config.S3Region)
	str("S3_BASE_ENDPOINT", &config.S3BaseEndpoint)
	str("JWT_SECRET", &config.JWTSecret)
	str("JWKS_URL", &config.JWKSURL)
	str("ISSUER", &config.Issuer)
	str("KAFKA_TOPIC", &config.KafkaTopic)
	str("KAFKA_GROUP_ID", &config.KafkaGroupID)
	str("REDIS_ADDR", &config.RedisAddr)
	str("LOG_LEVEL", &config.LogLevel)
	dur("TOKEN_CACHE_TTL", &config.TokenCacheTTL)
	dur("METADATA_TIMEOUT", &config.MetadataTimeout)
	dur("BLOB_TIMEOUT", &config.BlobTimeout)
	dur("PRESIGN_TTL", &config.PresignTTL)
	boolean("ENFORCE_QUOTA", &config.EnforceQuota)
	boolean("MEMORY_BACKEND", &config.MemoryBackend)

	if v, ok := os.LookupEnv(envPrefix + "KAFKA_BROKERS"); ok {
		config.KafkaBrokers = splitList(v)
	}
	if v, ok := os.LookupEnv(envPrefix + "TOKEN_CACHE_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sTOKEN_CACHE_SIZE: %w", envPrefix, err))
		} else {
			config.TokenCacheSize = n
		}
	}
	if v, ok := os.LookupEnv(envPrefix + "DEFAULT_STORAGE_LIMIT"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sDEFAULT_STORAGE_LIMIT: %w", envPrefix, err))
		} else {
			config.DefaultStorageLimit = n
		}
	}

	return errors.Join(errs...)
}

// splitList turns "a, b,,c" into [a b c].
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
