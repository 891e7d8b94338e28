package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/cloudvault/internal/flagx"
	"github.com/dmitrijs2005/cloudvault/internal/timex"
)

// JsonConfig is the on-disk shape of the JSON overlay. Pointer and zero
// values mean "not set"; only fields present in the file override config.
// Durations use timex.Duration so both "30s" and integer nanoseconds work.
type JsonConfig struct {
	HTTPAddr            string          `json:"http_addr"`
	GRPCAddr            string          `json:"grpc_addr"`
	DatabaseDSN         string          `json:"database_dsn"`
	S3AccessKey         string          `json:"s3_access_key"`
	S3SecretKey         string          `json:"s3_secret_key"`
	S3Bucket            string          `json:"s3_bucket"`
	S3Region            string          `json:"s3_region"`
	S3BaseEndpoint      string          `json:"s3_base_endpoint"`
	JWTSecret           string          `json:"jwt_secret"`
	JWKSURL             string          `json:"jwks_url"`
	Issuer              string          `json:"issuer"`
	TokenCacheSize      int             `json:"token_cache_size"`
	TokenCacheTTL       *timex.Duration `json:"token_cache_ttl"`
	KafkaBrokers        []string        `json:"kafka_brokers"`
	KafkaTopic          string          `json:"kafka_topic"`
	KafkaGroupID        string          `json:"kafka_group_id"`
	RedisAddr           string          `json:"redis_addr"`
	DefaultStorageLimit int64           `json:"default_storage_limit"`
	EnforceQuota        *bool           `json:"enforce_quota"`
	MetadataTimeout     *timex.Duration `json:"metadata_timeout"`
	BlobTimeout         *timex.Duration `json:"blob_timeout"`
	PresignTTL          *timex.Duration `json:"presign_ttl"`
	MemoryBackend       *bool           `json:"memory_backend"`
	LogLevel            string          `json:"log_level"`
}

// parseJson overlays a JSON config file onto config. The file is located via
// the -c / -config flags in args, falling back to CLOUDVAULT_CONFIG; when
// neither is set nothing is loaded.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigPath(args, envPrefix+"CONFIG")
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	c.apply(config)
	return nil
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.GRPCAddr, c.GRPCAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.JWTSecret, c.JWTSecret)
	setString(&config.JWKSURL, c.JWKSURL)
	setString(&config.Issuer, c.Issuer)
	setString(&config.KafkaTopic, c.KafkaTopic)
	setString(&config.KafkaGroupID, c.KafkaGroupID)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.LogLevel, c.LogLevel)

	if c.TokenCacheSize > 0 {
		config.TokenCacheSize = c.TokenCacheSize
	}
	if len(c.KafkaBrokers) > 0 {
		config.KafkaBrokers = c.KafkaBrokers
	}
	if c.DefaultStorageLimit > 0 {
		config.DefaultStorageLimit = c.DefaultStorageLimit
	}
	if c.TokenCacheTTL != nil {
		config.TokenCacheTTL = c.TokenCacheTTL.Duration
	}
	if c.MetadataTimeout != nil {
		config.MetadataTimeout = c.MetadataTimeout.Duration
	}
	if c.BlobTimeout != nil {
		config.BlobTimeout = c.BlobTimeout.Duration
	}
	if c.PresignTTL != nil {
		config.PresignTTL = c.PresignTTL.Duration
	}
	if c.EnforceQuota != nil {
		config.EnforceQuota = *c.EnforceQuota
	}
	if c.MemoryBackend != nil {
		config.MemoryBackend = *c.MemoryBackend
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
