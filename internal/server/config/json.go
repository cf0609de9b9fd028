package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/casevault/internal/flagx"
	"github.com/dmitrijs2005/casevault/internal/timex"
)

// JsonConfig is the DTO read from the JSON config file. Duration fields
// accept strings such as "10m" or integer nanoseconds. Absent fields leave
// the current value alone.
type JsonConfig struct {
	EndpointAddrGRPC string `json:"endpoint_addr_grpc"`
	EndpointAddrHTTP string `json:"endpoint_addr_http"`
	DatabaseDSN      string `json:"database_dsn"`
	SecretKey        string `json:"secret_key"`
	LogLevel         string `json:"log_level"`

	StorageBackend string `json:"storage_backend"`
	S3AccessKey    string `json:"s3_access_key"`
	S3SecretKey    string `json:"s3_secret_key"`
	S3Bucket       string `json:"s3_bucket"`
	S3Region       string `json:"s3_region"`
	S3BaseEndpoint string `json:"s3_base_endpoint"`

	KeyNamespace      string          `json:"key_namespace"`
	UploadMaxBytes    int64           `json:"upload_max_bytes"`
	PresignExpiry     *timex.Duration `json:"presign_expiry"`
	DownloadExpiry    *timex.Duration `json:"download_expiry"`
	HeadRetryAttempts int             `json:"head_retry_attempts"`
	HeadRetryBackoff  *timex.Duration `json:"head_retry_backoff"`

	RateLimit       int             `json:"rate_limit"`
	RateLimitWindow *timex.Duration `json:"rate_limit_window"`
	RedisAddr       string          `json:"redis_addr"`
	NatsURL         string          `json:"nats_url"`

	SweepInterval  *timex.Duration `json:"sweep_interval"`
	SweepGrace     *timex.Duration `json:"sweep_grace"`
	SweepBatchSize int             `json:"sweep_batch_size"`
}

// parseJson overlays values from the JSON file named by -c or -config.
// Without the flag nothing is loaded. An unreadable or invalid file panics.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.LogLevel, c.LogLevel)

	setString(&config.StorageBackend, c.StorageBackend)
	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)

	setString(&config.KeyNamespace, c.KeyNamespace)
	if c.UploadMaxBytes != 0 {
		config.UploadMaxBytes = c.UploadMaxBytes
	}
	setDuration(&config.PresignExpiry, c.PresignExpiry)
	setDuration(&config.DownloadExpiry, c.DownloadExpiry)
	setInt(&config.HeadRetryAttempts, c.HeadRetryAttempts)
	setDuration(&config.HeadRetryBackoff, c.HeadRetryBackoff)

	setInt(&config.RateLimit, c.RateLimit)
	setDuration(&config.RateLimitWindow, c.RateLimitWindow)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.NatsURL, c.NatsURL)

	setDuration(&config.SweepInterval, c.SweepInterval)
	setDuration(&config.SweepGrace, c.SweepGrace)
	setInt(&config.SweepBatchSize, c.SweepBatchSize)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

// setDuration applies d when the key was present, so "0s" can disable
// the sweeper.
func setDuration(dst *time.Duration, d *timex.Duration) {
	if d != nil {
		*dst = d.Duration
	}
}
