package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/casevault/internal/flagx"
)

var allowedFlags = []string{
	"-a", "-http", "-d", "-s", "-l",
	"-storage", "-u", "-p", "-b", "-g", "-e",
	"-namespace", "-max-bytes", "-presign-expiry",
	"-redis", "-nats",
	"-sweep-interval", "-sweep-grace",
}

// parseFlags populates Config fields from command-line flags.
//
// Supported flags:
//
//	-a string             gRPC bind address (e.g., ":8081")
//	-http string          HTTP bind address (e.g., ":8080")
//	-d string             PostgreSQL DSN
//	-s string             JWT HMAC secret key
//	-l string             log level (debug|info|warn|error)
//	-storage string       storage backend (s3|minio)
//	-u string             S3 access key
//	-p string             S3 secret key
//	-b string             S3 bucket name
//	-g string             S3 region
//	-e string             S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-namespace string     object key namespace
//	-max-bytes int        largest accepted upload
//	-presign-expiry dur   presigned PUT lifetime
//	-redis string         Redis address for the shared rate limiter
//	-nats string          NATS URL for version events
//	-sweep-interval dur   intent sweeper period, 0 disables
//	-sweep-grace dur      how long after expiry an intent is swept
//
// os.Args is filtered with flagx.FilterArgs first so flags of other layers
// (-c, -env-file) do not collide.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], allowedFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run gRPC server")
	fs.StringVar(&config.EndpointAddrHTTP, "http", config.EndpointAddrHTTP, "address and port to run HTTP server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	fs.StringVar(&config.StorageBackend, "storage", config.StorageBackend, "storage backend (s3|minio)")
	fs.StringVar(&config.S3AccessKey, "u", config.S3AccessKey, "S3 access key")
	fs.StringVar(&config.S3SecretKey, "p", config.S3SecretKey, "S3 secret key")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	fs.StringVar(&config.KeyNamespace, "namespace", config.KeyNamespace, "object key namespace")
	fs.Int64Var(&config.UploadMaxBytes, "max-bytes", config.UploadMaxBytes, "largest accepted upload in bytes")
	fs.DurationVar(&config.PresignExpiry, "presign-expiry", config.PresignExpiry, "presigned PUT lifetime")

	fs.StringVar(&config.RedisAddr, "redis", config.RedisAddr, "Redis address for rate limiting")
	fs.StringVar(&config.NatsURL, "nats", config.NatsURL, "NATS URL for version events")

	fs.DurationVar(&config.SweepInterval, "sweep-interval", config.SweepInterval, "intent sweeper period")
	fs.DurationVar(&config.SweepGrace, "sweep-grace", config.SweepGrace, "grace after intent expiry")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
