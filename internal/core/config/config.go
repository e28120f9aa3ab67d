package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds the gateway's full runtime configuration, read once at
// startup from the environment variables listed in the sidecar/forward
// wire contract.
type Config struct {
	ForwardBind         string
	ForwardPort         int
	ForwardForceLocal   bool
	ForwardConcurrency  int
	ForwardRateRPS      int
	ForwardRateBurst    int

	ForwardSSL        bool
	ForwardSSLCert    string
	ForwardSSLKey     string
	ForwardSSLRefresh bool

	ElevBase      string
	ElevDataset   string
	ElevTimeoutMS int

	NKNIdentifier   string
	NKNSeed         string
	NKNSeedFile     string
	NKNSubclients   int
	NKNSendDelayMS  int
	NKNSendQueueMax int
	ChunkLimitBytes int

	RedisAddr   string
	RedisPrefix string

	LogLevel string
}

func FromEnv() Config {
	return Config{
		ForwardBind:        getenv("FORWARD_BIND", "0.0.0.0"),
		ForwardPort:        getint("FORWARD_PORT", 9011),
		ForwardForceLocal:  getenv("FORWARD_FORCE_LOCAL", "0") == "1",
		ForwardConcurrency: clamp(getint("FORWARD_CONCURRENCY", 4), 1, 4),
		ForwardRateRPS:     clamp(getint("FORWARD_RATE_RPS", 6), 1, 6),
		ForwardRateBurst:   clamp(getint("FORWARD_RATE_BURST", 12), 1, 12),

		ForwardSSL:        getenv("FORWARD_SSL", "0") == "1",
		ForwardSSLCert:    getenv("FORWARD_SSL_CERT", "tls/cert.pem"),
		ForwardSSLKey:     getenv("FORWARD_SSL_KEY", "tls/key.pem"),
		ForwardSSLRefresh: getenv("FORWARD_SSL_REFRESH", "0") == "1",

		ElevBase:      strings.TrimSuffix(getenv("ELEV_BASE", "http://localhost:5000"), "/"),
		ElevDataset:   getenv("ELEV_DATASET", "mapzen"),
		ElevTimeoutMS: getint("ELEV_TIMEOUT_MS", 10000),

		NKNIdentifier:   getenv("NKN_IDENTIFIER", "forwarder"),
		NKNSeed:         strings.TrimSpace(os.Getenv("NKN_SEED")),
		NKNSeedFile:     getenv("NKN_SEED_FILE", "sidecar/nkn.seed"),
		NKNSubclients:   clamp(getint("NKN_SUBCLIENTS", 2), 1, 4),
		NKNSendDelayMS:  maxint(getint("NKN_SEND_DELAY_MS", 250), 0),
		NKNSendQueueMax: maxint(getint("NKN_SEND_QUEUE_MAX", 256), 32),
		ChunkLimitBytes: maxint(getint("DM_CHUNK_LIMIT_BYTES", 1024), 0),

		RedisAddr:   strings.TrimSpace(os.Getenv("FORWARD_REDIS_ADDR")),
		RedisPrefix: getenv("FORWARD_REDIS_PREFIX", "fwd:"),

		LogLevel: getenv("LOG_LEVEL", "info"),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxint(v, lo int) int {
	if v < lo {
		return lo
	}
	return v
}
