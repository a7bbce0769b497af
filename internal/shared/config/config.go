package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultMaxUploadBytes = 50 << 20
)

// Config holds application configuration.
type Config struct {
	Port             string
	Env              string
	CORSAllowOrigin  []string
	LogLevel         string
	Agent1URL        string
	Agent2URL        string
	Agent3URL        string
	Agent1Timeout    time.Duration
	Agent2Timeout    time.Duration
	Agent3Timeout    time.Duration
	ProbeTimeout     time.Duration
	EncryptionKeyHex string
	EncryptionMode   string
	MaxUploadBytes   int64
	EventsScoped     bool
	ObjectStoreType  string
	LocalStoreDir    string
	AWSRegion        string
	S3Bucket         string
	S3Prefix         string
	S3Endpoint       string
	S3AccessKeyID    string
	S3SecretKey      string
	SSEKMSKeyID      string
	DatabaseURL      string
}

// Load reads configuration from environment variables with sensible defaults.
// Values from the YAML file named by CONFIG_FILE act as defaults that the
// environment can still override.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	file := fileConfig{}
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		loaded, err := loadFile(path)
		if err != nil {
			log.Printf("config file %s ignored: %v", path, err)
		} else {
			file = loaded
		}
	}

	return Config{
		Port:             getEnv("PORT", orDefault(file.Port, "8080")),
		Env:              normalizeEnv(getEnv("ENV", "dev")),
		CORSAllowOrigin:  splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		LogLevel:         getEnv("LOG_LEVEL", orDefault(file.LogLevel, "info")),
		Agent1URL:        trimURL(getEnv("AGENT1_URL", orDefault(file.Agents.Analyzer.URL, "http://localhost:8001"))),
		Agent2URL:        trimURL(getEnv("AGENT2_URL", orDefault(file.Agents.Reviewer.URL, "http://localhost:8002"))),
		Agent3URL:        trimURL(getEnv("AGENT3_URL", orDefault(file.Agents.Synthesizer.URL, "http://localhost:8003"))),
		Agent1Timeout:    getDuration("AGENT1_TIMEOUT", orDuration(file.Agents.Analyzer.Timeout, 300*time.Second)),
		Agent2Timeout:    getDuration("AGENT2_TIMEOUT", orDuration(file.Agents.Reviewer.Timeout, 30*time.Second)),
		Agent3Timeout:    getDuration("AGENT3_TIMEOUT", orDuration(file.Agents.Synthesizer.Timeout, 120*time.Second)),
		ProbeTimeout:     getDuration("AGENT_PROBE_TIMEOUT", orDuration(file.Agents.ProbeTimeout, 3*time.Second)),
		EncryptionKeyHex: strings.TrimSpace(os.Getenv("ENCRYPTION_KEY")),
		EncryptionMode:   strings.ToLower(getEnv("ENCRYPTION_MODE", "cbc")),
		MaxUploadBytes:   getInt64("MAX_UPLOAD_BYTES", defaultMaxUploadBytes),
		EventsScoped:     getBool("EVENTS_SCOPED", false),
		ObjectStoreType:  normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:    getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:        getEnv("AWS_REGION", ""),
		S3Bucket:         getEnv("S3_BUCKET", ""),
		S3Prefix:         getEnv("S3_PREFIX", ""),
		S3Endpoint:       getEnv("S3_ENDPOINT", ""),
		S3AccessKeyID:    getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretKey:      getEnv("S3_SECRET_ACCESS_KEY", ""),
		SSEKMSKeyID:      getEnv("SSE_KMS_KEY_ID", ""),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getDuration accepts Go durations ("90s") or bare seconds ("90").
func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	log.Printf("config %s invalid duration %q, using %s", key, raw, def)
	return def
}

func getInt64(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		log.Printf("config %s invalid int %q, using %d", key, raw, def)
		return def
	}
	return v
}

func getBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func trimURL(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}

func orDefault(val, def string) string {
	if strings.TrimSpace(val) != "" {
		return val
	}
	return def
}

func orDuration(val, def time.Duration) time.Duration {
	if val > 0 {
		return val
	}
	return def
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	case "none", "off", "disabled":
		return "none"
	default:
		return "local"
	}
}
