package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr          string
	CORSOrigin    string
	MaxIterations int

	// Generation backend
	GeminiAPIKey string
	GeminiModel  string

	// Session storage - in-memory fallback when Redis is not configured
	RedisURL   string
	SessionTTL time.Duration

	// Context sources - each disabled when unset
	MeiliURL         string
	MeiliMasterKey   string
	WebSearchURL     string
	WebSearchAPIKey  string
	WebSearchResults int

	// Advocate directory - disabled when unset
	DatabaseURL string

	// Draft history repos - disabled when unset
	ReposDir string

	// Finalized document archive - disabled when endpoint unset
	ArchiveEndpoint  string
	ArchiveBucket    string
	ArchiveAccessKey string
	ArchiveSecretKey string
	ArchiveUseSSL    bool
}

func Load() Config {
	return Config{
		Addr:          getenv("API_ADDR", ":8787"),
		CORSOrigin:    getenv("NYAYAFLOW_CORS_ORIGIN", "*"),
		MaxIterations: getenvInt("NYAYAFLOW_MAX_ITERATIONS", 3),

		GeminiAPIKey: getenv("GOOGLE_API_KEY", ""),
		GeminiModel:  getenv("NYAYAFLOW_MODEL", ""),

		// Redis - empty by default, in-memory sessions if not configured
		RedisURL:   getenv("REDIS_URL", ""),
		SessionTTL: time.Duration(getenvInt("WORKFLOW_SESSION_TTL_SECONDS", 86400)) * time.Second,

		MeiliURL:         getenv("MEILI_URL", ""),
		MeiliMasterKey:   getenv("MEILI_MASTER_KEY", ""),
		WebSearchURL:     getenv("WEB_SEARCH_URL", ""),
		WebSearchAPIKey:  getenv("WEB_SEARCH_API_KEY", ""),
		WebSearchResults: getenvInt("WEB_SEARCH_MAX_RESULTS", 3),

		DatabaseURL: getenv("DATABASE_URL", ""),

		ReposDir: getenv("NYAYAFLOW_REPOS_DIR", ""),

		ArchiveEndpoint:  getenv("ARCHIVE_ENDPOINT", ""),
		ArchiveBucket:    getenv("ARCHIVE_BUCKET", "nyayaflow-finalized"),
		ArchiveAccessKey: getenv("ARCHIVE_ACCESS_KEY", ""),
		ArchiveSecretKey: getenv("ARCHIVE_SECRET_KEY", ""),
		ArchiveUseSSL:    getenvBool("ARCHIVE_USE_SSL", false),
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
