package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

type Config struct {
	// APIBaseURL is the campus API root, e.g. http://localhost:8080/api.
	APIBaseURL string
	// DataDir holds the durable session store and preview scratch space.
	DataDir string
}

// Load reads configuration from a .env file (if present) and the
// environment, applying defaults for anything unset.
func Load() *Config {
	godotenv.Load()

	return &Config{
		APIBaseURL: getenv("CAMPUS_API_URL", "http://localhost:8080/api"),
		DataDir:    getenv("CAMPUS_DATA_DIR", defaultDataDir()),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".campus-feed"
	}
	return filepath.Join(home, ".campus-feed")
}
