// Package config resolves where the application keeps its data files,
// from an optional .env file and the environment.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Config carries the file locations the application works against.
type Config struct {
	DataDir     string
	CatalogFile string
	CopiesFile  string
	UsersFile   string
}

// Load reads an optional .env file, then the environment, falling back to a
// local data/ directory. A missing .env is not an error.
func Load() Config {
	_ = godotenv.Load()

	dataDir := withDefault(os.Getenv("LIBRARY_DATA_DIR"), "data")
	return Config{
		DataDir:     dataDir,
		CatalogFile: withDefault(os.Getenv("LIBRARY_CATALOG_FILE"), filepath.Join(dataDir, "library_data.json")),
		CopiesFile:  withDefault(os.Getenv("LIBRARY_COPIES_FILE"), filepath.Join(dataDir, "book_copies.json")),
		UsersFile:   withDefault(os.Getenv("LIBRARY_USERS_FILE"), filepath.Join(dataDir, "users.db")),
	}
}

func withDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
