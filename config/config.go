// ABOUTME: Environment-driven configuration for the CRM core
// ABOUTME: Selects the document store backend and ambient settings
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Store backend kinds.
const (
	StoreMemory    = "memory"
	StoreBadger    = "badger"
	StoreFirestore = "firestore"
)

// Config holds everything the core needs from the environment.
type Config struct {
	// Store selects the document database backend: memory, badger or
	// firestore.
	Store string

	// FirestoreProject is the GCP project id for the firestore backend.
	FirestoreProject string

	// BadgerDir is the data directory for the embedded badger backend.
	BadgerDir string

	// SearchScanLimit bounds the naive substring search scan.
	SearchScanLimit int

	// LogLevel is a logrus level name (debug, info, warn, error).
	LogLevel string
}

// Load reads configuration from the environment, after loading a .env file
// when one exists.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Store:            getEnv("IMOB_STORE", StoreMemory),
		FirestoreProject: os.Getenv("IMOB_FIRESTORE_PROJECT"),
		BadgerDir:        getEnv("IMOB_BADGER_DIR", "./data"),
		SearchScanLimit:  getEnvInt("IMOB_SEARCH_SCAN_LIMIT", 100),
		LogLevel:         getEnv("IMOB_LOG_LEVEL", "info"),
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
