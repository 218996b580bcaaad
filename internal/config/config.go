// Package config loads environment variables ("login_username",
// "login_password", "whisper_model", "parallel_workers",
// "whisper_cpu_threads", "log") and derived filesystem paths: godotenv
// first, then plain os.Getenv, never panicking on a missing or malformed
// value.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration values consumed by the core.
type Config struct {
	Host string
	Port string

	LoginUsername string
	LoginPassword string

	WhisperModel      string
	ParallelWorkers   int
	WhisperCPUThreads int

	LogLevel string

	DataDir       string
	DatabasePath  string
	ModelsDir     string
	AudioInputDir string
	DropzoneDir   string

	// JWTSecret signs the bearer tokens issued by the supplemental CLI
	// login flow (internal/auth), generated once and persisted across
	// restarts.
	JWTSecret string
}

// Load loads configuration from a .env file (if present) and the process
// environment; the environment always wins over .env.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	dataDir := getEnv("DATA_DIR", "data")

	return &Config{
		Host: getEnv("HOST", "0.0.0.0"),
		Port: getEnv("PORT", "8080"),

		LoginUsername: getEnv("login_username", ""),
		LoginPassword: getEnv("login_password", ""),

		WhisperModel:      getEnv("whisper_model", "tiny"),
		ParallelWorkers:   getEnvAsInt("parallel_workers", 2),
		WhisperCPUThreads: getEnvAsInt("whisper_cpu_threads", 4),

		LogLevel: getEnv("log", "info"),

		DataDir:       dataDir,
		DatabasePath:  getEnv("DATABASE_PATH", filepath.Join(dataDir, "tsapi.db")),
		ModelsDir:     filepath.Join(dataDir, "models"),
		AudioInputDir: filepath.Join(dataDir, "audioInput"),
		DropzoneDir:   filepath.Join(dataDir, "dropzone"),

		JWTSecret: getJWTSecret(dataDir),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		log.Printf("Warning: %s=%q is not an integer, using default %d", key, value, defaultValue)
	}
	return defaultValue
}

// getJWTSecret returns a JWT signing secret, persisting a generated one
// under dataDir so restarts don't invalidate outstanding CLI tokens.
func getJWTSecret(dataDir string) string {
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		return secret
	}
	secretFile := filepath.Join(dataDir, "jwt_secret")
	if data, err := os.ReadFile(secretFile); err == nil && len(data) > 0 {
		return strings.TrimSpace(string(data))
	}
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		log.Printf("Warning: could not generate secure JWT secret, using fallback: %v", err)
		return "fallback-jwt-secret-please-set-JWT_SECRET-env-var"
	}
	secret := hex.EncodeToString(bytes)
	_ = os.MkdirAll(dataDir, 0o755)
	_ = os.WriteFile(secretFile, []byte(secret), 0o600)
	log.Println("Generated persistent JWT secret at", secretFile)
	return secret
}
