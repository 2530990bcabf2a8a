package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config stores the engine configuration. The catalog server address
// is the only value most deployments need to set.
type Config struct {
	ServerURL string // Base URL of the catalog server, e.g. http://127.0.0.1:8000
	WSPath    string // Push endpoint path on the server

	MusicDir      string // Local directory downloaded audio lands in
	DefaultVolume int    // Initial player volume, 0-100

	// Redis配置（资料库列表缓存，可选）
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	LogLevel string
	LogPath  string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	return &Config{
		ServerURL: getEnv("SERVER_URL", "http://127.0.0.1:8000"),
		WSPath:    getEnv("WS_PATH", "/ws/progress"),

		MusicDir:      getEnv("MUSIC_DIR", filepath.Join("data", "music")),
		DefaultVolume: getEnvInt("DEFAULT_VOLUME", 80),

		// Redis配置，使用默认值
		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""), // 默认无密码
		RedisDB:       getEnvInt("REDIS_DB", 0),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogPath:  getEnv("LOG_PATH", filepath.Join("logs", "melofm.log")),
	}
}
