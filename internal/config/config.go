// Package config reads all tunables from the environment. A .env file in
// the working directory is loaded first when present.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config covers both the relay server and the host agent; each binary
// reads the fields it needs.
type Config struct {
	// Shared.
	Secret   string
	LogLevel string

	// Relay server.
	ListenAddr      string
	RedisAddr       string
	Compression     bool
	RateLimiting    bool
	RateLimitMax    int
	RateLimitWindow time.Duration
	Metrics         bool
	MaxConnections  int
	AnswerURL       string
	AnswerTimeout   time.Duration

	// Host agent.
	ServerURL     string
	DisplayNum    int
	TargetFPS     int
	JPEGQuality   int
	DiffThreshold float64
	DownloadDir   string
	InjectHotkey  string
	AnalyzeHotkey string
}

// FromEnv builds a Config from the environment.
func FromEnv() Config {
	_ = godotenv.Load()

	home, _ := os.UserHomeDir()
	return Config{
		Secret:   getEnv("ACCESS_PASSWORD", "1"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		ListenAddr:      getEnv("LISTEN_ADDR", ":5000"),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		Compression:     getEnvBool("ENABLE_COMPRESSION", true),
		RateLimiting:    getEnvBool("ENABLE_RATE_LIMITING", true),
		RateLimitMax:    getEnvInt("RATE_LIMIT_MAX", 100),
		RateLimitWindow: time.Duration(getEnvInt("RATE_LIMIT_WINDOW_SEC", 60)) * time.Second,
		Metrics:         getEnvBool("ENABLE_METRICS", true),
		MaxConnections:  getEnvInt("MAX_CONNECTIONS", 10),
		AnswerURL:       getEnv("ANSWER_URL", ""),
		AnswerTimeout:   time.Duration(getEnvInt("ANSWER_TIMEOUT_SEC", 30)) * time.Second,

		ServerURL:     getEnv("SERVER_URL", "ws://127.0.0.1:5000/ws"),
		DisplayNum:    getEnvInt("DISPLAY_NUM", 0),
		TargetFPS:     getEnvInt("TARGET_FPS", 5),
		JPEGQuality:   getEnvInt("JPEG_QUALITY", 75),
		DiffThreshold: getEnvFloat("FRAME_DIFF_THRESHOLD", 0),
		DownloadDir:   getEnv("DOWNLOAD_DIR", home+string(os.PathSeparator)+"Downloads"),
		InjectHotkey:  getEnv("INJECT_HOTKEY", "f2"),
		AnalyzeHotkey: getEnv("ANALYZE_HOTKEY", "f4"),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	switch os.Getenv(key) {
	case "1", "true", "TRUE", "True", "yes":
		return true
	case "0", "false", "FALSE", "False", "no":
		return false
	}
	return def
}
