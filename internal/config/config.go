package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// ProjXchange API
	APIURL      string
	Token       string
	DownloadDir string

	// BFF
	Port        string
	CORSOrigins []string
	JWTSecret   string

	// Mongo, каталог проектов
	Mongo string

	// Redis, снимок баланса
	CacheURL  string
	CacheUser string
	CachePwd  string

	// RabbitMQ, события
	RabbitURL      string
	RabbitPort     string
	RabbitUser     string
	RabbitPassword string

	// Трассировка
	OtelEndpoint string

	ViewQualify time.Duration
}

func Load() *Config {
	cfg := &Config{
		APIURL:      strings.TrimSuffix(getEnv("PROJX_API_URL", ""), "/"),
		Token:       getEnv("PROJX_TOKEN", ""),
		DownloadDir: getEnv("PROJX_DOWNLOAD_DIR", "./downloads"),

		Port:      getEnv("ENTITLEMENT_PORT", ""),
		JWTSecret: getEnv("ENTITLEMENT_JWT_SECRET", ""),

		Mongo: getEnv("ENTITLEMENT_MONGO", ""),

		CacheURL:  getEnv("ENTITLEMENT_CACHE_URL", ""),
		CacheUser: getEnv("ENTITLEMENT_CACHE_USER", ""),
		CachePwd:  getEnv("ENTITLEMENT_CACHE_PWD", ""),

		RabbitURL:      getEnv("RABBIT_URL", ""),
		RabbitPort:     getEnv("RABBIT_PORT", "5672"),
		RabbitUser:     getEnv("RABBIT_USER", ""),
		RabbitPassword: getEnv("RABBIT_PASSWORD", ""),

		OtelEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		ViewQualify: time.Duration(getEnvInt("VIEW_QUALIFY_SECONDS", 60)) * time.Second,
	}

	for _, origin := range strings.Split(getEnv("CORS_ORIGINS", ""), ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
		}
	}
	return cfg
}

// Обязательные настройки сервера
func (c *Config) ValidateServer() error {
	if c.APIURL == "" {
		return fmt.Errorf("env PROJX_API_URL is not set")
	}
	if c.Port == "" {
		return fmt.Errorf("env ENTITLEMENT_PORT is not set")
	}
	// ключ проверки подписи токенов
	if c.JWTSecret == "" {
		return fmt.Errorf("env ENTITLEMENT_JWT_SECRET is not set")
	}
	return nil
}

// Обязательные настройки CLI
func (c *Config) ValidateCLI() error {
	if c.APIURL == "" {
		return fmt.Errorf("env PROJX_API_URL is not set")
	}
	if c.Token == "" {
		return fmt.Errorf("env PROJX_TOKEN is not set")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil && i > 0 {
			return i
		}
	}
	return defaultVal
}
