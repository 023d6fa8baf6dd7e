package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type DBConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	TxTimeout    time.Duration
	TxMaxRetries int
}

type ServerConfig struct {
	Addr string
}

type RedisConfig struct {
	Addr   string
	Stream string
}

// loadEnvFile reads config.env if it exists. A missing file is not an error:
// the process environment is enough in containers.
func loadEnvFile() error {
	err := godotenv.Load(filepath.Join("config.env"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load config.env: %w", err)
	}
	return nil
}

func LoadConfigDB() (*DBConfig, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	port, err := strconv.Atoi(os.Getenv("DB_PORT"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	maxOpen, err := intOrDefault("DB_MAX_OPEN_CONNS", 20)
	if err != nil {
		return nil, err
	}

	maxIdle, err := intOrDefault("DB_MAX_IDLE_CONNS", 10)
	if err != nil {
		return nil, err
	}

	txTimeout, err := durationOrDefault("DB_TX_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	maxRetries, err := intOrDefault("DB_TX_MAX_RETRIES", 3)
	if err != nil {
		return nil, err
	}
	if maxRetries < 0 {
		return nil, fmt.Errorf("invalid DB_TX_MAX_RETRIES: %d is negative", maxRetries)
	}

	return &DBConfig{
		Host:         os.Getenv("DB_HOST"),
		Port:         port,
		User:         os.Getenv("DB_USER"),
		Password:     os.Getenv("DB_PASSWORD"),
		Name:         os.Getenv("DB_NAME"),
		SSLMode:      stringOrDefault("DB_SSLMODE", "disable"),
		MaxOpenConns: maxOpen,
		MaxIdleConns: maxIdle,
		TxTimeout:    txTimeout,
		TxMaxRetries: maxRetries,
	}, nil
}

func LoadConfigServer() (*ServerConfig, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}
	return &ServerConfig{Addr: stringOrDefault("HTTP_ADDR", ":8080")}, nil
}

// LoadConfigRedis returns nil when REDIS_ADDR is unset; settlement events are
// then disabled.
func LoadConfigRedis() (*RedisConfig, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return nil, nil
	}
	return &RedisConfig{
		Addr:   addr,
		Stream: stringOrDefault("REDIS_STREAM", "ledger:settlements"),
	}, nil
}

func stringOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intOrDefault(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func durationOrDefault(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
