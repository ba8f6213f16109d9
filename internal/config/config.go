package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server ServerConfig `json:"server"`

	// MySQL, message history
	Database DatabaseConfig `json:"database"`

	// MongoDB, documents and media
	MongoDB MongoDBConfig `json:"mongodb"`

	Auth    AuthConfig    `json:"auth"`
	Story   StoryConfig   `json:"story"`
	Worker  WorkerConfig  `json:"worker"`
	Logging LoggingConfig `json:"logging"`
	Store   StoreConfig   `json:"store"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	HTTPPort        string `json:"http_port"`
	ChatServicePort string `json:"chat_service_port"`
	Host            string `json:"host"`
	ReadTimeout     int    `json:"read_timeout"`  // seconds
	WriteTimeout    int    `json:"write_timeout"` // seconds
	Environment     string `json:"environment"`   // development, staging, production
	MediaBaseURL    string `json:"media_base_url"`
}

// DatabaseConfig contains MySQL connection configuration
type DatabaseConfig struct {
	Host         string `json:"host"`
	Port         string `json:"port"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	DatabaseName string `json:"database_name"`
	MaxOpenConns int    `json:"max_open_conns"`
	MaxIdleConns int    `json:"max_idle_conns"`
}

type MongoDBConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	Database string `json:"database"`
}

type AuthConfig struct {
	JWTSecret string        `json:"-"`
	TokenTTL  time.Duration `json:"token_ttl"`
}

// StoryConfig controls the story visibility window
type StoryConfig struct {
	Lifetime time.Duration `json:"lifetime"`
}

// WorkerConfig sizes the async task pool used for pushes and lazy story cleanup
type WorkerConfig struct {
	Workers    int `json:"workers"`
	BufferSize int `json:"buffer_size"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `json:"level"`       // debug, info, warn, error
	Format     string `json:"format"`      // json, text
	OutputPath string `json:"output_path"` // stdout, stderr, or file path
}

// StoreConfig selects the document store backend. "memory" runs without MongoDB.
type StoreConfig struct {
	Backend string `json:"backend"`
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println(".env file not found, using system env variables")
	}

	cfg := &Config{
		Server: ServerConfig{
			HTTPPort:        getEnv("HTTP_PORT", "8080"),
			ChatServicePort: getEnv("CHAT_SERVICE_PORT", "7003"),
			Host:            getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:     getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout:    getEnvAsInt("SERVER_WRITE_TIMEOUT", 15),
			Environment:     getEnv("APP_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:         getEnv("MYSQL_HOST", "localhost"),
			Port:         getEnv("MYSQL_PORT", "3306"),
			Username:     getEnv("MYSQL_USERNAME", "collegovibe"),
			Password:     getEnv("MYSQL_PASSWORD", "collegovibe123"),
			DatabaseName: getEnv("MYSQL_DATABASE", "collegovibe"),
			MaxOpenConns: getEnvAsInt("MYSQL_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("MYSQL_MAX_IDLE_CONNS", 5),
		},
		MongoDB: MongoDBConfig{
			Host:     getEnv("MONGO_HOST", "localhost"),
			Port:     getEnv("MONGO_PORT", "27017"),
			Username: getEnv("MONGO_USERNAME", "admin"),
			Password: getEnv("MONGO_PASSWORD", "admin123"),
			Database: getEnv("MONGO_DATABASE", "collegovibe"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "change-me"),
			TokenTTL:  getEnvAsDuration("JWT_TTL", 24*time.Hour),
		},
		Story: StoryConfig{
			Lifetime: getEnvAsDuration("STORY_LIFETIME", 24*time.Hour),
		},
		Worker: WorkerConfig{
			Workers:    getEnvAsInt("WORKER_COUNT", 4),
			BufferSize: getEnvAsInt("WORKER_BUFFER", 1000),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			OutputPath: getEnv("LOG_OUTPUT", "stdout"),
		},
		Store: StoreConfig{
			Backend: strings.ToLower(getEnv("STORE_BACKEND", "mongo")),
		},
	}

	cfg.Server.MediaBaseURL = getEnv("MEDIA_BASE_URL",
		fmt.Sprintf("http://%s:%s/media", cfg.Server.Host, cfg.Server.HTTPPort))

	return cfg
}

func (cfg *Config) DSN() string {
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == "" {
		cfg.Database.Port = "3306"
	}

	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Database.Username,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.DatabaseName,
	)
}

func (cfg *Config) GetMongoURI() string {
	m := cfg.MongoDB
	if m.Username == "" || m.Password == "" {
		return fmt.Sprintf("mongodb://%s:%s/%s", m.Host, m.Port, m.Database)
	}
	return fmt.Sprintf("mongodb://%s:%s@%s:%s/%s?authSource=admin",
		m.Username, m.Password, m.Host, m.Port, m.Database)
}

// UsesMemoryStore reports whether documents live in process memory instead of MongoDB.
func (cfg *Config) UsesMemoryStore() bool {
	return cfg.Store.Backend == "memory"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("invalid integer for %s=%q, using %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		log.Printf("invalid duration for %s=%q, using %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}
