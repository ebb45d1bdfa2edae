package config

import (
	"errors"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingMongoURI is returned when MONGODB_URI is not set.
var ErrMissingMongoURI = errors.New("MONGODB_URI is required")

// Config holds the maintenance tool configuration
type Config struct {
	MongoDB MongoDBConfig
	Redis   RedisConfig
	MinIO   MinIOConfig
	Metrics MetricsConfig
	Fix     FixConfig
}

type MongoDBConfig struct {
	URI               string
	Database          string
	Timeout           time.Duration
	ConnectAttempts   int
	HistoryCollection string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr returns host:port, or "" when Redis is not configured.
func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return r.Host + ":" + r.Port
}

// MinIOConfig holds MinIO connection configuration for backups
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

type MetricsConfig struct {
	PushgatewayURL string
	Job            string
}

// FixConfig describes the collection pass itself.
type FixConfig struct {
	Collection string
	Field      string
	Default    string
	DryRun     bool
	Backup     bool
	LockTTL    time.Duration
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("MONGODB_DATABASE", "integration")
	v.SetDefault("MONGODB_TIMEOUT", 10)
	v.SetDefault("MONGODB_CONNECT_ATTEMPTS", 5)
	v.SetDefault("HISTORY_COLLECTION", "maintenance_runs")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("MINIO_BUCKET", "integration-maintenance")
	v.SetDefault("METRICS_JOB", "creatorid_fix")
	v.SetDefault("FIX_COLLECTION", "integrationconfiginstance")
	v.SetDefault("FIX_FIELD", "creatorId")
	v.SetDefault("FIX_DEFAULT", "0")
	v.SetDefault("FIX_DRY_RUN", false)
	v.SetDefault("FIX_BACKUP", false)
	v.SetDefault("FIX_LOCK_TTL", 300)
}

// LoadConfig loads configuration from environment variables and an optional .env file
// using the global viper instance (which the CLI binds its flags into).
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()
	return Load(viper.GetViper())
}

// Load builds a Config from v. Environment variables are read automatically.
func Load(v *viper.Viper) (*Config, error) {
	v.AutomaticEnv()
	SetDefaults(v)

	cfg := &Config{
		MongoDB: MongoDBConfig{
			URI:               v.GetString("MONGODB_URI"),
			Database:          v.GetString("MONGODB_DATABASE"),
			Timeout:           time.Duration(v.GetInt("MONGODB_TIMEOUT")) * time.Second,
			ConnectAttempts:   v.GetInt("MONGODB_CONNECT_ATTEMPTS"),
			HistoryCollection: v.GetString("HISTORY_COLLECTION"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		MinIO: MinIOConfig{
			Endpoint:  v.GetString("MINIO_ENDPOINT"),
			AccessKey: v.GetString("MINIO_ACCESS_KEY"),
			SecretKey: v.GetString("MINIO_SECRET_KEY"),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
			Bucket:    v.GetString("MINIO_BUCKET"),
		},
		Metrics: MetricsConfig{
			PushgatewayURL: v.GetString("METRICS_PUSHGATEWAY_URL"),
			Job:            v.GetString("METRICS_JOB"),
		},
		Fix: FixConfig{
			Collection: v.GetString("FIX_COLLECTION"),
			Field:      v.GetString("FIX_FIELD"),
			Default:    v.GetString("FIX_DEFAULT"),
			DryRun:     v.GetBool("FIX_DRY_RUN"),
			Backup:     v.GetBool("FIX_BACKUP"),
			LockTTL:    time.Duration(v.GetInt("FIX_LOCK_TTL")) * time.Second,
		},
	}

	if cfg.MongoDB.URI == "" {
		return nil, ErrMissingMongoURI
	}
	if cfg.MongoDB.ConnectAttempts < 1 {
		cfg.MongoDB.ConnectAttempts = 1
	}
	return cfg, nil
}
