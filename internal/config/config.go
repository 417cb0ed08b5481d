package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/riskwatch/riskwatch-go/internal/models"
	"github.com/spf13/viper"
)

// Config holds all configuration settings
type Config struct {
	// Storage configuration
	Storage StorageConfig `yaml:"storage"`

	// Model artifact settings
	Models ModelsConfig `yaml:"models"`

	// Risk scoring settings
	Risk RiskConfig `yaml:"risk"`

	// Training settings
	Training TrainingConfig `yaml:"training"`
}

type StorageConfig struct {
	Type        string `yaml:"type"` // "postgres", "sqlite"
	PostgresDSN string `yaml:"postgres_dsn"`
	LocalPath   string `yaml:"local_path"`
}

type ModelsConfig struct {
	Directory string `yaml:"directory"`
}

type RiskConfig struct {
	MediumThreshold float64 `yaml:"medium_threshold"`
	HighThreshold   float64 `yaml:"high_threshold"`
}

type TrainingConfig struct {
	ModelType      string  `yaml:"model_type"`
	MinSamples     int     `yaml:"min_samples"`
	TestSize       float64 `yaml:"test_size"`
	SyntheticCount int     `yaml:"synthetic_count"`
	PositiveRate   float64 `yaml:"positive_rate"`
}

// Default returns default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Storage: StorageConfig{
			Type:      "sqlite",
			LocalPath: filepath.Join(homeDir, ".riskwatch", "local.db"),
		},
		Models: ModelsConfig{
			Directory: filepath.Join(homeDir, ".riskwatch", "models"),
		},
		Risk: RiskConfig{
			MediumThreshold: models.DefaultMediumThreshold,
			HighThreshold:   models.DefaultHighThreshold,
		},
		Training: TrainingConfig{
			ModelType:      "logistic_regression",
			MinSamples:     50,
			TestSize:       0.2,
			SyntheticCount: 500,
			PositiveRate:   0.3,
		},
	}
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	v.SetDefault("storage", cfg.Storage)
	v.SetDefault("models", cfg.Models)
	v.SetDefault("risk", cfg.Risk)
	v.SetDefault("training", cfg.Training)

	v.SetEnvPrefix("RISKWATCH")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".riskwatch")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".riskwatch"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// loadEnvFiles loads .env files in order of precedence
func loadEnvFiles() {
	envFiles := []string{
		".env.local", // Local overrides (highest precedence)
		".env",       // Main environment file
	}

	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			godotenv.Load(file)
		}
	}

	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".riskwatch", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		godotenv.Load(homeEnvFile)
	}
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(cfg *Config) {
	if storageType := os.Getenv("STORAGE_TYPE"); storageType != "" {
		cfg.Storage.Type = storageType
	}
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		cfg.Storage.PostgresDSN = dsn
	}
	if path := os.Getenv("SQLITE_PATH"); path != "" {
		cfg.Storage.LocalPath = path
	}
	if dir := os.Getenv("MODELS_DIR"); dir != "" {
		cfg.Models.Directory = dir
	}
	if modelType := os.Getenv("MODEL_TYPE"); modelType != "" {
		cfg.Training.ModelType = modelType
	}
	if minSamples := os.Getenv("MIN_TRAINING_SAMPLES"); minSamples != "" {
		if n, err := strconv.Atoi(minSamples); err == nil && n > 0 {
			cfg.Training.MinSamples = n
		}
	}
}

// Validate checks the configuration for inconsistencies
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case "sqlite":
		if c.Storage.LocalPath == "" {
			return fmt.Errorf("sqlite storage requires a local path")
		}
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("postgres storage requires a DSN")
		}
	default:
		return fmt.Errorf("unknown storage type: %s", c.Storage.Type)
	}
	if c.Risk.MediumThreshold >= c.Risk.HighThreshold {
		return fmt.Errorf("medium threshold %.0f must be below high threshold %.0f",
			c.Risk.MediumThreshold, c.Risk.HighThreshold)
	}
	if c.Training.TestSize <= 0 || c.Training.TestSize >= 1 {
		return fmt.Errorf("test size must be in (0, 1), got %g", c.Training.TestSize)
	}
	return nil
}
