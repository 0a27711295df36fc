package cmd

import (
	"errors"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	appName   = "hirewire"
	envPrefix = "HIREWIRE"
)

type Config struct {
	Backend  *BackendConfig  `mapstructure:"backend"`
	Database *DatabaseConfig `mapstructure:"database"`
	Redis    *RedisConfig    `mapstructure:"redis"`
	Uploads  *UploadsConfig  `mapstructure:"uploads"`
	Browse   *BrowseConfig   `mapstructure:"browse"`
	AI       *AIConfig       `mapstructure:"ai"`
}

// BackendConfig points at the hosted auth and REST endpoints.
type BackendConfig struct {
	URL            string        `mapstructure:"url"`
	AnonKey        string        `mapstructure:"anon-key"`
	AnonKeyFile    string        `mapstructure:"anon-key-file"`
	JWTSecret      string        `mapstructure:"jwt-secret"`
	JWTSecretFile  string        `mapstructure:"jwt-secret-file"`
	UserAgent      string        `mapstructure:"user-agent"`
	Email          string        `mapstructure:"email"`
	PasswordFile   string        `mapstructure:"password-file"`
	RequestTimeout time.Duration `mapstructure:"request-timeout"`
}

// DatabaseConfig switches the record store to a direct PostgreSQL
// connection when a DSN is set.
type DatabaseConfig struct {
	DSN     string `mapstructure:"dsn"`
	DSNFile string `mapstructure:"dsn-file"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type UploadsConfig struct {
	URL       string `mapstructure:"url"`
	ChunkSize int    `mapstructure:"chunk-size"`
}

type BrowseConfig struct {
	ExcludeCompanies []string `mapstructure:"exclude-companies"`
	SkipAssessments  bool     `mapstructure:"skip-assessments"`
}

type AIConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Provider        string        `mapstructure:"provider"`
	MinimumFitScore int           `mapstructure:"minimum-fit-score"`
	Limit           int           `mapstructure:"limit"`
	Gemini          *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
	Focus        string `mapstructure:"focus"`
	Instructions string `mapstructure:"instructions"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   appName,
		Short: "hirewire is a terminal client for the job marketplace: browse, apply, post and get AI match analysis",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is hirewire.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	setDefaults()
}

// setDefaults registers every key so HIREWIRE_* variables reach nested
// config fields through Unmarshal.
func setDefaults() {
	defaults := map[string]any{
		"backend.url":              "",
		"backend.anon-key":         "",
		"backend.anon-key-file":    "",
		"backend.jwt-secret":       "",
		"backend.jwt-secret-file":  "",
		"backend.user-agent":       appName,
		"backend.email":            "",
		"backend.password-file":    "",
		"backend.request-timeout":  30 * time.Second,
		"database.dsn":             "",
		"database.dsn-file":        "",
		"redis.addr":               "",
		"redis.password":           "",
		"redis.db":                 0,
		"redis.prefix":             appName + ":",
		"redis.ttl":                24 * time.Hour,
		"uploads.url":              "",
		"uploads.chunk-size":       256 * 1024,
		"browse.exclude-companies": []string{},
		"browse.skip-assessments":  false,
		"ai.enabled":               false,
		"ai.provider":              "gemini",
		"ai.minimum-fit-score":     0,
		"ai.limit":                 10,
		"ai.gemini.api-key":        "",
		"ai.gemini.api-key-file":   "",
		"ai.gemini.model":          "",
		"ai.gemini.max-retries":    3,
		"ai.gemini.max-log-length": 200,
		"ai.gemini.focus":          "",
		"ai.gemini.instructions":   "",
	}
	for key, value := range defaults {
		viper.SetDefault(key, value)
	}
}

func initConfig() {
	// .env is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("loading .env: %v", err)
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(appName)
		viper.SetConfigType("yaml")
	}

	// A missing default config file is fine: everything can come from the
	// environment. A broken or explicitly requested file is not.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config == nil {
		return nil, errors.New("config is empty")
	}
	if config.Backend == nil {
		config.Backend = &BackendConfig{}
	}
	if config.Database == nil {
		config.Database = &DatabaseConfig{}
	}
	if config.Redis == nil {
		config.Redis = &RedisConfig{}
	}
	if config.Uploads == nil {
		config.Uploads = &UploadsConfig{}
	}
	if config.Browse == nil {
		config.Browse = &BrowseConfig{}
	}
	if config.AI == nil {
		config.AI = &AIConfig{}
	}
	if config.AI.Gemini == nil {
		config.AI.Gemini = &GeminiConfig{}
	}

	return config, nil
}
