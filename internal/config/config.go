package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const serviceName = "prize-indexer"

// Batch modes
const (
	BatchModeMulticall = "multicall"
	BatchModeRPC       = "rpc"
)

// Log sources
const (
	LogSourceRPC      = "rpc"
	LogSourceExplorer = "explorer"
)

// Cache backends
const (
	CacheBackendFile     = "file"
	CacheBackendPostgres = "postgres"
)

// DatabaseConfig holds database configuration for the postgres cache backend
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// ChainConfig holds chain access configuration
type ChainConfig struct {
	RPCURL           string `mapstructure:"rpc_url"`
	MulticallAddress string `mapstructure:"multicall_address"`
	BatchMode        string `mapstructure:"batch_mode"`
	BatchSize        int    `mapstructure:"batch_size"`
	LogSource        string `mapstructure:"log_source"`
	LogStepSize      uint64 `mapstructure:"log_step_size"`
}

// ExplorerConfig holds block explorer API configuration
type ExplorerConfig struct {
	APIURL    string  `mapstructure:"api_url"`
	APIKey    string  `mapstructure:"api_key"`
	RateLimit float64 `mapstructure:"rate_limit"`
}

// CatalogConfig holds pool catalogue configuration
type CatalogConfig struct {
	URL string `mapstructure:"url"`
}

// MetadataConfig holds metadata fetching configuration
type MetadataConfig struct {
	Concurrency     int           `mapstructure:"concurrency"`
	HTTPTimeout     time.Duration `mapstructure:"http_timeout"`
	RetryMaxElapsed time.Duration `mapstructure:"retry_max_elapsed"`
	IPFSGateways    []string      `mapstructure:"ipfs_gateways"`
	ArweaveGateways []string      `mapstructure:"arweave_gateways"`
}

// CacheConfig holds metadata cache configuration
type CacheConfig struct {
	Backend    string `mapstructure:"backend"`
	Dir        string `mapstructure:"dir"`
	MemorySize int    `mapstructure:"memory_size"`
}

// PathsConfig holds the locations of the pool store and the reports
type PathsConfig struct {
	PoolsFile string `mapstructure:"pools_file"`
	OutputDir string `mapstructure:"output_dir"`
}

// ReportConfig holds report rendering configuration
type ReportConfig struct {
	Template string `mapstructure:"template"`
}

// Config holds the prize-indexer configuration
type Config struct {
	Debug     bool           `mapstructure:"debug"`
	SentryDSN string         `mapstructure:"sentry_dsn"`
	Chain     ChainConfig    `mapstructure:"chain"`
	Explorer  ExplorerConfig `mapstructure:"explorer"`
	Catalog   CatalogConfig  `mapstructure:"catalog"`
	Metadata  MetadataConfig `mapstructure:"metadata"`
	Cache     CacheConfig    `mapstructure:"cache"`
	Database  DatabaseConfig `mapstructure:"database"`
	Paths     PathsConfig    `mapstructure:"paths"`
	Report    ReportConfig   `mapstructure:"report"`
}

// Load loads the configuration. A missing config file is not an error;
// every key can come from the environment instead.
func Load(configFile string, envPath string) (*Config, error) {
	v := configureViper(configFile, envPath)

	v.SetDefault("chain.batch_mode", BatchModeMulticall)
	v.SetDefault("chain.multicall_address", "0xB94858b0bB5437498F5453A16039337e5Fdc269C")
	v.SetDefault("chain.batch_size", 50)
	v.SetDefault("chain.log_source", LogSourceRPC)
	v.SetDefault("chain.log_step_size", 5000)
	v.SetDefault("explorer.api_url", "https://api.bscscan.com/api")
	v.SetDefault("explorer.rate_limit", 5)
	v.SetDefault("catalog.url", "https://raw.githubusercontent.com/moonpotdev/moonpot-app/main/src/config/vault/bsc.json")
	v.SetDefault("metadata.concurrency", 5)
	v.SetDefault("metadata.http_timeout", "30s")
	v.SetDefault("metadata.retry_max_elapsed", "1m")
	v.SetDefault("cache.backend", CacheBackendFile)
	v.SetDefault("cache.dir", "cache")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("paths.pools_file", "pools.json")
	v.SetDefault("paths.output_dir", "output")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validateCommon(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validateCommon() error {
	switch c.Chain.BatchMode {
	case BatchModeMulticall:
		if c.Chain.MulticallAddress == "" {
			return errors.New("chain.multicall_address is required in multicall mode")
		}
	case BatchModeRPC:
	default:
		return fmt.Errorf("invalid chain.batch_mode: %q", c.Chain.BatchMode)
	}

	switch c.Chain.LogSource {
	case LogSourceRPC, LogSourceExplorer:
	default:
		return fmt.Errorf("invalid chain.log_source: %q", c.Chain.LogSource)
	}

	switch c.Cache.Backend {
	case CacheBackendFile:
	case CacheBackendPostgres:
		if c.Database.Host == "" {
			return errors.New("database.host is required for the postgres cache")
		}
		if c.Database.DBName == "" {
			return errors.New("database.dbname is required for the postgres cache")
		}
	default:
		return fmt.Errorf("invalid cache.backend: %q", c.Cache.Backend)
	}

	if c.Chain.BatchSize <= 0 {
		return errors.New("chain.batch_size must be positive")
	}
	if c.Metadata.Concurrency <= 0 {
		return errors.New("metadata.concurrency must be positive")
	}

	return nil
}

// ValidateAdd checks the settings the add command needs
func (c *Config) ValidateAdd() error {
	if c.Chain.RPCURL == "" {
		return errors.New("chain.rpc_url is required")
	}
	if c.Explorer.APIKey == "" {
		return errors.New("explorer.api_key is required")
	}
	if c.Catalog.URL == "" {
		return errors.New("catalog.url is required")
	}
	return nil
}

// ValidateUpdate checks the settings the update command needs
func (c *Config) ValidateUpdate() error {
	if c.Chain.RPCURL == "" {
		return errors.New("chain.rpc_url is required")
	}
	return nil
}

// configureViper returns a viper instance with the config file and environment variables set
func configureViper(configFile string, envPath string) *viper.Viper {
	v := viper.New()

	loadEnv(envPath)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(fmt.Sprintf("cmd/%s/", serviceName))
		v.AddConfigPath("config/")
	}

	v.SetEnvPrefix("PRIZE_INDEXER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindAllEnvVars(v)
	return v
}

// bindAllEnvVars explicitly binds all possible environment variables
// This is required for viper to map env vars to config struct fields when no config file exists
func bindAllEnvVars(v *viper.Viper) {
	keys := []string{
		"debug",
		"sentry_dsn",
		// Chain
		"chain.rpc_url",
		"chain.multicall_address",
		"chain.batch_mode",
		"chain.batch_size",
		"chain.log_source",
		"chain.log_step_size",
		// Explorer
		"explorer.api_url",
		"explorer.api_key",
		"explorer.rate_limit",
		// Catalogue
		"catalog.url",
		// Metadata
		"metadata.concurrency",
		"metadata.http_timeout",
		"metadata.retry_max_elapsed",
		"metadata.ipfs_gateways",
		"metadata.arweave_gateways",
		// Cache
		"cache.backend",
		"cache.dir",
		"cache.memory_size",
		// Database
		"database.host",
		"database.port",
		"database.user",
		"database.password",
		"database.dbname",
		"database.sslmode",
		"database.max_open_conns",
		"database.max_idle_conns",
		"database.conn_max_lifetime",
		"database.conn_max_idle_time",
		// Paths
		"paths.pools_file",
		"paths.output_dir",
		// Report
		"report.template",
	}

	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

// loadEnv loads environment variables from the env directory
func loadEnv(envPath string) {
	envFiles := []string{".env", ".env.local", ".env." + serviceName + ".local"}

	if envPath == "" {
		envPath = "config/"
	}

	for _, envFile := range envFiles {
		_ = godotenv.Overload(filepath.Join(envPath, envFile)) // later files override earlier ones
	}
}

// ChdirRepoRoot changes the current working directory to the repository root
func ChdirRepoRoot() {
	cwd, _ := os.Getwd()
	for range 5 {
		if _, err := os.Stat(filepath.Join(cwd, "config")); err == nil {
			_ = os.Chdir(cwd)
			return
		}
		cwd = filepath.Dir(cwd)
	}
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
