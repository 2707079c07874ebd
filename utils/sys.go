package utils

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

var HomeDir string

func init() {
	var err error
	HomeDir, err = os.UserHomeDir()
	if err != nil {
		log.Fatal("failed to get $HOME value")
	}
}

func DefaultFusionDirectory() string {
	return filepath.Join(HomeDir, ".fusion")
}

func DefaultConfigPath() string {
	return filepath.Join(HomeDir, ".fusion", "config.json")
}

func DefaultStorePath() string {
	return filepath.Join(HomeDir, ".fusion", "data.db")
}

func DefaultLogPath() string {
	return filepath.Join(HomeDir, ".fusion", "fusiond.log")
}

// Store backends
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreSqlite = "sqlite"
)

// Grant credits Amount of Asset to Account the first time the ledger starts.
type Grant struct {
	Asset   string `json:"asset"`
	Account string `json:"account"`
	Amount  uint64 `json:"amount"`
}

type Config struct {
	// daemon
	Listen     string  `json:"listen"`
	Store      string  `json:"store"`
	RedisURL   string  `json:"redisUrl"`
	DB         string  `json:"db"`
	JWTSecret  string  `json:"jwtSecret"`
	Domain     string  `json:"domain"`
	Authority  string  `json:"authority"`
	OpenAccess bool    `json:"openAccess"`
	Genesis    []Grant `json:"genesis"`
	Sentry     string  `json:"sentry"`
	LogLevel   string  `json:"logLevel"`
	LogFile    string  `json:"logFile"`

	// cli
	RPCServer string `json:"rpcServer"`
	NoTLS     bool   `json:"noTLS"`
	Token     string `json:"token"`
}

func DefaultConfig() Config {
	return Config{
		Listen:    ":8080",
		Store:     StoreMemory,
		DB:        DefaultStorePath(),
		LogLevel:  "info",
		RPCServer: "localhost:8080",
		NoTLS:     true,
	}
}

// LoadConfig reads the JSON config at path on top of the defaults, then
// applies a .env file in the working directory and FUSION_* variables. A
// missing config file is not an error.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()
	configFile, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return config, err
	}
	if err == nil {
		if err := json.Unmarshal(configFile, &config); err != nil {
			return config, err
		}
	}

	_ = godotenv.Load()
	if err := applyEnvOverrides(&config); err != nil {
		return config, err
	}
	return config, nil
}

func SaveConfig(path string, config Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

func applyEnvOverrides(config *Config) error {
	setStr(&config.Listen, "FUSION_LISTEN")
	setStr(&config.Store, "FUSION_STORE")
	setStr(&config.RedisURL, "FUSION_REDIS_URL")
	setStr(&config.DB, "FUSION_DB")
	setStr(&config.JWTSecret, "FUSION_JWT_SECRET")
	setStr(&config.Domain, "FUSION_DOMAIN")
	setStr(&config.Authority, "FUSION_AUTHORITY")
	setStr(&config.Sentry, "FUSION_SENTRY")
	setStr(&config.LogLevel, "FUSION_LOG_LEVEL")
	setStr(&config.LogFile, "FUSION_LOG_FILE")
	setStr(&config.RPCServer, "FUSION_RPC_SERVER")
	setStr(&config.Token, "FUSION_TOKEN")
	if err := setBool(&config.OpenAccess, "FUSION_OPEN_ACCESS"); err != nil {
		return err
	}
	return setBool(&config.NoTLS, "FUSION_NO_TLS")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}
	*dst = b
	return nil
}

func DefaultPidPath() string {
	return filepath.Join(HomeDir, ".fusion", "fusiond.pid")
}
