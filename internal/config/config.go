package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"capitalfriends/pkg/capfriends"
)

const (
	defaultDBName   = "capitalfriends.db"
	defaultSeedName = "portfolios.toml"

	envConfigPath = "CAPFRIENDS_CONFIG"
	envDataDir    = "CAPFRIENDS_DATA_DIR"
	envDBPath     = "CAPFRIENDS_DB_PATH"
	envSeedPath   = "CAPFRIENDS_SEED_PATH"
	envGeminiKey  = "CAPFRIENDS_GEMINI_API_KEY"
)

// AISettings configures the optional plan commentary model.
type AISettings struct {
	BaseURL string `json:"base_url"`
	APIKey  string `json:"api_key"`
	Model   string `json:"model"`
}

// ATHBandSettings overrides the buy-signal tier bounds, in percent below ATH.
type ATHBandSettings struct {
	Consider  float64 `json:"consider"`
	GoodBuy   float64 `json:"good_buy"`
	StrongBuy float64 `json:"strong_buy"`
}

// UserConfig is persisted as JSON in the OS config directory.
type UserConfig struct {
	DBName              string          `json:"db_name"`
	DataDir             string          `json:"data_dir"`
	SeedFile            string          `json:"seed_file"`
	CacheTTLSeconds     int             `json:"cache_ttl_seconds"`
	DefaultThresholdPct float64         `json:"default_threshold_pct"`
	ATHBands            ATHBandSettings `json:"ath_bands"`
	AI                  AISettings      `json:"ai"`
}

var runtimeDataDir string
var runtimePort = 8000

func IsMacOS() bool {
	return runtime.GOOS == "darwin"
}

func IsWindows() bool {
	return runtime.GOOS == "windows"
}

func SetRuntimeDataDir(dir string) {
	runtimeDataDir = dir
}

func SetRuntimePort(port int) {
	if port > 0 {
		runtimePort = port
	}
}

func GetRuntimePort() int {
	return runtimePort
}

func appConfigDir() (string, error) {
	if IsMacOS() {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support", "CapitalFriends"), nil
	}
	if IsWindows() {
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = home
		}
		return filepath.Join(appData, "CapitalFriends"), nil
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", "capitalfriends"), nil
	}
	return filepath.Join(configDir, "capitalfriends"), nil
}

// ConfigPath returns the user config file location. CAPFRIENDS_CONFIG wins
// over the OS config directory.
func ConfigPath() (string, error) {
	if path := strings.TrimSpace(os.Getenv(envConfigPath)); path != "" {
		return path, nil
	}
	dir, err := appConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

func IsFirstRun() bool {
	path, err := ConfigPath()
	if err != nil {
		return true
	}
	_, err = os.Stat(path)
	return err != nil
}

func defaultUserConfig() UserConfig {
	return UserConfig{
		DBName:          defaultDBName,
		CacheTTLSeconds: 30,
	}
}

// LoadUserConfig reads the user config. A missing file yields the defaults;
// a file that cannot be read or parsed is an error.
func LoadUserConfig() (UserConfig, error) {
	cfg, err := readUserConfig()
	if key := strings.TrimSpace(os.Getenv(envGeminiKey)); key != "" {
		cfg.AI.APIKey = key
	}
	return cfg, err
}

func readUserConfig() (UserConfig, error) {
	cfg := defaultUserConfig()
	path, err := ConfigPath()
	if err != nil {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return defaultUserConfig(), fmt.Errorf("parse config %s: %w", path, err)
	}
	if strings.TrimSpace(cfg.DBName) == "" {
		cfg.DBName = defaultDBName
	}
	return cfg, nil
}

// SaveUserConfig writes cfg to ConfigPath.
func SaveUserConfig(cfg UserConfig) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// GetDataDir resolves the data directory: runtime flag, then
// CAPFRIENDS_DATA_DIR, then the user config, then the OS config directory.
// The directory is created if missing.
func GetDataDir() (string, error) {
	dir := runtimeDataDir
	if dir == "" {
		dir = strings.TrimSpace(os.Getenv(envDataDir))
	}
	if dir == "" {
		cfg, err := LoadUserConfig()
		if err != nil {
			return "", err
		}
		dir = cfg.DataDir
	}
	if dir == "" {
		defaultDir, err := appConfigDir()
		if err != nil {
			return "", err
		}
		dir = defaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// GetDBPath resolves the SQLite file path.
func GetDBPath() (string, error) {
	if envPath := strings.TrimSpace(os.Getenv(envDBPath)); envPath != "" {
		return envPath, nil
	}
	cfg, err := LoadUserConfig()
	if err != nil {
		return "", err
	}
	dataDir, err := GetDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, cfg.DBName), nil
}

// GetSeedPath resolves the portfolio seed file. The file need not exist.
func GetSeedPath() (string, error) {
	if envPath := strings.TrimSpace(os.Getenv(envSeedPath)); envPath != "" {
		return envPath, nil
	}
	cfg, err := LoadUserConfig()
	if err != nil {
		return "", err
	}
	if cfg.SeedFile != "" {
		return cfg.SeedFile, nil
	}
	dataDir, err := GetDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, defaultSeedName), nil
}

// CoreOptions maps the user config onto engine options.
func (cfg UserConfig) CoreOptions(dbPath string, logger *slog.Logger) capfriends.Options {
	opts := capfriends.Options{
		DBPath:              dbPath,
		Logger:              logger,
		CacheTTL:            time.Duration(cfg.CacheTTLSeconds) * time.Second,
		DefaultThresholdPct: capfriends.NewAmount(cfg.DefaultThresholdPct),
	}
	if cfg.ATHBands.Consider > 0 && cfg.ATHBands.GoodBuy > cfg.ATHBands.Consider && cfg.ATHBands.StrongBuy > cfg.ATHBands.GoodBuy {
		opts.ATHBands = capfriends.ATHBands{
			Consider:  capfriends.NewAmount(cfg.ATHBands.Consider),
			GoodBuy:   capfriends.NewAmount(cfg.ATHBands.GoodBuy),
			StrongBuy: capfriends.NewAmount(cfg.ATHBands.StrongBuy),
		}
	} else if cfg.ATHBands != (ATHBandSettings{}) && logger != nil {
		logger.Warn("ignoring ath_bands: bounds must be positive and increasing", "bands", cfg.ATHBands)
	}
	return opts
}
