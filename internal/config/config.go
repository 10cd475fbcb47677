package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvPrefix = "SUBDECK"
	FileName  = ".subdeck"

	DefaultUploadConcurrency = 6
	DefaultDeleteConcurrency = 20
	MaxUploadConcurrency     = 16
	MaxDeleteConcurrency     = 50
	DefaultCacheTTL          = 30 * time.Second
	DefaultPageSize          = 20
	MaxPageSize              = 200
	DefaultTranslateModel    = "gemini-2.5-flash"
)

// Keys understood in the config file and as SUBDECK_* environment variables.
const (
	KeyAPIBaseURL        = "api.base_url"
	KeyAPITimeout        = "api.timeout"
	KeyStorageBaseURL    = "storage.base_url"
	KeyUploadConcurrency = "ingest.upload_concurrency"
	KeyDeleteConcurrency = "ingest.delete_concurrency"
	KeyJournalDir        = "ingest.journal_dir"
	KeyCacheTTL          = "search.cache_ttl"
	KeyPageSize          = "search.page_size"
	KeyPrefsPath         = "prefs.path"
	KeyTranslateModel    = "translate.model"
	KeyLogLevel          = "log.level"
)

// Config is the resolved runtime configuration.
type Config struct {
	APIBaseURL     string
	APITimeout     time.Duration
	StorageBaseURL string

	UploadConcurrency int
	DeleteConcurrency int
	JournalDir        string

	SearchCacheTTL time.Duration
	PageSize       int

	PrefsPath      string
	TranslateModel string
	LogLevel       string
}

// New returns a viper instance with defaults and environment binding applied.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyAPITimeout, 2*time.Minute)
	v.SetDefault(KeyUploadConcurrency, DefaultUploadConcurrency)
	v.SetDefault(KeyDeleteConcurrency, DefaultDeleteConcurrency)
	v.SetDefault(KeyJournalDir, ".")
	v.SetDefault(KeyCacheTTL, DefaultCacheTTL)
	v.SetDefault(KeyPageSize, DefaultPageSize)
	v.SetDefault(KeyPrefsPath, defaultPrefsPath())
	v.SetDefault(KeyTranslateModel, DefaultTranslateModel)
	v.SetDefault(KeyLogLevel, "info")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func defaultPrefsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "subdeck-prefs.db"
	}
	return filepath.Join(dir, "subdeck", "prefs.db")
}

// ReadFile reads cfgFile, or $HOME/.subdeck.yaml / ./.subdeck.yaml when empty.
// A missing default file is not an error. It returns the file used, if any.
func ReadFile(v *viper.Viper, cfgFile string) (string, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(FileName)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read config: %w", err)
	}
	return v.ConfigFileUsed(), nil
}

// FromViper resolves a Config from v.
func FromViper(v *viper.Viper) Config {
	return Config{
		APIBaseURL:        strings.TrimRight(v.GetString(KeyAPIBaseURL), "/"),
		APITimeout:        v.GetDuration(KeyAPITimeout),
		StorageBaseURL:    strings.TrimRight(v.GetString(KeyStorageBaseURL), "/"),
		UploadConcurrency: v.GetInt(KeyUploadConcurrency),
		DeleteConcurrency: v.GetInt(KeyDeleteConcurrency),
		JournalDir:        v.GetString(KeyJournalDir),
		SearchCacheTTL:    v.GetDuration(KeyCacheTTL),
		PageSize:          v.GetInt(KeyPageSize),
		PrefsPath:         v.GetString(KeyPrefsPath),
		TranslateModel:    v.GetString(KeyTranslateModel),
		LogLevel:          v.GetString(KeyLogLevel),
	}
}

// Load reads the config file and returns the normalized configuration along
// with notes about any clamped values.
func Load(v *viper.Viper, cfgFile string) (Config, []string, error) {
	if _, err := ReadFile(v, cfgFile); err != nil {
		return Config{}, nil, err
	}
	cfg, notes := FromViper(v).Normalize()
	return cfg, notes, nil
}

func clamp(name string, value, lo, hi int, notes *[]string) int {
	switch {
	case value < lo:
		*notes = append(*notes, fmt.Sprintf("%s raised from %d to %d", name, value, lo))
		return lo
	case value > hi:
		*notes = append(*notes, fmt.Sprintf("%s clamped from %d to %d (max %d)", name, value, hi, hi))
		return hi
	}
	return value
}

// Normalize applies safe bounds and returns any adjustments.
func (c Config) Normalize() (Config, []string) {
	var notes []string
	c.UploadConcurrency = clamp(KeyUploadConcurrency, c.UploadConcurrency, 1, MaxUploadConcurrency, &notes)
	c.DeleteConcurrency = clamp(KeyDeleteConcurrency, c.DeleteConcurrency, 1, MaxDeleteConcurrency, &notes)
	c.PageSize = clamp(KeyPageSize, c.PageSize, 1, MaxPageSize, &notes)
	if c.SearchCacheTTL < 0 {
		notes = append(notes, fmt.Sprintf("%s raised from %s to 0", KeyCacheTTL, c.SearchCacheTTL))
		c.SearchCacheTTL = 0
	}
	if c.APITimeout <= 0 {
		c.APITimeout = 2 * time.Minute
	}
	if c.JournalDir == "" {
		c.JournalDir = "."
	}
	if c.TranslateModel == "" {
		c.TranslateModel = DefaultTranslateModel
	}
	return c, notes
}

// ValidateAPI checks the settings commands that talk to the backend need.
func (c Config) ValidateAPI() error {
	return validateBaseURL(KeyAPIBaseURL, c.APIBaseURL)
}

// ValidateStorage checks the settings needed for media uploads.
func (c Config) ValidateStorage() error {
	return validateBaseURL(KeyStorageBaseURL, c.StorageBaseURL)
}

func validateBaseURL(key, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is not set (config file or SUBDECK_%s)", key, strings.ToUpper(strings.ReplaceAll(key, ".", "_")))
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL, got %q", key, raw)
	}
	return nil
}
