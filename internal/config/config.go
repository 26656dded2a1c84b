package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Config holds settings for both binaries.
type Config struct {
	APIBase         string
	SessionPath     string
	LogPath         string
	LogLevel        string
	RequestTimeout  time.Duration
	PollInterval    time.Duration
	PollMaxAttempts int
	Theme           string
	MetricsListen   string

	Analytics Analytics
	SEO       SEO
}

// Analytics configures the Kafka event sink. Empty brokers disable it.
type Analytics struct {
	KafkaBrokers []string
	KafkaTopic   string
}

// Enabled reports whether events should be published.
func (a Analytics) Enabled() bool {
	return len(a.KafkaBrokers) > 0 && a.KafkaTopic != ""
}

// SEO configures the crawler-facing renderer.
type SEO struct {
	Listen       string
	ContentAPI   string
	SPAURL       string
	RedisAddr    string
	CacheTTL     time.Duration
	SiteName     string
	DefaultImage string
}

const (
	defaultConfigPath      = "~/.config/jamie/config.toml"
	defaultSessionPath     = "~/.config/jamie/session.toml"
	defaultLogPath         = "~/.local/state/jamie/jamie.log"
	defaultAPIBase         = "https://www.pullthatupjamie.ai"
	defaultLogLevel        = "info"
	defaultRequestTimeout  = 20 * time.Second
	defaultPollInterval    = 15 * time.Second
	defaultPollMaxAttempts = 100
	defaultTheme           = "Jamie"
	defaultKafkaTopic      = "jamie.quota-modal"

	defaultSEOListen   = ":8787"
	defaultSPAURL      = "https://www.pullthatupjamie.ai"
	defaultCacheTTL    = 10 * time.Minute
	defaultSiteName    = "Pull That Up Jamie"
	defaultSocialImage = "https://www.pullthatupjamie.ai/jamie-og.png"
	envPrefix          = "JAMIE_"
)

// Default returns the built-in configuration with paths expanded.
func Default() Config {
	return Config{
		APIBase:         defaultAPIBase,
		SessionPath:     mustExpand(defaultSessionPath),
		LogPath:         mustExpand(defaultLogPath),
		LogLevel:        defaultLogLevel,
		RequestTimeout:  defaultRequestTimeout,
		PollInterval:    defaultPollInterval,
		PollMaxAttempts: defaultPollMaxAttempts,
		Theme:           defaultTheme,
		Analytics:       Analytics{KafkaTopic: defaultKafkaTopic},
		SEO: SEO{
			Listen:       defaultSEOListen,
			ContentAPI:   defaultAPIBase,
			SPAURL:       defaultSPAURL,
			CacheTTL:     defaultCacheTTL,
			SiteName:     defaultSiteName,
			DefaultImage: defaultSocialImage,
		},
	}
}

type rawConfig struct {
	APIBase         string `toml:"api_base"`
	SessionPath     string `toml:"session_path"`
	LogPath         string `toml:"log_path"`
	LogLevel        string `toml:"log_level"`
	RequestTimeout  string `toml:"request_timeout"`
	PollInterval    string `toml:"poll_interval"`
	PollMaxAttempts int    `toml:"poll_max_attempts"`
	Theme           string `toml:"theme"`
	MetricsListen   string `toml:"metrics_listen"`

	Analytics struct {
		KafkaBrokers []string `toml:"kafka_brokers"`
		KafkaTopic   string   `toml:"kafka_topic"`
	} `toml:"analytics"`

	SEO struct {
		Listen       string `toml:"listen"`
		ContentAPI   string `toml:"content_api"`
		SPAURL       string `toml:"spa_url"`
		RedisAddr    string `toml:"redis_addr"`
		CacheTTL     string `toml:"cache_ttl"`
		SiteName     string `toml:"site_name"`
		DefaultImage string `toml:"default_image"`
	} `toml:"seo"`
}

// Load locates and parses the config, falling back to defaults when missing.
// Blank fields keep their defaults.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw rawConfig
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	setString(&cfg.APIBase, raw.APIBase)
	setPath(&cfg.SessionPath, raw.SessionPath)
	setPath(&cfg.LogPath, raw.LogPath)
	setString(&cfg.LogLevel, raw.LogLevel)
	setString(&cfg.Theme, raw.Theme)
	setString(&cfg.MetricsListen, raw.MetricsListen)
	if raw.PollMaxAttempts > 0 {
		cfg.PollMaxAttempts = raw.PollMaxAttempts
	}
	if err := setDuration(&cfg.RequestTimeout, "request_timeout", raw.RequestTimeout); err != nil {
		return Config{}, err
	}
	if err := setDuration(&cfg.PollInterval, "poll_interval", raw.PollInterval); err != nil {
		return Config{}, err
	}

	cfg.Analytics.KafkaBrokers = cleanList(raw.Analytics.KafkaBrokers)
	setString(&cfg.Analytics.KafkaTopic, raw.Analytics.KafkaTopic)

	setString(&cfg.SEO.Listen, raw.SEO.Listen)
	setString(&cfg.SEO.ContentAPI, raw.SEO.ContentAPI)
	setString(&cfg.SEO.SPAURL, raw.SEO.SPAURL)
	setString(&cfg.SEO.RedisAddr, raw.SEO.RedisAddr)
	setString(&cfg.SEO.SiteName, raw.SEO.SiteName)
	setString(&cfg.SEO.DefaultImage, raw.SEO.DefaultImage)
	if err := setDuration(&cfg.SEO.CacheTTL, "seo.cache_ttl", raw.SEO.CacheTTL); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// ApplyEnv overlays JAMIE_* environment variables, loading a .env file from
// the working directory first when one exists. Used by the SEO server, which
// runs in containers without a config file.
func (c *Config) ApplyEnv() error {
	_ = godotenv.Load()

	setString(&c.APIBase, getEnv("API_BASE"))
	setString(&c.LogLevel, getEnv("LOG_LEVEL"))
	setString(&c.MetricsListen, getEnv("METRICS_LISTEN"))
	if brokers := cleanList(strings.Split(getEnv("KAFKA_BROKERS"), ",")); len(brokers) > 0 {
		c.Analytics.KafkaBrokers = brokers
	}
	setString(&c.Analytics.KafkaTopic, getEnv("KAFKA_TOPIC"))

	setString(&c.SEO.Listen, getEnv("SEO_LISTEN"))
	setString(&c.SEO.ContentAPI, getEnv("CONTENT_API"))
	setString(&c.SEO.SPAURL, getEnv("SPA_URL"))
	setString(&c.SEO.RedisAddr, getEnv("REDIS_ADDR"))
	setString(&c.SEO.SiteName, getEnv("SITE_NAME"))
	setString(&c.SEO.DefaultImage, getEnv("DEFAULT_IMAGE"))
	if err := setDuration(&c.SEO.CacheTTL, envPrefix+"CACHE_TTL", getEnv("CACHE_TTL")); err != nil {
		return err
	}
	if err := setDuration(&c.RequestTimeout, envPrefix+"REQUEST_TIMEOUT", getEnv("REQUEST_TIMEOUT")); err != nil {
		return err
	}
	if raw := getEnv("POLL_MAX_ATTEMPTS"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return fmt.Errorf("parse %sPOLL_MAX_ATTEMPTS %q: want a positive integer", envPrefix, raw)
		}
		c.PollMaxAttempts = n
	}
	return nil
}

func getEnv(key string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + key))
}

func setString(dst *string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		*dst = v
	}
}

func setPath(dst *string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		*dst = mustExpand(v)
	}
}

func setDuration(dst *time.Duration, key, value string) error {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("parse %s %q: %w", key, v, err)
	}
	if d <= 0 {
		return fmt.Errorf("parse %s %q: must be positive", key, v)
	}
	*dst = d
	return nil
}

func cleanList(items []string) []string {
	var out []string
	for _, item := range items {
		if v := strings.TrimSpace(item); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
