package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config holds all configuration for the serving bridge.
type Config struct {
	Telegram TelegramConfig `toml:"telegram"`
	Serving  ServingConfig  `toml:"serving"`
	Polling  PollingConfig  `toml:"polling"`
	Security SecurityConfig `toml:"security"`
	Health   HealthConfig   `toml:"health"`
	Log      LogConfig      `toml:"log"`
}

type TelegramConfig struct {
	BotToken    string `toml:"bot_token"`
	APIURL      string `toml:"api_url"`
	DropPending bool   `toml:"drop_pending"`
}

type ServingConfig struct {
	Provider     string `toml:"provider"`
	Endpoint     string `toml:"endpoint"`
	Host         string `toml:"host"`
	Token        string `toml:"token"`
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	APIKey       string `toml:"api_key"`
	Timeout      int    `toml:"timeout"`
}

// PollingConfig values are in seconds.
type PollingConfig struct {
	Interval int `toml:"interval"`
	Wait     int `toml:"wait"`
	Cooldown int `toml:"cooldown"`
}

type SecurityConfig struct {
	Mode         string   `toml:"mode"`
	AllowedChats []string `toml:"allowed_chats"`
	RateLimit    int      `toml:"rate_limit"`
	RateWindow   int      `toml:"rate_window"`
	DenyMessage  string   `toml:"deny_message"`
}

type HealthConfig struct {
	Addr           string   `toml:"addr"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

const (
	ProviderDatabricks = "databricks"
	ProviderGemini     = "gemini"

	defaultInterval = 2
	defaultWait     = 30
	defaultCooldown = 5
	defaultTimeout  = 120
)

func defaults() Config {
	return Config{
		Telegram: TelegramConfig{
			APIURL: "https://api.telegram.org",
		},
		Serving: ServingConfig{
			Provider: ProviderDatabricks,
			Timeout:  defaultTimeout,
		},
		Polling: PollingConfig{
			Interval: defaultInterval,
			Wait:     defaultWait,
			Cooldown: defaultCooldown,
		},
		Security: SecurityConfig{
			Mode:        "open",
			RateWindow:  60,
			DenyMessage: "Sorry, this bot is not available in this chat.",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from the TOML config file (if it exists) and
// applies environment variable overrides. Env vars always win.
//
// Config file resolution: BRIDGE_CONFIG env var → ~/.config/serving-bridge/config.toml → skip.
func Load() (*Config, error) {
	cfg := defaults()

	path := configPath()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return nil, fmt.Errorf("decode %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)
	return &cfg, nil
}

func configPath() string {
	if p := os.Getenv("BRIDGE_CONFIG"); p != "" {
		return expandHome(p)
	}
	home := os.Getenv("HOME")
	if home == "" {
		return ""
	}
	return filepath.Join(home, ".config", "serving-bridge", "config.toml")
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_API_URL"); v != "" {
		cfg.Telegram.APIURL = v
	}
	if v := os.Getenv("TELEGRAM_DROP_PENDING"); v != "" {
		cfg.Telegram.DropPending = v == "true" || v == "1"
	}

	if v := os.Getenv("SERVING_PROVIDER"); v != "" {
		cfg.Serving.Provider = v
	}
	if v := os.Getenv("DATABRICKS_SERVING_ENDPOINT"); v != "" {
		cfg.Serving.Endpoint = v
	}
	if v := os.Getenv("DATABRICKS_HOST"); v != "" {
		cfg.Serving.Host = v
	}
	if v := os.Getenv("DATABRICKS_TOKEN"); v != "" {
		cfg.Serving.Token = v
	}
	if v := os.Getenv("DATABRICKS_CLIENT_ID"); v != "" {
		cfg.Serving.ClientID = v
	}
	if v := os.Getenv("DATABRICKS_CLIENT_SECRET"); v != "" {
		cfg.Serving.ClientSecret = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Serving.APIKey = v
	}
	setInt("SERVING_TIMEOUT", &cfg.Serving.Timeout)

	setInt("POLL_INTERVAL", &cfg.Polling.Interval)
	setInt("POLL_WAIT", &cfg.Polling.Wait)
	setInt("POLL_COOLDOWN", &cfg.Polling.Cooldown)

	if v := os.Getenv("BRIDGE_SECURITY_MODE"); v != "" {
		cfg.Security.Mode = v
	}
	if v := os.Getenv("BRIDGE_ALLOWED_CHATS"); v != "" {
		cfg.Security.AllowedChats = splitList(v)
	}
	setInt("BRIDGE_RATE_LIMIT", &cfg.Security.RateLimit)
	setInt("BRIDGE_RATE_WINDOW", &cfg.Security.RateWindow)

	if v := os.Getenv("BRIDGE_HEALTH_ADDR"); v != "" {
		cfg.Health.Addr = v
	}
	if v := os.Getenv("BRIDGE_CORS_ORIGINS"); v != "" {
		cfg.Health.AllowedOrigins = splitList(v)
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// setInt overrides *dst with the integer value of key when it parses.
func setInt(key string, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
		*dst = n
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate normalises tunables and checks that required fields are set for
// the configured provider. Out-of-range tunables fall back to defaults; a
// missing credential or endpoint is an error.
func (c *Config) Validate() error {
	if c.Polling.Interval < 0 {
		c.Polling.Interval = defaultInterval
	}
	if c.Polling.Wait <= 0 {
		c.Polling.Wait = defaultWait
	}
	if c.Polling.Cooldown <= 0 {
		c.Polling.Cooldown = defaultCooldown
	}
	if c.Serving.Timeout <= 0 {
		c.Serving.Timeout = defaultTimeout
	}

	switch strings.ToLower(c.Security.Mode) {
	case "allowlist":
		c.Security.Mode = "allowlist"
	default:
		c.Security.Mode = "open"
	}
	if c.Security.RateLimit < 0 {
		c.Security.RateLimit = 0
	}
	if c.Security.RateWindow <= 0 {
		c.Security.RateWindow = 60
	}

	if c.Telegram.BotToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN must be set")
	}
	if c.Serving.Endpoint == "" {
		return errors.New("DATABRICKS_SERVING_ENDPOINT must be set")
	}

	c.Serving.Provider = strings.ToLower(strings.TrimSpace(c.Serving.Provider))
	switch c.Serving.Provider {
	case "", ProviderDatabricks:
		c.Serving.Provider = ProviderDatabricks
		if c.Serving.Host == "" {
			return errors.New("DATABRICKS_HOST must be set for the databricks provider")
		}
		if c.Serving.Token == "" && (c.Serving.ClientID == "" || c.Serving.ClientSecret == "") {
			return errors.New("set DATABRICKS_TOKEN or DATABRICKS_CLIENT_ID and DATABRICKS_CLIENT_SECRET")
		}
	case ProviderGemini:
		if c.Serving.APIKey == "" {
			return errors.New("GEMINI_API_KEY must be set for the gemini provider")
		}
	default:
		return fmt.Errorf("unsupported serving provider %q", c.Serving.Provider)
	}

	return nil
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home := os.Getenv("HOME"); home != "" {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
