package config

import (
	"os"
	"path/filepath"
	"testing"
)

var envKeys = []string{
	"TELEGRAM_BOT_TOKEN", "TELEGRAM_API_URL", "TELEGRAM_DROP_PENDING",
	"SERVING_PROVIDER", "DATABRICKS_SERVING_ENDPOINT", "DATABRICKS_HOST", "DATABRICKS_TOKEN",
	"DATABRICKS_CLIENT_ID", "DATABRICKS_CLIENT_SECRET", "GEMINI_API_KEY", "SERVING_TIMEOUT",
	"POLL_INTERVAL", "POLL_WAIT", "POLL_COOLDOWN",
	"BRIDGE_SECURITY_MODE", "BRIDGE_ALLOWED_CHATS", "BRIDGE_RATE_LIMIT", "BRIDGE_RATE_WINDOW",
	"BRIDGE_HEALTH_ADDR", "BRIDGE_CORS_ORIGINS", "LOG_LEVEL", "LOG_FORMAT",
}

// isolate clears every variable Load reads and points it at a config file
// that does not exist.
func isolate(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
	t.Setenv("BRIDGE_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Polling.Interval != 2 || cfg.Polling.Wait != 30 || cfg.Polling.Cooldown != 5 {
		t.Fatalf("polling defaults = %+v", cfg.Polling)
	}
	if cfg.Serving.Provider != ProviderDatabricks {
		t.Fatalf("provider = %q, want databricks", cfg.Serving.Provider)
	}
	if cfg.Telegram.APIURL != "https://api.telegram.org" {
		t.Fatalf("api url = %q", cfg.Telegram.APIURL)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	isolate(t)

	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[telegram]
bot_token = "file-token"

[serving]
endpoint = "file-endpoint"
host = "https://example.cloud.databricks.com"

[polling]
interval = 7

[security]
mode = "allowlist"
allowed_chats = ["42"]
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BRIDGE_CONFIG", path)
	t.Setenv("DATABRICKS_SERVING_ENDPOINT", "env-endpoint")
	t.Setenv("POLL_COOLDOWN", "9")
	t.Setenv("BRIDGE_ALLOWED_CHATS", "1, 2 ,,3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.BotToken != "file-token" {
		t.Errorf("bot token = %q, want file-token", cfg.Telegram.BotToken)
	}
	if cfg.Serving.Endpoint != "env-endpoint" {
		t.Errorf("endpoint = %q, env should win", cfg.Serving.Endpoint)
	}
	if cfg.Polling.Interval != 7 || cfg.Polling.Cooldown != 9 {
		t.Errorf("polling = %+v", cfg.Polling)
	}
	if got := cfg.Security.AllowedChats; len(got) != 3 || got[0] != "1" || got[2] != "3" {
		t.Errorf("allowed chats = %v", got)
	}
}

func TestLoadInvalidFile(t *testing.T) {
	isolate(t)

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[telegram\nbot_token ="), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BRIDGE_CONFIG", path)

	if _, err := Load(); err == nil {
		t.Fatal("expected decode error")
	}
}

func validConfig() Config {
	cfg := defaults()
	cfg.Telegram.BotToken = "123:abc"
	cfg.Serving.Endpoint = "my-endpoint"
	cfg.Serving.Host = "https://example.cloud.databricks.com"
	cfg.Serving.Token = "dapi"
	return cfg
}

func TestValidateRequiresToken(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.BotToken = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing bot token")
	}
}

func TestValidateRequiresEndpoint(t *testing.T) {
	cfg := validConfig()
	cfg.Serving.Endpoint = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing endpoint")
	}
}

func TestValidateDatabricksCredentials(t *testing.T) {
	cfg := validConfig()
	cfg.Serving.Token = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error without token or client credentials")
	}

	cfg.Serving.ClientID = "id"
	cfg.Serving.ClientSecret = "secret"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("client credentials should be accepted: %v", err)
	}
}

func TestValidateGemini(t *testing.T) {
	cfg := validConfig()
	cfg.Serving.Provider = "Gemini"
	cfg.Serving.Host = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error without api key")
	}
	cfg.Serving.APIKey = "key"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Serving.Provider != ProviderGemini {
		t.Fatalf("provider = %q, want normalised gemini", cfg.Serving.Provider)
	}
}

func TestValidateUnknownProvider(t *testing.T) {
	cfg := validConfig()
	cfg.Serving.Provider = "bedrock"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestValidateClampsTunables(t *testing.T) {
	cfg := validConfig()
	cfg.Polling = PollingConfig{Interval: -1, Wait: 0, Cooldown: -3}
	cfg.Security.Mode = "weird"
	cfg.Security.RateLimit = -5
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Polling.Interval != 2 || cfg.Polling.Wait != 30 || cfg.Polling.Cooldown != 5 {
		t.Fatalf("polling = %+v", cfg.Polling)
	}
	if cfg.Security.Mode != "open" || cfg.Security.RateLimit != 0 {
		t.Fatalf("security = %+v", cfg.Security)
	}
}

func TestValidateAllowsZeroInterval(t *testing.T) {
	cfg := validConfig()
	cfg.Polling.Interval = 0
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Polling.Interval != 0 {
		t.Fatalf("interval = %d, want 0 kept", cfg.Polling.Interval)
	}
}
