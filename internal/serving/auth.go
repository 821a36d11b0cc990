package serving

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/Enriquefft/telegram-serving-bridge/internal/config"
)

// databricksScope grants access to every workspace REST API, including
// serving-endpoints.
const databricksScope = "all-apis"

// authenticatedClient wraps base with Databricks credentials: a personal
// access token when one is configured, otherwise OAuth machine-to-machine
// client credentials against the workspace token endpoint. Both share base's
// transport.
func authenticatedClient(cfg config.ServingConfig, base *http.Client) *http.Client {
	if base == nil {
		base = http.DefaultClient
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	return oauth2.NewClient(ctx, tokenSource(ctx, cfg))
}

func tokenSource(ctx context.Context, cfg config.ServingConfig) oauth2.TokenSource {
	if cfg.Token != "" {
		return oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: cfg.Token,
			TokenType:   "Bearer",
		})
	}

	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     normalizeHost(cfg.Host) + "/oidc/v1/token",
		Scopes:       []string{databricksScope},
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	return cc.TokenSource(ctx)
}

// normalizeHost accepts workspace hosts with or without scheme.
func normalizeHost(host string) string {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host != "" && !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	return host
}
