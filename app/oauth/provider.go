package oauth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/witos44/UserAuthSystem/app/entity"
	"github.com/witos44/UserAuthSystem/app/service"
	"github.com/witos44/UserAuthSystem/config"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// Provider runs the authorization code flow against one identity provider.
type Provider interface {
	Name() entity.Provider
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*service.OAuthProfile, error)
}

// Registry holds the providers that have credentials configured.
type Registry map[entity.Provider]Provider

func NewRegistry(cfg config.OAuthConfig) Registry {
	registry := Registry{}
	if cfg.Google.Enabled() {
		registry[entity.ProviderGoogle] = NewGoogle(cfg.Google)
	}
	if cfg.GitHub.Enabled() {
		registry[entity.ProviderGitHub] = NewGitHub(cfg.GitHub)
	}
	return registry
}

func (r Registry) Get(name string) (Provider, bool) {
	p, ok := r[entity.Provider(name)]
	return p, ok
}

func oauthConfig(pc config.ProviderConfig, endpoint oauth2.Endpoint, scopes ...string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     pc.ClientID,
		ClientSecret: pc.ClientSecret,
		RedirectURL:  pc.RedirectURL,
		Endpoint:     endpoint,
		Scopes:       scopes,
	}
}

// getJSON fetches url with client and decodes a 200 response into out.
func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create profile request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "failed to fetch %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return errors.Errorf("profile request %s failed with status %d: %s", url, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "failed to decode %s", url)
	}
	return nil
}
