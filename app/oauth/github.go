package oauth

import (
	"context"
	"strconv"
	"strings"

	"github.com/witos44/UserAuthSystem/app/entity"
	"github.com/witos44/UserAuthSystem/app/service"
	"github.com/witos44/UserAuthSystem/config"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const githubAPIURL = "https://api.github.com"

type GitHub struct {
	cfg    *oauth2.Config
	apiURL string
}

func NewGitHub(pc config.ProviderConfig) *GitHub {
	return &GitHub{
		cfg:    oauthConfig(pc, endpoints.GitHub, "user:email"),
		apiURL: githubAPIURL,
	}
}

func (g *GitHub) Name() entity.Provider {
	return entity.ProviderGitHub
}

func (g *GitHub) AuthCodeURL(state string) string {
	return g.cfg.AuthCodeURL(state)
}

// Exchange falls back to /user/emails when the public profile hides the
// address, taking the primary verified one.
func (g *GitHub) Exchange(ctx context.Context, code string) (*service.OAuthProfile, error) {
	token, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, errors.Wrap(err, "failed to exchange github authorization code")
	}
	client := g.cfg.Client(ctx, token)

	var user struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err = getJSON(ctx, client, g.apiURL+"/user", &user); err != nil {
		return nil, err
	}

	email := user.Email
	if email == "" {
		var emails []struct {
			Email    string `json:"email"`
			Primary  bool   `json:"primary"`
			Verified bool   `json:"verified"`
		}
		if err = getJSON(ctx, client, g.apiURL+"/user/emails", &emails); err != nil {
			return nil, err
		}
		for _, e := range emails {
			if e.Primary && e.Verified {
				email = e.Email
				break
			}
		}
	}

	first, last := splitDisplayName(user.Name)
	profile := &service.OAuthProfile{
		Provider:  entity.ProviderGitHub,
		Email:     email,
		FirstName: first,
		LastName:  last,
		AvatarURL: user.AvatarURL,
	}
	if user.ID != 0 {
		profile.SubjectID = strconv.FormatInt(user.ID, 10)
	}
	return profile, nil
}

// splitDisplayName splits on the first space: "Mona Lisa Octocat" gives
// "Mona" and "Lisa Octocat".
func splitDisplayName(name string) (string, string) {
	name = strings.TrimSpace(name)
	first, last, _ := strings.Cut(name, " ")
	return first, strings.TrimSpace(last)
}
