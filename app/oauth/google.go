package oauth

import (
	"context"

	"github.com/witos44/UserAuthSystem/app/entity"
	"github.com/witos44/UserAuthSystem/app/service"
	"github.com/witos44/UserAuthSystem/config"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

type Google struct {
	cfg         *oauth2.Config
	userInfoURL string
}

func NewGoogle(pc config.ProviderConfig) *Google {
	return &Google{
		cfg:         oauthConfig(pc, endpoints.Google, "profile", "email"),
		userInfoURL: googleUserInfoURL,
	}
}

func (g *Google) Name() entity.Provider {
	return entity.ProviderGoogle
}

func (g *Google) AuthCodeURL(state string) string {
	return g.cfg.AuthCodeURL(state)
}

func (g *Google) Exchange(ctx context.Context, code string) (*service.OAuthProfile, error) {
	token, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, errors.Wrap(err, "failed to exchange google authorization code")
	}

	var user struct {
		ID         string `json:"id"`
		Email      string `json:"email"`
		GivenName  string `json:"given_name"`
		FamilyName string `json:"family_name"`
		Picture    string `json:"picture"`
	}
	if err = getJSON(ctx, g.cfg.Client(ctx, token), g.userInfoURL, &user); err != nil {
		return nil, err
	}

	return &service.OAuthProfile{
		Provider:  entity.ProviderGoogle,
		SubjectID: user.ID,
		Email:     user.Email,
		FirstName: user.GivenName,
		LastName:  user.FamilyName,
		AvatarURL: user.Picture,
	}, nil
}
