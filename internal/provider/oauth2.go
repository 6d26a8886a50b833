// oauth2.go provides the shared OAuth2 code-exchange building block used by
// descriptors that support the OAuth2 installation path.
package provider

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

// OAuth2CodeExchange returns an OAuth2ExchangeFunc that exchanges the
// authorization code in payload["code"] for a token against the given
// endpoint and maps the token into provider authentication fields. The
// optional payload["redirect_uri"] overrides the configured redirect.
func OAuth2CodeExchange(clientID, clientSecret, redirectURL string, endpoint oauth2.Endpoint, scopes ...string) OAuth2ExchangeFunc {
	return func(ctx context.Context, payload map[string]string) (map[string]string, error) {
		code := payload["code"]
		if code == "" {
			return nil, &ConfigurationError{Reason: "oauth2 payload is missing the authorization code"}
		}

		conf := &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     endpoint,
			Scopes:       scopes,
		}
		if uri := payload["redirect_uri"]; uri != "" {
			conf.RedirectURL = uri
		}

		tok, err := conf.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("oauth2 code exchange failed: %w", err)
		}

		fields := map[string]string{
			"access_token": tok.AccessToken,
			"token_type":   tok.TokenType,
		}
		if tok.RefreshToken != "" {
			fields["refresh_token"] = tok.RefreshToken
		}
		return fields, nil
	}
}
