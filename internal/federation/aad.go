package federation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// AAD es el cliente OAuth2 contra el identity provider empresarial
// (login.microsoftonline.com). Solo implementa las dos piernas que necesita
// el flujo: construir la URL de autorización y canjear el code.
type AAD struct {
	ClientID     string
	ClientSecret string
	TenantID     string

	// BaseURL permite apuntar a un servidor fake en tests.
	// Default: https://login.microsoftonline.com
	BaseURL string

	http *http.Client
}

// NewAAD crea el cliente. tenantID vacío usa "common" (multi-tenant).
func NewAAD(clientID, clientSecret, tenantID string) *AAD {
	if tenantID == "" {
		tenantID = "common"
	}
	return &AAD{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TenantID:     tenantID,
		BaseURL:      "https://login.microsoftonline.com",
		http:         &http.Client{Timeout: 10 * time.Second},
	}
}

func (a *AAD) authorizeEndpoint() string {
	return a.BaseURL + "/" + a.TenantID + "/oauth2/v2.0/authorize"
}

func (a *AAD) tokenEndpoint() string {
	return a.BaseURL + "/" + a.TenantID + "/oauth2/v2.0/token"
}

// AuthURL construye la URL de autorización con PKCE S256.
func (a *AAD) AuthURL(state, challenge, redirectURI string, scopes []string) string {
	u, _ := url.Parse(a.authorizeEndpoint())
	q := u.Query()
	q.Set("response_type", "code")
	q.Set("client_id", a.ClientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("scope", strings.Join(scopes, " "))
	q.Set("state", state)
	q.Set("code_challenge", challenge)
	q.Set("code_challenge_method", "S256")
	u.RawQuery = q.Encode()
	return u.String()
}

// AADTokenResponse es la respuesta del token endpoint.
type AADTokenResponse struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
}

// ExchangeCode canjea el authorization code + verifier por tokens.
func (a *AAD) ExchangeCode(ctx context.Context, code, verifier, redirectURI string) (*AADTokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", a.ClientID)
	form.Set("redirect_uri", redirectURI)
	form.Set("code_verifier", verifier)
	if a.ClientSecret != "" {
		form.Set("client_secret", a.ClientSecret)
	}

	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, a.tokenEndpoint(), strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var b struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&b)
		return nil, fmt.Errorf("token http %d: %s %s", resp.StatusCode, b.Error, b.ErrorDescription)
	}

	var tr AADTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, err
	}
	return &tr, nil
}

// ObjectIDFromToken extrae el claim oid (object ID del usuario en el
// directorio) de un token AAD, sin verificar firma. El token acaba de llegar
// del token endpoint por TLS: el broker confía en su origen.
func ObjectIDFromToken(token string) (string, error) {
	claims := jwtv5.MapClaims{}
	if _, _, err := jwtv5.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("decode aad token: %w", err)
	}
	if oid, _ := claims["oid"].(string); oid != "" {
		return oid, nil
	}
	// Algunos tokens traen el object ID solo en sub
	if sub, _ := claims["sub"].(string); sub != "" {
		return sub, nil
	}
	return "", fmt.Errorf("aad token sin claim oid")
}
