// Package acs implementa el Broker contra la REST API del servicio de
// identidad de comunicaciones (Azure Communication Services).
//
// La autenticación es HMAC-SHA256 sobre cada request, derivada del
// connection string ("endpoint=...;accesskey=..."), igual que hace el SDK
// oficial por debajo.
package acs

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dropDatabas3/tokenbooth/internal/identity"
)

const apiVersion = "2023-10-01"

// Client habla con el provider por HTTP firmando cada request.
type Client struct {
	endpoint  *url.URL
	accessKey []byte
	http      *http.Client

	// now es inyectable para tests de firma
	now func() time.Time
}

// ParseConnectionString separa endpoint y accesskey.
// Formato: "endpoint=https://host/;accesskey=base64".
func ParseConnectionString(cs string) (endpoint string, key []byte, err error) {
	for _, part := range strings.Split(cs, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			return "", nil, fmt.Errorf("connection string: segmento inválido %q", part)
		}
		switch strings.ToLower(k) {
		case "endpoint":
			endpoint = strings.TrimRight(v, "/")
		case "accesskey":
			key, err = base64.StdEncoding.DecodeString(v)
			if err != nil {
				return "", nil, fmt.Errorf("connection string: accesskey no es base64: %w", err)
			}
		}
	}
	if endpoint == "" || len(key) == 0 {
		return "", nil, errors.New("connection string: faltan endpoint o accesskey")
	}
	return endpoint, key, nil
}

// New crea el cliente desde un connection string.
func New(connectionString string) (*Client, error) {
	ep, key, err := ParseConnectionString(connectionString)
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(ep)
	if err != nil {
		return nil, fmt.Errorf("endpoint inválido: %w", err)
	}
	return &Client{
		endpoint:  u,
		accessKey: key,
		http:      &http.Client{Timeout: 10 * time.Second},
		now:       time.Now,
	}, nil
}

// sign agrega los headers de autenticación HMAC al request.
// String-to-sign: "VERB\npath?query\ndate;host;contentHash".
func (c *Client) sign(req *http.Request, body []byte) {
	contentHash := sha256.Sum256(body)
	contentHashB64 := base64.StdEncoding.EncodeToString(contentHash[:])
	date := c.now().UTC().Format(http.TimeFormat)

	pathAndQuery := req.URL.Path
	if req.URL.RawQuery != "" {
		pathAndQuery += "?" + req.URL.RawQuery
	}

	stringToSign := req.Method + "\n" + pathAndQuery + "\n" +
		date + ";" + req.URL.Host + ";" + contentHashB64

	mac := hmac.New(sha256.New, c.accessKey)
	mac.Write([]byte(stringToSign))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	req.Header.Set("x-ms-date", date)
	req.Header.Set("x-ms-content-sha256", contentHashB64)
	req.Header.Set("Authorization",
		"HMAC-SHA256 SignedHeaders=x-ms-date;host;x-ms-content-sha256&Signature="+signature)
}

// post firma y ejecuta un POST JSON, decodificando la respuesta en out.
func (c *Client) post(ctx context.Context, op, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &identity.ProviderError{Op: op, Err: err}
	}
	if payload == nil {
		body = []byte("{}")
	}

	u := *c.endpoint
	u.Path = path
	u.RawQuery = "api-version=" + apiVersion

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return &identity.ProviderError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	c.sign(req, body)

	resp, err := c.http.Do(req)
	if err != nil {
		return &identity.ProviderError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var detail struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = json.Unmarshal(raw, &detail)
		msg := detail.Error.Message
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return &identity.ProviderError{
			Op:     op,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("%s: %s", detail.Error.Code, msg),
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &identity.ProviderError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	return nil
}

// accessTokenResponse es la forma del token en las respuestas del provider.
type accessTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresOn time.Time `json:"expiresOn"`
}

// CreateIdentity aloca una identity nueva.
func (c *Client) CreateIdentity(ctx context.Context) (string, error) {
	var resp struct {
		Identity struct {
			ID string `json:"id"`
		} `json:"identity"`
	}
	if err := c.post(ctx, "createIdentity", "/identities", map[string]any{}, &resp); err != nil {
		return "", err
	}
	if resp.Identity.ID == "" {
		return "", &identity.ProviderError{Op: "createIdentity", Err: errors.New("respuesta sin identity.id")}
	}
	return resp.Identity.ID, nil
}

// IssueToken emite un token de acceso para una identity existente.
func (c *Client) IssueToken(ctx context.Context, identityID string, scopes []string) (*identity.TokenResult, error) {
	var resp accessTokenResponse
	path := "/identities/" + url.PathEscape(identityID) + "/:issueAccessToken"
	if err := c.post(ctx, "issueToken", path, map[string]any{"scopes": scopes}, &resp); err != nil {
		return nil, err
	}
	return &identity.TokenResult{Token: resp.Token, ExpiresOn: resp.ExpiresOn.Unix()}, nil
}

// ExchangeFederatedToken intercambia un token AAD por un token del servicio.
func (c *Client) ExchangeFederatedToken(ctx context.Context, aadToken, clientID, userObjectID string) (*identity.FederatedResult, error) {
	var resp accessTokenResponse
	payload := map[string]any{
		"token":  aadToken,
		"appId":  clientID,
		"userId": userObjectID,
	}
	if err := c.post(ctx, "exchangeFederatedToken", "/teamsUser/:exchangeAccessToken", payload, &resp); err != nil {
		return nil, err
	}
	return &identity.FederatedResult{Token: resp.Token, ExpiresOn: resp.ExpiresOn.Unix()}, nil
}
