package acs

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/dropDatabas3/tokenbooth/internal/identity"
)

var testKey = []byte("clave-de-firma-para-tests-0123456789abcdef")

// newTestClient apunta el cliente a un servidor fake con una key conocida y
// un reloj congelado para que la firma sea reproducible.
func newTestClient(t *testing.T, srvURL string) *Client {
	t.Helper()
	cs := "endpoint=" + srvURL + ";accesskey=" + base64.StdEncoding.EncodeToString(testKey)
	c, err := New(cs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.now = func() time.Time { return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC) }
	return c
}

func TestParseConnectionString(t *testing.T) {
	ep, key, err := ParseConnectionString(
		"endpoint=https://demo.communication.azure.com/;accesskey=" + base64.StdEncoding.EncodeToString(testKey))
	if err != nil {
		t.Fatalf("error inesperado: %v", err)
	}
	if ep != "https://demo.communication.azure.com" {
		t.Errorf("endpoint = %q, se esperaba sin slash final", ep)
	}
	if string(key) != string(testKey) {
		t.Errorf("accesskey no coincide")
	}
}

func TestParseConnectionString_Invalid(t *testing.T) {
	cases := []string{
		"",
		"endpoint=https://demo.communication.azure.com/",
		"accesskey=" + base64.StdEncoding.EncodeToString(testKey),
		"endpoint=https://x;accesskey=%%%no-base64%%%",
	}
	for _, cs := range cases {
		if _, _, err := ParseConnectionString(cs); err == nil {
			t.Errorf("ParseConnectionString(%q): se esperaba error", cs)
		}
	}
}

// verifySignature recomputa la firma HMAC del request igual que el servidor
// real y la compara contra el header Authorization.
func verifySignature(t *testing.T, r *http.Request, body []byte) {
	t.Helper()

	hash := sha256.Sum256(body)
	wantHash := base64.StdEncoding.EncodeToString(hash[:])
	if got := r.Header.Get("x-ms-content-sha256"); got != wantHash {
		t.Errorf("x-ms-content-sha256 = %q, quiere %q", got, wantHash)
	}

	date := r.Header.Get("x-ms-date")
	if date == "" {
		t.Fatal("falta x-ms-date")
	}

	pathAndQuery := r.URL.Path
	if r.URL.RawQuery != "" {
		pathAndQuery += "?" + r.URL.RawQuery
	}
	stringToSign := r.Method + "\n" + pathAndQuery + "\n" + date + ";" + r.Host + ";" + wantHash

	mac := hmac.New(sha256.New, testKey)
	mac.Write([]byte(stringToSign))
	wantSig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	want := "HMAC-SHA256 SignedHeaders=x-ms-date;host;x-ms-content-sha256&Signature=" + wantSig
	if got := r.Header.Get("Authorization"); got != want {
		t.Errorf("Authorization =\n  %q\nquiere\n  %q", got, want)
	}
}

func TestCreateIdentity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/identities" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("api-version"); got != apiVersion {
			t.Errorf("api-version = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		verifySignature(t, r, body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"identity":{"id":"8:acs:abc-123"}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	id, err := c.CreateIdentity(context.Background())
	if err != nil {
		t.Fatalf("CreateIdentity: %v", err)
	}
	if id != "8:acs:abc-123" {
		t.Errorf("id = %q", id)
	}
}

func TestCreateIdentity_EmptyID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"identity":{}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	if _, err := c.CreateIdentity(context.Background()); err == nil {
		t.Fatal("se esperaba error con respuesta sin identity.id")
	}
}

func TestIssueToken(t *testing.T) {
	expires := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wantPath := "/identities/" + url.PathEscape("8:acs:abc-123") + "/:issueAccessToken"
		if r.URL.Path != wantPath {
			t.Errorf("path = %q, quiere %q", r.URL.Path, wantPath)
		}
		body, _ := io.ReadAll(r.Body)
		verifySignature(t, r, body)

		var req struct {
			Scopes []string `json:"scopes"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatalf("body inválido: %v", err)
		}
		if len(req.Scopes) != 1 || req.Scopes[0] != "voip" {
			t.Errorf("scopes = %v", req.Scopes)
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"token":     "eyJ.token.firmado",
			"expiresOn": expires.Format(time.RFC3339),
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	res, err := c.IssueToken(context.Background(), "8:acs:abc-123", []string{"voip"})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if res.Token != "eyJ.token.firmado" {
		t.Errorf("token = %q", res.Token)
	}
	if res.ExpiresOn != expires.Unix() {
		t.Errorf("expiresOn = %d, quiere %d", res.ExpiresOn, expires.Unix())
	}
}

func TestExchangeFederatedToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/teamsUser/:exchangeAccessToken" {
			t.Errorf("path = %q", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		verifySignature(t, r, body)

		var req map[string]string
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatalf("body inválido: %v", err)
		}
		if req["token"] != "aad-tok" || req["appId"] != "client-1" || req["userId"] != "oid-9" {
			t.Errorf("payload = %v", req)
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"token":     "service-tok",
			"expiresOn": time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	res, err := c.ExchangeFederatedToken(context.Background(), "aad-tok", "client-1", "oid-9")
	if err != nil {
		t.Fatalf("ExchangeFederatedToken: %v", err)
	}
	if res.Token != "service-tok" {
		t.Errorf("token = %q", res.Token)
	}
}

func TestProviderErrorMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":"Denied","message":"signature mismatch"}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.CreateIdentity(context.Background())
	if err == nil {
		t.Fatal("se esperaba error")
	}

	var pe *identity.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("error no es ProviderError: %T", err)
	}
	if pe.Status != http.StatusUnauthorized {
		t.Errorf("Status = %d", pe.Status)
	}
	if pe.Op != "createIdentity" {
		t.Errorf("Op = %q", pe.Op)
	}
}
