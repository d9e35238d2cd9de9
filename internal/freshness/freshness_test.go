package freshness

import (
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/dropDatabas3/tokenbooth/internal/store"
)

var testKey = []byte("test-signing-key")

// tokenWithExp arma un JWT firmado con un exp dado.
// La firma no importa para la política (se lee sin verificar), pero usamos
// tokens bien formados como los que emite el provider real.
func tokenWithExp(t *testing.T, exp int64) string {
	t.Helper()
	tok := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, jwtv5.MapClaims{
		"exp":     exp,
		"skypeid": "acs-user",
	})
	s, err := tok.SignedString(testKey)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func tokenWithoutExp(t *testing.T) string {
	t.Helper()
	tok := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, jwtv5.MapClaims{"sub": "x"})
	s, err := tok.SignedString(testKey)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestDecide_NilRecordIsMint(t *testing.T) {
	if d := Decide(nil, time.Now().Unix()); d != Mint {
		t.Fatalf("expected Mint, got %s", d)
	}
}

func TestDecide_ValidTokenIsReuse(t *testing.T) {
	now := time.Now().Unix()
	rec := &store.PrincipalRecord{Name: "a", Token: tokenWithExp(t, now+3600)}
	if d := Decide(rec, now); d != Reuse {
		t.Fatalf("expected Reuse, got %s", d)
	}
}

func TestDecide_ExpiredTokenIsRefresh(t *testing.T) {
	now := time.Now().Unix()
	rec := &store.PrincipalRecord{Name: "a", Token: tokenWithExp(t, now-1)}
	if d := Decide(rec, now); d != Refresh {
		t.Fatalf("expected Refresh, got %s", d)
	}
}

func TestDecide_ExactExpirySecondIsRefresh(t *testing.T) {
	// Sin ventana de gracia: now == exp ya no es reusable
	now := time.Now().Unix()
	rec := &store.PrincipalRecord{Name: "a", Token: tokenWithExp(t, now)}
	if d := Decide(rec, now); d != Refresh {
		t.Fatalf("expected Refresh at exact expiry, got %s", d)
	}
}

func TestDecide_MalformedTokenIsRefresh(t *testing.T) {
	cases := []string{
		"",
		"garbage",
		"a.b",         // faltan partes
		"!!!.???.###", // no base64
	}
	now := time.Now().Unix()
	for _, tok := range cases {
		rec := &store.PrincipalRecord{Name: "a", Token: tok}
		if d := Decide(rec, now); d != Refresh {
			t.Fatalf("token %q: expected Refresh, got %s", tok, d)
		}
	}
}

func TestDecide_MissingExpIsRefresh(t *testing.T) {
	rec := &store.PrincipalRecord{Name: "a", Token: tokenWithoutExp(t)}
	if d := Decide(rec, time.Now().Unix()); d != Refresh {
		t.Fatal("token sin exp debe refrescarse")
	}
}

func TestPeekExpiryUnverified(t *testing.T) {
	exp := time.Now().Add(time.Hour).Unix()
	got, err := PeekExpiryUnverified(tokenWithExp(t, exp))
	if err != nil {
		t.Fatalf("peek failed: %v", err)
	}
	if got != exp {
		t.Fatalf("expected exp %d, got %d", exp, got)
	}

	if _, err := PeekExpiryUnverified("not-a-jwt"); err == nil {
		t.Fatal("expected decode error")
	}
}
