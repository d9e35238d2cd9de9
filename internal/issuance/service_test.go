package issuance

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/tokenbooth/internal/freshness"
	"github.com/dropDatabas3/tokenbooth/internal/identity"
	"github.com/dropDatabas3/tokenbooth/internal/store"
	storefs "github.com/dropDatabas3/tokenbooth/internal/store/fs"
)

// fakeBroker cuenta llamadas y emite identities secuenciales con tokens
// JWT reales (firmados con una key de test) para que la política pueda
// leerles el exp.
type fakeBroker struct {
	mu       sync.Mutex
	creates  int
	issues   int
	tokenTTL time.Duration
	fail     bool
}

func (f *fakeBroker) CreateIdentity(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return "", &identity.ProviderError{Op: "createIdentity", Err: fmt.Errorf("boom")}
	}
	f.creates++
	return fmt.Sprintf("8:acs:test-%d", f.creates), nil
}

func (f *fakeBroker) IssueToken(ctx context.Context, id string, scopes []string) (*identity.TokenResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, &identity.ProviderError{Op: "issueToken", Err: fmt.Errorf("boom")}
	}
	f.issues++
	exp := time.Now().Add(f.tokenTTL)
	tok := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, jwtv5.MapClaims{
		"exp": exp.Unix(),
		"sub": id,
		"seq": f.issues, // cada emisión produce un token distinto
	})
	s, err := tok.SignedString([]byte("test-key"))
	if err != nil {
		return nil, err
	}
	return &identity.TokenResult{Token: s, ExpiresOn: exp.Unix()}, nil
}

func (f *fakeBroker) ExchangeFederatedToken(ctx context.Context, aadToken, clientID, oid string) (*identity.FederatedResult, error) {
	return &identity.FederatedResult{Token: "fed-token"}, nil
}

func (f *fakeBroker) counts() (creates, issues int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates, f.issues
}

func newService(t *testing.T, broker identity.Broker) *Service {
	t.Helper()
	db, err := storefs.New(filepath.Join(t.TempDir(), "db.json"))
	require.NoError(t, err)
	return New(store.NewGuard(db), broker, []string{"voip"})
}

func TestIssue_FirstTimeCreation(t *testing.T) {
	broker := &fakeBroker{tokenTTL: time.Hour}
	svc := newService(t, broker)
	ctx := context.Background()

	res, err := svc.Issue(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, freshness.Mint, res.Decision)
	require.NotEmpty(t, res.Identity)
	require.NotEmpty(t, res.Token)

	creates, issues := broker.counts()
	require.Equal(t, 1, creates, "create-then-issue exactamente una vez")
	require.Equal(t, 1, issues)

	// El record quedó persistido
	snap, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Principals, 1)
	require.Equal(t, res.Identity, snap.Principals[0].Identity)
}

func TestIssue_IdempotentReuse(t *testing.T) {
	broker := &fakeBroker{tokenTTL: time.Hour}
	svc := newService(t, broker)
	ctx := context.Background()

	first, err := svc.Issue(ctx, "alice")
	require.NoError(t, err)

	// Repetir con token vigente: mismo par (identity, token), cero llamadas
	// nuevas al provider
	for i := 0; i < 3; i++ {
		again, err := svc.Issue(ctx, "alice")
		require.NoError(t, err)
		require.Equal(t, freshness.Reuse, again.Decision)
		require.Equal(t, first.Identity, again.Identity)
		require.Equal(t, first.Token, again.Token)
	}

	creates, issues := broker.counts()
	require.Equal(t, 1, creates)
	require.Equal(t, 1, issues)
}

func TestIssue_RefreshOnExpiry(t *testing.T) {
	// TTL negativo: el token nace expirado
	broker := &fakeBroker{tokenTTL: -time.Minute}
	svc := newService(t, broker)
	ctx := context.Background()

	first, err := svc.Issue(ctx, "alice")
	require.NoError(t, err)

	second, err := svc.Issue(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, freshness.Refresh, second.Decision)
	require.Equal(t, first.Identity, second.Identity, "la identity no cambia en refresh")
	require.NotEqual(t, first.Token, second.Token, "el token se reemplaza")

	creates, issues := broker.counts()
	require.Equal(t, 1, creates, "refresh no crea identity nueva")
	require.Equal(t, 2, issues)

	// El token guardado es el refrescado
	snap, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Principals, 1)
	require.Equal(t, second.Token, snap.Principals[0].Token)
}

func TestIssue_ListingCompleteness(t *testing.T) {
	broker := &fakeBroker{tokenTTL: time.Hour}
	svc := newService(t, broker)
	ctx := context.Background()

	const n = 7
	results := make(map[string]*IssueResult, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("user-%d", i)
		res, err := svc.Issue(ctx, name)
		require.NoError(t, err)
		results[name] = res
	}

	snap, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Principals, n)

	seen := map[string]bool{}
	for _, rec := range snap.Principals {
		expected := results[rec.Name]
		require.NotNil(t, expected, "record inesperado: %s", rec.Name)
		require.Equal(t, expected.Identity, rec.Identity)
		require.Equal(t, expected.Token, rec.Token)
		require.False(t, seen[rec.Identity], "identities deben ser distintas")
		seen[rec.Identity] = true
	}
}

func TestIssue_ConcurrentSameName(t *testing.T) {
	broker := &fakeBroker{tokenTTL: time.Hour}
	svc := newService(t, broker)
	ctx := context.Background()

	// N requests concurrentes del mismo nombre no deben duplicar identities
	// ni perder updates: el singleflight + lock los serializa
	const n = 16
	var wg sync.WaitGroup
	var failed atomic.Int32
	identities := make([]string, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.Issue(ctx, "alice")
			if err != nil {
				failed.Add(1)
				return
			}
			identities[i] = res.Identity
		}(i)
	}
	wg.Wait()

	require.Zero(t, failed.Load())
	for i := 1; i < n; i++ {
		require.Equal(t, identities[0], identities[i], "todos deben ver la misma identity")
	}

	creates, _ := broker.counts()
	require.Equal(t, 1, creates, "solo una identity creada bajo concurrencia")

	snap, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Principals, 1)
}

func TestIssue_ProviderFailureSurfaces(t *testing.T) {
	broker := &fakeBroker{tokenTTL: time.Hour, fail: true}
	svc := newService(t, broker)

	_, err := svc.Issue(context.Background(), "alice")
	require.Error(t, err)

	var provErr *identity.ProviderError
	require.ErrorAs(t, err, &provErr)

	// Nada quedó persistido
	snap, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, snap.Principals)
}
