package fs

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/dropDatabas3/tokenbooth/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "db.json"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestLoad_EmptyDefault(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Sin archivo previo: estado vacío válido, nunca "not found"
	snap, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if snap.Principals == nil || len(snap.Principals) != 0 {
		t.Fatalf("expected empty principals, got %#v", snap.Principals)
	}
	if snap.Federated == nil || len(snap.Federated) != 0 {
		t.Fatalf("expected empty federated, got %#v", snap.Federated)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	snap := store.NewSnapshot()
	snap.UpsertPrincipal(store.PrincipalRecord{Name: "alice", Identity: "8:acs:id-1", Token: "tok-1"})
	snap.UpsertPrincipal(store.PrincipalRecord{Name: "bob", Identity: "8:acs:id-2", Token: "tok-2"})
	snap.PrependFederated(store.FederatedTokenRecord{UserObjectID: "oid-1", AccessToken: "fed-1"})

	if err := s.Save(ctx, snap); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// save(load()) debe ser un no-op: el estado releído es equivalente
	loaded, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := s.Save(ctx, loaded); err != nil {
		t.Fatalf("re-Save failed: %v", err)
	}
	again, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("re-Load failed: %v", err)
	}
	if !reflect.DeepEqual(loaded, again) {
		t.Fatalf("round-trip mismatch:\n%#v\n%#v", loaded, again)
	}
	if !reflect.DeepEqual(snap, again) {
		t.Fatalf("state lost in round-trip:\n%#v\n%#v", snap, again)
	}
}

func TestSave_ReplacesEntireContent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := store.NewSnapshot()
	first.UpsertPrincipal(store.PrincipalRecord{Name: "alice", Identity: "id-1", Token: "tok"})
	if err := s.Save(ctx, first); err != nil {
		t.Fatal(err)
	}

	second := store.NewSnapshot()
	if err := s.Save(ctx, second); err != nil {
		t.Fatal(err)
	}

	loaded, err := s.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Principals) != 0 {
		t.Fatalf("Save should replace, got %d principals", len(loaded.Principals))
	}
}

func TestSave_NoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "db.json"))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save(context.Background(), store.NewSnapshot()); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != "db.json" {
			t.Fatalf("unexpected leftover file: %s", e.Name())
		}
	}
}

func TestUpsertPrincipal_IdentityImmutable(t *testing.T) {
	snap := store.NewSnapshot()
	snap.UpsertPrincipal(store.PrincipalRecord{Name: "alice", Identity: "id-orig", Token: "tok-1"})

	// Upsert sobre un record existente solo reemplaza el token
	snap.UpsertPrincipal(store.PrincipalRecord{Name: "alice", Identity: "id-otra", Token: "tok-2"})

	rec := snap.FindPrincipal("alice")
	if rec == nil {
		t.Fatal("principal not found")
	}
	if rec.Identity != "id-orig" {
		t.Fatalf("identity must be immutable, got %s", rec.Identity)
	}
	if rec.Token != "tok-2" {
		t.Fatalf("token must be replaced, got %s", rec.Token)
	}
	if len(snap.Principals) != 1 {
		t.Fatalf("expected 1 record, got %d", len(snap.Principals))
	}
}

func TestPrependFederated_NewestFirst(t *testing.T) {
	snap := store.NewSnapshot()
	snap.PrependFederated(store.FederatedTokenRecord{UserObjectID: "a", AccessToken: "t1"})
	snap.PrependFederated(store.FederatedTokenRecord{UserObjectID: "b", AccessToken: "t2"})
	// Logins repetidos acumulan: no hay dedupe por UserObjectID
	snap.PrependFederated(store.FederatedTokenRecord{UserObjectID: "a", AccessToken: "t3"})

	if len(snap.Federated) != 3 {
		t.Fatalf("expected 3 records, got %d", len(snap.Federated))
	}
	head := snap.LatestFederated()
	if head == nil || head.AccessToken != "t3" {
		t.Fatalf("head must be the newest record, got %#v", head)
	}
}

func TestLoad_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "db.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	s, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(context.Background()); err == nil {
		t.Fatal("expected error for corrupt file")
	}
}
