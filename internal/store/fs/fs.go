// Package fs implementa el adapter FileSystem para el store del broker.
// El estado completo vive en un único archivo JSON, escrito con
// atomicwrite para garantizar old-or-new ante crashes.
package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dropDatabas3/tokenbooth/internal/store"
	"github.com/dropDatabas3/tokenbooth/internal/util/atomicwrite"
)

// Store persiste el Snapshot en un archivo JSON.
type Store struct {
	path string
}

// New crea el adapter. Si el directorio padre no existe, lo crea.
func New(path string) (*Store, error) {
	if path == "" {
		path = "db.json"
	}
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("fs: create dir %s: %w", dir, err)
		}
	}
	return &Store{path: path}, nil
}

// Load lee el estado completo. Si el archivo no existe todavía, retorna el
// estado vacío por defecto: la ausencia no es un error.
func (s *Store) Load(ctx context.Context) (*store.Snapshot, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return store.NewSnapshot(), nil
		}
		return nil, fmt.Errorf("%w: read %s: %v", store.ErrStore, s.path, err)
	}

	var snap store.Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", store.ErrStore, s.path, err)
	}

	// Normalizar slices nil para que el snapshot siempre sea usable
	if snap.Principals == nil {
		snap.Principals = []store.PrincipalRecord{}
	}
	if snap.Federated == nil {
		snap.Federated = []store.FederatedTokenRecord{}
	}
	return &snap, nil
}

// Save reemplaza el contenido completo del archivo de forma atómica.
func (s *Store) Save(ctx context.Context, snap *store.Snapshot) error {
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %v", store.ErrStore, err)
	}
	if err := atomicwrite.AtomicWriteFile(s.path, b, 0644); err != nil {
		return fmt.Errorf("%w: write %s: %v", store.ErrStore, s.path, err)
	}
	return nil
}

// Ping verifica que el directorio del archivo sea accesible.
func (s *Store) Ping(ctx context.Context) error {
	dir := filepath.Dir(s.path)
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("%w: stat %s: %v", store.ErrStore, dir, err)
	}
	return nil
}

func (s *Store) Close() error { return nil }
