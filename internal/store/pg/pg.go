// Package pg implementa el adapter PostgreSQL para el store del broker.
// Usa pgxpool directamente. Mantiene el mismo contrato full-snapshot que el
// adapter fs: Load lee todo, Save reemplaza todo dentro de una transacción,
// así un lector concurrente ve el estado viejo o el nuevo, nunca una mezcla.
package pg

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/tokenbooth/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS principals (
	name     TEXT PRIMARY KEY,
	identity TEXT NOT NULL,
	token    TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS federated_tokens (
	position       BIGSERIAL PRIMARY KEY,
	user_object_id TEXT NOT NULL,
	access_token   TEXT NOT NULL,
	expires_on     BIGINT NOT NULL DEFAULT 0,
	metadata       JSONB
);
`

// Store persiste el Snapshot en dos tablas.
// federated_tokens usa position descendente como orden "más reciente primero".
type Store struct {
	pool *pgxpool.Pool
}

// New conecta al DSN dado y asegura el schema.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %v", store.ErrStore, err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ensure schema: %v", store.ErrStore, err)
	}
	return &Store{pool: pool}, nil
}

// Load lee el estado completo. Tablas vacías equivalen al estado vacío por
// defecto: la ausencia no es un error.
func (s *Store) Load(ctx context.Context) (*store.Snapshot, error) {
	snap := store.NewSnapshot()

	rows, err := s.pool.Query(ctx, `SELECT name, identity, token FROM principals ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("%w: query principals: %v", store.ErrStore, err)
	}
	for rows.Next() {
		var rec store.PrincipalRecord
		if err := rows.Scan(&rec.Name, &rec.Identity, &rec.Token); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%w: scan principal: %v", store.ErrStore, err)
		}
		snap.Principals = append(snap.Principals, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: principals rows: %v", store.ErrStore, err)
	}

	rows, err = s.pool.Query(ctx, `SELECT user_object_id, access_token, expires_on, metadata FROM federated_tokens ORDER BY position DESC`)
	if err != nil {
		return nil, fmt.Errorf("%w: query federated: %v", store.ErrStore, err)
	}
	defer rows.Close()
	for rows.Next() {
		var rec store.FederatedTokenRecord
		if err := rows.Scan(&rec.UserObjectID, &rec.AccessToken, &rec.ExpiresOn, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("%w: scan federated: %v", store.ErrStore, err)
		}
		snap.Federated = append(snap.Federated, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: federated rows: %v", store.ErrStore, err)
	}

	return snap, nil
}

// Save reemplaza el contenido completo en una transacción.
func (s *Store) Save(ctx context.Context, snap *store.Snapshot) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: begin: %v", store.ErrStore, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM principals`); err != nil {
		return fmt.Errorf("%w: clear principals: %v", store.ErrStore, err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM federated_tokens`); err != nil {
		return fmt.Errorf("%w: clear federated: %v", store.ErrStore, err)
	}

	for _, rec := range snap.Principals {
		if _, err := tx.Exec(ctx,
			`INSERT INTO principals (name, identity, token) VALUES ($1, $2, $3)`,
			rec.Name, rec.Identity, rec.Token); err != nil {
			return fmt.Errorf("%w: insert principal %s: %v", store.ErrStore, rec.Name, err)
		}
	}

	// Insertar en orden inverso: el head del snapshot recibe la position
	// más alta y Load (ORDER BY position DESC) lo devuelve primero.
	for i := len(snap.Federated) - 1; i >= 0; i-- {
		rec := snap.Federated[i]
		if _, err := tx.Exec(ctx,
			`INSERT INTO federated_tokens (user_object_id, access_token, expires_on, metadata) VALUES ($1, $2, $3, $4)`,
			rec.UserObjectID, rec.AccessToken, rec.ExpiresOn, rec.Metadata); err != nil {
			return fmt.Errorf("%w: insert federated: %v", store.ErrStore, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %v", store.ErrStore, err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: ping: %v", store.ErrStore, err)
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
