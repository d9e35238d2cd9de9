package store

import (
	"context"
	"sync"
)

// Guard serializa los ciclos read-modify-write sobre un Store.
//
// Save reemplaza el snapshot completo, así que dos writers concurrentes se
// pisan: el segundo Save descarta lo que el primero acababa de persistir.
// El medio durable no protege ese ciclo, de modo que TODA mutación — venga
// de emisión o de federación — debe pasar por el mismo Guard.
//
// Las lecturas puras van directo por Load, sin lock: ven el estado viejo o
// el nuevo, nunca una mezcla, porque cada Save del adapter es atómico.
type Guard struct {
	mu sync.Mutex
	db Store
}

// NewGuard envuelve un Store con el lock de mutación.
func NewGuard(db Store) *Guard {
	return &Guard{db: db}
}

// Update ejecuta fn bajo el lock: carga el snapshot, lo pasa a fn y, si fn
// retorna save=true, lo escribe de vuelta. fn puede hacer llamadas al
// provider adentro; ningún otro Update corre mientras tanto.
func (g *Guard) Update(ctx context.Context, fn func(snap *Snapshot) (save bool, err error)) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	snap, err := g.db.Load(ctx)
	if err != nil {
		return err
	}
	save, err := fn(snap)
	if err != nil {
		return err
	}
	if !save {
		return nil
	}
	return g.db.Save(ctx, snap)
}

// Load lee el snapshot sin tomar el lock.
func (g *Guard) Load(ctx context.Context) (*Snapshot, error) { return g.db.Load(ctx) }

// Save escribe el snapshot bajo el lock. Preferir Update: un Save suelto
// sobre un snapshot leído antes del lock puede descartar escrituras ajenas.
func (g *Guard) Save(ctx context.Context, snap *Snapshot) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.db.Save(ctx, snap)
}

func (g *Guard) Ping(ctx context.Context) error { return g.db.Ping(ctx) }

func (g *Guard) Close() error { return g.db.Close() }
