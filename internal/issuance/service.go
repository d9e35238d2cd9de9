// Package issuance orquesta el ciclo load→decide→provider→save de emisión de
// tokens para principals anónimos.
package issuance

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/tokenbooth/internal/freshness"
	"github.com/dropDatabas3/tokenbooth/internal/identity"
	"github.com/dropDatabas3/tokenbooth/internal/observability/logger"
	"github.com/dropDatabas3/tokenbooth/internal/store"
)

// IssueResult es la credencial devuelta al caller, junto con la decisión que
// la produjo (reuse|refresh|mint) para logging y métricas.
type IssueResult struct {
	Identity string
	Token    string
	Decision freshness.Decision
}

// Service emite y cachea tokens por principal.
//
// Concurrencia: sf colapsa requests concurrentes del MISMO nombre en una
// sola ejecución (ambos callers reciben el mismo resultado); el ciclo
// read-modify-write corre dentro de Guard.Update, el mismo lock que usa el
// flujo de federación, así ningún writer pisa a otro.
//
// Las lecturas puras (List, LatestFederated) no toman el lock.
type Service struct {
	db     *store.Guard
	broker identity.Broker
	scopes []string

	sf singleflight.Group

	// now es inyectable para tests de la política de frescura
	now func() time.Time
}

// New crea el service. scopes es la lista de capacidades de los tokens
// emitidos (configuración; default "voip").
func New(db *store.Guard, broker identity.Broker, scopes []string) *Service {
	if len(scopes) == 0 {
		scopes = []string{"voip"}
	}
	return &Service{db: db, broker: broker, scopes: scopes, now: time.Now}
}

// Issue retorna la credencial para name, reusando la cacheada si sigue
// vigente, refrescándola si expiró, o creando identity+token si el principal
// no existe todavía.
func (s *Service) Issue(ctx context.Context, name string) (*IssueResult, error) {
	v, err, _ := s.sf.Do(name, func() (any, error) {
		return s.issue(ctx, name)
	})
	if err != nil {
		return nil, err
	}
	return v.(*IssueResult), nil
}

func (s *Service) issue(ctx context.Context, name string) (*IssueResult, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Principal(name))

	var res *IssueResult
	err := s.db.Update(ctx, func(snap *store.Snapshot) (bool, error) {
		rec := snap.FindPrincipal(name)
		decision := freshness.Decide(rec, s.now().Unix())

		switch decision {
		case freshness.Reuse:
			// Token vigente: no tocar el provider ni el store
			res = &IssueResult{Identity: rec.Identity, Token: rec.Token, Decision: decision}
			return false, nil

		case freshness.Refresh:
			tok, err := s.broker.IssueToken(ctx, rec.Identity, s.scopes)
			if err != nil {
				return false, err
			}
			snap.UpsertPrincipal(store.PrincipalRecord{Name: name, Identity: rec.Identity, Token: tok.Token})
			log.Info("token refreshed", logger.Identity(rec.Identity))
			res = &IssueResult{Identity: rec.Identity, Token: tok.Token, Decision: decision}
			return true, nil

		default: // Mint
			id, err := s.broker.CreateIdentity(ctx)
			if err != nil {
				return false, err
			}
			tok, err := s.broker.IssueToken(ctx, id, s.scopes)
			if err != nil {
				return false, err
			}
			snap.UpsertPrincipal(store.PrincipalRecord{Name: name, Identity: id, Token: tok.Token})
			log.Info("principal created", logger.Identity(id))
			res = &IssueResult{Identity: id, Token: tok.Token, Decision: freshness.Mint}
			return true, nil
		}
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// List retorna el estado completo (principals + federated).
func (s *Service) List(ctx context.Context) (*store.Snapshot, error) {
	return s.db.Load(ctx)
}

// LatestFederated retorna el record federado más reciente, o nil si no hay.
func (s *Service) LatestFederated(ctx context.Context) (*store.FederatedTokenRecord, error) {
	snap, err := s.db.Load(ctx)
	if err != nil {
		return nil, err
	}
	return snap.LatestFederated(), nil
}
