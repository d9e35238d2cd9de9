// Package federation orquesta el flujo Authorization Code + PKCE que puentea
// un usuario de identidad empresarial (AAD/Teams) hacia un token de acceso
// del servicio de comunicaciones.
//
// Máquina de estados por sesión:
//
//	INIT --(Start)--> AWAITING_CALLBACK --(Complete con code)--> DONE
//
// El estado carried (el code_verifier) vive en el SessionStore keyed por
// state, con TTL y consumo único.
package federation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dropDatabas3/tokenbooth/internal/identity"
	"github.com/dropDatabas3/tokenbooth/internal/observability/logger"
	"github.com/dropDatabas3/tokenbooth/internal/store"
)

// ErrExchange marca cualquier falla de la pierna de callback: code inválido o
// expirado, PKCE mismatch, state desconocido, o rechazo del provider. El
// flujo queda inutilizable y el caller debe reiniciar desde Start.
var ErrExchange = errors.New("federation exchange failed")

// Result es lo que devuelve Complete al caller.
type Result struct {
	TeamsUserAADToken string                     `json:"teamsUserAadToken"`
	UserObjectID      string                     `json:"userObjectId"`
	FederatedToken    store.FederatedTokenRecord `json:"federatedToken"`
}

// Controller orquesta el flujo completo: PKCE, canje del code contra AAD,
// intercambio por token de servicio vía el Broker, y persistencia.
type Controller struct {
	aad      *AAD
	broker   identity.Broker
	sessions *SessionStore
	db       *store.Guard

	redirectURI string
	scopes      []string
}

// NewController arma el controller con sus colaboradores. db debe ser el
// MISMO Guard que usa el service de emisión: ambos mutan el mismo snapshot.
func NewController(aad *AAD, broker identity.Broker, sessions *SessionStore, db *store.Guard, redirectURI string, scopes []string) *Controller {
	return &Controller{
		aad:         aad,
		broker:      broker,
		sessions:    sessions,
		db:          db,
		redirectURI: redirectURI,
		scopes:      scopes,
	}
}

// Start genera el par verifier/challenge, guarda la sesión pendiente y
// retorna la URL de autorización para redirigir el user-agent.
func (c *Controller) Start(ctx context.Context) (string, error) {
	verifier, err := GenerateVerifier()
	if err != nil {
		return "", fmt.Errorf("generate verifier: %w", err)
	}

	state := uuid.NewString()
	if err := c.sessions.Put(state, Session{
		Verifier:    verifier,
		RedirectURI: c.redirectURI,
		Scopes:      c.scopes,
	}); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}

	authURL := c.aad.AuthURL(state, ChallengeS256(verifier), c.redirectURI, c.scopes)

	logger.From(ctx).Debug("federation flow started", logger.FlowState(state))
	return authURL, nil
}

// Complete canjea el code con el verifier retenido, intercambia el token AAD
// por un token de servicio y lo persiste al frente de la secuencia federada.
//
// Cualquier falla del canje deja el store intacto y retorna ErrExchange; la
// sesión ya fue consumida, así que reintentar requiere un Start nuevo.
func (c *Controller) Complete(ctx context.Context, state, code string) (*Result, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("federation.Complete"))

	sess, err := c.sessions.Take(state)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown or expired state", ErrExchange)
	}

	tr, err := c.aad.ExchangeCode(ctx, code, sess.Verifier, sess.RedirectURI)
	if err != nil {
		log.Warn("aad code exchange rejected", logger.Err(err))
		return nil, fmt.Errorf("%w: %v", ErrExchange, err)
	}

	oid, err := ObjectIDFromToken(tr.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchange, err)
	}

	fed, err := c.broker.ExchangeFederatedToken(ctx, tr.AccessToken, c.aad.ClientID, oid)
	if err != nil {
		log.Warn("service token exchange failed", logger.Err(err), logger.UserObjectID(oid))
		return nil, fmt.Errorf("%w: %v", ErrExchange, err)
	}

	rec := store.FederatedTokenRecord{
		UserObjectID: oid,
		AccessToken:  fed.Token,
		ExpiresOn:    fed.ExpiresOn,
	}

	// Bajo el mismo lock que los writes de emisión: un Load/Save suelto acá
	// descartaría un principal persistido entre nuestro Load y nuestro Save
	if err := c.db.Update(ctx, func(snap *store.Snapshot) (bool, error) {
		snap.PrependFederated(rec)
		return true, nil
	}); err != nil {
		return nil, err
	}

	log.Info("federated token stored", logger.UserObjectID(oid))
	return &Result{
		TeamsUserAADToken: tr.AccessToken,
		UserObjectID:      oid,
		FederatedToken:    rec,
	}, nil
}
