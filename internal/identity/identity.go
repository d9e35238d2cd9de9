// Package identity define el contrato con el proveedor de identidad del
// servicio de comunicaciones. El broker no modela el transporte más allá de
// "falla con ProviderError".
package identity

import (
	"context"
	"fmt"
)

// TokenResult es un token de acceso emitido para una identity.
type TokenResult struct {
	Token     string
	ExpiresOn int64 // Unix seconds
}

// FederatedResult es el token de servicio obtenido al intercambiar un token
// AAD de un usuario federado.
type FederatedResult struct {
	Token     string
	ExpiresOn int64
}

// Broker envuelve las tres operaciones del proveedor de identidad.
type Broker interface {
	// CreateIdentity aloca una identity opaca nueva en el provider.
	// Se llama solo cuando ningún record existente matchea el nombre pedido.
	CreateIdentity(ctx context.Context) (string, error)

	// IssueToken emite (o refresca) un token de acceso para una identity
	// existente, con la lista de scopes configurada.
	IssueToken(ctx context.Context, identityID string, scopes []string) (*TokenResult, error)

	// ExchangeFederatedToken intercambia un token AAD de usuario + el client
	// ID de la aplicación por un token de acceso del servicio ligado a ese
	// usuario federado.
	ExchangeFederatedToken(ctx context.Context, aadToken, clientID, userObjectID string) (*FederatedResult, error)
}

// ProviderError marca una falla de red o de respuesta del provider.
type ProviderError struct {
	Op     string
	Status int // 0 si la falla fue de red/timeout
	Err    error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("provider %s: http %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("provider %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
