// Package errors define la taxonomía de errores del broker y su mapeo a HTTP.
//
// Clases: validación (4xx, nunca se reintenta), provider (5xx), store (5xx),
// canje de federación (5xx con detalle del provider). Todas se atrapan en el
// boundary HTTP: ninguna tumba el proceso.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/dropDatabas3/tokenbooth/internal/federation"
	"github.com/dropDatabas3/tokenbooth/internal/identity"
	"github.com/dropDatabas3/tokenbooth/internal/store"
)

// errorResponse estructura interna para la serialización JSON.
// Esto nos permite controlar exactamente qué campos se envían al cliente.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// WriteError escribe una respuesta HTTP basada en el error proporcionado.
// Maneja automáticamente errores de tipo *AppError y errores genéricos.
func WriteError(w http.ResponseWriter, err error) {
	appErr := FromError(err)

	resp := errorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
		Detail:  appErr.Detail,
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.HTTPStatus)

	_ = json.NewEncoder(w).Encode(resp)
}

// Map clasifica errores de las capas internas en su AppError correspondiente.
// Errores ya tipados como *AppError pasan directo.
func Map(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}

	var provErr *identity.ProviderError
	switch {
	case stderrors.As(err, &provErr):
		return ErrProviderFailure.WithCause(err).WithDetail(provErr.Error())
	case stderrors.Is(err, federation.ErrExchange):
		return ErrFederationExchange.WithCause(err).WithDetail(err.Error())
	case stderrors.Is(err, store.ErrStore):
		return ErrStoreFailure.WithCause(err)
	default:
		return ErrInternalServerError.WithCause(err)
	}
}
