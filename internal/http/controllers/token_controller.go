// Package controllers contiene los handlers HTTP del broker.
// Los controllers validan input, delegan al service y serializan la
// respuesta; toda la lógica vive en las capas de abajo.
package controllers

import (
	"net/http"
	"strings"

	"github.com/dropDatabas3/tokenbooth/internal/http/dto"
	httperrors "github.com/dropDatabas3/tokenbooth/internal/http/errors"
	"github.com/dropDatabas3/tokenbooth/internal/http/helpers"
	"github.com/dropDatabas3/tokenbooth/internal/issuance"
	"github.com/dropDatabas3/tokenbooth/internal/observability/logger"
)

// TokenController maneja POST /generate-token.
type TokenController struct {
	service *issuance.Service

	// onDecision permite enganchar métricas sin acoplar el service a prometheus
	onDecision func(decision string)
}

// NewTokenController crea el controller.
func NewTokenController(s *issuance.Service, onDecision func(string)) *TokenController {
	if onDecision == nil {
		onDecision = func(string) {}
	}
	return &TokenController{service: s, onDecision: onDecision}
}

// Generate handles POST /generate-token.
func (c *TokenController) Generate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("TokenController.Generate"))

	var req dto.GenerateTokenRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("name is required"))
		return
	}

	res, err := c.service.Issue(ctx, req.Name)
	if err != nil {
		log.Error("issuance failed", logger.Principal(req.Name), logger.Err(err))
		httperrors.WriteError(w, httperrors.Map(err))
		return
	}

	c.onDecision(string(res.Decision))
	log.Debug("token issued", logger.Principal(req.Name), logger.Decision(string(res.Decision)))

	helpers.WriteJSON(w, http.StatusOK, dto.GenerateTokenResponse{
		Identity: res.Identity,
		Token:    res.Token,
	})
}
