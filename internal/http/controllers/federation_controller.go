package controllers

import (
	"net/http"
	"strings"

	"github.com/dropDatabas3/tokenbooth/internal/federation"
	"github.com/dropDatabas3/tokenbooth/internal/http/dto"
	httperrors "github.com/dropDatabas3/tokenbooth/internal/http/errors"
	"github.com/dropDatabas3/tokenbooth/internal/http/helpers"
	"github.com/dropDatabas3/tokenbooth/internal/observability/logger"
)

// FederationController maneja las dos piernas HTTP del flujo de federación:
// GET / (redirige al identity provider) y GET /redirect (callback con code).
type FederationController struct {
	flow *federation.Controller

	onFlow func(result string)
}

func NewFederationController(flow *federation.Controller, onFlow func(string)) *FederationController {
	if onFlow == nil {
		onFlow = func(string) {}
	}
	return &FederationController{flow: flow, onFlow: onFlow}
}

// Start handles GET /.
// Responde 302 con Location apuntando a la URL de autorización del provider.
func (c *FederationController) Start(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("FederationController.Start"))

	authURL, err := c.flow.Start(ctx)
	if err != nil {
		log.Error("start federation failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.Map(err))
		return
	}

	c.onFlow("started")
	http.Redirect(w, r, authURL, http.StatusFound)
}

// Complete handles GET /redirect?code=...&state=...
func (c *FederationController) Complete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("FederationController.Complete"))

	q := r.URL.Query()
	code := strings.TrimSpace(q.Get("code"))
	state := strings.TrimSpace(q.Get("state"))
	if code == "" || state == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("code and state query params are required"))
		return
	}

	res, err := c.flow.Complete(ctx, state, code)
	if err != nil {
		c.onFlow("failed")
		log.Error("complete federation failed", logger.FlowState(state), logger.Err(err))
		httperrors.WriteError(w, httperrors.Map(err))
		return
	}

	c.onFlow("completed")
	helpers.WriteJSON(w, http.StatusOK, dto.CompleteFederationResponse{
		TeamsUserAADToken: res.TeamsUserAADToken,
		UserObjectID:      res.UserObjectID,
		FederatedToken:    res.FederatedToken,
	})
}
