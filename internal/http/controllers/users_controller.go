package controllers

import (
	"net/http"

	"github.com/dropDatabas3/tokenbooth/internal/http/dto"
	httperrors "github.com/dropDatabas3/tokenbooth/internal/http/errors"
	"github.com/dropDatabas3/tokenbooth/internal/http/helpers"
	"github.com/dropDatabas3/tokenbooth/internal/issuance"
	"github.com/dropDatabas3/tokenbooth/internal/observability/logger"
)

// UsersController maneja las lecturas puras del store:
// GET /all-users y GET /teams-token.
type UsersController struct {
	service *issuance.Service
}

func NewUsersController(s *issuance.Service) *UsersController {
	return &UsersController{service: s}
}

// All handles GET /all-users.
func (c *UsersController) All(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	snap, err := c.service.List(ctx)
	if err != nil {
		logger.From(ctx).Error("list users failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.Map(err))
		return
	}

	helpers.WriteJSON(w, http.StatusOK, dto.AllUsersResponse{
		Principals: snap.Principals,
		Federated:  snap.Federated,
	})
}

// TeamsToken handles GET /teams-token.
// Devuelve el record federado más reciente, o 404 si no hay ninguno.
func (c *UsersController) TeamsToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rec, err := c.service.LatestFederated(ctx)
	if err != nil {
		logger.From(ctx).Error("latest federated lookup failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.Map(err))
		return
	}
	if rec == nil {
		httperrors.WriteError(w, httperrors.ErrNoFederatedToken)
		return
	}

	helpers.WriteJSON(w, http.StatusOK, rec)
}
