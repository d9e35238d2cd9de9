package controllers

import (
	"net/http"

	"github.com/dropDatabas3/tokenbooth/internal/http/helpers"
	"github.com/dropDatabas3/tokenbooth/internal/store"
)

// HealthController maneja GET /healthz.
type HealthController struct {
	db store.Store
}

func NewHealthController(db store.Store) *HealthController {
	return &HealthController{db: db}
}

// Healthz reporta liveness del proceso y acceso al store.
func (c *HealthController) Healthz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := c.db.Ping(r.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	helpers.WriteJSON(w, code, map[string]string{"status": status})
}
