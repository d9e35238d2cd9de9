// Package router arma el árbol de rutas del broker sobre chi.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/tokenbooth/internal/http/controllers"
)

// Deps contiene los controllers que registra el router.
type Deps struct {
	Token      *controllers.TokenController
	Users      *controllers.UsersController
	Federation *controllers.FederationController
	Health     *controllers.HealthController

	// Metrics es el handler de /metrics. Opcional.
	Metrics http.Handler
}

// New registra todas las rutas y retorna el router.
func New(deps Deps) chi.Router {
	r := chi.NewRouter()

	// Emisión y lectura
	r.Post("/generate-token", deps.Token.Generate)
	r.Get("/all-users", deps.Users.All)
	r.Get("/teams-token", deps.Users.TeamsToken)

	// Federación: dos piernas del flujo authorization-code
	r.Get("/", deps.Federation.Start)
	r.Get("/redirect", deps.Federation.Complete)

	// Operacional
	r.Get("/healthz", deps.Health.Healthz)
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}

	return r
}
