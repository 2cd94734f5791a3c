package routes

import (
	"kronik/kronik/controllers"

	"github.com/go-chi/chi/v5"
)

// StatusRoutes serves the host status report on "/" and "/status". Both
// accept HEAD so uptime checkers can poll without a body.
func StatusRoutes(ctrl *controllers.HealthController) chi.Router {
	r := chi.NewRouter()
	for _, path := range []string{"/", "/status"} {
		r.Get(path, ctrl.HealthCheck)
		r.Head(path, ctrl.HealthCheck)
	}
	return r
}
