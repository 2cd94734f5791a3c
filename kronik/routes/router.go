package routes

import (
	"time"

	"kronik/kronik/controllers"
	"kronik/kronik/middlewares"
	"kronik/kronik/utils/logging"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Controllers are the handlers mounted on the status server. Sessions and
// Events are optional and require AuthSecret: without one they stay
// unmounted and only the status report is served.
type Controllers struct {
	Health     *controllers.HealthController
	Sessions   *controllers.SessionsController
	Events     *controllers.EventsController
	AuthSecret string
}

func NewRouter(c Controllers) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewares.RequestLogger)
	r.Use(middleware.Recoverer)

	protected := c.AuthSecret != ""
	if !protected && (c.Sessions != nil || c.Events != nil) {
		logging.Named("http").Warn("KRONIK_AUTH_SECRET not set, session API and event stream disabled")
	}

	// The event stream is long-lived and stays outside the request timeout.
	if protected && c.Events != nil {
		r.Group(func(ar chi.Router) {
			ar.Use(middlewares.AuthMiddleware(c.AuthSecret))
			ar.Mount("/events", EventRoutes(c.Events))
		})
	}
	r.Group(func(gr chi.Router) {
		gr.Use(middleware.Timeout(60 * time.Second))
		gr.Mount("/", StatusRoutes(c.Health))
		if protected && c.Sessions != nil {
			gr.Group(func(ar chi.Router) {
				ar.Use(middlewares.AuthMiddleware(c.AuthSecret))
				ar.Mount("/sessions", SessionRoutes(c.Sessions))
				ar.Mount("/videos", VideoRoutes(c.Sessions))
			})
		}
	})
	return r
}
