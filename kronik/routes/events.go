package routes

import (
	"net/http"

	"kronik/kronik/controllers"
	"kronik/kronik/utils/logging"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func EventRoutes(ctrl *controllers.EventsController) chi.Router {
	r := chi.NewRouter()
	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		// Same-origin only: a page on another origin gets a 403 before any event.
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			logging.ErrorLogger.Error("websocket accept error", zap.Error(err))
			return
		}
		ctrl.StreamEvents(r.Context(), conn)
	})
	return r
}
