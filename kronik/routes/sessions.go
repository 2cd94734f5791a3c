package routes

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"kronik/kronik/controllers"
	"kronik/kronik/sources/sqldb/dao"

	"github.com/go-chi/chi/v5"
)

func handleJSON(handler func(r *http.Request) (any, int, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, status, err := handler(r)
		if err != nil {
			http.Error(w, err.Error(), status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(res)
	}
}

func statusFor(err error) int {
	if errors.Is(err, dao.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func limitParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, errors.New("limit must be a non-negative integer")
	}
	return limit, nil
}

func SessionRoutes(ctrl *controllers.SessionsController) chi.Router {
	r := chi.NewRouter()

	r.Get("/", handleJSON(func(r *http.Request) (any, int, error) {
		limit, err := limitParam(r)
		if err != nil {
			return nil, http.StatusBadRequest, err
		}
		sessions, err := ctrl.ListSessions(r.Context(), limit)
		if err != nil {
			return nil, http.StatusInternalServerError, err
		}
		return sessions, http.StatusOK, nil
	}))

	r.Get("/active", handleJSON(func(r *http.Request) (any, int, error) {
		s, err := ctrl.GetActiveSession(r.Context())
		if err != nil {
			return nil, statusFor(err), err
		}
		return s, http.StatusOK, nil
	}))

	r.Get("/{id}", handleJSON(func(r *http.Request) (any, int, error) {
		s, err := ctrl.GetSession(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			return nil, statusFor(err), err
		}
		return s, http.StatusOK, nil
	}))

	r.Get("/{id}/videos", handleJSON(func(r *http.Request) (any, int, error) {
		limit, err := limitParam(r)
		if err != nil {
			return nil, http.StatusBadRequest, err
		}
		videos, err := ctrl.ListVideos(r.Context(), chi.URLParam(r, "id"), limit)
		if err != nil {
			return nil, statusFor(err), err
		}
		return videos, http.StatusOK, nil
	}))
	return r
}

func VideoRoutes(ctrl *controllers.SessionsController) chi.Router {
	r := chi.NewRouter()
	r.Get("/{id}", handleJSON(func(r *http.Request) (any, int, error) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			return nil, http.StatusBadRequest, err
		}
		video, err := ctrl.GetVideo(r.Context(), id)
		if err != nil {
			return nil, statusFor(err), err
		}
		return video, http.StatusOK, nil
	}))
	return r
}
