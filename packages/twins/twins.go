package twins

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func newRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	return r
}

// All mounts every twin on one router under the paths the real APIs use:
// /v1/breweries, /api/breeds and /posts.
func All() http.Handler {
	r := newRouter()
	r.Route("/v1", newBreweryTwin().routes)
	r.Route("/api", newDogsTwin().routes)
	placeholderRoutes(r)
	return r
}
