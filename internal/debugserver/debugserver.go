// Package debugserver exposes a small introspection HTTP surface over a
// running client — what talents it has registered and whether it's alive —
// for local debugging. It is grounded on the control plane's chi-based
// api.NewRouter: global middleware (recoverer, request ID) plus a
// handful of read-only routes, with auth and the rest of that router's
// surface area left out since there's nothing here worth protecting.
package debugserver

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/covesa/iotea-go-sdk/pkg/model"
)

// SchemaSource is the subset of *client.Client the debug server needs.
// Kept as an interface so this package doesn't import client, which would
// otherwise be a dependency cycle risk if client ever wants to mount this
// server itself.
type SchemaSource interface {
	Schemas() []model.TalentSchema
}

// New builds the debug HTTP handler for src.
func New(src SchemaSource) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RequestID)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/schemas", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(src.Schemas()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	return r
}
