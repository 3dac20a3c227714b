// Package offers exposes negotiation history over HTTP.
package offers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/voltmesh/fex/core/audit"
	"github.com/voltmesh/fex/core/model"
)

// NewLogHandler returns an HTTP handler exposing negotiation logs via
// GET /api/offers/logs. Requests must include an Authorization header with
// "Bearer <token>" when token is non-empty.
func NewLogHandler(store audit.LogStore, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token != "" {
			auth := r.Header.Get("Authorization")
			if auth != "Bearer "+token {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		q := audit.LogQuery{}
		if s := r.URL.Query().Get("start"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.Start = t
			}
		}
		if s := r.URL.Query().Get("end"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.End = t
			}
		}
		if s := r.URL.Query().Get("offer_id"); s != "" {
			if id, err := uuid.Parse(s); err == nil {
				q.OfferID = id
			}
		}
		q.FacilityUID = r.URL.Query().Get("facility_uid")
		if s := r.URL.Query().Get("state"); s != "" {
			if st, ok := model.ParseExecutionState(s); ok {
				q.State = st
			}
		}
		records, err := store.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(records); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}
