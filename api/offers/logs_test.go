package offers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/voltmesh/fex/core/audit"
	"github.com/voltmesh/fex/core/model"
)

type memStore struct{ recs []audit.LogRecord }

func (m *memStore) Append(_ context.Context, r audit.LogRecord) error {
	m.recs = append(m.recs, r)
	return nil
}

func (m *memStore) Query(_ context.Context, q audit.LogQuery) ([]audit.LogRecord, error) {
	var res []audit.LogRecord
	for _, r := range m.recs {
		if q.OfferID != uuid.Nil && r.OfferID != q.OfferID {
			continue
		}
		if q.FacilityUID != "" && r.FacilityUID != q.FacilityUID {
			continue
		}
		if q.State != model.StateUnknown && r.State != q.State {
			continue
		}
		res = append(res, r)
	}
	return res, nil
}

func (m *memStore) Close() error { return nil }

func TestLogHandler_AuthAndFilters(t *testing.T) {
	store := &memStore{}
	waiting := audit.LogRecord{
		Timestamp:   time.Now(),
		Party:       "exchange",
		OfferID:     uuid.New(),
		FacilityUID: "facility-a",
		State:       model.StateWaiting,
	}
	declined := audit.LogRecord{
		Timestamp:   time.Now(),
		Party:       "exchange",
		OfferID:     uuid.New(),
		FacilityUID: "facility-b",
		State:       model.StateDeclined,
	}
	for _, r := range []audit.LogRecord{waiting, declined} {
		if err := store.Append(context.Background(), r); err != nil {
			t.Fatal(err)
		}
	}

	h := NewLogHandler(store, "secret")

	// Missing token.
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/offers/logs", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("code: %d", rr.Code)
	}

	get := func(url string) []audit.LogRecord {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, url, nil)
		req.Header.Set("Authorization", "Bearer secret")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("code: %d body: %s", rr.Code, rr.Body.String())
		}
		var recs []audit.LogRecord
		if err := json.Unmarshal(rr.Body.Bytes(), &recs); err != nil {
			t.Fatal(err)
		}
		return recs
	}

	if recs := get("/api/offers/logs"); len(recs) != 2 {
		t.Fatalf("all: %d", len(recs))
	}
	if recs := get("/api/offers/logs?facility_uid=facility-a"); len(recs) != 1 || recs[0].FacilityUID != "facility-a" {
		t.Fatalf("by facility: %+v", recs)
	}
	if recs := get("/api/offers/logs?state=DECLINED"); len(recs) != 1 || recs[0].State != model.StateDeclined {
		t.Fatalf("by state: %+v", recs)
	}
	if recs := get("/api/offers/logs?offer_id=" + waiting.OfferID.String()); len(recs) != 1 || recs[0].OfferID != waiting.OfferID {
		t.Fatalf("by offer: %+v", recs)
	}
}

func TestLogHandler_NoTokenDisablesAuth(t *testing.T) {
	h := NewLogHandler(&memStore{}, "")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/offers/logs", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("code: %d", rr.Code)
	}
}
