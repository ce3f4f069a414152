package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealscope/config"
	"dealscope/entitlement"
	"dealscope/models"
	"dealscope/services"
	"dealscope/storage"
)

type testServer struct {
	router http.Handler
	offers *storage.MemoryStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ent, err := entitlement.NewStatic(config.EntitlementConfig{DefaultTier: "free", FreeLimit: 1})
	require.NoError(t, err)

	offerStore := storage.NewMemoryStore()
	profiles := services.NewProfileService(db, nil)
	properties := services.NewPropertyService(db, db, nil)
	evals := services.NewEvaluationService(properties, profiles, nil, ent, nil, nil)
	offers := services.NewOfferService(offerStore, properties, ent, nil)

	return &testServer{
		router: NewRouter(NewHandler(properties, profiles, evals, offers, nil), nil),
		offers: offerStore,
	}
}

func (s *testServer) do(t *testing.T, method, path, actor string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	if actor != "" {
		req.Header.Set(ActorHeader, actor)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func duplexBody() map[string]any {
	return map[string]any{
		"name":           "Duplex",
		"address":        "12 Elm Street",
		"purchase_price": 200000,
		"rent_roll": []map[string]any{
			{"label": "A", "monthly_rent": 900},
			{"label": "B", "monthly_rent": 900},
		},
		"expenses":  map[string]any{"mode": "flat", "flat_rate": 35},
		"financing": map[string]any{"down_payment_percent": 25, "interest_rate": 6.5, "term_years": 30},
	}
}

func (s *testServer) createProperty(t *testing.T, actor string) models.Property {
	t.Helper()
	w := s.do(t, http.MethodPost, "/v1/properties", actor, duplexBody())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.Property](t, w)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestPropertyEndpoints(t *testing.T) {
	s := newTestServer(t)
	p := s.createProperty(t, "owner-1")
	path := "/v1/properties/" + p.ID.String()

	w := s.do(t, http.MethodGet, path, "owner-1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, path, "owner-2", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "not_found", body["error"])
	assert.NotEmpty(t, body["message"])

	w = s.do(t, http.MethodGet, "/v1/properties/not-a-uuid", "owner-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/v1/properties", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "not_authenticated", decode[map[string]any](t, w)["error"])

	w = s.do(t, http.MethodGet, "/v1/properties", "owner-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Property](t, w), 1)

	w = s.do(t, http.MethodPost, "/v1/properties", "owner-1", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	bad := duplexBody()
	bad["address"] = "99 Oak Ave"
	bad["financing"] = map[string]any{"down_payment_percent": 140, "interest_rate": 6.5, "term_years": 30}
	w = s.do(t, http.MethodPost, "/v1/properties", "owner-1", bad)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body = decode[map[string]any](t, w)
	assert.Equal(t, "validation_failed", body["error"])
	assert.Equal(t, "financing.down_payment_percent", body["field"])

	w = s.do(t, http.MethodPut, path+"/rent-roll", "owner-1", "label,rent\nA,950\nB,950\nC,700\n")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode[models.Property](t, w).RentRoll, 3)

	w = s.do(t, http.MethodDelete, path, "owner-1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestEvaluationEndpoints(t *testing.T) {
	s := newTestServer(t)
	p := s.createProperty(t, "owner-1")
	path := "/v1/properties/" + p.ID.String()

	w := s.do(t, http.MethodGet, path+"/evaluation", "owner-1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	ev := decode[models.Evaluation](t, w)
	assert.Equal(t, models.GradeB, ev.Grade)
	require.Len(t, ev.Pillars.Results, 4)

	overlay := map[string]any{"down_payment_percent": 25, "interest_rate": 8.5, "term_years": 30}
	w = s.do(t, http.MethodPost, path+"/labs/mortgage", "owner-1", overlay)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	lab := decode[map[string]any](t, w)
	diff := lab["diff"].(map[string]any)
	assert.Equal(t, -2.0, diff["grade_delta"])

	w = s.do(t, http.MethodPost, path+"/labs/mortgage/apply", "owner-1", overlay)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 8.5, decode[models.Property](t, w).Financing.InterestRate)

	cash := map[string]any{"down_payment_percent": 20, "closing_cost_rate": 3, "reno_reserve": 5000}
	w = s.do(t, http.MethodPost, path+"/labs/cash-to-close", "owner-1", cash)
	require.Equal(t, http.StatusOK, w.Code)
	result := decode[map[string]any](t, w)
	assert.InDelta(t, 51000, result["scenario_cash"].(map[string]any)["total"].(float64), 0.01)

	w = s.do(t, http.MethodPost, path+"/labs/cash-to-close/apply", "owner-1", cash)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3.0, decode[models.Property](t, w).Financing.ClosingCostRate)

	w = s.do(t, http.MethodPost, path+"/export", "owner-1", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestProfileEndpoints(t *testing.T) {
	s := newTestServer(t)

	profile := map[string]any{
		"name": "Strict", "cash_flow_floor": 300, "cash_flow_buffer": 50,
		"target_dcr": 1.3, "min_equity_percent": 5, "min_annual_tax_benefit": 1000,
	}
	w := s.do(t, http.MethodPost, "/v1/profiles", "owner-1", profile)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[models.GradeProfile](t, w)
	assert.Equal(t, "owner-1", created.OwnerID)

	w = s.do(t, http.MethodPost, "/v1/profiles/"+created.ID.String()+"/default", "owner-1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	p := s.createProperty(t, "owner-1")
	w = s.do(t, http.MethodGet, "/v1/properties/"+p.ID.String()+"/evaluation", "owner-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.ID.String(), decode[models.Evaluation](t, w).ProfileID)

	profile["target_dcr"] = 0.5
	w = s.do(t, http.MethodPut, "/v1/profiles/"+created.ID.String(), "owner-1", profile)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(t, http.MethodGet, "/v1/profiles", "owner-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.GradeProfile](t, w), 1)

	w = s.do(t, http.MethodDelete, "/v1/profiles/"+created.ID.String(), "owner-2", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(t, http.MethodDelete, "/v1/profiles/"+created.ID.String(), "owner-1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestOfferEndpoints(t *testing.T) {
	s := newTestServer(t)
	propertyID := s.createProperty(t, "owner-1").ID.String()

	offer := map[string]any{"title": "Opening", "terms": map[string]any{"purchase_price": 190000}}
	w := s.do(t, http.MethodPost, "/v1/properties/"+uuid.New().String()+"/offers", "owner-1", offer)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(t, http.MethodPost, "/v1/properties/"+propertyID+"/offers", "owner-2", offer)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/v1/properties/"+propertyID+"/offers", "owner-1", offer)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	detail := decode[services.OfferDetail](t, w)
	offerPath := "/v1/offers/" + detail.Offer.ID.String()

	w = s.do(t, http.MethodPost, "/v1/properties/"+propertyID+"/offers", "owner-1", offer)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "quota_exceeded", body["error"])
	assert.Equal(t, 1.0, body["limit"])

	w = s.do(t, http.MethodPut, offerPath+"/status", "owner-1", map[string]any{"status": "accepted"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "invalid_transition", decode[map[string]any](t, w)["error"])

	w = s.do(t, http.MethodPost, offerPath+"/revisions", "owner-1", map[string]any{"purchase_price": 195000})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 2, decode[models.OfferRevision](t, w).Number)

	for _, status := range []string{"readyToSubmit", "submitted", "rejected"} {
		w = s.do(t, http.MethodPut, offerPath+"/status", "owner-1", map[string]any{"status": status})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w = s.do(t, http.MethodPost, offerPath+"/revisions", "owner-1", map[string]any{"purchase_price": 199000})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "offer_terminal", decode[map[string]any](t, w)["error"])

	w = s.do(t, http.MethodPut, offerPath+"/decision", "owner-1", map[string]any{"client_decision": "doNotRecommend"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, offerPath+"/comments", "owner-1", map[string]any{"body": "seller declined"})
	require.Equal(t, http.StatusCreated, w.Code)
	comment := decode[models.OfferComment](t, w)

	foreign := &models.OfferComment{ID: uuid.New(), OfferID: detail.Offer.ID, AuthorID: "agent", Body: "fyi"}
	require.NoError(t, s.offers.AddComment(context.Background(), foreign, nil))
	w = s.do(t, http.MethodDelete, "/v1/comments/"+foreign.ID.String(), "owner-1", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = s.do(t, http.MethodDelete, "/v1/comments/"+comment.ID.String(), "owner-1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodPost, offerPath+"/archive", "owner-1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/v1/properties/"+propertyID+"/offers", "owner-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]models.PropertyOffer](t, w))

	w = s.do(t, http.MethodGet, "/v1/properties/"+propertyID+"/offers?archived=true", "owner-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.PropertyOffer](t, w), 1)

	w = s.do(t, http.MethodGet, offerPath, "owner-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	full := decode[services.OfferDetail](t, w)
	assert.Len(t, full.Revisions, 2)
	assert.True(t, full.Offer.Archived)
	assert.Equal(t, models.OfferStatusRejected, full.Offer.Status)
}

func TestOfferEventStream(t *testing.T) {
	s := newTestServer(t)
	p := s.createProperty(t, "owner-1")
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/properties/"+p.ID.String()+"/offers/events", nil)
	require.NoError(t, err)
	req.Header.Set(ActorHeader, "owner-1")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	offer := map[string]any{"title": "Opening", "terms": map[string]any{"purchase_price": 190000}}
	w := s.do(t, http.MethodPost, "/v1/properties/"+p.ID.String()+"/offers", "owner-1", offer)
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[services.OfferDetail](t, w)

	scanner := bufio.NewScanner(resp.Body)
	var data string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data:") {
			data = strings.TrimPrefix(line, "data:")
			break
		}
	}
	require.NotEmpty(t, data)

	var change models.OfferChange
	require.NoError(t, json.Unmarshal([]byte(data), &change))
	assert.Equal(t, created.Offer.ID, change.OfferID)
	assert.Equal(t, models.ActivityOfferCreated, change.Kind)
}
