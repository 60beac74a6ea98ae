package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrumentHandler_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(InstrumentHandler)
	r.Get("/api/user/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/user/{id}", "418"))
	for _, id := range []string{"1", "2", "3"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/user/"+id, nil))
	}
	after := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/user/{id}", "418"))
	assert.Equal(t, before+3, after)
}

func TestRecorders(t *testing.T) {
	before := testutil.ToFloat64(accountsRegistered)
	RecordRegistration()
	assert.Equal(t, before+1, testutil.ToFloat64(accountsRegistered))

	beforeLogin := testutil.ToFloat64(loginAttempts.WithLabelValues("invalid"))
	RecordLogin("invalid")
	assert.Equal(t, beforeLogin+1, testutil.ToFloat64(loginAttempts.WithLabelValues("invalid")))

	SetAccountCounts(4, 1)
	assert.Equal(t, 4.0, testutil.ToFloat64(accounts.WithLabelValues("active")))
	assert.Equal(t, 1.0, testutil.ToFloat64(accounts.WithLabelValues("inactive")))
}

func TestHandler_Exposes(t *testing.T) {
	RecordRegistration()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "turu_accounts_registered_total")
}
