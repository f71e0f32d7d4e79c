package summary

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "convoca/pkg/domain"
)

func TestSummaryHandler(t *testing.T) {
	e, _ := newEnv(t)
	router := chi.NewRouter()
	NewHandler(e.svc).Register(router)

	get := func(t *testing.T, path string) *httptest.ResponseRecorder {
		t.Helper()
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	t.Run("returns the computed summary", func(t *testing.T) {
		rec := get(t, "/summaries/"+e.call.ID.String())
		require.Equal(t, http.StatusOK, rec.Code)

		var body CallSummary
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, e.call.ID, body.ID)
		assert.Equal(t, e.call.Slug, body.Slug)
	})

	t.Run("bad id is a 400", func(t *testing.T) {
		rec := get(t, "/summaries/not-a-uuid")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown call is a 404", func(t *testing.T) {
		rec := get(t, "/summaries/"+id.NewCallID().String())
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
