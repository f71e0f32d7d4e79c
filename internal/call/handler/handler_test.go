package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convoca/internal/call/service"
	"convoca/internal/call/store"
	callstore "convoca/internal/call/store/call"
	phasestore "convoca/internal/call/store/phase"
	resolutionstore "convoca/internal/call/store/resolution"
	"convoca/internal/platform/middleware"
	id "convoca/pkg/domain"
)

const signingKey = "handler-test-signing-key"

func newRouter(t *testing.T) (http.Handler, id.ActorID) {
	t.Helper()

	svc := service.New(
		callstore.NewInMemory(),
		phasestore.NewInMemory(),
		resolutionstore.NewInMemory(),
		store.NewMemoryTransactor(),
		service.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(svc, logger, middleware.NewHMACValidator(signingKey))

	r := chi.NewRouter()
	h.Register(r)
	return r, id.NewActorID()
}

func signToken(t *testing.T, actor id.ActorID) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.ActorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		ActorID: actor.String(),
	})
	signed, err := token.SignedString([]byte(signingKey))
	require.NoError(t, err)
	return signed
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func createCallHTTP(t *testing.T, router http.Handler, token, title string) string {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/calls", token, map[string]any{
		"title":            title,
		"type":             "student",
		"modality":         "long",
		"number_of_places": 40,
		"destinations":     []string{"Lisbon"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotEmpty(t, resp.ID)
	return resp.ID
}

func TestAuthRequired(t *testing.T) {
	router, _ := newRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/calls", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/calls", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCallEndpoints(t *testing.T) {
	router, actor := newRouter(t)
	token := signToken(t, actor)

	t.Run("create and fetch", func(t *testing.T) {
		callID := createCallHTTP(t, router, token, "Erasmus 2026 outgoing")

		rec := doJSON(t, router, http.MethodGet, "/calls/"+callID, token, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var call struct {
			Status    string  `json:"status"`
			Slug      string  `json:"slug"`
			CreatedBy *string `json:"created_by"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&call))
		assert.Equal(t, "draft", call.Status)
		assert.Equal(t, "erasmus-2026-outgoing", call.Slug)
		require.NotNil(t, call.CreatedBy)
		assert.Equal(t, actor.String(), *call.CreatedBy)

		bySlug := doJSON(t, router, http.MethodGet, "/calls/slug/erasmus-2026-outgoing", token, nil)
		assert.Equal(t, http.StatusOK, bySlug.Code)
	})

	t.Run("invalid payload is rejected", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/calls", token, map[string]any{
			"title": "No places", "type": "student", "modality": "short",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("bad call id is a 400", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/calls/not-a-uuid", token, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("publish stamps published_at", func(t *testing.T) {
		callID := createCallHTTP(t, router, token, "Publishing call")

		rec := doJSON(t, router, http.MethodPost, "/calls/"+callID+"/publish", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var call struct {
			Status      string  `json:"status"`
			PublishedAt *string `json:"published_at"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&call))
		assert.Equal(t, "open", call.Status)
		assert.NotNil(t, call.PublishedAt)
	})

	t.Run("unknown status is rejected", func(t *testing.T) {
		callID := createCallHTTP(t, router, token, "Status call")
		rec := doJSON(t, router, http.MethodPost, "/calls/"+callID+"/status", token, map[string]string{"status": "cancelled"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestDeleteFlowOverHTTP(t *testing.T) {
	router, actor := newRouter(t)
	token := signToken(t, actor)
	callID := createCallHTTP(t, router, token, "Erasmus 2026 outgoing")

	// Attach a phase so the delete is guarded.
	rec := doJSON(t, router, http.MethodPost, "/calls/"+callID+"/phases", token, map[string]any{
		"phase_type": "applications", "name": "Applications",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var phase struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&phase))

	t.Run("guarded delete returns 409 with the blocking count", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodDelete, "/calls/"+callID, token, nil)
		require.Equal(t, http.StatusConflict, rec.Code)

		var body struct {
			Error         string `json:"error"`
			BlockingCount int    `json:"blocking_count"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "relationship_conflict", body.Error)
		assert.Equal(t, 1, body.BlockingCount)
	})

	t.Run("delete, restore, purge", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodDelete, "/phases/"+phase.ID, token, nil)
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = doJSON(t, router, http.MethodDelete, "/calls/"+callID, token, nil)
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = doJSON(t, router, http.MethodGet, "/calls/"+callID, token, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = doJSON(t, router, http.MethodGet, "/calls/"+callID+"?include_trashed=true", token, nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = doJSON(t, router, http.MethodPost, "/calls/"+callID+"/restore", token, nil)
		require.Equal(t, http.StatusNoContent, rec.Code)

		// Purge is blocked by the trashed phase until it is purged too.
		rec = doJSON(t, router, http.MethodDelete, "/calls/"+callID+"/purge", token, nil)
		require.Equal(t, http.StatusConflict, rec.Code)

		rec = doJSON(t, router, http.MethodDelete, "/phases/"+phase.ID+"/purge", token, nil)
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = doJSON(t, router, http.MethodDelete, "/calls/"+callID+"/purge", token, nil)
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = doJSON(t, router, http.MethodGet, "/calls/"+callID+"?include_trashed=true", token, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestPhaseEndpoints(t *testing.T) {
	router, actor := newRouter(t)
	token := signToken(t, actor)
	callID := createCallHTTP(t, router, token, "Erasmus 2026 outgoing")

	createPhase := func(name string) string {
		rec := doJSON(t, router, http.MethodPost, "/calls/"+callID+"/phases", token, map[string]any{
			"phase_type": "applications", "name": name,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var phase struct {
			ID string `json:"id"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&phase))
		return phase.ID
	}

	a := createPhase("A")
	b := createPhase("B")
	createPhase("C")

	t.Run("move up returns the reordered pipeline", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/phases/"+b+"/move-up", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Items []struct {
				ID    string `json:"id"`
				Order int    `json:"order"`
			} `json:"items"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		require.Len(t, body.Items, 3)
		assert.Equal(t, b, body.Items[0].ID)
		assert.Equal(t, a, body.Items[1].ID)
	})

	t.Run("mark current reports overlap advisory", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPut, "/phases/"+a+"/current", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Current     bool  `json:"current"`
			Overlapping []any `json:"overlapping_phases"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.True(t, body.Current)
		assert.Empty(t, body.Overlapping)

		// Switching to another phase keeps the invariant.
		rec = doJSON(t, router, http.MethodPut, "/phases/"+b+"/current", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		list := doJSON(t, router, http.MethodGet, "/calls/"+callID+"/phases", token, nil)
		require.Equal(t, http.StatusOK, list.Code)
		var phases struct {
			Items []struct {
				ID        string `json:"id"`
				IsCurrent bool   `json:"is_current"`
			} `json:"items"`
		}
		require.NoError(t, json.NewDecoder(list.Body).Decode(&phases))
		current := 0
		for _, p := range phases.Items {
			if p.IsCurrent {
				current++
				assert.Equal(t, b, p.ID)
			}
		}
		assert.Equal(t, 1, current)
	})
}

func TestResolutionEndpoints(t *testing.T) {
	router, actor := newRouter(t)
	token := signToken(t, actor)
	callID := createCallHTTP(t, router, token, "Erasmus 2026 outgoing")

	rec := doJSON(t, router, http.MethodPost, "/calls/"+callID+"/phases", token, map[string]any{
		"phase_type": "provisional", "name": "Provisional list",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var phase struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&phase))

	t.Run("create and publish", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/calls/"+callID+"/phases/"+phase.ID+"/resolutions", token, map[string]any{
			"type":          "provisional",
			"title":         "Provisional list of admitted candidates",
			"official_date": "2026-03-01T00:00:00Z",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var resolution struct {
			ID          string  `json:"id"`
			PublishedAt *string `json:"published_at"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resolution))
		assert.Nil(t, resolution.PublishedAt)

		pub := doJSON(t, router, http.MethodPost, "/resolutions/"+resolution.ID+"/publish", token, nil)
		require.Equal(t, http.StatusOK, pub.Code)

		var published struct {
			PublishedAt *string `json:"published_at"`
		}
		require.NoError(t, json.NewDecoder(pub.Body).Decode(&published))
		assert.NotNil(t, published.PublishedAt)
	})

	t.Run("phase of another call is rejected before any write", func(t *testing.T) {
		otherCall := createCallHTTP(t, router, token, "Another call")
		rec := doJSON(t, router, http.MethodPost, "/calls/"+otherCall+"/phases/"+phase.ID+"/resolutions", token, map[string]any{
			"type":          "final",
			"title":         "Final list",
			"official_date": "2026-06-01T00:00:00Z",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		list := doJSON(t, router, http.MethodGet, "/calls/"+otherCall+"/resolutions", token, nil)
		require.Equal(t, http.StatusOK, list.Code)
		var body struct {
			Count int `json:"count"`
		}
		require.NoError(t, json.NewDecoder(list.Body).Decode(&body))
		assert.Zero(t, body.Count)
	})
}

func TestDetachActorEndpoint(t *testing.T) {
	router, actor := newRouter(t)
	token := signToken(t, actor)

	createCallHTTP(t, router, token, "First call")
	createCallHTTP(t, router, token, "Second call")

	rec := doJSON(t, router, http.MethodDelete, "/actors/"+actor.String()+"/references", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Detached int `json:"detached"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, 2, body.Detached)

	bad := doJSON(t, router, http.MethodDelete, "/actors/not-a-uuid/references", token, nil)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}
