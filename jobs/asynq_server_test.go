package jobs

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/clubs-council/members-service/internal/shared"
)

func jobsRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Route("/jobs", h.MountRoutes)
	return r
}

func TestHealthWithoutInspector(t *testing.T) {
	h := NewHandler(nil, nil, slog.Default())
	rec := httptest.NewRecorder()
	jobsRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"queue":"default"`)
}

func TestBackfillMonthsGating(t *testing.T) {
	h := NewHandler(nil, nil, slog.Default())
	router := jobsRouter(h)

	anon := httptest.NewRequest(http.MethodPost, "/jobs/backfill-months", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, anon)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	club := httptest.NewRequest(http.MethodPost, "/jobs/backfill-months", nil)
	club = club.WithContext(shared.ContextWithIdentity(club.Context(),
		shared.Identity{UID: "chess-club", Role: shared.RoleClub}))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, club)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestBackfillMonthsRejectsMalformedBody(t *testing.T) {
	h := NewHandler(nil, nil, slog.Default())

	req := httptest.NewRequest(http.MethodPost, "/jobs/backfill-months", strings.NewReader("{"))
	req = req.WithContext(shared.ContextWithIdentity(req.Context(),
		shared.Identity{UID: "admin", Role: shared.RoleCC}))
	rec := httptest.NewRecorder()
	jobsRouter(h).ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
