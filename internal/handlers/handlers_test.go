package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/fittrack/apiserver/internal/catalog"
	"github.com/fittrack/apiserver/internal/services"
	"github.com/fittrack/apiserver/internal/store/memstore"
	"github.com/fittrack/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	testSecret      = "test-secret"
	testAdminSecret = "let-me-admin"
)

type fakeCatalog struct {
	mu        sync.Mutex
	exercises map[string]types.Exercise
	down      bool
}

func (c *fakeCatalog) Lookup(_ context.Context, id string) (types.Exercise, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.down {
		return types.Exercise{}, catalog.ErrUpstream
	}
	ex, ok := c.exercises[id]
	if !ok {
		return types.Exercise{}, catalog.ErrNotFound
	}
	return ex, nil
}

func (c *fakeCatalog) List(context.Context, catalog.Page) ([]types.Exercise, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.down {
		return nil, catalog.ErrUpstream
	}
	out := make([]types.Exercise, 0, len(c.exercises))
	for _, ex := range c.exercises {
		out = append(out, ex)
	}
	return out, nil
}

func (c *fakeCatalog) ByBodyPart(ctx context.Context, bodyPart string, page catalog.Page) ([]types.Exercise, error) {
	all, err := c.List(ctx, page)
	if err != nil {
		return nil, err
	}
	var out []types.Exercise
	for _, ex := range all {
		if ex.BodyPart == bodyPart {
			out = append(out, ex)
		}
	}
	return out, nil
}

func (c *fakeCatalog) ByName(ctx context.Context, _ string, page catalog.Page) ([]types.Exercise, error) {
	return c.List(ctx, page)
}

func (c *fakeCatalog) BodyParts(context.Context) ([]string, error) {
	return []string{"back", "waist"}, nil
}

func (c *fakeCatalog) Open(_ context.Context, id string) (catalog.Media, error) {
	if _, ok := c.exercises[id]; !ok {
		return catalog.Media{}, catalog.ErrNotFound
	}
	return catalog.Media{Body: io.NopCloser(bytes.NewReader([]byte("GIF89a"))), ContentType: "image/gif"}, nil
}

type recordedEvent struct {
	kind types.EventKind
	id   string
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (n *recordingNotifier) add(kind types.EventKind, id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, recordedEvent{kind: kind, id: id})
}

func (n *recordingNotifier) RecommendationUpdated(_ context.Context, userID string) {
	n.add(types.EventRecommendationUpdated, userID)
}

func (n *recordingNotifier) ExerciseCompleted(_ context.Context, c types.WorkoutCompletion) {
	n.add(types.EventExerciseCompleted, c.ID)
}

func (n *recordingNotifier) WorkoutDeleted(_ context.Context, id string) {
	n.add(types.EventWorkoutDeleted, id)
}

func (n *recordingNotifier) snapshot() []recordedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]recordedEvent(nil), n.events...)
}

type testEnv struct {
	server   *httptest.Server
	catalog  *fakeCatalog
	notifier *recordingNotifier
	store    *memstore.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := memstore.New()
	cat := &fakeCatalog{exercises: map[string]types.Exercise{
		"0001": {ID: "0001", Name: "3/4 sit-up", BodyPart: "waist", Target: "abs"},
		"0002": {ID: "0002", Name: "pull-up", BodyPart: "back", Target: "lats"},
	}}
	notifier := &recordingNotifier{}

	userService := services.NewUserService(st.Users, testAdminSecret, nil)
	recService := services.NewRecommendationService(st.Recommendations, cat, notifier, nil)
	progressService := services.NewProgressService(st.Progress, types.DefaultProgressGoals, nil)
	completionService := services.NewCompletionService(st.Completions, progressService, notifier, nil)
	exerciseService := services.NewExerciseService(cat, cat, cat, nil)

	authHandler := NewAuthHandler(userService, testSecret, 0, nil)
	requireAuth := authHandler.RequireAuth
	requireAdmin := RequireAdmin(userService, nil)

	router := chi.NewRouter()
	router.Get("/healthz", Healthz)
	router.Route("/auth", func(r chi.Router) { AuthRouter(r, authHandler) })
	router.Route("/users", func(r chi.Router) {
		UserRouter(r, NewUserHandler(userService, nil), requireAuth, requireAdmin)
	})
	router.Route("/recommendations", func(r chi.Router) {
		RecommendationRouter(r, NewRecommendationHandler(recService, nil), requireAuth, requireAdmin)
	})
	router.Route("/exercises", func(r chi.Router) {
		ExerciseRouter(r, NewExerciseHandler(exerciseService, completionService, nil), requireAuth, requireAdmin)
	})
	router.Route("/progress", func(r chi.Router) {
		ProgressRouter(r, NewProgressHandler(progressService, userService, nil), requireAuth)
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testEnv{server: srv, catalog: cat, notifier: notifier, store: st}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			data, err := json.Marshal(b)
			require.NoError(t, err)
			reader = bytes.NewReader(data)
		}
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (e *testEnv) register(t *testing.T, username string, admin bool) AuthResponse {
	t.Helper()
	req := RegisterRequest{Username: username, Email: username + "@example.com", Password: "pw-" + username}
	if admin {
		req.AdminSecret = testAdminSecret
	}
	resp, body := e.do(t, http.MethodPost, "/auth/register", "", req)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var out AuthResponse
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t, "alice", false)
	require.NotEmpty(t, reg.Token)
	require.False(t, reg.User.IsAdmin)
	require.True(t, reg.User.IsActive)

	resp, body := env.do(t, http.MethodPost, "/auth/register", "", RegisterRequest{Username: "alice2", Email: "ALICE@example.com", Password: "x"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))

	resp, _ = env.do(t, http.MethodPost, "/auth/register", "", RegisterRequest{Username: "bob"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = env.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: "alice@example.com", Password: "pw-alice"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var login AuthResponse
	require.NoError(t, json.Unmarshal(body, &login))
	require.Equal(t, reg.User.ID, login.User.ID)

	resp, _ = env.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: "alice@example.com", Password: "wrong"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = env.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: "nobody@example.com", Password: "x"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/auth/me", login.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotContains(t, string(body), "password")
}

func TestTokenCarriesAdminFlagAndExpiry(t *testing.T) {
	env := newTestEnv(t)
	reg := env.register(t, "root", true)
	require.True(t, reg.User.IsAdmin)

	claims, err := parseToken(reg.Token, []byte(testSecret))
	require.NoError(t, err)
	require.True(t, claims.Admin)
	require.Equal(t, reg.User.ID, claims.Subject)
	require.WithinDuration(t, time.Now().Add(4*time.Hour), claims.ExpiresAt.Time, time.Minute)

	resp, _ := env.do(t, http.MethodPost, "/auth/register", "", RegisterRequest{
		Username: "mallory", Email: "m@example.com", Password: "x", AdminSecret: "guess",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestResetPassword(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "carol", false)

	resp, body := env.do(t, http.MethodPost, "/auth/reset-password", "", ResetPasswordRequest{Username: "carol", NewPassword: "new-pw"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var out ResetPasswordResponse
	require.NoError(t, json.Unmarshal(body, &out))
	require.True(t, out.Success)
	require.NotEmpty(t, out.Token)

	resp, _ = env.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: "carol@example.com", Password: "new-pw"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/auth/reset-password", "", ResetPasswordRequest{Username: "nobody", NewPassword: "x"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAuthenticationGate(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "dave", false)

	resp, _ := env.do(t, http.MethodGet, "/auth/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/auth/me", "not-a-token", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   user.User.ID,
		IssuedAt:  jwt.NewNumericDate(time.Now().Add(-5 * time.Hour)),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}})
	signed, err := expired.SignedString([]byte(testSecret))
	require.NoError(t, err)
	resp, _ = env.do(t, http.MethodGet, "/auth/me", signed, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Admin: true, RegisteredClaims: jwt.RegisteredClaims{
		Subject:   user.User.ID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}).SignedString([]byte("other-secret"))
	require.NoError(t, err)
	resp, _ = env.do(t, http.MethodGet, "/recommendations", forged, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdminGate(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "erin", false)
	admin := env.register(t, "boss", true)

	resp, _ := env.do(t, http.MethodGet, "/recommendations", user.Token, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/recommendations", admin.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// A token claiming admin is not enough once the account is gone.
	resp, _ = env.do(t, http.MethodDelete, "/users/"+admin.User.ID, admin.Token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = env.do(t, http.MethodGet, "/recommendations", admin.Token, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestInactiveAccounts(t *testing.T) {
	env := newTestEnv(t)
	admin := env.register(t, "boss", true)
	other := env.register(t, "boss2", true)

	active := false
	resp, body := env.do(t, http.MethodPatch, "/users/"+other.User.ID+"/active", admin.Token, SetActiveRequest{Active: &active})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var updated types.User
	require.NoError(t, json.Unmarshal(body, &updated))
	require.False(t, updated.IsActive)

	resp, _ = env.do(t, http.MethodGet, "/recommendations", other.Token, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: "boss2@example.com", Password: "pw-boss2"})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPatch, "/users/"+other.User.ID+"/active", admin.Token, `{}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/users", admin.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var users []types.User
	require.NoError(t, json.Unmarshal(body, &users))
	require.Len(t, users, 2)
}

func TestRecommendationLifecycle(t *testing.T) {
	env := newTestEnv(t)
	admin := env.register(t, "boss", true)
	user := env.register(t, "frank", false)

	resp, body := env.do(t, http.MethodGet, "/recommendations/"+user.User.ID, user.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `[]`, string(body))

	resp, body = env.do(t, http.MethodPost, "/recommendations", admin.Token,
		`{"userId":"`+user.User.ID+`","exerciseId":"0001","notes":"  3x10  ","tags":"core"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var created types.Recommendation
	require.NoError(t, json.Unmarshal(body, &created))
	require.Equal(t, "3x10", created.Notes)
	require.Equal(t, types.Tags{}, created.Tags)

	resp, body = env.do(t, http.MethodGet, "/recommendations/"+user.User.ID, user.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var views []types.RecommendationView
	require.NoError(t, json.Unmarshal(body, &views))
	require.Len(t, views, 1)
	require.Equal(t, types.ExerciseAvailable, views[0].Exercise.Status)
	require.Equal(t, "3/4 sit-up", views[0].Exercise.Name)

	resp, body = env.do(t, http.MethodPut, "/recommendations/"+created.ID, admin.Token,
		EditRecommendationRequest{ExerciseID: "0002", Notes: "swap", Tags: types.Tags{"back"}})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var edited types.Recommendation
	require.NoError(t, json.Unmarshal(body, &edited))
	require.Equal(t, "0002", edited.ExerciseID)
	require.Equal(t, user.User.ID, edited.UserID)

	resp, body = env.do(t, http.MethodDelete, "/recommendations/"+created.ID, admin.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"success":true,"id":"`+created.ID+`"}`, string(body))

	resp, _ = env.do(t, http.MethodDelete, "/recommendations/"+created.ID, admin.Token, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = env.do(t, http.MethodPut, "/recommendations/"+created.ID, admin.Token, EditRecommendationRequest{ExerciseID: "0001"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = env.do(t, http.MethodGet, "/recommendations/not-an-id", user.Token, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = env.do(t, http.MethodPost, "/recommendations", admin.Token, CreateRecommendationRequest{UserID: "bad", ExerciseID: "0001"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	events := env.notifier.snapshot()
	require.Len(t, events, 3)
	for _, ev := range events {
		require.Equal(t, types.EventRecommendationUpdated, ev.kind)
		require.Equal(t, user.User.ID, ev.id)
	}
}

func TestRecommendationsDegradeWhenCatalogDown(t *testing.T) {
	env := newTestEnv(t)
	admin := env.register(t, "boss", true)
	user := env.register(t, "gina", false)

	for _, id := range []string{"0001", "0002"} {
		resp, _ := env.do(t, http.MethodPost, "/recommendations", admin.Token, CreateRecommendationRequest{UserID: user.User.ID, ExerciseID: id})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}
	env.catalog.mu.Lock()
	env.catalog.down = true
	env.catalog.mu.Unlock()

	resp, body := env.do(t, http.MethodGet, "/recommendations", admin.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var views []types.RecommendationView
	require.NoError(t, json.Unmarshal(body, &views))
	require.Len(t, views, 2)
	for _, view := range views {
		require.Equal(t, types.ExerciseUnavailable, view.Exercise.Status)
		require.Equal(t, view.ExerciseID, view.Exercise.ID)
	}

	resp, _ = env.do(t, http.MethodGet, "/exercises/0001", user.Token, nil)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestCompletionsAndProgress(t *testing.T) {
	env := newTestEnv(t)
	admin := env.register(t, "boss", true)
	user := env.register(t, "hank", false)

	resp, body := env.do(t, http.MethodPost, "/exercises/complete", user.Token,
		map[string]string{"exerciseId": "0001", "workoutType": "strength", "target": "abs", "level": "beginner", "userId": admin.User.ID})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var completion types.WorkoutCompletion
	require.NoError(t, json.Unmarshal(body, &completion))
	require.Equal(t, user.User.ID, completion.UserID)

	resp, body = env.do(t, http.MethodGet, "/progress/"+user.User.ID, user.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var progress types.Progress
	require.NoError(t, json.Unmarshal(body, &progress))
	require.Equal(t, 1, progress.WorkoutsToday)
	require.Equal(t, 1, progress.WorkoutsThisWeek)
	require.InDelta(t, 100.0/12, progress.StrengthProgress, 1e-9)

	resp, _ = env.do(t, http.MethodGet, "/progress/"+admin.User.ID, user.Token, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, _ = env.do(t, http.MethodGet, "/progress/"+user.User.ID, admin.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = env.do(t, http.MethodPut, "/progress/"+user.User.ID, user.Token,
		ProgressRequest{WorkoutsToday: 5, WorkoutsThisWeek: 2, WorkoutsThisMonth: 2, StrengthProgress: 150})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &progress))
	require.Equal(t, 1, progress.WorkoutsToday)
	require.Equal(t, 100.0, progress.StrengthProgress)

	resp, _ = env.do(t, http.MethodPut, "/progress/"+user.User.ID, user.Token, ProgressRequest{WorkoutsToday: -1})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/exercises/completed", user.Token, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/exercises/completed", admin.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var views []types.CompletionView
	require.NoError(t, json.Unmarshal(body, &views))
	require.Len(t, views, 1)
	require.Equal(t, "hank", views[0].Username)

	resp, _ = env.do(t, http.MethodDelete, "/users/"+user.User.ID, admin.Token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	_, body = env.do(t, http.MethodGet, "/exercises/completed", admin.Token, nil)
	require.NoError(t, json.Unmarshal(body, &views))
	require.Equal(t, types.UnknownUsername, views[0].Username)

	resp, body = env.do(t, http.MethodDelete, "/exercises/completed/"+completion.ID, admin.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"success":true,"id":"`+completion.ID+`"}`, string(body))
	resp, _ = env.do(t, http.MethodDelete, "/exercises/completed/"+completion.ID, admin.Token, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	events := env.notifier.snapshot()
	require.Equal(t, []recordedEvent{
		{kind: types.EventExerciseCompleted, id: completion.ID},
		{kind: types.EventWorkoutDeleted, id: completion.ID},
	}, events)
}

func TestCatalogRoutes(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "ivy", false)

	resp, body := env.do(t, http.MethodGet, "/exercises?bodyPart=back", user.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var items []types.Exercise
	require.NoError(t, json.Unmarshal(body, &items))
	require.Len(t, items, 1)
	require.Equal(t, "0002", items[0].ID)

	resp, _ = env.do(t, http.MethodGet, "/exercises?limit=abc", user.Token, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/exercises/bodyparts", user.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `["back","waist"]`, string(body))

	resp, _ = env.do(t, http.MethodGet, "/exercises/9999", user.Token, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/exercises/0001/media", user.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "image/gif", resp.Header.Get("Content-Type"))
	require.Equal(t, "GIF89a", string(body))
}

func TestWriteServiceErrorHidesInternals(t *testing.T) {
	rr := httptest.NewRecorder()
	writeServiceError(rr, orNop(nil), errors.New("pq: connection refused"))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.NotContains(t, rr.Body.String(), "pq")
}
