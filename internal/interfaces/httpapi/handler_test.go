package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/riskibarqy/oddsline/internal/domain/bet"
	"github.com/riskibarqy/oddsline/internal/domain/match"
	"github.com/riskibarqy/oddsline/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/oddsline/internal/platform/logging"
	"github.com/riskibarqy/oddsline/internal/platform/rollinglog"
	"github.com/riskibarqy/oddsline/internal/usecase"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAdminToken = "admin-secret"

type stubTaskQueue struct {
	mu       sync.Mutex
	tasks    []usecase.Task
	canceled []string
}

func (q *stubTaskQueue) Enqueue(_ context.Context, req usecase.TaskRequest) (usecase.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, existing := range q.tasks {
		if existing.Kind == req.Kind && existing.MatchID == req.MatchID {
			existing.Deduplicated = true
			return existing, nil
		}
	}
	task := usecase.Task{
		ID:           "task_" + string(req.Kind),
		Kind:         req.Kind,
		MatchID:      req.MatchID,
		Status:       usecase.TaskScheduled,
		ScheduledFor: time.Now().Add(req.Delay),
		CreatedAt:    time.Now(),
	}
	q.tasks = append(q.tasks, task)
	return task, nil
}

func (q *stubTaskQueue) Cancel(_ context.Context, taskID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, existing := range q.tasks {
		if existing.ID == taskID {
			q.canceled = append(q.canceled, taskID)
			return nil
		}
	}
	return usecase.ErrNotFound
}

func (q *stubTaskQueue) List(_ context.Context) ([]usecase.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]usecase.Task(nil), q.tasks...), nil
}

type testEnv struct {
	router http.Handler
	store  *memory.Store
	tasks  *stubTaskQueue
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := logging.NewNop()
	store := memory.NewStore()
	teams := memory.NewTeamRepository(nil)
	runs := memory.NewScraperRunRepository()

	registry := usecase.NewSupervisorRegistry()
	for _, name := range []string{usecase.SupervisorMain, usecase.SupervisorLive} {
		s := usecase.NewSupervisor(
			usecase.SupervisorConfig{Name: name, Interval: time.Hour, CycleTimeout: time.Second},
			func(ctx context.Context, logger *logging.Logger) (map[string]any, error) {
				logger.InfoContext(ctx, "cycle done")
				return map[string]any{"records": 0}, nil
			},
			rollinglog.New(50),
			runs,
			nil,
			logger,
		)
		require.NoError(t, registry.Register(s))
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = registry.StopAll(ctx)
	})

	settlement := usecase.NewSettlementService(store.Matches(), store.Bets(), usecase.SettlementConfig{}, nil, logger)
	dashboard := usecase.NewDashboardService(store.Matches(), teams, store.Bets(), time.Millisecond)
	tasks := &stubTaskQueue{}
	handler := NewHandler(registry, dashboard, settlement, usecase.NewAccountService(store.Wallets()), tasks, logger)
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics\n"))
	})

	return &testEnv{
		router: NewRouter(handler, logger, nil, testAdminToken, metrics),
		store:  store,
		tasks:  tasks,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(adminTokenHeader, testAdminToken)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var envelope map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &envelope))
	}
	return rec, envelope
}

func (e *testEnv) liveMatch(t *testing.T) match.Match {
	t.Helper()

	created, err := e.store.Matches().Create(context.Background(), match.Match{
		HomeTeam:      "Arsenal",
		AwayTeam:      "Chelsea",
		League:        "Premier League",
		KickoffAt:     time.Now().Add(-90 * time.Minute),
		Status:        match.StatusLive,
		LastScrapedAt: time.Now(),
	})
	require.NoError(t, err)
	return created
}

func errorStatus(body map[string]any) string {
	errObj, _ := body["error"].(map[string]any)
	status, _ := errObj["status"].(string)
	return status
}

func TestRouter_HealthzAndMetricsSkipAdminToken(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# metrics")
}

func TestRouter_AdminTokenRequired(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/admin/scrapers", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/scrapers", nil)
	req.Header.Set(adminTokenHeader, "wrong")
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, body := env.do(t, http.MethodGet, "/v1/admin/scrapers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]any)
	assert.EqualValues(t, 2, data["total"])
	assert.EqualValues(t, 0, data["running"])
}

func TestHandler_ScraperLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodPost, "/v1/admin/scrapers/main/start", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["data"].(map[string]any)["running"])

	rec, body = env.do(t, http.MethodPost, "/v1/admin/scrapers/main/start", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "FAILED_PRECONDITION", errorStatus(body))

	rec, _ = env.do(t, http.MethodPost, "/v1/admin/scrapers/main/stop", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/v1/admin/scrapers/main/stop", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, body = env.do(t, http.MethodGet, "/v1/admin/scrapers/main", "")
	require.Equal(t, http.StatusOK, rec.Code)
	status := body["data"].(map[string]any)
	assert.Equal(t, false, status["running"])
	assert.NotEmpty(t, status["recentLogLines"])

	rec, _ = env.do(t, http.MethodGet, "/v1/admin/scrapers/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_ScraperLogs(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodPost, "/v1/admin/scrapers/live/start", "")
	env.do(t, http.MethodPost, "/v1/admin/scrapers/live/stop", "")

	rec, body := env.do(t, http.MethodGet, "/v1/admin/scrapers/live/logs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	lines := body["data"].(map[string]any)["lines"].([]any)
	assert.NotEmpty(t, lines)

	rec, _ = env.do(t, http.MethodDelete, "/v1/admin/scrapers/live/logs", "")
	require.Equal(t, http.StatusOK, rec.Code)

	_, body = env.do(t, http.MethodGet, "/v1/admin/scrapers/live/logs", "")
	assert.Empty(t, body["data"].(map[string]any)["lines"])
}

func TestHandler_ControlScrapers(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodPost, "/v1/admin/scrapers-control/start", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]any)
	outcomes := data["outcomes"].([]any)
	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		assert.Equal(t, true, o.(map[string]any)["ok"])
	}
	assert.EqualValues(t, 2, data["status"].(map[string]any)["running"])

	rec, _ = env.do(t, http.MethodPost, "/v1/admin/scrapers-control/stop", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body = env.do(t, http.MethodPost, "/v1/admin/scrapers-control/restart", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_ARGUMENT", errorStatus(body))
}

func TestHandler_FinishMatchSettlesBets(t *testing.T) {
	env := newTestEnv(t)
	m := env.liveMatch(t)
	env.store.OpenAccount(11, decimal.Zero)
	env.store.PlaceBet(bet.Bet{
		UserID:          11,
		MatchID:         m.ID,
		Type:            bet.TypeHome,
		Stake:           decimal.RequireFromString("5"),
		PotentialPayout: decimal.RequireFromString("9.50"),
	})

	path := "/v1/admin/matches/" + itoa(m.ID) + "/finish"
	rec, body := env.do(t, http.MethodPost, path, `{"home_score":2,"away_score":1}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := body["data"].(map[string]any)
	assert.Equal(t, false, data["alreadyFinished"])
	settlement := data["settlement"].(map[string]any)
	assert.EqualValues(t, 1, settlement["won"])
	assert.Equal(t, "9.50", settlement["credited"])

	account, ok, err := env.store.Wallets().GetByUserID(context.Background(), 11)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, account.Balance.Equal(decimal.RequireFromString("9.5")))

	// Finishing again is a no-op and credits nothing.
	rec, body = env.do(t, http.MethodPost, path, `{"home_score":2,"away_score":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["data"].(map[string]any)["alreadyFinished"])

	rec, _ = env.do(t, http.MethodPost, "/v1/admin/matches/"+itoa(m.ID)+"/settle", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body = env.do(t, http.MethodGet, "/v1/admin/accounts/11", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "9.50", body["data"].(map[string]any)["balance"])

	rec, _ = env.do(t, http.MethodGet, "/v1/admin/accounts/404", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_FinishMatchRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	m := env.liveMatch(t)
	path := "/v1/admin/matches/" + itoa(m.ID) + "/finish"

	cases := []struct {
		name string
		path string
		body string
		want int
	}{
		{name: "missing body", path: path, body: "", want: http.StatusBadRequest},
		{name: "missing away score", path: path, body: `{"home_score":1}`, want: http.StatusBadRequest},
		{name: "negative score", path: path, body: `{"home_score":-1,"away_score":0}`, want: http.StatusBadRequest},
		{name: "malformed json", path: path, body: `{"home_score":`, want: http.StatusBadRequest},
		{name: "bad id", path: "/v1/admin/matches/abc/finish", body: `{"home_score":1,"away_score":0}`, want: http.StatusBadRequest},
		{name: "unknown match", path: "/v1/admin/matches/999/finish", body: `{"home_score":1,"away_score":0}`, want: http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, _ := env.do(t, http.MethodPost, tc.path, tc.body)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
		})
	}
}

func TestHandler_FinishCanceledMatchConflicts(t *testing.T) {
	env := newTestEnv(t)
	m := env.liveMatch(t)
	ok, err := env.store.Matches().Cancel(context.Background(), m.ID)
	require.NoError(t, err)
	require.True(t, ok)

	rec, body := env.do(t, http.MethodPost, "/v1/admin/matches/"+itoa(m.ID)+"/finish", `{"home_score":0,"away_score":0}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "FAILED_PRECONDITION", errorStatus(body))

	rec, _ = env.do(t, http.MethodPost, "/v1/admin/matches/"+itoa(m.ID)+"/resolve", `{"home_score":0,"away_score":0}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandler_ResolveUnresolvedMatch(t *testing.T) {
	env := newTestEnv(t)
	m := env.liveMatch(t)
	ok, err := env.store.Matches().MarkUnresolved(context.Background(), m.ID)
	require.NoError(t, err)
	require.True(t, ok)
	env.store.OpenAccount(3, decimal.Zero)
	env.store.PlaceBet(bet.Bet{
		UserID:          3,
		MatchID:         m.ID,
		Type:            bet.TypeDraw,
		Stake:           decimal.RequireFromString("2"),
		PotentialPayout: decimal.RequireFromString("6.60"),
	})

	rec, body := env.do(t, http.MethodPost, "/v1/admin/matches/"+itoa(m.ID)+"/resolve", `{"home_score":1,"away_score":1}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	settlement := body["data"].(map[string]any)["settlement"].(map[string]any)
	assert.EqualValues(t, 1, settlement["won"])
	assert.Equal(t, "6.60", settlement["credited"])
}

func TestHandler_StatsAndRecentMatches(t *testing.T) {
	env := newTestEnv(t)
	env.liveMatch(t)
	env.liveMatch(t)

	rec, body := env.do(t, http.MethodGet, "/v1/admin/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]any)
	assert.EqualValues(t, 2, data["totalMatches"])
	assert.EqualValues(t, 2, data["matchesByStatus"].(map[string]any)["live"])

	rec, body = env.do(t, http.MethodGet, "/v1/admin/matches/recent?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	items := body["data"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "Arsenal", items[0].(map[string]any)["homeTeam"])

	rec, _ = env.do(t, http.MethodGet, "/v1/admin/matches/recent?limit=101", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = env.do(t, http.MethodGet, "/v1/admin/matches/recent?limit=ten", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_Tasks(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodPost, "/v1/admin/tasks", `{"kind":"settle-match","match_id":4,"delay_seconds":30}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	taskID := body["data"].(map[string]any)["id"].(string)

	rec, body = env.do(t, http.MethodPost, "/v1/admin/tasks", `{"kind":"settle-match","match_id":4}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["data"].(map[string]any)["deduplicated"])

	rec, _ = env.do(t, http.MethodPost, "/v1/admin/tasks", `{"delay_seconds":30}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/v1/admin/tasks", `{"kind":"main-cycle","delay_seconds":90000}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = env.do(t, http.MethodGet, "/v1/admin/tasks", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["data"].([]any), 1)

	rec, _ = env.do(t, http.MethodDelete, "/v1/admin/tasks/"+taskID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{taskID}, env.tasks.canceled)

	rec, _ = env.do(t, http.MethodDelete, "/v1/admin/tasks/task_missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_RecoversPanics(t *testing.T) {
	handler := recoverPanic(logging.NewNop(), http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/admin/stats", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
