package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Canada28Bot/internal/config"
	"Canada28Bot/internal/engine"
	"Canada28Bot/internal/metrics"
	"Canada28Bot/internal/model"
	"Canada28Bot/internal/recorder"
)

type fakeEngine struct {
	running  bool
	clearErr error
	cleared  bool
}

func (f *fakeEngine) Start() bool {
	if f.running {
		return false
	}
	f.running = true
	return true
}

func (f *fakeEngine) Stop() bool {
	if !f.running {
		return false
	}
	f.running = false
	return true
}

func (f *fakeEngine) IsRunning() bool { return f.running }

func (f *fakeEngine) Snapshot() (model.Snapshot, error) {
	st := model.NewEngineState()
	st.Strategies["big_small"] = &model.StrategyState{CurrentBet: 4, WinStreak: 2}
	st.SetLastDraw(model.DrawResult{Issue: "3300101", Sum: 15, Time: "01-01 12:00:00"})
	return model.Snapshot{Running: f.running, State: st}, nil
}

func (f *fakeEngine) ClearState() error {
	if f.running {
		return engine.ErrRunning
	}
	if f.clearErr != nil {
		return f.clearErr
	}
	f.cleared = true
	return nil
}

type fixture struct {
	handler http.Handler
	engine  *fakeEngine
	cfg     *config.Manager
	rec     *recorder.SQLiteRecorder
	path    string
}

func newFixture(t *testing.T, username, password string) *fixture {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	cfg, err := config.Load(path)
	require.NoError(t, err)
	rec, err := recorder.NewSQLiteRecorder(filepath.Join(dir, "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { rec.Close() })

	f := &fixture{engine: &fakeEngine{}, cfg: config.NewManager(path, cfg), rec: rec, path: path}
	f.handler = New(Options{
		Engine:   f.engine,
		Config:   f.cfg,
		Recorder: rec,
		Metrics:  metrics.New().Handler(),
		Username: username,
		Password: password,
	}).Router()
	return f
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthzAndMetrics(t *testing.T) {
	f := newFixture(t, "", "")
	assert.Equal(t, http.StatusOK, f.do("GET", "/healthz", "").Code)

	rec := f.do("GET", "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "canada28_engine_running")
}

func TestStartStopAreIdempotent(t *testing.T) {
	f := newFixture(t, "", "")

	body := decode(t, f.do("POST", "/api/bot/start", ""))
	assert.Equal(t, true, body["started"])
	body = decode(t, f.do("POST", "/api/bot/start", ""))
	assert.Equal(t, false, body["started"])
	assert.Equal(t, "already running", body["message"])

	body = decode(t, f.do("POST", "/api/bot/stop", ""))
	assert.Equal(t, true, body["stopped"])
	body = decode(t, f.do("POST", "/api/bot/stop", ""))
	assert.Equal(t, false, body["stopped"])
}

func TestState(t *testing.T) {
	f := newFixture(t, "", "")
	rec := f.do("GET", "/api/state", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap model.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "3300101", snap.State.LastPeriodIssue)
	assert.Equal(t, 4, snap.State.Strategies["big_small"].CurrentBet)
	assert.Contains(t, rec.Body.String(), `"last_award_time_str":"01-01 12:00:00"`)
}

func TestClearState(t *testing.T) {
	f := newFixture(t, "", "")
	f.engine.running = true
	assert.Equal(t, http.StatusConflict, f.do("DELETE", "/api/state", "").Code)

	f.engine.running = false
	assert.Equal(t, http.StatusOK, f.do("DELETE", "/api/state", "").Code)
	assert.True(t, f.engine.cleared)

	f.engine.clearErr = errors.New("disk full")
	assert.Equal(t, http.StatusInternalServerError, f.do("DELETE", "/api/state", "").Code)
}

func TestConfig_GetAndPartialPut(t *testing.T) {
	f := newFixture(t, "", "")

	body := decode(t, f.do("GET", "/api/config", ""))
	assert.Contains(t, body, "strategies")
	assert.Equal(t, []any{}, body["accounts"])

	rec := f.do("PUT", "/api/config", `{
		"strategies": {"odd_even": {"enabled": true}, "big_small": {"initial_bet": 5}},
		"accounts": [{"enabled": true, "alias": " main ", "chat_id": " -100123 "}]
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	cfg := f.cfg.Get()
	assert.Equal(t, config.StrategyConfig{Enabled: true, InitialBet: 1, MaxWinStreak: 3}, cfg.Strategies["odd_even"])
	assert.Equal(t, config.StrategyConfig{Enabled: true, InitialBet: 5, MaxWinStreak: 3}, cfg.Strategies["big_small"])
	require.Len(t, cfg.Accounts, 1)
	assert.Equal(t, "main", cfg.Accounts[0].Alias)
	assert.Equal(t, "-100123", cfg.Accounts[0].ChatID)

	reloaded, err := config.Load(f.path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Strategies, reloaded.Strategies)
}

func TestConfig_PutAccountWithoutEnabledDefaultsToEnabled(t *testing.T) {
	f := newFixture(t, "", "")

	rec := f.do("PUT", "/api/config", `{"accounts": [
		{"alias": "a", "chat_id": "-100"},
		{"alias": "b", "chat_id": "-200", "enabled": false}
	]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	cfg := f.cfg.Get()
	require.Len(t, cfg.Accounts, 2)
	assert.True(t, cfg.Accounts[0].Enabled)
	assert.False(t, cfg.Accounts[1].Enabled)
	require.Len(t, cfg.UsableAccounts(), 1)
	assert.Equal(t, "a", cfg.UsableAccounts()[0].Alias)
}

func TestConfig_PutWhileRunningMentionsNextStart(t *testing.T) {
	f := newFixture(t, "", "")
	f.engine.running = true
	body := decode(t, f.do("PUT", "/api/config", `{"strategies": {"big_small": {"max_win_streak": 4}}}`))
	assert.Equal(t, true, body["ok"])
	assert.Contains(t, body["message"], "next start")
}

func TestConfig_PutRejects(t *testing.T) {
	f := newFixture(t, "", "")
	for _, body := range []string{
		`{"strategies": {"roulette": {"enabled": true}}}`,
		`{"strategies": {"big_small": {"initial_bet": 0}}}`,
		`{"accounts": [{"enabled": true, "alias": "", "chat_id": "1"}]}`,
		`{"accounts": [{"enabled": true, "alias": "a", "chat_id": "@group"}]}`,
		`not json`,
	} {
		rec := f.do("PUT", "/api/config", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.False(t, f.cfg.Get().Strategies["odd_even"].Enabled)
}

func TestHistoryAndSummary(t *testing.T) {
	f := newFixture(t, "", "")
	for _, issue := range []string{"1", "2", "3"} {
		require.NoError(t, f.rec.RecordSettlement(&model.SettlementRecord{
			Issue: issue, Strategy: "big_small", Predicted: model.OutcomeBig, Actual: model.OutcomeBig, Win: true, CreatedAt: time.Now(),
		}))
	}

	var hist struct {
		Settlements []model.SettlementRecord `json:"settlements"`
	}
	rec := f.do("GET", "/api/history?limit=2", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	require.Len(t, hist.Settlements, 2)
	assert.Equal(t, "3", hist.Settlements[0].Issue)

	var sum recorder.Summary
	rec = f.do("GET", "/api/summary?hours=abc", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	assert.Equal(t, 3, sum.Draws)
}

func TestBasicAuth(t *testing.T) {
	f := newFixture(t, "admin", "s3cret")

	assert.Equal(t, http.StatusUnauthorized, f.do("GET", "/api/state", "").Code)
	assert.Equal(t, http.StatusOK, f.do("GET", "/healthz", "").Code)

	req := httptest.NewRequest("GET", "/api/state", nil)
	req.SetBasicAuth("admin", "s3cret")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
