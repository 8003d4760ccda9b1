// Package web serves the JSON control surface: run control, state, config and history.
package web

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"Canada28Bot/internal/config"
	"Canada28Bot/internal/engine"
	"Canada28Bot/internal/logger"
	"Canada28Bot/internal/model"
	"Canada28Bot/internal/recorder"
)

var log = logger.For("web")

// Engine is the run control the API drives.
type Engine interface {
	Start() bool
	Stop() bool
	IsRunning() bool
	Snapshot() (model.Snapshot, error)
	ClearState() error
}

// ConfigStore holds the editable configuration.
type ConfigStore interface {
	Get() *config.Config
	Update(strategies map[string]config.StrategyConfig, accounts *[]config.Account) error
}

// Options configures a Server. Username enables basic auth on /api.
type Options struct {
	Engine   Engine
	Config   ConfigStore
	Recorder recorder.Recorder
	Metrics  http.Handler
	Username string
	Password string
}

// Server is the control surface HTTP handler set.
type Server struct {
	opts Options
}

func New(opts Options) *Server {
	if opts.Recorder == nil {
		opts.Recorder = recorder.NewNoopRecorder()
	}
	return &Server{opts: opts}
}

// Router builds the gin engine.
func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	if s.opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(s.opts.Metrics))
	}

	api := r.Group("/api")
	if s.opts.Username != "" {
		api.Use(gin.BasicAuth(gin.Accounts{s.opts.Username: s.opts.Password}))
	}

	api.GET("/state", s.handleState)
	api.DELETE("/state", s.handleClearState)

	bot := api.Group("/bot")
	bot.POST("/start", s.handleStart)
	bot.POST("/stop", s.handleStop)

	api.GET("/config", s.handleGetConfig)
	api.PUT("/config", s.handlePutConfig)

	api.GET("/history", s.handleHistory)
	api.GET("/summary", s.handleSummary)
	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debugf("%s %s -> %d (%v)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

func (s *Server) handleState(c *gin.Context) {
	snap, err := s.opts.Engine.Snapshot()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleClearState(c *gin.Context) {
	err := s.opts.Engine.ClearState()
	switch {
	case err == nil:
		log.Info("state cleared via api")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	case errors.Is(err, engine.ErrRunning):
		c.JSON(http.StatusConflict, gin.H{"ok": false, "error": "stop the bot before clearing state"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
	}
}

func (s *Server) handleStart(c *gin.Context) {
	if !s.opts.Engine.Start() {
		c.JSON(http.StatusOK, gin.H{"ok": true, "started": false, "message": "already running"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "started": true})
}

func (s *Server) handleStop(c *gin.Context) {
	if !s.opts.Engine.Stop() {
		c.JSON(http.StatusOK, gin.H{"ok": true, "stopped": false, "message": "already stopped"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "stopped": true})
}

type configView struct {
	Strategies map[string]config.StrategyConfig `json:"strategies"`
	Accounts   []config.Account                 `json:"accounts"`
}

func viewOf(cfg *config.Config) configView {
	accounts := cfg.Accounts
	if accounts == nil {
		accounts = []config.Account{}
	}
	return configView{Strategies: cfg.Strategies, Accounts: accounts}
}

func (s *Server) handleGetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, viewOf(s.opts.Config.Get()))
}

// strategyPatch carries only the fields the caller wants to change.
type strategyPatch struct {
	Enabled      *bool `json:"enabled"`
	InitialBet   *int  `json:"initial_bet" binding:"omitempty,min=1"`
	MaxWinStreak *int  `json:"max_win_streak" binding:"omitempty,min=1"`
}

// accountInput is one account as sent by a client. A missing enabled flag means enabled.
type accountInput struct {
	Enabled     *bool  `json:"enabled"`
	Alias       string `json:"alias"`
	DisplayName string `json:"display_name"`
	ChatID      string `json:"chat_id"`
}

func (a accountInput) toAccount() config.Account {
	enabled := true
	if a.Enabled != nil {
		enabled = *a.Enabled
	}
	return config.Account{Enabled: enabled, Alias: a.Alias, DisplayName: a.DisplayName, ChatID: a.ChatID}
}

type configRequest struct {
	Strategies map[string]strategyPatch `json:"strategies" binding:"omitempty,dive"`
	Accounts   *[]accountInput          `json:"accounts"`
}

// accounts converts the requested pool, or returns nil when the pool is left unchanged.
func (r configRequest) accounts() *[]config.Account {
	if r.Accounts == nil {
		return nil
	}
	out := make([]config.Account, 0, len(*r.Accounts))
	for _, a := range *r.Accounts {
		out = append(out, a.toAccount())
	}
	return &out
}

func (s *Server) handlePutConfig(c *gin.Context) {
	var req configRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}

	current := s.opts.Config.Get()
	merged := make(map[string]config.StrategyConfig, len(req.Strategies))
	for name, p := range req.Strategies {
		if !config.IsKnownStrategy(name) {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "unknown strategy " + name})
			return
		}
		sc := current.Strategies[name]
		if p.Enabled != nil {
			sc.Enabled = *p.Enabled
		}
		if p.InitialBet != nil {
			sc.InitialBet = *p.InitialBet
		}
		if p.MaxWinStreak != nil {
			sc.MaxWinStreak = *p.MaxWinStreak
		}
		merged[name] = sc
	}

	accounts := req.accounts()
	if err := s.opts.Config.Update(merged, accounts); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}
	log.Infof("config updated via api (strategies=%d, accounts replaced=%v)", len(merged), accounts != nil)

	resp := gin.H{"ok": true, "config": viewOf(s.opts.Config.Get())}
	if s.opts.Engine.IsRunning() {
		resp["message"] = "saved; takes effect on next start"
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleHistory(c *gin.Context) {
	limit := queryInt(c, "limit", 50, 1, 500)
	recs, err := s.opts.Recorder.RecentSettlements(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if recs == nil {
		recs = []model.SettlementRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"settlements": recs})
}

func (s *Server) handleSummary(c *gin.Context) {
	hours := queryInt(c, "hours", 24, 1, 24*90)
	sum, err := s.opts.Recorder.Summary(time.Now().Add(-time.Duration(hours) * time.Hour))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sum)
}

// queryInt reads an integer query parameter, clamped to [lo, hi].
func queryInt(c *gin.Context, key string, def, lo, hi int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return max(lo, min(n, hi))
}
