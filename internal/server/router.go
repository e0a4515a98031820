package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/deskpulse/internal/config"
	"github.com/loykin/deskpulse/internal/metrics"
	"github.com/loykin/deskpulse/internal/orchestrator"
	"github.com/loykin/deskpulse/internal/stats"
)

// Service is the control surface the router exposes over HTTP. The
// orchestrator implements it.
type Service interface {
	Status() orchestrator.DisplaySnapshot
	SetFlow(d time.Duration)
	Snooze(d time.Duration)
	ResetSession()
	UpdateSettings(u config.UserSettings)
	Settings() config.UserSettings
	History(ctx context.Context, limit int) ([]stats.Daily, error)
}

// Router provides embeddable HTTP handlers for the tracker.
// Endpoints:
//
//	GET  {basePath}/status       current display snapshot
//	GET  {basePath}/healthz      liveness
//	GET  {basePath}/metrics      Prometheus exposition
//	GET  {basePath}/stats/daily  persisted daily aggregates (?limit=N)
//	GET  {basePath}/settings     user-editable settings
//	PUT  {basePath}/settings     queue a settings update
//	POST {basePath}/flow         body: {"minutes": N} (0 cancels)
//	POST {basePath}/snooze       body: {"minutes": N} (default 10)
//	POST {basePath}/reset        reset the session
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	svc      Service
	basePath string
}

// NewRouter constructs a new Router with configurable basePath.
func NewRouter(svc Service, basePath string) *Router {
	bp := sanitizeBase(basePath)
	return &Router{svc: svc, basePath: bp}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/status", r.handleStatus)
	group.GET("/healthz", r.handleHealthz)
	group.GET("/metrics", gin.WrapH(metrics.Handler()))
	group.GET("/stats/daily", r.handleDailyStats)
	group.GET("/settings", r.handleGetSettings)
	group.PUT("/settings", r.handlePutSettings)
	group.POST("/flow", r.handleFlow)
	group.POST("/snooze", r.handleSnooze)
	group.POST("/reset", r.handleReset)
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
// Shut it down via http.Server's Shutdown or Close.
func NewServer(addr, basePath string, svc Service) (*http.Server, error) {
	r := NewRouter(svc, basePath)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server, nil
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

func (r *Router) handleStatus(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.svc.Status())
}

func (r *Router) handleHealthz(c *gin.Context) {
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

type dailyStatsResp struct {
	Today   stats.Daily   `json:"today"`
	History []stats.Daily `json:"history"`
}

func (r *Router) handleDailyStats(c *gin.Context) {
	limit := 7
	if v, ok := parsePositiveInt(c.Query("limit")); ok {
		limit = v
	}
	history, err := r.svc.History(c.Request.Context(), limit)
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, dailyStatsResp{
		Today:   r.svc.Status().Today,
		History: history,
	})
}

func (r *Router) handleGetSettings(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.svc.Settings())
}

func (r *Router) handlePutSettings(c *gin.Context) {
	var u config.UserSettings
	if err := c.ShouldBindJSON(&u); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	r.svc.UpdateSettings(u)
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

type flowReq struct {
	Minutes int `json:"minutes"`
}

func (r *Router) handleFlow(c *gin.Context) {
	var req flowReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if req.Minutes < 0 {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "minutes must be >= 0"})
		return
	}
	r.svc.SetFlow(time.Duration(req.Minutes) * time.Minute)
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

type snoozeReq struct {
	Minutes int `json:"minutes"`
}

func (r *Router) handleSnooze(c *gin.Context) {
	req := snoozeReq{Minutes: 10}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
			return
		}
	}
	if req.Minutes < 0 {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "minutes must be >= 0"})
		return
	}
	r.svc.Snooze(time.Duration(req.Minutes) * time.Minute)
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleReset(c *gin.Context) {
	r.svc.ResetSession()
	writeJSON(c, http.StatusOK, okResp{OK: true})
}
