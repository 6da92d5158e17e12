// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sink

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/scanforge/scanforge/internal/diffengine"
	"github.com/scanforge/scanforge/internal/history"
	"github.com/scanforge/scanforge/internal/orchestrator"
	"github.com/scanforge/scanforge/internal/trend"
)

// ProgressHub fans out orchestrator.Progress snapshots to every connected
// websocket client, per §5's control-plane progress stream. Publish has the
// orchestrator.Options.OnProgress shape, but no scan publishes to the hub:
// the serve command creates an empty one, and the CLI's own progress bar
// uses a separate, local callback that never touches the Hub.
type ProgressHub struct {
	mu   sync.Mutex
	subs map[chan orchestrator.Progress]bool
}

// NewProgressHub builds an empty hub.
func NewProgressHub() *ProgressHub {
	return &ProgressHub{subs: make(map[chan orchestrator.Progress]bool)}
}

// Publish is the orchestrator.Options.OnProgress callback: it is safe to
// call concurrently and never blocks the calling worker for longer than one
// buffered-channel send per subscriber.
func (h *ProgressHub) Publish(p orchestrator.Progress) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- p:
		default:
			// Slow subscriber: drop the snapshot rather than block the
			// scan. The next JobDone snapshot supersedes it anyway.
		}
	}
}

func (h *ProgressHub) subscribe() chan orchestrator.Progress {
	ch := make(chan orchestrator.Progress, 8)
	h.mu.Lock()
	h.subs[ch] = true
	h.mu.Unlock()
	return ch
}

func (h *ProgressHub) unsubscribe(ch chan orchestrator.Progress) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
	close(ch)
}

// Server is the optional REST+websocket control plane: a read-only view
// over the History Store plus a live progress feed for in-flight scans.
// It never drives a scan itself — internal/orchestrator and cmd/scanforge
// own that; the Server only renders what they hand it.
type Server struct {
	Store    *history.Store
	Progress *ProgressHub
	Log      *slog.Logger
	// Metrics serves the Prometheus exposition format at GET /metrics when
	// set; nil leaves the route absent entirely (telemetry.InitMetrics
	// returns a 404 handler when metrics are disabled in config, so callers
	// can wire it through unconditionally).
	Metrics http.Handler
	// Trend computes the statistical direction, security score, and
	// regression alerts backing GET /api/v1/trend. A zero-value Analyzer
	// (the field's default) runs with DefaultScoreWeights/
	// DefaultRegressionOptions, same as the `history trend` CLI command.
	Trend *trend.Analyzer
}

// NewServer builds a Server. store may be nil (history-backed routes then
// respond 503), progress may be nil (an empty hub is created in its place,
// so the websocket route upgrades and waits for snapshots).
func NewServer(store *history.Store, progress *ProgressHub, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if progress == nil {
		progress = NewProgressHub()
	}
	return &Server{
		Store:    store,
		Progress: progress,
		Log:      log,
		Trend:    trend.New(trend.DefaultScoreWeights(), trend.DefaultRegressionOptions()),
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Router builds the gin engine: health check, scan history queries, diff,
// and the progress websocket, instrumented with otelgin per the teacher's
// tracing convention.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), otelgin.Middleware("scanforge"))

	r.GET("/health", s.handleHealth)
	if s.Metrics != nil {
		r.GET("/metrics", gin.WrapH(s.Metrics))
	}

	v1 := r.Group("/api/v1")
	{
		v1.GET("/scans", s.handleListScans)
		v1.GET("/scans/:id", s.handleGetScan)
		v1.GET("/scans/compare", s.handleCompare)
		v1.GET("/trend", s.handleTrend)
		v1.GET("/dashboard", s.handleDashboard)
		v1.GET("/ws/progress", s.handleProgressWS)
	}
	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleListScans(c *gin.Context) {
	if s.Store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history store not configured"})
		return
	}
	limit := 20
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	scans, err := s.Store.ListScans(c.Request.Context(), limit, c.Query("branch"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"scans": scans})
}

func (s *Server) handleGetScan(c *gin.Context) {
	if s.Store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history store not configured"})
		return
	}
	scan, findings, err := s.Store.GetScan(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	Sort(findings)
	c.JSON(http.StatusOK, gin.H{"scan": scan, "findings": findings})
}

func (s *Server) handleCompare(c *gin.Context) {
	if s.Store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history store not configured"})
		return
	}
	a, b := c.Query("a"), c.Query("b")
	if a == "" || b == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "both ?a= and ?b= scan ids are required"})
		return
	}
	baseline, current, err := s.Store.Compare(c.Request.Context(), a, b)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	diff := diffengine.Compare(baseline, current, diffengine.DefaultOptions())
	c.JSON(http.StatusOK, diff)
}

// handleTrend serves the same Mann-Kendall/security-score/regression report
// as `scanforge history trend`, over whatever scan history ?branch= selects
// (all branches when omitted) and ?limit= caps (default 50).
func (s *Server) handleTrend(c *gin.Context) {
	if s.Store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history store not configured"})
		return
	}
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	branch := c.Query("branch")

	scans, err := s.Store.ListScans(c.Request.Context(), limit, branch)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	series := trend.BuildSeries(scans, nil)
	analyzer := s.Trend
	if analyzer == nil {
		analyzer = trend.New(trend.DefaultScoreWeights(), trend.DefaultRegressionOptions())
	}
	c.JSON(http.StatusOK, analyzer.Analyze(branch, series))
}

// handleDashboard renders the same self-contained HTML view WriteDashboard
// writes to disk, for whichever scan ?scan= names (the most recent scan on
// ?branch=, or overall, when omitted).
func (s *Server) handleDashboard(c *gin.Context) {
	if s.Store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history store not configured"})
		return
	}

	scanID := c.Query("scan")
	if scanID == "" {
		scans, err := s.Store.ListScans(c.Request.Context(), 1, c.Query("branch"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if len(scans) == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "no scans recorded yet"})
			return
		}
		scanID = scans[0].ScanID
	}

	scan, findings, err := s.Store.GetScan(c.Request.Context(), scanID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	html, err := RenderDashboard(scan, findings)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}

// handleProgressWS upgrades to a websocket and streams every
// orchestrator.Progress snapshot published to s.Progress until the client
// disconnects.
func (s *Server) handleProgressWS(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Log.Warn("progress websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	ch := s.Progress.subscribe()
	defer s.Progress.unsubscribe(ch)

	// A read pump that only exists to notice client disconnects; the
	// control plane never expects inbound messages on this socket.
	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for p := range ch {
		if err := ws.WriteJSON(p); err != nil {
			return
		}
	}
}
