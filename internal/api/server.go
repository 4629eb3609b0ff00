// Package api exposes a read-only REST binding over the monitoring facade.
package api

import (
	"encoding/json"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"txguardmon/internal/monitor"
)

type errMsg struct {
	Err string `json:"err"`
}

// Server binds the monitoring facade to HTTP routes.
type Server struct {
	service *monitor.Service
	logger  *zap.Logger
}

func NewServer(service *monitor.Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{service: service, logger: logger}
}

// Handler builds the route table.
func (s *Server) Handler() fasthttp.RequestHandler {
	r := router.New()

	r.GET("/stats", s.getStats)
	r.GET("/report", s.getReport)
	r.GET("/tier/recommended", s.getRecommendedTier)
	r.GET("/classify", s.classifyFailure)
	r.POST("/refresh", s.refreshStats)

	return r.Handler
}

// Listen serves the API on addr, blocking until the listener fails.
func (s *Server) Listen(addr string) error {
	s.logger.Info("api listen", zap.String("addr", addr))
	return fasthttp.ListenAndServe(addr, s.Handler())
}

func (s *Server) getStats(ctx *fasthttp.RequestCtx) {
	stats, ok := s.service.Stats()
	if !ok {
		// "No data yet" must be distinguishable from real all-zero counters.
		writeJSON(ctx, fasthttp.StatusServiceUnavailable, errMsg{Err: "no stats captured yet"})
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, stats)
}

func (s *Server) getReport(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, fasthttp.StatusOK, s.service.AnalysisReport())
}

func (s *Server) getRecommendedTier(ctx *fasthttp.RequestCtx) {
	tier := s.service.RecommendedPriorityTier()
	writeJSON(ctx, fasthttp.StatusOK, map[string]any{
		"tier":            int(tier),
		"name":            tier.String(),
		"recommended_fee": s.service.RecommendedFeeForTier(tier),
	})
}

func (s *Server) classifyFailure(ctx *fasthttp.RequestCtx) {
	text := string(ctx.QueryArgs().Peek("text"))
	writeJSON(ctx, fasthttp.StatusOK, s.service.ClassifyFailure(text))
}

func (s *Server) refreshStats(ctx *fasthttp.RequestCtx) {
	stats, err := s.service.RefreshStats(ctx)
	if err != nil {
		writeJSON(ctx, fasthttp.StatusBadGateway, errMsg{Err: err.Error()})
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, stats)
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, payload any) {
	ctx.Response.Header.Set("Access-Control-Allow-Origin", "*")
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(status)

	body, err := json.Marshal(payload)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		ctx.SetBodyString(`{"err":"encode response"}`)
		return
	}
	ctx.SetBody(body)
}
