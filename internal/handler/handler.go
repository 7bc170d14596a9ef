// Package handler exposes the complaint desk over HTTP with gin.
package handler

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hostel/internal/analytics"
	"hostel/internal/attachment"
	"hostel/internal/auth"
	"hostel/internal/complaint"
	"hostel/internal/feed"
	"hostel/internal/feedback"
	"hostel/internal/history"
	"hostel/internal/httpmiddleware"
	"hostel/internal/metrics"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// Deps are the services the routes call. Uploader, Feed, Limiter and Health
// are optional.
type Deps struct {
	Complaints  *complaint.Service
	Analytics   *analytics.Service
	Login       *auth.Authenticator
	Tokens      *auth.Tokens
	Feedback    *feedback.Service
	History     history.Store
	Uploader    attachment.Uploader
	Feed        *feed.Handler
	Limiter     *httpmiddleware.TokenBucket
	TrendMonths int
	Health      map[string]HealthCheck
}

// Handler holds the route dependencies.
type Handler struct {
	Deps
}

// New creates a handler. TrendMonths defaults to 6.
func New(d Deps) *Handler {
	if d.TrendMonths <= 0 {
		d.TrendMonths = 6
	}
	return &Handler{Deps: d}
}

// Register mounts every route on r.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/healthz", h.healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	public := r.Group("/")
	if h.Limiter != nil {
		public.Use(h.Limiter.Middleware(func(c *gin.Context) string { return "ip:" + httpmiddleware.ByClientIP(c) }))
	}
	public.POST("/auth/login", h.login)

	authed := r.Group("/", auth.Bearer(h.Tokens))
	if h.Limiter != nil {
		authed.Use(h.Limiter.Middleware(principalKey))
	}
	authed.POST("/auth/logout", h.logout)
	authed.GET("/auth/me", h.me)

	authed.GET("/complaints", h.listComplaints)
	authed.GET("/complaints/:id", h.getComplaint)
	authed.GET("/complaints/:id/history", h.complaintHistory)
	authed.POST("/complaints", auth.RequireRole(auth.RoleStudent), h.createComplaint)
	authed.PATCH("/complaints/:id", auth.RequireRole(auth.RoleAdmin), h.transitionComplaint)

	authed.GET("/analytics/summary", auth.RequireRole(auth.RoleAdmin), h.analyticsSummary)
	authed.GET("/analytics/me", auth.RequireRole(auth.RoleStudent), h.analyticsMe)

	authed.POST("/feedback", auth.RequireRole(auth.RoleStudent), h.submitFeedback)
	authed.GET("/feedback", auth.RequireRole(auth.RoleAdmin), h.listFeedback)

	authed.POST("/attachments", auth.RequireRole(auth.RoleStudent), h.uploadAttachment)

	if h.Feed != nil {
		authed.GET("/feed", h.Feed.Serve)
	}
}

func principalKey(c *gin.Context) string {
	if p, ok := auth.PrincipalFrom(c); ok {
		return "user:" + p.ID
	}
	return "ip:" + httpmiddleware.ByClientIP(c)
}

func (h *Handler) healthz(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, check := range h.Health {
		ok := check(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

// principal is only called behind auth.Bearer.
func principal(c *gin.Context) auth.Principal {
	p, _ := auth.PrincipalFrom(c)
	return p
}

func badRequest(c *gin.Context, fields map[string]string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": fields})
}

// writeError maps domain errors onto status codes. Unknown errors are logged
// and reported as 500 without detail.
func writeError(c *gin.Context, err error) {
	var cverr *complaint.ValidationError
	var fverr *feedback.ValidationError
	switch {
	case errors.As(err, &cverr):
		badRequest(c, cverr.Fields)
	case errors.As(err, &fverr):
		badRequest(c, fverr.Fields)
	case errors.Is(err, analytics.ErrWindow):
		badRequest(c, map[string]string{"months": "must be between 1 and 24"})
	case errors.Is(err, attachment.ErrEmpty):
		badRequest(c, map[string]string{"file": "is required"})
	case errors.Is(err, complaint.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, complaint.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, complaint.ErrConflict):
		metrics.Conflicts.Inc()
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
