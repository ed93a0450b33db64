// Package server exposes verification and workflow lookup over HTTP.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"xdao.co/trailproof/compliance"
	"xdao.co/trailproof/errdefs"
	"xdao.co/trailproof/model"
	"xdao.co/trailproof/record"
	"xdao.co/trailproof/verifier"
	"xdao.co/trailproof/workflow"
)

type Handler struct {
	Verifier *verifier.Verifier
	Index    *workflow.Index
	// Mode applies to requests that do not name a compliance mode.
	Mode   compliance.ComplianceMode
	Logger *slog.Logger
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return h.Logger
}

// NewRouter wires the API routes.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.accessLog)

	r.GET("/healthz", h.Health)
	v1 := r.Group("/v1")
	{
		v1.POST("/verify", h.Verify)
		v1.GET("/workflows", h.ListWorkflows)
		v1.GET("/workflows/:hash", h.GetWorkflow)
	}
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": model.NewError(model.ErrNotFound, "route not found")})
	})
	return r
}

func (h *Handler) accessLog(c *gin.Context) {
	start := time.Now()
	c.Next()
	h.logger().Info("request",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"status", c.Writer.Status(),
		"duration", time.Since(start))
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Verify answers 200 with a verdict whenever verification ran, valid or not.
func (h *Handler) Verify(c *gin.Context) {
	var req model.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": model.NewError(model.ErrInvalidRequest, err.Error())})
		return
	}
	resp, err := model.Verify(c.Request.Context(), h.Verifier, req, h.Mode)
	if err != nil {
		ce := model.MapError(err)
		if resp != nil {
			c.JSON(statusFor(ce), resp)
			return
		}
		c.JSON(statusFor(ce), gin.H{"error": ce})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetWorkflow(c *gin.Context) {
	hash, err := record.ParseHash(c.Param("hash"))
	if err != nil {
		h.fail(c, err)
		return
	}
	rec, err := h.Index.Get(c.Request.Context(), hash)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, model.FromRecord(hash, rec))
}

// ListWorkflows lists every record, or with one or more tag query
// parameters, the records carrying all of them.
func (h *Handler) ListWorkflows(c *gin.Context) {
	var (
		found []workflow.Listing
		err   error
	)
	if tags, ok := c.GetQueryArray("tag"); ok {
		found, err = h.Index.FindByTags(c.Request.Context(), tags)
	} else {
		found, err = h.Index.List(c.Request.Context())
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]model.Workflow, 0, len(found))
	for _, l := range found {
		out = append(out, model.FromRecord(l.Hash, l.Record))
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) fail(c *gin.Context, err error) {
	ce := model.MapError(err)
	if ce.Code == model.ErrInternal || ce.Code == model.ErrUnavailable {
		h.logger().Error("request failed", "path", c.FullPath(), "kind", errdefs.KindOf(err), "err", err)
	}
	c.JSON(statusFor(ce), gin.H{"error": ce})
}

func statusFor(ce *model.CodedError) int {
	switch ce.Code {
	case model.ErrInvalidRequest, model.ErrInvalidProof, model.ErrInvalidCID, model.ErrCrypto:
		return http.StatusBadRequest
	case model.ErrNotFound:
		return http.StatusNotFound
	case model.ErrUnavailable:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
