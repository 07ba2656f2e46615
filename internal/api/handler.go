package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nitesh/news_digest/internal/digest"
	"github.com/nitesh/news_digest/internal/service"
	"github.com/nitesh/news_digest/pkg/models"
)

type Handler struct {
	svc    *service.Service
	logger *zap.Logger
}

func NewHandler(svc *service.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger.With(zap.String("component", "api"))}
}

func RegisterRoutes(r *gin.Engine, h *Handler, metricsHandler http.Handler) {
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(metricsHandler))
	}

	v1 := r.Group("/v1")
	{
		v1.GET("/feed", h.Feed)

		v1.POST("/articles/ingest", h.Ingest)
		v1.GET("/articles/:id", h.Article)
		v1.POST("/articles/:id/read", h.MarkRead)
		v1.POST("/articles/:id/save", h.ToggleSaved)

		v1.GET("/profile", h.Profile)
		v1.POST("/profile/topics", h.profileAdd(h.svc.AddTopic))
		v1.DELETE("/profile/topics/:value", h.profileParam(h.svc.RemoveTopic))
		v1.POST("/profile/topics/:value/toggle", h.profileParam(h.svc.ToggleTopic))
		v1.POST("/profile/keywords", h.profileAdd(h.svc.AddKeyword))
		v1.DELETE("/profile/keywords/:value", h.profileParam(h.svc.RemoveKeyword))
		v1.POST("/profile/excluded-sources", h.profileAdd(h.svc.AddExcludedSource))
		v1.DELETE("/profile/excluded-sources/:value", h.profileParam(h.svc.RemoveExcludedSource))
		v1.POST("/profile/sources/:value/toggle", h.profileParam(h.svc.ToggleSource))
	}
}

// Feed: GET /v1/feed?filter=all|saved
func (h *Handler) Feed(c *gin.Context) {
	filter, err := digest.ParseFilter(c.Query("filter"))
	if err != nil {
		h.fail(c, err)
		return
	}
	res, err := h.svc.Feed(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"meta": gin.H{
			"filter": res.Filter,
			"count":  len(res.Items),
			"unread": res.Unread,
		},
		"data": res.Items,
	})
}

// Ingest: POST /v1/articles/ingest
// Body: JSON array of raw articles
func (h *Handler) Ingest(c *gin.Context) {
	var payload []models.RawArticle
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json: " + err.Error()})
		return
	}
	res, err := h.svc.Ingest(c.Request.Context(), payload)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"meta": gin.H{
			"imported":   res.Added,
			"duplicates": res.Duplicates,
			"rejected":   len(res.Rejected),
		},
		"rejected": res.Rejected,
	})
}

// Article: GET /v1/articles/:id
func (h *Handler) Article(c *gin.Context) {
	h.articleOp(c, h.svc.Article)
}

// MarkRead: POST /v1/articles/:id/read
func (h *Handler) MarkRead(c *gin.Context) {
	h.articleOp(c, h.svc.MarkRead)
}

// ToggleSaved: POST /v1/articles/:id/save
func (h *Handler) ToggleSaved(c *gin.Context) {
	h.articleOp(c, h.svc.ToggleSaved)
}

func (h *Handler) articleOp(c *gin.Context, op func(context.Context, string) (models.Article, error)) {
	a, err := op(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": a})
}

// Profile: GET /v1/profile
func (h *Handler) Profile(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.svc.Preferences(c.Request.Context())})
}

type valueRequest struct {
	Value string `json:"value"`
}

// profileAdd handles POST bodies of the form {"value": "..."}. A blank
// value is accepted and leaves the profile unchanged.
func (h *Handler) profileAdd(op func(context.Context, string) (models.Preferences, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req valueRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json: " + err.Error()})
			return
		}
		h.profileResult(c, op, req.Value)
	}
}

func (h *Handler) profileParam(op func(context.Context, string) (models.Preferences, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.profileResult(c, op, c.Param("value"))
	}
}

func (h *Handler) profileResult(c *gin.Context, op func(context.Context, string) (models.Preferences, error), value string) {
	prefs, err := op(c.Request.Context(), value)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": prefs})
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// StatusFor maps engine error codes onto HTTP statuses.
func StatusFor(err error) int {
	switch digest.CodeOf(err) {
	case digest.CodeNotFound:
		return http.StatusNotFound
	case digest.CodeInvalidInput, digest.CodeInvalidSentiment:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
