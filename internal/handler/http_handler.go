package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/live-poll/internal/domain"
	"github.com/weiawesome/live-poll/internal/session"
	"github.com/weiawesome/live-poll/pkg/response"
)

// Handler serves the read-only HTTP views of the session.
type Handler struct {
	session *session.Session
	now     func() time.Time
}

// NewHandler creates a new HTTP handler.
func NewHandler(s *session.Session) *Handler {
	return &Handler{session: s, now: time.Now}
}

// ResultsView is the live results of the current poll.
type ResultsView struct {
	Poll         *domain.Poll          `json:"poll"`
	Results      []domain.OptionResult `json:"results"`
	TotalVotes   int                   `json:"totalVotes"`
	Participants int                   `json:"participants"`
	Remaining    int                   `json:"remaining"`
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/", h.Index)
	r.GET("/health", h.Health)

	api := r.Group("/api/v1")
	{
		api.GET("/session", h.GetSession)
		api.GET("/history", h.GetHistory)
		api.GET("/polls/current/results", h.GetCurrentResults)
	}
}

func (h *Handler) Index(c *gin.Context) {
	c.String(http.StatusOK, "Live poll server is running.")
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"timestamp": h.now().UTC().Format(time.RFC3339Nano),
	})
}

// GetSession returns the same snapshot a new connection receives.
func (h *Handler) GetSession(c *gin.Context) {
	response.Success(c, h.session.Snapshot())
}

func (h *Handler) GetHistory(c *gin.Context) {
	response.Success(c, h.session.History())
}

func (h *Handler) GetCurrentResults(c *gin.Context) {
	res, ok := h.session.Results()
	if !ok {
		response.NotFound(c, "no poll has been created")
		return
	}

	response.Success(c, ResultsView{
		Poll:         res.Poll,
		Results:      res.Options,
		TotalVotes:   res.TotalVotes,
		Participants: res.Participants,
		Remaining:    res.Poll.Remaining(h.now()),
	})
}
