package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stellarlinkco/agent-eval/internal/store"
)

// runSummary is the list-view shape of a task run; the full EvalResult is
// only returned by the detail endpoint.
type runSummary struct {
	ID              string    `json:"id"`
	TaskID          string    `json:"task_id"`
	Cohort          string    `json:"cohort,omitempty"`
	TotalTrials     int       `json:"total_trials"`
	PassedTrials    int       `json:"passed_trials"`
	PassRate        float64   `json:"pass_rate"`
	PassAtK         float64   `json:"pass_at_k"`
	PassPowerK      float64   `json:"pass_power_k"`
	AvgIterations   float64   `json:"avg_iterations"`
	AvgGroundedness float64   `json:"avg_groundedness"`
	CreatedAt       time.Time `json:"created_at"`
}

func summarize(rec *store.TaskRunRecord) runSummary {
	return runSummary{
		ID:              rec.ID,
		TaskID:          rec.TaskID,
		Cohort:          rec.Cohort,
		TotalTrials:     rec.TotalTrials,
		PassedTrials:    rec.PassedTrials,
		PassRate:        rec.PassRate,
		PassAtK:         rec.PassAtK,
		PassPowerK:      rec.PassPowerK,
		AvgIterations:   rec.AvgIterations,
		AvgGroundedness: rec.AvgGroundedness,
		CreatedAt:       rec.CreatedAt,
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleListRuns(c *gin.Context) {
	filter := store.RunFilter{
		TaskID: strings.TrimSpace(c.Query("task_id")),
		Cohort: strings.TrimSpace(c.Query("cohort")),
	}
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		filter.Limit = limit
	}

	recs, err := s.store.ListTaskRuns(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]runSummary, 0, len(recs))
	for _, rec := range recs {
		out = append(out, summarize(rec))
	}
	c.JSON(http.StatusOK, gin.H{"runs": out})
}

func (s *Server) handleGetRun(c *gin.Context) {
	rec, err := s.store.GetTaskRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": summarize(rec), "result": rec.Result})
}

func (s *Server) handleLatestMatrix(c *gin.Context) {
	rec, err := s.store.LatestMatrixRun(c.Request.Context())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": rec.ID, "created_at": rec.CreatedAt, "summary": rec.Summary})
}

func (s *Server) handleGetMatrix(c *gin.Context) {
	rec, err := s.store.GetMatrixRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": rec.ID, "created_at": rec.CreatedAt, "summary": rec.Summary})
}
