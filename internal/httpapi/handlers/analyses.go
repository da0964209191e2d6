package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hanzhi-dmd/companion/internal/common"
	"github.com/hanzhi-dmd/companion/internal/jobs"
)

// CreateAnalysis queues an initial analysis for the worker. The optional
// Idempotency-Key header makes retries return the first job.
func (h *Handler) CreateAnalysis(c *gin.Context) {
	if h.Jobs == nil {
		common.Fail(c, http.StatusServiceUnavailable, 50301, "async analyses are disabled")
		return
	}
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	entity, ok := bindEntity(c)
	if !ok {
		return
	}
	p, err := h.Portal.RequireProfile(c.Request.Context(), sess)
	if err != nil {
		h.fail(c, err)
		return
	}

	job, created, err := h.Jobs.Enqueue(c.Request.Context(), jobs.EnqueueInput{
		Username:       sess.Username(),
		Entity:         entity,
		Profile:        p,
		IdempotencyKey: strings.TrimSpace(c.GetHeader("Idempotency-Key")),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, gin.H{"job_id": job.ID, "status": job.Status, "created": created})
}

func (h *Handler) GetAnalysis(c *gin.Context) {
	if h.Jobs == nil {
		common.Fail(c, http.StatusServiceUnavailable, 50301, "async analyses are disabled")
		return
	}
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	job, err := h.Jobs.Get(c.Request.Context(), sess.Username(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, job)
}

// ListAnalyses returns the caller's jobs, newest first.
func (h *Handler) ListAnalyses(c *gin.Context) {
	if h.Jobs == nil {
		common.Fail(c, http.StatusServiceUnavailable, 50301, "async analyses are disabled")
		return
	}
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	list, err := h.Jobs.List(c.Request.Context(), sess.Username(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, gin.H{"analyses": list})
}
