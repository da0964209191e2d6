package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hanzhi-dmd/companion/internal/common"
)

func (h *Handler) ArticleFeed(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	months := 0
	if v := c.Query("months"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			common.Fail(c, http.StatusBadRequest, 10005, "months must be 1, 3 or 12")
			return
		}
		months = n
	}
	list, err := h.Portal.ArticleFeed(c.Request.Context(), sess, months)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, gin.H{"articles": list})
}

func (h *Handler) TrialFeed(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	list, err := h.Portal.TrialFeed(c.Request.Context(), sess)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, gin.H{"trials": list})
}

func (h *Handler) DrugFeed(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	list, err := h.Portal.DrugFeed(c.Request.Context(), sess)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, gin.H{"drugs": list})
}
