package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hanzhi-dmd/companion/internal/common"
	"github.com/hanzhi-dmd/companion/internal/content"
)

type entityReq struct {
	Kind   content.Kind    `json:"kind" binding:"required"`
	Entity json.RawMessage `json:"entity" binding:"required"`
}

func bindEntity(c *gin.Context) (content.Analyzable, bool) {
	var req entityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return nil, false
	}
	e, err := content.Decode(req.Kind, req.Entity)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10009, err.Error())
		return nil, false
	}
	return e, true
}

func (h *Handler) OpenConsultation(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	entity, ok := bindEntity(c)
	if !ok {
		return
	}
	opened, err := h.Portal.OpenConsultation(c.Request.Context(), sess, entity)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, opened)
}

type askReq struct {
	Message string `json:"message" binding:"required"`
}

func (h *Handler) Ask(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var req askReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	id := c.Param("id")
	reply, err := h.Portal.Ask(c.Request.Context(), sess, id, req.Message)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, gin.H{"id": id, "reply": reply})
}

func (h *Handler) Transcript(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	turns, openedAt, err := h.Portal.Transcript(sess, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, gin.H{"id": c.Param("id"), "openedAt": openedAt, "chatHistory": turns})
}

func (h *Handler) SaveConsultation(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	inq, err := h.Portal.SaveConsultation(c.Request.Context(), sess, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, inq)
}

func (h *Handler) CloseConsultation(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	if err := h.Portal.CloseConsultation(sess, c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, gin.H{"closed": c.Param("id")})
}
