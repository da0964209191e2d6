package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/hanzhi-dmd/companion/internal/common"
	"github.com/hanzhi-dmd/companion/internal/config"
	"github.com/hanzhi-dmd/companion/internal/consult"
	"github.com/hanzhi-dmd/companion/internal/content"
	"github.com/hanzhi-dmd/companion/internal/httpapi/middleware"
	"github.com/hanzhi-dmd/companion/internal/jobs"
	"github.com/hanzhi-dmd/companion/internal/logger"
	"github.com/hanzhi-dmd/companion/internal/portal"
	"github.com/hanzhi-dmd/companion/internal/profile"
	"github.com/hanzhi-dmd/companion/internal/userdb"
)

type Handler struct {
	Cfg    config.Config
	Store  *userdb.Store
	Portal *portal.Service
	// Jobs is nil when no broker is configured; /analyses then answers 503.
	Jobs *jobs.Service
	Log  *logger.Logger
}

func NewHandler(cfg config.Config, store *userdb.Store, p *portal.Service, j *jobs.Service, log *logger.Logger) *Handler {
	return &Handler{Cfg: cfg, Store: store, Portal: p, Jobs: j, Log: logger.OrNop(log).With("component", "handlers")}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

func sessionFromContext(c *gin.Context) (*userdb.Session, bool) {
	sess, ok := middleware.SessionFrom(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
	}
	return sess, ok
}

// fail maps package sentinels to envelope codes.
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, userdb.ErrNoSession):
		common.Fail(c, http.StatusUnauthorized, 40103, "session ended")
	case errors.Is(err, portal.ErrProfileRequired):
		common.Fail(c, http.StatusConflict, 40901, "profile must be configured first")
	case errors.Is(err, portal.ErrConsultationNotFound):
		common.Fail(c, http.StatusNotFound, 40402, "consultation not found")
	case errors.Is(err, gorm.ErrRecordNotFound):
		common.Fail(c, http.StatusNotFound, 40403, "analysis not found")
	case errors.Is(err, portal.ErrInvalidRange):
		common.Fail(c, http.StatusBadRequest, 10005, "months must be 1, 3 or 12")
	case errors.Is(err, profile.ErrIncomplete):
		common.Fail(c, http.StatusBadRequest, 10006, "age, ambulatory status and region are required")
	case errors.Is(err, profile.ErrInvalidValue):
		common.Fail(c, http.StatusBadRequest, 10007, err.Error())
	case errors.Is(err, consult.ErrEmptyMessage):
		common.Fail(c, http.StatusBadRequest, 10008, "message is empty")
	case errors.Is(err, content.ErrUnknownKind):
		common.Fail(c, http.StatusBadRequest, 10009, "unknown entity kind")
	case errors.Is(err, consult.ErrBusy):
		common.Fail(c, http.StatusTooManyRequests, 42901, "too many pending messages")
	case errors.Is(err, consult.ErrClosed):
		common.Fail(c, http.StatusGone, 41001, "consultation closed")
	case errors.Is(err, context.DeadlineExceeded):
		common.Fail(c, http.StatusGatewayTimeout, 50401, "timed out")
	default:
		h.Log.Error("request failed", "path", c.FullPath(), "request_id", c.GetString(middleware.RequestIDKey), "err", err)
		common.Fail(c, http.StatusInternalServerError, 20001, "internal error")
	}
}
