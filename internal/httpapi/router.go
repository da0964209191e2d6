package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hanzhi-dmd/companion/internal/common"
	"github.com/hanzhi-dmd/companion/internal/httpapi/handlers"
	"github.com/hanzhi-dmd/companion/internal/httpapi/middleware"
	"github.com/hanzhi-dmd/companion/internal/logger"
)

func NewRouter(h *handlers.Handler, log *logger.Logger) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.Recovery(log))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(log))

	r.GET("/ping", h.Ping)

	// auth
	r.POST("/login", h.Login)
	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(h.Cfg.JWTSecret, h.Store))
	authGroup.POST("/logout", h.Logout)
	authGroup.GET("/me", h.Me)
	authGroup.PUT("/profile", h.SaveProfile)
	authGroup.GET("/profile/options", h.ProfileOptions)

	// feeds (profile required)
	authGroup.GET("/feed/articles", h.ArticleFeed)
	authGroup.GET("/feed/trials", h.TrialFeed)
	authGroup.GET("/feed/drugs", h.DrugFeed)

	// consultations
	authGroup.POST("/consultations", h.OpenConsultation)
	authGroup.GET("/consultations/:id", h.Transcript)
	authGroup.POST("/consultations/:id/messages", h.Ask)
	authGroup.POST("/consultations/:id/save", h.SaveConsultation)
	authGroup.DELETE("/consultations/:id", h.CloseConsultation)

	// saved inquiries
	authGroup.GET("/inquiries", h.ListInquiries)
	authGroup.DELETE("/inquiries/:id", h.DeleteInquiry)

	// async analyses
	authGroup.POST("/analyses", h.CreateAnalysis)
	authGroup.GET("/analyses", h.ListAnalyses)
	authGroup.GET("/analyses/:id", h.GetAnalysis)
	return r
}
