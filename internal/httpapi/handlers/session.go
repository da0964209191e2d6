package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/hanzhi-dmd/companion/internal/auth"
	"github.com/hanzhi-dmd/companion/internal/common"
	"github.com/hanzhi-dmd/companion/internal/profile"
	"github.com/hanzhi-dmd/companion/internal/userdb"
)

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
	// Device names the browser or app instance; one is minted when empty.
	// Its current-user pointer expires with the token where the store allows.
	Device string `json:"device"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if req.Device == "" {
		id, err := common.NewULID()
		if err != nil {
			common.Fail(c, http.StatusInternalServerError, 20004, "failed to allocate device id")
			return
		}
		req.Device = id
	}

	sess, err := h.Store.Login(c.Request.Context(), req.Device, req.Username, req.Password)
	if errors.Is(err, userdb.ErrAuthRejected) {
		common.Fail(c, http.StatusUnauthorized, 10010, "invalid username or password")
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	token, err := auth.SignJWT(sess.Username(), sess.Device(), h.Cfg.JWTSecret, h.Cfg.TokenTTL)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20003, "failed to sign token")
		return
	}
	rec, err := sess.UserData(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, gin.H{
		"token":      token,
		"username":   sess.Username(),
		"device":     sess.Device(),
		"hasProfile": rec.Profile != nil,
	})
}

func (h *Handler) Logout(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	closed := h.Portal.CloseAll(sess)
	if err := sess.Logout(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, gin.H{"closedConsultations": closed})
}

func (h *Handler) Me(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	rec, err := sess.UserData(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, gin.H{
		"username":     rec.Username,
		"device":       sess.Device(),
		"profile":      rec.Profile,
		"inquiryCount": len(rec.SavedInquiries),
		"revision":     rec.Revision,
	})
}

// SaveProfile takes the settings form as a draft and stores it only when it
// submits cleanly.
func (h *Handler) SaveProfile(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var d profile.Draft
	if err := c.ShouldBindJSON(&d); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	p, err := d.Submit()
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := sess.SaveProfile(c.Request.Context(), p); err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, p)
}

type option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// ProfileOptions lists the choices the settings form offers.
func (h *Handler) ProfileOptions(c *gin.Context) {
	regions := lo.Map(profile.Regions(), func(r profile.Region, _ int) option {
		return option{Value: string(r), Label: r.Label()}
	})
	interests := lo.Map(profile.Interests(), func(i profile.InterestArea, _ int) option {
		return option{Value: string(i), Label: i.Label()}
	})
	common.OK(c, gin.H{"regions": regions, "interests": interests})
}

func (h *Handler) ListInquiries(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	rec, err := sess.UserData(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, gin.H{"inquiries": rec.SavedInquiries})
}

func (h *Handler) DeleteInquiry(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	if err := sess.DeleteInquiry(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, gin.H{"deleted": c.Param("id")})
}
