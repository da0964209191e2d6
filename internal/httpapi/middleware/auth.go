package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hanzhi-dmd/companion/internal/auth"
	"github.com/hanzhi-dmd/companion/internal/common"
	"github.com/hanzhi-dmd/companion/internal/userdb"
)

const (
	UsernameKey = "username"
	SessionKey  = "session"
)

// AuthRequired accepts a bearer token only while its device still points at
// the token's user, so logging out revokes every token for that device.
func AuthRequired(secret string, store *userdb.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if len(h) < 8 || !strings.EqualFold(h[:7], "Bearer ") {
			common.Abort(c, http.StatusUnauthorized, 40101, "missing bearer token")
			return
		}
		claims, err := auth.ParseJWT(strings.TrimSpace(h[7:]), secret)
		if err != nil {
			common.Abort(c, http.StatusUnauthorized, 40102, "invalid token")
			return
		}

		sess, err := store.Resume(c.Request.Context(), claims.Device)
		if errors.Is(err, userdb.ErrNoSession) {
			common.Abort(c, http.StatusUnauthorized, 40103, "session ended")
			return
		}
		if err != nil {
			common.Abort(c, http.StatusInternalServerError, 20001, "store error")
			return
		}
		if sess.Username() != claims.Subject {
			common.Abort(c, http.StatusUnauthorized, 40103, "session ended")
			return
		}

		c.Set(UsernameKey, sess.Username())
		c.Set(SessionKey, sess)
		c.Next()
	}
}

func SessionFrom(c *gin.Context) (*userdb.Session, bool) {
	v, ok := c.Get(SessionKey)
	if !ok {
		return nil, false
	}
	s, ok := v.(*userdb.Session)
	return s, ok
}
