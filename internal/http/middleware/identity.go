// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the caller's identity. Identity() reads a session token
// from the Authorization header, the session cookie or the "token" query
// parameter (WebSocket clients cannot set headers), verifies it and stores the
// user id in the Gin context. It never rejects a request by itself;
// RequireUser() does that for authenticated route groups.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/coony/chat-backend/internal/sysutil"
)

const ctxKeyUserID = "userID"

// TokenParser verifies a session token and returns its user id.
// *auth.Tokens satisfies it.
type TokenParser interface {
	Parse(raw string) (uint, error)
}

// IdentityOptions configures where Identity looks for a token.
type IdentityOptions struct {
	CookieName string // session cookie; empty disables the cookie source
	QueryParam string // defaults to "token"
}

// Identity attaches the authenticated user id when a valid token is present.
// Invalid or missing tokens leave the request anonymous.
func Identity(tokens TokenParser, opts IdentityOptions) gin.HandlerFunc {
	qp := opts.QueryParam
	if qp == "" {
		qp = "token"
	}
	return func(c *gin.Context) {
		var cookie string
		if opts.CookieName != "" {
			cookie, _ = c.Cookie(opts.CookieName)
		}
		raw := sysutil.FirstNonEmpty(bearer(c.GetHeader("Authorization")), cookie, c.Query(qp))
		if raw != "" {
			if uid, err := tokens.Parse(strings.TrimSpace(raw)); err == nil {
				SetUserID(c, uid)
			} else {
				LoggerFrom(c).Debug().Err(err).Msg("session token rejected")
			}
		}
		c.Next()
	}
}

// RequireUser aborts with 401 unless Identity resolved a user.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := UserID(c); !ok {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "Autenticação requerida")
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated user id, if any.
func UserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ctxKeyUserID)
	if !ok {
		return 0, false
	}
	id, _ := v.(uint)
	return id, id != 0
}

// SetUserID marks the request as authenticated for id.
func SetUserID(c *gin.Context, id uint) {
	c.Set(ctxKeyUserID, id)
}

func bearer(h string) string {
	const prefix = "bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

// abortJSON writes the error envelope shared with the handlers package.
func abortJSON(c *gin.Context, status int, code, detail string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       code,
		"detail":     detail,
	})
}
