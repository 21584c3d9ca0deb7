// Account HTTP handlers.
//
// This file exposes the identity endpoints:
//   - POST  /auth/register   (sign up, returns a session token)
//   - POST  /auth/login      (email or @handle plus password)
//   - POST  /auth/logout     (clears the session cookie)
//   - GET   /me              (own profile)
//   - PATCH /me              (partial profile edit)
//   - GET   /search-users    (people search for starting conversations)
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/coony/chat-backend/internal/services"
	"github.com/coony/chat-backend/internal/view"
)

//
// DTOs
//

// RegisterRequest is the JSON payload for creating an account.
type RegisterRequest struct {
	Name     string `json:"name" example:"Ana Souza"`
	Email    string `json:"email" example:"ana@coony.app"`
	Phone    string `json:"phone" example:"11987654321"`
	Password string `json:"password" example:"s3gredo"`
}

// LoginRequest is the JSON payload for signing in. Login is an email or a
// handle, with or without the leading "@".
type LoginRequest struct {
	Login    string `json:"login" binding:"required" example:"@ana-souza-123456"`
	Password string `json:"password" binding:"required" example:"s3gredo"`
}

// AuthResponse carries the signed-in profile and its session token.
type AuthResponse struct {
	User      view.Profile `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// ProfileRequest is a partial profile edit; omitted fields are unchanged.
type ProfileRequest struct {
	Name      *string `json:"name" example:"Ana S."`
	Username  *string `json:"username" example:"ana"`
	AvatarURL *string `json:"avatar_url" example:"https://cdn.coony.app/a/1.png"`
	Bio       *string `json:"bio"`
	Location  *string `json:"location" example:"São Paulo"`
}

// ProfileResponse wraps the signed-in user's profile.
type ProfileResponse struct {
	User view.Profile `json:"user"`
}

// SearchUsersResponse lists people matching a query.
type SearchUsersResponse struct {
	Results []view.User `json:"results"`
}

//
// Handlers
//

// Register godoc
// @ID          register
// @Summary     Create an account
// @Description Registers a user, generates a unique @handle from the name and returns a session token.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.RegisterRequest  true  "Sign-up form"
// @Success     201   {object}  handlers.AuthResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     409   {object}  handlers.ErrorResponse  "E-mail already registered"
// @Router      /auth/register [post]
func (h *Handlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "JSON inválido")
		return
	}
	u, err := h.users.Register(c.Request.Context(), services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	h.startSession(c, http.StatusCreated, u.ID, h.present.Profile(*u))
}

// Login godoc
// @ID          login
// @Summary     Sign in
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.LoginRequest  true  "Credentials"
// @Success     200   {object}  handlers.AuthResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401   {object}  handlers.ErrorResponse  "Invalid credentials"
// @Router      /auth/login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Informe login e senha")
		return
	}
	u, err := h.users.Authenticate(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		failErr(c, err)
		return
	}
	h.startSession(c, http.StatusOK, u.ID, h.present.Profile(*u))
}

// Logout godoc
// @ID          logout
// @Summary     Clear the session cookie
// @Tags        Auth
// @Success     204  {string}  string  "No Content"
// @Router      /auth/logout [post]
func (h *Handlers) Logout(c *gin.Context) {
	if h.cookie != "" {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(h.cookie, "", -1, "/", "", c.Request.TLS != nil, true)
	}
	noContent(c)
}

// Me godoc
// @ID          getMe
// @Summary     Current user profile
// @Tags        Auth
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.ProfileResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Router      /me [get]
func (h *Handlers) Me(c *gin.Context) {
	u, err := h.users.Get(c.Request.Context(), viewer(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ProfileResponse{User: h.present.Profile(*u)})
}

// UpdateMe godoc
// @ID          updateMe
// @Summary     Edit profile
// @Description Applies a partial profile edit. The username is normalized into a handle.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.ProfileRequest  true  "Fields to change"
// @Success     200   {object}  handlers.ProfileResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     409   {object}  handlers.ErrorResponse  "Handle taken"
// @Router      /me [patch]
func (h *Handlers) UpdateMe(c *gin.Context) {
	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "JSON inválido")
		return
	}
	u, err := h.users.UpdateProfile(c.Request.Context(), viewer(c), services.ProfileInput{
		Name:      req.Name,
		Username:  req.Username,
		AvatarURL: req.AvatarURL,
		Bio:       req.Bio,
		Location:  req.Location,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ProfileResponse{User: h.present.Profile(*u)})
}

// SearchUsers godoc
// @ID          searchUsers
// @Summary     Find people by name or @handle
// @Description Returns at most 8 users, excluding the caller, ordered by name.
// @Tags        Auth
// @Produce     json
// @Security    BearerAuth
// @Param       q    query     string  false  "Name or handle fragment"
// @Success     200  {object}  handlers.SearchUsersResponse
// @Router      /search-users [get]
func (h *Handlers) SearchUsers(c *gin.Context) {
	users, err := h.users.Search(c.Request.Context(), viewer(c), c.Query("q"))
	if err != nil {
		failErr(c, err)
		return
	}
	out := make([]view.User, 0, len(users))
	for _, u := range users {
		out = append(out, h.present.User(u))
	}
	ok(c, http.StatusOK, SearchUsersResponse{Results: out})
}

// startSession issues a token for userID, mirrors it into the session cookie
// and writes the auth response.
func (h *Handlers) startSession(c *gin.Context, status int, userID uint, profile view.Profile) {
	token, exp, err := h.tokens.Issue(userID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	if h.cookie != "" {
		maxAge := int(time.Until(exp).Seconds())
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(h.cookie, token, maxAge, "/", "", c.Request.TLS != nil, true)
	}
	ok(c, status, AuthResponse{User: profile, Token: token, ExpiresAt: exp})
}
