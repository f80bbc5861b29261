package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"parking-status-monitor/internal/model"
	"parking-status-monitor/internal/upstream"
)

// sessionView is the session as exposed to consumers. The raw token never
// leaves the process.
type sessionView struct {
	LoggedIn bool        `json:"loggedIn"`
	Valid    bool        `json:"valid"`
	User     *model.User `json:"user,omitempty"`
}

func viewOf(sess model.Session) sessionView {
	return sessionView{LoggedIn: sess.LoggedIn(), Valid: sess.Valid, User: sess.User}
}

// GetSession handles GET /api/session.
func (h *Handler) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, viewOf(h.sessions.Session()))
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /api/session/login: authenticates against the backend
// and installs the resulting session.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	user, token, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		var apiErr *upstream.APIError
		if errors.As(err, &apiErr) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": apiErr.Message})
		} else {
			c.JSON(http.StatusBadGateway, gin.H{"error": "unable to reach the parking backend"})
		}
		return
	}

	h.sessions.Login(user, token)
	c.JSON(http.StatusOK, viewOf(h.sessions.Session()))
}

// Logout handles DELETE /api/session. Idempotent.
func (h *Handler) Logout(c *gin.Context) {
	h.sessions.Logout()
	c.Status(http.StatusNoContent)
}

// VerifySession handles POST /api/session/verify: forces an immediate
// re-validation round-trip instead of waiting for the background timer.
func (h *Handler) VerifySession(c *gin.Context) {
	valid, err := h.sessions.CheckTokenValidity(c.Request.Context())
	if err != nil {
		// Transport trouble: the session survives, but trust is unknown.
		c.JSON(http.StatusBadGateway, gin.H{"error": "unable to reach the parking backend", "valid": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": valid})
}
