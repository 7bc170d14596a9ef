package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"hostel/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Role      auth.Role      `json:"role"`
	Principal auth.Principal `json:"principal"`
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expiresAt"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	fields := map[string]string{}
	if strings.TrimSpace(req.Email) == "" {
		fields["email"] = "is required"
	}
	if req.Password == "" {
		fields["password"] = "is required"
	}
	if len(fields) > 0 {
		badRequest(c, fields)
		return
	}

	sess, err := h.Login.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, loginResponse{
		Role:      sess.Principal.Role,
		Principal: sess.Principal,
		Token:     sess.Token.AccessToken,
		ExpiresAt: sess.Token.ExpiresAt,
	})
}

func (h *Handler) logout(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	if err := h.Tokens.Revoke(c.Request.Context(), claims); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) me(c *gin.Context) {
	c.JSON(http.StatusOK, principal(c))
}
