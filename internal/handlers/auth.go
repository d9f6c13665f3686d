package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// TokenIssuer signs access tokens for a user id.
type TokenIssuer interface {
	Issue(userID string) (string, error)
}

// SignInHandler hands out tokens for any user id. It stands in for the
// hosted sign-in flow during local development and must stay disabled in
// production.
type SignInHandler struct {
	issuer TokenIssuer
}

func NewSignInHandler(issuer TokenIssuer) *SignInHandler {
	return &SignInHandler{
		issuer: issuer,
	}
}

type signInRequest struct {
	UserID string `json:"userId"`
}

func (h *SignInHandler) SignIn(c echo.Context) error {
	var req signInRequest
	if err := (&echo.DefaultBinder{}).BindBody(c, &req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request body")
	}

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return errorJSON(c, http.StatusBadRequest, "userId is required")
	}

	token, err := h.issuer.Issue(userID)
	if err != nil {
		log.Printf("Failed to issue token for user %s: %v", userID, err)
		return errorJSON(c, http.StatusInternalServerError, "Failed to sign in")
	}

	return c.JSON(http.StatusOK, map[string]string{"token": token})
}
