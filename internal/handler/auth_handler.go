package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/tooldir/internal/pkg/response"
	"github.com/xxxsen/tooldir/internal/service"
)

type AuthHandler struct {
	auth *service.AuthService
}

func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
	Code     string `json:"code"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type codeRequest struct {
	Email    string `json:"email"`
	Code     string `json:"code"`
	Password string `json:"password"`
}

type checkRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c)
		return
	}
	user, token, err := h.auth.Register(c.Request.Context(), service.RegisterRequest{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
		Code:     req.Code,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, "account created", gin.H{"user": user, "token": token})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		invalidRequest(c)
		return
	}
	user, token, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, "", gin.H{"user": user, "token": token})
}

func (h *AuthHandler) LoginWithCode(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c)
		return
	}
	user, token, err := h.auth.LoginWithCode(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, "", gin.H{"user": user, "token": token})
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c)
		return
	}
	if err := h.auth.ResetPassword(c.Request.Context(), req.Email, req.Code, req.Password); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, "password updated", nil)
}

// ChangeEmail runs behind JWTAuth; the code must have been mailed to the
// new address.
func (h *AuthHandler) ChangeEmail(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c)
		return
	}
	user, token, err := h.auth.ChangeEmail(c.Request.Context(), getUserID(c), req.Email, req.Code)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, "email updated", gin.H{"user": user, "token": token})
}

func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.auth.Me(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, "", gin.H{"user": user})
}

func (h *AuthHandler) CheckEmail(c *gin.Context) {
	var req checkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c)
		return
	}
	ok, err := h.auth.CheckEmail(c.Request.Context(), req.Email)
	if err != nil {
		handleError(c, err)
		return
	}
	msg := "email is available"
	if !ok {
		msg = "email is already registered"
	}
	response.Success(c, msg, gin.H{"available": ok})
}

func (h *AuthHandler) CheckUsername(c *gin.Context) {
	var req checkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c)
		return
	}
	ok, err := h.auth.CheckUsername(c.Request.Context(), req.Username)
	if err != nil {
		handleError(c, err)
		return
	}
	msg := "username is available"
	if !ok {
		msg = "username is taken"
	}
	response.Success(c, msg, gin.H{"available": ok})
}
