package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/tooldir/internal/middleware"
	"github.com/xxxsen/tooldir/internal/pkg/errcode"
	"github.com/xxxsen/tooldir/internal/pkg/response"
	"github.com/xxxsen/tooldir/internal/service"
	"github.com/xxxsen/tooldir/internal/verify"
)

type EmailHandler struct {
	codes *service.VerificationService
}

func NewEmailHandler(codes *service.VerificationService) *EmailHandler {
	return &EmailHandler{codes: codes}
}

type sendVerificationRequest struct {
	Email    string `json:"email"`
	Type     string `json:"type"`
	Template string `json:"template"`
}

type verifyCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
	Type  string `json:"type"`
}

func (h *EmailHandler) SendVerification(c *gin.Context) {
	var req sendVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c)
		return
	}
	purpose, err := verify.ParsePurpose(req.Type)
	if err != nil {
		handleError(c, err)
		return
	}
	result, err := h.codes.SendCode(c.Request.Context(), service.SendCodeRequest{
		Email:    req.Email,
		Purpose:  purpose,
		Template: strings.TrimSpace(req.Template),
		UserID:   getUserID(c),
	})
	if err != nil && service.IsDeliveryFailure(err) && result != nil {
		// the code is live and its cooldown is running, so the client
		// must wait before asking again
		logutil.GetLogger(c.Request.Context()).Error("verification mail not delivered",
			zap.String("request_id", c.GetString(middleware.ContextRequestIDKey)),
			zap.String("type", purpose.String()),
			zap.Error(err),
		)
		response.ErrorRetry(c, http.StatusBadGateway, errcode.ErrDeliveryFailed,
			int(result.Cooldown/time.Second), service.ErrDeliveryFailed.Error())
		return
	}
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, "verification code sent", gin.H{
		"expires_at":       result.ExpiresAt.Unix(),
		"cooldown_seconds": int(result.Cooldown.Seconds()),
	})
}

func (h *EmailHandler) VerifyCode(c *gin.Context) {
	var req verifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c)
		return
	}
	purpose, err := verify.ParsePurpose(req.Type)
	if err != nil {
		handleError(c, err)
		return
	}
	if err := h.codes.VerifyCode(c.Request.Context(), req.Email, purpose, req.Code); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, "code verified", nil)
}
