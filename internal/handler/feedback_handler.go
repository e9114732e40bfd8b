package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/tooldir/internal/pkg/response"
	"github.com/xxxsen/tooldir/internal/service"
)

type FeedbackHandler struct {
	feedback *service.FeedbackService
}

func NewFeedbackHandler(feedback *service.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{feedback: feedback}
}

type feedbackRequest struct {
	Email   string `json:"email"`
	Code    string `json:"code"`
	Content string `json:"content"`
}

func (h *FeedbackHandler) Submit(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c)
		return
	}
	item, err := h.feedback.Submit(c.Request.Context(), req.Email, req.Code, req.Content)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, "thanks for your feedback", gin.H{"id": item.ID})
}
