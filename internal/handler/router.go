package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/tooldir/internal/middleware"
)

type RouterDeps struct {
	Email     *EmailHandler
	Auth      *AuthHandler
	Feedback  *FeedbackHandler
	JWTSecret []byte
	// RateLimit guards the code endpoints per client and route; zero disables it.
	RateLimit time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	limited := middleware.RateLimit(deps.RateLimit)

	api.POST("/email/send-verification", middleware.OptionalJWTAuth(deps.JWTSecret), limited, deps.Email.SendVerification)
	api.POST("/email/verify-code", limited, deps.Email.VerifyCode)

	api.POST("/auth/check-email", deps.Auth.CheckEmail)
	api.POST("/auth/check-username", deps.Auth.CheckUsername)
	api.POST("/auth/register", limited, deps.Auth.Register)
	api.POST("/auth/login", limited, deps.Auth.Login)
	api.POST("/auth/login/code", limited, deps.Auth.LoginWithCode)
	api.POST("/auth/reset-password", limited, deps.Auth.ResetPassword)
	api.POST("/feedback", limited, deps.Feedback.Submit)

	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))
	authGroup.GET("/user/me", deps.Auth.Me)
	authGroup.POST("/user/email", limited, deps.Auth.ChangeEmail)
}
