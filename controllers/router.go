package controllers

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// NewRouter creates the HTTP API router, logging requests through zerolog
// instead of gin's default logger.
func NewRouter(log zerolog.Logger, ctrl *PaymentController) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(log))
	ctrl.Register(router)
	return router
}
