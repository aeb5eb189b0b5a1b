package app

import (
	"molliebridge/pkg/logger"
	"molliebridge/pkg/metrics"

	"github.com/gin-gonic/gin"
)

func NewGinEngine(l *logger.Logger) *gin.Engine {
	engine := gin.New()
	engine.Use(logger.CorrelationMiddleware(), metrics.GinMiddleware(), l.GinRequestLogger(), gin.Recovery())
	return engine
}
