package rest

import (
	"time"

	"molliebridge/internal/controller/rest/handlers"
	"molliebridge/pkg/health"
	"molliebridge/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Router struct {
	webhook handlers.WebhookHandler
	checks  *health.Registry
}

func NewRouter(webhook handlers.WebhookHandler, checks *health.Registry) *Router {
	return &Router{webhook: webhook, checks: checks}
}

func (r *Router) SetUp(engine *gin.Engine) {
	// The provider calls the webhook with GET or POST depending on account
	// configuration; accept any method.
	engine.Any("/webhooks/mollie", r.webhook.Webhook)

	engine.GET("/health/live", health.LivenessHandler())
	engine.GET("/health/ready", health.ReadinessHandler(r.checks, health.DefaultTimeout))

	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{
		Timeout: 10 * time.Second,
	})))
}
