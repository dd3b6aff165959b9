package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mcpfactory/stripe-service/internal/app/service/reconciler"
	"github.com/mcpfactory/stripe-service/internal/platform/stripeapi"
	cfgpkg "github.com/mcpfactory/stripe-service/pkg/config"
	"github.com/mcpfactory/stripe-service/pkg/logctx"
	"github.com/mcpfactory/stripe-service/pkg/response"
)

// maxWebhookBody bounds the raw body read; generous for any Stripe event.
const maxWebhookBody = 65536

// @Summary      Stripe Webhook
// @Description  Receives signed Stripe event deliveries and reconciles them against local payment records.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Success      200  {object}  response.Received
// @Failure      400  {object}  response.ErrorBody
// @Failure      500  {object}  response.ErrorBody
// @Router       /webhooks/stripe [post]
// ApiStripeWebhook verifies the delivery signature against the raw body and
// hands the event to the reconciler. The route bypasses JSON binding: the
// signature covers the literal bytes Stripe sent.
func ApiStripeWebhook(cfg *cfgpkg.Config, client stripeapi.Client, rec *reconciler.Reconciler, base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logctx.FromGin(c, base)

		secret := cfg.Stripe.WebhookSecret
		if secret == "" {
			log.Error("STRIPE_WEBHOOK_SECRET not configured")
			c.JSON(http.StatusBadRequest, response.Err("Webhook secret not configured"))
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)
		payload, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Err("Could not read request body"))
			return
		}

		signature := c.GetHeader("Stripe-Signature")
		if signature == "" {
			c.JSON(http.StatusBadRequest, response.Err("Missing stripe-signature header"))
			return
		}

		event, err := client.VerifyWebhook(payload, signature, secret)
		if err != nil {
			log.Warnw("webhook signature verification failed", "err", err)
			c.JSON(http.StatusBadRequest, response.Err("Invalid signature"))
			return
		}

		if err := rec.HandleEvent(c.Request.Context(), event); err != nil {
			log.Errorw("webhook handler error", "type", event.Type, "event_id", event.ID, "err", err)
			// Non-2xx makes Stripe redeliver; no partial commit to undo since
			// each statement stands alone.
			c.JSON(http.StatusInternalServerError, response.Err("Webhook processing failed"))
			return
		}

		c.JSON(http.StatusOK, response.Received{Received: true})
	}
}

func RegisterWebhookRoutes(r gin.IRouter, cfg *cfgpkg.Config, client stripeapi.Client, rec *reconciler.Reconciler, log *zap.SugaredLogger) {
	r.POST("/webhooks/stripe", ApiStripeWebhook(cfg, client, rec, log))
}
