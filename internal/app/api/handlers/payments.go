package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mcpfactory/stripe-service/internal/app/service/payment"
	"github.com/mcpfactory/stripe-service/pkg/logctx"
	"github.com/mcpfactory/stripe-service/pkg/response"
)

type createCheckoutResp struct {
	Success   bool   `json:"success"`
	PaymentID string `json:"paymentId"`
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

type createIntentResp struct {
	Success         bool   `json:"success"`
	PaymentID       string `json:"paymentId"`
	PaymentIntentID string `json:"paymentIntentId"`
	ClientSecret    string `json:"clientSecret"`
	Status          string `json:"status"`
}

// @Summary      Create Checkout Session
// @Description  Creates a Stripe Checkout Session and a local payment record tracking it.
// @Tags         Payments
// @Accept       json
// @Produce      json
// @Param        request body payment.CreateCheckoutRequest true "Checkout session request"
// @Success      200  {object}  handlers.createCheckoutResp
// @Failure      400  {object}  response.ErrorBody
// @Failure      500  {object}  response.ErrorBody
// @Security     ApiKeyAuth
// @Router       /checkout/create [post]
func ApiCreateCheckout(svc *payment.Service, base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logctx.FromGin(c, base)

		var req payment.CreateCheckoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrDetails("Invalid request", err.Error()))
			return
		}

		res, err := svc.CreateCheckout(c.Request.Context(), &req)
		if err != nil {
			log.Errorw("create checkout failed", "org_id", req.OrgID, "err", err)
			c.JSON(http.StatusInternalServerError, checkoutErrorBody(err))
			return
		}

		c.JSON(http.StatusOK, createCheckoutResp{
			Success:   true,
			PaymentID: res.PaymentID,
			SessionID: res.SessionID,
			URL:       res.URL,
		})
	}
}

// @Summary      Create Payment Intent
// @Description  Creates a Stripe PaymentIntent and a local payment record tracking it.
// @Tags         Payments
// @Accept       json
// @Produce      json
// @Param        request body payment.CreateIntentRequest true "Payment intent request"
// @Success      200  {object}  handlers.createIntentResp
// @Failure      400  {object}  response.ErrorBody
// @Failure      500  {object}  response.ErrorBody
// @Security     ApiKeyAuth
// @Router       /payment-intent/create [post]
func ApiCreatePaymentIntent(svc *payment.Service, base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logctx.FromGin(c, base)

		var req payment.CreateIntentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrDetails("Invalid request", err.Error()))
			return
		}

		res, err := svc.CreateIntent(c.Request.Context(), &req)
		if err != nil {
			log.Errorw("create payment intent failed", "org_id", req.OrgID, "err", err)
			c.JSON(http.StatusInternalServerError, checkoutErrorBody(err))
			return
		}

		c.JSON(http.StatusOK, createIntentResp{
			Success:         true,
			PaymentID:       res.PaymentID,
			PaymentIntentID: res.PaymentIntentID,
			ClientSecret:    res.ClientSecret,
			Status:          res.Status,
		})
	}
}

// checkoutErrorBody keeps upstream failure causes distinguishable for callers.
func checkoutErrorBody(err error) response.ErrorBody {
	switch {
	case errors.Is(err, payment.ErrKeyResolution):
		return response.Err("Failed to resolve Stripe key from key-service")
	case errors.Is(err, payment.ErrRunCreation):
		return response.Err("Failed to create run in runs-service")
	default:
		return response.ErrDetails("Failed to create payment", err.Error())
	}
}

func RegisterPaymentRoutes(r gin.IRouter, svc *payment.Service, log *zap.SugaredLogger) {
	r.POST("/checkout/create", ApiCreateCheckout(svc, log))
	r.POST("/payment-intent/create", ApiCreatePaymentIntent(svc, log))
}
