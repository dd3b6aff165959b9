package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mcpfactory/stripe-service/internal/app/service/payment"
	"github.com/mcpfactory/stripe-service/internal/models"
	"github.com/mcpfactory/stripe-service/pkg/logctx"
	"github.com/mcpfactory/stripe-service/pkg/response"
)

type statusEvents struct {
	Successes []models.PaymentSuccess `json:"successes"`
	Failures  []models.PaymentFailure `json:"failures"`
	Refunds   []models.Refund         `json:"refunds"`
	Disputes  []models.Dispute        `json:"disputes"`
}

type statusResp struct {
	Payment *models.Payment `json:"payment"`
	Events  statusEvents    `json:"events"`
}

type paymentListResp struct {
	Payments []models.Payment `json:"payments"`
}

// @Summary      Payment Status
// @Description  Returns the payment record and every reconciled processor event tied to its payment intent.
// @Tags         Status
// @Produce      json
// @Param        paymentId path string true "Local payment id"
// @Success      200  {object}  handlers.statusResp
// @Failure      404  {object}  response.ErrorBody
// @Security     ApiKeyAuth
// @Router       /status/{paymentId} [get]
func ApiPaymentStatus(svc *payment.Service, base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logctx.FromGin(c, base)

		res, err := svc.GetStatus(c.Request.Context(), c.Param("paymentId"))
		if err != nil {
			if errors.Is(err, payment.ErrPaymentNotFound) {
				c.JSON(http.StatusNotFound, response.Err("Payment not found"))
				return
			}
			log.Errorw("status lookup failed", "payment_id", c.Param("paymentId"), "err", err)
			c.JSON(http.StatusInternalServerError, response.Err(err.Error()))
			return
		}

		c.JSON(http.StatusOK, statusResp{
			Payment: res.Payment,
			Events: statusEvents{
				Successes: res.Successes,
				Failures:  res.Failures,
				Refunds:   res.Refunds,
				Disputes:  res.Disputes,
			},
		})
	}
}

// @Summary      Payments by Organization
// @Tags         Status
// @Produce      json
// @Param        orgId path string true "Organization id"
// @Success      200  {object}  handlers.paymentListResp
// @Security     ApiKeyAuth
// @Router       /status/by-org/{orgId} [get]
func ApiPaymentsByOrg(svc *payment.Service, base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logctx.FromGin(c, base)

		payments, err := svc.ListByOrg(c.Request.Context(), c.Param("orgId"))
		if err != nil {
			log.Errorw("status by-org failed", "org_id", c.Param("orgId"), "err", err)
			c.JSON(http.StatusInternalServerError, response.Err(err.Error()))
			return
		}

		c.JSON(http.StatusOK, paymentListResp{Payments: payments})
	}
}

// @Summary      Payments by Run
// @Tags         Status
// @Produce      json
// @Param        runId path string true "Run id"
// @Success      200  {object}  handlers.paymentListResp
// @Security     ApiKeyAuth
// @Router       /status/by-run/{runId} [get]
func ApiPaymentsByRun(svc *payment.Service, base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logctx.FromGin(c, base)

		payments, err := svc.ListByRun(c.Request.Context(), c.Param("runId"))
		if err != nil {
			log.Errorw("status by-run failed", "run_id", c.Param("runId"), "err", err)
			c.JSON(http.StatusInternalServerError, response.Err(err.Error()))
			return
		}

		c.JSON(http.StatusOK, paymentListResp{Payments: payments})
	}
}

// @Summary      Payment Stats
// @Description  Aggregates payment totals and reconciled event counts over the supplied filters.
// @Tags         Status
// @Accept       json
// @Produce      json
// @Param        request body payment.StatsFilter true "Stats filters, all optional"
// @Success      200  {object}  payment.StatsResult
// @Failure      400  {object}  response.ErrorBody
// @Security     ApiKeyAuth
// @Router       /stats [post]
func ApiPaymentStats(svc *payment.Service, base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logctx.FromGin(c, base)

		var filter payment.StatsFilter
		if err := c.ShouldBindJSON(&filter); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrDetails("Invalid request", err.Error()))
			return
		}

		res, err := svc.Stats(c.Request.Context(), &filter)
		if err != nil {
			log.Errorw("stats query failed", "err", err)
			c.JSON(http.StatusInternalServerError, response.Err(err.Error()))
			return
		}

		c.JSON(http.StatusOK, res)
	}
}

func RegisterStatusRoutes(r gin.IRouter, svc *payment.Service, log *zap.SugaredLogger) {
	r.GET("/status/by-org/:orgId", ApiPaymentsByOrg(svc, log))
	r.GET("/status/by-run/:runId", ApiPaymentsByRun(svc, log))
	r.GET("/status/:paymentId", ApiPaymentStatus(svc, log))
	r.POST("/stats", ApiPaymentStats(svc, log))
}
