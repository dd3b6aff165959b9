package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mcpfactory/stripe-service/internal/platform/stripeapi"
	"github.com/mcpfactory/stripe-service/pkg/logctx"
	"github.com/mcpfactory/stripe-service/pkg/response"
)

type CreateProductRequest struct {
	ID          string            `json:"id,omitempty"`
	Name        string            `json:"name" binding:"required,min=1"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type RecurringRequest struct {
	Interval      string `json:"interval" binding:"required,oneof=day week month year"`
	IntervalCount int64  `json:"intervalCount,omitempty" binding:"omitempty,gt=0"`
}

type CreatePriceRequest struct {
	ProductID         string            `json:"productId" binding:"required,min=1"`
	UnitAmountInCents int64             `json:"unitAmountInCents" binding:"required,gt=0"`
	Currency          string            `json:"currency,omitempty"`
	Recurring         *RecurringRequest `json:"recurring,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

type CreateCouponRequest struct {
	ID               string            `json:"id,omitempty"`
	Name             string            `json:"name,omitempty"`
	PercentOff       *float64          `json:"percentOff,omitempty" binding:"omitempty,gte=1,lte=100"`
	AmountOffInCents *int64            `json:"amountOffInCents,omitempty" binding:"omitempty,gt=0"`
	Currency         string            `json:"currency,omitempty"`
	Duration         string            `json:"duration,omitempty" binding:"omitempty,oneof=once repeating forever"`
	DurationInMonths int64             `json:"durationInMonths,omitempty" binding:"omitempty,gt=0"`
	MaxRedemptions   int64             `json:"maxRedemptions,omitempty" binding:"omitempty,gt=0"`
	RedeemBy         *time.Time        `json:"redeemBy,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

type productResp struct {
	Success     bool   `json:"success"`
	ProductID   string `json:"productId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type priceResp struct {
	Success           bool   `json:"success"`
	PriceID           string `json:"priceId"`
	ProductID         string `json:"productId"`
	UnitAmountInCents int64  `json:"unitAmountInCents"`
	Currency          string `json:"currency"`
}

type priceListResp struct {
	Success bool        `json:"success"`
	Prices  []priceItem `json:"prices"`
}

type priceItem struct {
	PriceID           string `json:"priceId"`
	ProductID         string `json:"productId"`
	UnitAmountInCents int64  `json:"unitAmountInCents"`
	Currency          string `json:"currency"`
	Active            bool   `json:"active"`
}

type couponResp struct {
	Success          bool     `json:"success"`
	CouponID         string   `json:"couponId"`
	Name             string   `json:"name,omitempty"`
	PercentOff       *float64 `json:"percentOff,omitempty"`
	AmountOffInCents *int64   `json:"amountOffInCents,omitempty"`
	Currency         string   `json:"currency,omitempty"`
	Duration         string   `json:"duration"`
	Valid            bool     `json:"valid"`
}

func toPriceItem(p stripeapi.Price) priceItem {
	return priceItem{
		PriceID:           p.PriceID,
		ProductID:         p.ProductID,
		UnitAmountInCents: p.UnitAmountInCents,
		Currency:          p.Currency,
		Active:            p.Active,
	}
}

func toCouponResp(cp stripeapi.Coupon) couponResp {
	return couponResp{
		Success:          true,
		CouponID:         cp.CouponID,
		Name:             cp.Name,
		PercentOff:       cp.PercentOff,
		AmountOffInCents: cp.AmountOffInCents,
		Currency:         cp.Currency,
		Duration:         cp.Duration,
		Valid:            cp.Valid,
	}
}

// @Summary      Create Product
// @Description  Creates a Stripe Product. A caller-supplied id makes the create idempotent.
// @Tags         Catalog
// @Accept       json
// @Produce      json
// @Param        request body handlers.CreateProductRequest true "Product create request"
// @Success      200  {object}  handlers.productResp
// @Failure      400  {object}  response.ErrorBody
// @Failure      500  {object}  response.ErrorBody
// @Security     ApiKeyAuth
// @Router       /products/create [post]
func ApiCreateProduct(client stripeapi.Client, base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logctx.FromGin(c, base)

		var req CreateProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrDetails("Invalid request", err.Error()))
			return
		}

		p, err := client.CreateProduct(c.Request.Context(), stripeapi.CreateProductParams{
			ID:          req.ID,
			Name:        req.Name,
			Description: req.Description,
			Metadata:    req.Metadata,
		}, "")
		if err != nil {
			log.Errorw("create product failed", "product_id", req.ID, "err", err)
			c.JSON(http.StatusInternalServerError, response.Err(err.Error()))
			return
		}

		c.JSON(http.StatusOK, productResp{
			Success:     true,
			ProductID:   p.ProductID,
			Name:        p.Name,
			Description: p.Description,
		})
	}
}

// @Summary      Get Product
// @Tags         Catalog
// @Produce      json
// @Param        productId path string true "Stripe product id"
// @Success      200  {object}  handlers.productResp
// @Failure      404  {object}  response.ErrorBody
// @Security     ApiKeyAuth
// @Router       /products/{productId} [get]
func ApiGetProduct(client stripeapi.Client, base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logctx.FromGin(c, base)

		p, err := client.GetProduct(c.Request.Context(), c.Param("productId"), "")
		if err != nil {
			if errors.Is(err, stripeapi.ErrNotFound) {
				c.JSON(http.StatusNotFound, response.Err("Product not found"))
				return
			}
			log.Errorw("get product failed", "product_id", c.Param("productId"), "err", err)
			c.JSON(http.StatusInternalServerError, response.Err(err.Error()))
			return
		}

		c.JSON(http.StatusOK, productResp{
			Success:     true,
			ProductID:   p.ProductID,
			Name:        p.Name,
			Description: p.Description,
		})
	}
}

// @Summary      Create Price
// @Tags         Catalog
// @Accept       json
// @Produce      json
// @Param        request body handlers.CreatePriceRequest true "Price create request"
// @Success      200  {object}  handlers.priceResp
// @Failure      400  {object}  response.ErrorBody
// @Failure      500  {object}  response.ErrorBody
// @Security     ApiKeyAuth
// @Router       /prices/create [post]
func ApiCreatePrice(client stripeapi.Client, base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logctx.FromGin(c, base)

		var req CreatePriceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrDetails("Invalid request", err.Error()))
			return
		}

		params := stripeapi.CreatePriceParams{
			ProductID:         req.ProductID,
			UnitAmountInCents: req.UnitAmountInCents,
			Currency:          req.Currency,
			Metadata:          req.Metadata,
		}
		if req.Recurring != nil {
			params.Recurring = &stripeapi.Recurring{
				Interval:      req.Recurring.Interval,
				IntervalCount: req.Recurring.IntervalCount,
			}
		}

		p, err := client.CreatePrice(c.Request.Context(), params, "")
		if err != nil {
			log.Errorw("create price failed", "product_id", req.ProductID, "err", err)
			c.JSON(http.StatusInternalServerError, response.Err(err.Error()))
			return
		}

		c.JSON(http.StatusOK, priceResp{
			Success:           true,
			PriceID:           p.PriceID,
			ProductID:         p.ProductID,
			UnitAmountInCents: p.UnitAmountInCents,
			Currency:          p.Currency,
		})
	}
}

// @Summary      Get Price
// @Tags         Catalog
// @Produce      json
// @Param        priceId path string true "Stripe price id"
// @Success      200  {object}  handlers.priceResp
// @Failure      404  {object}  response.ErrorBody
// @Security     ApiKeyAuth
// @Router       /prices/{priceId} [get]
func ApiGetPrice(client stripeapi.Client, base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logctx.FromGin(c, base)

		p, err := client.GetPrice(c.Request.Context(), c.Param("priceId"), "")
		if err != nil {
			if errors.Is(err, stripeapi.ErrNotFound) {
				c.JSON(http.StatusNotFound, response.Err("Price not found"))
				return
			}
			log.Errorw("get price failed", "price_id", c.Param("priceId"), "err", err)
			c.JSON(http.StatusInternalServerError, response.Err(err.Error()))
			return
		}

		c.JSON(http.StatusOK, priceResp{
			Success:           true,
			PriceID:           p.PriceID,
			ProductID:         p.ProductID,
			UnitAmountInCents: p.UnitAmountInCents,
			Currency:          p.Currency,
		})
	}
}

// @Summary      List Prices by Product
// @Tags         Catalog
// @Produce      json
// @Param        productId path string true "Stripe product id"
// @Success      200  {object}  handlers.priceListResp
// @Security     ApiKeyAuth
// @Router       /prices/by-product/{productId} [get]
func ApiListPricesByProduct(client stripeapi.Client, base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logctx.FromGin(c, base)

		prices, err := client.ListPricesByProduct(c.Request.Context(), c.Param("productId"), "")
		if err != nil {
			log.Errorw("list prices failed", "product_id", c.Param("productId"), "err", err)
			c.JSON(http.StatusInternalServerError, response.Err(err.Error()))
			return
		}

		items := make([]priceItem, 0, len(prices))
		for _, p := range prices {
			items = append(items, toPriceItem(p))
		}
		c.JSON(http.StatusOK, priceListResp{Success: true, Prices: items})
	}
}

// @Summary      Create Coupon
// @Description  Creates a Stripe Coupon. A caller-supplied id makes the create idempotent.
// @Tags         Catalog
// @Accept       json
// @Produce      json
// @Param        request body handlers.CreateCouponRequest true "Coupon create request"
// @Success      200  {object}  handlers.couponResp
// @Failure      400  {object}  response.ErrorBody
// @Failure      500  {object}  response.ErrorBody
// @Security     ApiKeyAuth
// @Router       /coupons/create [post]
func ApiCreateCoupon(client stripeapi.Client, base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logctx.FromGin(c, base)

		var req CreateCouponRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrDetails("Invalid request", err.Error()))
			return
		}
		if req.PercentOff == nil && req.AmountOffInCents == nil {
			c.JSON(http.StatusBadRequest, response.ErrDetails("Invalid request", "either percentOff or amountOffInCents is required"))
			return
		}

		params := stripeapi.CreateCouponParams{
			ID:               req.ID,
			Name:             req.Name,
			PercentOff:       req.PercentOff,
			AmountOffInCents: req.AmountOffInCents,
			Currency:         req.Currency,
			Duration:         req.Duration,
			DurationInMonths: req.DurationInMonths,
			MaxRedemptions:   req.MaxRedemptions,
			Metadata:         req.Metadata,
		}
		if req.RedeemBy != nil {
			params.RedeemBy = req.RedeemBy.Unix()
		}

		cp, err := client.CreateCoupon(c.Request.Context(), params, "")
		if err != nil {
			log.Errorw("create coupon failed", "coupon_id", req.ID, "err", err)
			c.JSON(http.StatusInternalServerError, response.Err(err.Error()))
			return
		}

		c.JSON(http.StatusOK, toCouponResp(cp))
	}
}

// @Summary      Get Coupon
// @Tags         Catalog
// @Produce      json
// @Param        couponId path string true "Stripe coupon id"
// @Success      200  {object}  handlers.couponResp
// @Failure      404  {object}  response.ErrorBody
// @Security     ApiKeyAuth
// @Router       /coupons/{couponId} [get]
func ApiGetCoupon(client stripeapi.Client, base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logctx.FromGin(c, base)

		cp, err := client.GetCoupon(c.Request.Context(), c.Param("couponId"), "")
		if err != nil {
			if errors.Is(err, stripeapi.ErrNotFound) {
				c.JSON(http.StatusNotFound, response.Err("Coupon not found"))
				return
			}
			log.Errorw("get coupon failed", "coupon_id", c.Param("couponId"), "err", err)
			c.JSON(http.StatusInternalServerError, response.Err(err.Error()))
			return
		}

		c.JSON(http.StatusOK, toCouponResp(cp))
	}
}

func RegisterCatalogRoutes(r gin.IRouter, client stripeapi.Client, log *zap.SugaredLogger) {
	r.POST("/products/create", ApiCreateProduct(client, log))
	r.GET("/products/:productId", ApiGetProduct(client, log))
	r.POST("/prices/create", ApiCreatePrice(client, log))
	r.GET("/prices/by-product/:productId", ApiListPricesByProduct(client, log))
	r.GET("/prices/:priceId", ApiGetPrice(client, log))
	r.POST("/coupons/create", ApiCreateCoupon(client, log))
	r.GET("/coupons/:couponId", ApiGetCoupon(client, log))
}
