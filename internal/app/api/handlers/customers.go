package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mcpfactory/stripe-service/internal/platform/stripeapi"
	"github.com/mcpfactory/stripe-service/pkg/logctx"
	"github.com/mcpfactory/stripe-service/pkg/response"
)

type CreateCustomerRequest struct {
	Email       string            `json:"email,omitempty" binding:"omitempty,email"`
	Name        string            `json:"name,omitempty"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type UpdateCustomerRequest struct {
	Email       *string           `json:"email,omitempty" binding:"omitempty,email"`
	Name        *string           `json:"name,omitempty"`
	Description *string           `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type customerResp struct {
	CustomerID  string            `json:"customerId"`
	Email       string            `json:"email,omitempty"`
	Name        string            `json:"name,omitempty"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type customerListResp struct {
	Customers []customerResp `json:"customers"`
	HasMore   bool           `json:"hasMore"`
}

func toCustomerResp(cu stripeapi.Customer) customerResp {
	return customerResp{
		CustomerID:  cu.CustomerID,
		Email:       cu.Email,
		Name:        cu.Name,
		Description: cu.Description,
		Metadata:    cu.Metadata,
	}
}

// @Summary      Create Customer
// @Tags         Customers
// @Accept       json
// @Produce      json
// @Param        request body handlers.CreateCustomerRequest true "Customer create request"
// @Success      200  {object}  handlers.customerResp
// @Failure      400  {object}  response.ErrorBody
// @Failure      500  {object}  response.ErrorBody
// @Security     ApiKeyAuth
// @Router       /customers [post]
func ApiCreateCustomer(client stripeapi.Client, base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logctx.FromGin(c, base)

		var req CreateCustomerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrDetails("Invalid request", err.Error()))
			return
		}

		cu, err := client.CreateCustomer(c.Request.Context(), stripeapi.CreateCustomerParams{
			Email:       req.Email,
			Name:        req.Name,
			Description: req.Description,
			Metadata:    req.Metadata,
		}, "")
		if err != nil {
			log.Errorw("create customer failed", "err", err)
			c.JSON(http.StatusInternalServerError, response.Err(err.Error()))
			return
		}

		c.JSON(http.StatusOK, toCustomerResp(cu))
	}
}

// @Summary      List Customers
// @Tags         Customers
// @Produce      json
// @Param        email query string false "Filter by exact email"
// @Param        limit query int false "Page size"
// @Success      200  {object}  handlers.customerListResp
// @Security     ApiKeyAuth
// @Router       /customers [get]
func ApiListCustomers(client stripeapi.Client, base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logctx.FromGin(c, base)

		var limit int64
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, response.ErrDetails("Invalid request", "limit must be a positive integer"))
				return
			}
			limit = n
		}

		res, err := client.ListCustomers(c.Request.Context(), stripeapi.ListCustomersParams{
			Email: c.Query("email"),
			Limit: limit,
		}, "")
		if err != nil {
			log.Errorw("list customers failed", "err", err)
			c.JSON(http.StatusInternalServerError, response.Err(err.Error()))
			return
		}

		items := make([]customerResp, 0, len(res.Customers))
		for _, cu := range res.Customers {
			items = append(items, toCustomerResp(cu))
		}
		c.JSON(http.StatusOK, customerListResp{Customers: items, HasMore: res.HasMore})
	}
}

// @Summary      Get Customer
// @Tags         Customers
// @Produce      json
// @Param        id path string true "Stripe customer id"
// @Success      200  {object}  handlers.customerResp
// @Failure      404  {object}  response.ErrorBody
// @Security     ApiKeyAuth
// @Router       /customers/{id} [get]
func ApiGetCustomer(client stripeapi.Client, base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logctx.FromGin(c, base)

		cu, err := client.GetCustomer(c.Request.Context(), c.Param("id"), "")
		if err != nil {
			if errors.Is(err, stripeapi.ErrNotFound) {
				c.JSON(http.StatusNotFound, response.Err("Customer not found"))
				return
			}
			log.Errorw("get customer failed", "customer_id", c.Param("id"), "err", err)
			c.JSON(http.StatusInternalServerError, response.Err(err.Error()))
			return
		}

		c.JSON(http.StatusOK, toCustomerResp(cu))
	}
}

// @Summary      Update Customer
// @Tags         Customers
// @Accept       json
// @Produce      json
// @Param        id path string true "Stripe customer id"
// @Param        request body handlers.UpdateCustomerRequest true "Fields to update"
// @Success      200  {object}  handlers.customerResp
// @Failure      404  {object}  response.ErrorBody
// @Security     ApiKeyAuth
// @Router       /customers/{id} [patch]
func ApiUpdateCustomer(client stripeapi.Client, base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logctx.FromGin(c, base)

		var req UpdateCustomerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrDetails("Invalid request", err.Error()))
			return
		}

		cu, err := client.UpdateCustomer(c.Request.Context(), c.Param("id"), stripeapi.UpdateCustomerParams{
			Email:       req.Email,
			Name:        req.Name,
			Description: req.Description,
			Metadata:    req.Metadata,
		}, "")
		if err != nil {
			if errors.Is(err, stripeapi.ErrNotFound) {
				c.JSON(http.StatusNotFound, response.Err("Customer not found"))
				return
			}
			log.Errorw("update customer failed", "customer_id", c.Param("id"), "err", err)
			c.JSON(http.StatusInternalServerError, response.Err(err.Error()))
			return
		}

		c.JSON(http.StatusOK, toCustomerResp(cu))
	}
}

func RegisterCustomerRoutes(r gin.IRouter, client stripeapi.Client, log *zap.SugaredLogger) {
	r.POST("/customers", ApiCreateCustomer(client, log))
	r.GET("/customers", ApiListCustomers(client, log))
	r.GET("/customers/:id", ApiGetCustomer(client, log))
	r.PATCH("/customers/:id", ApiUpdateCustomer(client, log))
}
