// Package handler exposes the storefront over HTTP. It is thin plumbing:
// requests are bound and validated, domain services do the work, and domain
// errors are mapped to status codes here and nowhere else.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/docebrew/cupcakeria/internal/domain/auth"
	"github.com/docebrew/cupcakeria/internal/domain/cart"
	"github.com/docebrew/cupcakeria/internal/domain/coupon"
	"github.com/docebrew/cupcakeria/internal/domain/order"
	"github.com/docebrew/cupcakeria/internal/domain/product"
	"github.com/docebrew/cupcakeria/internal/domain/shipping"
)

// Server holds the domain services behind the HTTP surface.
type Server struct {
	products product.Repository
	carts    *cart.Service
	coupons  *coupon.Engine
	shipping *shipping.Calculator
	orders   *order.Service
	verifier *auth.Verifier
	lg       *zap.Logger
}

// NewServer wires the domain services into an HTTP server.
func NewServer(
	products product.Repository,
	carts *cart.Service,
	coupons *coupon.Engine,
	calc *shipping.Calculator,
	orders *order.Service,
	verifier *auth.Verifier,
	lg *zap.Logger,
) *Server {
	return &Server{
		products: products,
		carts:    carts,
		coupons:  coupons,
		shipping: calc,
		orders:   orders,
		verifier: verifier,
		lg:       lg,
	}
}

// Routes registers the API routes. Catalog, coupon validation, and shipping
// quotes are public; cart and order routes require an API key.
func (s *Server) Routes(r *gin.Engine) {
	api := r.Group("/api")

	api.GET("/products", s.listProducts)
	api.GET("/products/:slug", s.getProduct)
	api.GET("/categories", s.listCategories)

	api.GET("/coupons", s.listCoupons)
	api.POST("/coupons/validate", s.validateCoupon)

	api.POST("/shipping/quote", s.quoteShipping)

	authed := api.Group("", s.requireAPIKey())
	authed.GET("/cart", s.getCart)
	authed.POST("/cart/items", s.addCartItem)
	authed.PATCH("/cart/items/:id", s.updateCartItem)
	authed.DELETE("/cart/items/:id", s.removeCartItem)
	authed.DELETE("/cart", s.clearCart)

	authed.POST("/checkout", s.checkout)
	authed.GET("/orders", s.listOrders)
	authed.GET("/orders/stats", s.orderStats)
	authed.GET("/orders/:number", s.getOrder)
	authed.POST("/orders/:number/cancel", s.cancelOrder)
	authed.PATCH("/orders/:number/status", s.updateOrderStatus)
}

type errorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// writeError maps domain errors to HTTP responses. Unexpected errors are
// logged with detail and answered with a generic message.
func (s *Server) writeError(c *gin.Context, err error) {
	var (
		unavailable   *cart.UnavailableError
		insufficient  *cart.InsufficientStockError
		stockConflict *order.StockConflictError
		badOrderMove  *order.InvalidTransitionError
	)

	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Code: "unauthorized", Message: "invalid API key"})
	case errors.Is(err, product.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Code: "product_not_found", Message: "product not found"})
	case errors.Is(err, order.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Code: "order_not_found", Message: "order not found"})
	case errors.Is(err, cart.ErrLineNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Code: "cart_item_not_found", Message: "item not found in cart"})
	case errors.Is(err, cart.ErrEmpty):
		c.JSON(http.StatusUnprocessableEntity, errorResponse{Code: "cart_empty", Message: "cart is empty"})
	case errors.As(err, &unavailable):
		c.JSON(http.StatusUnprocessableEntity, errorResponse{Code: "product_unavailable", Message: unavailable.Error()})
	case errors.As(err, &insufficient):
		c.JSON(http.StatusUnprocessableEntity, errorResponse{Code: "insufficient_stock", Message: insufficient.Error()})
	case errors.As(err, &stockConflict):
		c.JSON(http.StatusConflict, errorResponse{Code: "stock_conflict", Message: stockConflict.Error()})
	case errors.Is(err, coupon.ErrExhausted):
		c.JSON(http.StatusConflict, errorResponse{Code: "coupon_exhausted", Message: "coupon usage limit reached"})
	case errors.Is(err, order.ErrCannotCancel):
		c.JSON(http.StatusConflict, errorResponse{Code: "cannot_cancel", Message: "order can no longer be cancelled"})
	case errors.As(err, &badOrderMove):
		c.JSON(http.StatusUnprocessableEntity, errorResponse{Code: "invalid_status", Message: badOrderMove.Error()})
	default:
		s.lg.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "internal", Message: "could not complete the request"})
	}
}

// bindError answers a failed request binding. Validation failures are broken
// out per field; anything else (malformed JSON, wrong types) keeps the
// decoder's message.
func bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			details[fe.Field()] = fieldMessage(fe)
		}
		c.JSON(http.StatusBadRequest, errorResponse{
			Code:    "validation_failed",
			Message: "request validation failed",
			Details: details,
		})
		return
	}
	c.JSON(http.StatusBadRequest, errorResponse{Code: "bad_request", Message: err.Error()})
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	default:
		return "failed " + fe.Tag() + " validation"
	}
}
