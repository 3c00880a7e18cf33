package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docebrew/cupcakeria/internal/domain/cart"
)

type cartLineView struct {
	ID          string `json:"id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	UnitPrice   string `json:"unit_price"`
	Quantity    int    `json:"quantity"`
	Subtotal    string `json:"subtotal"`
}

type cartView struct {
	Items     []cartLineView `json:"items"`
	Subtotal  string         `json:"subtotal"`
	ItemCount int            `json:"item_count"`

	Totals *cartTotalsView `json:"totals,omitempty"`
}

// cartTotalsView previews checkout math when the cart is fetched with a
// coupon code.
type cartTotalsView struct {
	Subtotal     string `json:"subtotal"`
	Discount     string `json:"discount"`
	Total        string `json:"total"`
	CouponValid  bool   `json:"coupon_valid"`
	CouponReason string `json:"coupon_reason,omitempty"`
}

func toCartView(v *cart.View) cartView {
	items := make([]cartLineView, 0, len(v.Lines))
	for _, l := range v.Lines {
		items = append(items, cartLineView{
			ID:          l.ID,
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			UnitPrice:   l.UnitPrice.StringFixed(2),
			Quantity:    l.Quantity,
			Subtotal:    l.Subtotal.StringFixed(2),
		})
	}
	return cartView{
		Items:     items,
		Subtotal:  v.Subtotal.StringFixed(2),
		ItemCount: v.ItemCount,
	}
}

func (s *Server) getCart(c *gin.Context) {
	v, err := s.carts.Get(c.Request.Context(), currentCustomer(c).ID)
	if err != nil {
		s.writeError(c, err)
		return
	}

	out := toCartView(v)
	if code := c.Query("coupon"); code != "" {
		validation, err := s.coupons.Validate(c.Request.Context(), code, v.Subtotal)
		if err != nil {
			s.writeError(c, err)
			return
		}
		totals := v.Totals(validation.Discount)
		out.Totals = &cartTotalsView{
			Subtotal:     totals.Subtotal.StringFixed(2),
			Discount:     totals.Discount.StringFixed(2),
			Total:        totals.Total.StringFixed(2),
			CouponValid:  validation.Valid,
			CouponReason: validation.Reason,
		}
	}
	c.JSON(http.StatusOK, out)
}

type addItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

func (s *Server) addCartItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	v, err := s.carts.AddItem(c.Request.Context(), currentCustomer(c).ID, req.ProductID, req.Quantity)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCartView(v))
}

type updateItemRequest struct {
	Quantity int `json:"quantity" binding:"required"`
}

func (s *Server) updateCartItem(c *gin.Context) {
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	v, err := s.carts.UpdateQuantity(c.Request.Context(), currentCustomer(c).ID, c.Param("id"), req.Quantity)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCartView(v))
}

func (s *Server) removeCartItem(c *gin.Context) {
	v, err := s.carts.RemoveItem(c.Request.Context(), currentCustomer(c).ID, c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCartView(v))
}

func (s *Server) clearCart(c *gin.Context) {
	if err := s.carts.Clear(c.Request.Context(), currentCustomer(c).ID); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
