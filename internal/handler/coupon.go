package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type couponView struct {
	Code          string    `json:"code"`
	Description   string    `json:"description,omitempty"`
	Kind          string    `json:"kind"`
	Value         string    `json:"value"`
	MinOrderValue string    `json:"min_order_value"`
	EndsAt        time.Time `json:"ends_at"`
}

func (s *Server) listCoupons(c *gin.Context) {
	coupons, err := s.coupons.ListActive(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}

	views := make([]couponView, 0, len(coupons))
	for _, cp := range coupons {
		views = append(views, couponView{
			Code:          cp.Code,
			Description:   cp.Description,
			Kind:          string(cp.Kind),
			Value:         cp.Value.StringFixed(2),
			MinOrderValue: cp.MinOrderValue.StringFixed(2),
			EndsAt:        cp.EndsAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"coupons": views})
}

type validateCouponRequest struct {
	Code       string          `json:"code" binding:"required"`
	OrderValue decimal.Decimal `json:"order_value" binding:"required"`
}

type validateCouponResponse struct {
	Valid    bool   `json:"valid"`
	Reason   string `json:"reason,omitempty"`
	Discount string `json:"discount"`
}

func (s *Server) validateCoupon(c *gin.Context) {
	var req validateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	v, err := s.coupons.Validate(c.Request.Context(), req.Code, req.OrderValue)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, validateCouponResponse{
		Valid:    v.Valid,
		Reason:   v.Reason,
		Discount: v.Discount.StringFixed(2),
	})
}
