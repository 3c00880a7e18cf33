package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/docebrew/cupcakeria/internal/domain/shipping"
)

type quoteRequest struct {
	CEP          string          `json:"cep"`
	State        string          `json:"state"`
	DeliveryMode string          `json:"delivery_mode" binding:"required"`
	OrderValue   decimal.Decimal `json:"order_value"`
}

type quoteResponse struct {
	Fee          string `json:"fee"`
	LeadTimeDays int    `json:"lead_time_days"`
	Tier         string `json:"tier"`
	CEP          string `json:"cep,omitempty"`
}

func (s *Server) quoteShipping(c *gin.Context) {
	var req quoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	mode := shipping.DeliveryMode(req.DeliveryMode)
	switch mode {
	case shipping.ModeDelivery, shipping.ModePickup:
	default:
		c.JSON(http.StatusBadRequest, errorResponse{Code: "bad_request", Message: "unknown delivery mode"})
		return
	}

	if mode == shipping.ModeDelivery {
		if !shipping.ValidCEP(req.CEP) {
			c.JSON(http.StatusBadRequest, errorResponse{Code: "invalid_cep", Message: "CEP must have 8 digits"})
			return
		}
		if req.State == "" {
			c.JSON(http.StatusBadRequest, errorResponse{Code: "bad_request", Message: "state is required for delivery"})
			return
		}
	}

	q := s.shipping.Quote(req.State, mode, req.OrderValue)
	resp := quoteResponse{
		Fee:          q.Fee.StringFixed(2),
		LeadTimeDays: q.LeadTimeDays,
		Tier:         string(q.Tier),
	}
	if mode == shipping.ModeDelivery {
		resp.CEP = shipping.FormatCEP(req.CEP)
	}
	c.JSON(http.StatusOK, resp)
}
