package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/docebrew/cupcakeria/internal/domain/order"
	"github.com/docebrew/cupcakeria/internal/domain/payment"
	"github.com/docebrew/cupcakeria/internal/domain/shipping"
)

type addressRequest struct {
	CEP        string `json:"cep"`
	Street     string `json:"street"`
	Number     string `json:"number"`
	Complement string `json:"complement"`
	District   string `json:"district"`
	City       string `json:"city"`
	State      string `json:"state"`
}

type checkoutRequest struct {
	DeliveryMode  string           `json:"delivery_mode" binding:"required"`
	CustomerName  string           `json:"customer_name"`
	CustomerEmail string           `json:"customer_email"`
	CustomerPhone string           `json:"customer_phone"`
	Address       addressRequest   `json:"address"`
	CouponCode    string           `json:"coupon_code"`
	PaymentMethod string           `json:"payment_method" binding:"required"`
	PaidAmount    *decimal.Decimal `json:"paid_amount"`
	Notes         string           `json:"notes"`
}

type orderLineView struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Subtotal  string `json:"subtotal"`
}

type paymentView struct {
	Method        string `json:"method"`
	Status        string `json:"status"`
	Amount        string `json:"amount"`
	PaidAmount    string `json:"paid_amount,omitempty"`
	Change        string `json:"change,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
}

type orderView struct {
	Number       string          `json:"number"`
	Status       string          `json:"status"`
	DeliveryMode string          `json:"delivery_mode"`
	Subtotal     string          `json:"subtotal"`
	Discount     string          `json:"discount"`
	ShippingFee  string          `json:"shipping_fee"`
	Total        string          `json:"total"`
	CouponCode   string          `json:"coupon_code,omitempty"`
	Notes        string          `json:"notes,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	Items        []orderLineView `json:"items,omitempty"`
	Payment      *paymentView    `json:"payment,omitempty"`
}

func toOrderView(o *order.Order, lines []order.Line, pay *payment.Payment) orderView {
	v := orderView{
		Number:       o.Number,
		Status:       string(o.Status),
		DeliveryMode: string(o.DeliveryMode),
		Subtotal:     o.Subtotal.StringFixed(2),
		Discount:     o.Discount.StringFixed(2),
		ShippingFee:  o.ShippingFee.StringFixed(2),
		Total:        o.Total.StringFixed(2),
		CouponCode:   o.CouponCode,
		Notes:        o.Notes,
		CreatedAt:    o.CreatedAt,
	}
	for _, l := range lines {
		v.Items = append(v.Items, orderLineView{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice.StringFixed(2),
			Subtotal:  l.Subtotal.StringFixed(2),
		})
	}
	if pay != nil {
		pv := &paymentView{
			Method:        string(pay.Method),
			Status:        string(pay.Status),
			Amount:        pay.Amount.StringFixed(2),
			TransactionID: pay.TransactionID,
		}
		if pay.PaidAmount != nil {
			pv.PaidAmount = pay.PaidAmount.StringFixed(2)
		}
		if pay.Change != nil {
			pv.Change = pay.Change.StringFixed(2)
		}
		v.Payment = pv
	}
	return v
}

func (s *Server) checkout(c *gin.Context) {
	var req checkoutRequest
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

	method := payment.Method(req.PaymentMethod)
	if !method.Valid() {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "bad_request", Message: "unknown payment method"})
		return
	}
	if method == payment.MethodCash && req.PaidAmount == nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "bad_request", Message: "paid_amount is required for cash payment"})
		return
	}

	if mode == shipping.ModeDelivery {
		if !shipping.ValidCEP(req.Address.CEP) {
			c.JSON(http.StatusBadRequest, errorResponse{Code: "invalid_cep", Message: "CEP must have 8 digits"})
			return
		}
		if req.Address.Street == "" || req.Address.City == "" || req.Address.State == "" {
			c.JSON(http.StatusBadRequest, errorResponse{Code: "bad_request", Message: "street, city and state are required for delivery"})
			return
		}
	}

	customer := currentCustomer(c)
	input := order.PlaceInput{
		DeliveryMode:  mode,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
		Address: order.Address{
			CEP:        shipping.FormatCEP(req.Address.CEP),
			Street:     req.Address.Street,
			Number:     req.Address.Number,
			Complement: req.Address.Complement,
			District:   req.Address.District,
			City:       req.Address.City,
			State:      req.Address.State,
		},
		CouponCode:    req.CouponCode,
		PaymentMethod: method,
		PaidAmount:    req.PaidAmount,
		Notes:         req.Notes,
	}
	if input.CustomerName == "" {
		input.CustomerName = customer.Name
	}
	if input.CustomerEmail == "" {
		input.CustomerEmail = customer.Email
	}
	if input.CustomerPhone == "" {
		input.CustomerPhone = customer.Phone
	}

	result, err := s.orders.Place(c.Request.Context(), customer.ID, input)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toOrderView(result.Order, result.Lines, result.Payment))
}

func (s *Server) listOrders(c *gin.Context) {
	filter := order.ListFilter{
		CustomerID: currentCustomer(c).ID,
		Status:     order.Status(c.Query("status")),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "bad_request", Message: "unknown order status"})
		return
	}

	orders, err := s.orders.List(c.Request.Context(), filter)
	if err != nil {
		s.writeError(c, err)
		return
	}

	views := make([]orderView, 0, len(orders))
	for i := range orders {
		views = append(views, toOrderView(&orders[i], nil, nil))
	}
	c.JSON(http.StatusOK, gin.H{"orders": views})
}

func (s *Server) getOrder(c *gin.Context) {
	result, err := s.orders.Get(c.Request.Context(), currentCustomer(c).ID, c.Param("number"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderView(result.Order, result.Lines, result.Payment))
}

func (s *Server) cancelOrder(c *gin.Context) {
	o, err := s.orders.Cancel(c.Request.Context(), currentCustomer(c).ID, c.Param("number"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderView(o, nil, nil))
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (s *Server) updateOrderStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	o, err := s.orders.UpdateStatus(c.Request.Context(), c.Param("number"), order.Status(req.Status))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderView(o, nil, nil))
}

func (s *Server) orderStats(c *gin.Context) {
	var from, to *time.Time
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Code: "bad_request", Message: "from must be RFC3339"})
			return
		}
		from = &t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Code: "bad_request", Message: "to must be RFC3339"})
			return
		}
		to = &t
	}

	stats, err := s.orders.Stats(c.Request.Context(), from, to)
	if err != nil {
		s.writeError(c, err)
		return
	}

	byStatus := make(map[string]int, len(stats.ByStatus))
	for st, n := range stats.ByStatus {
		byStatus[string(st)] = n
	}
	c.JSON(http.StatusOK, gin.H{
		"total_orders":   stats.TotalOrders,
		"gross_revenue":  stats.GrossRevenue.StringFixed(2),
		"average_ticket": stats.AverageTicket.StringFixed(2),
		"by_status":      byStatus,
	})
}
