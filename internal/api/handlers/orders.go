package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kundan-thakur61/mobilecoverBackend/internal/domain"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/locator"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/service"
)

// HandleCheckout handles POST /api/orders. Creates the pending order and the
// provider-side payment order; capture arrives later by webhook.
func HandleCheckout(orders *service.OrderService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.CheckoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		result, err := orders.Checkout(c.Request.Context(), req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"success": true,
			"data": gin.H{
				"order": orderView(result.Order),
				"payment": gin.H{
					"razorpayOrderId": result.RazorpayOrder.ID,
					"amount":          result.RazorpayOrder.Amount,
					"currency":        result.RazorpayOrder.Currency,
				},
			},
		})
	}
}

// HandleGetOrder handles GET /api/orders/:reference. Accepts any reference
// the locator understands: UUID, prefixed id, payment id or tracking code.
func HandleGetOrder(loc *locator.Locator, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		order, err := loc.Locate(c.Request.Context(), c.Param("reference"))
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": orderView(order)})
	}
}

// HandleGetOrderByID handles GET /admin/orders/:orderType/:id. Direct
// variant-plus-id read, the fallback when an external reference is ambiguous
// and the locator refuses to pick.
func HandleGetOrderByID(orders *service.OrderService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		kind := domain.OrderKind(c.Param("orderType"))
		if !kind.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "orderType must be regular or custom"})
			return
		}
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid order id"})
			return
		}
		order, err := orders.Get(c.Request.Context(), kind, id)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": orderView(order)})
	}
}

// HandleListOrders handles GET /admin/orders?orderType=&limit=&offset=.
func HandleListOrders(orders *service.OrderService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		kind := domain.OrderKind(c.DefaultQuery("orderType", string(domain.OrderKindRegular)))
		if !kind.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "orderType must be regular or custom"})
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

		list, err := orders.List(c.Request.Context(), kind, limit, offset)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		views := make([]gin.H, 0, len(list))
		for _, order := range list {
			views = append(views, orderView(order))
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": views, "count": len(views)})
	}
}

type overrideStatusBody struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}

// HandleOverrideStatus handles POST /admin/orders/:orderType/:id/status.
// The only path allowed to move an order status backwards.
func HandleOverrideStatus(orders *service.OrderService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		kind := domain.OrderKind(c.Param("orderType"))
		if !kind.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "orderType must be regular or custom"})
			return
		}
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid order id"})
			return
		}
		var body overrideStatusBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}

		order, err := orders.OverrideStatus(c.Request.Context(), kind, id, domain.OrderStatus(body.Status), body.Reason)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": orderView(order)})
	}
}

// orderView is the externally visible shape of an order.
func orderView(order domain.Order) gin.H {
	core := order.Core()
	view := gin.H{
		"id":            core.ID,
		"reference":     locator.ProviderRef(order),
		"orderKind":     order.Kind(),
		"status":        core.Status,
		"customerName":  core.CustomerName,
		"customerPhone": core.CustomerPhone,
		"customerEmail": core.CustomerEmail,
		"address":       core.Address,
		"amount":        core.Amount,
		"payment": gin.H{
			"providerOrderId":   core.Payment.ProviderOrderID,
			"providerPaymentId": core.Payment.ProviderPaymentID,
			"status":            core.Payment.Status,
			"paidAt":            core.Payment.PaidAt,
		},
		"createdAt": core.CreatedAt,
		"updatedAt": core.UpdatedAt,
	}
	if core.RefundStatus != "" && core.RefundStatus != domain.RefundStatusNone {
		view["refundAmount"] = core.RefundAmount
		view["refundStatus"] = core.RefundStatus
	}
	if sh := core.Shipment; sh != nil {
		view["shipment"] = gin.H{
			"provider":        sh.Provider,
			"shipmentId":      sh.ProviderShipmentID,
			"trackingCode":    sh.TrackingCode,
			"courierName":     sh.CourierName,
			"status":          sh.Status,
			"trackingHistory": sh.TrackingHistory,
			"lastSyncedAt":    sh.LastSyncedAt,
			"deliveredAt":     sh.DeliveredAt,
			"cancelledAt":     sh.CancelledAt,
		}
	}
	switch o := order.(type) {
	case *domain.RegularOrder:
		view["items"] = o.Items
	case *domain.CustomOrder:
		view["design"] = o.Design
	}
	return view
}
