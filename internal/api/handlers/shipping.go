package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kundan-thakur61/mobilecoverBackend/internal/courier"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/domain"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/locator"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/service"
)

type createShipmentBody struct {
	OrderID        uuid.UUID           `json:"orderId" binding:"required"`
	OrderType      string              `json:"orderType" binding:"required"`
	PickupLocation string              `json:"pickupLocationId"`
	Weight         float64             `json:"weight"`
	Dimensions     *courier.Dimensions `json:"dimensions"`
	COD            bool                `json:"cod"`
}

// HandleCreateShipment handles POST /api/shipping/create-shipment.
func HandleCreateShipment(shipments *service.ShipmentService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body createShipmentBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		kind := domain.OrderKind(body.OrderType)
		if !kind.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "orderType must be regular or custom"})
			return
		}

		result, err := shipments.CreateShipment(c.Request.Context(), kind, body.OrderID, service.CreateShipmentOptions{
			PickupLocation: body.PickupLocation,
			Weight:         body.Weight,
			Dimensions:     body.Dimensions,
			COD:            body.COD,
		})
		if err != nil {
			respondError(c, logger, err)
			return
		}
		status := http.StatusOK
		if result.Created {
			status = http.StatusCreated
		}
		c.JSON(status, gin.H{
			"success": true,
			"data": gin.H{
				"shipmentId":      result.Shipment.ProviderShipmentID,
				"trackingCode":    result.Shipment.TrackingCode,
				"providerOrderId": result.Shipment.ProviderOrderID,
				"status":          result.Shipment.Status,
				"created":         result.Created,
			},
		})
	}
}

type shipmentActionBody struct {
	OrderID   uuid.UUID `json:"orderId" binding:"required"`
	OrderType string    `json:"orderType" binding:"required"`
	CourierID int       `json:"courierId"`
}

// HandleAssignCourier handles POST /api/shipping/assign-courier.
func HandleAssignCourier(shipments *service.ShipmentService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, ok := bindShipmentAction(c)
		if !ok {
			return
		}
		shipment, err := shipments.AssignCourier(c.Request.Context(), domain.OrderKind(body.OrderType), body.OrderID, body.CourierID)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data": gin.H{
				"courierId":    shipment.CourierID,
				"courierName":  shipment.CourierName,
				"trackingCode": shipment.TrackingCode,
			},
		})
	}
}

// HandleRequestPickup handles POST /api/shipping/request-pickup.
func HandleRequestPickup(shipments *service.ShipmentService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, ok := bindShipmentAction(c)
		if !ok {
			return
		}
		if err := shipments.RequestPickup(c.Request.Context(), domain.OrderKind(body.OrderType), body.OrderID); err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "pickup requested"})
	}
}

// HandleCancelShipment handles POST /api/shipping/cancel-shipment.
func HandleCancelShipment(shipments *service.ShipmentService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, ok := bindShipmentAction(c)
		if !ok {
			return
		}
		if err := shipments.CancelShipment(c.Request.Context(), domain.OrderKind(body.OrderType), body.OrderID); err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "shipment cancelled"})
	}
}

func bindShipmentAction(c *gin.Context) (*shipmentActionBody, bool) {
	var body shipmentActionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return nil, false
	}
	if !domain.OrderKind(body.OrderType).IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "orderType must be regular or custom"})
		return nil, false
	}
	return &body, true
}

type generateLabelsBody struct {
	Orders []service.OrderRef `json:"orders" binding:"required"`
}

// HandleGenerateLabels handles POST /api/shipping/generate-labels. Batch with
// per-order outcomes; the response is 200 even when some orders fail.
func HandleGenerateLabels(shipments *service.ShipmentService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body generateLabelsBody
		if err := c.ShouldBindJSON(&body); err != nil || len(body.Orders) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "orders list required"})
			return
		}
		results := shipments.GenerateLabels(c.Request.Context(), body.Orders)
		c.JSON(http.StatusOK, gin.H{"success": true, "data": results})
	}
}

// HandleTrack handles GET /api/shipping/track/:identifier. The read triggers
// a provider refresh; when that fails the last persisted state comes back
// with stale=true instead of an error.
func HandleTrack(loc *locator.Locator, sync *service.TrackingSync, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		identifier := c.Param("identifier")
		order, err := loc.Locate(c.Request.Context(), identifier)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		result, err := sync.SyncOrder(c.Request.Context(), order)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		core := result.Order.Core()
		sh := core.Shipment
		data := gin.H{
			"orderId":   core.ID,
			"orderKind": result.Order.Kind(),
			"status":    core.Status,
			"stale":     result.Stale,
		}
		if sh != nil {
			data["trackingCode"] = sh.TrackingCode
			data["shipmentStatus"] = sh.Status
			data["trackingHistory"] = sh.TrackingHistory
			if n := len(sh.TrackingHistory); n > 0 {
				last := sh.TrackingHistory[n-1]
				data["location"] = last.Location
				data["dateTime"] = last.Timestamp
			}
			if sh.DeliveredAt != nil {
				data["deliveredAt"] = sh.DeliveredAt
			}
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
	}
}

// HandleCheckServiceability handles GET /api/shipping/check-serviceability.
func HandleCheckServiceability(shipments *service.ShipmentService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		weight, _ := strconv.ParseFloat(c.Query("weight"), 64)
		cod, _ := strconv.ParseBool(c.Query("cod"))
		q := courier.ServiceabilityQuery{
			PickupPincode:   c.Query("pickupPincode"),
			DeliveryPincode: c.Query("deliveryPincode"),
			Weight:          weight,
			COD:             cod,
		}
		if q.PickupPincode == "" || q.DeliveryPincode == "" {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "pickupPincode and deliveryPincode are required"})
			return
		}
		result, err := shipments.CheckServiceability(c.Request.Context(), q)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data": gin.H{
				"serviceable":       result.Serviceable,
				"availableCouriers": result.AvailableCouriers,
			},
		})
	}
}
