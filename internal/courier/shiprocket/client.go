package shiprocket

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kundan-thakur61/mobilecoverBackend/internal/courier"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/domain"
)

const ProviderName = "shiprocket"

const (
	requestTimeout = 20 * time.Second
	// Shiprocket tokens are valid for 10 days; refresh a day early.
	tokenLifetime = 9 * 24 * time.Hour
)

// Client calls the Shiprocket external API. Auth tokens come from a login
// endpoint and are cached behind a mutex until close to expiry; a 401 on any
// call drops the cached token so the next attempt re-authenticates.
type Client struct {
	baseURL        string
	email          string
	password       string
	pickupLocation string
	httpClient     *http.Client
	logger         *zap.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient creates a Shiprocket HTTP client.
func NewClient(baseURL, email, password, pickupLocation string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		email:          email,
		password:       password,
		pickupLocation: pickupLocation,
		httpClient:     &http.Client{Timeout: requestTimeout},
		logger:         logger,
	}
}

func (c *Client) Name() string { return ProviderName }

func (c *Client) authToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}
	body, err := json.Marshal(map[string]string{"email": c.email, "password": c.password})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/external/auth/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &courier.APIError{Provider: ProviderName, Message: "login failed", Cause: err}
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", &courier.APIError{Provider: ProviderName, StatusCode: resp.StatusCode, Message: "login rejected", Body: string(respBody)}
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil || out.Token == "" {
		return "", &courier.APIError{Provider: ProviderName, StatusCode: resp.StatusCode, Message: "login response missing token", Body: string(respBody)}
	}
	c.token = out.Token
	c.tokenExpiry = time.Now().Add(tokenLifetime)
	return c.token, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

type createOrderResponse struct {
	OrderID    json.Number `json:"order_id"`
	ShipmentID json.Number `json:"shipment_id"`
	Status     string      `json:"status"`
	AWBCode    string      `json:"awb_code"`
	Message    string      `json:"message"`
}

// CreateShipment books an adhoc order. Shiprocket assigns the AWB later via
// AssignCourier, so the result may carry an empty tracking code.
func (c *Client) CreateShipment(ctx context.Context, req courier.CreateShipmentRequest) (*courier.CreateShipmentResult, error) {
	pickup := req.PickupLocation
	if pickup == "" {
		pickup = c.pickupLocation
	}
	items := make([]map[string]interface{}, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, map[string]interface{}{
			"name":          it.Title,
			"sku":           it.SKU,
			"units":         it.Quantity,
			"selling_price": it.Price,
		})
	}
	if len(items) == 0 {
		items = append(items, map[string]interface{}{
			"name": "Custom phone cover", "sku": req.OrderRef, "units": 1, "selling_price": req.Amount,
		})
	}
	paymentMethod := "Prepaid"
	if req.COD {
		paymentMethod = "COD"
	}
	payload := map[string]interface{}{
		"order_id":         req.OrderRef,
		"order_date":       time.Now().Format("2006-01-02 15:04"),
		"pickup_location":  pickup,
		"billing_customer_name": req.CustomerName,
		"billing_last_name":     "",
		"billing_address":  req.Address.Line1,
		"billing_address_2": req.Address.Line2,
		"billing_city":     req.Address.City,
		"billing_pincode":  req.Address.Pincode,
		"billing_state":    req.Address.State,
		"billing_country":  req.Address.Country,
		"billing_email":    req.CustomerEmail,
		"billing_phone":    req.CustomerPhone,
		"shipping_is_billing": true,
		"order_items":      items,
		"payment_method":   paymentMethod,
		"sub_total":        req.Amount,
		"weight":           req.Weight,
	}
	if req.Dimensions != nil {
		payload["length"] = req.Dimensions.Length
		payload["breadth"] = req.Dimensions.Breadth
		payload["height"] = req.Dimensions.Height
	}

	var out createOrderResponse
	if err := c.do(ctx, http.MethodPost, "/v1/external/orders/create/adhoc", payload, &out); err != nil {
		return nil, err
	}
	return &courier.CreateShipmentResult{
		ShipmentID:      out.ShipmentID.String(),
		ProviderOrderID: out.OrderID.String(),
		TrackingCode:    out.AWBCode,
		Status:          out.Status,
	}, nil
}

// AssignCourier requests an AWB for the shipment, optionally pinning a
// specific courier company.
func (c *Client) AssignCourier(ctx context.Context, shipmentID string, courierID int) (*courier.AssignCourierResult, error) {
	payload := map[string]interface{}{"shipment_id": shipmentID}
	if courierID > 0 {
		payload["courier_id"] = courierID
	}
	var out struct {
		Response struct {
			Data struct {
				CourierCompanyID int    `json:"courier_company_id"`
				CourierName      string `json:"courier_name"`
				AWBCode          string `json:"awb_code"`
			} `json:"data"`
		} `json:"response"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/external/courier/assign/awb", payload, &out); err != nil {
		return nil, err
	}
	return &courier.AssignCourierResult{
		CourierID:    out.Response.Data.CourierCompanyID,
		CourierName:  out.Response.Data.CourierName,
		TrackingCode: out.Response.Data.AWBCode,
	}, nil
}

// RequestPickup schedules a pickup for the shipment.
func (c *Client) RequestPickup(ctx context.Context, shipmentID string) error {
	payload := map[string]interface{}{"shipment_id": []string{shipmentID}}
	return c.do(ctx, http.MethodPost, "/v1/external/courier/generate/pickup", payload, nil)
}

// CancelShipment cancels the Shiprocket order backing the shipment.
func (c *Client) CancelShipment(ctx context.Context, shipmentID string) error {
	payload := map[string]interface{}{"ids": []string{shipmentID}}
	return c.do(ctx, http.MethodPost, "/v1/external/orders/cancel", payload, nil)
}

// GenerateLabel produces a label PDF URL covering the given shipments.
func (c *Client) GenerateLabel(ctx context.Context, shipmentIDs []string) (string, error) {
	payload := map[string]interface{}{"shipment_id": shipmentIDs}
	var out struct {
		LabelCreated int    `json:"label_created"`
		LabelURL     string `json:"label_url"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/external/courier/generate/label", payload, &out); err != nil {
		return "", err
	}
	if out.LabelURL == "" {
		return "", &courier.APIError{Provider: ProviderName, StatusCode: http.StatusBadRequest, Message: "label not generated"}
	}
	return out.LabelURL, nil
}

// Track queries tracking activities for an AWB.
func (c *Client) Track(ctx context.Context, trackingCode string) (*courier.TrackingResult, error) {
	var out struct {
		TrackingData struct {
			ShipmentTrack []struct {
				CurrentStatus string `json:"current_status"`
				Destination   string `json:"destination"`
			} `json:"shipment_track"`
			ShipmentTrackActivities []struct {
				Date     string `json:"date"`
				Activity string `json:"activity"`
				Location string `json:"location"`
				Status   string `json:"sr-status-label"`
			} `json:"shipment_track_activities"`
		} `json:"tracking_data"`
	}
	path := "/v1/external/courier/track/awb/" + url.PathEscape(trackingCode)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	if len(out.TrackingData.ShipmentTrack) == 0 {
		return nil, &courier.APIError{Provider: ProviderName, StatusCode: http.StatusNotFound, Message: "no tracking data for " + trackingCode}
	}
	result := &courier.TrackingResult{
		RawStatus: out.TrackingData.ShipmentTrack[0].CurrentStatus,
		Location:  out.TrackingData.ShipmentTrack[0].Destination,
		Timestamp: time.Now(),
	}
	for _, a := range out.TrackingData.ShipmentTrackActivities {
		status := a.Status
		if status == "" {
			status = a.Activity
		}
		result.Events = append(result.Events, domain.TrackingEvent{
			Status:    status,
			Timestamp: parseTime(a.Date),
			Location:  a.Location,
			Note:      a.Activity,
		})
	}
	return result, nil
}

// CheckServiceability lists couriers able to serve the lane.
func (c *Client) CheckServiceability(ctx context.Context, q courier.ServiceabilityQuery) (*courier.ServiceabilityResult, error) {
	cod := "0"
	if q.COD {
		cod = "1"
	}
	params := url.Values{}
	params.Set("pickup_postcode", q.PickupPincode)
	params.Set("delivery_postcode", q.DeliveryPincode)
	params.Set("weight", strconv.FormatFloat(q.Weight, 'f', -1, 64))
	params.Set("cod", cod)
	var out struct {
		Data struct {
			AvailableCourierCompanies []json.RawMessage `json:"available_courier_companies"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/external/courier/serviceability/?"+params.Encode(), nil, &out); err != nil {
		return nil, err
	}
	n := len(out.Data.AvailableCourierCompanies)
	return &courier.ServiceabilityResult{Serviceable: n > 0, AvailableCouriers: n}, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}, out interface{}) error {
	token, err := c.authToken(ctx)
	if err != nil {
		return err
	}
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Shiprocket request failed", zap.String("path", path), zap.Error(err))
		return &courier.APIError{Provider: ProviderName, Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &courier.APIError{Provider: ProviderName, StatusCode: resp.StatusCode, Message: "response read failed", Cause: err}
	}
	if resp.StatusCode == http.StatusUnauthorized {
		c.invalidateToken()
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &courier.APIError{
			Provider:         ProviderName,
			StatusCode:       resp.StatusCode,
			Message:          apiMessage(respBody),
			Body:             string(respBody),
			SuggestedPickups: parsePickupSuggestions(respBody),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &courier.APIError{Provider: ProviderName, StatusCode: resp.StatusCode, Message: "invalid JSON response", Body: string(respBody), Cause: err}
	}
	return nil
}

func apiMessage(body []byte) string {
	var out struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &out) == nil && out.Message != "" {
		return out.Message
	}
	return "request rejected"
}

// parsePickupSuggestions handles the "Wrong Pickup location entered" rejection,
// whose data block lists the account's registered pickup locations.
func parsePickupSuggestions(body []byte) []string {
	var out struct {
		Message string `json:"message"`
		Data    struct {
			Data []struct {
				PickupLocation string `json:"pickup_location"`
			} `json:"data"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil
	}
	if !strings.Contains(strings.ToLower(out.Message), "pickup location") {
		return nil
	}
	var names []string
	for _, d := range out.Data.Data {
		if d.PickupLocation != "" {
			names = append(names, d.PickupLocation)
		}
	}
	return names
}

func parseTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "02-01-2006 15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

var _ courier.Provider = (*Client)(nil)
