package delhivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kundan-thakur61/mobilecoverBackend/internal/courier"
	"github.com/kundan-thakur61/mobilecoverBackend/internal/domain"
)

const ProviderName = "delhivery"

const requestTimeout = 20 * time.Second

// Client calls the Delhivery One API with a token key.
type Client struct {
	baseURL        string
	apiKey         string
	pickupLocation string
	httpClient     *http.Client
	logger         *zap.Logger
}

// NewClient creates a Delhivery HTTP client.
func NewClient(baseURL, apiKey, pickupLocation string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		apiKey:         apiKey,
		pickupLocation: pickupLocation,
		httpClient:     &http.Client{Timeout: requestTimeout},
		logger:         logger,
	}
}

func (c *Client) Name() string { return ProviderName }

type createPackage struct {
	Waybill string   `json:"waybill"`
	RefNum  string   `json:"refnum"`
	Status  string   `json:"status"`
	Remarks []string `json:"remarks"`
}

type createResponse struct {
	Success  bool            `json:"success"`
	Packages []createPackage `json:"packages"`
	Error    json.RawMessage `json:"error"`
}

// CreateShipment books a parcel via /api/cmu/create.json. Delhivery assigns
// the waybill at creation time.
func (c *Client) CreateShipment(ctx context.Context, req courier.CreateShipmentRequest) (*courier.CreateShipmentResult, error) {
	pickup := req.PickupLocation
	if pickup == "" {
		pickup = c.pickupLocation
	}
	paymentMode := "Prepaid"
	if req.COD {
		paymentMode = "COD"
	}
	shipment := map[string]interface{}{
		"name":          req.CustomerName,
		"add":           req.Address.Line1,
		"city":          req.Address.City,
		"state":         req.Address.State,
		"pin":           req.Address.Pincode,
		"country":       req.Address.Country,
		"phone":         req.CustomerPhone,
		"order":         req.OrderRef,
		"payment_mode":  paymentMode,
		"total_amount":  req.Amount,
		"weight":        req.Weight,
		"quantity":      len(req.Items),
	}
	if req.Dimensions != nil {
		shipment["shipment_length"] = req.Dimensions.Length
		shipment["shipment_width"] = req.Dimensions.Breadth
		shipment["shipment_height"] = req.Dimensions.Height
	}
	data, err := json.Marshal(map[string]interface{}{
		"shipments":    []interface{}{shipment},
		"pickup_location": map[string]string{"name": pickup},
	})
	if err != nil {
		return nil, err
	}
	form := url.Values{}
	form.Set("format", "json")
	form.Set("data", string(data))

	var out createResponse
	if err := c.do(ctx, http.MethodPost, "/api/cmu/create.json", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", &out); err != nil {
		return nil, err
	}
	if !out.Success || len(out.Packages) == 0 {
		return nil, &courier.APIError{
			Provider:         ProviderName,
			StatusCode:       http.StatusBadRequest,
			Message:          "shipment creation rejected",
			Body:             string(out.Error),
			SuggestedPickups: parsePickupSuggestions(string(out.Error)),
		}
	}
	pkg := out.Packages[0]
	if !strings.EqualFold(pkg.Status, "success") {
		return nil, &courier.APIError{
			Provider:   ProviderName,
			StatusCode: http.StatusBadRequest,
			Message:    strings.Join(pkg.Remarks, "; "),
		}
	}
	return &courier.CreateShipmentResult{
		ShipmentID:      pkg.Waybill,
		ProviderOrderID: pkg.RefNum,
		TrackingCode:    pkg.Waybill,
		Status:          "Manifested",
	}, nil
}

// AssignCourier is not a Delhivery concept; Delhivery is itself the courier.
func (c *Client) AssignCourier(ctx context.Context, shipmentID string, courierID int) (*courier.AssignCourierResult, error) {
	return nil, courier.ErrUnsupported
}

// RequestPickup schedules a first-mile pickup for the configured location.
func (c *Client) RequestPickup(ctx context.Context, shipmentID string) error {
	body, err := json.Marshal(map[string]interface{}{
		"pickup_location": c.pickupLocation,
		"pickup_date":     time.Now().Add(24 * time.Hour).Format("2006-01-02"),
		"pickup_time":     "11:00:00",
		"expected_package_count": 1,
	})
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/fm/request/new/", bytes.NewReader(body), "application/json", nil)
}

// CancelShipment cancels the waybill via the package edit endpoint.
func (c *Client) CancelShipment(ctx context.Context, shipmentID string) error {
	body, err := json.Marshal(map[string]string{
		"waybill":      shipmentID,
		"cancellation": "true",
	})
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/api/p/edit", bytes.NewReader(body), "application/json", nil)
}

// GenerateLabel returns the packing-slip URL for the given waybills.
func (c *Client) GenerateLabel(ctx context.Context, shipmentIDs []string) (string, error) {
	if len(shipmentIDs) == 0 {
		return "", courier.ErrUnsupported
	}
	return fmt.Sprintf("%s/api/p/packing_slip?wbns=%s&pdf=true", c.baseURL, url.QueryEscape(strings.Join(shipmentIDs, ","))), nil
}

type trackResponse struct {
	ShipmentData []struct {
		Shipment struct {
			Status struct {
				Status         string `json:"Status"`
				StatusLocation string `json:"StatusLocation"`
				StatusDateTime string `json:"StatusDateTime"`
				Instructions   string `json:"Instructions"`
			} `json:"Status"`
			Scans []struct {
				ScanDetail struct {
					Scan         string `json:"Scan"`
					ScannedLocation string `json:"ScannedLocation"`
					ScanDateTime string `json:"ScanDateTime"`
					Instructions string `json:"Instructions"`
				} `json:"ScanDetail"`
			} `json:"Scans"`
		} `json:"Shipment"`
	} `json:"ShipmentData"`
}

// Track queries the current status for a waybill.
func (c *Client) Track(ctx context.Context, trackingCode string) (*courier.TrackingResult, error) {
	var out trackResponse
	path := "/api/v1/packages/json/?waybill=" + url.QueryEscape(trackingCode)
	if err := c.do(ctx, http.MethodGet, path, nil, "", &out); err != nil {
		return nil, err
	}
	if len(out.ShipmentData) == 0 {
		return nil, &courier.APIError{Provider: ProviderName, StatusCode: http.StatusNotFound, Message: "waybill not found: " + trackingCode}
	}
	sh := out.ShipmentData[0].Shipment
	result := &courier.TrackingResult{
		RawStatus: sh.Status.Status,
		Location:  sh.Status.StatusLocation,
		Timestamp: parseTime(sh.Status.StatusDateTime),
	}
	for _, scan := range sh.Scans {
		result.Events = append(result.Events, domain.TrackingEvent{
			Status:    scan.ScanDetail.Scan,
			Timestamp: parseTime(scan.ScanDetail.ScanDateTime),
			Location:  scan.ScanDetail.ScannedLocation,
			Note:      scan.ScanDetail.Instructions,
		})
	}
	return result, nil
}

type pincodeResponse struct {
	DeliveryCodes []struct {
		PostalCode struct {
			Pin     int    `json:"pin"`
			Prepaid string `json:"pre_paid"`
			COD     string `json:"cod"`
		} `json:"postal_code"`
	} `json:"delivery_codes"`
}

// CheckServiceability checks whether Delhivery delivers to the pincode.
func (c *Client) CheckServiceability(ctx context.Context, q courier.ServiceabilityQuery) (*courier.ServiceabilityResult, error) {
	var out pincodeResponse
	path := "/c/api/pin-codes/json/?filter_codes=" + url.QueryEscape(q.DeliveryPincode)
	if err := c.do(ctx, http.MethodGet, path, nil, "", &out); err != nil {
		return nil, err
	}
	for _, dc := range out.DeliveryCodes {
		serviceable := strings.EqualFold(dc.PostalCode.Prepaid, "Y")
		if q.COD {
			serviceable = strings.EqualFold(dc.PostalCode.COD, "Y")
		}
		if serviceable {
			return &courier.ServiceabilityResult{Serviceable: true, AvailableCouriers: 1}, nil
		}
	}
	return &courier.ServiceabilityResult{Serviceable: false}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Delhivery request failed", zap.String("path", path), zap.Error(err))
		return &courier.APIError{Provider: ProviderName, Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &courier.APIError{Provider: ProviderName, StatusCode: resp.StatusCode, Message: "response read failed", Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &courier.APIError{
			Provider:         ProviderName,
			StatusCode:       resp.StatusCode,
			Message:          "request rejected",
			Body:             string(respBody),
			SuggestedPickups: parsePickupSuggestions(string(respBody)),
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

// parsePickupSuggestions extracts registered pickup-location names from a
// "ClientWarehouse matching query does not exist" style rejection.
func parsePickupSuggestions(body string) []string {
	var payload struct {
		Error struct {
			Message           string   `json:"message"`
			AvailableLocations []string `json:"available_locations"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return nil
	}
	if !strings.Contains(strings.ToLower(payload.Error.Message), "pickup") &&
		!strings.Contains(strings.ToLower(payload.Error.Message), "warehouse") {
		return nil
	}
	return payload.Error.AvailableLocations
}

func parseTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05.000000", "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

var _ courier.Provider = (*Client)(nil)
