package courier

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/stockroute-backend/pkg/errors"
)

const pickupDateLayout = "2006-01-02"

// CheckServiceability lists couriers able to carry a parcel between pincodes.
func (c *Client) CheckServiceability(ctx context.Context, req ServiceabilityRequest) (*Serviceability, error) {
	query := url.Values{}
	query.Set("pickup_postcode", strings.TrimSpace(req.PickupPincode))
	query.Set("delivery_postcode", strings.TrimSpace(req.DeliveryPincode))
	query.Set("cod", boolParam(req.COD))
	query.Set("weight", strconv.FormatFloat(req.WeightKg, 'f', -1, 64))

	var out struct {
		Data struct {
			Available []struct {
				ID            flexInt64 `json:"courier_company_id"`
				Name          string    `json:"courier_name"`
				ETD           string    `json:"etd"`
				COD           flexBool  `json:"cod"`
				Rate          float64   `json:"rate"`
				EstimatedDays string    `json:"estimated_delivery_days"`
			} `json:"available_courier_companies"`
			Recommended flexInt64 `json:"recommended_courier_company_id"`
		} `json:"data"`
	}
	if err := c.call(ctx, "serviceability.check", http.MethodGet, "/courier/serviceability/", query, nil, &out); err != nil {
		return nil, err
	}

	result := &Serviceability{
		Couriers:             make([]CourierOption, 0, len(out.Data.Available)),
		RecommendedCourierID: int64(out.Data.Recommended),
	}
	for _, opt := range out.Data.Available {
		result.Couriers = append(result.Couriers, CourierOption{
			ID:            int64(opt.ID),
			Name:          opt.Name,
			ETD:           opt.ETD,
			COD:           bool(opt.COD),
			Rate:          opt.Rate,
			EstimatedDays: opt.EstimatedDays,
		})
	}
	return result, nil
}

// CreateShipment creates a courier order for one branch group.
func (c *Client) CreateShipment(ctx context.Context, req CreateShipmentRequest) (*CreateShipmentResult, error) {
	if strings.TrimSpace(req.ChannelOrderID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "channel order id is required")
	}
	if len(req.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "courier order needs at least one item")
	}

	country := req.Customer.Country
	if country == "" {
		country = "India"
	}
	payload := map[string]any{
		"order_id":              req.ChannelOrderID,
		"order_date":            time.Now().UTC().Format("2006-01-02 15:04"),
		"pickup_location":       req.PickupLocation,
		"billing_customer_name": req.Customer.Name,
		"billing_last_name":     "",
		"billing_address":       req.Customer.Line1,
		"billing_address_2":     req.Customer.Line2,
		"billing_city":          req.Customer.City,
		"billing_pincode":       req.Customer.Pincode,
		"billing_state":         req.Customer.State,
		"billing_country":       country,
		"billing_email":         req.Customer.Email,
		"billing_phone":         req.Customer.Phone,
		"shipping_is_billing":   true,
		"order_items":           req.Items,
		"payment_method":        req.PaymentMethod,
		"sub_total":             req.SubTotal,
		"length":                req.Package.LengthCm,
		"breadth":               req.Package.BreadthCm,
		"height":                req.Package.HeightCm,
		"weight":                req.Package.WeightKg,
	}

	var out struct {
		OrderID     flexInt64 `json:"order_id"`
		ShipmentID  flexInt64 `json:"shipment_id"`
		Status      string    `json:"status"`
		TrackingURL string    `json:"tracking_url"`
	}
	if err := c.call(ctx, "order.create", http.MethodPost, "/orders/create/adhoc", nil, payload, &out); err != nil {
		return nil, err
	}
	if out.OrderID == 0 {
		c.fail("order.create", pkgerrors.CodeCourierUnavailable)
		return nil, pkgerrors.New(pkgerrors.CodeCourierUnavailable, "courier returned no order id")
	}
	return &CreateShipmentResult{
		OrderID:     int64(out.OrderID),
		ShipmentID:  int64(out.ShipmentID),
		Status:      out.Status,
		TrackingURL: out.TrackingURL,
	}, nil
}

// AssignAWB asks the courier for an airway bill. courierID zero lets the
// courier pick its recommended carrier.
func (c *Client) AssignAWB(ctx context.Context, shipmentID, courierID int64) (string, string, error) {
	payload := map[string]any{"shipment_id": shipmentID}
	if courierID > 0 {
		payload["courier_id"] = courierID
	}

	var out struct {
		Status   flexBool `json:"awb_assign_status"`
		Response struct {
			Data struct {
				AWB         string `json:"awb_code"`
				CourierName string `json:"courier_name"`
			} `json:"data"`
		} `json:"response"`
		Message string `json:"message"`
	}
	if err := c.call(ctx, "awb.assign", http.MethodPost, "/courier/assign/awb", nil, payload, &out); err != nil {
		return "", "", err
	}
	if !bool(out.Status) || out.Response.Data.AWB == "" {
		c.fail("awb.assign", pkgerrors.CodeCourierUnavailable)
		return "", "", pkgerrors.New(pkgerrors.CodeCourierUnavailable, "courier did not assign an awb").
			WithDetails(map[string]any{"shipment_id": shipmentID, "message": out.Message})
	}
	return out.Response.Data.AWB, out.Response.Data.CourierName, nil
}

// GenerateLabel returns the label URL covering the given shipments.
func (c *Client) GenerateLabel(ctx context.Context, shipmentIDs []int64) (string, error) {
	if len(shipmentIDs) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "shipment ids are required")
	}
	var out struct {
		Created  flexBool `json:"label_created"`
		LabelURL string   `json:"label_url"`
		Response string   `json:"response"`
	}
	if err := c.call(ctx, "label.generate", http.MethodPost, "/courier/generate/label", nil, map[string]any{"shipment_id": shipmentIDs}, &out); err != nil {
		return "", err
	}
	if out.LabelURL == "" {
		c.fail("label.generate", pkgerrors.CodeCourierUnavailable)
		return "", pkgerrors.New(pkgerrors.CodeCourierUnavailable, "courier did not generate a label").
			WithDetails(map[string]any{"response": out.Response})
	}
	return out.LabelURL, nil
}

// AssignCarrierAndLabel assigns an AWB with the recommended carrier and then
// generates the label. The result holds whatever succeeded before an error.
func (c *Client) AssignCarrierAndLabel(ctx context.Context, shipmentID int64) (LabelResult, error) {
	return c.AssignCourierAndLabel(ctx, shipmentID, 0)
}

// AssignCourierAndLabel is AssignCarrierAndLabel with an explicit carrier.
func (c *Client) AssignCourierAndLabel(ctx context.Context, shipmentID, courierID int64) (LabelResult, error) {
	var result LabelResult
	awb, courierName, err := c.AssignAWB(ctx, shipmentID, courierID)
	if err != nil {
		return result, err
	}
	result.AWB = awb
	result.CourierName = courierName

	labelURL, err := c.GenerateLabel(ctx, []int64{shipmentID})
	if err != nil {
		return result, err
	}
	result.LabelURL = labelURL
	return result, nil
}

// RequestPickup schedules courier pickup. A nil date lets the courier choose.
func (c *Client) RequestPickup(ctx context.Context, shipmentIDs []int64, date *time.Time) (PickupResult, error) {
	if len(shipmentIDs) == 0 {
		return PickupResult{}, pkgerrors.New(pkgerrors.CodeValidation, "shipment ids are required")
	}
	payload := map[string]any{"shipment_id": shipmentIDs}
	if date != nil {
		payload["pickup_date"] = []string{date.Format(pickupDateLayout)}
	}

	var out struct {
		Status   flexBool `json:"pickup_status"`
		Response struct {
			ScheduledDate string `json:"pickup_scheduled_date"`
		} `json:"response"`
	}
	if err := c.call(ctx, "pickup.request", http.MethodPost, "/courier/generate/pickup", nil, payload, &out); err != nil {
		return PickupResult{}, err
	}
	return PickupResult{Scheduled: bool(out.Status), ScheduledDate: out.Response.ScheduledDate}, nil
}

// GenerateManifest produces the handover manifest for the given shipments.
func (c *Client) GenerateManifest(ctx context.Context, shipmentIDs []int64) (string, error) {
	if len(shipmentIDs) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "shipment ids are required")
	}
	var out struct {
		ManifestURL string `json:"manifest_url"`
		Data        struct {
			ManifestURL string `json:"manifest_url"`
		} `json:"data"`
	}
	if err := c.call(ctx, "manifest.generate", http.MethodPost, "/manifests/generate", nil, map[string]any{"shipment_id": shipmentIDs}, &out); err != nil {
		return "", err
	}
	link := firstNonEmpty(out.ManifestURL, out.Data.ManifestURL)
	if link == "" {
		c.fail("manifest.generate", pkgerrors.CodeCourierUnavailable)
		return "", pkgerrors.New(pkgerrors.CodeCourierUnavailable, "courier did not generate a manifest")
	}
	return link, nil
}

// PrintInvoice returns the invoice URL for courier orders.
func (c *Client) PrintInvoice(ctx context.Context, orderIDs []int64) (string, error) {
	if len(orderIDs) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "order ids are required")
	}
	var out struct {
		InvoiceURL string `json:"invoice_url"`
		Data       struct {
			InvoiceURL string `json:"invoice_url"`
		} `json:"data"`
	}
	if err := c.call(ctx, "invoice.print", http.MethodPost, "/orders/print/invoice", nil, map[string]any{"ids": orderIDs}, &out); err != nil {
		return "", err
	}
	link := firstNonEmpty(out.InvoiceURL, out.Data.InvoiceURL)
	if link == "" {
		c.fail("invoice.print", pkgerrors.CodeCourierUnavailable)
		return "", pkgerrors.New(pkgerrors.CodeCourierUnavailable, "courier did not generate an invoice")
	}
	return link, nil
}

// Cancel cancels courier orders.
func (c *Client) Cancel(ctx context.Context, orderIDs []int64) error {
	if len(orderIDs) == 0 {
		return nil
	}
	return c.call(ctx, "order.cancel", http.MethodPost, "/orders/cancel", nil, map[string]any{"ids": orderIDs}, nil)
}

// UpsertPickup registers a pickup address and returns its courier id and name.
func (c *Client) UpsertPickup(ctx context.Context, addr PickupAddress) (PickupLocation, error) {
	if strings.TrimSpace(addr.Name) == "" || strings.TrimSpace(addr.Pincode) == "" {
		return PickupLocation{}, pkgerrors.New(pkgerrors.CodeValidation, "pickup name and pincode are required")
	}
	country := addr.Country
	if country == "" {
		country = "India"
	}
	payload := map[string]any{
		"pickup_location": addr.Name,
		"name":            addr.Name,
		"email":           addr.Email,
		"phone":           addr.Phone,
		"address":         addr.Address,
		"address_2":       addr.Address2,
		"city":            addr.City,
		"state":           addr.State,
		"country":         country,
		"pin_code":        addr.Pincode,
	}

	var out struct {
		PickupID       flexInt64 `json:"pickup_id"`
		PickupLocation string    `json:"pickup_location"`
		Address        struct {
			ID         flexInt64 `json:"id"`
			PickupCode string    `json:"pickup_code"`
		} `json:"address"`
	}
	if err := c.call(ctx, "pickup.upsert", http.MethodPost, "/settings/company/addpickup", nil, payload, &out); err != nil {
		return PickupLocation{}, err
	}

	id := int64(out.PickupID)
	if id == 0 {
		id = int64(out.Address.ID)
	}
	return PickupLocation{
		ID:      id,
		Name:    firstNonEmpty(out.PickupLocation, out.Address.PickupCode, addr.Name),
		Pincode: addr.Pincode,
		City:    addr.City,
		State:   addr.State,
		Address: addr.Address,
		Phone:   addr.Phone,
	}, nil
}

// ListPickups returns every pickup address registered with the courier.
func (c *Client) ListPickups(ctx context.Context) ([]PickupLocation, error) {
	var out struct {
		Data struct {
			ShippingAddress []struct {
				ID             flexInt64 `json:"id"`
				PickupLocation string    `json:"pickup_location"`
				PinCode        string    `json:"pin_code"`
				City           string    `json:"city"`
				State          string    `json:"state"`
				Address        string    `json:"address"`
				Phone          string    `json:"phone"`
			} `json:"shipping_address"`
		} `json:"data"`
	}
	if err := c.call(ctx, "pickup.list", http.MethodGet, "/settings/company/pickup", nil, nil, &out); err != nil {
		return nil, err
	}
	pickups := make([]PickupLocation, 0, len(out.Data.ShippingAddress))
	for _, p := range out.Data.ShippingAddress {
		pickups = append(pickups, PickupLocation{
			ID:      int64(p.ID),
			Name:    p.PickupLocation,
			Pincode: strings.TrimSpace(p.PinCode),
			City:    p.City,
			State:   p.State,
			Address: p.Address,
			Phone:   p.Phone,
		})
	}
	return pickups, nil
}

func boolParam(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// String renders the package for logs.
func (p Package) String() string {
	return fmt.Sprintf("%gx%gx%gcm %gkg", p.LengthCm, p.BreadthCm, p.HeightCm, p.WeightKg)
}
