package courier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// flexInt64 decodes ids the courier sends as a number, a numeric string, or a
// single-element array.
type flexInt64 int64

func (f *flexInt64) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	switch data[0] {
	case '[':
		var list []flexInt64
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		if len(list) > 0 {
			*f = list[0]
		} else {
			*f = 0
		}
		return nil
	case '"':
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("courier id %q: %w", raw, err)
		}
		*f = flexInt64(v)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	v, err := num.Int64()
	if err != nil {
		fv, ferr := num.Float64()
		if ferr != nil {
			return err
		}
		v = int64(fv)
	}
	*f = flexInt64(v)
	return nil
}

// flexBool decodes flags the courier sends as true/false or 1/0.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	switch strings.Trim(strings.TrimSpace(string(data)), `"`) {
	case "true", "1":
		*f = true
	default:
		*f = false
	}
	return nil
}

// Item is one order line sent to the courier.
type Item struct {
	Name         string  `json:"name"`
	SKU          string  `json:"sku"`
	Units        int     `json:"units"`
	SellingPrice float64 `json:"selling_price"`
}

// Customer is the billing/shipping party of a courier order.
type Customer struct {
	Name    string
	Email   string
	Phone   string
	Line1   string
	Line2   string
	City    string
	State   string
	Pincode string
	Country string
}

// Package describes parcel dimensions in centimetres and weight in kilograms.
type Package struct {
	LengthCm  float64
	BreadthCm float64
	HeightCm  float64
	WeightKg  float64
}

// PaymentMethod values accepted by the courier.
const (
	PaymentCOD     = "COD"
	PaymentPrepaid = "Prepaid"
)

// CreateShipmentRequest is the input for order.create.
type CreateShipmentRequest struct {
	ChannelOrderID string
	PickupLocation string
	Customer       Customer
	Items          []Item
	PaymentMethod  string
	SubTotal       float64
	Package        Package
}

// CreateShipmentResult carries the courier-side identifiers of a new order.
type CreateShipmentResult struct {
	OrderID     int64
	ShipmentID  int64
	Status      string
	TrackingURL string
}

// LabelResult is the outcome of assignCarrierAndLabel. Fields are populated as
// far as the choreography got.
type LabelResult struct {
	AWB         string
	CourierName string
	LabelURL    string
}

// PickupResult acknowledges a pickup request.
type PickupResult struct {
	Scheduled     bool
	ScheduledDate string
}

// CourierOption is one courier company able to serve a lane.
type CourierOption struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	ETD           string  `json:"etd,omitempty"`
	COD           bool    `json:"cod"`
	Rate          float64 `json:"rate"`
	EstimatedDays string  `json:"estimated_days,omitempty"`
}

// ServiceabilityRequest is the input for serviceability.check.
type ServiceabilityRequest struct {
	PickupPincode   string
	DeliveryPincode string
	COD             bool
	WeightKg        float64
}

// Serviceability lists the couriers available for a lane.
type Serviceability struct {
	Couriers             []CourierOption `json:"couriers"`
	RecommendedCourierID int64           `json:"recommended_courier_id,omitempty"`
}

// PickupAddress registers a branch as a courier pickup location.
type PickupAddress struct {
	Name     string
	Email    string
	Phone    string
	Address  string
	Address2 string
	City     string
	State    string
	Country  string
	Pincode  string
}

// PickupLocation is a pickup address known to the courier.
type PickupLocation struct {
	ID      int64
	Name    string
	Pincode string
	City    string
	State   string
	Address string
	Phone   string
}
