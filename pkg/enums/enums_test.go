package enums

import "testing"

func TestSaleStatusCancellationGuard(t *testing.T) {
	for _, status := range []SaleStatus{SaleStatusCancelled, SaleStatusDelivered, SaleStatusRTO} {
		if status.CanCancel() {
			t.Fatalf("%s must not be cancellable", status)
		}
	}
	for _, status := range []SaleStatus{SaleStatusPlaced, SaleStatusConfirmed} {
		if !status.CanCancel() {
			t.Fatalf("%s must be cancellable", status)
		}
	}
}

func TestParsePaymentStatusCaseInsensitive(t *testing.T) {
	got, err := ParsePaymentStatus(" paid ")
	if err != nil || got != PaymentStatusPaid {
		t.Fatalf("expected PAID, got %q err=%v", got, err)
	}
	if _, err := ParsePaymentStatus("refunded"); err == nil {
		t.Fatalf("expected error for unknown payment status")
	}
}

func TestShipmentStatusFromCourier(t *testing.T) {
	cases := map[string]ShipmentStatus{
		"DELIVERED":        ShipmentStatusDelivered,
		"RTO INITIATED":    ShipmentStatusRTO,
		"rto_delivered":    ShipmentStatusRTO,
		"Canceled":         ShipmentStatusCancelled,
		"IN TRANSIT":       ShipmentStatusInTransit,
		"out_for_delivery": ShipmentStatusInTransit,
		"PICKUP SCHEDULED": ShipmentStatusPickupScheduled,
		"AWB ASSIGNED":     ShipmentStatusReady,
	}
	for raw, want := range cases {
		got, ok := ShipmentStatusFromCourier(raw)
		if !ok || got != want {
			t.Fatalf("%q: expected %s got %s (ok=%v)", raw, want, got, ok)
		}
	}
	if _, ok := ShipmentStatusFromCourier("LOST IN SPACE"); ok {
		t.Fatalf("unknown labels must not map")
	}
}

func TestShipmentStatusIsLive(t *testing.T) {
	if ShipmentStatusFailed.IsLive() || ShipmentStatusCancelled.IsLive() {
		t.Fatalf("failed and cancelled shipments are not live")
	}
	if !ShipmentStatusCreated.IsLive() || !ShipmentStatusReady.IsLive() {
		t.Fatalf("created and ready shipments are live")
	}
}

func TestParseStoredValues(t *testing.T) {
	if got, err := ParseSaleStatus("CONFIRMED"); err != nil || got != SaleStatusConfirmed {
		t.Fatalf("sale status: got %q err=%v", got, err)
	}
	if got, err := ParseShipmentStatus("PICKUP_SCHEDULED"); err != nil || got != ShipmentStatusPickupScheduled {
		t.Fatalf("shipment status: got %q err=%v", got, err)
	}
	if got, err := ParseStockState("HELD"); err != nil || got != StockStateHeld {
		t.Fatalf("stock state: got %q err=%v", got, err)
	}
	if got, err := ParseSaleSource(" pos "); err != nil || got != SaleSourcePOS {
		t.Fatalf("sale source: got %q err=%v", got, err)
	}
	if _, err := ParseSaleStatus("placed"); err == nil {
		t.Fatalf("stored values are case sensitive")
	}
	if _, err := ParseStockState("LOST"); err == nil {
		t.Fatalf("expected error for unknown stock state")
	}
}
