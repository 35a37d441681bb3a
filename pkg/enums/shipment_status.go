package enums

import (
	"fmt"
	"strings"
)

// ShipmentStatus is the lifecycle state of one branch's shipment.
type ShipmentStatus string

const (
	ShipmentStatusCreated         ShipmentStatus = "CREATED"
	ShipmentStatusReady           ShipmentStatus = "READY"
	ShipmentStatusPickupScheduled ShipmentStatus = "PICKUP_SCHEDULED"
	ShipmentStatusInTransit       ShipmentStatus = "IN_TRANSIT"
	ShipmentStatusDelivered       ShipmentStatus = "DELIVERED"
	ShipmentStatusRTO             ShipmentStatus = "RTO"
	ShipmentStatusCancelled       ShipmentStatus = "CANCELLED"
	ShipmentStatusFailed          ShipmentStatus = "FAILED"
)

var validShipmentStatuses = []ShipmentStatus{
	ShipmentStatusCreated,
	ShipmentStatusReady,
	ShipmentStatusPickupScheduled,
	ShipmentStatusInTransit,
	ShipmentStatusDelivered,
	ShipmentStatusRTO,
	ShipmentStatusCancelled,
	ShipmentStatusFailed,
}

func (s ShipmentStatus) IsValid() bool {
	for _, candidate := range validShipmentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsLive reports whether the shipment still represents a real fulfillment
// attempt. Failed and cancelled rows can be superseded by a new attempt.
func (s ShipmentStatus) IsLive() bool {
	return s != ShipmentStatusFailed && s != ShipmentStatusCancelled
}

func ParseShipmentStatus(value string) (ShipmentStatus, error) {
	for _, candidate := range validShipmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid shipment status %q", value)
}

// ShipmentStatusFromCourier maps a courier tracking label onto a local status.
// The second return is false for labels with no local meaning.
func ShipmentStatusFromCourier(raw string) (ShipmentStatus, bool) {
	label := strings.ToUpper(strings.TrimSpace(raw))
	label = strings.ReplaceAll(label, "_", " ")
	switch {
	case label == "":
		return "", false
	case strings.Contains(label, "RTO"):
		return ShipmentStatusRTO, true
	case label == "DELIVERED":
		return ShipmentStatusDelivered, true
	case strings.HasPrefix(label, "CANCEL"):
		return ShipmentStatusCancelled, true
	case label == "PICKUP SCHEDULED", label == "PICKUP GENERATED", label == "PICKUP QUEUED":
		return ShipmentStatusPickupScheduled, true
	case label == "AWB ASSIGNED", label == "LABEL GENERATED", label == "MANIFEST GENERATED":
		return ShipmentStatusReady, true
	case label == "PICKED UP", label == "SHIPPED", label == "IN TRANSIT",
		label == "OUT FOR DELIVERY", label == "REACHED DESTINATION HUB", label == "OUT FOR PICKUP":
		return ShipmentStatusInTransit, true
	}
	return "", false
}
