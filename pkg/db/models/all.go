package models

// All lists every model owned by this service in dependency order. Used by
// sqlite-backed runs and tests that build the schema with AutoMigrate.
func All() []any {
	return []any{
		&Branch{},
		&PickupLocation{},
		&Variant{},
		&BranchVariantStock{},
		&Sale{},
		&SaleItem{},
		&Shipment{},
		&IdempotencyKey{},
		&OrderCancellation{},
	}
}
