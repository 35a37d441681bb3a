package branches

import (
	"time"

	"github.com/angelmondragon/stockroute-backend/pkg/db/models"
)

// SyncInput selects which branches get registered with the courier.
type SyncInput struct {
	BranchIDs []int64 `json:"branch_ids,omitempty"`
	Force     bool    `json:"force"`
}

// PickupView is the API shape of a pickup mapping.
type PickupView struct {
	BranchID   int64     `json:"branch_id"`
	PickupName string    `json:"pickup_name"`
	PickupID   *int64    `json:"pickup_id,omitempty"`
	Pincode    string    `json:"pincode"`
	City       string    `json:"city,omitempty"`
	State      string    `json:"state,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// BranchFailure reports why a branch could not be mapped.
type BranchFailure struct {
	BranchID int64  `json:"branch_id"`
	Error    string `json:"error"`
}

// SyncResult summarises a pickup sync or import run.
type SyncResult struct {
	Synced  []PickupView    `json:"synced"`
	Skipped []int64         `json:"skipped"`
	Failed  []BranchFailure `json:"failed"`
	Error   string          `json:"error,omitempty"`
}

func newSyncResult() *SyncResult {
	return &SyncResult{Synced: []PickupView{}, Skipped: []int64{}, Failed: []BranchFailure{}}
}

func toPickupView(row models.PickupLocation) PickupView {
	return PickupView{
		BranchID:   row.BranchID,
		PickupName: row.PickupName,
		PickupID:   row.PickupID,
		Pincode:    row.Pincode,
		City:       row.City,
		State:      row.State,
		UpdatedAt:  row.UpdatedAt,
	}
}
