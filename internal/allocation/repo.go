package allocation

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/stockroute-backend/pkg/db/models"
	"github.com/angelmondragon/stockroute-backend/pkg/types"
)

// Candidate is an active branch's stock position for one variant.
type Candidate struct {
	BranchID  int64
	VariantID int64
	Available int
	Pincode   string
	Latitude  *float64
	Longitude *float64
}

// Coordinates returns the branch position when both parts are stored.
func (c Candidate) Coordinates() (types.LatLng, bool) {
	if c.Latitude == nil || c.Longitude == nil {
		return types.LatLng{}, false
	}
	return types.LatLng{Lat: *c.Latitude, Lng: *c.Longitude}, true
}

// StockReader is the read side the allocator needs.
type StockReader interface {
	Candidates(ctx context.Context, variantIDs []int64) ([]Candidate, error)
	PincodeCentroid(ctx context.Context, pincode string) (types.LatLng, bool, error)
}

// Repository reads stock positions and branch coordinates.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repository to db.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Candidates lists active stock rows with positive availability for the given
// variants, ordered by branch id.
func (r *Repository) Candidates(ctx context.Context, variantIDs []int64) ([]Candidate, error) {
	if len(variantIDs) == 0 {
		return nil, nil
	}
	var rows []Candidate
	err := r.db.WithContext(ctx).
		Model(&models.BranchVariantStock{}).
		Select(`branch_variant_stock.branch_id AS branch_id,
			branch_variant_stock.variant_id AS variant_id,
			branch_variant_stock.on_hand - branch_variant_stock.reserved AS available,
			branches.pincode AS pincode,
			branches.latitude AS latitude,
			branches.longitude AS longitude`).
		Joins("JOIN branches ON branches.id = branch_variant_stock.branch_id").
		Where("branch_variant_stock.variant_id IN ?", variantIDs).
		Where("branch_variant_stock.is_active = ? AND branches.is_active = ?", true, true).
		Where("branch_variant_stock.on_hand - branch_variant_stock.reserved > 0").
		Order("branch_variant_stock.branch_id ASC, branch_variant_stock.variant_id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// PincodeCentroid averages the coordinates of active branches in pincode.
func (r *Repository) PincodeCentroid(ctx context.Context, pincode string) (types.LatLng, bool, error) {
	pincode = strings.TrimSpace(pincode)
	if pincode == "" {
		return types.LatLng{}, false, nil
	}
	var out struct {
		Lat   *float64
		Lng   *float64
		Count int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Branch{}).
		Select("AVG(latitude) AS lat, AVG(longitude) AS lng, COUNT(*) AS count").
		Where("pincode = ? AND is_active = ? AND latitude IS NOT NULL AND longitude IS NOT NULL", pincode, true).
		Scan(&out).Error
	if err != nil {
		return types.LatLng{}, false, err
	}
	if out.Count == 0 || out.Lat == nil || out.Lng == nil {
		return types.LatLng{}, false, nil
	}
	return types.LatLng{Lat: *out.Lat, Lng: *out.Lng}, true, nil
}
