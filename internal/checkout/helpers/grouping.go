package helpers

import (
	"sort"

	"github.com/angelmondragon/stockroute-backend/pkg/db/models"
)

// BranchGroup is the slice of a sale shipped by one branch.
type BranchGroup struct {
	BranchID int64
	Items    []models.SaleItem
}

// GroupItemsByBranch groups sale items by the branch they were allocated to,
// ordered by branch id.
func GroupItemsByBranch(items []models.SaleItem) []BranchGroup {
	index := make(map[int64]int, len(items))
	var groups []BranchGroup
	for _, item := range items {
		pos, ok := index[item.BranchID]
		if !ok {
			pos = len(groups)
			index[item.BranchID] = pos
			groups = append(groups, BranchGroup{BranchID: item.BranchID})
		}
		groups[pos].Items = append(groups[pos].Items, item)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].BranchID < groups[j].BranchID })
	return groups
}

// SnapshotItem copies the variant's catalogue data onto a sale item so the
// sale keeps the price it was placed at.
func SnapshotItem(variant models.Variant, branchID int64, qty int) models.SaleItem {
	return models.SaleItem{
		VariantID: variant.ID,
		BranchID:  branchID,
		Qty:       qty,
		Price:     variant.Price,
		MRP:       variant.MRP,
		Name:      variant.Name,
		Size:      variant.Size,
		Colour:    variant.Colour,
		ImageURL:  variant.ImageURL,
		EANCode:   variant.EANCode,
		WeightKg:  variant.WeightKg,
	}
}
