package branches

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/multierr"

	"github.com/angelmondragon/stockroute-backend/pkg/courier"
	"github.com/angelmondragon/stockroute-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/stockroute-backend/pkg/errors"
	"github.com/angelmondragon/stockroute-backend/pkg/logger"
	"github.com/angelmondragon/stockroute-backend/pkg/types"
)

type branchRepository interface {
	ActiveBranches(ctx context.Context, ids []int64) ([]models.Branch, error)
	Pickups(ctx context.Context) (map[int64]models.PickupLocation, error)
	SavePickup(ctx context.Context, row *models.PickupLocation) error
}

// PickupGateway is the courier surface for pickup addresses.
type PickupGateway interface {
	UpsertPickup(ctx context.Context, addr courier.PickupAddress) (courier.PickupLocation, error)
	ListPickups(ctx context.Context) ([]courier.PickupLocation, error)
}

// Service manages the mapping between branches and courier pickup locations.
type Service interface {
	SyncPickupLocations(ctx context.Context, input SyncInput) (*SyncResult, error)
	ImportPickupLocations(ctx context.Context) (*SyncResult, error)
}

type service struct {
	repo    branchRepository
	courier PickupGateway
	logg    *logger.Logger
}

// NewService builds the pickup-location service.
func NewService(repo branchRepository, gateway PickupGateway, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("branch repository required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("courier gateway required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, courier: gateway, logg: logg}, nil
}

// PickupName is the name a branch is registered under with the courier.
func PickupName(branchID int64) string {
	return fmt.Sprintf("branch-%d", branchID)
}

// SyncPickupLocations registers active branches that have no pickup mapping
// yet, or every selected branch when Force is set. One failing branch does
// not stop the others.
func (s *service) SyncPickupLocations(ctx context.Context, input SyncInput) (*SyncResult, error) {
	branches, existing, err := s.load(ctx, input.BranchIDs)
	if err != nil {
		return nil, err
	}

	result := newSyncResult()
	var errs error
	for _, branch := range branches {
		if _, ok := existing[branch.ID]; ok && !input.Force {
			result.Skipped = append(result.Skipped, branch.ID)
			continue
		}
		branchCtx := s.logg.WithBranchID(ctx, branch.ID)
		row, err := s.register(branchCtx, branch)
		if err != nil {
			s.logg.Warn(branchCtx, "pickup location sync failed: "+err.Error())
			result.Failed = append(result.Failed, BranchFailure{BranchID: branch.ID, Error: err.Error()})
			errs = multierr.Append(errs, fmt.Errorf("branch %d: %w", branch.ID, err))
			continue
		}
		result.Synced = append(result.Synced, toPickupView(*row))
	}
	if errs != nil {
		result.Error = errs.Error()
	}
	return result, nil
}

func (s *service) register(ctx context.Context, branch models.Branch) (*models.PickupLocation, error) {
	if strings.TrimSpace(branch.Address) == "" || !types.IsPincode(branch.Pincode) || strings.TrimSpace(branch.Phone) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "branch address, pincode and phone are required")
	}
	name := PickupName(branch.ID)
	loc, err := s.courier.UpsertPickup(ctx, courier.PickupAddress{
		Name:    name,
		Email:   branch.Email,
		Phone:   branch.Phone,
		Address: branch.Address,
		City:    branch.City,
		State:   branch.State,
		Country: "India",
		Pincode: strings.TrimSpace(branch.Pincode),
	})
	if err != nil {
		return nil, err
	}
	row := &models.PickupLocation{
		BranchID:   branch.ID,
		PickupName: firstNonEmpty(loc.Name, name),
		Pincode:    strings.TrimSpace(branch.Pincode),
		City:       branch.City,
		State:      branch.State,
		Address:    branch.Address,
		Phone:      branch.Phone,
	}
	if loc.ID > 0 {
		id := loc.ID
		row.PickupID = &id
	}
	if err := s.repo.SavePickup(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save pickup location")
	}
	return row, nil
}

// ImportPickupLocations maps unmapped branches onto pickup addresses already
// registered with the courier, matching by pincode first and city second.
// Each courier location is used at most once.
func (s *service) ImportPickupLocations(ctx context.Context) (*SyncResult, error) {
	branches, existing, err := s.load(ctx, nil)
	if err != nil {
		return nil, err
	}
	locations, err := s.courier.ListPickups(ctx)
	if err != nil {
		return nil, err
	}

	used := make(map[string]bool, len(existing))
	for _, row := range existing {
		used[row.PickupName] = true
	}

	result := newSyncResult()
	var errs error
	for _, branch := range branches {
		if _, ok := existing[branch.ID]; ok {
			result.Skipped = append(result.Skipped, branch.ID)
			continue
		}
		loc, ok := matchLocation(branch, locations, used)
		if !ok {
			result.Failed = append(result.Failed, BranchFailure{BranchID: branch.ID, Error: "no courier pickup location matches"})
			continue
		}
		used[loc.Name] = true
		row := &models.PickupLocation{
			BranchID:   branch.ID,
			PickupName: loc.Name,
			Pincode:    firstNonEmpty(loc.Pincode, branch.Pincode),
			City:       firstNonEmpty(loc.City, branch.City),
			State:      firstNonEmpty(loc.State, branch.State),
			Address:    firstNonEmpty(loc.Address, branch.Address),
			Phone:      firstNonEmpty(loc.Phone, branch.Phone),
		}
		if loc.ID > 0 {
			id := loc.ID
			row.PickupID = &id
		}
		if err := s.repo.SavePickup(ctx, row); err != nil {
			result.Failed = append(result.Failed, BranchFailure{BranchID: branch.ID, Error: err.Error()})
			errs = multierr.Append(errs, fmt.Errorf("branch %d: %w", branch.ID, err))
			continue
		}
		result.Synced = append(result.Synced, toPickupView(*row))
	}
	if errs != nil {
		result.Error = errs.Error()
	}
	return result, nil
}

func (s *service) load(ctx context.Context, ids []int64) ([]models.Branch, map[int64]models.PickupLocation, error) {
	branches, err := s.repo.ActiveBranches(ctx, ids)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load branches")
	}
	existing, err := s.repo.Pickups(ctx)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load pickup locations")
	}
	return branches, existing, nil
}

func matchLocation(branch models.Branch, locations []courier.PickupLocation, used map[string]bool) (courier.PickupLocation, bool) {
	pincode := strings.TrimSpace(branch.Pincode)
	for _, loc := range locations {
		if !used[loc.Name] && pincode != "" && loc.Pincode == pincode {
			return loc, true
		}
	}
	city := strings.TrimSpace(branch.City)
	for _, loc := range locations {
		if !used[loc.Name] && city != "" && strings.EqualFold(strings.TrimSpace(loc.City), city) {
			return loc, true
		}
	}
	return courier.PickupLocation{}, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
