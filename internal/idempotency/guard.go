package idempotency

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/stockroute-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/stockroute-backend/pkg/errors"
)

const maxKeyLength = 200

// Scopes prefix client action ids so the same token can be used once per
// action kind.
const (
	ScopePlace   = "place"
	ScopeConfirm = "confirm"
)

// Claim is the outcome of claiming a key.
type Claim struct {
	Fresh  bool
	SaleID *uuid.UUID
}

// Guard records client action tokens in idempotency_keys.
type Guard struct{}

// NewGuard constructs the guard.
func NewGuard() *Guard {
	return &Guard{}
}

// Key namespaces a client action id under scope.
func Key(scope, clientActionID string) string {
	return scope + ":" + strings.TrimSpace(clientActionID)
}

// Claim inserts key inside tx. A fresh claim commits or rolls back with the
// rest of tx. When the key already exists the stored sale id is returned and
// Fresh is false.
func (g *Guard) Claim(ctx context.Context, tx *gorm.DB, scope, clientActionID string, saleID *uuid.UUID) (Claim, error) {
	if tx == nil {
		return Claim{}, pkgerrors.New(pkgerrors.CodeInternal, "idempotency claim requires a transaction")
	}
	clientActionID = strings.TrimSpace(clientActionID)
	if clientActionID == "" {
		return Claim{}, pkgerrors.New(pkgerrors.CodeValidation, "client_action_id is required")
	}
	key := Key(scope, clientActionID)
	if len(key) > maxKeyLength {
		return Claim{}, pkgerrors.New(pkgerrors.CodeValidation, "client_action_id is too long")
	}

	row := models.IdempotencyKey{Key: key, Scope: scope, SaleID: saleID}
	res := tx.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "key"}}, DoNothing: true}).
		Create(&row)
	if res.Error != nil {
		return Claim{}, pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "claim idempotency key")
	}
	if res.RowsAffected == 1 {
		return Claim{Fresh: true, SaleID: saleID}, nil
	}

	existing, err := g.Lookup(ctx, tx, scope, clientActionID)
	if err != nil {
		return Claim{}, err
	}
	if existing == nil {
		return Claim{}, pkgerrors.New(pkgerrors.CodeConflict, "idempotency key claimed concurrently")
	}
	return Claim{Fresh: false, SaleID: existing.SaleID}, nil
}

// Lookup returns the stored claim or nil.
func (g *Guard) Lookup(ctx context.Context, db *gorm.DB, scope, clientActionID string) (*models.IdempotencyKey, error) {
	var row models.IdempotencyKey
	err := db.WithContext(ctx).Where("key = ?", Key(scope, clientActionID)).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load idempotency key")
	}
	return &row, nil
}
