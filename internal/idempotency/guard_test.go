package idempotency

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockroute-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/stockroute-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:idempotency_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(&models.IdempotencyKey{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestClaimFreshThenAlreadyClaimed(t *testing.T) {
	db := newTestDB(t)
	guard := NewGuard()
	ctx := context.Background()
	saleID := uuid.New()

	var first Claim
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		var err error
		first, err = guard.Claim(ctx, tx, ScopeConfirm, " act-1 ", &saleID)
		return err
	}))
	assert.True(t, first.Fresh)

	var second Claim
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		var err error
		second, err = guard.Claim(ctx, tx, ScopeConfirm, "act-1", nil)
		return err
	}))
	assert.False(t, second.Fresh)
	require.NotNil(t, second.SaleID)
	assert.Equal(t, saleID, *second.SaleID)

	var third Claim
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		var err error
		third, err = guard.Claim(ctx, tx, ScopePlace, "act-1", nil)
		return err
	}))
	assert.True(t, third.Fresh, "scopes are independent")
}

func TestClaimRollsBackWithTransaction(t *testing.T) {
	db := newTestDB(t)
	guard := NewGuard()
	ctx := context.Background()
	boom := errors.New("stock failed")

	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := guard.Claim(ctx, tx, ScopePlace, "act-2", nil); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	row, err := guard.Lookup(ctx, db, ScopePlace, "act-2")
	require.NoError(t, err)
	assert.Nil(t, row, "a rolled back claim must not burn the key")

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		claim, err := guard.Claim(ctx, tx, ScopePlace, "act-2", nil)
		assert.True(t, claim.Fresh)
		return err
	}))
}

func TestClaimValidatesKey(t *testing.T) {
	db := newTestDB(t)
	guard := NewGuard()

	_, err := guard.Claim(context.Background(), db, ScopePlace, "  ", nil)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = guard.Claim(context.Background(), db, ScopePlace, strings.Repeat("x", 300), nil)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = guard.Claim(context.Background(), nil, ScopePlace, "ok", nil)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInternal))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "confirm:abc", Key(ScopeConfirm, " abc "))
}
