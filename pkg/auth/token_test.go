package auth

import (
	"testing"
	"time"

	"github.com/angelmondragon/stockroute-backend/pkg/config"
	"github.com/golang-jwt/jwt/v5"
)

func TestMintAndParseOperatorToken(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "stockroute"}
	branch := int64(7)

	token, err := MintOperatorToken(cfg, time.Now().UTC(), 30*time.Minute, "op-1", RoleOperator, &branch)
	if err != nil {
		t.Fatalf("mint operator token: %v", err)
	}

	claims, err := ParseOperatorToken(cfg, token)
	if err != nil {
		t.Fatalf("parse operator token: %v", err)
	}
	if claims.OperatorID != "op-1" {
		t.Fatalf("unexpected operator id %q", claims.OperatorID)
	}
	if claims.Role != RoleOperator {
		t.Fatalf("unexpected role %s", claims.Role)
	}
	if claims.BranchID == nil || *claims.BranchID != branch {
		t.Fatalf("branch id not preserved")
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("unexpected issuer %q", claims.Issuer)
	}
}

func TestParseOperatorTokenRejectsWrongIssuerAndExpiry(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "stockroute"}

	token, err := MintOperatorToken(cfg, time.Now().UTC(), time.Minute, "op-1", RoleAdmin, nil)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseOperatorToken(config.JWTConfig{Secret: "secret", Issuer: "other"}, token); err == nil {
		t.Fatalf("expected issuer mismatch to fail")
	}
	if _, err := ParseOperatorToken(config.JWTConfig{Secret: "nope", Issuer: "stockroute"}, token); err == nil {
		t.Fatalf("expected signature mismatch to fail")
	}

	expired, err := MintOperatorToken(cfg, time.Now().Add(-2*time.Hour), time.Minute, "op-1", RoleAdmin, nil)
	if err != nil {
		t.Fatalf("mint expired: %v", err)
	}
	if _, err := ParseOperatorToken(cfg, expired); err == nil {
		t.Fatalf("expected expired token to fail")
	}
}

func TestParseOperatorTokenRejectsUnknownRole(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "stockroute"}
	claims := OperatorClaims{
		OperatorID: "op-1",
		Role:       Role("customer"),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwtSigningMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseOperatorToken(cfg, token); err == nil {
		t.Fatalf("expected unknown role to be rejected")
	}
}

func TestMintOperatorTokenValidatesInput(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "stockroute"}
	if _, err := MintOperatorToken(cfg, time.Now(), time.Minute, "", RoleAdmin, nil); err == nil {
		t.Fatalf("expected missing operator id error")
	}
	if _, err := MintOperatorToken(cfg, time.Now(), 0, "op", RoleAdmin, nil); err == nil {
		t.Fatalf("expected ttl error")
	}
	if _, err := MintOperatorToken(config.JWTConfig{Issuer: "x"}, time.Now(), time.Minute, "op", RoleAdmin, nil); err == nil {
		t.Fatalf("expected secret error")
	}
}
