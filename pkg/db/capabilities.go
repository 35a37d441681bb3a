package db

import (
	"context"

	"github.com/angelmondragon/stockroute-backend/pkg/logger"
)

// Capabilities records optional schema features. They are resolved once at
// startup so request paths never probe the catalog.
type Capabilities struct {
	SalesUserID bool
}

// ResolveCapabilities inspects the live schema and caches the result on the client.
func (c *Client) ResolveCapabilities(ctx context.Context, logg *logger.Logger) Capabilities {
	migrator := c.conn.WithContext(ctx).Migrator()
	c.caps = Capabilities{
		SalesUserID: migrator.HasColumn("sales", "user_id"),
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "sales_user_id", c.caps.SalesUserID), "schema capabilities resolved")
	}
	return c.caps
}
