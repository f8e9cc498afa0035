package cart

import (
	"context"

	"github.com/angelmondragon/storefront-cart/pkg/session"
)

// Gateway is the order service surface the engine mutates and reads through.
// Failures are *errors.Error values: REMOTE_ERROR for transport, status and
// success=false failures, LOGIN_REQUIRED when the customer is unknown.
type Gateway interface {
	UpsertLines(ctx context.Context, records []WireRecord) ([]RawRecord, error)
	ListCart(ctx context.Context, query ListQuery) ([]RawRecord, error)
	DeleteLine(ctx context.Context, lineID, customerCode string) error
	ClearCart(ctx context.Context, customerCode string) error
	CartOrder(ctx context.Context, customerCode, saleType string) ([]RawRecord, error)
}

// ListQuery scopes a cart listing.
type ListQuery struct {
	CustomerCode  string
	WarehouseCode string
	ShelfCode     string
}

// IdentitySource resolves who the cart belongs to.
type IdentitySource interface {
	Identity(ctx context.Context) (session.Identity, error)
	Preferences(ctx context.Context) (session.Preferences, error)
}

// Submitter builds and submits an order for the given lines.
type Submitter interface {
	BuildAndSubmit(ctx context.Context, lines []Line, input CheckoutInput, id session.Identity) (CheckoutResult, error)
}
