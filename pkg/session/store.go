package session

import (
	"context"
	"errors"
)

// Keys persisted by the storefront session.
const (
	KeyUserCode  = "_userCode"
	KeyEmpCode   = "_empCode"
	KeyUserData  = "_userData"
	KeyEmpData   = "_empData"
	KeyUserType  = "_userType"
	KeyInStock   = "_isstock"
	KeyShelfCode = "_shelf_code"
	KeySaleType  = "_saleType"
)

// ErrNotFound is returned by Store.Get when the key has never been set or was deleted.
var ErrNotFound = errors.New("session: key not found")

// Store is the key/value persistence behind a terminal session.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Del(ctx context.Context, keys ...string) error
}

func identityKeys() []string {
	return []string{KeyUserType, KeyUserCode, KeyEmpCode, KeyUserData, KeyEmpData}
}
