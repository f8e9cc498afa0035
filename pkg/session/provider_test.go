package session

import (
	"context"
	"sync"
	"testing"

	"github.com/angelmondragon/storefront-cart/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-cart/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) hook(_ context.Context, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func TestProviderEmptySessionResolvesToBlankIdentity(t *testing.T) {
	p := NewProvider(NewMemoryStore(), nil)
	id, err := p.Identity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Identity{}, id)

	code, err := p.CustomerCode(context.Background())
	require.NoError(t, err)
	assert.Empty(t, code)
}

func TestProviderCustomerLogin(t *testing.T) {
	ctx := context.Background()
	rec := &eventRecorder{}
	p := NewProvider(NewMemoryStore(), nil)
	p.OnChange(rec.hook)

	require.NoError(t, p.LoginCustomer(ctx, Profile{UserCode: " C001 ", UserName: "Somchai", Telephone: "0812345678"}))

	id, err := p.Identity(ctx)
	require.NoError(t, err)
	assert.Equal(t, enums.IdentityKindCustomer, id.Kind)
	assert.Equal(t, "C001", id.CustomerCode)
	assert.Equal(t, "C001", id.CreatorCode())
	assert.Equal(t, "Somchai", id.Profile().UserName)
	assert.Equal(t, []Event{EventLogin}, rec.events)
}

func TestProviderEmployeeActsForCustomer(t *testing.T) {
	ctx := context.Background()
	rec := &eventRecorder{}
	store := NewMemoryStore()
	p := NewProvider(store, nil)
	p.OnChange(rec.hook)

	require.NoError(t, p.LoginCustomer(ctx, Profile{UserCode: "C001"}))
	require.NoError(t, p.LoginEmployee(ctx, Profile{UserCode: "E07", UserName: "Staff"}))

	code, err := p.CustomerCode(ctx)
	require.NoError(t, err)
	assert.Empty(t, code, "employee login clears the previous customer")

	require.NoError(t, p.SelectCustomer(ctx, Profile{UserCode: "C009", Address: "Bangkok"}))
	id, err := p.Identity(ctx)
	require.NoError(t, err)
	assert.Equal(t, enums.IdentityKindEmployee, id.Kind)
	assert.Equal(t, "C009", id.CustomerCode)
	assert.Equal(t, "E07", id.CreatorCode())
	assert.Equal(t, "Staff", id.Profile().UserName)
	assert.Equal(t, "Bangkok", id.Customer.Address)
	assert.Equal(t, []Event{EventLogin, EventLogin, EventCustomerSelected}, rec.events)
}

func TestProviderLogoutAndInvalidateKeepPreferences(t *testing.T) {
	ctx := context.Background()
	rec := &eventRecorder{}
	p := NewProvider(NewMemoryStore(), nil)
	p.OnChange(rec.hook)

	require.NoError(t, p.SetPreferences(ctx, Preferences{InStockOnly: true, ShelfCode: "SH102", SaleType: "1"}))
	require.NoError(t, p.LoginCustomer(ctx, Profile{UserCode: "C001"}))
	require.NoError(t, p.Invalidate(ctx))

	id, err := p.Identity(ctx)
	require.NoError(t, err)
	assert.Empty(t, id.CustomerCode)

	prefs, err := p.Preferences(ctx)
	require.NoError(t, err)
	assert.Equal(t, Preferences{InStockOnly: true, ShelfCode: "SH102", SaleType: "1"}, prefs)

	require.NoError(t, p.LoginCustomer(ctx, Profile{UserCode: "C002"}))
	require.NoError(t, p.Logout(ctx))
	assert.Equal(t, []Event{EventLogin, EventInvalidated, EventLogin, EventLogout}, rec.events)
}

func TestProviderRejectsBlankCodes(t *testing.T) {
	p := NewProvider(NewMemoryStore(), nil)
	err := p.LoginCustomer(context.Background(), Profile{UserCode: "  "})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	err = p.SelectCustomer(context.Background(), Profile{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestProviderIgnoresMalformedProfile(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Set(ctx, KeyUserCode, "C001"))
	require.NoError(t, store.Set(ctx, KeyUserData, "{not json"))

	id, err := NewProvider(store, nil).Identity(ctx)
	require.NoError(t, err)
	assert.Equal(t, "C001", id.CustomerCode)
	assert.Equal(t, Profile{}, id.Customer)
}

func TestSetPreferencesClearsBlankValues(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	p := NewProvider(store, nil)
	require.NoError(t, p.SetPreferences(ctx, Preferences{ShelfCode: "SH1"}))
	require.NoError(t, p.SetPreferences(ctx, Preferences{}))

	_, err := store.Get(ctx, KeyShelfCode)
	require.ErrorIs(t, err, ErrNotFound)
	stock, err := store.Get(ctx, KeyInStock)
	require.NoError(t, err)
	assert.Equal(t, "0", stock)
}
