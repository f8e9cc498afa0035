package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/angelmondragon/storefront-cart/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-cart/pkg/errors"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
)

// Event names a session lifecycle transition.
type Event string

const (
	EventLogin            Event = "login"
	EventCustomerSelected Event = "customer_selected"
	EventLogout           Event = "logout"
	EventInvalidated      Event = "invalidated"
)

// Hook observes session lifecycle transitions.
type Hook func(ctx context.Context, event Event)

// Profile is the user record returned by the login endpoints.
type Profile struct {
	UserCode  string `json:"user_code"`
	UserName  string `json:"user_name"`
	Address   string `json:"address"`
	Telephone string `json:"telephone"`
}

// Identity is the authenticated actor and, for employees, the customer being served.
type Identity struct {
	Kind         enums.IdentityKind
	CustomerCode string
	EmployeeCode string
	Customer     Profile
	Employee     Profile
}

// CreatorCode is the code stamped on cart rows: the employee when one is acting, else the customer.
func (i Identity) CreatorCode() string {
	if i.Kind == enums.IdentityKindEmployee && i.EmployeeCode != "" {
		return i.EmployeeCode
	}
	return i.CustomerCode
}

// Profile returns the active user's profile.
func (i Identity) Profile() Profile {
	if i.Kind == enums.IdentityKindEmployee {
		return i.Employee
	}
	return i.Customer
}

// Preferences are the per-terminal settings chosen after login.
type Preferences struct {
	InStockOnly bool
	ShelfCode   string
	SaleType    string
}

// Provider resolves the current identity from a Store and announces lifecycle changes.
type Provider struct {
	store Store
	logg  *logger.Logger

	mu    sync.RWMutex
	hooks []Hook
}

func NewProvider(store Store, logg *logger.Logger) *Provider {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Provider{store: store, logg: logg}
}

// OnChange registers hook for every lifecycle event.
func (p *Provider) OnChange(hook Hook) {
	if hook == nil {
		return
	}
	p.mu.Lock()
	p.hooks = append(p.hooks, hook)
	p.mu.Unlock()
}

// Identity reads the stored identity. Missing keys resolve to empty values.
func (p *Provider) Identity(ctx context.Context) (Identity, error) {
	var id Identity

	kind, err := p.get(ctx, KeyUserType)
	if err != nil {
		return Identity{}, err
	}
	if parsed, perr := enums.ParseIdentityKind(kind); perr == nil {
		id.Kind = parsed
	}
	if id.CustomerCode, err = p.get(ctx, KeyUserCode); err != nil {
		return Identity{}, err
	}
	if id.EmployeeCode, err = p.get(ctx, KeyEmpCode); err != nil {
		return Identity{}, err
	}
	if id.Customer, err = p.profile(ctx, KeyUserData); err != nil {
		return Identity{}, err
	}
	if id.Employee, err = p.profile(ctx, KeyEmpData); err != nil {
		return Identity{}, err
	}
	return id, nil
}

// CustomerCode returns the customer the cart belongs to, or "" when none is bound.
func (p *Provider) CustomerCode(ctx context.Context) (string, error) {
	return p.get(ctx, KeyUserCode)
}

// EmployeeCode returns the acting employee, or "".
func (p *Provider) EmployeeCode(ctx context.Context) (string, error) {
	return p.get(ctx, KeyEmpCode)
}

func (p *Provider) Preferences(ctx context.Context) (Preferences, error) {
	stock, err := p.get(ctx, KeyInStock)
	if err != nil {
		return Preferences{}, err
	}
	shelf, err := p.get(ctx, KeyShelfCode)
	if err != nil {
		return Preferences{}, err
	}
	saleType, err := p.get(ctx, KeySaleType)
	if err != nil {
		return Preferences{}, err
	}
	return Preferences{InStockOnly: stock == "1", ShelfCode: shelf, SaleType: saleType}, nil
}

func (p *Provider) SetPreferences(ctx context.Context, prefs Preferences) error {
	stock := "0"
	if prefs.InStockOnly {
		stock = "1"
	}
	if err := p.store.Set(ctx, KeyInStock, stock); err != nil {
		return err
	}
	if err := p.setOrDel(ctx, KeyShelfCode, prefs.ShelfCode); err != nil {
		return err
	}
	return p.setOrDel(ctx, KeySaleType, prefs.SaleType)
}

// LoginCustomer binds a customer identity and clears any employee state.
func (p *Provider) LoginCustomer(ctx context.Context, profile Profile) error {
	code := strings.TrimSpace(profile.UserCode)
	if code == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer code is required")
	}
	data, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	if err := p.store.Del(ctx, KeyEmpCode, KeyEmpData); err != nil {
		return err
	}
	if err := p.setAll(ctx, map[string]string{
		KeyUserType: enums.IdentityKindCustomer.String(),
		KeyUserCode: code,
		KeyUserData: string(data),
	}); err != nil {
		return err
	}
	p.emit(p.logg.WithCustomerCode(ctx, code), EventLogin)
	return nil
}

// LoginEmployee binds an employee identity. No customer is selected until SelectCustomer.
func (p *Provider) LoginEmployee(ctx context.Context, profile Profile) error {
	code := strings.TrimSpace(profile.UserCode)
	if code == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "employee code is required")
	}
	data, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	if err := p.store.Del(ctx, KeyUserCode, KeyUserData); err != nil {
		return err
	}
	if err := p.setAll(ctx, map[string]string{
		KeyUserType: enums.IdentityKindEmployee.String(),
		KeyEmpCode:  code,
		KeyEmpData:  string(data),
	}); err != nil {
		return err
	}
	p.emit(p.logg.WithField(ctx, "emp_code", code), EventLogin)
	return nil
}

// SelectCustomer binds the customer an employee is ordering for.
func (p *Provider) SelectCustomer(ctx context.Context, profile Profile) error {
	code := strings.TrimSpace(profile.UserCode)
	if code == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer code is required")
	}
	data, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	if err := p.setAll(ctx, map[string]string{
		KeyUserCode: code,
		KeyUserData: string(data),
	}); err != nil {
		return err
	}
	p.emit(p.logg.WithCustomerCode(ctx, code), EventCustomerSelected)
	return nil
}

// Logout removes the identity. Terminal preferences survive.
func (p *Provider) Logout(ctx context.Context) error {
	if err := p.store.Del(ctx, identityKeys()...); err != nil {
		return err
	}
	p.emit(ctx, EventLogout)
	return nil
}

// Invalidate evicts an identity the backend no longer recognizes.
func (p *Provider) Invalidate(ctx context.Context) error {
	if err := p.store.Del(ctx, identityKeys()...); err != nil {
		return err
	}
	p.logg.Warn(ctx, "session invalidated by backend")
	p.emit(ctx, EventInvalidated)
	return nil
}

func (p *Provider) emit(ctx context.Context, event Event) {
	p.mu.RLock()
	hooks := make([]Hook, len(p.hooks))
	copy(hooks, p.hooks)
	p.mu.RUnlock()

	p.logg.Info(p.logg.WithField(ctx, "event", string(event)), "session changed")
	for _, hook := range hooks {
		hook(ctx, event)
	}
}

func (p *Provider) get(ctx context.Context, key string) (string, error) {
	value, err := p.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return value, err
}

func (p *Provider) profile(ctx context.Context, key string) (Profile, error) {
	raw, err := p.get(ctx, key)
	if err != nil || raw == "" {
		return Profile{}, err
	}
	var profile Profile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		p.logg.Warn(p.logg.WithField(ctx, "key", key), "ignoring malformed session profile")
		return Profile{}, nil
	}
	return profile, nil
}

func (p *Provider) setAll(ctx context.Context, values map[string]string) error {
	for key, value := range values {
		if err := p.store.Set(ctx, key, value); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provider) setOrDel(ctx context.Context, key, value string) error {
	if value == "" {
		return p.store.Del(ctx, key)
	}
	return p.store.Set(ctx, key, value)
}
