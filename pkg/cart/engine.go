package cart

import (
	"context"
	"fmt"
	"sync"
	"time"

	pkgerrors "github.com/angelmondragon/storefront-cart/pkg/errors"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
	"github.com/angelmondragon/storefront-cart/pkg/metrics"
	"github.com/angelmondragon/storefront-cart/pkg/session"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/semaphore"
)

const (
	opLoadCart    = "load_cart"
	opAddItem     = "add_item"
	opUpdateItem  = "update_item"
	opRemoveItem  = "remove_item"
	opClearCart   = "clear_cart"
	opCheckout    = "checkout"
	opSyncAPIData = "sync_api_data"
	opQuote       = "quote"
)

var errCartReset = pkgerrors.New(pkgerrors.CodeSessionInvalidated, "cart was reset while the operation was in flight")

// LoadOptions controls LoadCart.
type LoadOptions struct {
	// CustomerCode overrides the session customer when set.
	CustomerCode  string
	WarehouseCode string
	// ForceRefresh empties the local lines before the round trip.
	ForceRefresh bool
}

// Option customizes an Engine.
type Option func(*Engine)

func WithLogger(logg *logger.Logger) Option {
	return func(e *Engine) {
		if logg != nil {
			e.logg = logg
		}
	}
}

func WithMetrics(m *metrics.CartMetrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// Engine owns one cart. Every loading or mutating operation runs under a
// single-slot lock; the read accessors never wait for it.
type Engine struct {
	gateway    Gateway
	identity   IdentitySource
	submitter  Submitter
	normalizer *Normalizer
	logg       *logger.Logger
	metrics    *metrics.CartMetrics

	op *semaphore.Weighted

	mu           sync.RWMutex
	generation   uint64
	opGeneration uint64
	lines        []Line
	customerCode string
	loading      bool
	lastErr      error
}

// NewEngine builds an engine over the provided collaborators.
func NewEngine(gateway Gateway, identity IdentitySource, submitter Submitter, normalizer *Normalizer, opts ...Option) (*Engine, error) {
	if gateway == nil {
		return nil, fmt.Errorf("cart gateway required")
	}
	if identity == nil {
		return nil, fmt.Errorf("identity source required")
	}
	if submitter == nil {
		return nil, fmt.Errorf("order submitter required")
	}
	if normalizer == nil {
		return nil, fmt.Errorf("normalizer required")
	}
	e := &Engine{
		gateway:    gateway,
		identity:   identity,
		submitter:  submitter,
		normalizer: normalizer,
		logg:       logger.Nop(),
		op:         semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// LoadCart replaces the lines with the order service's view of the cart.
// With no resolvable customer it returns an empty cart and no error.
func (e *Engine) LoadCart(ctx context.Context, opts LoadOptions) (lines []Line, err error) {
	ctx, done, err := e.begin(ctx, opLoadCart)
	if err != nil {
		return nil, err
	}
	defer func() { done(err) }()

	id, err := e.resolveIdentity(ctx, opts.CustomerCode)
	if err != nil {
		return nil, err
	}
	if id.CustomerCode == "" {
		if err := e.commit(nil); err != nil {
			return nil, err
		}
		return []Line{}, nil
	}
	if opts.ForceRefresh {
		if err := e.commit(nil); err != nil {
			return nil, err
		}
	}
	return e.loadLocked(ctx, id.CustomerCode, opts.WarehouseCode)
}

// LoadCartForCustomer binds the engine to customerCode and loads its cart.
func (e *Engine) LoadCartForCustomer(ctx context.Context, customerCode string) ([]Line, error) {
	if customerCode == "" {
		return []Line{}, nil
	}
	e.mu.Lock()
	e.customerCode = customerCode
	e.mu.Unlock()
	return e.LoadCart(ctx, LoadOptions{CustomerCode: customerCode})
}

// AddItem sets the quantity of product in the cart. An existing (item, unit)
// line is updated in place with the absolute quantity; otherwise a line is inserted.
func (e *Engine) AddItem(ctx context.Context, product RawRecord, quantity int) (out Outcome, err error) {
	ctx, done, err := e.begin(ctx, opAddItem)
	if err != nil {
		return Outcome{}, err
	}
	defer func() { done(err) }()

	id, err := e.requireIdentity(ctx)
	if err != nil {
		return Outcome{}, err
	}
	itemCode, unitCode := e.normalizer.Key(product)
	if itemCode == "" {
		return Outcome{}, e.fail(pkgerrors.New(pkgerrors.CodeValidation, "item code is required"))
	}

	lines := e.Lines()
	for i, line := range lines {
		if !line.sameProduct(itemCode, unitCode) {
			continue
		}
		line.Quantity = clampQuantity(quantity)
		if err := e.push(ctx, id, line, nil); err != nil {
			return Outcome{}, err
		}
		lines[i] = line
		if err := e.commit(lines); err != nil {
			return Outcome{}, err
		}
		return Outcome{Success: true, Message: "cart item updated"}, nil
	}

	line := e.normalizer.FromRaw(product, 1)
	line.Quantity = clampQuantity(quantity)
	if err := e.push(ctx, id, line, &line); err != nil {
		return Outcome{}, err
	}
	if err := e.commit(append(lines, line)); err != nil {
		return Outcome{}, err
	}
	return Outcome{Success: true, Message: "item added to cart"}, nil
}

// UpdateItem replaces the quantity of the line matching ref by line id or item code.
// An unmatched ref is inserted as a new line.
func (e *Engine) UpdateItem(ctx context.Context, ref RawRecord) (out Outcome, err error) {
	ctx, done, err := e.begin(ctx, opUpdateItem)
	if err != nil {
		return Outcome{}, err
	}
	defer func() { done(err) }()

	id, err := e.requireIdentity(ctx)
	if err != nil {
		return Outcome{}, err
	}

	target := e.normalizer.Ref(ref)
	lines := e.Lines()
	if i := target.match(lines); i >= 0 {
		line := lines[i]
		if target.HasQuantity {
			line.Quantity = target.Quantity
		}
		if err := e.push(ctx, id, line, nil); err != nil {
			return Outcome{}, err
		}
		lines[i] = line
		if err := e.commit(lines); err != nil {
			return Outcome{}, err
		}
		return Outcome{Success: true, Message: "cart item updated"}, nil
	}
	if target.ItemCode == "" {
		return Outcome{}, e.fail(pkgerrors.New(pkgerrors.CodeValidation, "item code is required"))
	}

	line := e.normalizer.FromRaw(ref, 1)
	e.logg.Info(e.logg.WithField(ctx, "item_code", line.ItemCode), "update target not in cart, inserting")
	if err := e.push(ctx, id, line, &line); err != nil {
		return Outcome{}, err
	}
	if err := e.commit(append(lines, line)); err != nil {
		return Outcome{}, err
	}
	return Outcome{Success: true, Message: "cart item updated"}, nil
}

// RemoveItem deletes one line and reloads the cart whether or not the delete succeeded.
func (e *Engine) RemoveItem(ctx context.Context, lineID string) (out Outcome, err error) {
	ctx, done, err := e.begin(ctx, opRemoveItem)
	if err != nil {
		return Outcome{}, err
	}
	defer func() { done(err) }()

	id, err := e.requireIdentity(ctx)
	if err != nil {
		return Outcome{}, err
	}
	found := false
	for _, line := range e.Lines() {
		if line.LineID == lineID {
			found = true
			break
		}
	}
	if !found {
		return Outcome{}, e.fail(pkgerrors.New(pkgerrors.CodeNotFound, "item not found in cart").
			WithDetails(map[string]any{"guid_code": lineID}))
	}

	e.setLoading(true)
	err = e.gateway.DeleteLine(ctx, lineID, id.CustomerCode)
	e.setLoading(false)
	if err != nil {
		e.resync(ctx, id.CustomerCode)
		return Outcome{}, e.fail(err)
	}
	e.reloadAfterSuccess(ctx, id.CustomerCode)
	return Outcome{Success: true, Message: "item removed from cart"}, nil
}

// ClearCart empties the cart. An already empty cart succeeds without a round trip.
func (e *Engine) ClearCart(ctx context.Context) (out Outcome, err error) {
	ctx, done, err := e.begin(ctx, opClearCart)
	if err != nil {
		return Outcome{}, err
	}
	defer func() { done(err) }()

	id, err := e.requireIdentity(ctx)
	if err != nil {
		return Outcome{}, err
	}
	return e.clearLocked(ctx, id)
}

// Checkout submits the current lines as an order and then clears the cart.
// The clear is a follow-up step: if it fails the order still stands and the
// failure is recorded in LastError.
func (e *Engine) Checkout(ctx context.Context, input CheckoutInput) (out Outcome, err error) {
	ctx, done, err := e.begin(ctx, opCheckout)
	if err != nil {
		return Outcome{}, err
	}
	defer func() { done(err) }()

	id, err := e.requireIdentity(ctx)
	if err != nil {
		return Outcome{}, err
	}
	lines := e.Lines()
	if len(lines) == 0 {
		return Outcome{}, e.fail(pkgerrors.New(pkgerrors.CodeValidation, "cart is empty"))
	}

	e.setLoading(true)
	result, err := e.submitter.BuildAndSubmit(ctx, lines, input, id)
	e.setLoading(false)
	if err != nil {
		return Outcome{}, e.fail(err)
	}

	ctx = e.logg.WithOrderNumber(ctx, result.OrderNumber)
	e.logg.Info(ctx, "order submitted, clearing cart")
	if _, clearErr := e.clearLocked(ctx, id); clearErr != nil {
		e.logg.Error(ctx, "order placed but cart clear failed", clearErr)
	}
	return Outcome{Success: true, Message: "order placed", OrderNumber: result.OrderNumber}, nil
}

// SyncWithAPIData replaces the lines with items delivered by another flow.
// It makes no gateway call.
func (e *Engine) SyncWithAPIData(items []RawRecord) Outcome {
	ctx, done, err := e.begin(context.Background(), opSyncAPIData)
	if err != nil {
		return Outcome{Message: err.Error()}
	}
	defer done(nil)

	if err := e.commit(e.normalizer.FromRawList(items, 0)); err != nil {
		return Outcome{Message: err.Error()}
	}
	e.logg.Debug(ctx, "cart synced from external data")
	return Outcome{Success: true, Message: "cart synced"}
}

// Quote fetches the order service's confirmed pricing for the cart without
// changing the engine's state.
func (e *Engine) Quote(ctx context.Context) ([]Line, error) {
	ctx = e.logg.WithOperation(ctx, opQuote)
	id, err := e.identity.Identity(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read session identity")
	}
	e.mu.RLock()
	if e.customerCode != "" {
		id.CustomerCode = e.customerCode
	}
	e.mu.RUnlock()
	if id.CustomerCode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer is required")
	}
	prefs, err := e.identity.Preferences(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read session preferences")
	}
	rows, err := e.gateway.CartOrder(ctx, id.CustomerCode, prefs.SaleType)
	if err != nil {
		e.logg.Warn(e.logg.WithField(ctx, "error", err.Error()), "cart quote failed")
		return nil, err
	}
	return e.normalizer.FromRawList(rows, 0), nil
}

// Reset drops the lines, the bound customer and the last error. It never
// touches the gateway and never waits for the operation lock, so it is safe
// to call from session hooks fired while an operation is in flight. The
// in-flight operation then finds its generation stale and discards its result.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.generation++
	e.lines = nil
	e.customerCode = ""
	e.loading = false
	e.lastErr = nil
	e.mu.Unlock()
	e.metrics.SetLines(0)
}

// IsInCart reports whether any line carries itemCode.
func (e *Engine) IsInCart(itemCode string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, line := range e.lines {
		if line.ItemCode == itemCode {
			return true
		}
	}
	return false
}

// Lines returns a copy of the current lines in server order.
func (e *Engine) Lines() []Line {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return cloneLines(e.lines)
}

func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return State{
		Lines:        cloneLines(e.lines),
		Loading:      e.loading,
		LastError:    e.lastErr,
		CustomerCode: e.customerCode,
	}
}

func (e *Engine) TotalQuantity() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return totalQuantity(e.lines)
}

func (e *Engine) TotalAmount() decimal.Decimal {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return totalAmount(e.lines)
}

func (e *Engine) Loading() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loading
}

func (e *Engine) LastError() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastErr
}

// begin acquires the operation lock and returns the completion callback that
// releases it, logs the outcome and records metrics.
func (e *Engine) begin(ctx context.Context, op string) (context.Context, func(error), error) {
	ctx = e.logg.WithOperation(ctx, op)
	if err := e.op.Acquire(ctx, 1); err != nil {
		return ctx, nil, err
	}
	e.mu.Lock()
	e.lastErr = nil
	e.opGeneration = e.generation
	e.mu.Unlock()

	start := time.Now()
	e.logg.Debug(ctx, "cart operation started")
	return ctx, func(err error) {
		defer e.op.Release(1)
		e.metrics.ObserveOperation(op, time.Since(start), string(pkgerrors.CodeOf(err)), err != nil)
		if err != nil {
			e.logg.Warn(e.logg.WithField(ctx, "error", err.Error()), "cart operation failed")
			return
		}
		e.logg.Debug(ctx, "cart operation completed")
	}, nil
}

// resolveIdentity binds the operation to a customer. Callers must hold the operation lock.
func (e *Engine) resolveIdentity(ctx context.Context, override string) (session.Identity, error) {
	id, err := e.identity.Identity(ctx)
	if err != nil {
		return session.Identity{}, e.fail(pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read session identity"))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.generation != e.opGeneration {
		return session.Identity{}, errCartReset
	}
	switch {
	case override != "":
		id.CustomerCode = override
	case e.customerCode != "":
		id.CustomerCode = e.customerCode
	}
	e.customerCode = id.CustomerCode
	return id, nil
}

func (e *Engine) requireIdentity(ctx context.Context) (session.Identity, error) {
	id, err := e.resolveIdentity(ctx, "")
	if err != nil {
		return session.Identity{}, err
	}
	if id.CustomerCode == "" {
		return session.Identity{}, e.fail(pkgerrors.New(pkgerrors.CodeValidation, "customer is required"))
	}
	return id, nil
}

// push upserts line. When echo is non-nil it receives the line id the order
// service assigned, if any. A failed push resyncs the cart before returning.
func (e *Engine) push(ctx context.Context, id session.Identity, line Line, echo *Line) error {
	record := e.normalizer.ToWire(line, id)

	e.setLoading(true)
	rows, err := e.gateway.UpsertLines(ctx, []WireRecord{record})
	e.setLoading(false)
	if err != nil {
		e.resync(ctx, id.CustomerCode)
		return e.fail(err)
	}

	if echo != nil {
		echo.LineID = record.LineID
		for _, row := range rows {
			if row.first("item_code") != line.ItemCode {
				continue
			}
			if guid := row.first("guid_code"); guid != "" {
				echo.LineID = guid
				break
			}
		}
	}
	return nil
}

func (e *Engine) clearLocked(ctx context.Context, id session.Identity) (Outcome, error) {
	if len(e.Lines()) == 0 {
		return Outcome{Success: true, Message: "cart is already empty"}, nil
	}

	e.setLoading(true)
	err := e.gateway.ClearCart(ctx, id.CustomerCode)
	e.setLoading(false)
	if err != nil {
		e.resync(ctx, id.CustomerCode)
		return Outcome{}, e.fail(err)
	}
	e.reloadAfterSuccess(ctx, id.CustomerCode)
	return Outcome{Success: true, Message: "cart cleared"}, nil
}

func (e *Engine) loadLocked(ctx context.Context, customerCode, warehouseCode string) ([]Line, error) {
	prefs, err := e.identity.Preferences(ctx)
	if err != nil {
		e.logg.Warn(e.logg.WithField(ctx, "error", err.Error()), "session preferences unavailable")
	}

	e.setLoading(true)
	rows, err := e.gateway.ListCart(ctx, ListQuery{
		CustomerCode:  customerCode,
		WarehouseCode: warehouseCode,
		ShelfCode:     prefs.ShelfCode,
	})
	e.setLoading(false)
	if err != nil {
		_ = e.commit(nil)
		return []Line{}, e.fail(err)
	}

	lines := e.normalizer.FromRawList(rows, 0)
	if err := e.commit(lines); err != nil {
		return []Line{}, err
	}
	return cloneLines(lines), nil
}

// resync reloads after a failed mutation. The reload's own failure is only logged;
// the caller reports the mutation's error.
func (e *Engine) resync(ctx context.Context, customerCode string) {
	if _, err := e.loadLocked(ctx, customerCode, ""); err != nil {
		e.logg.Error(ctx, "cart resync after failure did not complete", err)
	}
}

// reloadAfterSuccess reloads after a successful mutation. A reload failure
// leaves LastError set but does not turn the mutation into a failure.
func (e *Engine) reloadAfterSuccess(ctx context.Context, customerCode string) {
	if _, err := e.loadLocked(ctx, customerCode, ""); err != nil {
		e.logg.Error(ctx, "cart reload after mutation failed", err)
	}
}

// commit publishes lines unless Reset ran since the operation began.
func (e *Engine) commit(lines []Line) error {
	e.mu.Lock()
	if e.generation != e.opGeneration {
		e.mu.Unlock()
		return errCartReset
	}
	e.lines = lines
	e.mu.Unlock()
	e.metrics.SetLines(len(lines))
	return nil
}

func (e *Engine) setLoading(v bool) {
	e.mu.Lock()
	e.loading = v
	e.mu.Unlock()
}

func (e *Engine) fail(err error) error {
	e.mu.Lock()
	e.lastErr = err
	e.mu.Unlock()
	return err
}

func cloneLines(lines []Line) []Line {
	if lines == nil {
		return nil
	}
	out := make([]Line, len(lines))
	copy(out, lines)
	return out
}
