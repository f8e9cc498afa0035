package cart

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-cart/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-cart/pkg/errors"
	"github.com/angelmondragon/storefront-cart/pkg/session"
	"github.com/shopspring/decimal"
)

// fakeServer mimics the order service's cart table: rows are keyed by
// (customer, item, unit) and an upsert replaces the stored quantity.
type fakeServer struct {
	mu    sync.Mutex
	rows  map[string][]WireRecord
	seq   int
	calls map[string]int

	failUpsert error
	failList   error
	failDelete error
	failClear  error
	quote      []RawRecord

	upsertDelay time.Duration
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeServer() *fakeServer {
	return &fakeServer{rows: make(map[string][]WireRecord), calls: make(map[string]int)}
}

func (s *fakeServer) seed(customer string, records ...WireRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		rec.CustomerCode = customer
		s.rows[customer] = append(s.rows[customer], rec)
	}
}

func (s *fakeServer) count(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

func (s *fakeServer) enter(method string) func() {
	n := s.inFlight.Add(1)
	for {
		cur := s.maxInFlight.Load()
		if n <= cur || s.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	s.mu.Lock()
	s.calls[method]++
	s.mu.Unlock()
	return func() { s.inFlight.Add(-1) }
}

func (s *fakeServer) UpsertLines(_ context.Context, records []WireRecord) ([]RawRecord, error) {
	defer s.enter("upsert")()
	if s.upsertDelay > 0 {
		time.Sleep(s.upsertDelay)
	}
	if s.failUpsert != nil {
		return nil, s.failUpsert
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RawRecord, 0, len(records))
	for _, rec := range records {
		rows := s.rows[rec.CustomerCode]
		replaced := false
		for i := range rows {
			if rows[i].ItemCode == rec.ItemCode && rows[i].UnitCode == rec.UnitCode {
				rows[i].Quantity = rec.Quantity
				rec = rows[i]
				replaced = true
				break
			}
		}
		if !replaced {
			s.seq++
			rec.LineID = fmt.Sprintf("srv-%d", s.seq)
			rows = append(rows, rec)
		}
		s.rows[rec.CustomerCode] = rows
		out = append(out, toRaw(rec))
	}
	return out, nil
}

func (s *fakeServer) ListCart(_ context.Context, q ListQuery) ([]RawRecord, error) {
	defer s.enter("list")()
	if s.failList != nil {
		return nil, s.failList
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RawRecord, 0, len(s.rows[q.CustomerCode]))
	for _, rec := range s.rows[q.CustomerCode] {
		out = append(out, toRaw(rec))
	}
	return out, nil
}

func (s *fakeServer) DeleteLine(_ context.Context, lineID, customer string) error {
	defer s.enter("delete")()
	if s.failDelete != nil {
		return s.failDelete
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.rows[customer][:0]
	for _, rec := range s.rows[customer] {
		if rec.LineID != lineID {
			rows = append(rows, rec)
		}
	}
	s.rows[customer] = rows
	return nil
}

func (s *fakeServer) ClearCart(_ context.Context, customer string) error {
	defer s.enter("clear")()
	if s.failClear != nil {
		return s.failClear
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, customer)
	return nil
}

func (s *fakeServer) CartOrder(_ context.Context, _ string, _ string) ([]RawRecord, error) {
	defer s.enter("cart_order")()
	return s.quote, nil
}

func toRaw(rec WireRecord) RawRecord {
	return RawRecord{
		"guid_code":       rec.LineID,
		"item_code":       rec.ItemCode,
		"item_name":       rec.ItemName,
		"unit_code":       rec.UnitCode,
		"qty":             rec.Quantity,
		"price":           rec.Price,
		"wh_code":         rec.WarehouseCode,
		"shelf_code":      rec.ShelfCode,
		"tax_type":        rec.TaxType,
		"cust_code":       rec.CustomerCode,
		"create_datetime": rec.CreateDatetime,
	}
}

type staticIdentity struct {
	id    session.Identity
	prefs session.Preferences
	err   error
}

func (s *staticIdentity) Identity(context.Context) (session.Identity, error) {
	return s.id, s.err
}

func (s *staticIdentity) Preferences(context.Context) (session.Preferences, error) {
	return s.prefs, nil
}

type stubSubmitter struct {
	mu     sync.Mutex
	calls  int
	lines  []Line
	number string
	err    error
	hook   func(ctx context.Context)
}

func (s *stubSubmitter) BuildAndSubmit(ctx context.Context, lines []Line, _ CheckoutInput, _ session.Identity) (CheckoutResult, error) {
	s.mu.Lock()
	s.calls++
	s.lines = lines
	s.mu.Unlock()
	if s.hook != nil {
		s.hook(ctx)
	}
	if s.err != nil {
		return CheckoutResult{}, s.err
	}
	return CheckoutResult{OrderNumber: s.number}, nil
}

func customerIdentity(code string) *staticIdentity {
	return &staticIdentity{id: session.Identity{Kind: enums.IdentityKindCustomer, CustomerCode: code}}
}

func newTestEngine(t *testing.T, gw Gateway, identity IdentitySource, sub Submitter) *Engine {
	t.Helper()
	if sub == nil {
		sub = &stubSubmitter{number: "PFX20260504ABC12"}
	}
	e, err := NewEngine(gw, identity, sub, newTestNormalizer())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func product(item, price string) RawRecord {
	return RawRecord{"item_code": item, "item_name": "Item " + item, "unit_code": "EA", "price": price}
}

func assertTotalsConsistent(t *testing.T, e *Engine) {
	t.Helper()
	qty := 0
	amount := decimal.Zero
	for _, line := range e.Lines() {
		qty += line.Quantity
		amount = amount.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	if e.TotalQuantity() != qty {
		t.Fatalf("total quantity %d does not match lines %d", e.TotalQuantity(), qty)
	}
	if !e.TotalAmount().Equal(amount) {
		t.Fatalf("total amount %s does not match lines %s", e.TotalAmount(), amount)
	}
}

func assertUniqueProducts(t *testing.T, e *Engine) {
	t.Helper()
	seen := map[string]bool{}
	for _, line := range e.Lines() {
		key := line.ItemCode + "|" + line.UnitCode
		if seen[key] {
			t.Fatalf("duplicate line for %s", key)
		}
		seen[key] = true
	}
}

func TestNewEngineRequiresCollaborators(t *testing.T) {
	t.Parallel()
	n := newTestNormalizer()
	if _, err := NewEngine(nil, customerIdentity("C001"), &stubSubmitter{}, n); err == nil {
		t.Fatalf("expected gateway error")
	}
	if _, err := NewEngine(newFakeServer(), nil, &stubSubmitter{}, n); err == nil {
		t.Fatalf("expected identity error")
	}
	if _, err := NewEngine(newFakeServer(), customerIdentity("C001"), nil, n); err == nil {
		t.Fatalf("expected submitter error")
	}
	if _, err := NewEngine(newFakeServer(), customerIdentity("C001"), &stubSubmitter{}, nil); err == nil {
		t.Fatalf("expected normalizer error")
	}
}

func TestLoadCartWithoutCustomerIsEmpty(t *testing.T) {
	t.Parallel()
	srv := newFakeServer()
	e := newTestEngine(t, srv, &staticIdentity{}, nil)

	lines, err := e.LoadCart(context.Background(), LoadOptions{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(lines) != 0 {
		t.Fatalf("expected empty cart, got %d lines", len(lines))
	}
	if srv.count("list") != 0 {
		t.Fatalf("no gateway call expected without a customer")
	}
}

func TestLoadCartNormalizesServerRows(t *testing.T) {
	t.Parallel()
	srv := newFakeServer()
	srv.seed("C001",
		WireRecord{LineID: "g1", ItemCode: "A", UnitCode: "EA", Quantity: "2", Price: "10.25"},
		WireRecord{LineID: "g2", ItemCode: "B", UnitCode: "EA", Quantity: "1", Price: "3", TaxType: "1"},
	)
	e := newTestEngine(t, srv, customerIdentity("C001"), nil)

	lines, err := e.LoadCart(context.Background(), LoadOptions{})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(lines) != 2 || lines[0].LineID != "g1" || lines[1].TaxType != enums.TaxTypeExempt {
		t.Fatalf("unexpected lines %+v", lines)
	}
	if !e.TotalAmount().Equal(decimal.RequireFromString("23.5")) || e.TotalQuantity() != 3 {
		t.Fatalf("unexpected totals %s/%d", e.TotalAmount(), e.TotalQuantity())
	}
	if e.State().CustomerCode != "C001" {
		t.Fatalf("expected engine bound to C001")
	}
}

func TestLoadCartFailureClearsLines(t *testing.T) {
	t.Parallel()
	srv := newFakeServer()
	srv.seed("C001", WireRecord{LineID: "g1", ItemCode: "A", UnitCode: "EA", Quantity: "2", Price: "1"})
	e := newTestEngine(t, srv, customerIdentity("C001"), nil)
	if _, err := e.LoadCart(context.Background(), LoadOptions{}); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	srv.failList = pkgerrors.RemoteStatus(http.StatusBadGateway, "upstream down")
	lines, err := e.LoadCart(context.Background(), LoadOptions{})
	if !pkgerrors.IsCode(err, pkgerrors.CodeRemote) {
		t.Fatalf("expected remote error, got %v", err)
	}
	if lines == nil || len(lines) != 0 || len(e.Lines()) != 0 {
		t.Fatalf("expected cart emptied on failed load")
	}
	if e.LastError() == nil || e.Loading() {
		t.Fatalf("expected last error set and loading cleared")
	}
}

func TestLoadCartForCustomerOverridesSession(t *testing.T) {
	t.Parallel()
	srv := newFakeServer()
	srv.seed("C777", WireRecord{LineID: "g1", ItemCode: "A", UnitCode: "EA", Quantity: "1", Price: "1"})
	e := newTestEngine(t, srv, customerIdentity("C001"), nil)

	lines, err := e.LoadCartForCustomer(context.Background(), "C777")
	if err != nil || len(lines) != 1 {
		t.Fatalf("expected C777 cart, got %v %v", lines, err)
	}
	if _, err := e.AddItem(context.Background(), product("B", "2"), 1); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if len(srv.rows["C777"]) != 2 || len(srv.rows["C001"]) != 0 {
		t.Fatalf("mutations should follow the bound customer")
	}
}

func TestAddItemReplacesQuantity(t *testing.T) {
	t.Parallel()
	srv := newFakeServer()
	e := newTestEngine(t, srv, customerIdentity("C001"), nil)
	ctx := context.Background()

	out, err := e.AddItem(ctx, product("A", "10"), 3)
	if err != nil || !out.Success {
		t.Fatalf("first add failed: %v %+v", err, out)
	}
	if _, err := e.AddItem(ctx, product("A", "10"), 5); err != nil {
		t.Fatalf("second add failed: %v", err)
	}

	lines := e.Lines()
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %d", len(lines))
	}
	if lines[0].Quantity != 5 {
		t.Fatalf("expected absolute quantity 5, got %d", lines[0].Quantity)
	}
	if lines[0].LineID != "srv-1" {
		t.Fatalf("expected server assigned line id, got %q", lines[0].LineID)
	}
	if !e.IsInCart("A") || e.IsInCart("B") {
		t.Fatalf("unexpected IsInCart result")
	}
	assertUniqueProducts(t, e)
	assertTotalsConsistent(t, e)
}

func TestAddItemDifferentUnitsAreSeparateLines(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, newFakeServer(), customerIdentity("C001"), nil)
	ctx := context.Background()

	box := product("A", "100")
	box["unit_code"] = "BOX"
	if _, err := e.AddItem(ctx, product("A", "10"), 1); err != nil {
		t.Fatalf("add EA failed: %v", err)
	}
	if _, err := e.AddItem(ctx, box, 1); err != nil {
		t.Fatalf("add BOX failed: %v", err)
	}
	if len(e.Lines()) != 2 {
		t.Fatalf("expected two lines, got %d", len(e.Lines()))
	}
	assertUniqueProducts(t, e)
}

func TestAddItemValidation(t *testing.T) {
	t.Parallel()
	srv := newFakeServer()
	ctx := context.Background()

	anon := newTestEngine(t, srv, &staticIdentity{}, nil)
	if _, err := anon.AddItem(ctx, product("A", "1"), 1); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error without customer, got %v", err)
	}

	e := newTestEngine(t, srv, customerIdentity("C001"), nil)
	if _, err := e.AddItem(ctx, RawRecord{"price": "1"}, 1); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error without item code, got %v", err)
	}
	if srv.count("upsert") != 0 {
		t.Fatalf("validation failures must not reach the gateway")
	}
}

func TestAddItemFailureResyncsFromServer(t *testing.T) {
	t.Parallel()
	srv := newFakeServer()
	e := newTestEngine(t, srv, customerIdentity("C001"), nil)
	ctx := context.Background()
	if _, err := e.AddItem(ctx, product("A", "10"), 2); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	srv.seed("C001", WireRecord{LineID: "other", ItemCode: "Z", UnitCode: "EA", Quantity: "1", Price: "1"})
	srv.failUpsert = pkgerrors.RemoteNetwork(fmt.Errorf("connection reset"))

	if _, err := e.AddItem(ctx, product("A", "10"), 9); !pkgerrors.IsCode(err, pkgerrors.CodeRemote) {
		t.Fatalf("expected remote error, got %v", err)
	}
	lines := e.Lines()
	if len(lines) != 2 || lines[0].Quantity != 2 || !e.IsInCart("Z") {
		t.Fatalf("expected cart resynced to server view, got %+v", lines)
	}
	if e.LastError() == nil {
		t.Fatalf("expected last error recorded")
	}
}

func TestUpdateItemMatchesByLineIDOrItemCode(t *testing.T) {
	t.Parallel()
	srv := newFakeServer()
	e := newTestEngine(t, srv, customerIdentity("C001"), nil)
	ctx := context.Background()
	if _, err := e.AddItem(ctx, product("A", "10"), 1); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	if _, err := e.UpdateItem(ctx, RawRecord{"guid_code": "srv-1", "qty": 4}); err != nil {
		t.Fatalf("update by id failed: %v", err)
	}
	if got := e.Lines()[0].Quantity; got != 4 {
		t.Fatalf("expected 4, got %d", got)
	}

	if _, err := e.UpdateItem(ctx, RawRecord{"item_code": "A", "quantity": "7"}); err != nil {
		t.Fatalf("update by item failed: %v", err)
	}
	if got := e.Lines()[0].Quantity; got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
	if srv.rows["C001"][0].Quantity != "7" {
		t.Fatalf("server should hold 7, got %s", srv.rows["C001"][0].Quantity)
	}

	if _, err := e.UpdateItem(ctx, RawRecord{"item_code": "A"}); err != nil {
		t.Fatalf("update without quantity failed: %v", err)
	}
	if got := e.Lines()[0].Quantity; got != 7 {
		t.Fatalf("missing quantity should keep 7, got %d", got)
	}
	assertTotalsConsistent(t, e)
}

func TestUpdateItemUnmatchedInserts(t *testing.T) {
	t.Parallel()
	srv := newFakeServer()
	e := newTestEngine(t, srv, customerIdentity("C001"), nil)

	out, err := e.UpdateItem(context.Background(), RawRecord{"item_code": "N", "unit_code": "EA", "qty": 3, "price": "2"})
	if err != nil || !out.Success {
		t.Fatalf("fallback insert failed: %v", err)
	}
	lines := e.Lines()
	if len(lines) != 1 || lines[0].ItemCode != "N" || lines[0].Quantity != 3 {
		t.Fatalf("unexpected lines %+v", lines)
	}
	if len(srv.rows["C001"]) != 1 {
		t.Fatalf("expected row on server")
	}
}

func TestRemoveItem(t *testing.T) {
	t.Parallel()
	srv := newFakeServer()
	e := newTestEngine(t, srv, customerIdentity("C001"), nil)
	ctx := context.Background()
	for _, item := range []string{"A", "B"} {
		if _, err := e.AddItem(ctx, product(item, "1"), 1); err != nil {
			t.Fatalf("add %s failed: %v", item, err)
		}
	}

	if _, err := e.RemoveItem(ctx, "missing"); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if srv.count("delete") != 0 {
		t.Fatalf("unknown line must not reach the gateway")
	}

	out, err := e.RemoveItem(ctx, "srv-1")
	if err != nil || !out.Success {
		t.Fatalf("remove failed: %v", err)
	}
	if e.IsInCart("A") || !e.IsInCart("B") {
		t.Fatalf("expected only B to remain, got %+v", e.Lines())
	}
	if srv.count("list") == 0 {
		t.Fatalf("expected reload after remove")
	}
}

func TestRemoveItemFailureResyncs(t *testing.T) {
	t.Parallel()
	srv := newFakeServer()
	e := newTestEngine(t, srv, customerIdentity("C001"), nil)
	ctx := context.Background()
	for _, item := range []string{"A", "B"} {
		if _, err := e.AddItem(ctx, product(item, "1"), 1); err != nil {
			t.Fatalf("add %s failed: %v", item, err)
		}
	}
	// another terminal removed B meanwhile
	srv.rows["C001"] = srv.rows["C001"][:1]
	srv.failDelete = pkgerrors.RemoteStatus(http.StatusInternalServerError, "boom")

	if _, err := e.RemoveItem(ctx, "srv-1"); !pkgerrors.IsCode(err, pkgerrors.CodeRemote) {
		t.Fatalf("expected remote error, got %v", err)
	}
	if len(e.Lines()) != 1 || !e.IsInCart("A") || e.IsInCart("B") {
		t.Fatalf("expected server view after failed remove, got %+v", e.Lines())
	}
}

func TestMutationSucceedsWhenReloadFails(t *testing.T) {
	t.Parallel()
	srv := newFakeServer()
	e := newTestEngine(t, srv, customerIdentity("C001"), nil)
	ctx := context.Background()
	if _, err := e.AddItem(ctx, product("A", "1"), 1); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	srv.failList = pkgerrors.RemoteNetwork(fmt.Errorf("timeout"))
	out, err := e.RemoveItem(ctx, "srv-1")
	if err != nil || !out.Success {
		t.Fatalf("remove should succeed despite reload failure: %v", err)
	}
	if !pkgerrors.IsCode(e.LastError(), pkgerrors.CodeRemote) {
		t.Fatalf("expected reload failure in last error, got %v", e.LastError())
	}
}

func TestClearCart(t *testing.T) {
	t.Parallel()
	srv := newFakeServer()
	e := newTestEngine(t, srv, customerIdentity("C001"), nil)
	ctx := context.Background()

	out, err := e.ClearCart(ctx)
	if err != nil || !out.Success {
		t.Fatalf("clearing an empty cart should succeed: %v", err)
	}
	if srv.count("clear") != 0 {
		t.Fatalf("empty cart must not reach the gateway")
	}

	if _, err := e.AddItem(ctx, product("A", "1"), 2); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := e.ClearCart(ctx); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if len(e.Lines()) != 0 || srv.count("clear") != 1 {
		t.Fatalf("expected cart cleared remotely and locally")
	}
	assertTotalsConsistent(t, e)
}

func TestCheckoutSubmitsThenClears(t *testing.T) {
	t.Parallel()
	srv := newFakeServer()
	sub := &stubSubmitter{number: "PFX20260504XYZ01"}
	e := newTestEngine(t, srv, customerIdentity("C001"), sub)
	ctx := context.Background()
	if _, err := e.AddItem(ctx, product("A", "19.99"), 2); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	out, err := e.Checkout(ctx, CheckoutInput{Telephone: "0812345678"})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if !out.Success || out.OrderNumber != "PFX20260504XYZ01" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if len(sub.lines) != 1 || sub.lines[0].Quantity != 2 {
		t.Fatalf("submitter received %+v", sub.lines)
	}
	if len(e.Lines()) != 0 || srv.count("clear") != 1 {
		t.Fatalf("expected cart cleared after checkout")
	}

	lines, err := e.LoadCart(ctx, LoadOptions{})
	if err != nil || len(lines) != 0 {
		t.Fatalf("reload after checkout should be empty, got %v %v", lines, err)
	}
}

func TestCheckoutEmptyCartIsValidationError(t *testing.T) {
	t.Parallel()
	sub := &stubSubmitter{}
	e := newTestEngine(t, newFakeServer(), customerIdentity("C001"), sub)
	if _, err := e.Checkout(context.Background(), CheckoutInput{}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if sub.calls != 0 {
		t.Fatalf("submitter must not be called for an empty cart")
	}
}

func TestCheckoutFailureKeepsLines(t *testing.T) {
	t.Parallel()
	srv := newFakeServer()
	sub := &stubSubmitter{err: pkgerrors.RemoteStatus(http.StatusServiceUnavailable, "down")}
	e := newTestEngine(t, srv, customerIdentity("C001"), sub)
	ctx := context.Background()
	if _, err := e.AddItem(ctx, product("A", "1"), 1); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	if _, err := e.Checkout(ctx, CheckoutInput{}); !pkgerrors.IsCode(err, pkgerrors.CodeRemote) {
		t.Fatalf("expected remote error, got %v", err)
	}
	if len(e.Lines()) != 1 || srv.count("clear") != 0 {
		t.Fatalf("failed checkout must keep the cart")
	}
}

func TestCheckoutClearFailureStillSucceeds(t *testing.T) {
	t.Parallel()
	srv := newFakeServer()
	e := newTestEngine(t, srv, customerIdentity("C001"), &stubSubmitter{number: "N1"})
	ctx := context.Background()
	if _, err := e.AddItem(ctx, product("A", "1"), 1); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	srv.failClear = pkgerrors.RemoteStatus(http.StatusBadGateway, "")
	out, err := e.Checkout(ctx, CheckoutInput{})
	if err != nil || !out.Success || out.OrderNumber != "N1" {
		t.Fatalf("order should stand when clear fails: %+v %v", out, err)
	}
	if e.LastError() == nil {
		t.Fatalf("expected clear failure recorded")
	}
}

func TestSessionInvalidationDuringCheckoutResetsCart(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	provider := session.NewProvider(session.NewMemoryStore(), nil)
	if err := provider.LoginCustomer(ctx, session.Profile{UserCode: "C001"}); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	sub := &stubSubmitter{err: pkgerrors.New(pkgerrors.CodeSessionInvalidated, "unknown customer")}
	srv := newFakeServer()
	e := newTestEngine(t, srv, provider, sub)
	provider.OnChange(func(_ context.Context, event session.Event) {
		if event == session.EventInvalidated || event == session.EventLogout {
			e.Reset()
		}
	})
	sub.hook = func(ctx context.Context) {
		if err := provider.Invalidate(ctx); err != nil {
			t.Errorf("invalidate failed: %v", err)
		}
	}

	if _, err := e.AddItem(ctx, product("A", "1"), 1); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := e.Checkout(ctx, CheckoutInput{})
		done <- err
	}()
	select {
	case err := <-done:
		if !pkgerrors.IsCode(err, pkgerrors.CodeSessionInvalidated) {
			t.Fatalf("expected session invalidated, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("checkout deadlocked on session hook")
	}

	state := e.State()
	if len(state.Lines) != 0 || state.CustomerCode != "" {
		t.Fatalf("expected cart reset, got %+v", state)
	}
	if _, err := e.AddItem(ctx, product("A", "1"), 1); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected customer required after invalidation, got %v", err)
	}
}

func TestConcurrentMutationsAreSerialized(t *testing.T) {
	t.Parallel()
	srv := newFakeServer()
	srv.upsertDelay = 2 * time.Millisecond
	e := newTestEngine(t, srv, customerIdentity("C001"), nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			if _, err := e.AddItem(ctx, product(fmt.Sprintf("P%d", i), "1"), i+1); err != nil {
				t.Errorf("add P%d failed: %v", i, err)
			}
		}(i)
		go func(i int) {
			defer wg.Done()
			if _, err := e.AddItem(ctx, product("SAME", "2"), i+1); err != nil {
				t.Errorf("add SAME failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if got := srv.maxInFlight.Load(); got != 1 {
		t.Fatalf("expected serialized gateway calls, saw %d in flight", got)
	}
	if len(e.Lines()) != 9 {
		t.Fatalf("expected 9 distinct lines, got %d", len(e.Lines()))
	}
	assertUniqueProducts(t, e)
	assertTotalsConsistent(t, e)
}

func TestCanceledContextWhileWaitingForLock(t *testing.T) {
	t.Parallel()
	srv := newFakeServer()
	srv.upsertDelay = 50 * time.Millisecond
	e := newTestEngine(t, srv, customerIdentity("C001"), nil)

	first := make(chan error, 1)
	go func() {
		_, err := e.AddItem(context.Background(), product("A", "1"), 1)
		first <- err
	}()
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	if _, err := e.AddItem(ctx, product("B", "1"), 1); err == nil {
		t.Fatalf("expected context error while waiting for the cart lock")
	}
	_ = e.Lines()

	if err := <-first; err != nil {
		t.Fatalf("first add failed: %v", err)
	}
	if !e.IsInCart("A") || e.IsInCart("B") {
		t.Fatalf("unexpected lines %+v", e.Lines())
	}
}

func TestSyncWithAPIDataAndReset(t *testing.T) {
	t.Parallel()
	srv := newFakeServer()
	e := newTestEngine(t, srv, customerIdentity("C001"), nil)

	out := e.SyncWithAPIData([]RawRecord{
		{"guid_code": "x1", "item_code": "A", "qty": "2", "price": "5"},
		{"id": "B", "quantity": -1, "price": "1"},
	})
	if !out.Success {
		t.Fatalf("sync failed: %+v", out)
	}
	lines := e.Lines()
	if len(lines) != 2 || lines[1].Quantity != 0 || lines[1].ItemCode != "B" {
		t.Fatalf("unexpected synced lines %+v", lines)
	}
	if e.TotalQuantity() != 2 || !e.TotalAmount().Equal(decimal.NewFromInt(10)) {
		t.Fatalf("unexpected totals after sync")
	}
	if len(srv.calls) != 0 {
		t.Fatalf("sync must not call the gateway, got %v", srv.calls)
	}

	e.Reset()
	if len(e.Lines()) != 0 || e.State().CustomerCode != "" || e.LastError() != nil {
		t.Fatalf("reset left state behind: %+v", e.State())
	}
}

func TestQuoteLeavesStateUntouched(t *testing.T) {
	t.Parallel()
	srv := newFakeServer()
	srv.quote = []RawRecord{{"item_code": "A", "qty": "2", "price": "9.5"}}
	e := newTestEngine(t, srv, customerIdentity("C001"), nil)

	lines, err := e.Quote(context.Background())
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}
	if len(lines) != 1 || !lines[0].Amount().Equal(decimal.NewFromInt(19)) {
		t.Fatalf("unexpected quote %+v", lines)
	}
	if len(e.Lines()) != 0 {
		t.Fatalf("quote must not change cart lines")
	}

	anon := newTestEngine(t, srv, &staticIdentity{}, nil)
	if _, err := anon.Quote(context.Background()); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateItemAliasRefKeepsProductsUnique(t *testing.T) {
	t.Parallel()
	srv := newFakeServer()
	e := newTestEngine(t, srv, customerIdentity("C001"), nil)
	ctx := context.Background()

	if _, err := e.AddItem(ctx, RawRecord{"item_code": "A", "price": "4"}, 3); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := e.UpdateItem(ctx, RawRecord{"code": "A", "qty": 5}); err != nil {
		t.Fatalf("update by code alias failed: %v", err)
	}
	lines := e.Lines()
	if len(lines) != 1 || lines[0].Quantity != 5 {
		t.Fatalf("expected a single A line with qty 5, got %+v", lines)
	}
	if len(srv.rows["C001"]) != 1 {
		t.Fatalf("server should hold one row, got %d", len(srv.rows["C001"]))
	}

	if _, err := e.UpdateItem(ctx, RawRecord{"id": "A", "unit": testDefaults.UnitCode, "quantity": "2"}); err != nil {
		t.Fatalf("update by id alias failed: %v", err)
	}
	if got := e.Lines(); len(got) != 1 || got[0].Quantity != 2 {
		t.Fatalf("expected qty 2 on the same line, got %+v", got)
	}
	assertUniqueProducts(t, e)
	assertTotalsConsistent(t, e)

	if _, err := e.UpdateItem(ctx, RawRecord{"qty": 1}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for a ref without item, got %v", err)
	}
}

func TestResetDuringInFlightAddDiscardsResult(t *testing.T) {
	t.Parallel()
	srv := newFakeServer()
	e := newTestEngine(t, srv, customerIdentity("C001"), nil)
	ctx := context.Background()
	if _, err := e.AddItem(ctx, product("A", "1"), 1); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	srv.upsertDelay = 100 * time.Millisecond
	done := make(chan error, 1)
	go func() {
		_, err := e.AddItem(ctx, product("B", "1"), 1)
		done <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for srv.inFlight.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("upsert never started")
		}
		time.Sleep(time.Millisecond)
	}
	e.Reset()

	if err := <-done; !pkgerrors.IsCode(err, pkgerrors.CodeSessionInvalidated) {
		t.Fatalf("expected the in-flight add to report the reset, got %v", err)
	}
	state := e.State()
	if len(state.Lines) != 0 || state.CustomerCode != "" {
		t.Fatalf("previous cart leaked past reset: %+v", state)
	}
}
