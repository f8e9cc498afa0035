package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-cart/pkg/cart"
	"github.com/angelmondragon/storefront-cart/pkg/config"
	"github.com/angelmondragon/storefront-cart/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-cart/pkg/errors"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
	"github.com/angelmondragon/storefront-cart/pkg/metrics"
	"github.com/angelmondragon/storefront-cart/pkg/session"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
)

// Input holds the buyer-supplied checkout fields.
type Input = cart.CheckoutInput

// Result carries the submitted order's number.
type Result = cart.CheckoutResult

// OrderGateway submits one order document. It makes a single attempt.
type OrderGateway interface {
	SubmitOrder(ctx context.Context, order WireOrder) error
}

// NumberSource stamps and numbers order documents.
type NumberSource interface {
	Now() time.Time
	OrderNumberAt(t time.Time) string
}

// Invalidator evicts the cached identity when the order service no longer knows the customer.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

type Option func(*Orchestrator)

func WithLogger(logg *logger.Logger) Option {
	return func(o *Orchestrator) {
		if logg != nil {
			o.logg = logg
		}
	}
}

func WithMetrics(m *metrics.CartMetrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// Orchestrator builds order documents from cart lines and submits them with bounded retry.
type Orchestrator struct {
	gateway     OrderGateway
	numbers     NumberSource
	invalidator Invalidator
	logg        *logger.Logger
	metrics     *metrics.CartMetrics

	retries         uint64
	backoffUnit     time.Duration
	defaultSendType enums.DeliveryMethod
}

func NewOrchestrator(gateway OrderGateway, numbers NumberSource, invalidator Invalidator, cfg config.CheckoutConfig, opts ...Option) (*Orchestrator, error) {
	if gateway == nil {
		return nil, fmt.Errorf("order gateway required")
	}
	if numbers == nil {
		return nil, fmt.Errorf("number source required")
	}
	if cfg.SubmitRetries < 0 {
		return nil, fmt.Errorf("submit retries must be >= 0")
	}
	sendType, err := enums.ParseDeliveryMethod(cfg.DefaultSendType)
	if err != nil {
		sendType = enums.DeliveryMethodPickup
	}
	o := &Orchestrator{
		gateway:         gateway,
		numbers:         numbers,
		invalidator:     invalidator,
		logg:            logger.Nop(),
		retries:         uint64(cfg.SubmitRetries),
		backoffUnit:     cfg.SubmitBackoffUnit,
		defaultSendType: sendType,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Build turns lines and buyer input into an order document without any I/O.
func (o *Orchestrator) Build(lines []cart.Line, input Input, id session.Identity) (OrderDocument, error) {
	if err := ValidateInput(input); err != nil {
		return OrderDocument{}, err
	}
	if err := ValidateLines(lines); err != nil {
		return OrderDocument{}, err
	}
	if id.CustomerCode == "" {
		return OrderDocument{}, pkgerrors.New(pkgerrors.CodeValidation, "customer is required")
	}

	sendType := o.defaultSendType
	if input.DeliveryMethod != "" {
		sendType = enums.DeliveryMethod(input.DeliveryMethod)
	}
	employee := input.EmployeeCode
	if employee == "" {
		employee = id.EmployeeCode
	}

	now := o.numbers.Now()
	doc := OrderDocument{
		CustomerCode:        id.CustomerCode,
		EmployeeCode:        employee,
		DocDate:             now.Format(docDateLayout),
		DocTime:             now.Format(docTimeLayout),
		DocNumber:           o.numbers.OrderNumberAt(now),
		Lines:               make([]OrderLine, 0, len(lines)),
		Telephone:           input.Telephone,
		Remark:              input.Remark,
		DeliveryMethod:      sendType,
		DeliveryAddress:     input.DeliveryAddress,
		DeliveryAddressName: input.DeliveryAddressName,
	}
	for _, line := range lines {
		taxType := line.TaxType
		if !taxType.IsValid() {
			taxType = enums.TaxTypeTaxed
		}
		doc.Lines = append(doc.Lines, OrderLine{
			ItemCode:      line.ItemCode,
			ItemName:      line.ItemName,
			Barcode:       line.Barcode,
			UnitCode:      line.UnitCode,
			Quantity:      line.Quantity,
			UnitPrice:     line.UnitPrice,
			LineTotal:     line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))),
			WarehouseCode: line.WarehouseCode,
			ShelfCode:     line.ShelfCode,
			Ratio:         line.Ratio,
			StandardValue: line.StandardValue,
			DivideValue:   line.DivideValue,
			TaxType:       taxType,
		})
	}

	buckets := ComputeTaxBuckets(doc.Lines)
	doc.TotalTaxExempt = buckets[enums.TaxTypeExempt].Total
	doc.TotalTaxed = buckets[enums.TaxTypeTaxed].Total
	doc.TotalAmount = doc.TotalTaxExempt.Add(doc.TotalTaxed)
	return doc, nil
}

// BuildAndSubmit builds the order document and submits it. Transport failures
// and non-2xx responses are retried with linear backoff; explicit rejections
// and unknown-customer responses are not.
func (o *Orchestrator) BuildAndSubmit(ctx context.Context, lines []cart.Line, input Input, id session.Identity) (Result, error) {
	doc, err := o.Build(lines, input, id)
	if err != nil {
		o.metrics.IncOrder("invalid")
		return Result{}, err
	}

	ctx = o.logg.WithCustomerCode(o.logg.WithOrderNumber(ctx, doc.DocNumber), doc.CustomerCode)
	err = o.submit(ctx, doc.Wire())
	switch {
	case err == nil:
		o.metrics.IncOrder("submitted")
		o.logg.Info(ctx, "order submitted")
		return Result{OrderNumber: doc.DocNumber}, nil
	case pkgerrors.IsCode(err, pkgerrors.CodeSessionInvalidated):
		o.metrics.IncOrder("session_invalidated")
		if o.invalidator != nil {
			if ierr := o.invalidator.Invalidate(ctx); ierr != nil {
				o.logg.Error(ctx, "failed to evict session identity", ierr)
			}
		}
		return Result{}, err
	default:
		o.metrics.IncOrder("failed")
		o.logg.Error(o.logg.WithField(ctx, "error_dump", pkgerrors.Dump(err)), "order submission failed", err)
		return Result{}, err
	}
}

func (o *Orchestrator) submit(ctx context.Context, order WireOrder) error {
	attempt := 0
	backoff := retry.WithMaxRetries(o.retries, o.linearBackoff())
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		o.metrics.IncSubmitAttempt()
		err := o.gateway.SubmitOrder(ctx, order)
		if err == nil {
			return nil
		}
		if pkgerrors.IsTransientRemote(err) {
			o.logg.Warn(o.logg.WithFields(ctx, map[string]any{
				"attempt": attempt,
				"error":   err.Error(),
			}), "order submission attempt failed")
			return retry.RetryableError(err)
		}
		return err
	})
}

// linearBackoff waits n × unit before the n-th retry.
func (o *Orchestrator) linearBackoff() retry.Backoff {
	n := 0
	return retry.BackoffFunc(func() (time.Duration, bool) {
		n++
		return time.Duration(n) * o.backoffUnit, false
	})
}
