// Package orders exposes the customer's order history, document history and balances.
package orders

import (
	"context"
	"fmt"
	"strings"

	pkgerrors "github.com/angelmondragon/storefront-cart/pkg/errors"
	"github.com/angelmondragon/storefront-cart/pkg/gateway"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
)

// Source is the slice of the gateway the history views read from.
type Source interface {
	OrderHistory(ctx context.Context, customerCode, status string) ([]gateway.Row, error)
	OrderDetail(ctx context.Context, customerCode, docNo string) ([]gateway.Row, error)
	CancelOrder(ctx context.Context, req gateway.CancelRequest) error
	DocumentList(ctx context.Context, customerCode, transFlag string) ([]gateway.Row, error)
	DocumentDetail(ctx context.Context, customerCode, docNo string) ([]gateway.Row, error)
	TotalBalance(ctx context.Context, customerCode string) (gateway.Row, error)
	AdvancePayments(ctx context.Context, customerCode string) ([]gateway.Row, error)
}

// CustomerSource resolves the session customer.
type CustomerSource interface {
	CustomerCode(ctx context.Context) (string, error)
}

type Service struct {
	source    Source
	customers CustomerSource
	logg      *logger.Logger
}

func NewService(source Source, customers CustomerSource, logg *logger.Logger) (*Service, error) {
	if source == nil {
		return nil, fmt.Errorf("orders source required")
	}
	if customers == nil {
		return nil, fmt.Errorf("customer source required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{source: source, customers: customers, logg: logg}, nil
}

// History lists orders; a blank status lists every order.
func (s *Service) History(ctx context.Context, status string) ([]gateway.Row, error) {
	customer, err := s.customer(ctx)
	if err != nil {
		return nil, err
	}
	return s.source.OrderHistory(ctx, customer, strings.TrimSpace(status))
}

func (s *Service) Detail(ctx context.Context, docNo string) ([]gateway.Row, error) {
	customer, docNo, err := s.customerAndDoc(ctx, docNo)
	if err != nil {
		return nil, err
	}
	return s.source.OrderDetail(ctx, customer, docNo)
}

// Cancel asks the order service to cancel a submitted order.
func (s *Service) Cancel(ctx context.Context, docNo string) error {
	customer, docNo, err := s.customerAndDoc(ctx, docNo)
	if err != nil {
		return err
	}
	ctx = s.logg.WithOrderNumber(s.logg.WithCustomerCode(ctx, customer), docNo)
	if err := s.source.CancelOrder(ctx, gateway.CancelRequest{CustomerCode: customer, DocNumber: docNo}); err != nil {
		s.logg.Error(ctx, "order cancel failed", err)
		return err
	}
	s.logg.Info(ctx, "order cancelled")
	return nil
}

// Documents lists issued documents filtered by transaction flag.
func (s *Service) Documents(ctx context.Context, transFlag string) ([]gateway.Row, error) {
	customer, err := s.customer(ctx)
	if err != nil {
		return nil, err
	}
	return s.source.DocumentList(ctx, customer, strings.TrimSpace(transFlag))
}

func (s *Service) DocumentDetail(ctx context.Context, docNo string) ([]gateway.Row, error) {
	customer, docNo, err := s.customerAndDoc(ctx, docNo)
	if err != nil {
		return nil, err
	}
	return s.source.DocumentDetail(ctx, customer, docNo)
}

func (s *Service) TotalBalance(ctx context.Context) (gateway.Row, error) {
	customer, err := s.customer(ctx)
	if err != nil {
		return nil, err
	}
	return s.source.TotalBalance(ctx, customer)
}

func (s *Service) AdvancePayments(ctx context.Context) ([]gateway.Row, error) {
	customer, err := s.customer(ctx)
	if err != nil {
		return nil, err
	}
	return s.source.AdvancePayments(ctx, customer)
}

func (s *Service) customer(ctx context.Context) (string, error) {
	code, err := s.customers.CustomerCode(ctx)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read session customer")
	}
	if strings.TrimSpace(code) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "customer is required")
	}
	return code, nil
}

func (s *Service) customerAndDoc(ctx context.Context, docNo string) (string, string, error) {
	customer, err := s.customer(ctx)
	if err != nil {
		return "", "", err
	}
	docNo = strings.TrimSpace(docNo)
	if docNo == "" {
		return "", "", pkgerrors.New(pkgerrors.CodeValidation, "document number is required")
	}
	return customer, docNo, nil
}
