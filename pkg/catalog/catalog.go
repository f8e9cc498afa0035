// Package catalog reads warehouses and recommended products from the order service.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/storefront-cart/pkg/config"
	"github.com/angelmondragon/storefront-cart/pkg/gateway"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
	"github.com/angelmondragon/storefront-cart/pkg/pagination"
	"github.com/angelmondragon/storefront-cart/pkg/session"
	"github.com/angelmondragon/storefront-cart/pkg/types"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// PlaceholderImage is shown when a product image fails to load.
const PlaceholderImage = "https://upload.wikimedia.org/wikipedia/commons/1/14/No_Image_Available.jpg"

const warehousesKey = "warehouses"

// Source is the slice of the gateway the catalog reads from.
type Source interface {
	Warehouses(ctx context.Context) ([]gateway.Row, error)
	Products(ctx context.Context, q gateway.ProductQuery) ([]gateway.Row, *types.Pagination, error)
	ImageURL(itemCode string) string
}

// SessionSource supplies the customer and the stock filter preference.
type SessionSource interface {
	CustomerCode(ctx context.Context) (string, error)
	Preferences(ctx context.Context) (session.Preferences, error)
}

type Warehouse struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type Product struct {
	ItemCode      string          `json:"item_code"`
	ItemName      string          `json:"item_name"`
	UnitCode      string          `json:"unit_code"`
	Category      string          `json:"category"`
	Price         decimal.Decimal `json:"price"`
	Image         string          `json:"image"`
	ImageFallback string          `json:"imageFallback"`
	Attributes    gateway.Row     `json:"attributes,omitempty"`
}

// ProductPage is one page of recommendations.
type ProductPage struct {
	Products   []Product         `json:"data"`
	Pagination *types.Pagination `json:"pagination,omitempty"`
	HasNext    bool              `json:"has_next"`
}

type Option func(*Service)

func WithLogger(logg *logger.Logger) Option {
	return func(s *Service) {
		if logg != nil {
			s.logg = logg
		}
	}
}

// WithClock overrides the clock used for cache expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

type Service struct {
	source   Source
	sessions SessionSource
	cfg      config.CatalogConfig
	logg     *logger.Logger
	now      func() time.Time

	group singleflight.Group

	mu         sync.RWMutex
	warehouses []Warehouse
	expiresAt  time.Time
}

func NewService(source Source, sessions SessionSource, cfg config.CatalogConfig, opts ...Option) (*Service, error) {
	if source == nil {
		return nil, fmt.Errorf("catalog source required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session source required")
	}
	s := &Service{
		source:   source,
		sessions: sessions,
		cfg:      cfg,
		logg:     logger.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Warehouses returns the warehouse list, served from cache until the TTL lapses.
// Concurrent misses share one request.
func (s *Service) Warehouses(ctx context.Context) ([]Warehouse, error) {
	if cached, ok := s.cachedWarehouses(); ok {
		return cached, nil
	}

	v, err, shared := s.group.Do(warehousesKey, func() (any, error) {
		if cached, ok := s.cachedWarehouses(); ok {
			return cached, nil
		}
		rows, err := s.source.Warehouses(ctx)
		if err != nil {
			return nil, err
		}
		list := make([]Warehouse, 0, len(rows))
		for _, row := range rows {
			list = append(list, Warehouse{
				Code: first(row, "warehouseCode", "code"),
				Name: first(row, "warehouseName", "name"),
			})
		}
		if s.cfg.WarehouseCacheTTL > 0 {
			s.mu.Lock()
			s.warehouses = list
			s.expiresAt = s.now().Add(s.cfg.WarehouseCacheTTL)
			s.mu.Unlock()
		}
		return list, nil
	})
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "warehouse list unavailable")
		return nil, err
	}
	if shared {
		s.logg.Debug(ctx, "warehouse fetch shared with concurrent caller")
	}
	return cloneWarehouses(v.([]Warehouse)), nil
}

// InvalidateWarehouses drops the cached list.
func (s *Service) InvalidateWarehouses() {
	s.mu.Lock()
	s.warehouses = nil
	s.expiresAt = time.Time{}
	s.mu.Unlock()
}

func (s *Service) cachedWarehouses() ([]Warehouse, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.warehouses == nil || !s.now().Before(s.expiresAt) {
		return nil, false
	}
	return cloneWarehouses(s.warehouses), true
}

// Recommended returns a zero-based page of premium products for the session customer.
func (s *Service) Recommended(ctx context.Context, page pagination.Page) (ProductPage, error) {
	if page.PerPage <= 0 {
		page.PerPage = s.cfg.PerPage
	}
	if page.Limit <= 0 {
		page.Limit = s.cfg.Limit
	}
	page = page.Normalize()

	customer, err := s.sessions.CustomerCode(ctx)
	if err != nil {
		return ProductPage{}, err
	}
	prefs, err := s.sessions.Preferences(ctx)
	if err != nil {
		return ProductPage{}, err
	}

	rows, pg, err := s.source.Products(ctx, gateway.ProductQuery{
		CustomerCode: customer,
		Offset:       page.Offset(),
		Limit:        page.Limit,
		Premium:      true,
		InStockOnly:  prefs.InStockOnly,
	})
	if err != nil {
		return ProductPage{}, err
	}

	out := ProductPage{Products: make([]Product, 0, len(rows)), Pagination: pg}
	for _, row := range rows {
		out.Products = append(out.Products, s.product(row))
	}
	if pg != nil {
		out.HasNext = pagination.HasNextPage(page.Number, pg.TotalPage)
	}
	return out, nil
}

func (s *Service) product(row gateway.Row) Product {
	itemCode := first(row, "item_code", "code")
	price, err := decimal.NewFromString(first(row, "price"))
	if err != nil || price.IsNegative() {
		price = decimal.Zero
	}
	return Product{
		ItemCode:      itemCode,
		ItemName:      first(row, "item_name", "name"),
		UnitCode:      first(row, "unit_code", "unit"),
		Category:      first(row, "category"),
		Price:         price,
		Image:         s.source.ImageURL(itemCode),
		ImageFallback: PlaceholderImage,
		Attributes:    row,
	}
}

func first(row gateway.Row, keys ...string) string {
	for _, key := range keys {
		var s string
		switch v := row[key].(type) {
		case nil:
			continue
		case string:
			s = v
		case json.Number:
			s = v.String()
		default:
			s = fmt.Sprint(v)
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

func cloneWarehouses(in []Warehouse) []Warehouse {
	out := make([]Warehouse, len(in))
	copy(out, in)
	return out
}
