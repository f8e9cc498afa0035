// Package storefront assembles the cart, checkout, session, catalog and history
// components from configuration.
package storefront

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/angelmondragon/storefront-cart/pkg/cart"
	"github.com/angelmondragon/storefront-cart/pkg/catalog"
	"github.com/angelmondragon/storefront-cart/pkg/checkout"
	"github.com/angelmondragon/storefront-cart/pkg/config"
	"github.com/angelmondragon/storefront-cart/pkg/db"
	"github.com/angelmondragon/storefront-cart/pkg/gateway"
	"github.com/angelmondragon/storefront-cart/pkg/idgen"
	"github.com/angelmondragon/storefront-cart/pkg/instance"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
	"github.com/angelmondragon/storefront-cart/pkg/metrics"
	"github.com/angelmondragon/storefront-cart/pkg/migrate"
	"github.com/angelmondragon/storefront-cart/pkg/orders"
	"github.com/angelmondragon/storefront-cart/pkg/redis"
	"github.com/angelmondragon/storefront-cart/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
)

// Options carries optional collaborators.
type Options struct {
	// Registerer receives the cart and gateway metrics. Nil disables metrics.
	Registerer prometheus.Registerer
	// HTTPClient replaces the gateway's instrumented default client.
	HTTPClient *http.Client
}

// Storefront is one terminal's cart subsystem.
type Storefront struct {
	Session  *session.Provider
	Gateway  *gateway.Client
	Cart     *cart.Engine
	Checkout *checkout.Orchestrator
	Catalog  *catalog.Service
	Orders   *orders.Service
	IDs      *idgen.Generator

	closers []io.Closer
}

// New wires every component from cfg. The session backend is chosen by cfg.Session.Backend.
func New(ctx context.Context, cfg *config.Config, logg *logger.Logger, opts Options) (_ *Storefront, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config required")
	}
	if logg == nil {
		logg = logger.Nop()
	}

	sf := &Storefront{}
	defer func() {
		if err != nil {
			err = multierr.Append(err, sf.Close())
		}
	}()

	store, err := sf.openStore(ctx, cfg, logg)
	if err != nil {
		return nil, err
	}
	sf.Session = session.NewProvider(store, logg)

	gwOpts := []gateway.Option{
		gateway.WithLogger(logg),
		gateway.WithMetrics(metrics.NewHTTPMetrics(opts.Registerer, "gateway")),
		gateway.WithUnknownCustomerMarker(cfg.Checkout.UnknownCustomerMarker),
	}
	if opts.HTTPClient != nil {
		gwOpts = append(gwOpts, gateway.WithHTTPClient(opts.HTTPClient))
	}
	sf.Gateway, err = gateway.NewClient(cfg.Gateway, gwOpts...)
	if err != nil {
		return nil, err
	}

	cartMetrics := metrics.NewCartMetrics(opts.Registerer)
	sf.IDs = idgen.New(cfg.Checkout.OrderPrefix)

	sf.Checkout, err = checkout.NewOrchestrator(sf.Gateway, sf.IDs, sf.Session, cfg.Checkout,
		checkout.WithLogger(logg), checkout.WithMetrics(cartMetrics))
	if err != nil {
		return nil, err
	}

	normalizer := cart.NewNormalizer(cfg.Defaults, sf.IDs, nil)
	sf.Cart, err = cart.NewEngine(sf.Gateway, sf.Session, sf.Checkout, normalizer,
		cart.WithLogger(logg), cart.WithMetrics(cartMetrics))
	if err != nil {
		return nil, err
	}
	sf.Session.OnChange(sf.resetOnIdentityChange)

	sf.Catalog, err = catalog.NewService(sf.Gateway, sf.Session, cfg.Catalog, catalog.WithLogger(logg))
	if err != nil {
		return nil, err
	}
	sf.Orders, err = orders.NewService(sf.Gateway, sf.Session, logg)
	if err != nil {
		return nil, err
	}

	logg.Info(logg.WithField(ctx, "session_backend", cfg.Session.Backend), "storefront ready")
	return sf, nil
}

// resetOnIdentityChange drops the cart whenever the owning identity changes.
func (sf *Storefront) resetOnIdentityChange(_ context.Context, event session.Event) {
	switch event {
	case session.EventLogin, session.EventCustomerSelected, session.EventLogout, session.EventInvalidated:
		sf.Cart.Reset()
	}
}

func (sf *Storefront) openStore(ctx context.Context, cfg *config.Config, logg *logger.Logger) (session.Store, error) {
	namespace := strings.TrimSpace(cfg.Session.Namespace)
	if namespace == "" {
		namespace = instance.ID()
	}
	switch strings.ToLower(cfg.Session.Backend) {
	case config.SessionBackendRedis:
		client, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return nil, err
		}
		sf.closers = append(sf.closers, client)
		return session.NewRedisStore(client, namespace, cfg.Redis.SessionTTL), nil
	case config.SessionBackendSQL:
		client, err := db.New(ctx, cfg.DB, logg)
		if err != nil {
			return nil, err
		}
		sf.closers = append(sf.closers, client)
		if err := migrate.MaybeAutoRun(ctx, cfg.DB, logg, client); err != nil {
			return nil, err
		}
		return session.NewSQLStore(client, namespace), nil
	case config.SessionBackendMemory, "":
		return session.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}
}

// Close releases the session backend connections.
func (sf *Storefront) Close() error {
	var err error
	for i := len(sf.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, sf.closers[i].Close())
	}
	sf.closers = nil
	return err
}
