package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-cart/api/controllers"
	"github.com/angelmondragon/storefront-cart/api/middleware"
	"github.com/angelmondragon/storefront-cart/internal/sandbox"
	"github.com/angelmondragon/storefront-cart/pkg/config"
	"github.com/angelmondragon/storefront-cart/pkg/gateway"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
	"github.com/angelmondragon/storefront-cart/pkg/metrics"
)

// NewRouter serves the order service contract over the sandbox backend.
// Metrics are exported on /metrics when registry is non-nil and enabled in cfg.
func NewRouter(cfg *config.Config, logg *logger.Logger, backend *sandbox.Backend, registry *prometheus.Registry) http.Handler {
	r := chi.NewRouter()

	var httpMetrics *metrics.HTTPMetrics
	exportMetrics := registry != nil && cfg.Sandbox.MetricsEnable
	if exportMetrics {
		httpMetrics = metrics.NewHTTPMetrics(registry, "sandbox")
	}

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.Sandbox.CORSOrigins),
		middleware.Metrics(httpMetrics),
	)

	r.Get("/healthz", controllers.Healthz(cfg, logg))
	if exportMetrics {
		r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	marker := cfg.Checkout.UnknownCustomerMarker
	if marker == "" {
		marker = gateway.DefaultUnknownCustomerMarker
	}

	r.Group(func(r chi.Router) {
		r.Post("/additemtocart", controllers.CartUpsert(backend, logg))
		r.Get("/getcartitemlist", controllers.CartList(backend, logg))
		r.Get("/deleteItem", controllers.CartDeleteLine(backend, logg))
		r.Get("/deleteAllItems", controllers.CartClear(backend, logg))
		r.Post("/removeitemfromcart", controllers.CartRemoveProduct(backend, logg))
		r.Get("/getcartorder", controllers.CartOrder(backend, logg))
	})

	r.Group(func(r chi.Router) {
		r.Post("/sendorder", controllers.SendOrder(backend, marker, logg))
		r.Post("/cancelOrder", controllers.CancelOrder(backend, logg))
		r.Get("/getOrderHistory", controllers.OrderHistory(backend, logg))
		r.Get("/getOrderDetail", controllers.OrderDetail(backend, logg))
		r.Get("/getDocList", controllers.DocumentList(backend, logg))
		r.Get("/getDocDetail", controllers.DocumentDetail(backend, logg))
		r.Get("/getTotalBalance", controllers.TotalBalance(backend, logg))
		r.Get("/getAdvancePayment", controllers.AdvancePayments(backend, logg))
	})

	r.Get("/getWarehouseList", controllers.WarehouseList(backend))
	r.Get("/getProductList", controllers.ProductList(backend, logg))
	r.Get("/images", controllers.ProductImage())

	return r
}
