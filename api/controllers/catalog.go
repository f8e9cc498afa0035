package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront-cart/api/responses"
	"github.com/angelmondragon/storefront-cart/api/validators"
	"github.com/angelmondragon/storefront-cart/internal/sandbox"
	"github.com/angelmondragon/storefront-cart/pkg/catalog"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
)

const maxProductLimit = 100

func WarehouseList(backend *sandbox.Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, backend.Warehouses())
	}
}

// ProductList serves /getProductList. favorite is accepted and ignored.
func ProductList(backend *sandbox.Backend, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 1<<20)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 10, 1, maxProductLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		q := r.URL.Query()
		products, page := backend.Products(sandbox.ProductQuery{
			Search:      validators.SanitizeString(q.Get("search"), 64),
			Category:    validators.SanitizeString(q.Get("category"), 64),
			Offset:      offset,
			Limit:       limit,
			PremiumOnly: validators.QueryFlag(r, "premium"),
			InStockOnly: validators.QueryFlag(r, "isstock"),
		})
		responses.WritePage(w, products, page)
	}
}

// ProductImage redirects every item to the placeholder image; the sandbox holds no media.
func ProductImage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, catalog.PlaceholderImage, http.StatusFound)
	}
}
