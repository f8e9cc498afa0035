package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront-cart/api/responses"
	"github.com/angelmondragon/storefront-cart/api/validators"
	"github.com/angelmondragon/storefront-cart/internal/sandbox"
	"github.com/angelmondragon/storefront-cart/pkg/cart"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
)

// removeProductRequest is the /removeitemfromcart body.
type removeProductRequest struct {
	CustomerCode string `json:"cust_code" validate:"required"`
	ItemCode     string `json:"item_code" validate:"required"`
	UnitCode     string `json:"unit_code"`
}

// CartUpsert stores a batch of cart rows and echoes them with their line ids.
func CartUpsert(backend *sandbox.Backend, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := validators.DecodeJSONList[cart.WireRecord](r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		stored, err := backend.Upsert(records)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stored)
	}
}

func CartList(backend *sandbox.Backend, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customer, err := validators.RequireQuery(r, "cust_code")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		warehouse := validators.SanitizeString(r.URL.Query().Get("wh_code"), 32)
		responses.WriteSuccess(w, backend.List(customer, warehouse))
	}
}

func CartDeleteLine(backend *sandbox.Backend, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customer, err := validators.RequireQuery(r, "cust_code")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		lineID, err := validators.RequireQuery(r, "guid_code")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := backend.DeleteLine(customer, lineID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteMessage(w, "deleted")
	}
}

func CartRemoveProduct(backend *sandbox.Backend, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload removeProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := backend.RemoveProduct(payload.CustomerCode, payload.ItemCode, payload.UnitCode); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteMessage(w, "removed")
	}
}

func CartClear(backend *sandbox.Backend, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customer, err := validators.RequireQuery(r, "cust_code")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		backend.Clear(customer)
		responses.WriteMessage(w, "cleared")
	}
}

// CartOrder returns the cart repriced from the catalog. sale_type is accepted
// and ignored.
func CartOrder(backend *sandbox.Backend, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customer, err := validators.RequireQuery(r, "cust_code")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, backend.CartOrder(customer))
	}
}
