package controllers

import (
	"errors"
	"net/http"

	"github.com/angelmondragon/storefront-cart/api/responses"
	"github.com/angelmondragon/storefront-cart/api/validators"
	"github.com/angelmondragon/storefront-cart/internal/sandbox"
	"github.com/angelmondragon/storefront-cart/pkg/checkout"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
)

type cancelOrderRequest struct {
	CustomerCode string `json:"cust_code" validate:"required"`
	DocNumber    string `json:"doc_no" validate:"required"`
}

// SendOrder records an order. An unknown customer gets the legacy marker body.
func SendOrder(backend *sandbox.Backend, marker string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var order checkout.WireOrder
		if err := validators.DecodeJSONBody(r, &order); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithCustomerCode(logg.WithOrderNumber(ctx, order.DocNumber), order.CustomerCode)
		}
		stored, err := backend.Submit(order)
		switch {
		case errors.Is(err, sandbox.ErrUnknownCustomer):
			if logg != nil {
				logg.Warn(ctx, "order.unknown_customer")
			}
			responses.WriteUnknownCustomer(w, marker)
			return
		case err != nil:
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			logg.Info(ctx, "order.received")
		}
		responses.WriteSuccess(w, map[string]string{"doc_no": stored.DocNumber, "status": stored.Status})
	}
}

func CancelOrder(backend *sandbox.Backend, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload cancelOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := backend.Cancel(payload.CustomerCode, payload.DocNumber); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteMessage(w, "cancelled")
	}
}

func OrderHistory(backend *sandbox.Backend, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customer, err := validators.RequireQuery(r, "cust_code")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := validators.SanitizeString(r.URL.Query().Get("status"), 8)
		responses.WriteSuccess(w, backend.Orders(customer, status))
	}
}

// OrderDetail lists the lines of one order.
func OrderDetail(backend *sandbox.Backend, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customer, docNo, err := customerAndDoc(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := backend.Order(customer, docNo)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order.Items)
	}
}

func DocumentList(backend *sandbox.Backend, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customer, err := validators.RequireQuery(r, "cust_code")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		flag := validators.SanitizeString(r.URL.Query().Get("trans_flag"), 8)
		responses.WriteSuccess(w, backend.Documents(customer, flag))
	}
}

func DocumentDetail(backend *sandbox.Backend, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customer, docNo, err := customerAndDoc(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		doc, err := backend.Document(customer, docNo)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, doc.Items)
	}
}

func TotalBalance(backend *sandbox.Backend, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customer, err := validators.RequireQuery(r, "cust_code")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		outstanding, advance := backend.Balance(customer)
		responses.WriteSuccess(w, map[string]any{
			"cust_code":       customer,
			"total_balance":   outstanding,
			"advance_balance": advance,
			"net_balance":     outstanding.Sub(advance),
		})
	}
}

func AdvancePayments(backend *sandbox.Backend, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customer, err := validators.RequireQuery(r, "cust_code")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, backend.Advances(customer))
	}
}

func customerAndDoc(r *http.Request) (string, string, error) {
	customer, err := validators.RequireQuery(r, "cust_code")
	if err != nil {
		return "", "", err
	}
	docNo, err := validators.RequireQuery(r, "doc_no")
	if err != nil {
		return "", "", err
	}
	return customer, docNo, nil
}
