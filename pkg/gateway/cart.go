package gateway

import (
	"context"
	"net/http"

	"github.com/angelmondragon/storefront-cart/pkg/cart"
)

// UpsertLines posts records to /additemtocart. The service replaces the
// quantity of an existing (item, unit) row and echoes the stored rows.
func (c *Client) UpsertLines(ctx context.Context, records []cart.WireRecord) ([]cart.RawRecord, error) {
	var rows []cart.RawRecord
	if _, err := c.call(ctx, http.MethodPost, "/additemtocart", nil, records, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) ListCart(ctx context.Context, q cart.ListQuery) ([]cart.RawRecord, error) {
	var rows []cart.RawRecord
	query := params("cust_code", q.CustomerCode, "wh_code", q.WarehouseCode, "shelf_code", q.ShelfCode)
	if _, err := c.call(ctx, http.MethodGet, "/getcartitemlist", query, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) DeleteLine(ctx context.Context, lineID, customerCode string) error {
	_, err := c.call(ctx, http.MethodGet, "/deleteItem", params("guid_code", lineID, "cust_code", customerCode), nil, nil)
	return err
}

func (c *Client) ClearCart(ctx context.Context, customerCode string) error {
	_, err := c.call(ctx, http.MethodGet, "/deleteAllItems", params("cust_code", customerCode), nil, nil)
	return err
}

// RemoveProduct deletes a row by its (item, unit) key rather than its line id.
func (c *Client) RemoveProduct(ctx context.Context, customerCode, itemCode, unitCode string) error {
	body := map[string]string{
		"cust_code": customerCode,
		"item_code": itemCode,
		"unit_code": unitCode,
	}
	_, err := c.call(ctx, http.MethodPost, "/removeitemfromcart", nil, body, nil)
	return err
}

// CartOrder returns the cart rows with the service's confirmed pricing.
func (c *Client) CartOrder(ctx context.Context, customerCode, saleType string) ([]cart.RawRecord, error) {
	var rows []cart.RawRecord
	if _, err := c.call(ctx, http.MethodGet, "/getcartorder", params("cust_code", customerCode, "sale_type", saleType), nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}
