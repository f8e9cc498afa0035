package gateway

import (
	"context"
	"net/http"
	"net/url"

	"github.com/angelmondragon/storefront-cart/pkg/checkout"
)

// Row is an untyped record from the history and catalog endpoints.
type Row = map[string]any

// SubmitOrder posts one order document to /sendorder. It makes a single attempt.
func (c *Client) SubmitOrder(ctx context.Context, order checkout.WireOrder) error {
	_, err := c.call(c.logg.WithOrderNumber(ctx, order.DocNumber), http.MethodPost, "/sendorder", nil, order, nil)
	return err
}

// CancelRequest is the /cancelOrder body.
type CancelRequest struct {
	CustomerCode string `json:"cust_code"`
	DocNumber    string `json:"doc_no"`
}

func (c *Client) CancelOrder(ctx context.Context, req CancelRequest) error {
	_, err := c.call(c.logg.WithOrderNumber(ctx, req.DocNumber), http.MethodPost, "/cancelOrder", nil, req, nil)
	return err
}

// OrderHistory lists the customer's orders. A blank status lists all of them.
func (c *Client) OrderHistory(ctx context.Context, customerCode, status string) ([]Row, error) {
	return c.rows(ctx, "/getOrderHistory", params("cust_code", customerCode, "status", status))
}

func (c *Client) OrderDetail(ctx context.Context, customerCode, docNo string) ([]Row, error) {
	return c.rows(ctx, "/getOrderDetail", params("cust_code", customerCode, "doc_no", docNo))
}

func (c *Client) DocumentList(ctx context.Context, customerCode, transFlag string) ([]Row, error) {
	return c.rows(ctx, "/getDocList", params("cust_code", customerCode, "trans_flag", transFlag))
}

func (c *Client) DocumentDetail(ctx context.Context, customerCode, docNo string) ([]Row, error) {
	return c.rows(ctx, "/getDocDetail", params("cust_code", customerCode, "doc_no", docNo))
}

// TotalBalance returns the outstanding balance summary as a single object.
func (c *Client) TotalBalance(ctx context.Context, customerCode string) (Row, error) {
	var row Row
	if _, err := c.call(ctx, http.MethodGet, "/getTotalBalance", params("cust_code", customerCode), nil, &row); err != nil {
		return nil, err
	}
	return row, nil
}

func (c *Client) AdvancePayments(ctx context.Context, customerCode string) ([]Row, error) {
	return c.rows(ctx, "/getAdvancePayment", params("cust_code", customerCode))
}

func (c *Client) rows(ctx context.Context, path string, query url.Values) ([]Row, error) {
	var rows []Row
	if _, err := c.call(ctx, http.MethodGet, path, query, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}
