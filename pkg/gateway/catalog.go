package gateway

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/angelmondragon/storefront-cart/pkg/types"
)

func (c *Client) Warehouses(ctx context.Context) ([]Row, error) {
	return c.rows(ctx, "/getWarehouseList", nil)
}

// ProductQuery mirrors the /getProductList parameters. Search and Category
// are always sent, blank or not.
type ProductQuery struct {
	CustomerCode string
	Search       string
	Category     string
	Offset       int
	Limit        int
	Premium      bool
	Favorite     bool
	InStockOnly  bool
}

func (q ProductQuery) values() url.Values {
	return url.Values{
		"cust_code": {q.CustomerCode},
		"search":    {q.Search},
		"category":  {q.Category},
		"offset":    {strconv.Itoa(q.Offset)},
		"premium":   {flag(q.Premium)},
		"limit":     {strconv.Itoa(q.Limit)},
		"favorite":  {flag(q.Favorite)},
		"isstock":   {flag(q.InStockOnly)},
	}
}

// Products returns one page of products and the service's paging block.
func (c *Client) Products(ctx context.Context, q ProductQuery) ([]Row, *types.Pagination, error) {
	var rows []Row
	page, err := c.call(ctx, http.MethodGet, "/getProductList", q.values(), nil, &rows)
	if err != nil {
		return nil, nil, err
	}
	return rows, page, nil
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
