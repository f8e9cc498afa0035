package pagination

const (
	// DefaultPerPage is the standard page size when one is not provided.
	DefaultPerPage = 5
	// MaxPerPage caps how many rows a single page can request.
	MaxPerPage = 100
	// DefaultLimit is the item cap sent alongside an offset when none is provided.
	DefaultLimit = 10
)

// Page holds zero-based offset pagination inputs.
type Page struct {
	Number  int
	PerPage int
	Limit   int
}

// NormalizePerPage enforces the configured default and maximum page sizes.
func NormalizePerPage(perPage int) int {
	if perPage <= 0 {
		return DefaultPerPage
	}
	if perPage > MaxPerPage {
		return MaxPerPage
	}
	return perPage
}

// Normalize clamps the page number to zero and applies the size defaults.
func (p Page) Normalize() Page {
	if p.Number < 0 {
		p.Number = 0
	}
	p.PerPage = NormalizePerPage(p.PerPage)
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxPerPage {
		p.Limit = MaxPerPage
	}
	return p
}

// Offset returns the row offset for the page: number × perPage.
func (p Page) Offset() int {
	n := p.Normalize()
	return n.Number * n.PerPage
}

// HasNextPage reports whether another zero-based page follows current.
// An unknown total (zero or negative) stops paging.
func HasNextPage(current, totalPages int) bool {
	if totalPages <= 0 {
		return false
	}
	return current < totalPages-1
}
