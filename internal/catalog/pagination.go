package catalog

import "github.com/pauljones0/smart-shopper/internal/models"

// Pagination tracks the next page to request from each source.
// It is not safe for concurrent use; the session controller owns it.
type Pagination struct {
	pages map[models.Source]int
}

func NewPagination() *Pagination {
	return &Pagination{pages: make(map[models.Source]int)}
}

// NextPage returns the page to request next. Sources never seen start at 1.
func (p *Pagination) NextPage(src models.Source) int {
	if n, ok := p.pages[src]; ok {
		return n
	}
	return 1
}

// Advance moves the source to its next page only when the last page was non-empty.
// An empty page leaves the cursor frozen.
func (p *Pagination) Advance(src models.Source, received int) {
	if received <= 0 {
		return
	}
	p.pages[src] = p.NextPage(src) + 1
}

// Reset returns every source to page 1.
func (p *Pagination) Reset() {
	clear(p.pages)
}

// Pages returns a copy of the cursor for every source in order.
func (p *Pagination) Pages(sources []models.Source) map[models.Source]int {
	out := make(map[models.Source]int, len(sources))
	for _, s := range sources {
		out[s] = p.NextPage(s)
	}
	return out
}
