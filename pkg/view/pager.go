package view

// PageSize is the number of rows per table page.
const PageSize = 20

// Pager tracks the current page of a table whose length can change.
type Pager struct {
	Page int
	Size int
}

// NewPager starts at page 0 with PageSize rows.
func NewPager() *Pager { return &Pager{Size: PageSize} }

func (p *Pager) size() int {
	if p.Size <= 0 {
		return PageSize
	}
	return p.Size
}

// TotalPages is never less than 1.
func (p *Pager) TotalPages(total int) int {
	n := (total + p.size() - 1) / p.size()
	if n < 1 {
		return 1
	}
	return n
}

// Clamp pulls the page back into range after the data shrank.
func (p *Pager) Clamp(total int) {
	if last := p.TotalPages(total) - 1; p.Page > last {
		p.Page = last
	}
	if p.Page < 0 {
		p.Page = 0
	}
}

// Reset returns to the first page. Called when a new operation lands.
func (p *Pager) Reset() { p.Page = 0 }

// Next and Prev move within range.
func (p *Pager) Next(total int) {
	p.Page++
	p.Clamp(total)
}

func (p *Pager) Prev() {
	if p.Page > 0 {
		p.Page--
	}
}

// Paginate returns the current page of rows, clamping first.
func Paginate[T any](p *Pager, rows []T) []T {
	p.Clamp(len(rows))
	start := p.Page * p.size()
	if start >= len(rows) {
		return nil
	}
	end := min(start+p.size(), len(rows))
	return rows[start:end]
}
