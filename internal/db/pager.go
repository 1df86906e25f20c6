package db

import (
	"context"
)

// PageSize is the fixed page size for bulk reads.
const PageSize = 1000

// PageFunc fetches up to limit items whose key sorts strictly after the
// cursor. An empty cursor means from the start.
type PageFunc[T any] func(ctx context.Context, after string, limit int) ([]T, error)

// Pager lazily walks a keyset-paginated result. It holds at most one page
// in memory and can be resumed from Cursor after an interruption.
type Pager[T any] struct {
	fetch PageFunc[T]
	key   func(T) string
	size  int

	after string
	buf   []T
	done  bool
	err   error
}

// NewPager returns a pager over fetch. key extracts the keyset column from
// an item and must be strictly increasing in the order fetch returns.
func NewPager[T any](fetch PageFunc[T], key func(T) string, size int) *Pager[T] {
	if size <= 0 {
		size = PageSize
	}
	return &Pager[T]{fetch: fetch, key: key, size: size}
}

// Resume positions the pager after cursor.
func (p *Pager[T]) Resume(cursor string) *Pager[T] {
	p.after = cursor
	p.buf = nil
	p.done = false
	p.err = nil
	return p
}

// Next returns the next item. The second result is false when the walk is
// over or a page fetch failed; check Err to tell them apart.
func (p *Pager[T]) Next(ctx context.Context) (T, bool) {
	var zero T
	if len(p.buf) == 0 {
		if p.done || p.err != nil {
			return zero, false
		}
		page, err := p.fetch(ctx, p.after, p.size)
		if err != nil {
			p.err = err
			return zero, false
		}
		if len(page) < p.size {
			p.done = true
		}
		if len(page) == 0 {
			return zero, false
		}
		p.buf = page
	}

	item := p.buf[0]
	p.buf = p.buf[1:]
	p.after = p.key(item)
	return item, true
}

// Cursor is the key of the last item returned by Next.
func (p *Pager[T]) Cursor() string {
	return p.after
}

// Err returns the first page fetch error.
func (p *Pager[T]) Err() error {
	return p.err
}
