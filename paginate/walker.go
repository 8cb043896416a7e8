// Package paginate walks a cursor-paginated result set one page at a time,
// accumulating mapped results in display order.
package paginate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNoMorePages is returned by LoadNextPage once the cursor is exhausted.
var ErrNoMorePages = errors.New("paginate: no more pages")

// Page is one response of a paginated endpoint. A null next_page decodes
// to the empty string.
type Page struct {
	NextPage string            `json:"next_page"`
	Results  []json.RawMessage `json:"results"`
}

// Fetcher retrieves the page a cursor points at. The cursor is an opaque
// absolute URL and must be used verbatim.
type Fetcher interface {
	FetchPage(ctx context.Context, cursor string) (Page, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, cursor string) (Page, error)

func (f FetcherFunc) FetchPage(ctx context.Context, cursor string) (Page, error) {
	return f(ctx, cursor)
}

// Mapper converts one raw result into the walker's item type.
type Mapper[T any] func(raw json.RawMessage) (T, error)

// LoadError reports a failed fetch or decode of the page at Cursor.
type LoadError struct {
	Cursor string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("paginate: load %s: %v", e.Cursor, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Walker holds the items loaded so far and the cursor of the next page.
// NextCursor is empty when no further pages exist.
//
// A Walker is not safe for concurrent use; overlapping LoadNextPage calls
// may append out of order.
type Walker[T any] struct {
	Loaded     []T
	NextCursor string

	fetcher Fetcher
	mapper  Mapper[T]
}

// NewWalker returns a walker seeded with an already-fetched first page.
func NewWalker[T any](f Fetcher, m Mapper[T], initial []T, cursor string) *Walker[T] {
	return &Walker[T]{
		Loaded:     append([]T(nil), initial...),
		NextCursor: cursor,
		fetcher:    f,
		mapper:     m,
	}
}

// HasMore reports whether another page can be loaded.
func (w *Walker[T]) HasMore() bool {
	return w.NextCursor != ""
}

// LoadNextPage fetches the page at NextCursor, appends its mapped results
// and advances the cursor. On failure the walker is left unchanged and the
// call may be retried.
func (w *Walker[T]) LoadNextPage(ctx context.Context) error {
	if !w.HasMore() {
		return ErrNoMorePages
	}
	cursor := w.NextCursor

	page, err := w.fetcher.FetchPage(ctx, cursor)
	if err != nil {
		return &LoadError{Cursor: cursor, Err: err}
	}

	mapped := make([]T, 0, len(page.Results))
	for i, raw := range page.Results {
		item, err := w.mapper(raw)
		if err != nil {
			return &LoadError{Cursor: cursor, Err: fmt.Errorf("result %d: %w", i, err)}
		}
		mapped = append(mapped, item)
	}

	w.Loaded = append(w.Loaded, mapped...)
	w.NextCursor = page.NextPage
	return nil
}

// LoadAll loads pages until the cursor is exhausted or a load fails.
func (w *Walker[T]) LoadAll(ctx context.Context) error {
	for w.HasMore() {
		if err := w.LoadNextPage(ctx); err != nil {
			return err
		}
	}
	return nil
}
