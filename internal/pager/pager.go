// Package pager implements the paginated user list: the Idle/Loading state
// machine, response normalisation, scroll restoration and the boundary
// gesture trigger.
package pager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"telecom-console/internal/gateway"
	"telecom-console/internal/metrics"
	"telecom-console/internal/model"
	"telecom-console/internal/report"
)

const ActionLoadPage = "loadPage"

var (
	// ErrBusy is returned when a page fetch is already in flight.
	ErrBusy = errors.New("page load in progress")
	// ErrNegativePage is returned for page numbers below zero.
	ErrNegativePage = errors.New("negative page")
)

type State int

const (
	Idle State = iota
	Loading
)

func (s State) String() string {
	if s == Loading {
		return "loading"
	}
	return "idle"
}

// Restore is the scroll anchor applied after a page replaces the table.
type Restore int

const (
	RestoreNone Restore = iota
	RestoreTop
	RestoreBottom
)

func (r Restore) String() string {
	switch r {
	case RestoreTop:
		return "top"
	case RestoreBottom:
		return "bottom"
	default:
		return "none"
	}
}

// PageState is the pagination state of one console session.
type PageState struct {
	CurrentPage int
	TotalPages  int
	PageSize    int
	Loading     bool
}

func (s PageState) State() State {
	if s.Loading {
		return Loading
	}
	return Idle
}

// HasNext reports whether a page after the current one exists.
func (s PageState) HasNext() bool {
	return s.CurrentPage+1 < s.TotalPages
}

// HasPrev reports whether a page before the current one exists.
func (s PageState) HasPrev() bool {
	return s.CurrentPage > 0
}

// Fetcher loads one raw page of users.
type Fetcher func(ctx context.Context, page, size int) (gateway.Body, error)

type Options struct {
	Fetch       Fetcher
	PageURL     func(page, size int) string
	Reporter    gateway.Reporter
	CurrentPage int
	TotalPages  int
	PageSize    int
}

// Result is the outcome of one RequestPage call. Restore is set even when
// the fetch fails; the view applies it after every settle.
type Result struct {
	Users      []model.UserRecord
	Page       int
	TotalPages int
	Indicator  string
	Restore    Restore
}

// LoadError wraps a failed page fetch with the alert text shown to the user.
type LoadError struct {
	Page int
	Err  error
}

func (e *LoadError) Error() string {
	return "获取用户列表失败：" + e.Err.Error()
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Controller serialises page fetches: at most one is in flight at a time.
type Controller struct {
	fetch    Fetcher
	pageURL  func(page, size int) string
	reporter gateway.Reporter

	mu    sync.Mutex
	state PageState
}

func New(opts Options) *Controller {
	if opts.PageSize <= 0 {
		opts.PageSize = 10
	}
	if opts.TotalPages < 1 {
		opts.TotalPages = 1
	}
	if opts.CurrentPage < 0 {
		opts.CurrentPage = 0
	}
	if opts.PageURL == nil {
		opts.PageURL = func(page, size int) string {
			return fmt.Sprintf("/users?page=%d&size=%d", page, size)
		}
	}
	return &Controller{
		fetch:    opts.Fetch,
		pageURL:  opts.PageURL,
		reporter: opts.Reporter,
		state: PageState{
			CurrentPage: opts.CurrentPage,
			TotalPages:  opts.TotalPages,
			PageSize:    opts.PageSize,
		},
	}
}

// State returns a snapshot of the pagination state.
func (c *Controller) State() PageState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Indicator renders the page indicator for the current state.
func (c *Controller) Indicator() string {
	st := c.State()
	return Indicator(st.CurrentPage, st.TotalPages)
}

// RequestPage moves Idle -> Loading, fetches page and settles back to Idle.
// A negative page or a fetch already in flight is rejected with ErrNegativePage
// or ErrBusy without touching the network; the UI ignores both silently.
// On failure the state is left unchanged and a *LoadError is returned.
func (c *Controller) RequestPage(ctx context.Context, page int, restore Restore) (Result, error) {
	c.mu.Lock()
	if page < 0 {
		c.mu.Unlock()
		metrics.PageLoadsTotal.WithLabelValues("skipped").Inc()
		return Result{}, ErrNegativePage
	}
	if c.state.Loading {
		c.mu.Unlock()
		metrics.PageLoadsTotal.WithLabelValues("skipped").Inc()
		return Result{}, ErrBusy
	}
	c.state.Loading = true
	size := c.state.PageSize
	prevTotal := c.state.TotalPages
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.state.Loading = false
		c.mu.Unlock()
	}()

	page2, err := c.load(ctx, page, size, prevTotal)
	if err != nil {
		slog.Error("[loadPage] 获取分页失败", "page", page, "error", err)
		if c.reporter != nil {
			c.reporter.Report(ActionLoadPage, err, report.Extra{URL: c.pageURL(page, size)})
		}
		metrics.PageLoadsTotal.WithLabelValues("error").Inc()
		st := c.State()
		return Result{
			Page:       st.CurrentPage,
			TotalPages: st.TotalPages,
			Indicator:  Indicator(st.CurrentPage, st.TotalPages),
			Restore:    restore,
		}, &LoadError{Page: page, Err: err}
	}

	c.mu.Lock()
	c.state.CurrentPage = page2.PageNumber
	c.state.TotalPages = page2.TotalPages
	c.mu.Unlock()
	metrics.PageLoadsTotal.WithLabelValues("ok").Inc()

	return Result{
		Users:      page2.Users,
		Page:       page2.PageNumber,
		TotalPages: page2.TotalPages,
		Indicator:  Indicator(page2.PageNumber, page2.TotalPages),
		Restore:    restore,
	}, nil
}

func (c *Controller) load(ctx context.Context, page, size, prevTotal int) (Page, error) {
	if c.fetch == nil {
		return Page{}, errors.New("no page fetcher configured")
	}
	body, err := c.fetch(ctx, page, size)
	if err != nil {
		return Page{}, err
	}
	return Normalize(body, page, size, prevTotal)
}

// Indicator formats "第 N 页 / 共 M 页" with N clamped to M and M at least 1.
func Indicator(currentPage, totalPages int) string {
	total := totalPages
	if total < 1 {
		total = 1
	}
	current := currentPage + 1
	if current > total {
		current = total
	}
	return fmt.Sprintf("第 %d 页 / 共 %d 页", current, total)
}
