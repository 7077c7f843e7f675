package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"telecom-console/internal/config"
	"telecom-console/internal/gateway"
	"telecom-console/internal/model"
	"telecom-console/internal/pager"
	"telecom-console/internal/report"
	"telecom-console/internal/rowedit"
	"telecom-console/internal/traffic"
)

const (
	ActionAddUser       = "addUser"
	ActionResetPassword = "resetPassword"
)

var (
	// ErrNotConfirmed is returned when a destructive action was declined.
	ErrNotConfirmed = errors.New("action not confirmed")
	// ErrRowEditing rejects deleting the row that is being edited.
	ErrRowEditing = errors.New("row is being edited")
	// ErrUnknownRow is returned for an account not on the current page.
	ErrUnknownRow = errors.New("row not on current page")
)

// ActionError carries the alert text of a failed row action.
type ActionError struct {
	Prefix string
	Err    error
}

func (e *ActionError) Error() string {
	return e.Prefix + e.Err.Error()
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// Console owns the pagination controller and the edit session of one admin
// session. Every successful write re-fetches the whole page.
type Console struct {
	svc      *Service
	reporter gateway.Reporter
	pager    *pager.Controller
	session  rowedit.Session
	timeout  time.Duration

	mu   sync.RWMutex
	rows []model.UserRecord
}

func NewConsole(svc *Service, reporter gateway.Reporter, cfg *config.Config) *Console {
	c := &Console{svc: svc, reporter: reporter, timeout: cfg.Timeout()}
	c.pager = pager.New(pager.Options{
		Fetch:       svc.ListUsers,
		PageURL:     svc.UsersPath,
		Reporter:    reporter,
		CurrentPage: cfg.CurrentPage,
		TotalPages:  cfg.TotalPages,
		PageSize:    cfg.PageSize,
	})
	return c
}

func (c *Console) Pager() *pager.Controller { return c.pager }

func (c *Console) Session() *rowedit.Session { return &c.session }

// Timeout is the per-request limit callers impose (request_timeout); 0 means none.
func (c *Console) Timeout() time.Duration { return c.timeout }

// Rows returns the rows of the last successful load.
func (c *Console) Rows() []model.UserRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.UserRecord, len(c.rows))
	copy(out, c.rows)
	return out
}

// Row finds a row of the current page by account.
func (c *Console) Row(account string) (model.UserRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, r := range c.rows {
		if r.Account.String() == account {
			return r, true
		}
	}
	return model.UserRecord{}, false
}

// Load requests page and replaces the rows on success. A full render drops
// any in-progress edit along with the old rows.
func (c *Console) Load(ctx context.Context, page int, restore pager.Restore) (pager.Result, error) {
	res, err := c.pager.RequestPage(ctx, page, restore)
	if err != nil {
		return res, err
	}
	c.mu.Lock()
	c.rows = res.Users
	c.mu.Unlock()
	c.session.Cancel()
	return res, nil
}

// Refresh reloads the current page.
func (c *Console) Refresh(ctx context.Context) (pager.Result, error) {
	return c.Load(ctx, c.pager.State().CurrentPage, pager.RestoreNone)
}

// BeginEdit enters edit mode on the row keyed by account.
func (c *Console) BeginEdit(account string) (*rowedit.Editor, error) {
	row, ok := c.Row(account)
	if !ok {
		return nil, ErrUnknownRow
	}
	return c.session.Begin(row)
}

// Save sends the editing row. On failure the row stays in edit mode.
func (c *Console) Save(ctx context.Context) (pager.Result, error) {
	ed, ok := c.session.Current()
	if !ok {
		return pager.Result{}, rowedit.ErrNotEditing
	}
	if _, err := c.svc.ModifyUser(ctx, ed.Account, ed.Payload()); err != nil {
		slog.Error("[edit] 修改失败", "account", ed.Account, "error", err)
		return pager.Result{}, &ActionError{Prefix: "修改失败：", Err: err}
	}
	if err := c.session.Commit(ed.Account); err != nil {
		return pager.Result{}, err
	}
	return c.Refresh(ctx)
}

// CancelEdit discards the edit and re-fetches the current page.
func (c *Console) CancelEdit(ctx context.Context) (pager.Result, error) {
	c.session.Cancel()
	return c.Refresh(ctx)
}

// Delete removes account after confirmation. A failure leaves the rows untouched.
func (c *Console) Delete(ctx context.Context, account string, confirmed bool) (pager.Result, error) {
	if c.session.Mode(account) == rowedit.Editing {
		return pager.Result{}, ErrRowEditing
	}
	if !confirmed {
		return pager.Result{}, ErrNotConfirmed
	}
	if _, err := c.svc.DeleteUser(ctx, account); err != nil {
		slog.Error("[delete] 删除失败", "account", account, "error", err)
		return pager.Result{}, &ActionError{Prefix: "删除失败：", Err: err}
	}
	return c.Refresh(ctx)
}

// Create submits the add-user form and shows page 0 on success.
func (c *Console) Create(ctx context.Context, form rowedit.CreateForm) (pager.Result, error) {
	if _, err := c.svc.CreateUser(ctx, rowedit.CreatePayload(form)); err != nil {
		slog.Error("[addUser] 失败", "error", err)
		c.report(ActionAddUser, err, report.Extra{})
		return pager.Result{}, &ActionError{Prefix: "添加用户失败：", Err: err}
	}
	return c.Load(ctx, 0, pager.RestoreNone)
}

// ResetPassword resets the password of account and returns the server message.
func (c *Console) ResetPassword(ctx context.Context, account string, confirmed bool) (string, error) {
	if !confirmed {
		return "", ErrNotConfirmed
	}
	body, err := c.svc.ResetPassword(ctx, account)
	if err != nil {
		slog.Error("[resetPassword] 失败", "account", account, "error", err)
		c.report(ActionResetPassword, err, report.Extra{Detail: map[string]string{"account": account}})
		return "", &ActionError{Prefix: "重置密码失败：", Err: err}
	}
	if msg := gateway.MessageOf(body); msg != "" {
		return msg, nil
	}
	return "密码重置成功", nil
}

// ResetPrompt is the confirmation shown before resetting a password.
func ResetPrompt(account string) string {
	return fmt.Sprintf("确认重置账号 %s 的密码吗？", account)
}

// Traffic fetches the hourly statistics.
func (c *Console) Traffic(ctx context.Context) (traffic.Counts, error) {
	body, err := c.svc.TrafficStats(ctx)
	if err == nil {
		var counts traffic.Counts
		if counts, err = traffic.Normalize(body); err == nil {
			return counts, nil
		}
	}
	if status := gateway.StatusCode(err); status != 0 {
		// the chart reports the bare status, not the server message
		err = fmt.Errorf("请求失败，状态码：%d", status)
	}
	slog.Error("[analyzeTraffic] 流量分析接口不可用", "error", err)
	c.report(traffic.ActionAnalyze, err, report.Extra{URL: c.svc.TrafficPath()})
	return traffic.Counts{}, &ActionError{Prefix: traffic.FailurePrefix, Err: err}
}

func (c *Console) report(action string, err error, extra report.Extra) {
	if c.reporter != nil {
		c.reporter.Report(action, err, extra)
	}
}
