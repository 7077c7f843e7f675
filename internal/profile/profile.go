// Package profile drives the end-user console: profile and remaining-time
// fetches, package change, recharge and the periodic refresh.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"sync"

	"golang.org/x/sync/errgroup"

	"telecom-console/internal/config"
	"telecom-console/internal/gateway"
	"telecom-console/internal/metrics"
	"telecom-console/internal/model"
	"telecom-console/internal/report"
	"telecom-console/internal/rowedit"
)

// Trigger names what caused a profile refresh.
type Trigger string

const (
	TriggerInitial  Trigger = "initial"
	TriggerManual   Trigger = "manual"
	TriggerInterval Trigger = "interval"
	TriggerVisible  Trigger = "visible"
	TriggerRecharge Trigger = "recharge"
	TriggerExport   Trigger = "export"
)

type Options struct {
	Gateway  *gateway.Gateway
	Config   *config.Config
	Reporter gateway.Reporter
}

// Controller owns the profile view of one account.
type Controller struct {
	gw       *gateway.Gateway
	cfg      *config.Config
	reporter gateway.Reporter
	account  string

	mu     sync.RWMutex
	view   View
	loaded bool
}

func New(opts Options) *Controller {
	return &Controller{
		gw:       opts.Gateway,
		cfg:      opts.Config,
		reporter: opts.Reporter,
		account:  opts.Config.Account.String(),
	}
}

func (c *Controller) Account() string { return c.account }

// View returns the last rendered view and whether any fetch succeeded yet.
func (c *Controller) View() (View, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.view, c.loaded
}

func (c *Controller) userURL(suffix string) string {
	return c.cfg.UserURL("/" + url.PathEscape(c.account) + suffix)
}

// Fetch loads the profile and the remaining-time record concurrently and
// replaces the whole view on success. On failure the view is untouched.
func (c *Controller) Fetch(ctx context.Context, trigger Trigger) (View, error) {
	metrics.ProfileRefreshesTotal.WithLabelValues(string(trigger)).Inc()
	slog.Debug("[user_menu] fetchProfile", "account", c.account, "trigger", trigger)

	var (
		user      model.UserRecord
		remaining model.RemainingTime
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		body, err := c.gw.Get(gctx, c.userURL(""))
		if err != nil {
			return err
		}
		return body.Decode(&user)
	})
	g.Go(func() error {
		body, err := c.gw.Get(gctx, c.userURL("/remaining-time"))
		if err != nil {
			return err
		}
		return body.Decode(&remaining)
	})
	if err := g.Wait(); err != nil {
		return View{}, err
	}

	v := buildView(user, remaining)
	c.mu.Lock()
	c.view = v
	c.loaded = true
	c.mu.Unlock()
	return v, nil
}

// ChangeResult is the outcome of a package change.
type ChangeResult struct {
	Message   string
	PackageID string
}

// ConfirmChangePrompt is the confirmation shown before changing package.
func ConfirmChangePrompt(packageID string) string {
	return "确认购买并且将套餐更改为：" + packageID + " ?\n新套餐将直接覆盖旧套餐,且费用立即扣除。"
}

// ChangePackage posts the change and patches the displayed package id from
// newPackage, falling back to the requested id.
func (c *Controller) ChangePackage(ctx context.Context, packageID string) (ChangeResult, error) {
	target := c.userURL("/change-package") + "?packageId=" + url.QueryEscape(packageID)
	body, err := c.gw.Post(ctx, target, nil)
	if err != nil {
		return ChangeResult{}, err
	}

	res := ChangeResult{Message: ResultText(body), PackageID: packageID}
	if raw := body.Field("newPackage"); raw != nil {
		var s model.Scalar
		if json.Unmarshal(raw, &s) == nil {
			res.PackageID = s.String()
		}
	}
	c.mu.Lock()
	c.view.PackageID = res.PackageID
	c.mu.Unlock()
	return res, nil
}

// ParseAmount validates a typed recharge amount: it must be a finite
// number greater than zero.
func ParseAmount(text string) (float64, error) {
	amt, ok := rowedit.ToNumber(text)
	if !ok || amt <= 0 || math.IsInf(amt, 0) {
		return 0, ErrInvalidAmount
	}
	return amt, nil
}

// ConfirmRechargePrompt is the confirmation shown before recharging.
func ConfirmRechargePrompt(amount float64) string {
	return fmt.Sprintf("确认充值 %s 元？", model.FormatNumber(amount))
}

// RechargeResult is the outcome of a recharge. Refetched is set when the
// response had no newBalance key at all and the profile was fetched again;
// RefreshErr holds that fetch's failure.
type RechargeResult struct {
	Message    string
	Balance    string
	Refetched  bool
	RefreshErr error
}

// Recharge posts amount. A non-positive amount returns ErrInvalidAmount
// without any request.
func (c *Controller) Recharge(ctx context.Context, amount float64) (RechargeResult, error) {
	if !(amount > 0) || math.IsInf(amount, 0) {
		return RechargeResult{}, ErrInvalidAmount
	}
	target := c.userURL("/recharge") + "?amount=" + url.QueryEscape(model.FormatNumber(amount))
	body, err := c.gw.Post(ctx, target, nil)
	if err != nil {
		return RechargeResult{}, err
	}

	res := RechargeResult{Message: ResultText(body)}
	if body.Has("newBalance") {
		res.Balance = balanceText(body.Field("newBalance"))
		c.mu.Lock()
		c.view.Balance = res.Balance
		c.mu.Unlock()
		return res, nil
	}

	res.Refetched = true
	v, err := c.Fetch(ctx, TriggerRecharge)
	if err != nil {
		res.RefreshErr = err
		return res, nil
	}
	res.Balance = v.Balance
	return res, nil
}

// balanceText 只要响应带 newBalance 就直接覆盖余额；null 原样显示为 "null"
func balanceText(raw json.RawMessage) string {
	if raw == nil {
		return "null"
	}
	var s model.Scalar
	if err := json.Unmarshal(raw, &s); err != nil {
		return string(raw)
	}
	return s.String()
}

// HandleError classifies a failed action, reports it and returns what the
// user should see.
func (c *Controller) HandleError(err error, fallback string) Outcome {
	slog.Error("用户操作失败", "error", err, "fallback", fallback)
	out := Classify(err, fallback)
	if c.reporter != nil {
		var detail interface{}
		if out.Detail != nil {
			detail = out.Detail
		}
		c.reporter.Report(out.ReportAction, errors.New(out.ReportMessage), report.Extra{Detail: detail})
	}
	return out
}

// ResultText is the text of the result dialog: the body's message, a bare
// JSON string, or the indented JSON.
func ResultText(body gateway.Body) string {
	if msg := gateway.MessageOf(body); msg != "" {
		return msg
	}
	var s string
	if json.Unmarshal(body, &s) == nil {
		return s
	}
	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return string(body)
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(body)
	}
	return string(out)
}

// LoginToast returns the login message to flash, if any.
func LoginToast(cfg *config.Config) (string, bool) {
	msg := config.NormalizeLoginMessage(cfg.LoginMsg)
	return msg, msg != ""
}
