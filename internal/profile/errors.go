package profile

import (
	"errors"
	"regexp"

	"telecom-console/internal/gateway"
)

const (
	ActionInsufficientBalance = "insufficient-balance"
	ActionAPIError            = "handleApiError"

	InsufficientBalanceAlert = "余额不足，请先充值。"
	GenericFailure           = "操作失败"

	FetchFailure   = "获取信息失败"
	ChangeFailure  = "更改套餐失败"
	RechargeFailed = "充值失败"
)

// insufficientPattern is a heuristic over free-text server messages.
var insufficientPattern = regexp.MustCompile(`(?i)余额不足|insufficient balance`)

// OutcomeKind selects how a failed action is surfaced.
type OutcomeKind int

const (
	// AlertInsufficient is the dedicated insufficient-balance alert.
	AlertInsufficient OutcomeKind = iota
	// ShowResult shows the message in the result dialog.
	ShowResult
	// AlertFallback is a plain alert with the caller's fallback text.
	AlertFallback
)

// Outcome is the user-visible result of a failed action and the diagnostic
// report that goes with it.
type Outcome struct {
	Kind          OutcomeKind
	Text          string
	ReportAction  string
	ReportMessage string
	Detail        gateway.Body
}

// Classify maps a failed action to its outcome. The message comes from the
// attached response body first, then from the error itself.
func Classify(err error, fallback string) Outcome {
	detail := gateway.ResponseBody(err)
	msg := gateway.MessageOf(detail)
	if msg == "" && err != nil {
		msg = err.Error()
	}

	if IsInsufficientBalance(msg) {
		return Outcome{
			Kind:          AlertInsufficient,
			Text:          InsufficientBalanceAlert,
			ReportAction:  ActionInsufficientBalance,
			ReportMessage: msg,
			Detail:        detail,
		}
	}

	out := Outcome{ReportAction: ActionAPIError, Detail: detail}
	switch {
	case msg != "":
		out.Kind, out.Text, out.ReportMessage = ShowResult, msg, msg
	case fallback != "":
		out.Kind, out.Text, out.ReportMessage = AlertFallback, fallback, fallback
	default:
		out.Kind, out.Text, out.ReportMessage = AlertFallback, GenericFailure, GenericFailure
	}
	return out
}

// IsInsufficientBalance reports whether text signals an insufficient balance.
func IsInsufficientBalance(text string) bool {
	return insufficientPattern.MatchString(text)
}

// ErrInvalidAmount rejects a recharge amount that is not a positive number.
var ErrInvalidAmount = errors.New("请输入大于0的金额")
