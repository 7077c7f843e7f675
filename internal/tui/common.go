package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type clearStatusMsg struct{ seq int }

// errRequestTimeout 请求超过 request_timeout
var errRequestTimeout = errors.New("请求超时，请稍后重试")

// callContext 每个后台命令单独计时；d<=0 时只继承 parent
func callContext(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, d)
}

// timeoutErr 因超时失败的调用统一带上 errRequestTimeout
func timeoutErr(ctx context.Context, err error) error {
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", errRequestTimeout, err)
	}
	return err
}

// status 状态栏；seq 防止旧的清除定时器清掉新消息
type status struct {
	text  string
	isErr bool
	seq   int
}

func (s *status) set(text string, isErr bool) tea.Cmd {
	s.text, s.isErr = text, isErr
	s.seq++
	d := statusClearDelay
	if isErr {
		d = errorClearDelay
	}
	return clearStatusAfter(d, s.seq)
}

// setFor 显示 text 并在 d 后清除
func (s *status) setFor(text string, d time.Duration) tea.Cmd {
	s.text, s.isErr = text, false
	s.seq++
	return clearStatusAfter(d, s.seq)
}

func (s *status) clear(msg clearStatusMsg) {
	if msg.seq == s.seq {
		s.text, s.isErr = "", false
	}
}

func (s *status) view() string {
	if s.isErr {
		return errorStyle.Render(s.text)
	}
	return successStyle.Render(s.text)
}

func clearStatusAfter(d time.Duration, seq int) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return clearStatusMsg{seq: seq}
	})
}

func newSpinner() spinner.Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(primaryColor)
	return s
}

func newHelp() help.Model {
	h := help.New()
	h.Styles.ShortKey = lipgloss.NewStyle().Foreground(primaryColor)
	h.Styles.ShortDesc = helpStyle
	h.Styles.FullKey = lipgloss.NewStyle().Foreground(primaryColor)
	h.Styles.FullDesc = helpStyle
	return h
}

// overlay 有对话框时居中显示栈顶对话框
func overlay(width, height int, d *dialog) string {
	if width == 0 || height == 0 {
		return d.view()
	}
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, d.view())
}
