package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type dialogKind int

const (
	dialogAlert dialogKind = iota
	dialogResult
	dialogConfirm
	dialogForm
	dialogPicker
	dialogChart
)

// dialog 模态对话框；控制台持有一个栈，只有栈顶接收按键
type dialog struct {
	kind  dialogKind
	title string
	body  string

	// form
	labels []string
	inputs []textinput.Model
	focus  int

	// picker
	options []string
	cursor  int

	onConfirm func() tea.Cmd
	onSubmit  func(values []string) tea.Cmd
	onPick    func(index int) tea.Cmd
}

func newAlert(text string) *dialog {
	return &dialog{kind: dialogAlert, title: "提示", body: text}
}

func newResult(text string) *dialog {
	return &dialog{kind: dialogResult, title: "操作结果", body: text}
}

func newConfirm(text string, onConfirm func() tea.Cmd) *dialog {
	return &dialog{kind: dialogConfirm, title: "确认", body: text, onConfirm: onConfirm}
}

func newChart(title, chart string) *dialog {
	return &dialog{kind: dialogChart, title: title, body: chart}
}

func newPicker(title string, options []string, cursor int, onPick func(int) tea.Cmd) *dialog {
	return &dialog{kind: dialogPicker, title: title, options: options, cursor: clampIndex(cursor, len(options)), onPick: onPick}
}

// formField 表单字段；placeholder 为空时不显示
type formField struct {
	label       string
	value       string
	placeholder string
	secret      bool
}

func newForm(title string, fields []formField, onSubmit func([]string) tea.Cmd) *dialog {
	d := &dialog{kind: dialogForm, title: title, onSubmit: onSubmit}
	for i, f := range fields {
		in := textinput.New()
		in.Prompt = ""
		in.CharLimit = 64
		in.Width = dialogWidth - 20
		in.Placeholder = f.placeholder
		in.SetValue(f.value)
		if f.secret {
			in.EchoMode = textinput.EchoPassword
		}
		if i == 0 {
			in.Focus()
		}
		d.labels = append(d.labels, f.label)
		d.inputs = append(d.inputs, in)
	}
	return d
}

// values 返回表单当前输入
func (d *dialog) values() []string {
	out := make([]string, len(d.inputs))
	for i, in := range d.inputs {
		out[i] = in.Value()
	}
	return out
}

func (d *dialog) setFocus(i int) tea.Cmd {
	if len(d.inputs) == 0 {
		return nil
	}
	i = (i + len(d.inputs)) % len(d.inputs)
	d.inputs[d.focus].Blur()
	d.focus = i
	return d.inputs[i].Focus()
}

// update 处理栈顶对话框的按键；closed 为 true 时调用方弹栈
func (d *dialog) update(msg tea.KeyMsg) (cmd tea.Cmd, closed bool) {
	switch d.kind {
	case dialogConfirm:
		switch msg.String() {
		case "y", "Y", "enter":
			if d.onConfirm != nil {
				cmd = d.onConfirm()
			}
			return cmd, true
		case "n", "N", "esc":
			return nil, true
		}
		return nil, false

	case dialogForm:
		switch msg.String() {
		case "esc":
			return nil, true
		case "tab", "down":
			return d.setFocus(d.focus + 1), false
		case "shift+tab", "up":
			return d.setFocus(d.focus - 1), false
		case "enter":
			if d.focus < len(d.inputs)-1 {
				return d.setFocus(d.focus + 1), false
			}
			fallthrough
		case "ctrl+s":
			if d.onSubmit != nil {
				cmd = d.onSubmit(d.values())
			}
			return cmd, true
		}
		var c tea.Cmd
		d.inputs[d.focus], c = d.inputs[d.focus].Update(msg)
		return c, false

	case dialogPicker:
		switch msg.String() {
		case "up", "k":
			d.cursor = clampIndex(d.cursor-1, len(d.options))
		case "down", "j":
			d.cursor = clampIndex(d.cursor+1, len(d.options))
		case "enter":
			if d.onPick != nil && len(d.options) > 0 {
				cmd = d.onPick(d.cursor)
			}
			return cmd, true
		case "esc", "q":
			return nil, true
		}
		return nil, false

	default:
		switch msg.String() {
		case "enter", "esc", "q", " ":
			return nil, true
		}
		return nil, false
	}
}

func (d *dialog) view() string {
	lines := []string{titleStyle.Render(d.title), ""}
	switch d.kind {
	case dialogForm:
		for i, in := range d.inputs {
			label := labelStyle.Render(d.labels[i])
			if i == d.focus {
				label = selectedStyle.Width(12).Render(d.labels[i])
			}
			lines = append(lines, label+in.View())
		}
		lines = append(lines, "", helpStyle.Render("Tab 切换字段 · Enter 提交 · Esc 关闭"))
	case dialogPicker:
		for i, opt := range d.options {
			if i == d.cursor {
				lines = append(lines, selectedStyle.Render("▸ "+opt))
			} else {
				lines = append(lines, "  "+opt)
			}
		}
		lines = append(lines, "", helpStyle.Render("↑↓ 选择 · Enter 确认 · Esc 取消"))
	case dialogConfirm:
		lines = append(lines, d.body, "", helpStyle.Render("y/Enter 确定 · n/Esc 取消"))
	default:
		lines = append(lines, d.body, "", helpStyle.Render("Enter/Esc 关闭"))
	}

	content := strings.Join(lines, "\n")
	if d.kind == dialogAlert {
		return alertStyle.Render(content)
	}
	if d.kind == dialogChart {
		return dialogStyle.Width(lipgloss.Width(d.body) + 8).Render(content)
	}
	return dialogStyle.Render(content)
}

// dialogStack 模态栈
type dialogStack []*dialog

func (s *dialogStack) push(d *dialog) { *s = append(*s, d) }

func (s *dialogStack) top() *dialog {
	if len(*s) == 0 {
		return nil
	}
	return (*s)[len(*s)-1]
}

func (s *dialogStack) pop() {
	if len(*s) > 0 {
		*s = (*s)[:len(*s)-1]
	}
}

// handle 把按键交给栈顶。回调可能同步推入新对话框，关闭时按下标移除原对话框
func (s *dialogStack) handle(msg tea.KeyMsg) tea.Cmd {
	d := s.top()
	if d == nil {
		return nil
	}
	idx := len(*s) - 1
	cmd, closed := d.update(msg)
	if closed {
		*s = append((*s)[:idx], (*s)[idx+1:]...)
	}
	return cmd
}

func clampIndex(idx, length int) int {
	if length <= 0 {
		return 0
	}
	if idx < 0 {
		return 0
	}
	if idx >= length {
		return length - 1
	}
	return idx
}
