package tui

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/kballard/go-shellquote"
)

var errEmptyCommand = errors.New("empty command")

// command 命令栏解析结果
type command struct {
	name string
	args []string
}

// commandSpec 命令名及参数个数
type commandSpec struct {
	args  int
	usage string
}

var adminCommands = map[string]commandSpec{
	"page":    {1, "page <页码>"},
	"next":    {0, "next"},
	"prev":    {0, "prev"},
	"refresh": {0, "refresh"},
	"edit":    {1, "edit <账号>"},
	"delete":  {1, "delete <账号>"},
	"reset":   {1, "reset <账号>"},
	"add":     {0, "add"},
	"traffic": {0, "traffic"},
	"quit":    {0, "quit"},
}

var userCommands = map[string]commandSpec{
	"refresh":  {0, "refresh"},
	"package":  {1, "package <套餐ID>"},
	"recharge": {1, "recharge <金额>"},
	"quit":     {0, "quit"},
}

var commandAliases = map[string]string{
	"q":  "quit",
	"n":  "next",
	"p":  "prev",
	"r":  "refresh",
	"rc": "recharge",
}

// parseCommand 按 shell 规则切分命令行并校验参数个数
func parseCommand(line string, specs map[string]commandSpec) (command, error) {
	tokens, err := shellquote.Split(strings.TrimPrefix(strings.TrimSpace(line), ":"))
	if err != nil {
		return command{}, fmt.Errorf("命令格式错误：%w", err)
	}
	if len(tokens) == 0 {
		return command{}, errEmptyCommand
	}
	name := strings.ToLower(tokens[0])
	if alias, ok := commandAliases[name]; ok {
		name = alias
	}
	spec, ok := specs[name]
	if !ok {
		return command{}, fmt.Errorf("未知命令：%s（可用：%s）", tokens[0], commandNames(specs))
	}
	if len(tokens)-1 != spec.args {
		return command{}, fmt.Errorf("用法：%s", spec.usage)
	}
	return command{name: name, args: tokens[1:]}, nil
}

func commandNames(specs map[string]commandSpec) string {
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// commandBar 底部命令输入框
type commandBar struct {
	input  textinput.Model
	active bool
}

func newCommandBar() commandBar {
	in := textinput.New()
	in.Prompt = ":"
	in.CharLimit = 128
	return commandBar{input: in}
}

func (b *commandBar) open() tea.Cmd {
	b.active = true
	b.input.SetValue("")
	return b.input.Focus()
}

func (b *commandBar) close() {
	b.active = false
	b.input.Blur()
}

// update 处理命令栏按键；submitted 为 true 时 line 为输入内容
func (b *commandBar) update(msg tea.KeyMsg) (line string, submitted bool, cmd tea.Cmd) {
	switch msg.String() {
	case "esc":
		b.close()
		return "", false, nil
	case "enter":
		line = b.input.Value()
		b.close()
		return line, true, nil
	}
	b.input, cmd = b.input.Update(msg)
	return "", false, cmd
}

func (b *commandBar) view() string {
	if !b.active {
		return ""
	}
	return b.input.View()
}
