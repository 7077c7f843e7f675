package tui

import "github.com/charmbracelet/bubbles/key"

// adminKeyMap 管理员控制台按键
type adminKeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Edit    key.Binding
	Delete  key.Binding
	Add     key.Binding
	Traffic key.Binding
	Reset   key.Binding
	Refresh key.Binding
	Command key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func (k adminKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Edit, k.Delete, k.Add, k.Traffic, k.Help, k.Quit}
}

func (k adminKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.Edit, k.Delete, k.Add, k.Reset},
		{k.Traffic, k.Refresh, k.Command},
		{k.Help, k.Quit},
	}
}

func newAdminKeyMap() adminKeyMap {
	return adminKeyMap{
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "上移/上一页")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "下移/下一页")),
		Edit:    key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "修改/保存")),
		Delete:  key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "删除/取消")),
		Add:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "添加用户")),
		Traffic: key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "流量分析")),
		Reset:   key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "重置密码")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "刷新")),
		Command: key.NewBinding(key.WithKeys(":"), key.WithHelp(":", "命令")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "帮助")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "退出")),
	}
}

// userKeyMap 用户控制台按键
type userKeyMap struct {
	Refresh  key.Binding
	Package  key.Binding
	Recharge key.Binding
	Command  key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func (k userKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Refresh, k.Package, k.Recharge, k.Command, k.Help, k.Quit}
}

func (k userKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Refresh, k.Package, k.Recharge},
		{k.Command, k.Help, k.Quit},
	}
}

func newUserKeyMap() userKeyMap {
	return userKeyMap{
		Refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "刷新")),
		Package:  key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "更改套餐")),
		Recharge: key.NewBinding(key.WithKeys("$"), key.WithHelp("$", "充值")),
		Command:  key.NewBinding(key.WithKeys(":"), key.WithHelp(":", "命令")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "帮助")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "退出")),
	}
}
