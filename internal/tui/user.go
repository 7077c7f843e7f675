package tui

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"telecom-console/internal/config"
	"telecom-console/internal/profile"
	"telecom-console/internal/rowedit"
)

type profileLoadedMsg struct {
	view    profile.View
	trigger profile.Trigger
	err     error
}

type refreshTriggerMsg struct{ trigger profile.Trigger }

type packageChangedMsg struct {
	res profile.ChangeResult
	err error
}

type rechargedMsg struct {
	res profile.RechargeResult
	err error
}

// UserModel 用户控制台：个人信息、更改套餐、充值、定时刷新
type UserModel struct {
	ctx       context.Context
	ctrl      *profile.Controller
	cfg       *config.Config
	refresher *profile.AutoRefresher
	triggers  chan profile.Trigger

	keys    userKeyMap
	help    help.Model
	spinner spinner.Model
	bar     commandBar
	dialogs dialogStack
	status  status

	loading int
	width   int
	height  int
}

func NewUserModel(ctx context.Context, ctrl *profile.Controller, cfg *config.Config) *UserModel {
	m := &UserModel{
		ctx:      ctx,
		ctrl:     ctrl,
		cfg:      cfg,
		triggers: make(chan profile.Trigger, 1),
		keys:     newUserKeyMap(),
		help:     newHelp(),
		spinner:  newSpinner(),
		bar:      newCommandBar(),
	}
	m.refresher = profile.NewAutoRefresher(cfg.RefreshInterval(), m.enqueue)
	return m
}

// enqueue 由定时器协程调用；已有待处理的刷新时合并
func (m *UserModel) enqueue(t profile.Trigger) {
	select {
	case m.triggers <- t:
	default:
	}
}

func waitForTrigger(ch <-chan profile.Trigger) tea.Cmd {
	return func() tea.Msg {
		return refreshTriggerMsg{trigger: <-ch}
	}
}

// Init 首次加载、启动定时刷新并显示登录提示
func (m *UserModel) Init() tea.Cmd {
	m.refresher.Start()
	cmds := []tea.Cmd{
		m.fetchCmd(profile.TriggerInitial),
		waitForTrigger(m.triggers),
		m.spinner.Tick,
	}
	if msg, ok := profile.LoginToast(m.cfg); ok {
		cmds = append(cmds, m.status.setFor(msg, profile.ToastDuration))
	}
	return tea.Batch(cmds...)
}

// Close 停止定时刷新
func (m *UserModel) Close() {
	m.refresher.Stop()
}

func (m *UserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
	case tea.FocusMsg:
		m.refresher.SetVisible(true)
	case tea.BlurMsg:
		m.refresher.SetVisible(false)
	case tea.KeyMsg:
		if cmd := m.handleKey(msg); cmd != nil {
			cmds = append(cmds, cmd)
		}
	case refreshTriggerMsg:
		cmds = append(cmds, m.fetchCmd(msg.trigger), waitForTrigger(m.triggers))
	case profileLoadedMsg:
		cmds = append(cmds, m.handleProfileLoaded(msg)...)
	case packageChangedMsg:
		m.handlePackageChanged(msg)
	case rechargedMsg:
		m.handleRecharged(msg)
	case clearStatusMsg:
		m.status.clear(msg)
	}

	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *UserModel) fetchCmd(trigger profile.Trigger) tea.Cmd {
	m.loading++
	return func() tea.Msg {
		ctx, cancel := callContext(m.ctx, m.cfg.Timeout())
		defer cancel()
		v, err := m.ctrl.Fetch(ctx, trigger)
		return profileLoadedMsg{view: v, trigger: trigger, err: timeoutErr(ctx, err)}
	}
}

func (m *UserModel) done() {
	if m.loading > 0 {
		m.loading--
	}
}

func (m *UserModel) handleProfileLoaded(msg profileLoadedMsg) []tea.Cmd {
	m.done()
	if msg.err != nil {
		if errors.Is(msg.err, context.Canceled) {
			return nil
		}
		m.fail(msg.err, profile.FetchFailure)
		return nil
	}
	if msg.trigger == profile.TriggerManual {
		return []tea.Cmd{m.status.set("已刷新", false)}
	}
	return nil
}

func (m *UserModel) handlePackageChanged(msg packageChangedMsg) {
	m.done()
	if msg.err != nil {
		m.fail(msg.err, profile.ChangeFailure)
		return
	}
	m.dialogs.push(newResult(msg.res.Message))
}

func (m *UserModel) handleRecharged(msg rechargedMsg) {
	m.done()
	if msg.err != nil {
		m.fail(msg.err, profile.RechargeFailed)
		return
	}
	m.dialogs.push(newResult(msg.res.Message))
	if msg.res.RefreshErr != nil {
		m.fail(msg.res.RefreshErr, profile.FetchFailure)
	}
}

// fail 超时直接提示（网关已上报），其余走统一错误处理
func (m *UserModel) fail(err error, fallback string) {
	if errors.Is(err, errRequestTimeout) {
		m.dialogs.push(newAlert(errRequestTimeout.Error()))
		return
	}
	m.showOutcome(m.ctrl.HandleError(err, fallback))
}

func (m *UserModel) showOutcome(out profile.Outcome) {
	if out.Kind == profile.ShowResult {
		m.dialogs.push(newResult(out.Text))
		return
	}
	m.dialogs.push(newAlert(out.Text))
}

func (m *UserModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	if msg.Type == tea.KeyCtrlC {
		return tea.Quit
	}
	if m.dialogs.top() != nil {
		return m.dialogs.handle(msg)
	}
	if m.bar.active {
		line, submitted, cmd := m.bar.update(msg)
		if submitted {
			return m.runCommand(line)
		}
		return cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Refresh):
		return m.fetchCmd(profile.TriggerManual)
	case key.Matches(msg, m.keys.Package):
		m.openPackagePicker()
	case key.Matches(msg, m.keys.Recharge):
		m.openRechargeForm()
	case key.Matches(msg, m.keys.Command):
		return m.bar.open()
	}
	return nil
}

// openPackagePicker 列出套餐目录；没有目录时改为手动输入套餐ID
func (m *UserModel) openPackagePicker() {
	if len(m.cfg.Packages) == 0 {
		m.dialogs.push(newForm("更改套餐", []formField{{label: "套餐ID"}}, func(v []string) tea.Cmd {
			if id := strings.TrimSpace(v[0]); id != "" {
				m.confirmChange(id)
			}
			return nil
		}))
		return
	}

	view, _ := m.ctrl.View()
	options := make([]string, len(m.cfg.Packages))
	cursor := 0
	for i, p := range m.cfg.Packages {
		desc, price := profile.PackageDetail(p)
		id := strconv.Itoa(p.ID)
		options[i] = "套餐 " + id + "  " + desc + "  " + price
		if id == view.PackageID {
			options[i] += "（当前）"
			cursor = i
		}
	}
	m.dialogs.push(newPicker("选择套餐", options, cursor, func(i int) tea.Cmd {
		m.confirmChange(strconv.Itoa(m.cfg.Packages[i].ID))
		return nil
	}))
}

func (m *UserModel) confirmChange(packageID string) {
	m.dialogs.push(newConfirm(profile.ConfirmChangePrompt(packageID), func() tea.Cmd {
		m.loading++
		return func() tea.Msg {
			ctx, cancel := callContext(m.ctx, m.cfg.Timeout())
			defer cancel()
			res, err := m.ctrl.ChangePackage(ctx, packageID)
			return packageChangedMsg{res: res, err: timeoutErr(ctx, err)}
		}
	}))
}

func (m *UserModel) openRechargeForm() {
	m.dialogs.push(newForm("充值", []formField{{label: "金额", placeholder: "元"}}, func(v []string) tea.Cmd {
		m.confirmRecharge(v[0])
		return nil
	}))
}

// confirmRecharge 校验金额，非法金额直接提示，不发请求
func (m *UserModel) confirmRecharge(text string) {
	amount, err := profile.ParseAmount(text)
	if err != nil {
		m.dialogs.push(newAlert(err.Error()))
		return
	}
	m.dialogs.push(newConfirm(profile.ConfirmRechargePrompt(amount), func() tea.Cmd {
		m.loading++
		return func() tea.Msg {
			ctx, cancel := callContext(m.ctx, m.cfg.Timeout())
			defer cancel()
			res, err := m.ctrl.Recharge(ctx, amount)
			res.RefreshErr = timeoutErr(ctx, res.RefreshErr)
			return rechargedMsg{res: res, err: timeoutErr(ctx, err)}
		}
	}))
}

func (m *UserModel) runCommand(line string) tea.Cmd {
	c, err := parseCommand(line, userCommands)
	if err != nil {
		if errors.Is(err, errEmptyCommand) {
			return nil
		}
		return m.status.set(err.Error(), true)
	}
	switch c.name {
	case "quit":
		return tea.Quit
	case "refresh":
		return m.fetchCmd(profile.TriggerManual)
	case "package":
		m.confirmChange(c.args[0])
	case "recharge":
		m.confirmRecharge(c.args[0])
	}
	return nil
}

func (m *UserModel) renderProfile() string {
	view, loaded := m.ctrl.View()
	if !loaded {
		return "加载中... " + m.spinner.View()
	}
	field := func(label, value string) string {
		return labelStyle.Render(label) + valueStyle.Render(rowedit.Sanitize(value))
	}
	lines := []string{
		titleStyle.Render("账户信息"),
		field("账号", view.Account),
		field("姓名", view.Name),
		field("电话", view.Phone),
		"",
		titleStyle.Render("套餐与余额"),
		field("套餐", view.PackageID),
	}
	if id, err := strconv.Atoi(view.PackageID); err == nil {
		if p, ok := m.cfg.FindPackage(id); ok {
			desc, price := profile.PackageDetail(p)
			lines = append(lines, field("套餐详情", desc+" · "+price))
		}
	}
	lines = append(lines,
		field("余额", view.BalanceText()),
		field("已用时长", view.UsedDurationText),
		field("剩余时长", view.RemainingDurationText),
	)
	return panelStyle.Render(strings.Join(lines, "\n"))
}

func (m *UserModel) View() string {
	if d := m.dialogs.top(); d != nil {
		return overlay(m.width, m.height, d)
	}

	var sections []string
	title := titleStyle.Render("◆ 个人中心 ◆")
	if m.loading > 0 {
		title += " " + m.spinner.View()
	}
	sections = append(sections, title, m.renderProfile())
	if m.status.text != "" {
		sections = append(sections, m.status.view())
	}
	if m.bar.active {
		sections = append(sections, m.bar.view())
	} else {
		sections = append(sections, m.help.View(m.keys))
	}
	return strings.Join(sections, "\n\n")
}

// Status 返回状态栏文本
func (m *UserModel) Status() string { return m.status.text }
