package tui

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"telecom-console/internal/admin"
	"telecom-console/internal/model"
	"telecom-console/internal/pager"
	"telecom-console/internal/rowedit"
	"telecom-console/internal/traffic"
)

const trafficChartHeight = 10

var editLabels = map[string]string{
	"name":      "姓名",
	"phone":     "电话",
	"packageId": "套餐ID",
	"balance":   "余额",
}

// 表格列宽
var columnWidths = []int{10, 12, 14, 8, 12, 12}

type pageLoadedMsg struct {
	res    pager.Result
	err    error
	notice string
}

type passwordResetMsg struct {
	text string
	err  error
}

type trafficLoadedMsg struct {
	counts traffic.Counts
	err    error
}

// AdminModel 管理员控制台：分页用户表、行内编辑、流量分析
type AdminModel struct {
	ctx     context.Context
	timeout time.Duration
	console *admin.Console
	trigger *pager.BoundaryTrigger

	keys     adminKeyMap
	help     help.Model
	spinner  spinner.Model
	viewport viewport.Model
	bar      commandBar
	dialogs  dialogStack
	status   status

	rows      []model.UserRecord
	cursor    int
	indicator string
	loading   int
	width     int
	height    int
}

func NewAdminModel(ctx context.Context, console *admin.Console) *AdminModel {
	st := console.Pager().State()
	return &AdminModel{
		ctx:       ctx,
		timeout:   console.Timeout(),
		console:   console,
		trigger:   pager.NewBoundaryTrigger(edgeThreshold, pager.DefaultDebounce),
		keys:      newAdminKeyMap(),
		help:      newHelp(),
		spinner:   newSpinner(),
		viewport:  viewport.New(0, defaultViewportHeight),
		bar:       newCommandBar(),
		indicator: pager.Indicator(st.CurrentPage, st.TotalPages),
	}
}

// Init 加载配置中的当前页
func (m *AdminModel) Init() tea.Cmd {
	return tea.Batch(m.loadCmd(m.console.Refresh, ""), m.spinner.Tick)
}

func (m *AdminModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.handleWindowResize(msg)
	case tea.KeyMsg:
		if cmd := m.handleKey(msg); cmd != nil {
			cmds = append(cmds, cmd)
		}
	case tea.MouseMsg:
		if cmd := m.handleMouse(msg); cmd != nil {
			cmds = append(cmds, cmd)
		}
	case pageLoadedMsg:
		cmds = append(cmds, m.handlePageLoaded(msg)...)
	case passwordResetMsg:
		cmds = append(cmds, m.handlePasswordReset(msg)...)
	case trafficLoadedMsg:
		m.handleTrafficLoaded(msg)
	case clearStatusMsg:
		m.status.clear(msg)
	}

	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *AdminModel) handleWindowResize(msg tea.WindowSizeMsg) {
	m.width = msg.Width
	m.height = msg.Height
	m.help.Width = msg.Width
	m.viewport.Width = msg.Width - viewportWidthMargin
	if h := msg.Height - chromeHeight; h >= 3 {
		m.viewport.Height = h
	}
	m.renderTable()
}

// loadCmd 在后台执行一次整页加载类操作
func (m *AdminModel) loadCmd(fn func(context.Context) (pager.Result, error), notice string) tea.Cmd {
	m.loading++
	return func() tea.Msg {
		ctx, cancel := callContext(m.ctx, m.timeout)
		defer cancel()
		res, err := fn(ctx)
		return pageLoadedMsg{res: res, err: timeoutErr(ctx, err), notice: notice}
	}
}

func (m *AdminModel) handlePageLoaded(msg pageLoadedMsg) []tea.Cmd {
	if m.loading > 0 {
		m.loading--
	}
	if msg.err != nil {
		m.applyRestore(msg.res.Restore)
		// 保存失败时行仍处于编辑状态
		if text := adminErrorText(msg.err); text != "" {
			m.dialogs.push(newAlert(text))
		}
		return nil
	}

	m.rows = m.console.Rows()
	m.indicator = msg.res.Indicator
	m.renderTable()
	m.applyRestore(msg.res.Restore)

	if msg.notice != "" {
		return []tea.Cmd{m.status.set(msg.notice, false)}
	}
	return nil
}

// adminErrorText 失败提示文本；空串表示静默忽略
func adminErrorText(err error) string {
	switch {
	case errors.Is(err, pager.ErrBusy), errors.Is(err, pager.ErrNegativePage),
		errors.Is(err, admin.ErrNotConfirmed), errors.Is(err, rowedit.ErrNotEditing):
		return ""
	case errors.Is(err, errRequestTimeout):
		return errRequestTimeout.Error()
	case errors.Is(err, admin.ErrRowEditing):
		return "该行正在编辑，请先保存或取消"
	case errors.Is(err, admin.ErrUnknownRow):
		return "当前页没有该账号"
	}
	return err.Error()
}

func (m *AdminModel) applyRestore(r pager.Restore) {
	switch r {
	case pager.RestoreTop:
		m.viewport.SetYOffset(pager.ApplyRestore(r, m.geometry()))
		m.cursor = clampIndex(m.viewport.YOffset, len(m.rows))
	case pager.RestoreBottom:
		m.viewport.SetYOffset(pager.ApplyRestore(r, m.geometry()))
		m.cursor = clampIndex(len(m.rows)-1, len(m.rows))
	default:
		m.cursor = clampIndex(m.cursor, len(m.rows))
		m.ensureCursorVisible()
	}
	m.renderTable()
}

func (m *AdminModel) handlePasswordReset(msg passwordResetMsg) []tea.Cmd {
	if m.loading > 0 {
		m.loading--
	}
	if msg.err != nil {
		if text := adminErrorText(msg.err); text != "" {
			m.dialogs.push(newAlert(text))
		}
		return nil
	}
	m.dialogs.push(newResult(msg.text))
	return nil
}

func (m *AdminModel) handleTrafficLoaded(msg trafficLoadedMsg) {
	if m.loading > 0 {
		m.loading--
	}
	if msg.err != nil {
		m.dialogs.push(newAlert(adminErrorText(msg.err)))
		return
	}
	m.dialogs.push(newChart(traffic.Title, traffic.Render(msg.counts, trafficChartHeight)))
}

func (m *AdminModel) handleKey(msg tea.KeyMsg) tea.Cmd {
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
	case key.Matches(msg, m.keys.Up):
		return m.moveCursor(-1)
	case key.Matches(msg, m.keys.Down):
		return m.moveCursor(1)
	case key.Matches(msg, m.keys.Refresh):
		return m.loadCmd(m.console.Refresh, "已刷新")
	case key.Matches(msg, m.keys.Edit):
		if row, ok := m.selected(); ok {
			return m.editRow(row.Account.String())
		}
	case key.Matches(msg, m.keys.Delete):
		if row, ok := m.selected(); ok {
			return m.deleteRow(row.Account.String())
		}
	case key.Matches(msg, m.keys.Add):
		m.openCreateForm()
	case key.Matches(msg, m.keys.Traffic):
		return m.trafficCmd()
	case key.Matches(msg, m.keys.Reset):
		if row, ok := m.selected(); ok {
			m.confirmReset(row.Account.String())
		}
	case key.Matches(msg, m.keys.Command):
		return m.bar.open()
	}
	return nil
}

func (m *AdminModel) handleMouse(msg tea.MouseMsg) tea.Cmd {
	if m.dialogs.top() != nil {
		return nil
	}
	switch msg.Button {
	case tea.MouseButtonWheelUp:
		m.viewport.LineUp(1)
		return m.gesture(-1)
	case tea.MouseButtonWheelDown:
		m.viewport.LineDown(1)
		return m.gesture(1)
	}
	return nil
}

// moveCursor 移动选中行；已在首行/末行时视为贴边手势
func (m *AdminModel) moveCursor(delta int) tea.Cmd {
	next := m.cursor + delta
	if next < 0 || next >= len(m.rows) {
		return m.gesture(delta)
	}
	m.cursor = next
	m.ensureCursorVisible()
	m.renderTable()
	return nil
}

// gesture 把贴边滚动转换成翻页请求
func (m *AdminModel) gesture(delta int) tea.Cmd {
	g := pager.Gesture{Delta: delta, Geometry: m.geometry()}
	d, ok := m.trigger.Decide(g, m.console.Pager().State())
	if !ok {
		return nil
	}
	return m.loadCmd(func(ctx context.Context) (pager.Result, error) {
		return m.console.Load(ctx, d.Page, d.Restore)
	}, "")
}

func (m *AdminModel) geometry() pager.Geometry {
	return pager.Geometry{
		ScrollTop:    m.viewport.YOffset,
		ScrollHeight: m.viewport.TotalLineCount(),
		ClientHeight: m.viewport.Height,
	}
}

func (m *AdminModel) ensureCursorVisible() {
	if m.cursor < m.viewport.YOffset {
		m.viewport.SetYOffset(m.cursor)
	} else if h := m.viewport.Height; h > 0 && m.cursor >= m.viewport.YOffset+h {
		m.viewport.SetYOffset(m.cursor - h + 1)
	}
}

func (m *AdminModel) selected() (model.UserRecord, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return model.UserRecord{}, false
	}
	return m.rows[m.cursor], true
}

func (m *AdminModel) selectAccount(account string) bool {
	for i, r := range m.rows {
		if r.Account.String() == account {
			m.cursor = i
			m.ensureCursorVisible()
			m.renderTable()
			return true
		}
	}
	return false
}

// editRow 查看态进入编辑并打开表单；编辑态重新打开表单继续保存
func (m *AdminModel) editRow(account string) tea.Cmd {
	ed, err := m.console.BeginEdit(account)
	if err != nil {
		if text := adminErrorText(err); text != "" {
			m.dialogs.push(newAlert(text))
		}
		return nil
	}
	m.renderTable()

	fields := make([]formField, len(rowedit.EditableFields))
	for i, f := range rowedit.EditableFields {
		fields[i] = formField{label: editLabels[f], value: ed.Value(f)}
	}
	m.dialogs.push(newForm("修改账号 "+account, fields, func(values []string) tea.Cmd {
		for i, f := range rowedit.EditableFields {
			if err := ed.Set(f, values[i]); err != nil {
				m.dialogs.push(newAlert(err.Error()))
				return nil
			}
		}
		return m.loadCmd(m.console.Save, "修改已保存")
	}))
	return nil
}

// deleteRow 编辑中的行取消编辑，其余行确认后删除
func (m *AdminModel) deleteRow(account string) tea.Cmd {
	if m.console.Session().Mode(account) == rowedit.Editing {
		return m.loadCmd(m.console.CancelEdit, "")
	}
	m.dialogs.push(newConfirm(rowedit.DeletePrompt(account), func() tea.Cmd {
		return m.loadCmd(func(ctx context.Context) (pager.Result, error) {
			return m.console.Delete(ctx, account, true)
		}, "已删除账号 "+account)
	}))
	return nil
}

func (m *AdminModel) openCreateForm() {
	fields := []formField{
		{label: "姓名"},
		{label: "电话"},
		{label: "套餐ID"},
		{label: "余额", placeholder: "0"},
		{label: "密码", secret: true},
	}
	m.dialogs.push(newForm("添加用户", fields, func(v []string) tea.Cmd {
		form := rowedit.CreateForm{
			Name:      strings.TrimSpace(v[0]),
			Phone:     strings.TrimSpace(v[1]),
			PackageID: strings.TrimSpace(v[2]),
			Balance:   strings.TrimSpace(v[3]),
			Password:  v[4],
		}
		return m.loadCmd(func(ctx context.Context) (pager.Result, error) {
			return m.console.Create(ctx, form)
		}, "已添加用户")
	}))
}

func (m *AdminModel) confirmReset(account string) {
	m.dialogs.push(newConfirm(admin.ResetPrompt(account), func() tea.Cmd {
		m.loading++
		return func() tea.Msg {
			ctx, cancel := callContext(m.ctx, m.timeout)
			defer cancel()
			text, err := m.console.ResetPassword(ctx, account, true)
			return passwordResetMsg{text: text, err: timeoutErr(ctx, err)}
		}
	}))
}

func (m *AdminModel) trafficCmd() tea.Cmd {
	m.loading++
	return func() tea.Msg {
		ctx, cancel := callContext(m.ctx, m.timeout)
		defer cancel()
		counts, err := m.console.Traffic(ctx)
		return trafficLoadedMsg{counts: counts, err: timeoutErr(ctx, err)}
	}
}

// runCommand 执行命令栏输入
func (m *AdminModel) runCommand(line string) tea.Cmd {
	c, err := parseCommand(line, adminCommands)
	if err != nil {
		if errors.Is(err, errEmptyCommand) {
			return nil
		}
		return m.status.set(err.Error(), true)
	}

	st := m.console.Pager().State()
	switch c.name {
	case "quit":
		return tea.Quit
	case "refresh":
		return m.loadCmd(m.console.Refresh, "已刷新")
	case "next":
		if !st.HasNext() {
			return m.status.set("已经是最后一页", true)
		}
		return m.loadPage(st.CurrentPage+1, pager.RestoreTop)
	case "prev":
		if !st.HasPrev() {
			return m.status.set("已经是第一页", true)
		}
		return m.loadPage(st.CurrentPage-1, pager.RestoreBottom)
	case "page":
		n, err := strconv.Atoi(c.args[0])
		if err != nil || n < 1 {
			return m.status.set("页码无效："+c.args[0], true)
		}
		return m.loadPage(n-1, pager.RestoreNone)
	case "add":
		m.openCreateForm()
	case "traffic":
		return m.trafficCmd()
	case "edit", "delete", "reset":
		account := c.args[0]
		if !m.selectAccount(account) {
			return m.status.set("当前页没有账号 "+account, true)
		}
		switch c.name {
		case "edit":
			return m.editRow(account)
		case "delete":
			return m.deleteRow(account)
		default:
			m.confirmReset(account)
		}
	}
	return nil
}

func (m *AdminModel) loadPage(page int, restore pager.Restore) tea.Cmd {
	return m.loadCmd(func(ctx context.Context) (pager.Result, error) {
		return m.console.Load(ctx, page, restore)
	}, "")
}

// renderTable 重建表格内容，所有单元格先过滤控制字符
func (m *AdminModel) renderTable() {
	if len(m.rows) == 0 {
		m.viewport.SetContent(helpStyle.Render("暂无数据"))
		return
	}
	session := m.console.Session()
	editor, editing := session.Current()

	lines := make([]string, len(m.rows))
	for i, r := range m.rows {
		account := r.Account.String()
		cells := []string{account, r.Name.String(), r.Phone.String(), r.PackageID.String(), "￥" + r.Balance.String()}
		actions := rowedit.EditLabel + " " + rowedit.DeleteLabel
		rowStyle := lipgloss.NewStyle()
		if editing && editor.Account == account {
			cells = []string{account, editor.Value("name"), editor.Value("phone"), editor.Value("packageId"), editor.Value("balance")}
			actions = editor.ActionLabel() + " " + editor.SecondaryLabel()
			rowStyle = editingStyle
		}
		if i == m.cursor {
			rowStyle = selectedStyle
		}
		lines[i] = rowStyle.Render(formatRow(append(cells, actions)))
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
}

func formatRow(cells []string) string {
	parts := make([]string, len(cells))
	for i, c := range cells {
		w := columnWidths[len(columnWidths)-1]
		if i < len(columnWidths) {
			w = columnWidths[i]
		}
		parts[i] = lipgloss.NewStyle().Width(w).MaxWidth(w).Render(rowedit.Sanitize(c))
	}
	return strings.Join(parts, " ")
}

func (m *AdminModel) View() string {
	if d := m.dialogs.top(); d != nil {
		return overlay(m.width, m.height, d)
	}

	var sections []string
	title := titleStyle.Render("◆ 用户管理 ◆")
	if m.loading > 0 {
		title += " " + m.spinner.View()
	}
	sections = append(sections, title)
	sections = append(sections, headerStyle.Render(formatRow([]string{"账号", "姓名", "电话", "套餐", "余额", "操作"}))+"\n"+m.viewport.View())

	footer := statusStyle.Render(m.indicator)
	if !m.viewport.AtBottom() {
		footer += "  " + helpStyle.Render("▼ 更多")
	}
	if m.status.text != "" {
		footer += "  " + m.status.view()
	}
	sections = append(sections, footer)

	if m.bar.active {
		sections = append(sections, m.bar.view())
	} else {
		sections = append(sections, m.help.View(m.keys))
	}
	return strings.Join(sections, "\n\n")
}

// Status 返回状态栏文本
func (m *AdminModel) Status() string { return m.status.text }

// Indicator 返回分页指示文本
func (m *AdminModel) Indicator() string { return m.indicator }
