package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"telecom-console/internal/admin"
	"telecom-console/internal/config"
	"telecom-console/internal/debug"
	"telecom-console/internal/gateway"
	"telecom-console/internal/profile"
	"telecom-console/internal/report"
	"telecom-console/internal/tui"
	"telecom-console/web"
)

const (
	shutdownTimeout = 5 * time.Second
	usage           = `用法: console [flags] <command>

命令:
  admin                          管理员控制台（用户分页表）
  user                           用户控制台（个人中心）
  export [-traffic] <admin|user> <out.html>
                                 导出静态 HTML 快照
  reports [-n 20]                查看本地诊断上报（redis/sqlite）

flags:
`
)

// app 一次运行共享的依赖
type app struct {
	cfg      *config.Config
	reporter *report.Reporter
	gw       *gateway.Gateway
}

func main() {
	configPath := flag.String("config", "", "Path to console.json/console.yaml")
	baseURL := flag.String("base-url", "", "Override base_url")
	account := flag.String("account", "", "Override the user console account")
	logLevel := flag.String("log-level", "", "debug|info|warn|error")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, resolvedCfgPath, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load config:", err)
		os.Exit(1)
	}
	if *baseURL != "" {
		cfg.BaseURL = strings.TrimRight(*baseURL, "/")
	}
	if *account != "" {
		cfg.Account = config.AccountID(strings.TrimSpace(*account))
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	// TUI 占用终端，日志写入文件
	logFile, err := setupLogging(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to open log file:", err)
		os.Exit(1)
	}
	defer logFile.Close()
	slog.Info("Config loaded", "path", resolvedCfgPath, "base_url", cfg.BaseURL)

	if cfg.DebugEnabled {
		debug.CleanupAllLogs()
		slog.Info("已清理调试日志目录")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd, args := flag.Arg(0), flag.Args()[1:]
	if cmd == "reports" {
		if err := runReports(ctx, cfg, args); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	a := newApp(cfg, pagePath(cfg, cmd))
	defer a.close()

	srv := startMetricsServer(cfg)
	defer shutdownServer(srv)

	switch cmd {
	case "admin":
		err = a.runAdmin(ctx)
	case "user":
		err = a.runUser(ctx)
	case "export":
		err = a.runExport(ctx, args)
	default:
		flag.Usage()
		a.close()
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, tea.ErrProgramKilled) {
		slog.Error("Command failed", "command", cmd, "error", err)
		fmt.Fprintln(os.Stderr, err)
		a.close()
		os.Exit(1)
	}
}

func setupLogging(cfg *config.Config) (*os.File, error) {
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return f, nil
}

// pagePath 诊断上报默认 url：当前控制台页面
func pagePath(cfg *config.Config, cmd string) string {
	base := cfg.AdminBase
	if cmd == "user" {
		base = cfg.UserBase
	}
	return "/" + strings.Trim(base, "/") + "/menu"
}

func newApp(cfg *config.Config, page string) *app {
	client := gateway.NewHTTPClient(cfg)

	sink := report.NewSinkOrNop(cfg, client)
	slog.Info("Report sink initialized", "mode", cfg.ReportSinkMode, "sink", fmt.Sprintf("%T", sink))

	reporter := report.New(report.Options{
		Sink:      sink,
		SinkName:  cfg.ReportSinkMode,
		PagePath:  page,
		UserAgent: cfg.UserAgent,
		QueueSize: cfg.ReportQueueSize,
	})

	gw := gateway.New(gateway.Options{
		Client:    client,
		Reporter:  reporter,
		UserAgent: cfg.UserAgent,
		Debug:     debug.New(cfg.DebugEnabled),
	})
	return &app{cfg: cfg, reporter: reporter, gw: gw}
}

// close 排空诊断上报队列
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.reporter.Close(ctx); err != nil {
		slog.Warn("Report drain incomplete", "error", err)
	}
}

func (a *app) newConsole() *admin.Console {
	return admin.NewConsole(admin.NewService(a.gw, a.cfg), a.reporter, a.cfg)
}

func (a *app) newProfile() *profile.Controller {
	return profile.New(profile.Options{Gateway: a.gw, Config: a.cfg, Reporter: a.reporter})
}

func (a *app) runAdmin(ctx context.Context) error {
	m := tui.NewAdminModel(ctx, a.newConsole())
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func (a *app) runUser(ctx context.Context) error {
	m := tui.NewUserModel(ctx, a.newProfile(), a.cfg)
	defer m.Close()
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithReportFocus(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func startMetricsServer(cfg *config.Config) *http.Server {
	if cfg.MetricsAddr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/static/", http.StripPrefix("/static", web.StaticHandler()))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	server := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Metrics server failed", "error", err)
		}
	}()
	slog.Info("Prometheus metrics enabled", "addr", cfg.MetricsAddr, "path", "/metrics")
	return server
}

func shutdownServer(server *http.Server) {
	if server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Metrics server shutdown error", "error", err)
	}
}
