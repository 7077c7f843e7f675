package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"telecom-console/internal/config"
	"telecom-console/internal/pager"
	"telecom-console/internal/profile"
	"telecom-console/internal/report"
	"telecom-console/internal/template"
)

// runExport 拉取一次数据并写出静态 HTML 快照
func (a *app) runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	withTraffic := fs.Bool("traffic", false, "Include the 24h traffic chart in the admin snapshot")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return errors.New("用法: console export [-traffic] <admin|user> <out.html>")
	}
	view, out := fs.Arg(0), fs.Arg(1)

	if t := a.cfg.Timeout(); t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	renderer, err := template.NewRenderer()
	if err != nil {
		return fmt.Errorf("template renderer: %w", err)
	}

	var render func(io.Writer) error
	switch view {
	case "admin", "users":
		console := a.newConsole()
		res, err := console.Load(ctx, a.cfg.CurrentPage, pager.RestoreNone)
		if err != nil {
			return err
		}
		page := template.NewUsersPage(console.Rows(), res.Indicator)
		if *withTraffic {
			counts, err := console.Traffic(ctx)
			if err != nil {
				return err
			}
			page.Traffic = template.NewTrafficData(counts)
		}
		render = func(w io.Writer) error { return renderer.RenderUsers(w, page) }
	case "user", "profile":
		v, err := a.newProfile().Fetch(ctx, profile.TriggerExport)
		if err != nil {
			return fmt.Errorf("获取信息失败：%w", err)
		}
		page := template.NewProfilePage(v, a.cfg.Packages)
		render = func(w io.Writer) error { return renderer.RenderProfile(w, page) }
	default:
		return fmt.Errorf("unknown export view: %s", view)
	}

	if err := writeFile(out, render); err != nil {
		return err
	}
	slog.Info("Snapshot exported", "view", view, "path", out)
	fmt.Println(out)
	return nil
}

func writeFile(path string, render func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := render(w); err != nil {
		f.Close()
		return fmt.Errorf("render %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// runReports 列出本地 sink 中最近的诊断上报
func runReports(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("reports", flag.ContinueOnError)
	limit := fs.Int("n", 20, "Number of reports to list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sink, err := report.NewSink(cfg, nil)
	if err != nil {
		return err
	}
	defer sink.Close()

	journal, ok := sink.(report.Journal)
	if !ok {
		return fmt.Errorf("report_sink_mode=%s 不支持查询，请使用 redis 或 sqlite", cfg.ReportSinkMode)
	}
	reports, err := journal.Recent(ctx, *limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tACTION\tMETHOD\tURL\tMESSAGE")
	for _, r := range reports {
		ts := "-"
		if !r.CreatedAt.IsZero() {
			ts = r.CreatedAt.Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", ts, r.Action, r.Method, r.URL, r.Message)
	}
	return tw.Flush()
}
