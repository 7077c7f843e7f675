package template

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"telecom-console/internal/config"
	"telecom-console/internal/model"
	"telecom-console/internal/profile"
	"telecom-console/internal/traffic"
)

func TestRenderUsersEscapesText(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer err=%v", err)
	}
	rows := []model.UserRecord{{
		Account: model.NumberScalar(7),
		Name:    model.StringScalar(`<script>alert("x")</script>`),
		Balance: model.NumberScalar(12.5),
	}}
	page := NewUsersPage(rows, "第 1 页 / 共 1 页")
	page.GeneratedAt = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	var buf bytes.Buffer
	if err := r.RenderUsers(&buf, page); err != nil {
		t.Fatalf("RenderUsers err=%v", err)
	}
	out := buf.String()
	if strings.Contains(out, "<script>") {
		t.Fatalf("user text not escaped:\n%s", out)
	}
	for _, want := range []string{"&lt;script&gt;", "￥<span>12.5</span>", "第 1 页 / 共 1 页", "2024-01-02 03:04:05", "用户管理"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestRenderUsersEmptyTable(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := r.RenderUsers(&buf, NewUsersPage(nil, "第 1 页 / 共 1 页")); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "暂无数据") {
		t.Fatalf("empty placeholder missing:\n%s", buf.String())
	}
}

func TestRenderUsersWithTraffic(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatal(err)
	}
	var c traffic.Counts
	c[8] = 4
	c[9] = 2
	page := NewUsersPage(nil, "")
	page.Traffic = NewTrafficData(c)
	if page.Traffic.Hours[8].Percent != 100 || page.Traffic.Hours[9].Percent != 50 {
		t.Fatalf("percent=%d/%d", page.Traffic.Hours[8].Percent, page.Traffic.Hours[9].Percent)
	}
	var buf bytes.Buffer
	if err := r.RenderUsers(&buf, page); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), traffic.Title) || !strings.Contains(buf.String(), "23:00") {
		t.Fatalf("chart missing:\n%s", buf.String())
	}
}

func TestRenderProfile(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatal(err)
	}
	v := profile.View{Account: "42", Name: "A", Phone: "555", PackageID: "1", Balance: "100", UsedDurationText: "2小时", RemainingDurationText: "10小时"}
	page := NewProfilePage(v, []config.Package{{ID: 1, Duration: "100小时", Cost: "30"}, {ID: 2, Duration: "不限"}})

	var buf bytes.Buffer
	if err := r.RenderProfile(&buf, page); err != nil {
		t.Fatalf("RenderProfile err=%v", err)
	}
	out := buf.String()
	for _, want := range []string{"￥100", "2小时", "10小时", "30 元", "—", "个人中心"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}
