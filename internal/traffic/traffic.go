// Package traffic turns the hourly online-user statistics into 24 buckets
// and draws them as a terminal chart.
package traffic

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"telecom-console/internal/gateway"
	"telecom-console/internal/model"
	"telecom-console/internal/perf"
)

const (
	Title         = "24小时用户流量分析"
	SeriesLabel   = "小时活跃度"
	XAxisLabel    = "小时"
	YAxisLabel    = "在线用户数"
	ActionAnalyze = "analyzeTraffic"
	FailurePrefix = "流量分析接口暂不可用："
)

// Counts holds the online user count of each hour of the day.
type Counts [24]float64

// Labels returns "0:00" through "23:00".
func Labels() []string {
	out := make([]string, 24)
	for h := range out {
		out[h] = fmt.Sprintf("%d:00", h)
	}
	return out
}

// Normalize accepts an array of {hour, onlineUserCount}, an object wrapping
// it in data or stats, or a single such object. Hours outside 0..23 and
// non-integral hours are ignored; a missing count is 0.
func Normalize(body gateway.Body) (Counts, error) {
	var out Counts
	items, err := items(body)
	if err != nil {
		return out, err
	}
	for _, item := range items {
		hour, ok := item.Hour.Float()
		if !ok || hour < 0 || hour > 23 || hour != math.Trunc(hour) {
			continue
		}
		count, _ := item.OnlineUserCount.Float()
		if math.IsNaN(count) {
			count = 0
		}
		out[int(hour)] = count
	}
	return out, nil
}

func items(body gateway.Body) ([]model.HourlyStat, error) {
	var list []model.HourlyStat
	if body.IsArray() {
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, fmt.Errorf("decode traffic stats: %w", err)
		}
		return list, nil
	}
	for _, key := range []string{"data", "stats"} {
		if raw := body.Field(key); gateway.Body(raw).IsArray() {
			if err := json.Unmarshal(raw, &list); err != nil {
				return nil, fmt.Errorf("decode traffic stats: %w", err)
			}
			return list, nil
		}
	}
	var single model.HourlyStat
	if err := body.Decode(&single); err != nil {
		return nil, fmt.Errorf("decode traffic stats: %w", err)
	}
	return []model.HourlyStat{single}, nil
}

// Peak returns the busiest hour and its count; ties keep the earliest hour.
func (c Counts) Peak() (int, float64) {
	hour, top := 0, c[0]
	for h, v := range c {
		if v > top {
			hour, top = h, v
		}
	}
	return hour, top
}

// Total sums all buckets.
func (c Counts) Total() float64 {
	var sum float64
	for _, v := range c {
		sum += v
	}
	return sum
}

// Render draws the counts as a column chart height rows tall.
func Render(c Counts, height int) string {
	if height < 3 {
		height = 3
	}
	_, peak := c.Peak()
	top := math.Max(1, math.Ceil(peak))

	sb := perf.AcquireStringBuilder()
	defer perf.ReleaseStringBuilder(sb)

	sb.WriteString(Title)
	sb.WriteString("\n")
	sb.WriteString(YAxisLabel)
	sb.WriteString("\n")
	for row := height; row >= 1; row-- {
		var label string
		switch row {
		case height:
			label = model.FormatNumber(top)
		case (height + 1) / 2:
			label = model.FormatNumber(math.Round(top * float64(row) / float64(height)))
		}
		fmt.Fprintf(sb, "%6s │", label)
		for _, v := range c {
			if v > 0 && v/top*float64(height) >= float64(row)-0.5 {
				sb.WriteString("██ ")
			} else {
				sb.WriteString("   ")
			}
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(sb, "%6s └%s\n", "0", strings.Repeat("─", 24*3))
	sb.WriteString("        ")
	for h := range c {
		fmt.Fprintf(sb, "%-3d", h)
	}
	sb.WriteString(XAxisLabel)
	sb.WriteString("\n")

	hour, count := c.Peak()
	fmt.Fprintf(sb, "%s: 峰值 %s (%s), 合计 %s\n", SeriesLabel, Labels()[hour], model.FormatNumber(count), model.FormatNumber(c.Total()))
	return sb.String()
}
