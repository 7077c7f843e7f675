package config

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Package 套餐目录条目，用于套餐选择器展示时长和价格
type Package struct {
	ID       int         `json:"id"`
	Duration string      `json:"duration"`
	Cost     json.Number `json:"cost"`
}

// AccountID accepts both JSON numbers and strings; page templates inject
// the account as a bare number.
type AccountID string

func (a *AccountID) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*a = ""
		return nil
	}
	if strings.HasPrefix(raw, "\"") {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = AccountID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid account id %s: %w", raw, err)
	}
	*a = AccountID(n.String())
	return nil
}

func (a AccountID) String() string { return string(a) }

type Config struct {
	BaseURL     string `json:"base_url"`
	AdminBase   string `json:"admin_base"`
	UserBase    string `json:"user_base"`
	LogSinkPath string `json:"log_sink_path"`
	UserAgent   string `json:"user_agent"`

	// Page configuration, read once at startup.
	Account           AccountID `json:"account"`
	LoginMsg          string    `json:"login_msg"`
	RefreshIntervalMs int       `json:"refresh_interval_ms"`
	CurrentPage       int       `json:"current_page"`
	TotalPages        int       `json:"total_pages"`
	PageSize          int       `json:"page_size"`
	Packages          []Package `json:"packages"`

	RequestTimeout int `json:"request_timeout"`

	// Outbound proxy; proxy_bypass is a comma separated host/CIDR list.
	ProxyHTTP   string `json:"proxy_http"`
	ProxyHTTPS  string `json:"proxy_https"`
	ProxyUser   string `json:"proxy_user"`
	ProxyPass   string `json:"proxy_pass"`
	ProxyBypass string `json:"proxy_bypass"`

	// Diagnostic report sink
	ReportSinkMode      string `json:"report_sink_mode"`
	ReportQueueSize     int    `json:"report_queue_size"`
	ReportRedisAddr     string `json:"report_redis_addr"`
	ReportRedisPassword string `json:"report_redis_password"`
	ReportRedisDB       int    `json:"report_redis_db"`
	ReportRedisKey      string `json:"report_redis_key"`
	ReportRedisMaxLen   int    `json:"report_redis_max_len"`
	ReportSQLitePath    string `json:"report_sqlite_path"`

	MetricsAddr  string `json:"metrics_addr"`
	DebugEnabled bool   `json:"debug_enabled"`
	LogFile      string `json:"log_file"`
	LogLevel     string `json:"log_level"`
}

func Load(path string) (*Config, string, error) {
	resolvedPath, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", err
	}

	data, err := os.ReadFile(resolvedPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read config: %w", err)
	}

	cfg, err := Parse(data, filepath.Ext(resolvedPath))
	if err != nil {
		return nil, "", err
	}
	return cfg, resolvedPath, nil
}

// Parse decodes config bytes according to the file extension and applies defaults.
func Parse(data []byte, ext string) (*Config, error) {
	cfg := Config{}
	switch strings.ToLower(ext) {
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config json: %w", err)
		}
	case ".yaml", ".yml":
		m, err := parseYAMLFlat(data)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("failed to normalize yaml: %w", err)
		}
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config extension: %s", ext)
	}

	ApplyDefaults(&cfg)
	return &cfg, nil
}

func resolveConfigPath(path string) (string, error) {
	if strings.TrimSpace(path) != "" {
		return path, nil
	}

	candidates := []string{"console.json", "console.yaml", "console.yml"}
	for _, name := range candidates {
		if _, err := os.Stat(name); err == nil {
			return name, nil
		}
	}

	return "", errors.New("console.json/console.yaml/console.yml not found")
}

func ApplyDefaults(cfg *Config) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.AdminBase == "" {
		cfg.AdminBase = "/admin"
	}
	if cfg.UserBase == "" {
		cfg.UserBase = "/user"
	}
	if cfg.LogSinkPath == "" {
		cfg.LogSinkPath = "/logs/frontend"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "telecom-console/1.0"
	}
	if cfg.Account == "" {
		cfg.Account = "0"
	}
	cfg.LoginMsg = NormalizeLoginMessage(cfg.LoginMsg)
	if cfg.RefreshIntervalMs <= 0 {
		cfg.RefreshIntervalMs = 30000
	}
	if cfg.CurrentPage < 0 {
		cfg.CurrentPage = 0
	}
	if cfg.TotalPages < 1 {
		cfg.TotalPages = 1
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 10
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30
	}
	if cfg.ReportSinkMode == "" {
		cfg.ReportSinkMode = "http"
	}
	cfg.ReportSinkMode = strings.ToLower(strings.TrimSpace(cfg.ReportSinkMode))
	if cfg.ReportQueueSize <= 0 {
		cfg.ReportQueueSize = 64
	}
	if cfg.ReportRedisKey == "" {
		cfg.ReportRedisKey = "console:frontend-logs"
	}
	if cfg.ReportRedisMaxLen <= 0 {
		cfg.ReportRedisMaxLen = 10000
	}
	if cfg.ReportSQLitePath == "" {
		cfg.ReportSQLitePath = "data/reports.db"
	}
	if cfg.ReportSinkMode == "redis" && cfg.ReportRedisAddr == "" {
		cfg.ReportRedisAddr = "127.0.0.1:6379"
		slog.Warn("report_sink_mode=redis 但未配置 report_redis_addr，使用默认地址", "addr", cfg.ReportRedisAddr)
	}
	if cfg.LogFile == "" {
		cfg.LogFile = "console.log"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

// NormalizeLoginMessage trims the injected login message; template engines
// may render a missing value as the literal "null" or "undefined".
func NormalizeLoginMessage(msg string) string {
	msg = strings.TrimSpace(msg)
	switch strings.ToLower(msg) {
	case "null", "undefined":
		return ""
	}
	return msg
}

// RefreshInterval returns the profile polling interval.
func (c *Config) RefreshInterval() time.Duration {
	if c.RefreshIntervalMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.RefreshIntervalMs) * time.Millisecond
}

func (c *Config) Timeout() time.Duration {
	if c.RequestTimeout <= 0 {
		return 0
	}
	return time.Duration(c.RequestTimeout) * time.Second
}

// BypassList splits proxy_bypass into entries.
func (c *Config) BypassList() []string {
	var out []string
	for _, item := range strings.Split(c.ProxyBypass, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// AdminURL joins an admin endpoint path onto the base URL.
func (c *Config) AdminURL(path string) string {
	return c.BaseURL + joinPath(c.AdminBase, path)
}

// UserURL joins a user endpoint path onto the base URL.
func (c *Config) UserURL(path string) string {
	return c.BaseURL + joinPath(c.UserBase, path)
}

func (c *Config) SinkURL() string {
	return c.BaseURL + joinPath("", c.LogSinkPath)
}

// FindPackage looks up a catalog entry by id.
func (c *Config) FindPackage(id int) (Package, bool) {
	for _, p := range c.Packages {
		if p.ID == id {
			return p, true
		}
	}
	return Package{}, false
}

func joinPath(base, path string) string {
	base = "/" + strings.Trim(base, "/")
	if base == "/" {
		base = ""
	}
	if path == "" {
		return base
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

// parseYAMLFlat 只解析顶层 key: value；列表（packages）仅 JSON 配置支持
func parseYAMLFlat(data []byte) (map[string]any, error) {
	out := map[string]any{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for n := 1; sc.Scan(); n++ {
		line := stripComment(sc.Text())
		if line == "" || strings.HasPrefix(line, "-") || isIndented(sc.Text()) {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("invalid yaml line %d: %q", n, line)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if v, ok := yamlScalar(strings.TrimSpace(value)); ok {
			out[key] = v
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// stripComment # 前必须是空白，避免截断 URL 中的 #
func stripComment(line string) string {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "#") {
		return ""
	}
	for i := 1; i < len(line); i++ {
		if line[i] == '#' && (line[i-1] == ' ' || line[i-1] == '\t') {
			return strings.TrimSpace(line[:i])
		}
	}
	return line
}

func isIndented(raw string) bool {
	return strings.HasPrefix(raw, " ") || strings.HasPrefix(raw, "\t")
}

// yamlScalar 引号内为字符串；空的未加引号值表示嵌套块，跳过
func yamlScalar(value string) (any, bool) {
	if len(value) >= 2 && (value[0] == '"' || value[0] == '\'') && value[len(value)-1] == value[0] {
		return value[1 : len(value)-1], true
	}
	switch value {
	case "":
		return nil, false
	case "true", "false":
		return value == "true", true
	}
	if num, err := strconv.Atoi(value); err == nil {
		return num, true
	}
	return value, true
}
