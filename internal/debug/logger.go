package debug

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

const (
	baseDir     = "debug-logs"
	callsFile   = "calls.jsonl"
	maxSessions = 10
)

// Entry 调试日志中的一行
type Entry struct {
	Seq        int64  `json:"seq"`
	Phase      string `json:"phase"` // request | response
	Method     string `json:"method"`
	URL        string `json:"url,omitempty"`
	Status     int    `json:"status,omitempty"`
	ElapsedMs  int64  `json:"elapsed_ms"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	Body       any    `json:"body,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Logger 调试日志记录器：每个会话一个目录，REST 调用逐行追加到 calls.jsonl
type Logger struct {
	enabled bool
	dir     string
	seq     atomic.Int64
	mu      sync.Mutex
	start   time.Time
}

// New 创建新的调试日志记录器
func New(enabled bool) *Logger {
	return NewAt(baseDir, enabled)
}

// NewAt 在 root 下创建会话目录并清理过旧的会话
func NewAt(root string, enabled bool) *Logger {
	if !enabled {
		return &Logger{}
	}
	dir := filepath.Join(root, time.Now().Format("2006-01-02_15-04-05"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &Logger{}
	}
	pruneSessions(root, maxSessions)
	return &Logger{enabled: true, dir: dir, start: time.Now()}
}

// CleanupAllLogs 清理所有调试日志（启动时调用）
func CleanupAllLogs() {
	os.RemoveAll(baseDir)
	os.MkdirAll(baseDir, 0755)
}

func (l *Logger) Enabled() bool {
	return l != nil && l.enabled
}

// Dir 返回会话目录；未启用时为空
func (l *Logger) Dir() string {
	if !l.Enabled() {
		return ""
	}
	return l.dir
}

// Begin 分配一次调用的序号
func (l *Logger) Begin() int64 {
	if !l.Enabled() {
		return 0
	}
	return l.seq.Add(1)
}

// LogRequest 记录发出的请求
func (l *Logger) LogRequest(seq int64, method, url string, body []byte) {
	if !l.Enabled() {
		return
	}
	l.append(Entry{
		Seq:       seq,
		Phase:     "request",
		Method:    method,
		URL:       url,
		ElapsedMs: time.Since(l.start).Milliseconds(),
		Body:      bodyValue(body),
	})
}

// LogResponse 记录响应；status 为 0 表示网络错误
func (l *Logger) LogResponse(seq int64, method string, status int, body []byte, duration time.Duration, callErr error) {
	if !l.Enabled() {
		return
	}
	e := Entry{
		Seq:        seq,
		Phase:      "response",
		Method:     method,
		Status:     status,
		ElapsedMs:  time.Since(l.start).Milliseconds(),
		DurationMs: duration.Milliseconds(),
		Body:       bodyValue(body),
	}
	if callErr != nil {
		e.Error = callErr.Error()
	}
	l.append(e)
}

// Entries 读回本会话记录的所有行
func (l *Logger) Entries() ([]Entry, error) {
	if !l.Enabled() {
		return nil, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(filepath.Join(l.dir, callsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4<<20)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return out, err
		}
		out = append(out, e)
	}
	return out, sc.Err()
}

func (l *Logger) append(e Entry) {
	line, err := json.Marshal(e)
	if err != nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(filepath.Join(l.dir, callsFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return
	}
	f.Write(append(line, '\n'))
	f.Close()
}

// bodyValue 合法 JSON 原样嵌入，否则按字符串保存
func bodyValue(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	return string(body)
}

// pruneSessions 只保留最新的 keep 个会话目录（目录名为时间戳）
func pruneSessions(root string, keep int) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	if len(names) <= keep {
		return
	}
	slices.Sort(names)
	for _, name := range names[:len(names)-keep] {
		os.RemoveAll(filepath.Join(root, name))
	}
}
