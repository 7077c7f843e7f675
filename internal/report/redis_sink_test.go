package report

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"

	"telecom-console/internal/config"
)

// respServer speaks just enough RESP2 for RedisSink: PING, LPUSH, LTRIM,
// LRANGE. Everything else (HELLO included) is an error reply, which makes
// the client stay on RESP2.
type respServer struct {
	ln    net.Listener
	mu    sync.Mutex
	lists map[string][]string
}

func newRespServer(t *testing.T) *respServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	s := &respServer{ln: ln, lists: map[string][]string{}}
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go s.serve(c)
		}
	}()
	t.Cleanup(func() { ln.Close() })
	return s
}

func (s *respServer) addr() string { return s.ln.Addr().String() }

func (s *respServer) list(key string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lists[key]...)
}

func (s *respServer) serve(c net.Conn) {
	defer c.Close()
	r := bufio.NewReader(c)
	for {
		args, err := readCommand(r)
		if err != nil {
			return
		}
		if _, err := io.WriteString(c, s.exec(args)); err != nil {
			return
		}
	}
}

func readCommand(r *bufio.Reader) ([]string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(line, "*") {
		return nil, fmt.Errorf("unexpected %q", line)
	}
	n, err := strconv.Atoi(strings.TrimSpace(line[1:]))
	if err != nil || n <= 0 {
		return nil, fmt.Errorf("bad array header %q", line)
	}
	args := make([]string, n)
	for i := range args {
		hdr, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		size, err := strconv.Atoi(strings.TrimSpace(hdr[1:]))
		if err != nil {
			return nil, err
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		args[i] = string(buf[:size])
	}
	return args, nil
}

func (s *respServer) exec(args []string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch strings.ToUpper(args[0]) {
	case "PING":
		return "+PONG\r\n"
	case "CLIENT", "SELECT":
		return "+OK\r\n"
	case "LPUSH":
		key := args[1]
		for _, v := range args[2:] {
			s.lists[key] = append([]string{v}, s.lists[key]...)
		}
		return fmt.Sprintf(":%d\r\n", len(s.lists[key]))
	case "LTRIM":
		stop, _ := strconv.Atoi(args[3])
		if l := s.lists[args[1]]; stop+1 < len(l) {
			s.lists[args[1]] = l[:stop+1]
		}
		return "+OK\r\n"
	case "LRANGE":
		l := s.lists[args[1]]
		stop, _ := strconv.Atoi(args[3])
		if stop+1 < len(l) {
			l = l[:stop+1]
		}
		var b strings.Builder
		fmt.Fprintf(&b, "*%d\r\n", len(l))
		for _, v := range l {
			fmt.Fprintf(&b, "$%d\r\n%s\r\n", len(v), v)
		}
		return b.String()
	}
	return "-ERR unknown command '" + args[0] + "'\r\n"
}

func TestRedisSinkCapsListAndListsNewestFirst(t *testing.T) {
	srv := newRespServer(t)
	sink, err := NewRedisSink(srv.addr(), "", 0, "test:reports", 2)
	if err != nil {
		t.Fatalf("NewRedisSink err=%v", err)
	}
	defer sink.Close()

	ctx := context.Background()
	for _, action := range []string{"a", "b", "c"} {
		if err := sink.Write(ctx, Report{Action: action, Message: "m-" + action, URL: "/admin/menu"}); err != nil {
			t.Fatalf("Write(%s) err=%v", action, err)
		}
	}
	if n := len(srv.list("test:reports")); n != 2 {
		t.Fatalf("stored=%d want=2", n)
	}

	got, err := sink.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent err=%v", err)
	}
	if len(got) != 2 || got[0].Action != "c" || got[1].Action != "b" {
		t.Fatalf("got=%+v want actions c,b", got)
	}
	if got[0].Message != "m-c" || got[0].URL != "/admin/menu" || got[0].Stack != nil {
		t.Fatalf("payload=%+v", got[0])
	}
}

func TestNewRedisSinkRequiresAddr(t *testing.T) {
	if _, err := NewRedisSink("  ", "", 0, "", 0); err == nil {
		t.Fatalf("expected error for empty address")
	}
}

func deadAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func TestNewRedisSinkPingFailure(t *testing.T) {
	if _, err := NewRedisSink(deadAddr(t), "", 0, "", 0); err == nil {
		t.Fatalf("expected ping error")
	}
}

func TestNewSinkOrNopDegradesDeadRedis(t *testing.T) {
	cfg := &config.Config{ReportSinkMode: "redis", ReportRedisAddr: deadAddr(t)}

	if _, err := NewSink(cfg, nil); err == nil {
		t.Fatalf("NewSink should surface the ping error")
	}
	if _, ok := NewSinkOrNop(cfg, nil).(NopSink); !ok {
		t.Fatalf("dead redis should degrade to NopSink")
	}
}

func TestNewSinkOrNopKeepsWorkingSink(t *testing.T) {
	srv := newRespServer(t)
	cfg := &config.Config{ReportSinkMode: "redis", ReportRedisAddr: srv.addr()}
	sink := NewSinkOrNop(cfg, nil)
	defer sink.Close()
	if _, ok := sink.(*RedisSink); !ok {
		t.Fatalf("sink=%T want *RedisSink", sink)
	}
}
