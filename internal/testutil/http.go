package testutil

import (
	"bufio"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"
)

// NewTestClient 创建带超时的测试 HTTP 客户端
func NewTestClient(ts *httptest.Server, timeout time.Duration) *http.Client {
	c := ts.Client()
	c.Timeout = timeout
	return c
}

// SSEEvent 解析出的 SSE 事件
type SSEEvent struct {
	Event string
	Data  string
}

// ReadSSE 读取完整的 SSE 响应体
func ReadSSE(r io.Reader) []SSEEvent {
	var (
		events []SSEEvent
		cur    SSEEvent
		data   []string
	)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if cur.Event != "" || len(data) > 0 {
				cur.Data = strings.Join(data, "\n")
				events = append(events, cur)
			}
			cur, data = SSEEvent{}, nil
		case strings.HasPrefix(line, "event:"):
			cur.Event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if cur.Event != "" || len(data) > 0 {
		cur.Data = strings.Join(data, "\n")
		events = append(events, cur)
	}
	return events
}
