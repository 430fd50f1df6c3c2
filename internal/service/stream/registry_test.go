package stream

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/ashwinyue/next-chat/internal/errs"
	"github.com/ashwinyue/next-chat/internal/testutil"
)

func collect(t *testing.T, ch <-chan Frame, timeout time.Duration) []Frame {
	t.Helper()
	var frames []Frame
	deadline := time.After(timeout)
	for {
		select {
		case f, ok := <-ch:
			if !ok {
				return frames
			}
			frames = append(frames, f)
		case <-deadline:
			t.Fatalf("timed out after %d frames", len(frames))
			return frames
		}
	}
}

func deltaText(t *testing.T, f Frame) string {
	t.Helper()
	var d DeltaData
	if err := json.Unmarshal(f.Data, &d); err != nil {
		t.Fatalf("decode delta: %v", err)
	}
	return d.Text
}

func TestStreamKey(t *testing.T) {
	if got := StreamKey("abc"); got != "stream-abc" {
		t.Errorf("StreamKey() = %q", got)
	}
}

func TestRegistry_Disabled(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry("", time.Minute, nil)

	if r.Enabled(ctx) {
		t.Fatal("Enabled() = true with empty url")
	}

	p := r.Open(ctx, "chat", "stream-1")
	if p.Active() {
		t.Error("publisher should be inactive")
	}
	f := p.Append(ctx, Delta("x"))
	if f.Seq != 1 {
		t.Errorf("seq = %d, want 1", f.Seq)
	}
	p.Close(ctx, Finish(FinishData{}))

	if _, err := r.Resume(ctx, "stream-1"); !errs.IsNotFound(err) {
		t.Errorf("Resume() error = %v, want not found", err)
	}
	if _, ok := r.ActiveKey(ctx, "chat"); ok {
		t.Error("ActiveKey() should be empty when disabled")
	}
}

func TestRegistry_Unreachable(t *testing.T) {
	r := NewRegistry("redis://127.0.0.1:1", time.Minute, nil)
	if r.Enabled(context.Background()) {
		t.Fatal("Enabled() = true for unreachable redis")
	}
	if _, err := r.Resume(context.Background(), "stream-x"); !errs.IsNotFound(err) {
		t.Errorf("Resume() error = %v, want not found", err)
	}
}

func TestRegistry_ResumeUnknownKey(t *testing.T) {
	_, url := testutil.NewTestRedis(t)
	r := NewRegistry(url, time.Minute, nil)
	defer r.Close()

	if _, err := r.Resume(context.Background(), "stream-missing"); !errs.IsNotFound(err) {
		t.Errorf("Resume() error = %v, want not found", err)
	}
}

func TestRegistry_ReplayFinishedStream(t *testing.T) {
	mr, url := testutil.NewTestRedis(t)
	r := NewRegistry(url, time.Minute, nil)
	defer r.Close()
	ctx := context.Background()

	p := r.Open(ctx, "chat-1", "stream-a")
	if !p.Active() {
		t.Fatal("publisher should be active")
	}
	p.Append(ctx, Delta("hello "))
	p.Append(ctx, Delta("world"))
	p.Close(ctx, Finish(FinishData{OutputTokens: 2}))

	key, ok := r.ActiveKey(ctx, "chat-1")
	if !ok || key != "stream-a" {
		t.Fatalf("ActiveKey() = %q, %v", key, ok)
	}
	if ttl := mr.TTL(stateKey("stream-a")); ttl != time.Minute {
		t.Errorf("state ttl = %v, want 1m", ttl)
	}

	ch, err := r.Resume(ctx, "stream-a")
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	frames := collect(t, ch, 2*time.Second)
	if len(frames) != 3 {
		t.Fatalf("frames = %d, want 3", len(frames))
	}
	if deltaText(t, frames[0])+deltaText(t, frames[1]) != "hello world" {
		t.Errorf("replayed text mismatch")
	}
	if frames[2].Event != EventFinish {
		t.Errorf("last event = %q", frames[2].Event)
	}

	// 保留期过后不可恢复
	mr.FastForward(2 * time.Minute)
	if _, err := r.Resume(ctx, "stream-a"); !errs.IsNotFound(err) {
		t.Errorf("Resume() after ttl error = %v, want not found", err)
	}
}

func TestRegistry_InUse(t *testing.T) {
	mr, url := testutil.NewTestRedis(t)
	r := NewRegistry(url, time.Minute, nil)
	defer r.Close()
	ctx := context.Background()

	if r.InUse(ctx, "stream-b") {
		t.Fatal("InUse() = true before open")
	}
	p := r.Open(ctx, "", "stream-b")
	if !r.InUse(ctx, "stream-b") {
		t.Error("InUse() = false while streaming")
	}
	p.Close(ctx, Finish(FinishData{}))
	if !r.InUse(ctx, "stream-b") {
		t.Error("InUse() = false within retention")
	}
	if _, ok := r.ActiveKey(ctx, ""); ok {
		t.Error("open without chat id should not record a chat mapping")
	}

	mr.FastForward(2 * time.Minute)
	if r.InUse(ctx, "stream-b") {
		t.Error("InUse() = true after retention")
	}

	if NewRegistry("", time.Minute, nil).InUse(ctx, "stream-b") {
		t.Error("disabled registry should never report a key in use")
	}
}

func TestRegistry_ResumeLive(t *testing.T) {
	_, url := testutil.NewTestRedis(t)
	r := NewRegistry(url, time.Minute, nil)
	defer r.Close()
	ctx := context.Background()

	p := r.Open(ctx, "chat-2", "stream-b")
	p.Append(ctx, Delta("one "))

	ch, err := r.Resume(ctx, "stream-b")
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}

	first := <-ch
	if deltaText(t, first) != "one " {
		t.Fatalf("first frame = %s", first.Data)
	}

	p.Append(ctx, Delta("two"))
	p.Close(ctx, Error("provider failed"))

	rest := collect(t, ch, 2*time.Second)
	if len(rest) != 2 {
		t.Fatalf("live frames = %d, want 2", len(rest))
	}
	if deltaText(t, rest[0]) != "two" || rest[1].Event != EventError {
		t.Errorf("unexpected live frames: %+v", rest)
	}
	if rest[0].Seq != 2 || rest[1].Seq != 3 {
		t.Errorf("seqs = %d, %d", rest[0].Seq, rest[1].Seq)
	}
}

func TestRegistry_ConcurrentInit(t *testing.T) {
	_, url := testutil.NewTestRedis(t)
	r := NewRegistry(url, time.Minute, nil)
	defer r.Close()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Enabled(context.Background())
		}()
	}
	wg.Wait()

	first := r.conn(context.Background())
	if first == nil {
		t.Fatal("conn() = nil")
	}
	if again := r.conn(context.Background()); again != first {
		t.Error("conn() returned a different client")
	}
}
