// Package stream 可恢复流注册表
// 生成过程中的每一帧写入 Redis 回放缓冲并发布到频道，断线的客户端可以重新订阅
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ashwinyue/next-chat/internal/errs"
)

const (
	keyPrefix = "resumable:"
	// 生成进行中的保留时长，结束后改为 ttl
	activeTTL = time.Hour
	// 连接失败后重试的间隔
	retryInterval = 30 * time.Second
	pingTimeout   = 2 * time.Second

	stateActive = "active"
	stateDone   = "done"
)

// StreamKey 由用户消息 pubId 确定的流 key
func StreamKey(userMessagePubID string) string {
	return "stream-" + userMessagePubID
}

func bufferKey(key string) string  { return keyPrefix + key + ":buffer" }
func channelKey(key string) string { return keyPrefix + key + ":channel" }
func stateKey(key string) string   { return keyPrefix + key + ":state" }
func chatKey(chatPubID string) string {
	return keyPrefix + "chat:" + chatPubID
}

// Registry 可恢复流注册表
// 连接在首次使用时建立，并发的首次使用只保留一个连接
type Registry struct {
	url    string
	ttl    time.Duration
	logger *slog.Logger

	mu       sync.Mutex
	client   *redis.Client
	failedAt time.Time
}

// NewRegistry 创建注册表，url 为空时禁用可恢复流
func NewRegistry(url string, ttl time.Duration, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Registry{url: url, ttl: ttl, logger: logger.With("component", "stream")}
}

// conn 返回可用连接，不可用时返回 nil
func (r *Registry) conn(ctx context.Context) *redis.Client {
	if r.url == "" {
		return nil
	}

	r.mu.Lock()
	if r.client != nil {
		c := r.client
		r.mu.Unlock()
		return c
	}
	if !r.failedAt.IsZero() && time.Since(r.failedAt) < retryInterval {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	c, err := r.dial(ctx)
	if err != nil {
		r.mu.Lock()
		r.failedAt = time.Now()
		r.mu.Unlock()
		r.logger.WarnContext(ctx, "resumable streams disabled", "error", err)
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client != nil {
		// 另一个调用者先完成了初始化
		_ = c.Close()
		return r.client
	}
	r.client = c
	r.failedAt = time.Time{}
	r.logger.InfoContext(ctx, "resumable streams enabled")
	return c
}

func (r *Registry) dial(ctx context.Context) (*redis.Client, error) {
	opt, err := redis.ParseURL(r.url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	c := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pingTimeout)
	defer cancel()
	if err := c.Ping(pingCtx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return c, nil
}

// Enabled 是否可用
func (r *Registry) Enabled(ctx context.Context) bool {
	return r.conn(ctx) != nil
}

// Close 关闭连接
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == nil {
		return nil
	}
	err := r.client.Close()
	r.client = nil
	return err
}

// Open 为一轮生成打开发布端，并记录为会话的进行中流
// 注册表不可用时返回的发布端不做任何事
func (r *Registry) Open(ctx context.Context, chatPubID, key string) *Publisher {
	p := &Publisher{key: key, logger: r.logger.With("streamKey", key), ttl: r.ttl}
	c := r.conn(ctx)
	if c == nil {
		return p
	}

	_, err := c.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, bufferKey(key))
		pipe.Set(ctx, stateKey(key), stateActive, activeTTL)
		if chatPubID != "" {
			pipe.Set(ctx, chatKey(chatPubID), key, activeTTL)
		}
		return nil
	})
	if err != nil {
		p.logger.WarnContext(ctx, "open resumable stream failed", "error", err)
		return p
	}
	p.client = c
	p.chatPubID = chatPubID
	return p
}

// InUse 流 key 是否已被某轮生成使用（进行中或仍在保留期内）
// 注册表不可用时返回 false
func (r *Registry) InUse(ctx context.Context, key string) bool {
	c := r.conn(ctx)
	if c == nil {
		return false
	}
	n, err := c.Exists(ctx, stateKey(key), bufferKey(key)).Result()
	return err == nil && n > 0
}

// ActiveKey 返回会话进行中或仍在保留期内的流 key
func (r *Registry) ActiveKey(ctx context.Context, chatPubID string) (string, bool) {
	c := r.conn(ctx)
	if c == nil {
		return "", false
	}
	key, err := c.Get(ctx, chatKey(chatPubID)).Result()
	if err != nil {
		return "", false
	}
	n, err := c.Exists(ctx, stateKey(key)).Result()
	if err != nil || n == 0 {
		return "", false
	}
	return key, true
}

// Resume 订阅一个流：先回放缓冲，再转发实时帧，直到结束帧
// 没有对应的流时返回 NotFound
func (r *Registry) Resume(ctx context.Context, key string) (<-chan Frame, error) {
	c := r.conn(ctx)
	if c == nil {
		return nil, errs.NotFound("stream %s not found", key)
	}

	n, err := c.Exists(ctx, stateKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("check stream: %w", err)
	}
	if n == 0 {
		return nil, errs.NotFound("stream %s not found", key)
	}

	// 先订阅再读缓冲，两者重叠的帧按 seq 去重
	sub := c.Subscribe(ctx, channelKey(key))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe stream: %w", err)
	}

	raw, err := c.LRange(ctx, bufferKey(key), 0, -1).Result()
	if err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("read stream buffer: %w", err)
	}
	buffered := decodeFrames(raw, r.logger)

	out := make(chan Frame)
	go func() {
		defer close(out)
		defer sub.Close()

		var last int64
		for _, f := range buffered {
			if !send(ctx, out, f) {
				return
			}
			last = f.Seq
			if f.Terminal() {
				return
			}
		}

		// 已结束但缓冲里没有结束帧时，补读尾部后返回
		if st, _ := c.Get(ctx, stateKey(key)).Result(); st == stateDone {
			tail, _ := c.LRange(ctx, bufferKey(key), int64(len(raw)), -1).Result()
			for _, f := range decodeFrames(tail, r.logger) {
				if f.Seq <= last {
					continue
				}
				if !send(ctx, out, f) {
					return
				}
				last = f.Seq
			}
			return
		}

		live := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-live:
				if !ok {
					return
				}
				var f Frame
				if err := json.Unmarshal([]byte(msg.Payload), &f); err != nil {
					r.logger.WarnContext(ctx, "drop malformed frame", "streamKey", key, "error", err)
					continue
				}
				if f.Seq <= last {
					continue
				}
				if !send(ctx, out, f) {
					return
				}
				last = f.Seq
				if f.Terminal() {
					return
				}
			}
		}
	}()
	return out, nil
}

func send(ctx context.Context, out chan<- Frame, f Frame) bool {
	select {
	case out <- f:
		return true
	case <-ctx.Done():
		return false
	}
}

func decodeFrames(raw []string, logger *slog.Logger) []Frame {
	frames := make([]Frame, 0, len(raw))
	for _, s := range raw {
		var f Frame
		if err := json.Unmarshal([]byte(s), &f); err != nil {
			logger.Warn("drop malformed buffered frame", "error", err)
			continue
		}
		frames = append(frames, f)
	}
	return frames
}

// Publisher 一轮生成的发布端，非并发安全，由生成协程独占
// 写入失败只记录日志，不影响生成
type Publisher struct {
	client    *redis.Client
	key       string
	chatPubID string
	ttl       time.Duration
	seq       int64
	logger    *slog.Logger
}

// Key 流 key
func (p *Publisher) Key() string {
	return p.key
}

// Active 是否真正写入注册表
func (p *Publisher) Active() bool {
	return p != nil && p.client != nil
}

// Append 写入一帧并发布，返回带 seq 的帧
func (p *Publisher) Append(ctx context.Context, f Frame) Frame {
	p.seq++
	f.Seq = p.seq
	if !p.Active() {
		return f
	}

	b, err := json.Marshal(f)
	if err != nil {
		p.logger.WarnContext(ctx, "encode frame failed", "error", err)
		return f
	}
	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, bufferKey(p.key), b)
		pipe.Expire(ctx, bufferKey(p.key), activeTTL)
		pipe.Publish(ctx, channelKey(p.key), b)
		return nil
	})
	if err != nil {
		p.logger.WarnContext(ctx, "publish frame failed", "seq", f.Seq, "error", err)
	}
	return f
}

// Close 写入结束帧，流进入保留期
func (p *Publisher) Close(ctx context.Context, final Frame) Frame {
	f := p.Append(ctx, final)
	if !p.Active() {
		return f
	}

	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, stateKey(p.key), stateDone, p.ttl)
		pipe.Expire(ctx, bufferKey(p.key), p.ttl)
		if p.chatPubID != "" {
			pipe.Expire(ctx, chatKey(p.chatPubID), p.ttl)
		}
		return nil
	})
	if err != nil {
		p.logger.WarnContext(ctx, "close resumable stream failed", "error", err)
	}
	return f
}
