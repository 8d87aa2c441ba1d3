package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Outbox 把尽力而为（best-effort）的邮件写入 Redis Stream，
// 由后台 Worker 异步投递，避免慢 SMTP 阻塞请求路径。
//
// Outbox 本身实现 Notifier：每个 Send 只是把消息入队。
type Outbox struct {
	rdb    *redis.Client
	logger *slog.Logger
	stream string
}

// NewOutbox 创建邮件外发队列。
func NewOutbox(rdb *redis.Client, logger *slog.Logger, stream string) *Outbox {
	if stream == "" {
		stream = "authhive:mail:outbox"
	}
	return &Outbox{
		rdb:    rdb,
		logger: logger,
		stream: stream,
	}
}

// SendVerificationCode 把验证码邮件入队。
func (o *Outbox) SendVerificationCode(ctx context.Context, email, code string) error {
	return o.publish(ctx, &Message{Kind: KindVerification, To: email, Code: code, Timestamp: time.Now()})
}

// SendWelcome 把欢迎邮件入队。
func (o *Outbox) SendWelcome(ctx context.Context, email, name string) error {
	return o.publish(ctx, &Message{Kind: KindWelcome, To: email, Name: name, Timestamp: time.Now()})
}

// SendPasswordResetLink 把重置链接邮件入队。
func (o *Outbox) SendPasswordResetLink(ctx context.Context, email, resetURL string) error {
	return o.publish(ctx, &Message{Kind: KindResetLink, To: email, URL: resetURL, Timestamp: time.Now()})
}

// SendPasswordChangedConfirmation 把密码修改确认邮件入队。
func (o *Outbox) SendPasswordChangedConfirmation(ctx context.Context, email string) error {
	return o.publish(ctx, &Message{Kind: KindResetDone, To: email, Timestamp: time.Now()})
}

// publish 使用 XADD 把消息追加到 Stream。
func (o *Outbox) publish(ctx context.Context, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal mail message: %w", err)
	}

	msgID, err := o.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: o.stream,
		MaxLen: 10000,
		Approx: true,
		Values: map[string]interface{}{"data": string(data)},
	}).Result()
	if err != nil {
		return fmt.Errorf("xadd failed: %w", err)
	}

	o.logger.Debug("mail message queued",
		slog.String("stream", o.stream),
		slog.String("msg_id", msgID),
		slog.String("kind", msg.Kind),
		slog.String("to", msg.To))
	return nil
}

// Worker 从外发队列读取邮件消息并通过底层 Notifier 投递。
type Worker struct {
	outbox     *Outbox
	mailer     Notifier
	logger     *slog.Logger
	group      string
	consumerID string
	blockTime  time.Duration
	batchSize  int64
	maxRetry   int
}

// NewWorker 创建投递 Worker 并确保消费者组存在。
func NewWorker(outbox *Outbox, mailer Notifier, logger *slog.Logger, group string) (*Worker, error) {
	if group == "" {
		group = "mail_workers"
	}

	w := &Worker{
		outbox:     outbox,
		mailer:     mailer,
		logger:     logger,
		group:      group,
		consumerID: fmt.Sprintf("worker-%d", time.Now().UnixNano()),
		blockTime:  time.Second,
		batchSize:  10,
		maxRetry:   3,
	}

	err := outbox.rdb.XGroupCreateMkStream(context.Background(), outbox.stream, group, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}

	logger.Info("mail worker ready",
		slog.String("stream", outbox.stream),
		slog.String("group", group),
		slog.String("consumer_id", w.consumerID))
	return w, nil
}

// Run 循环消费直到 ctx 取消。
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if _, err := w.Drain(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error("drain outbox failed", slog.String("error", err.Error()))
			time.Sleep(w.blockTime)
		}
	}
}

// Drain 读取一批消息并投递，返回成功投递的数量。
func (w *Worker) Drain(ctx context.Context) (int, error) {
	streams, err := w.outbox.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    w.group,
		Consumer: w.consumerID,
		Streams:  []string{w.outbox.stream, ">"},
		Count:    w.batchSize,
		Block:    w.blockTime,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("xreadgroup failed: %w", err)
	}

	delivered := 0
	for _, stream := range streams {
		for _, raw := range stream.Messages {
			if w.handle(ctx, raw) {
				delivered++
			}
		}
	}
	return delivered, nil
}

// handle 投递单条消息；返回是否投递成功。
// 无论结果如何消息都会被 ACK：投递失败时按 Retry 计数重新入队，
// 超过 maxRetry 则丢弃并记录日志。
func (w *Worker) handle(ctx context.Context, raw redis.XMessage) bool {
	defer func() {
		if err := w.outbox.rdb.XAck(ctx, w.outbox.stream, w.group, raw.ID).Err(); err != nil {
			w.logger.Error("xack failed", slog.String("msg_id", raw.ID), slog.String("error", err.Error()))
		}
	}()

	data, ok := raw.Values["data"].(string)
	if !ok || data == "" {
		w.logger.Warn("invalid mail message format", slog.String("msg_id", raw.ID))
		return false
	}

	var msg Message
	if err := json.Unmarshal([]byte(data), &msg); err != nil {
		w.logger.Error("parse mail message failed",
			slog.String("msg_id", raw.ID),
			slog.String("error", err.Error()))
		return false
	}

	if err := w.deliver(ctx, &msg); err != nil {
		w.logger.Warn("mail delivery failed",
			slog.String("kind", msg.Kind),
			slog.String("to", msg.To),
			slog.Int("retry", msg.Retry),
			slog.String("error", err.Error()))
		w.requeue(ctx, &msg)
		return false
	}
	return true
}

func (w *Worker) deliver(ctx context.Context, msg *Message) error {
	switch msg.Kind {
	case KindVerification:
		return w.mailer.SendVerificationCode(ctx, msg.To, msg.Code)
	case KindWelcome:
		return w.mailer.SendWelcome(ctx, msg.To, msg.Name)
	case KindResetLink:
		return w.mailer.SendPasswordResetLink(ctx, msg.To, msg.URL)
	case KindResetDone:
		return w.mailer.SendPasswordChangedConfirmation(ctx, msg.To)
	default:
		return fmt.Errorf("unknown mail kind %q", msg.Kind)
	}
}

func (w *Worker) requeue(ctx context.Context, msg *Message) {
	msg.Retry++
	if msg.Retry > w.maxRetry {
		w.logger.Error("mail message dropped after max retries",
			slog.String("kind", msg.Kind),
			slog.String("to", msg.To))
		return
	}
	if err := w.outbox.publish(ctx, msg); err != nil {
		w.logger.Error("requeue mail message failed", slog.String("error", err.Error()))
	}
}
