package hub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// RedisRelay 通过 Redis Pub/Sub 把广播转发给所有实例，
// 每个实例再投递给自己进程内的连接。
type RedisRelay struct {
	client  *redis.Client
	channel string
}

// NewRedisRelay 创建 RedisRelay，频道名为 <keyPrefix>broadcast
func NewRedisRelay(client *redis.Client, keyPrefix string) *RedisRelay {
	if client == nil {
		panic("redis client cannot be nil for RedisRelay")
	}
	return &RedisRelay{client: client, channel: keyPrefix + "broadcast"}
}

// Publish 发布一次广播
func (r *RedisRelay) Publish(ctx context.Context, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("relay: marshal envelope: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("relay: publish to %s: %w", r.channel, err)
	}
	return nil
}

// Subscribe 订阅广播频道并在订阅确认后返回，之后在后台把收到的广播投递给 h，
// 直到 ctx 结束。
func (r *RedisRelay) Subscribe(ctx context.Context, h *Hub) error {
	sub := r.client.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("relay: subscribe to %s: %w", r.channel, err)
	}

	go func() {
		defer sub.Close()
		log := logrus.WithFields(logrus.Fields{"component": "relay", "channel": r.channel})
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				log.Info("Broadcast relay stopped")
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					log.WithError(err).Warn("Dropping malformed relay message")
					continue
				}
				h.DeliverLocal(env)
			}
		}
	}()
	return nil
}
