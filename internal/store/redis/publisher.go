// Package redisstore mirrors assembled candles onto Redis pub/sub so other
// processes can consume the stream without speaking the wire protocol.
package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"quotexstream/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Publisher fans candles out to pub:candle:<asset> channels.
type Publisher struct {
	rdb *redis.Client
	log *zap.Logger
}

// NewPublisher connects to Redis and verifies the connection with a ping.
func NewPublisher(addr, password string, log *zap.Logger) (*Publisher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "redis ping")
	}

	log.Info("redis publisher connected", zap.String("addr", addr))
	return &Publisher{rdb: rdb, log: log}, nil
}

// PublishCandle sends one candle as JSON on the asset's channel. Failures
// are logged and swallowed so a Redis outage never stalls ingestion.
func (p *Publisher) PublishCandle(ctx context.Context, asset string, c model.Candle) {
	payload, err := json.Marshal(c)
	if err != nil {
		p.log.Warn("candle marshal failed", zap.String("asset", asset), zap.Error(err))
		return
	}
	channel := fmt.Sprintf("pub:candle:%s", asset)
	if err := p.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		p.log.Warn("candle publish failed", zap.String("channel", channel), zap.Error(err))
	}
}

func (p *Publisher) Close() error {
	return p.rdb.Close()
}
