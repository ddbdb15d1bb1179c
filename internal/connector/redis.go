package connector

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"streamsynth/internal/model"
	"streamsynth/pkg/utils"
)

func redisOptions(cfg map[string]interface{}, role string) (*redis.Options, string, error) {
	key := utils.StringOption(cfg, "key", utils.StringOption(cfg, "path", ""))
	if key == "" {
		return nil, "", errors.Errorf("redis %s requires a key", role)
	}
	opts := &redis.Options{
		Addr:     utils.StringOption(cfg, "addr", "localhost:6379"),
		Password: utils.StringOption(cfg, "password", ""),
		DB:       utils.IntOption(cfg, "db", 0),
	}
	if url := utils.StringOption(cfg, "url", ""); url != "" {
		parsed, err := redis.ParseURL(url)
		if err != nil {
			return nil, "", errors.Wrap(err, "parse redis url")
		}
		opts = parsed
	}
	return opts, key, nil
}

// ------------------- Redis Source -------------------

// RedisSource pops JSON documents from the head of a Redis list. Values
// that are not JSON are delivered as strings.
type RedisSource struct {
	client *redis.Client
	key    string
	wait   time.Duration
	runner
}

// NewRedisSource reads addr, password, db (or url) and key.
func NewRedisSource(cfg map[string]interface{}) (model.Source, error) {
	opts, key, err := redisOptions(cfg, "source")
	if err != nil {
		return nil, err
	}
	return &RedisSource{
		client: redis.NewClient(opts),
		key:    key,
		wait:   time.Duration(utils.IntOption(cfg, "blockMs", 1000)) * time.Millisecond,
	}, nil
}

func (s *RedisSource) Start(ctx context.Context, emit model.Emitter) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, "connect to redis")
	}
	return s.launch(ctx, func(ctx context.Context) {
		for {
			res, err := s.client.BLPop(ctx, s.wait, s.key).Result()
			if ctx.Err() != nil {
				return
			}
			if err == redis.Nil {
				continue
			}
			if err != nil {
				emit.Error(errors.Wrapf(err, "pop from %s", s.key))
				select {
				case <-ctx.Done():
					return
				case <-time.After(s.wait):
				}
				continue
			}
			// res is [key, value]
			emit.Data(decodeText(res[1]))
		}
	})
}

func (s *RedisSource) Stop(ctx context.Context) error {
	err := s.halt(ctx)
	if cerr := s.client.Close(); cerr != nil && cerr != redis.ErrClosed && err == nil {
		err = cerr
	}
	return err
}

// ------------------- Redis Sink -------------------

// RedisSink appends each event, JSON encoded, to the tail of a list.
type RedisSink struct {
	client *redis.Client
	key    string

	once sync.Once
}

// NewRedisSink reads addr, password, db (or url) and key.
func NewRedisSink(cfg map[string]interface{}) (model.Sink, error) {
	opts, key, err := redisOptions(cfg, "sink")
	if err != nil {
		return nil, err
	}
	return &RedisSink{client: redis.NewClient(opts), key: key}, nil
}

func (s *RedisSink) Write(ctx context.Context, ev model.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "encode event")
	}
	return errors.Wrapf(s.client.RPush(ctx, s.key, data).Err(), "push to %s", s.key)
}

func (s *RedisSink) Close(context.Context) error {
	var err error
	s.once.Do(func() { err = s.client.Close() })
	return err
}

func decodeText(text string) model.Event {
	var ev interface{}
	if err := json.Unmarshal([]byte(text), &ev); err != nil {
		return text
	}
	return ev
}
