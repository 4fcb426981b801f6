package redis

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"quotewatch/internal/application/port"
	"quotewatch/internal/domain/model"
)

// Repo 最新报价缓存 (HSET) + 行情广播 (PUBLISH) + 状态流 (XADD) + 自选集合 (SADD)
type Repo struct {
	rdb         *redis.Client
	prefix      string
	ttl         time.Duration
	keyLatest   string // prefix + ":latest"
	keyFavs     string // prefix + ":favorites"
	stateStream string
	quoteChan   string
}

func New(rdb *redis.Client, prefix string, ttl time.Duration, stateStream, quoteChan string) *Repo {
	if strings.TrimSpace(prefix) == "" {
		prefix = "quotewatch"
	}
	if strings.TrimSpace(stateStream) == "" {
		stateStream = prefix + ":state"
	}
	if strings.TrimSpace(quoteChan) == "" {
		quoteChan = prefix + ":quotes:pub"
	}
	return &Repo{
		rdb:         rdb,
		prefix:      prefix,
		ttl:         ttl,
		keyLatest:   prefix + ":latest",
		keyFavs:     prefix + ":favorites",
		stateStream: stateStream,
		quoteChan:   quoteChan,
	}
}

// CacheQuotes Hash: field = symbol -> json
func (r *Repo) CacheQuotes(ctx context.Context, stocks []model.Stock) error {
	if len(stocks) == 0 {
		return nil
	}
	pipe := r.rdb.Pipeline()
	for _, s := range stocks {
		b, err := json.Marshal(s)
		if err != nil {
			return err
		}
		pipe.HSet(ctx, r.keyLatest, s.Symbol, string(b))
	}
	if r.ttl > 0 {
		pipe.Expire(ctx, r.keyLatest, r.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Latest 读取缓存的报价，不存在返回 (nil, nil)
func (r *Repo) Latest(ctx context.Context, symbol string) (*model.Stock, error) {
	v, err := r.rdb.HGet(ctx, r.keyLatest, symbol).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s model.Stock
	if err := json.Unmarshal([]byte(v), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// PublishQuotes PUBLISH <channel> 整表 json
func (r *Repo) PublishQuotes(ctx context.Context, stocks []model.Stock) error {
	b, err := json.Marshal(stocks)
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, r.quoteChan, string(b)).Err()
}

// RecordState XADD <stream> * ts_ms state message
func (r *Repo) RecordState(ctx context.Context, state, message string) error {
	return r.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stateStream,
		MaxLen: 1000,
		Approx: true,
		Values: map[string]any{
			"ts_ms":   time.Now().UnixMilli(),
			"state":   state,
			"message": message,
		},
	}).Err()
}

// Read 自选集合（Redis SET 无序，按代号排序返回）
func (r *Repo) Read(ctx context.Context) ([]string, error) {
	syms, err := r.rdb.SMembers(ctx, r.keyFavs).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(syms)
	return syms, nil
}

// Write 整体替换自选集合
func (r *Repo) Write(ctx context.Context, symbols []string) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.keyFavs)
		if len(symbols) > 0 {
			members := make([]any, len(symbols))
			for i, s := range symbols {
				members[i] = s
			}
			pipe.SAdd(ctx, r.keyFavs, members...)
		}
		return nil
	})
	return err
}

var (
	_ port.QuoteCache      = (*Repo)(nil)
	_ port.PreferenceStore = (*Repo)(nil)
)
