package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/airsettle/config"
	"github.com/Domenick1991/airsettle/internal/domain"
	"github.com/redis/go-redis/v9"
)

var ErrAlreadyStaged = errors.New("booking already staged for invoice")

type RedisCache struct {
	client       *redis.Client
	stagingTTL   time.Duration
	referenceTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, stagingTTL, referenceTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:       redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		stagingTTL:   stagingTTL,
		referenceTTL: referenceTTL,
	}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// StageBooking holds b until its invoice is authorized or the staging TTL
// runs out. An invoice can be staged once.
func (c *RedisCache) StageBooking(ctx context.Context, b *domain.StagedBooking) error {
	payload, err := json.Marshal(b)
	if err != nil {
		return err
	}
	ok, err := c.client.SetNX(ctx, stagedBookingKey(b.InvoiceID), payload, c.stagingTTL).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrAlreadyStaged, b.InvoiceID)
	}
	return nil
}

// ClaimStagedBooking removes and returns the staged booking in one step, so
// only one caller can ever get it. It returns nil when nothing is staged.
func (c *RedisCache) ClaimStagedBooking(ctx context.Context, invoiceID string) (*domain.StagedBooking, error) {
	data, err := c.client.GetDel(ctx, stagedBookingKey(invoiceID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return decodeStagedBooking(data)
}

// GetAirlines returns the cached airlines among codes and the codes that
// were not cached.
func (c *RedisCache) GetAirlines(ctx context.Context, codes []string) (map[string]domain.Airline, []string, error) {
	return getMany[domain.Airline](ctx, c.client, airlineKey, codes)
}

func (c *RedisCache) SetAirlines(ctx context.Context, airlines []domain.Airline) error {
	return setMany(ctx, c.client, c.referenceTTL, airlines, func(a domain.Airline) string { return airlineKey(a.Code) })
}

func (c *RedisCache) GetAirports(ctx context.Context, codes []string) (map[string]domain.Airport, []string, error) {
	return getMany[domain.Airport](ctx, c.client, airportKey, codes)
}

func (c *RedisCache) SetAirports(ctx context.Context, airports []domain.Airport) error {
	return setMany(ctx, c.client, c.referenceTTL, airports, func(a domain.Airport) string { return airportKey(a.Code) })
}

func getMany[T any](ctx context.Context, client *redis.Client, key func(string) string, codes []string) (map[string]T, []string, error) {
	found := make(map[string]T, len(codes))
	if len(codes) == 0 {
		return found, nil, nil
	}

	keys := make([]string, len(codes))
	for i, code := range codes {
		keys[i] = key(code)
	}
	values, err := client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, codes, err
	}

	var missing []string
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			missing = append(missing, codes[i])
			continue
		}
		var item T
		if err := json.Unmarshal([]byte(s), &item); err != nil {
			missing = append(missing, codes[i])
			continue
		}
		found[codes[i]] = item
	}
	return found, missing, nil
}

func setMany[T any](ctx context.Context, client *redis.Client, ttl time.Duration, items []T, key func(T) string) error {
	if len(items) == 0 {
		return nil
	}
	pipe := client.Pipeline()
	for _, item := range items {
		payload, err := json.Marshal(item)
		if err != nil {
			return err
		}
		pipe.Set(ctx, key(item), payload, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func decodeStagedBooking(data []byte) (*domain.StagedBooking, error) {
	var b domain.StagedBooking
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode staged booking: %w", err)
	}
	return &b, nil
}

func stagedBookingKey(invoiceID string) string {
	return fmt.Sprintf("staging:invoice:%s", invoiceID)
}

func airlineKey(code string) string {
	return fmt.Sprintf("cache:airline:%s", code)
}

func airportKey(code string) string {
	return fmt.Sprintf("cache:airport:%s", code)
}
