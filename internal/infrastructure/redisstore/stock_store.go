package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/example/parfum-commerce/internal/domain/inventory"
	"github.com/go-redis/redis/v8"
)

const DefaultKeyPrefix = "parfum:stock:"

const (
	fieldStock   = "stock"
	fieldWeekly  = "weekly_velocity"
	fieldMonthly = "monthly_velocity"
	fieldUpdated = "updated_at"
)

// decrementScript checks every key before it touches any of them.
// Returns -1 for a missing record, 0 when a line is short, 1 on success.
var decrementScript = redis.NewScript(`
local n = #KEYS
for i = 1, n do
	local stock = redis.call('HGET', KEYS[i], 'stock')
	if not stock then
		return -1
	end
	if tonumber(stock) < tonumber(ARGV[i]) then
		return 0
	end
end
for i = 1, n do
	redis.call('HINCRBY', KEYS[i], 'stock', '-' .. ARGV[i])
	redis.call('HSET', KEYS[i], 'updated_at', ARGV[n + 1])
end
return 1
`)

// adjustScript returns the new stock, -1 for a missing record and -2 when
// the result would be negative.
var adjustScript = redis.NewScript(`
local stock = redis.call('HGET', KEYS[1], 'stock')
if not stock then
	return -1
end
if tonumber(stock) + tonumber(ARGV[1]) < 0 then
	return -2
end
local updated = redis.call('HINCRBY', KEYS[1], 'stock', ARGV[1])
redis.call('HSET', KEYS[1], 'updated_at', ARGV[2])
return updated
`)

// StockStore keeps one hash per product plus a set of known product ids
type StockStore struct {
	client    *redis.Client
	keyPrefix string
	now       func() time.Time
}

func NewStockStore(client *redis.Client, keyPrefix string) *StockStore {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &StockStore{client: client, keyPrefix: keyPrefix, now: time.Now}
}

// Connect opens a client and verifies the connection
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

func (s *StockStore) key(productID string) string {
	return s.keyPrefix + productID
}

func (s *StockStore) idsKey() string {
	return s.keyPrefix + "ids"
}

func (s *StockStore) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func (s *StockStore) Get(ctx context.Context, productID string) (*inventory.Stock, error) {
	fields, err := s.client.HGetAll(ctx, s.key(productID)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, inventory.ErrNotFound
	}
	return parseStock(productID, fields)
}

func parseStock(productID string, fields map[string]string) (*inventory.Stock, error) {
	stock := &inventory.Stock{ProductID: productID}
	var err error
	if stock.CurrentStock, err = strconv.Atoi(fields[fieldStock]); err != nil {
		return nil, fmt.Errorf("invalid stock for %s: %w", productID, err)
	}
	if v, ok := fields[fieldWeekly]; ok {
		if stock.WeeklyVelocity, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, fmt.Errorf("invalid weekly velocity for %s: %w", productID, err)
		}
	}
	if v, ok := fields[fieldMonthly]; ok {
		if stock.MonthlyVelocity, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, fmt.Errorf("invalid monthly velocity for %s: %w", productID, err)
		}
	}
	if v, ok := fields[fieldUpdated]; ok {
		stock.LastUpdated, _ = time.Parse(time.RFC3339Nano, v)
	}
	return stock, nil
}

func (s *StockStore) List(ctx context.Context) ([]inventory.Stock, error) {
	ids, err := s.client.SMembers(ctx, s.idsKey()).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)

	result := make([]inventory.Stock, 0, len(ids))
	for _, id := range ids {
		stock, err := s.Get(ctx, id)
		if errors.Is(err, inventory.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		result = append(result, *stock)
	}
	return result, nil
}

func (s *StockStore) Create(ctx context.Context, stock inventory.Stock) error {
	key := s.key(stock.ProductID)
	return s.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return inventory.ErrAlreadyExists
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				fieldStock, stock.CurrentStock,
				fieldWeekly, strconv.FormatFloat(stock.WeeklyVelocity, 'f', -1, 64),
				fieldMonthly, strconv.FormatFloat(stock.MonthlyVelocity, 'f', -1, 64),
				fieldUpdated, s.timestamp(),
			)
			pipe.SAdd(ctx, s.idsKey(), stock.ProductID)
			return nil
		})
		return err
	}, key)
}

func (s *StockStore) Delete(ctx context.Context, productID string) error {
	key := s.key(productID)
	return s.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return inventory.ErrNotFound
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.SRem(ctx, s.idsKey(), productID)
			return nil
		})
		return err
	}, key)
}

// DecrementAll runs the whole check-and-decrement inside one script, which
// Redis executes atomically.
func (s *StockStore) DecrementAll(ctx context.Context, lines []inventory.Line) (bool, error) {
	if len(lines) == 0 {
		return false, nil
	}
	keys := make([]string, len(lines))
	args := make([]interface{}, 0, len(lines)+1)
	for i, l := range lines {
		keys[i] = s.key(l.ProductID)
		args = append(args, l.Quantity)
	}
	args = append(args, s.timestamp())

	res, err := decrementScript.Run(ctx, s.client, keys, args...).Int()
	if err != nil {
		return false, err
	}
	switch res {
	case 1:
		return true, nil
	case -1:
		return false, inventory.ErrNotFound
	default:
		return false, nil
	}
}

func (s *StockStore) Adjust(ctx context.Context, productID string, delta int) (*inventory.Stock, error) {
	res, err := adjustScript.Run(ctx, s.client, []string{s.key(productID)}, delta, s.timestamp()).Int()
	if err != nil {
		return nil, err
	}
	switch res {
	case -1:
		return nil, inventory.ErrNotFound
	case -2:
		return nil, inventory.ErrNegativeStock
	}
	return s.Get(ctx, productID)
}

func (s *StockStore) Set(ctx context.Context, productID string, value int) (*inventory.Stock, error) {
	if value < 0 {
		return nil, inventory.ErrNegativeStock
	}
	if err := s.update(ctx, productID, fieldStock, value); err != nil {
		return nil, err
	}
	return s.Get(ctx, productID)
}

func (s *StockStore) SetVelocity(ctx context.Context, productID string, weekly, monthly float64) (*inventory.Stock, error) {
	err := s.update(ctx, productID,
		fieldWeekly, strconv.FormatFloat(weekly, 'f', -1, 64),
		fieldMonthly, strconv.FormatFloat(monthly, 'f', -1, 64),
	)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, productID)
}

// update writes fields of an existing record, failing if it was removed
func (s *StockStore) update(ctx context.Context, productID string, values ...interface{}) error {
	key := s.key(productID)
	return s.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return inventory.ErrNotFound
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, append(values, fieldUpdated, s.timestamp())...)
			return nil
		})
		return err
	}, key)
}

var _ inventory.Store = (*StockStore)(nil)
