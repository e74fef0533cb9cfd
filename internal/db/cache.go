package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	models "github.com/glkeru/projxchange/internal/models"
	redis "github.com/redis/go-redis/v9"
)

const balanceTTL = 5 * time.Minute

// CacheService - снимок баланса для бейджей
type CacheService struct {
	client *redis.Client
}

func NewCacheService(addr, user, pwd string) (serv *CacheService, err error) {
	if addr == "" {
		return nil, fmt.Errorf("env ENTITLEMENT_CACHE_URL is not set")
	}
	db := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    pwd,
		Username:    user,
		DB:          0,
		MaxRetries:  5,
		DialTimeout: 10 * time.Second,
	})
	err = db.Ping(context.Background()).Err()
	if err != nil {
		return nil, err
	}

	return &CacheService{db}, nil
}

func balanceKey(user string) string {
	return "credits:balance:" + user
}

func (c *CacheService) GetBalance(ctx context.Context, user string) (*models.CreditBalance, error) {
	val, err := c.client.Get(ctx, balanceKey(user)).Bytes()
	if err == redis.Nil {
		return nil, models.ErrNotFound
	} else if err != nil {
		return nil, err
	}

	balance := &models.CreditBalance{}
	err = json.Unmarshal(val, balance)
	if err != nil {
		return nil, err
	}
	return balance, nil
}

func (c *CacheService) SetBalance(ctx context.Context, user string, balance models.CreditBalance) error {
	if user == "" {
		return nil
	}
	val, err := json.Marshal(balance)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, balanceKey(user), val, balanceTTL).Err()
}

func (c *CacheService) InvalidateBalance(ctx context.Context, user string) error {
	return c.client.Del(ctx, balanceKey(user)).Err()
}

func (c *CacheService) Close() error {
	return c.client.Close()
}
