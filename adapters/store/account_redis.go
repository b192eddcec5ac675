package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/layer-3/paydesk/core"
)

// RedisAccounts is a Redis AccountDirectory. Records are JSON under the address key,
// with a secondary id -> address key.
type RedisAccounts struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisAccounts creates a Redis-backed directory
func NewRedisAccounts(client redis.UniversalClient) *RedisAccounts {
	return &RedisAccounts{
		client: client,
		prefix: "paydesk:account:",
	}
}

func (d *RedisAccounts) addressKey(a core.Address) string { return d.prefix + "addr:" + string(a) }
func (d *RedisAccounts) idKey(id string) string          { return d.prefix + "id:" + id }

// LookupByAddress returns the record for address
func (d *RedisAccounts) LookupByAddress(ctx context.Context, address core.Address) (core.Account, error) {
	return d.get(ctx, core.NormalizeAddress(string(address)))
}

// Insert claims the address key with SETNX so a wallet gets exactly one record
func (d *RedisAccounts) Insert(ctx context.Context, account core.Account) (core.Account, error) {
	account.WalletAddress = core.NormalizeAddress(string(account.WalletAddress))
	if account.WalletAddress.IsZero() {
		return core.Account{}, core.ErrInvalidAddress
	}
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(account)
	if err != nil {
		return core.Account{}, fmt.Errorf("failed to marshal account: %w", err)
	}
	ok, err := d.client.SetNX(ctx, d.addressKey(account.WalletAddress), data, 0).Result()
	if err != nil {
		return core.Account{}, fmt.Errorf("failed to insert account: %w", err)
	}
	if !ok {
		return core.Account{}, core.ErrAccountExists
	}
	if err := d.client.Set(ctx, d.idKey(account.ID), string(account.WalletAddress), 0).Err(); err != nil {
		return core.Account{}, fmt.Errorf("failed to index account: %w", err)
	}
	return account, nil
}

// Update applies login fields to the record with id
func (d *RedisAccounts) Update(ctx context.Context, id string, update core.AccountUpdate) (core.Account, error) {
	addr, err := d.client.Get(ctx, d.idKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return core.Account{}, core.ErrAccountNotFound
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("failed to resolve account id: %w", err)
	}

	acct, err := d.get(ctx, core.Address(addr))
	if err != nil {
		return core.Account{}, err
	}
	acct = update.Apply(acct)

	data, err := json.Marshal(acct)
	if err != nil {
		return core.Account{}, fmt.Errorf("failed to marshal account: %w", err)
	}
	if err := d.client.Set(ctx, d.addressKey(acct.WalletAddress), data, 0).Err(); err != nil {
		return core.Account{}, fmt.Errorf("failed to update account: %w", err)
	}
	return acct, nil
}

func (d *RedisAccounts) get(ctx context.Context, address core.Address) (core.Account, error) {
	data, err := d.client.Get(ctx, d.addressKey(address)).Bytes()
	if errors.Is(err, redis.Nil) {
		return core.Account{}, core.ErrAccountNotFound
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("failed to get account: %w", err)
	}

	var acct core.Account
	if err := json.Unmarshal(data, &acct); err != nil {
		return core.Account{}, fmt.Errorf("failed to unmarshal account: %w", err)
	}
	return acct, nil
}
