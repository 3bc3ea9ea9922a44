package esign

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var insertScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], unpack(ARGV))
return 1
`)

// ARGV[1] and ARGV[2] are the expected status and token digest; the rest are
// field/value pairs to write.
var compareAndSwapScript = redis.NewScript(`
local cur = redis.call("HMGET", KEYS[1], "status", "token_digest")
if not cur[1] then
  return -1
end
if cur[1] ~= ARGV[1] or cur[2] ~= ARGV[2] then
  return 0
end
redis.call("HSET", KEYS[1], unpack(ARGV, 3))
return 1
`)

// RedisStore keeps each record in one hash. Both writes run as Lua scripts so
// Redis applies them atomically.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "signflow"
	}
	return &RedisStore{client: client, prefix: prefix}
}

// NewRedisStoreFromAddr dials a single Redis node.
func NewRedisStoreFromAddr(addr, password, prefix string) (*RedisStore, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("esign: redis addr is required")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return NewRedisStore(client, prefix), nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(id string) string {
	return fmt.Sprintf("%s:document:%s", s.prefix, id)
}

func (s *RedisStore) Insert(ctx context.Context, rec Record) error {
	args := append([]any{
		"id", rec.ID,
		"title", rec.Title,
		"counterparty_email", rec.CounterpartyEmail,
		"content", rec.Binary,
		"created_at", rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	}, mutableFields(rec)...)

	res, err := insertScript.Run(ctx, s.client, []string{s.key(rec.ID)}, args...).Int64()
	if err != nil {
		return fmt.Errorf("esign: insert document: %w", err)
	}
	if res == 0 {
		return ErrDuplicate
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (Record, error) {
	fields, err := s.client.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return Record{}, fmt.Errorf("esign: get document: %w", err)
	}
	if len(fields) == 0 {
		return Record{}, ErrNotFound
	}
	return decodeRecord(fields)
}

func (s *RedisStore) CompareAndSwap(ctx context.Context, id string, expect Expectation, next Record) error {
	args := append([]any{string(expect.Status), expect.TokenDigest}, mutableFields(next)...)
	res, err := compareAndSwapScript.Run(ctx, s.client, []string{s.key(id)}, args...).Int64()
	if err != nil {
		return fmt.Errorf("esign: update document: %w", err)
	}
	switch res {
	case 1:
		return nil
	case -1:
		return ErrNotFound
	default:
		return ErrConflict
	}
}

func mutableFields(rec Record) []any {
	signedAt := ""
	if rec.SignedAt != nil {
		signedAt = rec.SignedAt.UTC().Format(time.RFC3339Nano)
	}
	return []any{
		"status", string(rec.Status),
		"token_digest", rec.TokenDigest,
		"signed_content", rec.SignedBinary,
		"signed_at", signedAt,
		"signer_email", rec.SignerEmail,
		"signer_ip", rec.SignerIP,
		"revision", rec.Revision,
	}
}

func decodeRecord(fields map[string]string) (Record, error) {
	status, err := ParseStatus(fields["status"])
	if err != nil {
		return Record{}, err
	}
	rec := Record{
		ID:                fields["id"],
		Title:             fields["title"],
		Status:            status,
		CounterpartyEmail: fields["counterparty_email"],
		TokenDigest:       fields["token_digest"],
		Binary:            []byte(fields["content"]),
		SignerEmail:       fields["signer_email"],
		SignerIP:          fields["signer_ip"],
	}
	if v := fields["signed_content"]; v != "" {
		rec.SignedBinary = []byte(v)
	}
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, fields["created_at"]); err != nil {
		return Record{}, fmt.Errorf("esign: decode created_at: %w", err)
	}
	if v := fields["signed_at"]; v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return Record{}, fmt.Errorf("esign: decode signed_at: %w", err)
		}
		rec.SignedAt = &t
	}
	if rec.Revision, err = strconv.ParseInt(fields["revision"], 10, 64); err != nil {
		return Record{}, fmt.Errorf("esign: decode revision: %w", err)
	}
	return rec, nil
}
