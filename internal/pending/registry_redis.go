package pending

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"telehealth-platform/internal/calls"
	"telehealth-platform/internal/vapi"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "telehealth:pending"

// RedisRegistry stores pending calls in Redis hashes so tracking survives a
// process restart. Pair it with a durable scheduler backend; in-process
// timers are lost on restart regardless of where records live.
//
// Layout:
//
//	<prefix>:call:<id>  hash {call, received_at, retry_count, initial_status, track}
//	<prefix>:index      set of tracked call ids
type RedisRegistry struct {
	rdb    redis.UniversalClient
	prefix string
	clock  func() time.Time
}

func NewRedisRegistry(rdb redis.UniversalClient, prefix string) *RedisRegistry {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisRegistry{rdb: rdb, prefix: prefix, clock: time.Now}
}

func (r *RedisRegistry) WithClock(clock func() time.Time) *RedisRegistry {
	if clock != nil {
		r.clock = clock
	}
	return r
}

var upsertScript = redis.NewScript(`
-- KEYS[1] = record key, KEYS[2] = index key
-- ARGV = call json, received_at ms, initial status, track, call id
-- Returns 1 if created, 0 if the record already existed.
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1],
  'call', ARGV[1],
  'received_at', ARGV[2],
  'retry_count', 0,
  'initial_status', ARGV[3],
  'track', ARGV[4])
redis.call('SADD', KEYS[2], ARGV[5])
return 1
`)

var incrementScript = redis.NewScript(`
-- KEYS[1] = record key
-- Returns the new retry count, or -1 if the record is gone.
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
return redis.call('HINCRBY', KEYS[1], 'retry_count', 1)
`)

var updateScript = redis.NewScript(`
-- KEYS[1] = record key
-- ARGV[1] = call json, ARGV[2] = track (may be empty)
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
redis.call('HSET', KEYS[1], 'call', ARGV[1])
if ARGV[2] ~= '' then
  redis.call('HSET', KEYS[1], 'track', ARGV[2])
end
return 1
`)

func (r *RedisRegistry) recordKey(callID string) string { return r.prefix + ":call:" + callID }
func (r *RedisRegistry) indexKey() string               { return r.prefix + ":index" }

func (r *RedisRegistry) UpsertIfAbsent(ctx context.Context, callID string, call vapi.Call, initialStatus calls.Status, track Track) (bool, error) {
	if callID == "" {
		return false, ErrInvalidCallID
	}
	raw, err := json.Marshal(call)
	if err != nil {
		return false, fmt.Errorf("pending: encode call: %w", err)
	}
	res, err := upsertScript.Run(ctx, r.rdb,
		[]string{r.recordKey(callID), r.indexKey()},
		string(raw), r.clock().UTC().UnixMilli(), string(initialStatus), string(track), callID,
	).Int()
	if err != nil {
		return false, fmt.Errorf("pending: upsert: %w", err)
	}
	return res == 1, nil
}

func (r *RedisRegistry) Get(ctx context.Context, callID string) (Record, bool, error) {
	vals, err := r.rdb.HGetAll(ctx, r.recordKey(callID)).Result()
	if err != nil {
		return Record{}, false, fmt.Errorf("pending: get: %w", err)
	}
	if len(vals) == 0 {
		return Record{}, false, nil
	}
	rec, err := decodeRecord(callID, vals)
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

func (r *RedisRegistry) IncrementRetry(ctx context.Context, callID string) (int, bool, error) {
	n, err := incrementScript.Run(ctx, r.rdb, []string{r.recordKey(callID)}).Int()
	if err != nil {
		return 0, false, fmt.Errorf("pending: increment: %w", err)
	}
	if n < 0 {
		return 0, false, nil
	}
	return n, true, nil
}

func (r *RedisRegistry) Update(ctx context.Context, callID string, call vapi.Call, track Track) (bool, error) {
	raw, err := json.Marshal(call)
	if err != nil {
		return false, fmt.Errorf("pending: encode call: %w", err)
	}
	n, err := updateScript.Run(ctx, r.rdb, []string{r.recordKey(callID)}, string(raw), string(track)).Int()
	if err != nil {
		return false, fmt.Errorf("pending: update: %w", err)
	}
	return n == 1, nil
}

func (r *RedisRegistry) Remove(ctx context.Context, callID string) error {
	pipe := r.rdb.TxPipeline()
	pipe.Del(ctx, r.recordKey(callID))
	pipe.SRem(ctx, r.indexKey(), callID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("pending: remove: %w", err)
	}
	return nil
}

func (r *RedisRegistry) Snapshot(ctx context.Context) ([]Entry, error) {
	ids, err := r.rdb.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("pending: list index: %w", err)
	}
	if len(ids) == 0 {
		return []Entry{}, nil
	}

	pipe := r.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, r.recordKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("pending: snapshot: %w", err)
	}

	out := make([]Entry, 0, len(ids))
	for i, cmd := range cmds {
		vals := cmd.Val()
		if len(vals) == 0 {
			// Record removed between SMEMBERS and HGETALL.
			continue
		}
		rec, err := decodeRecord(ids[i], vals)
		if err != nil {
			return nil, err
		}
		out = append(out, rec.entry())
	}
	sortEntries(out)
	return out, nil
}

func decodeRecord(callID string, vals map[string]string) (Record, error) {
	rec := Record{
		CallID:        callID,
		InitialStatus: calls.Status(vals["initial_status"]),
		Track:         Track(vals["track"]),
	}
	if raw := vals["call"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &rec.CallInfo); err != nil {
			return Record{}, fmt.Errorf("pending: decode call %s: %w", callID, err)
		}
	}
	if ms, err := strconv.ParseInt(vals["received_at"], 10, 64); err == nil {
		rec.ReceivedAt = time.UnixMilli(ms).UTC()
	}
	if n, err := strconv.Atoi(vals["retry_count"]); err == nil {
		rec.RetryCount = n
	}
	return rec, nil
}
