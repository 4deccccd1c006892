package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned by Get when no record exists for the id.
var ErrNotFound = errors.New("session not found")

// ErrRedisUnavailable wraps transport-level Redis failures.
var ErrRedisUnavailable = errors.New("session redis unavailable")

// saveSessionScript keeps record, index set, and counter consistent:
// the counter only advances when the session id is new.
const saveSessionScript = `
local existed = redis.call("EXISTS", KEYS[1])
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
redis.call("SADD", KEYS[2], ARGV[1])
if existed == 0 then
  redis.call("INCR", KEYS[3])
end
return existed
`

// deleteSessionScript removes the record, its index entry, and decrements
// the counter, never letting it go negative.
const deleteSessionScript = `
local existed = redis.call("EXISTS", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
if existed == 1 then
  redis.call("DEL", KEYS[1])
  local count = tonumber(redis.call("GET", KEYS[3]) or "0")
  if count > 1 then
    redis.call("DECR", KEYS[3])
  elseif count == 1 then
    redis.call("DEL", KEYS[3])
  end
end
return existed
`

var (
	saveSessionLua   = redis.NewScript(saveSessionScript)
	deleteSessionLua = redis.NewScript(deleteSessionScript)
)

// Store is the Redis-backed session repository of the Authentication
// context.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore wraps client with the given key prefix ("authsaga" when
// empty).
func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "authsaga"
	}
	return &Store{redis: client, prefix: prefix}
}

func (s *Store) sessionKey(sessionID string) string {
	return s.prefix + ":sess:" + sessionID
}

func (s *Store) accountKey(accountID string) string {
	return s.prefix + ":acct:" + accountID
}

func (s *Store) countKey(accountID string) string {
	return s.prefix + ":cnt:" + accountID
}

// Save writes the session record with the given absolute TTL and indexes
// it under its account.
func (s *Store) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("session ttl must be positive")
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}

	keys := []string{
		s.sessionKey(sess.SessionID),
		s.accountKey(sess.AccountID),
		s.countKey(sess.AccountID),
	}
	if err := saveSessionLua.Run(ctx, s.redis, keys,
		sess.SessionID, data, ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Get loads one session. Expired-but-not-yet-evicted records are
// returned as found; the caller decides how expiry maps to its result
// taxonomy.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("corrupt session record: %w", err)
	}

	return &sess, nil
}

// Touch refreshes the activity timestamp without extending the absolute
// lifetime.
func (s *Store) Touch(ctx context.Context, sessionID string, now time.Time) error {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}

	sess.LastActiveAt = now.Unix()
	ttl := time.Until(time.Unix(sess.ExpiresAt, 0))
	if ttl < time.Second {
		ttl = time.Second
	}
	return s.Save(ctx, sess, ttl)
}

// Delete removes one session and reports whether it existed. Deleting an
// absent session is not an error, which makes logout retries idempotent
// at the store level.
func (s *Store) Delete(ctx context.Context, accountID, sessionID string) (bool, error) {
	keys := []string{
		s.sessionKey(sessionID),
		s.accountKey(accountID),
		s.countKey(accountID),
	}
	existed, err := deleteSessionLua.Run(ctx, s.redis, keys, sessionID).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return existed == 1, nil
}

// ListForAccount returns every live session of an account. Index entries
// whose record already expired are pruned as they are encountered.
func (s *Store) ListForAccount(ctx context.Context, accountID string) ([]*Session, error) {
	ids, err := s.redis.SMembers(ctx, s.accountKey(accountID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sessions := make([]*Session, 0, len(ids))
	for _, id := range ids {
		sess, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			// Record expired out from under the index.
			if _, err := s.Delete(ctx, accountID, id); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}

	return sessions, nil
}

// DeleteAllForAccount removes every session of an account and returns
// how many records actually existed.
func (s *Store) DeleteAllForAccount(ctx context.Context, accountID string) (int, error) {
	ids, err := s.redis.SMembers(ctx, s.accountKey(accountID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	deleted := 0
	for _, id := range ids {
		existed, err := s.Delete(ctx, accountID, id)
		if err != nil {
			return deleted, err
		}
		if existed {
			deleted++
		}
	}

	return deleted, nil
}

// ActiveCount returns the account's session counter.
func (s *Store) ActiveCount(ctx context.Context, accountID string) (int, error) {
	count, err := s.redis.Get(ctx, s.countKey(accountID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return count, nil
}
