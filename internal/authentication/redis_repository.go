package authentication

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Each token lives in a hash that expires with the token. Two index sets, one
// per family and one per person, list token ids for the bulk revocations.
// Every transition runs as a single script so the status check and the write
// cannot interleave with another client.

var createTokenScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], 'person_id', ARGV[2], 'family_id', ARGV[3], 'status', 'active', 'issued_at', ARGV[4], 'expires_at', ARGV[5])
redis.call('PEXPIREAT', KEYS[1], ARGV[5])
local expiresAt = tonumber(ARGV[5])
local now = tonumber(ARGV[6])
for i = 2, 3 do
  redis.call('SADD', KEYS[i], ARGV[1])
  local ttl = redis.call('PTTL', KEYS[i])
  if ttl < 0 or now + ttl < expiresAt then
    redis.call('PEXPIREAT', KEYS[i], ARGV[5])
  end
end
return 1
`)

var markRotatedScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'status') ~= 'active' then
  return 0
end
redis.call('HSET', KEYS[1], 'status', 'rotated', 'replaced_by_id', ARGV[1])
return 1
`)

var revokeOneScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'status') ~= 'active' then
  return 0
end
redis.call('HSET', KEYS[1], 'status', 'revoked', 'revoked_at', ARGV[1])
return 1
`)

var revokeIndexScript = redis.NewScript(`
local revoked = 0
for _, id in ipairs(redis.call('SMEMBERS', KEYS[1])) do
  local key = ARGV[1] .. id
  local status = redis.call('HGET', key, 'status')
  if not status then
    redis.call('SREM', KEYS[1], id)
  elseif status ~= 'revoked' then
    redis.call('HSET', key, 'status', 'revoked', 'revoked_at', ARGV[2])
    revoked = revoked + 1
  end
end
return revoked
`)

var pruneIndexScript = redis.NewScript(`
local removed = 0
for _, id in ipairs(redis.call('SMEMBERS', KEYS[1])) do
  if redis.call('EXISTS', ARGV[1] .. id) == 0 then
    redis.call('SREM', KEYS[1], id)
    removed = removed + 1
  end
end
return removed
`)

type redisRecordRepository struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisRecordRepository needs a single-node client: the revoke and prune
// scripts touch token keys they discover at run time, which a cluster rejects.
func NewRedisRecordRepository(rdb *redis.Client, prefix string) RefreshTokenStore {
	if prefix == "" {
		prefix = "rt"
	}
	return &redisRecordRepository{rdb: rdb, prefix: prefix}
}

func (r *redisRecordRepository) tokenPrefix() string {
	return r.prefix + ":token:"
}

func (r *redisRecordRepository) tokenKey(id string) string {
	return r.tokenPrefix() + id
}

func (r *redisRecordRepository) familyKey(familyID string) string {
	return r.prefix + ":family:" + familyID
}

func (r *redisRecordRepository) personKey(personID uint) string {
	return r.prefix + ":person:" + strconv.FormatUint(uint64(personID), 10)
}

func (r *redisRecordRepository) Create(ctx context.Context, record *RefreshTokenRecord) error {
	if err := prepareForCreate(record); err != nil {
		return err
	}
	created, err := createTokenScript.Run(ctx, r.rdb,
		[]string{r.tokenKey(record.ID), r.familyKey(record.FamilyID), r.personKey(record.PersonID)},
		record.ID,
		record.PersonID,
		record.FamilyID,
		record.IssuedAt.UnixMilli(),
		record.ExpiresAt.UnixMilli(),
		time.Now().UnixMilli(),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: failed to create refresh token record: %v", ErrUnresponsiveDatabase, err)
	}
	if created == 0 {
		return fmt.Errorf("%w: refresh token record %s already exists", ErrUnresponsiveDatabase, shortID(record.ID))
	}
	return nil
}

func (r *redisRecordRepository) FindByID(ctx context.Context, id string) (*RefreshTokenRecord, error) {
	fields, err := r.rdb.HGetAll(ctx, r.tokenKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnresponsiveDatabase, err)
	}
	if len(fields) == 0 {
		return nil, ErrRecordNotFound
	}
	return decodeRecord(id, fields)
}

func (r *redisRecordRepository) FindActiveByID(ctx context.Context, id string) (*RefreshTokenRecord, error) {
	record, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !record.IsActive() {
		return nil, ErrRecordNotFound
	}
	return record, nil
}

func (r *redisRecordRepository) MarkRotated(ctx context.Context, id, replacedByID string) (bool, error) {
	changed, err := markRotatedScript.Run(ctx, r.rdb, []string{r.tokenKey(id)}, replacedByID).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnresponsiveDatabase, err)
	}
	return changed == 1, nil
}

func (r *redisRecordRepository) RevokeFamily(ctx context.Context, familyID string) (int64, error) {
	return r.revokeIndex(ctx, r.familyKey(familyID))
}

func (r *redisRecordRepository) RevokeAllForPerson(ctx context.Context, personID uint) (int64, error) {
	return r.revokeIndex(ctx, r.personKey(personID))
}

func (r *redisRecordRepository) revokeIndex(ctx context.Context, indexKey string) (int64, error) {
	revoked, err := revokeIndexScript.Run(ctx, r.rdb, []string{indexKey}, r.tokenPrefix(), time.Now().UnixMilli()).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnresponsiveDatabase, err)
	}
	return revoked, nil
}

func (r *redisRecordRepository) RevokeOne(ctx context.Context, id string) (bool, error) {
	changed, err := revokeOneScript.Run(ctx, r.rdb, []string{r.tokenKey(id)}, time.Now().UnixMilli()).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnresponsiveDatabase, err)
	}
	return changed == 1, nil
}

// PurgeExpired drops index entries whose token hash has already expired out
// of redis. The hashes themselves are removed by key expiry.
func (r *redisRecordRepository) PurgeExpired(ctx context.Context, _ time.Time) (int64, error) {
	var removed int64
	for _, pattern := range []string{r.prefix + ":family:*", r.prefix + ":person:*"} {
		iter := r.rdb.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			n, err := pruneIndexScript.Run(ctx, r.rdb, []string{iter.Val()}, r.tokenPrefix()).Int64()
			if err != nil {
				return removed, fmt.Errorf("%w: %v", ErrUnresponsiveDatabase, err)
			}
			removed += n
		}
		if err := iter.Err(); err != nil {
			return removed, fmt.Errorf("%w: %v", ErrUnresponsiveDatabase, err)
		}
	}
	return removed, nil
}

func decodeRecord(id string, fields map[string]string) (*RefreshTokenRecord, error) {
	personID, err := strconv.ParseUint(fields["person_id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt person_id on %s", ErrUnresponsiveDatabase, shortID(id))
	}
	issuedAt, err := parseMillis(fields["issued_at"])
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt issued_at on %s", ErrUnresponsiveDatabase, shortID(id))
	}
	expiresAt, err := parseMillis(fields["expires_at"])
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt expires_at on %s", ErrUnresponsiveDatabase, shortID(id))
	}

	record := &RefreshTokenRecord{
		ID:        id,
		PersonID:  uint(personID),
		FamilyID:  fields["family_id"],
		Status:    TokenStatus(fields["status"]),
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}
	if replacedBy := fields["replaced_by_id"]; replacedBy != "" {
		record.ReplacedByID = &replacedBy
	}
	if raw := fields["revoked_at"]; raw != "" {
		if revokedAt, err := parseMillis(raw); err == nil {
			record.RevokedAt = &revokedAt
		}
	}
	return record, nil
}

func parseMillis(raw string) (time.Time, error) {
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}
