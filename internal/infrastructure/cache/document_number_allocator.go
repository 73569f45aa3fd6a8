package cache

import (
	"context"
	"fmt"

	"github.com/atelier-erp/backend/internal/domain/purchasing"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultSequenceKeyPrefix namespaces document sequence counters
const DefaultSequenceKeyPrefix = "erp:docseq:"

// missingSequence is returned by incrExistingScript when the key is absent
const missingSequence int64 = -1

// incrExistingScript increments a counter only if it already exists, so an
// absent key can be seeded before the first value is handed out.
var incrExistingScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return -1
end
return redis.call("INCR", KEYS[1])
`)

// SequenceSeeder reports the highest value already issued for a key by any
// other source of numbers. A missing counter resumes above it.
type SequenceSeeder interface {
	HighWaterMark(ctx context.Context, tenantID, branchID uuid.UUID, docType purchasing.DocumentType) (int64, error)
}

// RedisDocumentNumberAllocator allocates document numbers with INCR. Redis
// executes INCR atomically, so concurrent callers never see the same value.
// A counter that does not exist yet, because the backend was switched or
// Redis lost its data, is first seeded from the SequenceSeeder with SETNX.
type RedisDocumentNumberAllocator struct {
	client    redis.Cmdable
	keyPrefix string
	seeder    SequenceSeeder
}

// NewRedisDocumentNumberAllocator creates an allocator on an existing client.
// An empty keyPrefix selects DefaultSequenceKeyPrefix. A nil seeder starts
// missing counters at zero.
func NewRedisDocumentNumberAllocator(client redis.Cmdable, keyPrefix string, seeder SequenceSeeder) *RedisDocumentNumberAllocator {
	if keyPrefix == "" {
		keyPrefix = DefaultSequenceKeyPrefix
	}
	return &RedisDocumentNumberAllocator{client: client, keyPrefix: keyPrefix, seeder: seeder}
}

// Next increments and returns the counter for the key
func (a *RedisDocumentNumberAllocator) Next(ctx context.Context, tenantID, branchID uuid.UUID, docType purchasing.DocumentType) (int64, error) {
	if !docType.IsValid() {
		return 0, fmt.Errorf("unknown document type %q", docType)
	}
	key := a.sequenceKey(tenantID, branchID, docType)

	value, err := incrExistingScript.Run(ctx, a.client, []string{key}).Int64()
	if err != nil {
		return 0, fmt.Errorf("increment %s sequence: %w", docType, err)
	}
	if value == missingSequence {
		if err := a.seed(ctx, key, tenantID, branchID, docType); err != nil {
			return 0, err
		}
		value, err = a.client.Incr(ctx, key).Result()
		if err != nil {
			return 0, fmt.Errorf("increment %s sequence: %w", docType, err)
		}
	}
	if value <= 0 {
		return 0, fmt.Errorf("sequence %s returned non-positive value %d", docType, value)
	}
	return value, nil
}

// seed creates the counter at the high-water mark. Concurrent seeders race
// on SETNX and only the first write lands.
func (a *RedisDocumentNumberAllocator) seed(ctx context.Context, key string, tenantID, branchID uuid.UUID, docType purchasing.DocumentType) error {
	var start int64
	if a.seeder != nil {
		high, err := a.seeder.HighWaterMark(ctx, tenantID, branchID, docType)
		if err != nil {
			return fmt.Errorf("seed %s sequence: %w", docType, err)
		}
		start = high
	}
	if err := a.client.SetNX(ctx, key, start, 0).Err(); err != nil {
		return fmt.Errorf("seed %s sequence: %w", docType, err)
	}
	return nil
}

func (a *RedisDocumentNumberAllocator) sequenceKey(tenantID, branchID uuid.UUID, docType purchasing.DocumentType) string {
	return a.keyPrefix + tenantID.String() + ":" + branchID.String() + ":" + docType.String()
}

var _ purchasing.DocumentNumberAllocator = (*RedisDocumentNumberAllocator)(nil)
