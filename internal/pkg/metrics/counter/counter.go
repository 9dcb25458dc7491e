package counter

import (
	"context"
	"strconv"

	"github.com/zenithsites/zenithportal/internal/pkg/cache"
)

const (
	processedKey = "webhook:counters:processed"
	failedKey    = "webhook:counters:failed"
	duplicateKey = "webhook:counters:duplicate"
)

// AddProcessed increments the processed counter for an event type in Redis
func AddProcessed(eventType string) error {
	ctx := context.Background()
	return cache.GetClient().HIncrBy(ctx, processedKey, eventType, 1).Err()
}

// AddFailed increments the failed counter for an event type in Redis
func AddFailed(eventType string) error {
	ctx := context.Background()
	return cache.GetClient().HIncrBy(ctx, failedKey, eventType, 1).Err()
}

// AddDuplicate increments the duplicate counter for an event type in Redis
func AddDuplicate(eventType string) error {
	ctx := context.Background()
	return cache.GetClient().HIncrBy(ctx, duplicateKey, eventType, 1).Err()
}

// Snapshot returns the current counters grouped by outcome, each keyed by
// event type. Missing hashes read as empty maps.
func Snapshot() (map[string]map[string]int64, error) {
	ctx := context.Background()
	rdb := cache.GetClient()

	out := make(map[string]map[string]int64, 3)
	for name, key := range map[string]string{
		"processed": processedKey,
		"failed":    failedKey,
		"duplicate": duplicateKey,
	} {
		data, err := rdb.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, err
		}
		counts := make(map[string]int64, len(data))
		for field, raw := range data {
			n, perr := strconv.ParseInt(raw, 10, 64)
			if perr != nil {
				continue
			}
			counts[field] = n
		}
		out[name] = counts
	}
	return out, nil
}
