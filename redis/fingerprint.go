package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/fwojciec/trawl"
)

// Compile-time interface verification.
var _ trawl.FingerprintStore = (*FingerprintStore)(nil)

// fingerprintKey prefixes per-document SimHash entries.
const fingerprintKey = "simhash:"

// FingerprintStore implements trawl.FingerprintStore with one expiring
// hash per document.
type FingerprintStore struct {
	client *Client
	ttl    time.Duration
}

// NewFingerprintStore creates a FingerprintStore whose entries expire
// after the given duration.
func NewFingerprintStore(client *Client, ttl time.Duration) *FingerprintStore {
	return &FingerprintStore{client: client, ttl: ttl}
}

// PutFingerprint stores the fingerprint for a document.
func (s *FingerprintStore) PutFingerprint(ctx context.Context, docID string, url string, fp uint64) error {
	if docID == "" {
		return trawl.Errorf(trawl.EINVALID, "document ID required")
	}

	key := fingerprintKey + docID
	pipe := s.client.rdb.TxPipeline()
	pipe.HSet(ctx, key, "url", url, "fp", strconv.FormatUint(fp, 10))
	pipe.Expire(ctx, key, s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// WalkFingerprints calls fn for every live fingerprint.
func (s *FingerprintStore) WalkFingerprints(ctx context.Context, fn func(docID, url string, fp uint64) error) error {
	var cursor uint64
	for {
		keys, next, err := s.client.rdb.Scan(ctx, cursor, fingerprintKey+"*", 500).Result()
		if err != nil {
			return err
		}

		for _, key := range keys {
			fields, err := s.client.rdb.HGetAll(ctx, key).Result()
			if err != nil {
				return err
			}
			// Entries can expire between SCAN and HGETALL.
			if len(fields) == 0 {
				continue
			}
			fp, err := strconv.ParseUint(fields["fp"], 10, 64)
			if err != nil {
				continue
			}
			if err := fn(key[len(fingerprintKey):], fields["url"], fp); err != nil {
				return err
			}
		}

		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
