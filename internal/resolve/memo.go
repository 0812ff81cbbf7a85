package resolve

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/envato-archive/outatime/s3types"
)

type memoKey struct {
	bucket string
	prefix string
	at     int64
}

// Memo remembers complete resolution results per (bucket, prefix, instant).
// A nil *Memo is valid and remembers nothing.
type Memo struct {
	cache *lru.Cache[memoKey, []s3types.ObjectVersion]
}

// NewMemo creates a Memo holding up to size results. A size of 0 or less returns nil.
func NewMemo(size int) (*Memo, error) {
	if size <= 0 {
		return nil, nil
	}
	cache, err := lru.New[memoKey, []s3types.ObjectVersion](size)
	if err != nil {
		return nil, fmt.Errorf("create resolution memo: %w", err)
	}
	return &Memo{cache: cache}, nil
}

// Get returns the remembered revisions for the given listing and instant.
func (m *Memo) Get(bucket, prefix string, at time.Time) ([]s3types.ObjectVersion, bool) {
	if m == nil {
		return nil, false
	}
	return m.cache.Get(memoKey{bucket: bucket, prefix: prefix, at: at.UnixNano()})
}

// Add remembers a complete resolution result.
func (m *Memo) Add(bucket, prefix string, at time.Time, revisions []s3types.ObjectVersion) {
	if m == nil {
		return
	}
	m.cache.Add(memoKey{bucket: bucket, prefix: prefix, at: at.UnixNano()}, revisions)
}

// Enabled reports whether m remembers anything.
func (m *Memo) Enabled() bool {
	return m != nil
}

// Purge forgets every remembered result.
func (m *Memo) Purge() {
	if m == nil {
		return
	}
	m.cache.Purge()
}
