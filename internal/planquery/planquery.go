// Package planquery caches ExplainQuery results keyed by table identity
// and query shape, so repeated explain calls against an unchanged table
// skip re-planning in the underlying store.
package planquery

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sync"
	"time"

	"github.com/oriys/lancebridge/internal/cache"
	"github.com/oriys/lancebridge/internal/vendorstore"
)

// DefaultTTL bounds how long a cached plan is trusted before a fresh
// ExplainQuery call is required; a table's indices or row count may have
// changed since the plan was cached.
const DefaultTTL = 30 * time.Second

// Cache memoizes explain plans behind a cache.Cache, scoped per
// (connection handle, table handle, vector/scalar, query shape). A
// per-table version counter is folded into the cache key so Invalidate
// can drop every entry for a table without a prefix scan, which the
// backing cache.Cache interface does not offer.
type Cache struct {
	backing cache.Cache
	ttl     time.Duration

	mu       sync.Mutex
	versions map[tableKey]uint64
}

type tableKey struct {
	connHandle, tableHandle int64
}

// New wraps backing with the default TTL.
func New(backing cache.Cache) *Cache {
	return &Cache{backing: backing, ttl: DefaultTTL, versions: make(map[tableKey]uint64)}
}

// Get returns the cached plan for the given key, or ("", false) on a miss.
func (c *Cache) Get(ctx context.Context, connHandle, tableHandle int64, vector bool, q vendorstore.QuerySpec) (string, bool) {
	key := c.planKey(connHandle, tableHandle, vector, q)
	buf, err := c.backing.Get(ctx, key)
	if err != nil {
		return "", false
	}
	return string(buf), true
}

// Put stores plan under the key derived from its inputs.
func (c *Cache) Put(ctx context.Context, connHandle, tableHandle int64, vector bool, q vendorstore.QuerySpec, plan string) {
	key := c.planKey(connHandle, tableHandle, vector, q)
	_ = c.backing.Set(ctx, key, []byte(plan), c.ttl)
}

// Invalidate bumps the table's version counter, so every plan cached
// under the previous version becomes unreachable. Called after any write
// or index operation that could change the plan the store would produce.
func (c *Cache) Invalidate(connHandle, tableHandle int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[tableKey{connHandle, tableHandle}]++
}

func (c *Cache) version(connHandle, tableHandle int64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[tableKey{connHandle, tableHandle}]
}

func (c *Cache) planKey(connHandle, tableHandle int64, vector bool, q vendorstore.QuerySpec) string {
	h := sha256.New()
	var scratch [8]byte
	binary.BigEndian.PutUint64(scratch[:], uint64(connHandle))
	h.Write(scratch[:])
	binary.BigEndian.PutUint64(scratch[:], uint64(tableHandle))
	h.Write(scratch[:])
	binary.BigEndian.PutUint64(scratch[:], c.version(connHandle, tableHandle))
	h.Write(scratch[:])
	if vector {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
	h.Write([]byte(q.Filter))
	h.Write([]byte{0})
	h.Write([]byte(q.FullTextQuery))
	h.Write([]byte{0})
	for _, col := range q.SelectColumns {
		h.Write([]byte(col))
		h.Write([]byte{0})
	}
	binary.BigEndian.PutUint64(scratch[:], uint64(q.Limit))
	h.Write(scratch[:])
	binary.BigEndian.PutUint64(scratch[:], uint64(q.Metric))
	h.Write(scratch[:])
	binary.BigEndian.PutUint64(scratch[:], uint64(q.NProbes))
	h.Write(scratch[:])
	binary.BigEndian.PutUint64(scratch[:], uint64(q.RefineFactor))
	h.Write(scratch[:])
	if q.Vector != nil {
		h.Write([]byte{byte(q.Vector.Kind)})
		_ = binary.Write(h, binary.BigEndian, q.Vector.F16)
		_ = binary.Write(h, binary.BigEndian, q.Vector.F32)
		_ = binary.Write(h, binary.BigEndian, q.Vector.F64)
		h.Write(q.Vector.IPCBlob)
	}
	return "plan:" + hex.EncodeToString(h.Sum(nil))
}
