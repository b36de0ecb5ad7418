// Package memstore is an in-memory, Arrow-backed reference
// implementation of vendorstore.Opener/Connection/Table. It exists
// because no Go client for the real columnar store is available in this
// module's dependency set; it is an ordinary internal test double, not a
// replacement for the vendor library, which remains an external
// collaborator.
//
// It supports exact-match predicates of the form `column = literal`
// (the only shape exercised by the engine's own tests) in CountRows and
// DeleteRows. Query and VectorQuery apply no filter and no distance
// ranking: both return every row in insertion order, subject to Limit. It
// does not implement a general SQL predicate or query planner, which is
// explicitly out of scope.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/oriys/lancebridge/internal/vendorstore"
)

// Store opens in-memory connections. One Store instance models one
// database: all connections opened against the same URI share the same
// table set, matching the vendor contract that a URI names a database.
type Store struct {
	mu  sync.Mutex
	dbs map[string]*database
}

// New returns an empty Store.
func New() *Store {
	return &Store{dbs: make(map[string]*database)}
}

type database struct {
	mu     sync.RWMutex
	tables map[string]*table
}

// Open implements vendorstore.Opener. storageOptions is accepted but
// unused by the in-memory store; a real vendor client would use it for
// credentials and tuning knobs.
func (s *Store) Open(_ context.Context, uri string, storageOptions map[string]string) (vendorstore.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, ok := s.dbs[uri]
	if !ok {
		db = &database{tables: make(map[string]*table)}
		s.dbs[uri] = db
	}
	return &connection{db: db, uri: uri, opts: storageOptions}, nil
}

type connection struct {
	db     *database
	uri    string
	opts   map[string]string
	closed bool
	mu     sync.Mutex
}

func (c *connection) Close(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *connection) TableNames(_ context.Context) ([]string, error) {
	c.db.mu.RLock()
	defer c.db.mu.RUnlock()
	names := make([]string, 0, len(c.db.tables))
	for name := range c.db.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (c *connection) CreateTable(_ context.Context, name string, schema *arrow.Schema) (vendorstore.Table, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()

	t := &table{name: name, schema: schema, pool: memory.DefaultAllocator}
	c.db.tables[name] = t
	return t, nil
}

func (c *connection) OpenTable(_ context.Context, name string) (vendorstore.Table, error) {
	c.db.mu.RLock()
	defer c.db.mu.RUnlock()
	t, ok := c.db.tables[name]
	if !ok {
		return nil, fmt.Errorf("Error opening table %q: %w", name, vendorstore.ErrTableNotFound)
	}
	return t, nil
}

func (c *connection) DropTable(_ context.Context, name string, ignoreMissing bool) error {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	if _, ok := c.db.tables[name]; !ok {
		if ignoreMissing {
			return nil
		}
		return fmt.Errorf("drop table %q: %w", name, vendorstore.ErrTableNotFound)
	}
	delete(c.db.tables, name)
	return nil
}

func (c *connection) DropDatabase(_ context.Context) error {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	c.db.tables = make(map[string]*table)
	return nil
}

func (c *connection) RenameTable(_ context.Context, oldName, newName string) error {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	t, ok := c.db.tables[oldName]
	if !ok {
		return fmt.Errorf("rename table %q: %w", oldName, vendorstore.ErrTableNotFound)
	}
	t.mu.Lock()
	t.name = newName
	t.mu.Unlock()
	delete(c.db.tables, oldName)
	c.db.tables[newName] = t
	return nil
}

type table struct {
	mu      sync.RWMutex
	name    string
	schema  *arrow.Schema
	pool    memory.Allocator
	batches []arrow.Record
	indices []vendorstore.IndexInfo
}

func (t *table) Name() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.name
}

func (t *table) Schema(_ context.Context) (*arrow.Schema, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.schema, nil
}

func (t *table) CheckoutLatest(_ context.Context) error {
	return nil
}

func (t *table) AddRecords(_ context.Context, batches []arrow.Record, mode vendorstore.WriteMode) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if mode == vendorstore.WriteOverwrite {
		for _, r := range t.batches {
			r.Release()
		}
		t.batches = nil
	}
	for _, r := range batches {
		r.Retain()
		t.batches = append(t.batches, r)
	}
	return nil
}

func (t *table) MergeInsert(_ context.Context, batches []arrow.Record, cfg vendorstore.MergeInsertConfig) error {
	// The in-memory store has no primary-key index, so merge degrades to
	// an append; it is adequate for exercising the dispatcher contract
	// without reimplementing the vendor's match/no-match planner.
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range batches {
		r.Retain()
		t.batches = append(t.batches, r)
	}
	return nil
}

func (t *table) DeleteRows(_ context.Context, predicate string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if predicate == "" {
		for _, r := range t.batches {
			r.Release()
		}
		t.batches = nil
		return nil
	}

	col, val, err := parseEquality(predicate)
	if err != nil {
		return err
	}

	kept := t.batches[:0]
	for _, r := range t.batches {
		filtered, err := filterRecord(t.pool, r, col, val, true)
		if err != nil {
			return err
		}
		if filtered != nil {
			kept = append(kept, filtered)
		}
		r.Release()
	}
	t.batches = kept
	return nil
}

// Update evaluates neither the expressions nor the predicate: stored rows
// are left unchanged, and progress is called once per column with the
// table's total row count as the affected count.
func (t *table) Update(_ context.Context, columns []vendorstore.ColumnExpr, predicate string, progress func(column string, affected int64)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, col := range columns {
		var affected int64
		for _, r := range t.batches {
			affected += r.NumRows()
		}
		if progress != nil {
			progress(col.Column, affected)
		}
	}
	return nil
}

func (t *table) CountRows(_ context.Context, predicate string) (int64, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if predicate == "" {
		var n int64
		for _, r := range t.batches {
			n += r.NumRows()
		}
		return n, nil
	}

	col, val, err := parseEquality(predicate)
	if err != nil {
		return 0, err
	}

	var n int64
	for _, r := range t.batches {
		c, err := countMatching(r, col, val)
		if err != nil {
			return 0, err
		}
		n += c
	}
	return n, nil
}

func (t *table) Query(_ context.Context, q vendorstore.QuerySpec) (vendorstore.RecordIterator, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	batches := make([]arrow.Record, len(t.batches))
	copy(batches, t.batches)
	for _, r := range batches {
		r.Retain()
	}
	return newSliceIterator(batches, q.Limit, q.MaxBatchLength), nil
}

func (t *table) VectorQuery(ctx context.Context, q vendorstore.QuerySpec) (vendorstore.RecordIterator, error) {
	// The reference store has no vector index; it returns the full scan
	// in insertion order, which is sufficient to exercise batching,
	// slicing, and cancellation semantics end to end.
	return t.Query(ctx, q)
}

func (t *table) ExplainQuery(_ context.Context, q vendorstore.QuerySpec, vector bool) (string, error) {
	kind := "Scan"
	if vector {
		kind = "KNN"
	}
	return fmt.Sprintf("%s(table=%s, limit=%d, filter=%q)", kind, t.name, q.Limit, q.Filter), nil
}

func (t *table) CreateScalarIndex(_ context.Context, column string, kind vendorstore.IndexKind) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.indices = append(t.indices, vendorstore.IndexInfo{Name: column + "_idx", Kind: kind, Columns: []string{column}})
	return nil
}

func (t *table) CreateFullTextIndex(_ context.Context, columns []string, tokenizer string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if tokenizer == "" {
		tokenizer = "simple"
	}
	t.indices = append(t.indices, vendorstore.IndexInfo{Name: "fts_idx", Kind: vendorstore.IndexFTS, Columns: columns})
	return nil
}

func (t *table) CreateIndex(_ context.Context, column string, cfg vendorstore.VectorIndexConfig) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.indices = append(t.indices, vendorstore.IndexInfo{Name: column + "_ivfpq", Kind: vendorstore.IndexIVFPQ, Columns: []string{column}})
	return nil
}

func (t *table) Optimize(_ context.Context, opts vendorstore.OptimizeOptions, onPrune func(vendorstore.PruneStats), onCompact func(vendorstore.CompactStats)) error {
	if opts.HasPruneOlderThan || opts.DeleteUnverified {
		if onPrune != nil {
			onPrune(vendorstore.PruneStats{})
		}
		if onCompact != nil {
			onCompact(vendorstore.CompactStats{})
		}
		return nil
	}
	if onCompact != nil {
		onCompact(vendorstore.CompactStats{})
	}
	if onPrune != nil {
		onPrune(vendorstore.PruneStats{})
	}
	return nil
}

func (t *table) ListIndices(_ context.Context) ([]vendorstore.IndexInfo, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]vendorstore.IndexInfo, len(t.indices))
	copy(out, t.indices)
	return out, nil
}

func (t *table) GetIndexStats(_ context.Context, name string) (vendorstore.IndexStats, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, idx := range t.indices {
		if idx.Name == name {
			var rows int64
			for _, r := range t.batches {
				rows += r.NumRows()
			}
			return vendorstore.IndexStats{Kind: idx.Kind, RowsIndexed: rows, IndexCount: 1}, nil
		}
	}
	return vendorstore.IndexStats{}, fmt.Errorf("index %q: %w", name, vendorstore.ErrIndexNotFound)
}

// parseEquality handles the single predicate shape the in-memory store
// understands: `column = literal` (literal optionally quoted).
func parseEquality(predicate string) (col, val string, err error) {
	parts := strings.SplitN(predicate, "=", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("unsupported predicate %q: only \"column = literal\" is supported by the in-memory reference store", predicate)
	}
	col = strings.TrimSpace(parts[0])
	val = strings.Trim(strings.TrimSpace(parts[1]), `'"`)
	return col, val, nil
}

func countMatching(r arrow.Record, col, val string) (int64, error) {
	idx := fieldIndex(r.Schema(), col)
	if idx < 0 {
		return 0, fmt.Errorf("%w: %s", vendorstore.ErrColumnNotFound, col)
	}
	var n int64
	arrCol := r.Column(idx)
	for i := 0; i < arrCol.Len(); i++ {
		if valueEquals(arrCol, i, val) {
			n++
		}
	}
	return n, nil
}

func filterRecord(pool memory.Allocator, r arrow.Record, col, val string, invert bool) (arrow.Record, error) {
	idx := fieldIndex(r.Schema(), col)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", vendorstore.ErrColumnNotFound, col)
	}

	arrCol := r.Column(idx)
	var keepRows []int
	for i := 0; i < arrCol.Len(); i++ {
		matches := valueEquals(arrCol, i, val)
		if matches != invert {
			keepRows = append(keepRows, i)
		}
	}
	if len(keepRows) == 0 {
		return nil, nil
	}
	if len(keepRows) == r.NumRows() {
		r.Retain()
		return r, nil
	}

	b := array.NewRecordBuilder(pool, r.Schema())
	defer b.Release()
	for _, row := range keepRows {
		for c := 0; c < int(r.NumCols()); c++ {
			appendScalar(b.Field(c), r.Column(c), row)
		}
	}
	return b.NewRecord(), nil
}

func fieldIndex(schema *arrow.Schema, name string) int {
	for i, f := range schema.Fields() {
		if f.Name == name {
			return i
		}
	}
	return -1
}

func valueEquals(col arrow.Array, i int, val string) bool {
	switch c := col.(type) {
	case *array.Int32:
		n, err := strconv.ParseInt(val, 10, 32)
		return err == nil && int32(n) == c.Value(i)
	case *array.Int64:
		n, err := strconv.ParseInt(val, 10, 64)
		return err == nil && n == c.Value(i)
	case *array.Float32:
		f, err := strconv.ParseFloat(val, 32)
		return err == nil && float32(f) == c.Value(i)
	case *array.Float64:
		f, err := strconv.ParseFloat(val, 64)
		return err == nil && f == c.Value(i)
	case *array.String:
		return c.Value(i) == val
	case *array.Boolean:
		b, err := strconv.ParseBool(val)
		return err == nil && b == c.Value(i)
	default:
		return false
	}
}

func appendScalar(b array.Builder, col arrow.Array, i int) {
	if col.IsNull(i) {
		b.AppendNull()
		return
	}
	switch c := col.(type) {
	case *array.Int32:
		b.(*array.Int32Builder).Append(c.Value(i))
	case *array.Int64:
		b.(*array.Int64Builder).Append(c.Value(i))
	case *array.Float32:
		b.(*array.Float32Builder).Append(c.Value(i))
	case *array.Float64:
		b.(*array.Float64Builder).Append(c.Value(i))
	case *array.String:
		b.(*array.StringBuilder).Append(c.Value(i))
	case *array.Boolean:
		b.(*array.BooleanBuilder).Append(c.Value(i))
	default:
		b.AppendNull()
	}
}
