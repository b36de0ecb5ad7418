// Package vendorstore defines the boundary between the bridge engine and
// the underlying columnar store: a Connection/Table interface pair the
// engine drives, and the value types its operations pass across that
// boundary. The store itself, its query planner, and its on-disk layout
// are external collaborators; this package only names the contract.
package vendorstore

import (
	"context"
	"errors"
	"time"

	"github.com/apache/arrow/go/v17/arrow"
)

// Sentinel lookup errors. Handlers translate these into the engine's
// "<entity> not found" reply text rather than propagating a Go error
// type across the FFI boundary.
var (
	ErrTableNotFound  = errors.New("table not found")
	ErrIndexNotFound  = errors.New("index not found")
	ErrColumnNotFound = errors.New("column not found")
)

// WriteMode selects append-or-replace semantics for AddRecords.
type WriteMode int

const (
	WriteAppend WriteMode = iota
	WriteOverwrite
)

// IndexKind enumerates the index families a table can build. Values are
// stable across versions because they cross the FFI boundary as a plain
// integer.
type IndexKind int

const (
	IndexBTree IndexKind = iota + 1
	IndexBitmap
	IndexLabelList
	IndexIVFPQ
	IndexFTS
)

// MetricKind enumerates vector distance metrics.
type MetricKind int

const (
	MetricL2 MetricKind = iota + 1
	MetricCosine
	MetricDot
)

// VectorInputKind discriminates the element type of a vector query's
// input, matching the wire discriminator byte on the FFI boundary.
type VectorInputKind byte

const (
	VectorInputF16    VectorInputKind = 1
	VectorInputF32    VectorInputKind = 2
	VectorInputF64    VectorInputKind = 3
	VectorInputIPCBlob VectorInputKind = 4
)

// VectorQueryInput is a tagged union over the four vector-input shapes a
// vector query may be given.
type VectorQueryInput struct {
	Kind VectorInputKind
	F16  []uint16
	F32  []float32
	F64  []float64
	// IPCBlob holds a single-batch, single-column Arrow IPC file buffer
	// when Kind == VectorInputIPCBlob.
	IPCBlob []byte
}

// ColumnExpr is one (column, SQL expression) pair of an UpdateRows call.
type ColumnExpr struct {
	Column     string
	Expression string
}

// MergeInsertConfig configures MergeInsert's match / no-match /
// no-match-by-source policies.
type MergeInsertConfig struct {
	On                 []string
	WhenMatchedUpdate  bool
	WhenMatchedUpdatePredicate string
	WhenNotMatchedInsert bool
	WhenNotMatchedBySourceDelete bool
	WhenNotMatchedBySourceDeletePredicate string
}

// VectorIndexConfig configures an IVF-PQ vector index.
type VectorIndexConfig struct {
	Metric      MetricKind
	Partitions  int
	SubVectors  int
}

// OptimizeOptions configures OptimizeTable. A zero value requests a full
// optimize (compaction + prune + index-compaction); setting
// HasPruneOlderThan (with PruneOlderThan) and/or DeleteUnverified requests
// the prune-then-compact-then-index-compact sequence instead.
type OptimizeOptions struct {
	PruneOlderThan   time.Duration
	HasPruneOlderThan bool
	DeleteUnverified bool
}

// PruneStats and CompactStats are reported through OptimizeTable's two
// progress callbacks.
type PruneStats struct {
	OldVersionsRemoved int64
	BytesReclaimed     int64
}

type CompactStats struct {
	FragmentsCompacted int64
	FragmentsRemoved   int64
}

// IndexInfo describes one index for ListIndices.
type IndexInfo struct {
	Name    string
	Kind    IndexKind
	Columns []string
}

// IndexStats describes one index for GetIndexStats.
type IndexStats struct {
	Kind           IndexKind
	Metric         MetricKind
	RowsIndexed    int64
	IndexCount     int64
	RowsNotIndexed int64
}

// QuerySpec describes one Query or VectorQuery invocation.
type QuerySpec struct {
	Limit            int
	Filter           string
	SelectColumns    []string
	WithRowID        bool
	FullTextQuery    string
	Vector           *VectorQueryInput
	Metric           MetricKind
	NProbes          int
	RefineFactor     int
	HasDistanceRange bool
	DistanceRangeLo  float64
	DistanceRangeHi  float64
	MaxBatchLength   int
}

// RecordIterator yields record batches one at a time. Next returns
// (nil, io.EOF) once exhausted. Close must be idempotent.
type RecordIterator interface {
	Next(ctx context.Context) (arrow.Record, error)
	Close()
}

// Connection is a bound database session opened from a URI. Its methods
// are called from dispatcher handler tasks, possibly concurrently across
// different tables; implementations must be safe for concurrent use.
type Connection interface {
	Close(ctx context.Context) error
	TableNames(ctx context.Context) ([]string, error)
	CreateTable(ctx context.Context, name string, schema *arrow.Schema) (Table, error)
	OpenTable(ctx context.Context, name string) (Table, error)
	DropTable(ctx context.Context, name string, ignoreMissing bool) error
	DropDatabase(ctx context.Context) error
	RenameTable(ctx context.Context, oldName, newName string) error
}

// Table is a handle to an open table on a Connection.
type Table interface {
	Name() string
	Schema(ctx context.Context) (*arrow.Schema, error)

	// CheckoutLatest refreshes the table's view so subsequent reads see
	// committed writes. A failure here is logged by the caller but does
	// not invalidate the Table value.
	CheckoutLatest(ctx context.Context) error

	AddRecords(ctx context.Context, batches []arrow.Record, mode WriteMode) error
	MergeInsert(ctx context.Context, batches []arrow.Record, cfg MergeInsertConfig) error
	DeleteRows(ctx context.Context, predicate string) error
	// Update applies each column expression in order, invoking progress
	// once per column with the number of rows it affected.
	Update(ctx context.Context, columns []ColumnExpr, predicate string, progress func(column string, affected int64)) error
	CountRows(ctx context.Context, predicate string) (int64, error)

	Query(ctx context.Context, q QuerySpec) (RecordIterator, error)
	VectorQuery(ctx context.Context, q QuerySpec) (RecordIterator, error)
	ExplainQuery(ctx context.Context, q QuerySpec, vector bool) (string, error)

	CreateScalarIndex(ctx context.Context, column string, kind IndexKind) error
	CreateFullTextIndex(ctx context.Context, columns []string, tokenizer string) error
	CreateIndex(ctx context.Context, column string, cfg VectorIndexConfig) error

	Optimize(ctx context.Context, opts OptimizeOptions, onPrune func(PruneStats), onCompact func(CompactStats)) error
	ListIndices(ctx context.Context) ([]IndexInfo, error)
	GetIndexStats(ctx context.Context, name string) (IndexStats, error)
}

// Opener opens a Connection for a URI plus flat key/value storage
// options, mirroring the vendor client's own connect entry point.
type Opener interface {
	Open(ctx context.Context, uri string, storageOptions map[string]string) (Connection, error)
}
