package engine

import "github.com/oriys/lancebridge/internal/vendorstore"

// Tag discriminates the kind of Command flowing through the dispatcher.
type Tag int

const (
	TagConnect Tag = iota
	TagDisconnect
	TagDropDatabase
	TagCreateEmptyTable
	TagListTableNames
	TagOpenTable
	TagDropTable
	TagCloseTable
	TagRenameTable
	TagAddRecordBatch
	TagMergeInsert
	TagDeleteRows
	TagUpdateRows
	TagCreateScalarIndex
	TagCreateFullTextIndex
	TagCreateIndex
	TagCountRows
	TagOptimizeTable
	TagQuery
	TagVectorQuery
	TagExplainQuery
	TagExplainVectorQuery
	TagListIndices
	TagGetIndexStats
	TagQuit
)

func (t Tag) String() string {
	names := [...]string{
		"Connect", "Disconnect", "DropDatabase", "CreateEmptyTable",
		"ListTableNames", "OpenTable", "DropTable", "CloseTable",
		"RenameTable", "AddRecordBatch", "MergeInsert", "DeleteRows",
		"UpdateRows", "CreateScalarIndex", "CreateFullTextIndex",
		"CreateIndex", "CountRows", "OptimizeTable", "Query",
		"VectorQuery", "ExplainQuery", "ExplainVectorQuery",
		"ListIndices", "GetIndexStats", "Quit",
	}
	if int(t) < 0 || int(t) >= len(names) {
		return "Unknown"
	}
	return names[t]
}

// ReplyFunc is the per-command reply sink. It is invoked at most once: a
// non-negative code signals success (the code itself may carry a result,
// e.g. a handle value or row count), a negative code is always paired
// with a non-empty reason.
type ReplyFunc func(code int64, reason string)

// Command is a single dispatched unit of work: a tag, its parameters, a
// reply sink, and a completion channel that unblocks the FFI caller once
// every output-side callback for this command has fired.
type Command struct {
	ID       string
	Tag      Tag
	Reply    ReplyFunc
	Done     chan struct{}
	TraceID  string

	// Success and ErrorReason are set by Finish and read back by the
	// dispatcher for metrics/audit logging; handlers never set these
	// directly.
	Success     bool
	ErrorReason string

	// Parameters. Only the fields relevant to Tag are populated; the
	// dispatcher does not validate cross-field consistency beyond what
	// each handler checks itself.
	URI               string
	StorageOptions    map[string]string
	ConnHandle        ConnectionHandle
	TableHandle       TableHandle
	TableName         string
	NewTableName      string
	SchemaBytes       []byte
	BatchBytes        []byte
	IgnoreMissing     bool
	WriteMode         vendorstore.WriteMode
	MergeConfig       vendorstore.MergeInsertConfig
	Predicate         string
	UpdateColumns     []vendorstore.ColumnExpr
	IndexColumn       string
	IndexColumns      []string
	IndexKind         vendorstore.IndexKind
	Tokenizer         string
	VectorIndexConfig vendorstore.VectorIndexConfig
	OptimizeOptions   vendorstore.OptimizeOptions
	Query             vendorstore.QuerySpec

	// Callbacks. Streaming/progress callbacks are always invoked from
	// the blocking callback pool, never from the dispatcher goroutine.
	NameCallback     func(name string) bool
	SchemaCallback   func(schemaIPC []byte)
	BatchCallback    func(batchIPC []byte) bool
	ExplainCallback  func(plan string)
	ProgressCallback func(column string, affected int64)
	PruneCallback    func(stats vendorstore.PruneStats)
	CompactCallback  func(stats vendorstore.CompactStats)
	IndexListCallback func(info vendorstore.IndexInfo) bool
	IndexStatsCallback func(stats vendorstore.IndexStats)
}

// Finish invokes the reply callback (if set) then closes the completion
// channel. It is the single place a handler should use to end a command,
// guaranteeing the "exactly one reply, always a completion" contract.
func (c *Command) Finish(code int64, reason string) {
	c.Success = code >= 0
	c.ErrorReason = reason
	if c.Reply != nil {
		c.Reply(code, reason)
	}
	close(c.Done)
}

// Ok finishes the command successfully with the given result code.
func (c *Command) Ok(code int64) {
	c.Finish(code, "")
}

// Err finishes the command with a transport/lookup/argument/vendor error.
func (c *Command) Err(reason string) {
	c.Finish(-1, reason)
}
