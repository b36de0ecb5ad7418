package engine

import (
	"context"
	"fmt"

	"github.com/oriys/lancebridge/internal/ipc"
	"github.com/oriys/lancebridge/internal/logging"
	"github.com/oriys/lancebridge/internal/vendorstore"
)

// dispatchTag routes one command to its handler. Every path here must
// end by calling cmd.Finish (directly or via cmd.Ok/cmd.Err) exactly
// once, on every branch.
func dispatchTag(d *Dispatcher, ctx context.Context, cmd *Command) {
	switch cmd.Tag {
	case TagConnect:
		d.handleConnect(ctx, cmd)
	case TagDisconnect:
		d.handleDisconnect(ctx, cmd)
	case TagDropDatabase:
		d.handleDropDatabase(ctx, cmd)
	case TagCreateEmptyTable:
		d.handleCreateEmptyTable(ctx, cmd)
	case TagListTableNames:
		d.handleListTableNames(ctx, cmd)
	case TagOpenTable:
		d.handleOpenTable(ctx, cmd)
	case TagDropTable:
		d.handleDropTable(ctx, cmd)
	case TagCloseTable:
		d.handleCloseTable(ctx, cmd)
	case TagRenameTable:
		d.handleRenameTable(ctx, cmd)
	case TagAddRecordBatch:
		d.handleAddRecordBatch(ctx, cmd)
	case TagMergeInsert:
		d.handleMergeInsert(ctx, cmd)
	case TagDeleteRows:
		d.handleDeleteRows(ctx, cmd)
	case TagUpdateRows:
		d.handleUpdateRows(ctx, cmd)
	case TagCountRows:
		d.handleCountRows(ctx, cmd)
	case TagCreateScalarIndex:
		d.handleCreateScalarIndex(ctx, cmd)
	case TagCreateFullTextIndex:
		d.handleCreateFullTextIndex(ctx, cmd)
	case TagCreateIndex:
		d.handleCreateIndex(ctx, cmd)
	case TagOptimizeTable:
		d.handleOptimizeTable(ctx, cmd)
	case TagQuery:
		d.handleQuery(ctx, cmd, false)
	case TagVectorQuery:
		d.handleQuery(ctx, cmd, true)
	case TagExplainQuery:
		d.handleExplain(ctx, cmd, false)
	case TagExplainVectorQuery:
		d.handleExplain(ctx, cmd, true)
	case TagListIndices:
		d.handleListIndices(ctx, cmd)
	case TagGetIndexStats:
		d.handleGetIndexStats(ctx, cmd)
	default:
		cmd.Err(fmt.Sprintf("unknown command tag %d", cmd.Tag))
	}
}

// lookupTable resolves (ConnHandle, TableHandle) to a live vendorstore
// Table, finishing cmd with "table not found" on miss. Returns ok=false
// when the caller should stop.
//
// Every resolution checks out the table's latest view first, so callers
// see committed writes made by other connections/processes. A checkout
// failure is logged but does not fail the lookup; the cached handle is
// still returned.
func (d *Dispatcher) lookupTable(cmd *Command) (vendorstore.Table, bool) {
	t, found := d.tables.GetTable(cmd.ConnHandle, cmd.TableHandle)
	if !found {
		cmd.Err("table not found")
		return nil, false
	}
	if err := t.CheckoutLatest(context.Background()); err != nil {
		logging.Op().Warn("checkout latest failed", "conn", cmd.ConnHandle, "table", cmd.TableHandle, "error", err)
	}
	return t, true
}

func (d *Dispatcher) handleConnect(ctx context.Context, cmd *Command) {
	h, err := d.conns.NewConnection(ctx, cmd.URI, cmd.StorageOptions)
	if err != nil {
		d.metrics.ObserveVendorError("Connect")
		cmd.Err(err.Error())
		return
	}
	d.metrics.SetLiveConnections(int(h))
	cmd.Ok(int64(h))
}

func (d *Dispatcher) handleDisconnect(ctx context.Context, cmd *Command) {
	if err := d.conns.Disconnect(ctx, cmd.ConnHandle); err != nil {
		cmd.Err("connection not found")
		return
	}
	// Release cascade: every table belonging to this connection becomes
	// unreachable.
	d.tables.ReleaseConnection(cmd.ConnHandle)
	cmd.Ok(0)
}

func (d *Dispatcher) handleDropDatabase(ctx context.Context, cmd *Command) {
	conn, found := d.conns.GetConnection(cmd.ConnHandle)
	if !found {
		cmd.Err("connection not found")
		return
	}
	if err := conn.DropDatabase(ctx); err != nil {
		d.metrics.ObserveVendorError("DropDatabase")
		cmd.Err(err.Error())
		return
	}
	d.tables.ReleaseConnection(cmd.ConnHandle)
	cmd.Ok(0)
}

func (d *Dispatcher) handleCreateEmptyTable(ctx context.Context, cmd *Command) {
	conn, found := d.conns.GetConnection(cmd.ConnHandle)
	if !found {
		cmd.Err("connection not found")
		return
	}
	schema, err := ipc.BytesToSchema(cmd.SchemaBytes)
	if err != nil {
		cmd.Err(fmt.Sprintf("invalid schema IPC bytes: %v", err))
		return
	}
	t, err := conn.CreateTable(ctx, cmd.TableName, schema)
	if err != nil {
		d.metrics.ObserveVendorError("CreateTable")
		cmd.Err(err.Error())
		return
	}
	h := d.tables.AddTable(cmd.ConnHandle, cmd.TableName, t)
	cmd.Ok(int64(h))
}

func (d *Dispatcher) handleListTableNames(ctx context.Context, cmd *Command) {
	conn, found := d.conns.GetConnection(cmd.ConnHandle)
	if !found {
		cmd.Err("connection not found")
		return
	}
	names, err := conn.TableNames(ctx)
	if err != nil {
		d.metrics.ObserveVendorError("TableNames")
		cmd.Err(err.Error())
		return
	}
	if cmd.NameCallback != nil {
		for _, name := range names {
			n := name
			var cont bool
			d.callback.Run(func() { cont = cmd.NameCallback(n) })
			if !cont {
				break
			}
		}
	}
	cmd.Ok(int64(len(names)))
}

func (d *Dispatcher) handleOpenTable(ctx context.Context, cmd *Command) {
	if h, t, found := d.tables.GetTableByName(cmd.ConnHandle, cmd.TableName); found {
		d.deliverSchema(ctx, cmd, t)
		cmd.Ok(int64(h))
		return
	}

	conn, found := d.conns.GetConnection(cmd.ConnHandle)
	if !found {
		cmd.Err("connection not found")
		return
	}
	t, err := conn.OpenTable(ctx, cmd.TableName)
	if err != nil {
		d.metrics.ObserveVendorError("OpenTable")
		cmd.Err(fmt.Sprintf("Error opening table: %v", err))
		return
	}
	h := d.tables.AddTable(cmd.ConnHandle, cmd.TableName, t)
	d.deliverSchema(ctx, cmd, t)
	cmd.Ok(int64(h))
}

func (d *Dispatcher) deliverSchema(ctx context.Context, cmd *Command, t vendorstore.Table) {
	if cmd.SchemaCallback == nil {
		return
	}
	schema, err := t.Schema(ctx)
	if err != nil {
		logging.Op().Warn("schema fetch failed", "table", t.Name(), "error", err)
		return
	}
	buf, err := ipc.SchemaToBytes(schema)
	if err != nil {
		logging.Op().Warn("schema encode failed", "table", t.Name(), "error", err)
		return
	}
	d.callback.Run(func() { cmd.SchemaCallback(buf) })
}

func (d *Dispatcher) handleDropTable(ctx context.Context, cmd *Command) {
	conn, found := d.conns.GetConnection(cmd.ConnHandle)
	if !found {
		cmd.Err("connection not found")
		return
	}
	d.tables.DropTableCache(cmd.ConnHandle, cmd.TableName)
	if err := conn.DropTable(ctx, cmd.TableName, cmd.IgnoreMissing); err != nil {
		d.metrics.ObserveVendorError("DropTable")
		cmd.Err(err.Error())
		return
	}
	cmd.Ok(0)
}

func (d *Dispatcher) handleCloseTable(_ context.Context, cmd *Command) {
	d.tables.ReleaseTable(cmd.ConnHandle, cmd.TableHandle)
	cmd.Ok(0)
}

func (d *Dispatcher) handleRenameTable(ctx context.Context, cmd *Command) {
	conn, found := d.conns.GetConnection(cmd.ConnHandle)
	if !found {
		cmd.Err("connection not found")
		return
	}
	if err := conn.RenameTable(ctx, cmd.TableName, cmd.NewTableName); err != nil {
		d.metrics.ObserveVendorError("RenameTable")
		cmd.Err(err.Error())
		return
	}
	d.tables.DropTableCache(cmd.ConnHandle, cmd.TableName)
	cmd.Ok(0)
}
