package engine

import (
	"context"
	"fmt"

	"github.com/apache/arrow/go/v17/arrow"

	"github.com/oriys/lancebridge/internal/ipc"
)

func (d *Dispatcher) handleAddRecordBatch(ctx context.Context, cmd *Command) {
	t, ok := d.lookupTable(cmd)
	if !ok {
		return
	}
	batches, err := ipc.BytesToBatch(cmd.BatchBytes)
	if err != nil {
		cmd.Err(fmt.Sprintf("invalid batch IPC bytes: %v", err))
		return
	}
	defer releaseAll(batches)

	if err := t.AddRecords(ctx, batches, cmd.WriteMode); err != nil {
		d.metrics.ObserveVendorError("AddRecords")
		cmd.Err(err.Error())
		return
	}
	d.explainCache.Invalidate(int64(cmd.ConnHandle), int64(cmd.TableHandle))
	cmd.Ok(0)
}

func (d *Dispatcher) handleMergeInsert(ctx context.Context, cmd *Command) {
	t, ok := d.lookupTable(cmd)
	if !ok {
		return
	}
	batches, err := ipc.BytesToBatch(cmd.BatchBytes)
	if err != nil {
		cmd.Err(fmt.Sprintf("invalid batch IPC bytes: %v", err))
		return
	}
	defer releaseAll(batches)

	if err := t.MergeInsert(ctx, batches, cmd.MergeConfig); err != nil {
		d.metrics.ObserveVendorError("MergeInsert")
		cmd.Err(err.Error())
		return
	}
	d.explainCache.Invalidate(int64(cmd.ConnHandle), int64(cmd.TableHandle))
	cmd.Ok(0)
}

func (d *Dispatcher) handleDeleteRows(ctx context.Context, cmd *Command) {
	t, ok := d.lookupTable(cmd)
	if !ok {
		return
	}
	if err := t.DeleteRows(ctx, cmd.Predicate); err != nil {
		d.metrics.ObserveVendorError("DeleteRows")
		cmd.Err(err.Error())
		return
	}
	d.explainCache.Invalidate(int64(cmd.ConnHandle), int64(cmd.TableHandle))
	cmd.Ok(0)
}

func (d *Dispatcher) handleUpdateRows(ctx context.Context, cmd *Command) {
	t, ok := d.lookupTable(cmd)
	if !ok {
		return
	}
	err := t.Update(ctx, cmd.UpdateColumns, cmd.Predicate, func(column string, affected int64) {
		if cmd.ProgressCallback != nil {
			d.callback.Run(func() { cmd.ProgressCallback(column, affected) })
		}
	})
	if err != nil {
		d.metrics.ObserveVendorError("Update")
		cmd.Err(err.Error())
		return
	}
	d.explainCache.Invalidate(int64(cmd.ConnHandle), int64(cmd.TableHandle))
	cmd.Ok(0)
}

func (d *Dispatcher) handleCountRows(ctx context.Context, cmd *Command) {
	t, ok := d.lookupTable(cmd)
	if !ok {
		return
	}
	n, err := t.CountRows(ctx, cmd.Predicate)
	if err != nil {
		d.metrics.ObserveVendorError("CountRows")
		cmd.Err(err.Error())
		return
	}
	cmd.Ok(n)
}

func releaseAll(batches []arrow.Record) {
	for _, b := range batches {
		b.Release()
	}
}
