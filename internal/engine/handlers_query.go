package engine

import (
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow/go/v17/arrow"

	"github.com/oriys/lancebridge/internal/ipc"
	"github.com/oriys/lancebridge/internal/logging"
	"github.com/oriys/lancebridge/internal/vendorstore"
)

// handleQuery serves both Query and VectorQuery: look up the table,
// then stream record batches (sliced to MaxBatchLength when set) through
// the host's batch callback until it returns false or the iterator is
// exhausted.
func (d *Dispatcher) handleQuery(ctx context.Context, cmd *Command, vector bool) {
	t, ok := d.lookupTable(cmd)
	if !ok {
		return
	}

	var it vendorstore.RecordIterator
	var err error
	if vector {
		it, err = t.VectorQuery(ctx, cmd.Query)
	} else {
		it, err = t.Query(ctx, cmd.Query)
	}
	if err != nil {
		d.metrics.ObserveVendorError("Query")
		cmd.Err(err.Error())
		return
	}
	defer it.Close()

	tag := cmd.Tag.String()
	maxLen := cmd.Query.MaxBatchLength

	for {
		rec, err := it.Next(ctx)
		if err == io.EOF {
			cmd.Ok(0)
			return
		}
		if err != nil {
			// Partial stream: some batches may already have reached the
			// callback; the host must treat this reply as "not all data
			// delivered".
			d.metrics.ObserveVendorError("Query")
			cmd.Err(err.Error())
			return
		}

		cont, emitErr := d.emitBatchSliced(cmd, tag, rec, maxLen)
		rec.Release()
		if emitErr != nil {
			cmd.Err(emitErr.Error())
			return
		}
		if !cont {
			cmd.Ok(0)
			return
		}
	}
}

// emitBatchSliced splits rec into maxLen-row slices, emitting a smaller
// trailing slice rather than dropping the remainder, and delivers each
// through cmd's batch callback on the blocking callback pool, stopping
// at the first false return.
func (d *Dispatcher) emitBatchSliced(cmd *Command, tag string, rec arrow.Record, maxLen int) (bool, error) {
	if cmd.BatchCallback == nil {
		return true, nil
	}
	if maxLen <= 0 || int64(maxLen) >= rec.NumRows() {
		return d.emitOne(cmd, tag, rec)
	}

	var offset int64
	total := rec.NumRows()
	for offset < total {
		end := offset + int64(maxLen)
		if end > total {
			end = total
		}
		slice := rec.NewSlice(offset, end)
		cont, err := d.emitOne(cmd, tag, slice)
		slice.Release()
		offset = end
		if err != nil || !cont {
			return cont, err
		}
	}
	return true, nil
}

func (d *Dispatcher) emitOne(cmd *Command, tag string, rec arrow.Record) (bool, error) {
	buf, err := ipc.BatchToBytes(rec, rec.Schema())
	if err != nil {
		return false, fmt.Errorf("encode batch: %w", err)
	}
	var cont bool
	d.callback.Run(func() { cont = cmd.BatchCallback(buf) })
	d.metrics.ObserveBatchEmitted(tag)
	return cont, nil
}

func (d *Dispatcher) handleExplain(ctx context.Context, cmd *Command, vector bool) {
	t, ok := d.lookupTable(cmd)
	if !ok {
		return
	}

	connH, tableH := int64(cmd.ConnHandle), int64(cmd.TableHandle)
	plan, cached := d.explainCache.Get(ctx, connH, tableH, vector, cmd.Query)
	if !cached {
		var err error
		plan, err = t.ExplainQuery(ctx, cmd.Query, vector)
		if err != nil {
			d.metrics.ObserveVendorError("ExplainQuery")
			cmd.Err(err.Error())
			return
		}
		d.explainCache.Put(ctx, connH, tableH, vector, cmd.Query, plan)
	}

	if cmd.ExplainCallback != nil {
		d.callback.Run(func() { cmd.ExplainCallback(plan) })
	} else {
		logging.Op().Debug("explain requested with no callback", "table", t.Name())
	}
	cmd.Ok(0)
}
