package engine

import (
	"context"

	"github.com/oriys/lancebridge/internal/vendorstore"
)

func (d *Dispatcher) handleCreateScalarIndex(ctx context.Context, cmd *Command) {
	t, ok := d.lookupTable(cmd)
	if !ok {
		return
	}
	if err := t.CreateScalarIndex(ctx, cmd.IndexColumn, cmd.IndexKind); err != nil {
		d.metrics.ObserveVendorError("CreateScalarIndex")
		cmd.Err(err.Error())
		return
	}
	d.explainCache.Invalidate(int64(cmd.ConnHandle), int64(cmd.TableHandle))
	cmd.Ok(0)
}

func (d *Dispatcher) handleCreateFullTextIndex(ctx context.Context, cmd *Command) {
	t, ok := d.lookupTable(cmd)
	if !ok {
		return
	}
	tokenizer := cmd.Tokenizer
	if tokenizer == "" || tokenizer == "default" {
		tokenizer = "simple"
	}
	if err := t.CreateFullTextIndex(ctx, cmd.IndexColumns, tokenizer); err != nil {
		d.metrics.ObserveVendorError("CreateFullTextIndex")
		cmd.Err(err.Error())
		return
	}
	d.explainCache.Invalidate(int64(cmd.ConnHandle), int64(cmd.TableHandle))
	cmd.Ok(0)
}

func (d *Dispatcher) handleCreateIndex(ctx context.Context, cmd *Command) {
	t, ok := d.lookupTable(cmd)
	if !ok {
		return
	}
	if err := t.CreateIndex(ctx, cmd.IndexColumn, cmd.VectorIndexConfig); err != nil {
		d.metrics.ObserveVendorError("CreateIndex")
		cmd.Err(err.Error())
		return
	}
	d.explainCache.Invalidate(int64(cmd.ConnHandle), int64(cmd.TableHandle))
	cmd.Ok(0)
}

func (d *Dispatcher) handleOptimizeTable(ctx context.Context, cmd *Command) {
	t, ok := d.lookupTable(cmd)
	if !ok {
		return
	}
	onPrune := func(stats vendorstore.PruneStats) {
		if cmd.PruneCallback != nil {
			d.callback.Run(func() { cmd.PruneCallback(stats) })
		}
	}
	onCompact := func(stats vendorstore.CompactStats) {
		if cmd.CompactCallback != nil {
			d.callback.Run(func() { cmd.CompactCallback(stats) })
		}
	}
	if err := t.Optimize(ctx, cmd.OptimizeOptions, onPrune, onCompact); err != nil {
		d.metrics.ObserveVendorError("OptimizeTable")
		cmd.Err(err.Error())
		return
	}
	d.explainCache.Invalidate(int64(cmd.ConnHandle), int64(cmd.TableHandle))
	cmd.Ok(0)
}

func (d *Dispatcher) handleListIndices(ctx context.Context, cmd *Command) {
	t, ok := d.lookupTable(cmd)
	if !ok {
		return
	}
	infos, err := t.ListIndices(ctx)
	if err != nil {
		d.metrics.ObserveVendorError("ListIndices")
		cmd.Err(err.Error())
		return
	}
	for _, info := range infos {
		info := info
		var cont bool
		d.callback.Run(func() {
			if cmd.IndexListCallback != nil {
				cont = cmd.IndexListCallback(info)
			} else {
				cont = true
			}
		})
		if !cont {
			break
		}
	}
	cmd.Ok(int64(len(infos)))
}

func (d *Dispatcher) handleGetIndexStats(ctx context.Context, cmd *Command) {
	t, ok := d.lookupTable(cmd)
	if !ok {
		return
	}
	stats, err := t.GetIndexStats(ctx, cmd.TableName)
	if err != nil {
		d.metrics.ObserveVendorError("GetIndexStats")
		cmd.Err(err.Error())
		return
	}
	if cmd.IndexStatsCallback != nil {
		d.callback.Run(func() { cmd.IndexStatsCallback(stats) })
	}
	cmd.Ok(0)
}
