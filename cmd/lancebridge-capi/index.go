package main

/*
#include "bridge.h"
*/
import "C"

import (
	"time"
	"unsafe"

	"github.com/oriys/lancebridge/internal/engine"
	"github.com/oriys/lancebridge/internal/vendorstore"
)

//export lancebridge_create_scalar_index
func lancebridge_create_scalar_index(connHandle, tableHandle C.int64_t, column *C.char, kind C.int, reply C.lb_reply_fn, userData unsafe.Pointer) {
	cmd := &engine.Command{
		Tag:         engine.TagCreateScalarIndex,
		ConnHandle:  engine.ConnectionHandle(connHandle),
		TableHandle: engine.TableHandle(tableHandle),
		IndexColumn: goString(column),
		IndexKind:   vendorstore.IndexKind(kind),
	}
	submitAndWait(cmd, reply, userData)
}

//export lancebridge_create_full_text_index
func lancebridge_create_full_text_index(connHandle, tableHandle C.int64_t, columns **C.char, nColumns C.int, tokenizer *C.char, reply C.lb_reply_fn, userData unsafe.Pointer) {
	cmd := &engine.Command{
		Tag:          engine.TagCreateFullTextIndex,
		ConnHandle:   engine.ConnectionHandle(connHandle),
		TableHandle:  engine.TableHandle(tableHandle),
		IndexColumns: parseStrings(columns, nColumns),
		Tokenizer:    goString(tokenizer),
	}
	submitAndWait(cmd, reply, userData)
}

//export lancebridge_create_index
func lancebridge_create_index(connHandle, tableHandle C.int64_t, column *C.char, metric C.int, partitions, subVectors C.int, reply C.lb_reply_fn, userData unsafe.Pointer) {
	cmd := &engine.Command{
		Tag:         engine.TagCreateIndex,
		ConnHandle:  engine.ConnectionHandle(connHandle),
		TableHandle: engine.TableHandle(tableHandle),
		IndexColumn: goString(column),
		VectorIndexConfig: vendorstore.VectorIndexConfig{
			Metric:     vendorstore.MetricKind(metric),
			Partitions: int(partitions),
			SubVectors: int(subVectors),
		},
	}
	submitAndWait(cmd, reply, userData)
}

//export lancebridge_optimize_table
func lancebridge_optimize_table(
	connHandle, tableHandle C.int64_t,
	hasPruneOlderThan C.int, pruneOlderThanSeconds C.int64_t, deleteUnverified C.int,
	pruneCb C.lb_prune_cb, compactCb C.lb_compact_cb,
	reply C.lb_reply_fn, userData unsafe.Pointer,
) {
	cmd := &engine.Command{
		Tag:         engine.TagOptimizeTable,
		ConnHandle:  engine.ConnectionHandle(connHandle),
		TableHandle: engine.TableHandle(tableHandle),
		OptimizeOptions: vendorstore.OptimizeOptions{
			HasPruneOlderThan: hasPruneOlderThan != 0,
			PruneOlderThan:    time.Duration(pruneOlderThanSeconds) * time.Second,
			DeleteUnverified:  deleteUnverified != 0,
		},
		PruneCallback: func(stats vendorstore.PruneStats) {
			C.lb_call_prune(pruneCb, C.int64_t(stats.OldVersionsRemoved), C.int64_t(stats.BytesReclaimed), userData)
		},
		CompactCallback: func(stats vendorstore.CompactStats) {
			C.lb_call_compact(compactCb, C.int64_t(stats.FragmentsCompacted), C.int64_t(stats.FragmentsRemoved), userData)
		},
	}
	submitAndWait(cmd, reply, userData)
}

//export lancebridge_list_indices
func lancebridge_list_indices(connHandle, tableHandle C.int64_t, cb C.lb_index_list_cb, reply C.lb_reply_fn, userData unsafe.Pointer) {
	cmd := &engine.Command{
		Tag:         engine.TagListIndices,
		ConnHandle:  engine.ConnectionHandle(connHandle),
		TableHandle: engine.TableHandle(tableHandle),
		IndexListCallback: func(info vendorstore.IndexInfo) bool {
			cs := C.CString(info.Name)
			defer C.free(unsafe.Pointer(cs))
			columns, nColumns, freeColumns := cStringArray(info.Columns)
			defer freeColumns()
			return C.lb_call_index_list(cb, cs, C.int(info.Kind), columns, nColumns, userData) != 0
		},
	}
	submitAndWait(cmd, reply, userData)
}

//export lancebridge_get_index_stats
func lancebridge_get_index_stats(connHandle, tableHandle C.int64_t, indexName *C.char, cb C.lb_index_stats_cb, reply C.lb_reply_fn, userData unsafe.Pointer) {
	cmd := &engine.Command{
		Tag:         engine.TagGetIndexStats,
		ConnHandle:  engine.ConnectionHandle(connHandle),
		TableHandle: engine.TableHandle(tableHandle),
		TableName:   goString(indexName),
		IndexStatsCallback: func(stats vendorstore.IndexStats) {
			C.lb_call_index_stats(cb, C.int(stats.Kind), C.int(stats.Metric),
				C.int64_t(stats.RowsIndexed), C.int64_t(stats.IndexCount), C.int64_t(stats.RowsNotIndexed), userData)
		},
	}
	submitAndWait(cmd, reply, userData)
}
