package main

/*
#include "bridge.h"
*/
import "C"

import (
	"unsafe"

	"github.com/oriys/lancebridge/internal/engine"
	"github.com/oriys/lancebridge/internal/vendorstore"
)

func parseStrings(arr **C.char, n C.int) []string {
	if n <= 0 {
		return nil
	}
	slice := unsafe.Slice(arr, int(n))
	out := make([]string, int(n))
	for i := range out {
		out[i] = goString(slice[i])
	}
	return out
}

// cStringArray allocates a C const char* const* view of strs. The
// returned free func must be called once the callee is done with it.
func cStringArray(strs []string) (**C.char, C.int, func()) {
	if len(strs) == 0 {
		return nil, 0, func() {}
	}
	arr := make([]*C.char, len(strs))
	for i, s := range strs {
		arr[i] = C.CString(s)
	}
	free := func() {
		for _, cs := range arr {
			C.free(unsafe.Pointer(cs))
		}
	}
	return (**C.char)(unsafe.Pointer(&arr[0])), C.int(len(arr)), free
}

//export lancebridge_add_record_batch
func lancebridge_add_record_batch(connHandle, tableHandle C.int64_t, batch *C.uint8_t, batchLen C.size_t, overwrite C.int, reply C.lb_reply_fn, userData unsafe.Pointer) {
	mode := vendorstore.WriteAppend
	if overwrite != 0 {
		mode = vendorstore.WriteOverwrite
	}
	cmd := &engine.Command{
		Tag:         engine.TagAddRecordBatch,
		ConnHandle:  engine.ConnectionHandle(connHandle),
		TableHandle: engine.TableHandle(tableHandle),
		BatchBytes:  goBytes(batch, batchLen),
		WriteMode:   mode,
	}
	submitAndWait(cmd, reply, userData)
}

//export lancebridge_merge_insert_with_on
func lancebridge_merge_insert_with_on(
	connHandle, tableHandle C.int64_t,
	batch *C.uint8_t, batchLen C.size_t,
	onColumns **C.char, nOnColumns C.int,
	whenMatchedUpdate C.int, whenMatchedUpdatePredicate *C.char,
	whenNotMatchedInsert C.int,
	whenNotMatchedBySourceDelete C.int, whenNotMatchedBySourceDeletePredicate *C.char,
	reply C.lb_reply_fn, userData unsafe.Pointer,
) {
	cmd := &engine.Command{
		Tag:         engine.TagMergeInsert,
		ConnHandle:  engine.ConnectionHandle(connHandle),
		TableHandle: engine.TableHandle(tableHandle),
		BatchBytes:  goBytes(batch, batchLen),
		MergeConfig: vendorstore.MergeInsertConfig{
			On:                                     parseStrings(onColumns, nOnColumns),
			WhenMatchedUpdate:                      whenMatchedUpdate != 0,
			WhenMatchedUpdatePredicate:              goString(whenMatchedUpdatePredicate),
			WhenNotMatchedInsert:                    whenNotMatchedInsert != 0,
			WhenNotMatchedBySourceDelete:            whenNotMatchedBySourceDelete != 0,
			WhenNotMatchedBySourceDeletePredicate:   goString(whenNotMatchedBySourceDeletePredicate),
		},
	}
	submitAndWait(cmd, reply, userData)
}

//export lancebridge_delete_rows
func lancebridge_delete_rows(connHandle, tableHandle C.int64_t, predicate *C.char, reply C.lb_reply_fn, userData unsafe.Pointer) {
	cmd := &engine.Command{
		Tag:         engine.TagDeleteRows,
		ConnHandle:  engine.ConnectionHandle(connHandle),
		TableHandle: engine.TableHandle(tableHandle),
		Predicate:   goString(predicate),
	}
	submitAndWait(cmd, reply, userData)
}

//export lancebridge_update_rows
func lancebridge_update_rows(
	connHandle, tableHandle C.int64_t,
	columns **C.char, expressions **C.char, nColumns C.int,
	predicate *C.char,
	progressCb C.lb_progress_cb,
	reply C.lb_reply_fn, userData unsafe.Pointer,
) {
	cols := parseStrings(columns, nColumns)
	exprs := parseStrings(expressions, nColumns)
	updates := make([]vendorstore.ColumnExpr, len(cols))
	for i := range cols {
		updates[i] = vendorstore.ColumnExpr{Column: cols[i], Expression: exprs[i]}
	}
	cmd := &engine.Command{
		Tag:           engine.TagUpdateRows,
		ConnHandle:    engine.ConnectionHandle(connHandle),
		TableHandle:   engine.TableHandle(tableHandle),
		UpdateColumns: updates,
		Predicate:     goString(predicate),
		ProgressCallback: func(column string, affected int64) {
			cs := C.CString(column)
			defer C.free(unsafe.Pointer(cs))
			C.lb_call_progress(progressCb, cs, C.int64_t(affected), userData)
		},
	}
	submitAndWait(cmd, reply, userData)
}

//export lancebridge_count_rows
func lancebridge_count_rows(connHandle, tableHandle C.int64_t, predicate *C.char, reply C.lb_reply_fn, userData unsafe.Pointer) {
	cmd := &engine.Command{
		Tag:         engine.TagCountRows,
		ConnHandle:  engine.ConnectionHandle(connHandle),
		TableHandle: engine.TableHandle(tableHandle),
		Predicate:   goString(predicate),
	}
	submitAndWait(cmd, reply, userData)
}
