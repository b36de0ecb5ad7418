package main

/*
#include "bridge.h"
*/
import "C"

import (
	"unsafe"

	"github.com/oriys/lancebridge/internal/engine"
)

// parseOpts reads n flat (key, value) C string pairs into a Go map.
func parseOpts(keys **C.char, vals **C.char, n C.int) map[string]string {
	if n <= 0 {
		return nil
	}
	keySlice := unsafe.Slice(keys, int(n))
	valSlice := unsafe.Slice(vals, int(n))
	opts := make(map[string]string, int(n))
	for i := 0; i < int(n); i++ {
		opts[goString(keySlice[i])] = goString(valSlice[i])
	}
	return opts
}

//export lancebridge_connect
func lancebridge_connect(uri *C.char, optKeys **C.char, optVals **C.char, nOpts C.int, reply C.lb_reply_fn, userData unsafe.Pointer) {
	cmd := &engine.Command{
		Tag:            engine.TagConnect,
		URI:            goString(uri),
		StorageOptions: parseOpts(optKeys, optVals, nOpts),
	}
	submitAndWait(cmd, reply, userData)
}

//export lancebridge_disconnect
func lancebridge_disconnect(connHandle C.int64_t, reply C.lb_reply_fn, userData unsafe.Pointer) {
	cmd := &engine.Command{Tag: engine.TagDisconnect, ConnHandle: engine.ConnectionHandle(connHandle)}
	submitAndWait(cmd, reply, userData)
}

//export lancebridge_drop_database
func lancebridge_drop_database(connHandle C.int64_t, reply C.lb_reply_fn, userData unsafe.Pointer) {
	cmd := &engine.Command{Tag: engine.TagDropDatabase, ConnHandle: engine.ConnectionHandle(connHandle)}
	submitAndWait(cmd, reply, userData)
}

//export lancebridge_create_empty_table
func lancebridge_create_empty_table(connHandle C.int64_t, name *C.char, schema *C.uint8_t, schemaLen C.size_t, reply C.lb_reply_fn, userData unsafe.Pointer) {
	cmd := &engine.Command{
		Tag:         engine.TagCreateEmptyTable,
		ConnHandle:  engine.ConnectionHandle(connHandle),
		TableName:   goString(name),
		SchemaBytes: goBytes(schema, schemaLen),
	}
	submitAndWait(cmd, reply, userData)
}

//export lancebridge_list_table_names
func lancebridge_list_table_names(connHandle C.int64_t, cb C.lb_name_cb, reply C.lb_reply_fn, userData unsafe.Pointer) {
	cmd := &engine.Command{
		Tag:        engine.TagListTableNames,
		ConnHandle: engine.ConnectionHandle(connHandle),
		NameCallback: func(name string) bool {
			cs := C.CString(name)
			defer C.free(unsafe.Pointer(cs))
			return C.lb_call_name(cb, cs, userData) != 0
		},
	}
	submitAndWait(cmd, reply, userData)
}

//export lancebridge_open_table
func lancebridge_open_table(connHandle C.int64_t, name *C.char, schemaCb C.lb_schema_cb, reply C.lb_reply_fn, userData unsafe.Pointer) {
	cmd := &engine.Command{
		Tag:        engine.TagOpenTable,
		ConnHandle: engine.ConnectionHandle(connHandle),
		TableName:  goString(name),
		SchemaCallback: func(schemaIPC []byte) {
			if len(schemaIPC) == 0 {
				C.lb_call_schema(schemaCb, nil, 0, userData)
				return
			}
			C.lb_call_schema(schemaCb, (*C.uint8_t)(unsafe.Pointer(&schemaIPC[0])), C.size_t(len(schemaIPC)), userData)
		},
	}
	submitAndWait(cmd, reply, userData)
}

//export lancebridge_drop_table
func lancebridge_drop_table(connHandle C.int64_t, name *C.char, ignoreMissing C.int, reply C.lb_reply_fn, userData unsafe.Pointer) {
	cmd := &engine.Command{
		Tag:           engine.TagDropTable,
		ConnHandle:    engine.ConnectionHandle(connHandle),
		TableName:     goString(name),
		IgnoreMissing: ignoreMissing != 0,
	}
	submitAndWait(cmd, reply, userData)
}

//export lancebridge_close_table
func lancebridge_close_table(connHandle C.int64_t, tableHandle C.int64_t, reply C.lb_reply_fn, userData unsafe.Pointer) {
	cmd := &engine.Command{
		Tag:         engine.TagCloseTable,
		ConnHandle:  engine.ConnectionHandle(connHandle),
		TableHandle: engine.TableHandle(tableHandle),
	}
	submitAndWait(cmd, reply, userData)
}

//export lancebridge_rename_table
func lancebridge_rename_table(connHandle C.int64_t, oldName *C.char, newName *C.char, reply C.lb_reply_fn, userData unsafe.Pointer) {
	cmd := &engine.Command{
		Tag:          engine.TagRenameTable,
		ConnHandle:   engine.ConnectionHandle(connHandle),
		TableName:    goString(oldName),
		NewTableName: goString(newName),
	}
	submitAndWait(cmd, reply, userData)
}
