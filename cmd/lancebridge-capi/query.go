package main

/*
#include "bridge.h"
*/
import "C"

import (
	"math"
	"unsafe"

	"github.com/oriys/lancebridge/internal/engine"
	"github.com/oriys/lancebridge/internal/vendorstore"
)

func decodeVectorInput(kind C.int, data *C.uint8_t, length C.size_t) *vendorstore.VectorQueryInput {
	if kind == 0 {
		return nil
	}
	raw := goBytes(data, length)
	switch vendorstore.VectorInputKind(kind) {
	case vendorstore.VectorInputF16:
		out := make([]uint16, len(raw)/2)
		for i := range out {
			out[i] = uint16(raw[2*i]) | uint16(raw[2*i+1])<<8
		}
		return &vendorstore.VectorQueryInput{Kind: vendorstore.VectorInputF16, F16: out}
	case vendorstore.VectorInputF32:
		out := make([]float32, len(raw)/4)
		for i := range out {
			bits := uint32(raw[4*i]) | uint32(raw[4*i+1])<<8 | uint32(raw[4*i+2])<<16 | uint32(raw[4*i+3])<<24
			out[i] = math.Float32frombits(bits)
		}
		return &vendorstore.VectorQueryInput{Kind: vendorstore.VectorInputF32, F32: out}
	case vendorstore.VectorInputF64:
		out := make([]float64, len(raw)/8)
		for i := range out {
			var bits uint64
			for b := 0; b < 8; b++ {
				bits |= uint64(raw[8*i+b]) << (8 * b)
			}
			out[i] = math.Float64frombits(bits)
		}
		return &vendorstore.VectorQueryInput{Kind: vendorstore.VectorInputF64, F64: out}
	default:
		return &vendorstore.VectorQueryInput{Kind: vendorstore.VectorInputIPCBlob, IPCBlob: raw}
	}
}

// queryParams bundles the flat C parameters every query/explain entry
// point shares.
type queryParams struct {
	limit            C.int
	filter           *C.char
	selectColumns    **C.char
	nSelectColumns   C.int
	withRowID        C.int
	fullTextQuery    *C.char
	vectorData       *C.uint8_t
	vectorLen        C.size_t
	vectorKind       C.int
	metric           C.int
	nProbes          C.int
	refineFactor     C.int
	hasDistanceRange C.int
	distanceRangeLo  C.double
	distanceRangeHi  C.double
	maxBatchLength   C.int
}

func (p queryParams) toSpec() vendorstore.QuerySpec {
	return vendorstore.QuerySpec{
		Limit:            int(p.limit),
		Filter:           goString(p.filter),
		SelectColumns:    parseStrings(p.selectColumns, p.nSelectColumns),
		WithRowID:        p.withRowID != 0,
		FullTextQuery:    goString(p.fullTextQuery),
		Vector:           decodeVectorInput(p.vectorKind, p.vectorData, p.vectorLen),
		Metric:           vendorstore.MetricKind(p.metric),
		NProbes:          int(p.nProbes),
		RefineFactor:     int(p.refineFactor),
		HasDistanceRange: p.hasDistanceRange != 0,
		DistanceRangeLo:  float64(p.distanceRangeLo),
		DistanceRangeHi:  float64(p.distanceRangeHi),
		MaxBatchLength:   int(p.maxBatchLength),
	}
}

//export lancebridge_query
func lancebridge_query(
	connHandle, tableHandle C.int64_t,
	limit C.int, filter *C.char, selectColumns **C.char, nSelectColumns C.int, withRowID C.int,
	maxBatchLength C.int,
	batchCb C.lb_batch_cb,
	reply C.lb_reply_fn, userData unsafe.Pointer,
) {
	spec := queryParams{
		limit: limit, filter: filter, selectColumns: selectColumns, nSelectColumns: nSelectColumns,
		withRowID: withRowID, maxBatchLength: maxBatchLength,
	}.toSpec()
	runQuery(connHandle, tableHandle, spec, batchCb, reply, userData, false)
}

//export lancebridge_vector_query
func lancebridge_vector_query(
	connHandle, tableHandle C.int64_t,
	vectorData *C.uint8_t, vectorLen C.size_t, vectorKind C.int,
	metric C.int, nProbes C.int, refineFactor C.int,
	hasDistanceRange C.int, distanceRangeLo, distanceRangeHi C.double,
	limit C.int, filter *C.char, maxBatchLength C.int,
	batchCb C.lb_batch_cb,
	reply C.lb_reply_fn, userData unsafe.Pointer,
) {
	spec := queryParams{
		limit: limit, filter: filter, maxBatchLength: maxBatchLength,
		vectorData: vectorData, vectorLen: vectorLen, vectorKind: vectorKind,
		metric: metric, nProbes: nProbes, refineFactor: refineFactor,
		hasDistanceRange: hasDistanceRange, distanceRangeLo: distanceRangeLo, distanceRangeHi: distanceRangeHi,
	}.toSpec()
	runQuery(connHandle, tableHandle, spec, batchCb, reply, userData, true)
}

func runQuery(connHandle, tableHandle C.int64_t, spec vendorstore.QuerySpec, batchCb C.lb_batch_cb, reply C.lb_reply_fn, userData unsafe.Pointer, vector bool) {
	tag := engine.TagQuery
	if vector {
		tag = engine.TagVectorQuery
	}
	cmd := &engine.Command{
		Tag:         tag,
		ConnHandle:  engine.ConnectionHandle(connHandle),
		TableHandle: engine.TableHandle(tableHandle),
		Query:       spec,
		BatchCallback: func(batchIPC []byte) bool {
			if len(batchIPC) == 0 {
				return C.lb_call_batch(batchCb, nil, 0, userData) != 0
			}
			return C.lb_call_batch(batchCb, (*C.uint8_t)(unsafe.Pointer(&batchIPC[0])), C.size_t(len(batchIPC)), userData) != 0
		},
	}
	submitAndWait(cmd, reply, userData)
}

//export lancebridge_explain_query
func lancebridge_explain_query(connHandle, tableHandle C.int64_t, limit C.int, filter *C.char, explainCb C.lb_explain_cb, reply C.lb_reply_fn, userData unsafe.Pointer) {
	spec := queryParams{limit: limit, filter: filter}.toSpec()
	runExplain(connHandle, tableHandle, spec, explainCb, reply, userData, false)
}

//export lancebridge_explain_vector_query
func lancebridge_explain_vector_query(
	connHandle, tableHandle C.int64_t,
	vectorData *C.uint8_t, vectorLen C.size_t, vectorKind C.int,
	metric, nProbes, refineFactor C.int,
	explainCb C.lb_explain_cb, reply C.lb_reply_fn, userData unsafe.Pointer,
) {
	spec := queryParams{
		vectorData: vectorData, vectorLen: vectorLen, vectorKind: vectorKind,
		metric: metric, nProbes: nProbes, refineFactor: refineFactor,
	}.toSpec()
	runExplain(connHandle, tableHandle, spec, explainCb, reply, userData, true)
}

func runExplain(connHandle, tableHandle C.int64_t, spec vendorstore.QuerySpec, explainCb C.lb_explain_cb, reply C.lb_reply_fn, userData unsafe.Pointer, vector bool) {
	tag := engine.TagExplainQuery
	if vector {
		tag = engine.TagExplainVectorQuery
	}
	cmd := &engine.Command{
		Tag:         tag,
		ConnHandle:  engine.ConnectionHandle(connHandle),
		TableHandle: engine.TableHandle(tableHandle),
		Query:       spec,
		ExplainCallback: func(plan string) {
			cs := C.CString(plan)
			defer C.free(unsafe.Pointer(cs))
			C.lb_call_explain(explainCb, cs, userData)
		},
	}
	submitAndWait(cmd, reply, userData)
}
