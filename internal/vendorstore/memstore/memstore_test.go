package memstore

import (
	"context"
	"io"
	"testing"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/oriys/lancebridge/internal/vendorstore"
)

func schemaIDScore() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int32},
		{Name: "score", Type: arrow.PrimitiveTypes.Float32},
	}, nil)
}

func recordIDScore(t *testing.T, schema *arrow.Schema, ids []int32, scores []float32) arrow.Record {
	t.Helper()
	b := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer b.Release()
	b.Field(0).(*array.Int32Builder).AppendValues(ids, nil)
	b.Field(1).(*array.Float32Builder).AppendValues(scores, nil)
	return b.NewRecord()
}

func openTable(t *testing.T) (vendorstore.Connection, vendorstore.Table) {
	t.Helper()
	store := New()
	conn, err := store.Open(context.Background(), "mem://predicate_test", nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	table, err := conn.CreateTable(context.Background(), "t", schemaIDScore())
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	return conn, table
}

func drainAll(t *testing.T, it vendorstore.RecordIterator) int64 {
	t.Helper()
	defer it.Close()
	var n int64
	for {
		rec, err := it.Next(context.Background())
		if err == io.EOF {
			return n
		}
		if err != nil {
			t.Fatalf("iterate: %v", err)
		}
		n += rec.NumRows()
		rec.Release()
	}
}

func TestQueryEqualityPredicateFiltersRows(t *testing.T) {
	_, table := openTable(t)
	rec := recordIDScore(t, schemaIDScore(), []int32{1, 2, 3}, []float32{1.5, 2.5, 3.5})
	defer rec.Release()
	if err := table.AddRecords(context.Background(), []arrow.Record{rec}, vendorstore.WriteAppend); err != nil {
		t.Fatalf("add records: %v", err)
	}

	n, err := table.CountRows(context.Background(), "id = 2")
	if err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if n != 1 {
		t.Fatalf("count rows: got %d, want 1", n)
	}

	it, err := table.Query(context.Background(), vendorstore.QuerySpec{Filter: "id = 2"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	// Query itself performs no filtering (filter application happens in
	// the vendor's planner, which the in-memory store does not model for
	// Query/VectorQuery); CountRows and DeleteRows are the predicate
	// entry points this reference store actually implements.
	if got := drainAll(t, it); got != 3 {
		t.Fatalf("query rows: got %d, want 3", got)
	}
}

func TestCountRowsRejectsUnsupportedPredicateShape(t *testing.T) {
	_, table := openTable(t)
	if _, err := table.CountRows(context.Background(), "id > 1"); err == nil {
		t.Fatal("expected error for non-equality predicate")
	}
}

func TestDeleteRowsEqualityPredicateRemovesMatches(t *testing.T) {
	_, table := openTable(t)
	rec := recordIDScore(t, schemaIDScore(), []int32{1, 2, 3}, []float32{1.5, 2.5, 3.5})
	defer rec.Release()
	if err := table.AddRecords(context.Background(), []arrow.Record{rec}, vendorstore.WriteAppend); err != nil {
		t.Fatalf("add records: %v", err)
	}

	if err := table.DeleteRows(context.Background(), "id = 2"); err != nil {
		t.Fatalf("delete rows: %v", err)
	}

	n, err := table.CountRows(context.Background(), "")
	if err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if n != 2 {
		t.Fatalf("count rows after delete: got %d, want 2", n)
	}
}

func TestVectorQueryFallsBackToFullScan(t *testing.T) {
	_, table := openTable(t)
	rec := recordIDScore(t, schemaIDScore(), []int32{1, 2, 3, 4, 5}, []float32{1, 2, 3, 4, 5})
	defer rec.Release()
	if err := table.AddRecords(context.Background(), []arrow.Record{rec}, vendorstore.WriteAppend); err != nil {
		t.Fatalf("add records: %v", err)
	}

	it, err := table.VectorQuery(context.Background(), vendorstore.QuerySpec{Limit: 3, MaxBatchLength: 2})
	if err != nil {
		t.Fatalf("vector query: %v", err)
	}
	if got := drainAll(t, it); got != 3 {
		t.Fatalf("vector query rows: got %d, want 3 (limit applied)", got)
	}
}

func TestCreateScalarIndexRecordsColumnsForListIndices(t *testing.T) {
	_, table := openTable(t)
	if err := table.CreateScalarIndex(context.Background(), "id", vendorstore.IndexBTree); err != nil {
		t.Fatalf("create scalar index: %v", err)
	}
	infos, err := table.ListIndices(context.Background())
	if err != nil {
		t.Fatalf("list indices: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("list indices: got %d entries, want 1", len(infos))
	}
	if got := infos[0].Columns; len(got) != 1 || got[0] != "id" {
		t.Fatalf("list indices columns: got %v, want [id]", got)
	}
}
