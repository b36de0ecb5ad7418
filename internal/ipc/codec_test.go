package ipc

import (
	"testing"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
)

func testSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int32},
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
	}, nil)
}

func TestRoundTripSchema(t *testing.T) {
	schema := testSchema()

	buf, err := SchemaToBytes(schema)
	if err != nil {
		t.Fatalf("SchemaToBytes: %v", err)
	}

	got, err := BytesToSchema(buf)
	if err != nil {
		t.Fatalf("BytesToSchema: %v", err)
	}

	if !got.Equal(schema) {
		t.Fatalf("round-tripped schema mismatch:\nwant %v\ngot  %v", schema, got)
	}
}

func TestRoundTripBatch(t *testing.T) {
	schema := testSchema()
	pool := memory.NewGoAllocator()
	b := array.NewRecordBuilder(pool, schema)
	defer b.Release()

	b.Field(0).(*array.Int32Builder).AppendValues([]int32{1, 2, 3}, nil)
	b.Field(1).(*array.StringBuilder).AppendValues([]string{"a", "b", "c"}, []bool{true, true, false})

	rec := b.NewRecord()
	defer rec.Release()

	buf, err := BatchToBytes(rec, schema)
	if err != nil {
		t.Fatalf("BatchToBytes: %v", err)
	}

	batches, err := BytesToBatch(buf)
	if err != nil {
		t.Fatalf("BytesToBatch: %v", err)
	}
	defer func() {
		for _, r := range batches {
			r.Release()
		}
	}()

	if len(batches) != 1 {
		t.Fatalf("expected 1 batch, got %d", len(batches))
	}

	got := batches[0]
	if got.NumRows() != rec.NumRows() {
		t.Errorf("row count mismatch: want %d got %d", rec.NumRows(), got.NumRows())
	}
	if got.NumCols() != rec.NumCols() {
		t.Errorf("column count mismatch: want %d got %d", rec.NumCols(), got.NumCols())
	}
	for i := 0; i < int(rec.NumCols()); i++ {
		wantCol, gotCol := rec.Column(i), got.Column(i)
		if wantCol.DataType().ID() != gotCol.DataType().ID() {
			t.Errorf("column %d type mismatch: want %v got %v", i, wantCol.DataType(), gotCol.DataType())
		}
		if wantCol.NullN() != gotCol.NullN() {
			t.Errorf("column %d null count mismatch: want %d got %d", i, wantCol.NullN(), gotCol.NullN())
		}
	}
}

func TestBytesToSchemaRejectsGarbage(t *testing.T) {
	if _, err := BytesToSchema([]byte("not an arrow file")); err == nil {
		t.Fatal("expected an error decoding garbage bytes")
	}
}
