package engine

import (
	"context"
	"testing"
	"time"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/google/uuid"

	"github.com/oriys/lancebridge/internal/ipc"
	"github.com/oriys/lancebridge/internal/vendorstore"
	"github.com/oriys/lancebridge/internal/vendorstore/memstore"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	d := New(memstore.New(), Config{QueueCapacity: 16, CallbackWorkers: 4}, nil)
	go d.Run()
	select {
	case <-d.Ready():
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not become ready")
	}
	t.Cleanup(func() {
		done := make(chan struct{})
		d.Submit(&Command{ID: uuid.NewString(), Tag: TagQuit, Done: done})
		<-done
	})
	return d
}

func submit(t *testing.T, d *Dispatcher, cmd *Command) (int64, string) {
	t.Helper()
	var code int64
	var reason string
	done := make(chan struct{})
	cmd.ID = uuid.NewString()
	cmd.Done = done
	cmd.Reply = func(c int64, r string) { code = c; reason = r }
	d.Submit(cmd)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("command did not complete")
	}
	return code, reason
}

func connect(t *testing.T, d *Dispatcher, uri string) ConnectionHandle {
	t.Helper()
	code, reason := submit(t, d, &Command{Tag: TagConnect, URI: uri})
	if code < 0 {
		t.Fatalf("connect failed: %s", reason)
	}
	return ConnectionHandle(code)
}

func testSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int32},
	}, nil)
}

func schemaBytes(t *testing.T) []byte {
	t.Helper()
	buf, err := ipc.SchemaToBytes(testSchema())
	if err != nil {
		t.Fatalf("schema encode: %v", err)
	}
	return buf
}

func TestMonotoneConnectionHandles(t *testing.T) {
	d := newTestDispatcher(t)

	h1 := connect(t, d, "/tmp/db-a")
	h2 := connect(t, d, "/tmp/db-b")
	if h2 <= h1 {
		t.Fatalf("expected strictly increasing handles, got %d then %d", h1, h2)
	}

	submit(t, d, &Command{Tag: TagDisconnect, ConnHandle: h1})
	h3 := connect(t, d, "/tmp/db-c")
	if h3 <= h2 {
		t.Fatalf("expected handle after disconnect to keep increasing, got %d then %d", h2, h3)
	}
}

func TestCrossConnectionIsolation(t *testing.T) {
	d := newTestDispatcher(t)

	a := connect(t, d, "/tmp/iso-a")
	b := connect(t, d, "/tmp/iso-b")

	sb := schemaBytes(t)
	code, reason := submit(t, d, &Command{Tag: TagCreateEmptyTable, ConnHandle: a, TableName: "t", SchemaBytes: sb})
	if code < 0 {
		t.Fatalf("create table under A failed: %s", reason)
	}
	th := TableHandle(code)

	_, reason = submit(t, d, &Command{Tag: TagCountRows, ConnHandle: b, TableHandle: th})
	if reason != "table not found" {
		t.Fatalf("expected \"table not found\" using A's handle under B, got %q", reason)
	}
}

func TestReleaseCascadeOnDisconnect(t *testing.T) {
	d := newTestDispatcher(t)

	a := connect(t, d, "/tmp/cascade-a")
	sb := schemaBytes(t)
	code, _ := submit(t, d, &Command{Tag: TagCreateEmptyTable, ConnHandle: a, TableName: "t", SchemaBytes: sb})
	th := TableHandle(code)

	submit(t, d, &Command{Tag: TagDisconnect, ConnHandle: a})

	_, reason := submit(t, d, &Command{Tag: TagCountRows, ConnHandle: a, TableHandle: th})
	if reason != "table not found" {
		t.Fatalf("expected table not found after disconnect, got %q", reason)
	}
}

func TestDropTableIgnoreMissing(t *testing.T) {
	d := newTestDispatcher(t)

	a := connect(t, d, "/tmp/drop-a")
	sb := schemaBytes(t)
	submit(t, d, &Command{Tag: TagCreateEmptyTable, ConnHandle: a, TableName: "t", SchemaBytes: sb})

	code, _ := submit(t, d, &Command{Tag: TagDropTable, ConnHandle: a, TableName: "t"})
	if code < 0 {
		t.Fatalf("first drop should succeed")
	}
	code, _ = submit(t, d, &Command{Tag: TagDropTable, ConnHandle: a, TableName: "t", IgnoreMissing: true})
	if code < 0 {
		t.Fatalf("second drop with ignore_missing should succeed")
	}
}

func TestOpenMissingTableReportsError(t *testing.T) {
	d := newTestDispatcher(t)
	a := connect(t, d, "/tmp/missing-a")

	code, reason := submit(t, d, &Command{Tag: TagOpenTable, ConnHandle: a, TableName: "does-not-exist"})
	if code >= 0 {
		t.Fatalf("expected failure opening missing table")
	}
	if reason == "" {
		t.Fatalf("expected non-empty error reason")
	}
}

func TestExactlyOneReply(t *testing.T) {
	d := newTestDispatcher(t)
	var calls int
	done := make(chan struct{})
	d.Submit(&Command{
		ID:  uuid.NewString(),
		Tag: TagConnect,
		URI: "/tmp/reply-once",
		Reply: func(int64, string) {
			calls++
		},
		Done: done,
	})
	<-done
	if calls != 1 {
		t.Fatalf("expected exactly one reply, got %d", calls)
	}
}

func buildInt32Record(t *testing.T, n int) arrow.Record {
	t.Helper()
	schema := testSchema()
	b := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer b.Release()
	ids := make([]int32, n)
	for i := range ids {
		ids[i] = int32(i)
	}
	b.Field(0).(*array.Int32Builder).AppendValues(ids, nil)
	return b.NewRecord()
}

func TestStreamingCancellationStopsEarly(t *testing.T) {
	d := newTestDispatcher(t)
	a := connect(t, d, "/tmp/stream-a")
	sb := schemaBytes(t)
	code, _ := submit(t, d, &Command{Tag: TagCreateEmptyTable, ConnHandle: a, TableName: "t", SchemaBytes: sb})
	th := TableHandle(code)

	rec := buildInt32Record(t, 10)
	defer rec.Release()
	batchBuf, err := ipc.BatchToBytes(rec, testSchema())
	if err != nil {
		t.Fatalf("encode batch: %v", err)
	}
	code, reason := submit(t, d, &Command{Tag: TagAddRecordBatch, ConnHandle: a, TableHandle: th, BatchBytes: batchBuf})
	if code < 0 {
		t.Fatalf("add record batch failed: %s", reason)
	}

	var invocations int
	done := make(chan struct{})
	d.Submit(&Command{
		ID:          uuid.NewString(),
		Tag:         TagQuery,
		ConnHandle:  a,
		TableHandle: th,
		Query:       vendorstore.QuerySpec{MaxBatchLength: 1},
		BatchCallback: func([]byte) bool {
			invocations++
			return false
		},
		Done: done,
	})
	<-done
	if invocations != 1 {
		t.Fatalf("expected exactly 1 callback invocation after cancelling, got %d", invocations)
	}
}

func TestBatchSlicingEmitsTrailingRemainder(t *testing.T) {
	d := newTestDispatcher(t)
	a := connect(t, d, "/tmp/slice-a")
	sb := schemaBytes(t)
	code, _ := submit(t, d, &Command{Tag: TagCreateEmptyTable, ConnHandle: a, TableName: "t", SchemaBytes: sb})
	th := TableHandle(code)

	rec := buildInt32Record(t, 5)
	defer rec.Release()
	batchBuf, err := ipc.BatchToBytes(rec, testSchema())
	if err != nil {
		t.Fatalf("encode batch: %v", err)
	}
	submit(t, d, &Command{Tag: TagAddRecordBatch, ConnHandle: a, TableHandle: th, BatchBytes: batchBuf})

	var lengths []int64
	done := make(chan struct{})
	d.Submit(&Command{
		ID:          uuid.NewString(),
		Tag:         TagQuery,
		ConnHandle:  a,
		TableHandle: th,
		Query:       vendorstore.QuerySpec{MaxBatchLength: 2},
		BatchCallback: func(batchIPC []byte) bool {
			rec, err := ipc.BytesToBatch(batchIPC)
			if err != nil {
				t.Errorf("decode batch: %v", err)
				return false
			}
			for _, r := range rec {
				lengths = append(lengths, r.NumRows())
				r.Release()
			}
			return true
		},
		Done: done,
	})
	<-done
	if len(lengths) != 3 {
		t.Fatalf("expected 3 slices (2,2,1), got %v", lengths)
	}
	if lengths[len(lengths)-1] != 1 {
		t.Fatalf("expected trailing slice of length 1, got %d", lengths[len(lengths)-1])
	}
}

func TestImplicitStartIdempotence(t *testing.T) {
	l := NewLifecycle(memstore.New(), Config{QueueCapacity: 8, CallbackWorkers: 2}, 10, nil)
	defer l.Shutdown(context.Background())

	ctx := context.Background()
	if err := l.Setup(ctx); err != nil {
		t.Fatalf("first setup: %v", err)
	}
	if err := l.Setup(ctx); err != nil {
		t.Fatalf("second setup: %v", err)
	}
	if l.Instances() != 2 {
		t.Fatalf("expected instance count 2, got %d", l.Instances())
	}
	d1 := l.Dispatcher()
	if _, err := l.EnsureRunning(ctx); err != nil {
		t.Fatalf("ensure running: %v", err)
	}
	if l.Dispatcher() != d1 {
		t.Fatalf("expected the same dispatcher instance across repeated Setup calls")
	}
}
