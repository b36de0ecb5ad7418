package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/spf13/cobra"

	"github.com/oriys/lancebridge/internal/config"
	"github.com/oriys/lancebridge/internal/engine"
	"github.com/oriys/lancebridge/internal/ipc"
	"github.com/oriys/lancebridge/internal/logging"
	"github.com/oriys/lancebridge/internal/metrics"
	"github.com/oriys/lancebridge/internal/vendorstore"
	"github.com/oriys/lancebridge/internal/vendorstore/memstore"
)

func runCmd() *cobra.Command {
	var uri string
	var rows int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Exercise the full connect/create/write/query/index/optimize/drop path",
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.SetLevelFromString(logLevel)

			lc, d, err := startEngine()
			if err != nil {
				return err
			}
			defer shutdownEngine(lc)

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			defer w.Flush()

			connH, err := submitConnect(ctx, d, uri)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			fmt.Fprintf(w, "connect\t%s\thandle=%d\n", uri, connH)

			schema := sampleSchema()
			tableH, err := submitCreateEmptyTable(ctx, d, connH, "smoke_table", schema)
			if err != nil {
				return fmt.Errorf("create_empty_table: %w", err)
			}
			fmt.Fprintf(w, "create_empty_table\tsmoke_table\thandle=%d\n", tableH)

			rec := sampleRecord(schema, rows)
			defer rec.Release()
			if err := submitAddRecordBatch(ctx, d, connH, tableH, rec); err != nil {
				return fmt.Errorf("add_record_batch: %w", err)
			}
			fmt.Fprintf(w, "add_record_batch\trows=%d\tok\n", rows)

			n, err := submitCountRows(ctx, d, connH, tableH, "")
			if err != nil {
				return fmt.Errorf("count_rows: %w", err)
			}
			fmt.Fprintf(w, "count_rows\t%d\n", n)

			batches, err := submitQuery(ctx, d, connH, tableH, vendorstore.QuerySpec{Limit: rows, MaxBatchLength: 2})
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}
			fmt.Fprintf(w, "query\tbatches=%d\n", batches)

			if err := submitCreateScalarIndex(ctx, d, connH, tableH, "id", vendorstore.IndexBTree); err != nil {
				return fmt.Errorf("create_scalar_index: %w", err)
			}
			fmt.Fprintf(w, "create_scalar_index\tcolumn=id\tok\n")

			plan, err := submitExplain(ctx, d, connH, tableH, vendorstore.QuerySpec{Limit: rows}, false)
			if err != nil {
				return fmt.Errorf("explain_query: %w", err)
			}
			fmt.Fprintf(w, "explain_query\t%s\n", plan)

			if err := submitOptimizeTable(ctx, d, connH, tableH); err != nil {
				return fmt.Errorf("optimize_table: %w", err)
			}
			fmt.Fprintf(w, "optimize_table\tok\n")

			if err := submitDropTable(ctx, d, connH, "smoke_table", false); err != nil {
				return fmt.Errorf("drop_table: %w", err)
			}
			fmt.Fprintf(w, "drop_table\tsmoke_table\tok\n")

			if err := submitDisconnect(ctx, d, connH); err != nil {
				return fmt.Errorf("disconnect: %w", err)
			}
			fmt.Fprintf(w, "disconnect\tok\n")

			return nil
		},
	}

	cmd.Flags().StringVar(&uri, "uri", "mem://smoke", "Database URI to connect to (memstore ignores the scheme)")
	cmd.Flags().IntVar(&rows, "rows", 5, "Number of sample rows to write")
	return cmd
}

func startEngine() (*engine.Lifecycle, *engine.Dispatcher, error) {
	cfg := config.DefaultConfig()
	cfg.Dispatch.QueueCapacity = queueCapacity
	cfg.Dispatch.CallbackWorkers = callbackWorkers

	m := metrics.New(cfg.Metrics.Namespace, func() float64 { return 0 })
	lc := engine.NewLifecycle(memstore.New(), engine.Config{
		QueueCapacity:   cfg.Dispatch.QueueCapacity,
		CallbackWorkers: cfg.Dispatch.CallbackWorkers,
	}, cfg.Dispatch.SetupRetryAttempts, m)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	d, err := lc.EnsureRunning(ctx)
	if err != nil {
		return nil, nil, err
	}
	return lc, d, nil
}

func shutdownEngine(lc *engine.Lifecycle) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = lc.Shutdown(ctx)
}

func sampleSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int32},
		{Name: "score", Type: arrow.PrimitiveTypes.Float32},
	}, nil)
}

func sampleRecord(schema *arrow.Schema, rows int) arrow.Record {
	b := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer b.Release()
	ids := make([]int32, rows)
	scores := make([]float32, rows)
	for i := 0; i < rows; i++ {
		ids[i] = int32(i)
		scores[i] = float32(i) * 1.5
	}
	b.Field(0).(*array.Int32Builder).AppendValues(ids, nil)
	b.Field(1).(*array.Float32Builder).AppendValues(scores, nil)
	return b.NewRecord()
}

// submitAndWait runs cmd on d, blocking until it completes, returning its
// result code and any error reason as a Go error.
func submitAndWait(ctx context.Context, d *engine.Dispatcher, cmd *engine.Command) (int64, error) {
	var code int64
	var reason string
	cmd.Reply = func(c int64, r string) { code, reason = c, r }
	cmd.Done = make(chan struct{})
	d.Submit(cmd)
	select {
	case <-cmd.Done:
	case <-ctx.Done():
		return -1, ctx.Err()
	}
	if code < 0 {
		return code, fmt.Errorf("%s", reason)
	}
	return code, nil
}

func submitConnect(ctx context.Context, d *engine.Dispatcher, uri string) (int64, error) {
	return submitAndWait(ctx, d, &engine.Command{Tag: engine.TagConnect, URI: uri})
}

func submitDisconnect(ctx context.Context, d *engine.Dispatcher, connH int64) error {
	_, err := submitAndWait(ctx, d, &engine.Command{Tag: engine.TagDisconnect, ConnHandle: engine.ConnectionHandle(connH)})
	return err
}

func submitCreateEmptyTable(ctx context.Context, d *engine.Dispatcher, connH int64, name string, schema *arrow.Schema) (int64, error) {
	buf, err := ipc.SchemaToBytes(schema)
	if err != nil {
		return 0, err
	}
	return submitAndWait(ctx, d, &engine.Command{
		Tag: engine.TagCreateEmptyTable, ConnHandle: engine.ConnectionHandle(connH),
		TableName: name, SchemaBytes: buf,
	})
}

func submitAddRecordBatch(ctx context.Context, d *engine.Dispatcher, connH, tableH int64, rec arrow.Record) error {
	buf, err := ipc.BatchToBytes(rec, rec.Schema())
	if err != nil {
		return err
	}
	_, err = submitAndWait(ctx, d, &engine.Command{
		Tag: engine.TagAddRecordBatch, ConnHandle: engine.ConnectionHandle(connH), TableHandle: engine.TableHandle(tableH),
		BatchBytes: buf, WriteMode: vendorstore.WriteAppend,
	})
	return err
}

func submitCountRows(ctx context.Context, d *engine.Dispatcher, connH, tableH int64, predicate string) (int64, error) {
	return submitAndWait(ctx, d, &engine.Command{
		Tag: engine.TagCountRows, ConnHandle: engine.ConnectionHandle(connH), TableHandle: engine.TableHandle(tableH),
		Predicate: predicate,
	})
}

func submitQuery(ctx context.Context, d *engine.Dispatcher, connH, tableH int64, spec vendorstore.QuerySpec) (int, error) {
	var batches int
	cmd := &engine.Command{
		Tag: engine.TagQuery, ConnHandle: engine.ConnectionHandle(connH), TableHandle: engine.TableHandle(tableH),
		Query: spec,
		BatchCallback: func(batchIPC []byte) bool {
			batches++
			return true
		},
	}
	_, err := submitAndWait(ctx, d, cmd)
	return batches, err
}

func submitCreateScalarIndex(ctx context.Context, d *engine.Dispatcher, connH, tableH int64, column string, kind vendorstore.IndexKind) error {
	_, err := submitAndWait(ctx, d, &engine.Command{
		Tag: engine.TagCreateScalarIndex, ConnHandle: engine.ConnectionHandle(connH), TableHandle: engine.TableHandle(tableH),
		IndexColumn: column, IndexKind: kind,
	})
	return err
}

func submitExplain(ctx context.Context, d *engine.Dispatcher, connH, tableH int64, spec vendorstore.QuerySpec, vector bool) (string, error) {
	var plan string
	tag := engine.TagExplainQuery
	if vector {
		tag = engine.TagExplainVectorQuery
	}
	cmd := &engine.Command{
		Tag: tag, ConnHandle: engine.ConnectionHandle(connH), TableHandle: engine.TableHandle(tableH),
		Query:           spec,
		ExplainCallback: func(p string) { plan = p },
	}
	_, err := submitAndWait(ctx, d, cmd)
	return plan, err
}

func submitOptimizeTable(ctx context.Context, d *engine.Dispatcher, connH, tableH int64) error {
	_, err := submitAndWait(ctx, d, &engine.Command{
		Tag: engine.TagOptimizeTable, ConnHandle: engine.ConnectionHandle(connH), TableHandle: engine.TableHandle(tableH),
	})
	return err
}

func submitDropTable(ctx context.Context, d *engine.Dispatcher, connH int64, name string, ignoreMissing bool) error {
	_, err := submitAndWait(ctx, d, &engine.Command{
		Tag: engine.TagDropTable, ConnHandle: engine.ConnectionHandle(connH), TableName: name, IgnoreMissing: ignoreMissing,
	})
	return err
}
