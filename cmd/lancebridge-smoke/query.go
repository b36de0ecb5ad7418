package main

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/spf13/cobra"

	"github.com/oriys/lancebridge/internal/engine"
	"github.com/oriys/lancebridge/internal/logging"
	"github.com/oriys/lancebridge/internal/vendorstore"
)

func queryCmd() *cobra.Command {
	var uri, table, filter string
	var limit int

	cmd := &cobra.Command{
		Use:   "query <table>",
		Short: "Open a table and run a scalar query against it, printing matching row counts per batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table = args[0]
			logging.SetLevelFromString(logLevel)

			lc, d, err := startEngine()
			if err != nil {
				return err
			}
			defer shutdownEngine(lc)

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			connH, err := submitConnect(ctx, d, uri)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer submitDisconnect(ctx, d, connH)

			tableH, err := submitOpenTable(ctx, d, connH, table)
			if err != nil {
				return fmt.Errorf("open_table %s: %w", table, err)
			}

			total := 0
			cmdQuery := &engine.Command{
				Tag: engine.TagQuery, ConnHandle: engine.ConnectionHandle(connH), TableHandle: engine.TableHandle(tableH),
				Query: vendorstore.QuerySpec{Limit: limit, Filter: filter},
				BatchCallback: func(batchIPC []byte) bool {
					n, err := countRowsInBatch(batchIPC)
					if err != nil {
						logging.Op().Warn("decode batch", "error", err)
						return true
					}
					total += n
					fmt.Printf("batch: %d rows\n", n)
					return true
				},
			}
			if _, err := submitAndWait(ctx, d, cmdQuery); err != nil {
				return fmt.Errorf("query: %w", err)
			}
			fmt.Printf("total: %d rows\n", total)
			return nil
		},
	}

	cmd.Flags().StringVar(&uri, "uri", "mem://smoke", "Database URI to connect to")
	cmd.Flags().StringVar(&filter, "filter", "", "Scalar filter predicate, e.g. \"id = 1\"")
	cmd.Flags().IntVar(&limit, "limit", 0, "Row limit, 0 for unbounded")
	return cmd
}

func submitOpenTable(ctx context.Context, d *engine.Dispatcher, connH int64, name string) (int64, error) {
	return submitAndWait(ctx, d, &engine.Command{
		Tag: engine.TagOpenTable, ConnHandle: engine.ConnectionHandle(connH), TableName: name,
	})
}

func countRowsInBatch(batchIPC []byte) (int, error) {
	r, err := ipc.NewFileReader(bytes.NewReader(batchIPC), ipc.WithAllocator(memory.DefaultAllocator))
	if err != nil {
		return 0, err
	}
	defer r.Close()
	total := 0
	for {
		rec, err := r.Read()
		if err != nil {
			break
		}
		total += int(rec.NumRows())
	}
	return total, nil
}
