// Package ipc implements the engine's Arrow-IPC byte-buffer codec: whole
// files only, never the streaming variant, so the wire format stays
// stable across vendor-library versions.
package ipc

import (
	"bytes"
	"fmt"
	"io"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"
)

// SchemaToBytes encodes a schema, with no record batches, as an Arrow-IPC
// file.
func SchemaToBytes(schema *arrow.Schema) ([]byte, error) {
	var buf bytes.Buffer
	w, err := ipc.NewFileWriter(&buf, ipc.WithSchema(schema), ipc.WithAllocator(memory.DefaultAllocator))
	if err != nil {
		return nil, fmt.Errorf("create IPC file writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close IPC file writer: %w", err)
	}
	return buf.Bytes(), nil
}

// BytesToSchema parses the schema from an Arrow-IPC file buffer.
func BytesToSchema(buf []byte) (*arrow.Schema, error) {
	r, err := ipc.NewFileReader(bytes.NewReader(buf), ipc.WithAllocator(memory.DefaultAllocator))
	if err != nil {
		return nil, fmt.Errorf("open IPC file reader: %w", err)
	}
	defer r.Close()
	return r.Schema(), nil
}

// BatchToBytes encodes one record batch as an Arrow-IPC file written with
// schema, or with the record's own schema when schema is nil; the IPC
// writer rejects a batch whose schema differs from it.
func BatchToBytes(batch arrow.Record, schema *arrow.Schema) ([]byte, error) {
	if schema == nil {
		schema = batch.Schema()
	}
	var buf bytes.Buffer
	w, err := ipc.NewFileWriter(&buf, ipc.WithSchema(schema), ipc.WithAllocator(memory.DefaultAllocator))
	if err != nil {
		return nil, fmt.Errorf("create IPC file writer: %w", err)
	}
	if err := w.Write(batch); err != nil {
		w.Close()
		return nil, fmt.Errorf("write record batch: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close IPC file writer: %w", err)
	}
	return buf.Bytes(), nil
}

// BytesToBatch parses the ordered sequence of record batches from an
// Arrow-IPC file buffer. Each record is retained before it is returned;
// callers must Release every returned record.
func BytesToBatch(buf []byte) ([]arrow.Record, error) {
	r, err := ipc.NewFileReader(bytes.NewReader(buf), ipc.WithAllocator(memory.DefaultAllocator))
	if err != nil {
		return nil, fmt.Errorf("open IPC file reader: %w", err)
	}
	defer r.Close()

	var batches []arrow.Record
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return batches, fmt.Errorf("decode record batch %d: %w", len(batches), err)
		}
		rec.Retain()
		batches = append(batches, rec)
	}
	return batches, nil
}
