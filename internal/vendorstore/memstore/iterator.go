package memstore

import (
	"context"
	"io"

	"github.com/apache/arrow/go/v17/arrow"
)

// sliceIterator walks a fixed list of record batches, applying an
// optional row limit and splitting any batch larger than maxBatchLength
// into maxBatchLength-row slices (the trailing remainder is emitted as a
// smaller slice, per the slicing contract the engine requires).
type sliceIterator struct {
	pending        []arrow.Record
	maxBatchLength int
	remaining      int // rows left to emit under Limit; -1 means unlimited
	cur            arrow.Record
	curOffset      int64
}

func newSliceIterator(batches []arrow.Record, limit, maxBatchLength int) *sliceIterator {
	remaining := -1
	if limit > 0 {
		remaining = limit
	}
	return &sliceIterator{pending: batches, maxBatchLength: maxBatchLength, remaining: remaining}
}

func (it *sliceIterator) Next(_ context.Context) (arrow.Record, error) {
	for {
		if it.cur == nil {
			if len(it.pending) == 0 {
				return nil, io.EOF
			}
			it.cur = it.pending[0]
			it.pending = it.pending[1:]
			it.curOffset = 0
		}

		if it.remaining == 0 {
			it.cur.Release()
			it.cur = nil
			return nil, io.EOF
		}

		rowsLeftInBatch := it.cur.NumRows() - it.curOffset
		if rowsLeftInBatch <= 0 {
			it.cur.Release()
			it.cur = nil
			continue
		}

		sliceLen := rowsLeftInBatch
		if it.maxBatchLength > 0 && int64(it.maxBatchLength) < sliceLen {
			sliceLen = int64(it.maxBatchLength)
		}
		if it.remaining > 0 && int64(it.remaining) < sliceLen {
			sliceLen = int64(it.remaining)
		}

		slice := it.cur.NewSlice(it.curOffset, it.curOffset+sliceLen)
		it.curOffset += sliceLen
		if it.remaining > 0 {
			it.remaining -= int(sliceLen)
		}
		if it.curOffset >= it.cur.NumRows() {
			it.cur.Release()
			it.cur = nil
		}
		return slice, nil
	}
}

func (it *sliceIterator) Close() {
	if it.cur != nil {
		it.cur.Release()
		it.cur = nil
	}
	for _, r := range it.pending {
		r.Release()
	}
	it.pending = nil
}
