package engine

import (
	"github.com/oriys/lancebridge/internal/vendorstore"
)

type tableKey struct {
	conn  ConnectionHandle
	table TableHandle
}

type nameKey struct {
	conn ConnectionHandle
	name string
}

type tableOpKind int

const (
	tableOpAdd tableOpKind = iota
	tableOpGetByName
	tableOpGet
	tableOpDrop
	tableOpRelease
	tableOpReleaseConnection
	tableOpQuit
)

type tableRequest struct {
	kind       tableOpKind
	connHandle ConnectionHandle
	tblHandle  TableHandle
	name       string
	table      vendorstore.Table
	result     chan<- tableResult
}

type tableResult struct {
	handle TableHandle
	table  vendorstore.Table
	found  bool
	err    error
}

// TableRegistry is the single-writer owner of every open Table, keyed by
// the composite (ConnectionHandle, TableHandle) so a handle obtained
// under one connection can never resolve against another.
type TableRegistry struct {
	inbox    chan tableRequest
	byHandle map[tableKey]vendorstore.Table
	byName   map[nameKey][]TableHandle
	nextID   int64
}

// NewTableRegistry constructs a registry. Run must be started on its own
// goroutine before any request is sent.
func NewTableRegistry() *TableRegistry {
	return &TableRegistry{
		inbox:    make(chan tableRequest, 16),
		byHandle: make(map[tableKey]vendorstore.Table),
		byName:   make(map[nameKey][]TableHandle),
	}
}

// Run is the actor's receive loop.
func (r *TableRegistry) Run() {
	for req := range r.inbox {
		switch req.kind {
		case tableOpAdd:
			r.nextID++
			h := TableHandle(r.nextID)
			key := tableKey{conn: req.connHandle, table: h}
			r.byHandle[key] = req.table
			nk := nameKey{conn: req.connHandle, name: req.name}
			r.byName[nk] = append(r.byName[nk], h)
			req.result <- tableResult{handle: h}

		case tableOpGetByName:
			nk := nameKey{conn: req.connHandle, name: req.name}
			handles := r.byName[nk]
			if len(handles) > 0 {
				h := handles[len(handles)-1]
				key := tableKey{conn: req.connHandle, table: h}
				if t, ok := r.byHandle[key]; ok {
					req.result <- tableResult{handle: h, table: t, found: true}
					continue
				}
			}
			req.result <- tableResult{found: false}

		case tableOpGet:
			key := tableKey{conn: req.connHandle, table: req.tblHandle}
			t, ok := r.byHandle[key]
			req.result <- tableResult{table: t, found: ok}

		case tableOpDrop:
			nk := nameKey{conn: req.connHandle, name: req.name}
			for _, h := range r.byName[nk] {
				delete(r.byHandle, tableKey{conn: req.connHandle, table: h})
			}
			delete(r.byName, nk)
			req.result <- tableResult{}

		case tableOpRelease:
			key := tableKey{conn: req.connHandle, table: req.tblHandle}
			delete(r.byHandle, key)
			for nk, handles := range r.byName {
				if nk.conn != req.connHandle {
					continue
				}
				for i, h := range handles {
					if h == req.tblHandle {
						r.byName[nk] = append(handles[:i], handles[i+1:]...)
						break
					}
				}
			}
			req.result <- tableResult{}

		case tableOpReleaseConnection:
			for key := range r.byHandle {
				if key.conn == req.connHandle {
					delete(r.byHandle, key)
				}
			}
			for nk := range r.byName {
				if nk.conn == req.connHandle {
					delete(r.byName, nk)
				}
			}
			req.result <- tableResult{}

		case tableOpQuit:
			r.byHandle = make(map[tableKey]vendorstore.Table)
			r.byName = make(map[nameKey][]TableHandle)
			close(req.result)
			return
		}
	}
}

// AddTable registers a newly opened/created table and returns its handle.
func (r *TableRegistry) AddTable(connHandle ConnectionHandle, name string, t vendorstore.Table) TableHandle {
	result := make(chan tableResult, 1)
	r.inbox <- tableRequest{kind: tableOpAdd, connHandle: connHandle, name: name, table: t, result: result}
	return (<-result).handle
}

// GetTableByName looks up the most recently opened table of that name
// under a connection, if cached.
func (r *TableRegistry) GetTableByName(connHandle ConnectionHandle, name string) (TableHandle, vendorstore.Table, bool) {
	result := make(chan tableResult, 1)
	r.inbox <- tableRequest{kind: tableOpGetByName, connHandle: connHandle, name: name, result: result}
	res := <-result
	return res.handle, res.table, res.found
}

// GetTable looks up a table by its composite key.
func (r *TableRegistry) GetTable(connHandle ConnectionHandle, tblHandle TableHandle) (vendorstore.Table, bool) {
	result := make(chan tableResult, 1)
	r.inbox <- tableRequest{kind: tableOpGet, connHandle: connHandle, tblHandle: tblHandle, result: result}
	res := <-result
	return res.table, res.found
}

// DropTableCache removes every cached entry referring to name under
// connHandle, ahead of the caller asking the connection to drop it.
func (r *TableRegistry) DropTableCache(connHandle ConnectionHandle, name string) {
	result := make(chan tableResult, 1)
	r.inbox <- tableRequest{kind: tableOpDrop, connHandle: connHandle, name: name, result: result}
	<-result
}

// ReleaseTable removes a single entry, silently no-op if absent.
func (r *TableRegistry) ReleaseTable(connHandle ConnectionHandle, tblHandle TableHandle) {
	result := make(chan tableResult, 1)
	r.inbox <- tableRequest{kind: tableOpRelease, connHandle: connHandle, tblHandle: tblHandle, result: result}
	<-result
}

// ReleaseConnection removes every table entry belonging to connHandle,
// cascading a disconnect into every table it owned.
func (r *TableRegistry) ReleaseConnection(connHandle ConnectionHandle) {
	result := make(chan tableResult, 1)
	r.inbox <- tableRequest{kind: tableOpReleaseConnection, connHandle: connHandle, result: result}
	<-result
}

// Quit stops the actor loop.
func (r *TableRegistry) Quit() {
	result := make(chan tableResult)
	r.inbox <- tableRequest{kind: tableOpQuit, result: result}
	<-result
}
