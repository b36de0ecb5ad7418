package engine

import (
	"context"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/oriys/lancebridge/internal/logging"
	"github.com/oriys/lancebridge/internal/vendorstore"
)

type connOpKind int

const (
	connOpNew connOpKind = iota
	connOpDisconnect
	connOpGet
	connOpQuit
)

type connRequest struct {
	kind   connOpKind
	uri    string
	opts   map[string]string
	handle ConnectionHandle
	ctx    context.Context
	result chan<- connResult
}

type connResult struct {
	handle ConnectionHandle
	conn   vendorstore.Connection
	found  bool
	err    error
}

// ConnectionRegistry is the single-writer owner of every live Connection,
// served over one inbox channel.
type ConnectionRegistry struct {
	opener  vendorstore.Opener
	inbox   chan connRequest
	entries map[ConnectionHandle]vendorstore.Connection
	nextID  int64
}

// NewConnectionRegistry constructs a registry. Run must be started on its
// own goroutine before any request is sent.
func NewConnectionRegistry(opener vendorstore.Opener) *ConnectionRegistry {
	return &ConnectionRegistry{
		opener:  opener,
		inbox:   make(chan connRequest, 16),
		entries: make(map[ConnectionHandle]vendorstore.Connection),
	}
}

// Run is the actor's receive loop. It returns after handling a connOpQuit
// request, which closes every live connection; the inbox itself is never
// closed.
func (r *ConnectionRegistry) Run() {
	for req := range r.inbox {
		switch req.kind {
		case connOpNew:
			opts, err := resolveS3Credentials(req.ctx, req.uri, req.opts)
			if err != nil {
				req.result <- connResult{err: err}
				continue
			}
			conn, err := r.opener.Open(req.ctx, req.uri, opts)
			if err != nil {
				req.result <- connResult{err: err}
				continue
			}
			r.nextID++
			h := ConnectionHandle(r.nextID)
			r.entries[h] = conn
			req.result <- connResult{handle: h}

		case connOpDisconnect:
			conn, ok := r.entries[req.handle]
			if !ok {
				req.result <- connResult{err: fmt.Errorf("connection not found")}
				continue
			}
			delete(r.entries, req.handle)
			if err := conn.Close(req.ctx); err != nil {
				logging.Op().Warn("vendor connection close failed", "handle", req.handle, "error", err)
			}
			req.result <- connResult{}

		case connOpGet:
			conn, ok := r.entries[req.handle]
			req.result <- connResult{conn: conn, found: ok}

		case connOpQuit:
			for h, conn := range r.entries {
				if err := conn.Close(context.Background()); err != nil {
					logging.Op().Warn("vendor connection close failed during quit", "handle", h, "error", err)
				}
			}
			r.entries = make(map[ConnectionHandle]vendorstore.Connection)
			close(req.result)
			return
		}
	}
}

// resolveS3Credentials fills in access_key_id/secret_access_key/
// session_token storage options for an s3:// URI the way a real
// columnar-store client resolves credentials for cloud-backed datasets:
// an explicit (access_key_id, secret_access_key) pair in opts is wrapped
// in a static provider and validated through the same config-loading
// path, otherwise the default AWS credential chain (env vars, shared
// config, instance/container role) is consulted. Non-S3 URIs pass
// through unchanged.
func resolveS3Credentials(ctx context.Context, uri string, opts map[string]string) (map[string]string, error) {
	if !strings.HasPrefix(uri, "s3://") {
		return opts, nil
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts["access_key_id"] != "" && opts["secret_access_key"] != "" {
		provider := credentials.NewStaticCredentialsProvider(opts["access_key_id"], opts["secret_access_key"], opts["session_token"])
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(provider))
	}
	if opts["region"] != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts["region"]))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config for %s: %w", uri, err)
	}
	creds, err := cfg.Credentials.Retrieve(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve AWS credentials for %s: %w", uri, err)
	}

	resolved := make(map[string]string, len(opts)+3)
	for k, v := range opts {
		resolved[k] = v
	}
	resolved["access_key_id"] = creds.AccessKeyID
	resolved["secret_access_key"] = creds.SecretAccessKey
	if creds.SessionToken != "" {
		resolved["session_token"] = creds.SessionToken
	}
	if cfg.Region != "" {
		resolved["region"] = cfg.Region
	}
	return resolved, nil
}

// NewConnection opens a connection and returns its handle.
func (r *ConnectionRegistry) NewConnection(ctx context.Context, uri string, opts map[string]string) (ConnectionHandle, error) {
	result := make(chan connResult, 1)
	r.inbox <- connRequest{kind: connOpNew, uri: uri, opts: opts, ctx: ctx, result: result}
	res := <-result
	return res.handle, res.err
}

// Disconnect closes and removes a connection.
func (r *ConnectionRegistry) Disconnect(ctx context.Context, handle ConnectionHandle) error {
	result := make(chan connResult, 1)
	r.inbox <- connRequest{kind: connOpDisconnect, handle: handle, ctx: ctx, result: result}
	res := <-result
	return res.err
}

// GetConnection returns the live connection for a handle, if any.
func (r *ConnectionRegistry) GetConnection(handle ConnectionHandle) (vendorstore.Connection, bool) {
	result := make(chan connResult, 1)
	r.inbox <- connRequest{kind: connOpGet, handle: handle, result: result}
	res := <-result
	return res.conn, res.found
}

// Quit stops the actor loop, closing every remaining connection first.
func (r *ConnectionRegistry) Quit() {
	result := make(chan connResult)
	r.inbox <- connRequest{kind: connOpQuit, result: result}
	<-result
}
