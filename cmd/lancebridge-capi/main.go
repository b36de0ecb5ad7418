// Command lancebridge-capi builds as a C shared/archive library (via
// `go build -buildmode=c-shared` or `-buildmode=c-archive`) exposing the
// bridge engine to a foreign host process through a synchronous C ABI:
// every exported function enqueues one Command onto the dispatcher and
// returns after its reply callback has fired.
//
// No real vendor client is vendored into this module's dependency set,
// so the exported surface is wired to the in-memory reference store;
// swapping in a real columnar-store client means replacing the Opener
// passed to engine.NewLifecycle in this file, nothing else.
package main

/*
#include "bridge.h"
*/
import "C"

import (
	"context"
	"os"
	"time"
	"unsafe"

	"github.com/oriys/lancebridge/internal/config"
	"github.com/oriys/lancebridge/internal/engine"
	"github.com/oriys/lancebridge/internal/introspection"
	"github.com/oriys/lancebridge/internal/logging"
	"github.com/oriys/lancebridge/internal/metrics"
	"github.com/oriys/lancebridge/internal/observability"
	"github.com/oriys/lancebridge/internal/vendorstore/memstore"
)

var (
	cfg        = config.DefaultConfig()
	lifecycle  *engine.Lifecycle
	metricsReg *metrics.Metrics
	introSrv   *introspection.Server
)

func init() {
	if path := os.Getenv("LANCEBRIDGE_CONFIG"); path != "" {
		if loaded, err := config.LoadFromFile(path); err == nil {
			cfg = loaded
		} else {
			logging.Op().Warn("config load failed, using defaults", "path", path, "error", err)
		}
	}
	config.LoadFromEnv(cfg)
	logging.SetLevelFromString(cfg.Logging.Level)

	metricsReg = metrics.New(cfg.Metrics.Namespace, func() float64 {
		if d := lifecycle.Dispatcher(); d != nil {
			return float64(d.QueueDepth())
		}
		return 0
	})

	lifecycle = engine.NewLifecycle(
		memstore.New(),
		engine.Config{QueueCapacity: cfg.Dispatch.QueueCapacity, CallbackWorkers: cfg.Dispatch.CallbackWorkers},
		cfg.Dispatch.SetupRetryAttempts,
		metricsReg,
	)

	if cfg.Tracing.Enabled {
		if err := observability.Init(context.Background(), observability.Config{
			Enabled:     true,
			Endpoint:    cfg.Tracing.Endpoint,
			ServiceName: cfg.Tracing.ServiceName,
			SampleRate:  cfg.Tracing.SampleRate,
		}); err != nil {
			logging.Op().Warn("tracing init failed", "error", err)
		}
	}

	if cfg.Introspection.Enabled {
		introSrv = introspection.New(lifecycle, metricsReg, cfg.Introspection.Addr)
		if err := introSrv.Start(); err != nil {
			logging.Op().Warn("introspection server failed to start", "error", err)
		}
	}
}

func main() {
	// Required by cgo for -buildmode=c-shared/c-archive; the real entry
	// points are the //export functions below, invoked by the host.
}

func goString(s *C.char) string {
	if s == nil {
		return ""
	}
	return C.GoString(s)
}

func goBytes(data *C.uint8_t, length C.size_t) []byte {
	if data == nil || length == 0 {
		return nil
	}
	return C.GoBytes(unsafe.Pointer(data), C.int(length))
}

func cError(reply C.lb_reply_fn, userData unsafe.Pointer, reason string) {
	cs := C.CString(reason)
	defer C.free(unsafe.Pointer(cs))
	C.lb_call_reply(reply, -1, cs, userData)
}

func cOK(reply C.lb_reply_fn, userData unsafe.Pointer, code int64) {
	C.lb_call_reply(reply, C.int64_t(code), nil, userData)
}

// submitAndWait enqueues cmd (wiring its Reply to the host's reply
// callback), starting the engine implicitly if needed, and blocks until
// the command completes.
func submitAndWait(cmd *engine.Command, reply C.lb_reply_fn, userData unsafe.Pointer) {
	cmd.Reply = func(code int64, reason string) {
		if code < 0 {
			cError(reply, userData, reason)
			return
		}
		cOK(reply, userData, code)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	d, err := lifecycle.EnsureRunning(ctx)
	if err != nil {
		cError(reply, userData, "engine not running: "+err.Error())
		return
	}
	cmd.Done = make(chan struct{})
	d.Submit(cmd)
	<-cmd.Done
}
