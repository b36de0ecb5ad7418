package main

/*
#include "bridge.h"
*/
import "C"

import (
	"context"
	"time"
	"unsafe"
)

//export lancebridge_setup
func lancebridge_setup(reply C.lb_reply_fn, userData unsafe.Pointer) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := lifecycle.Setup(ctx); err != nil {
		cError(reply, userData, "setup failed: "+err.Error())
		return
	}
	cOK(reply, userData, 0)
}

//export lancebridge_shutdown
func lancebridge_shutdown(reply C.lb_reply_fn, userData unsafe.Pointer) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if introSrv != nil {
		introSrv.Stop(ctx)
	}
	if err := lifecycle.Shutdown(ctx); err != nil {
		cError(reply, userData, "shutdown failed: "+err.Error())
		return
	}
	cOK(reply, userData, 0)
}
