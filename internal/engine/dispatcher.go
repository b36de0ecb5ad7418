package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/oriys/lancebridge/internal/cache"
	"github.com/oriys/lancebridge/internal/callbackpool"
	"github.com/oriys/lancebridge/internal/logging"
	"github.com/oriys/lancebridge/internal/metrics"
	"github.com/oriys/lancebridge/internal/observability"
	"github.com/oriys/lancebridge/internal/planquery"
	"github.com/oriys/lancebridge/internal/vendorstore"
)

// Dispatcher owns the single bounded command channel and the two actor
// registries, and spawns one goroutine per command so a slow handler
// never blocks the next command from being dequeued.
type Dispatcher struct {
	queue        chan *Command
	conns        *ConnectionRegistry
	tables       *TableRegistry
	callback     *callbackpool.Pool
	metrics      *metrics.Metrics
	explainCache *planquery.Cache

	state chan State // single-slot state mailbox; read via currentState
	ready chan struct{}
}

// Config configures a Dispatcher.
type Config struct {
	QueueCapacity   int
	CallbackWorkers int
}

// New constructs a Dispatcher. The caller must call Run on its own
// goroutine (ordinarily the dedicated OS thread lifecycle.Setup spawns)
// before submitting commands.
func New(opener vendorstore.Opener, cfg Config, m *metrics.Metrics) *Dispatcher {
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 100
	}
	if cfg.CallbackWorkers <= 0 {
		cfg.CallbackWorkers = 16
	}
	d := &Dispatcher{
		queue:        make(chan *Command, cfg.QueueCapacity),
		conns:        NewConnectionRegistry(opener),
		tables:       NewTableRegistry(),
		callback:     callbackpool.New(cfg.CallbackWorkers),
		metrics:      m,
		explainCache: planquery.New(cache.NewInMemoryCache()),
		state:        make(chan State, 1),
		ready:        make(chan struct{}),
	}
	d.state <- NotStarted
	return d
}

// Ready closes once the dispatcher has reached the Running state with
// both registries started and its command sender usable.
func (d *Dispatcher) Ready() <-chan struct{} {
	return d.ready
}

// QueueDepth reports the number of commands currently buffered,
// exported for the queue_depth gauge.
func (d *Dispatcher) QueueDepth() int {
	return len(d.queue)
}

// Submit enqueues a command, blocking if the queue is at capacity. It
// returns once the command has been accepted onto the queue, not once it
// has completed; callers wait on cmd.Done for completion.
func (d *Dispatcher) Submit(cmd *Command) {
	d.queue <- cmd
}

// Run is the dispatcher's event loop. It exits once a Quit command has
// drained both registries.
func (d *Dispatcher) Run() {
	go d.conns.Run()
	go d.tables.Run()

	d.setState(Running)
	close(d.ready)
	logging.Op().Info("dispatcher started")

	for cmd := range d.queue {
		if cmd.Tag == TagQuit {
			d.setState(Quitting)
			d.conns.Quit()
			d.tables.Quit()
			cmd.Finish(0, "")
			d.setState(Stopped)
			logging.Op().Info("dispatcher stopped")
			return
		}
		go d.handle(cmd)
	}
}

func (d *Dispatcher) setState(s State) {
	select {
	case <-d.state:
	default:
	}
	d.state <- s
}

// State returns the dispatcher's current lifecycle state.
func (d *Dispatcher) State() State {
	s := <-d.state
	d.state <- s
	return s
}

// handle dispatches one command to its handler, recovering from any
// panic so a single bad handler can never take down the dispatcher loop.
func (d *Dispatcher) handle(cmd *Command) {
	start := time.Now()
	ctx, span := observability.StartSpan(context.Background(), "command."+cmd.Tag.String(),
		observability.AttrCommandID.String(cmd.ID),
		observability.AttrCommandTag.String(cmd.Tag.String()),
		observability.AttrConnHandle.Int64(int64(cmd.ConnHandle)),
		observability.AttrTableHandle.Int64(int64(cmd.TableHandle)),
	)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			logging.Op().Error("handler panic", "tag", cmd.Tag.String(), "command_id", cmd.ID, "panic", r)
			observability.SetSpanError(span, fmt.Errorf("panic: %v", r))
			select {
			case <-cmd.Done:
			default:
				cmd.Err(fmt.Sprintf("internal error: %v", r))
			}
		}
		dur := time.Since(start)
		if d.metrics != nil {
			d.metrics.ObserveCommand(cmd.Tag.String(), dur, cmd.Success)
		}
		if cmd.Success {
			observability.SetSpanOK(span)
		} else if cmd.ErrorReason != "" {
			observability.SetSpanError(span, fmt.Errorf("%s", cmd.ErrorReason))
		}
		logging.DefaultCommandLogger().Log(&logging.CommandLog{
			CommandID:   cmd.ID,
			TraceID:     cmd.TraceID,
			Tag:         cmd.Tag.String(),
			ConnHandle:  int64(cmd.ConnHandle),
			TableHandle: int64(cmd.TableHandle),
			DurationMs:  dur.Milliseconds(),
			Success:     cmd.Success,
			Error:       cmd.ErrorReason,
		})
	}()

	dispatchTag(d, ctx, cmd)
}
