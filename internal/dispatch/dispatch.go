// Package dispatch runs the affective dispatcher: a single bounded work
// queue fed by ingress, M worker goroutines invoking the affective
// engine, and a bounded reply queue feeding the reply sender. Grounded
// on the teacher's voice_stream_system (a single inCh feeding workers,
// non-blocking sends into an outCh) and supervised with
// golang.org/x/sync/errgroup so a worker panic/exit surfaces instead of
// leaking silently.
package dispatch

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/xpanvictor/vadbridge/internal/affective"
	"github.com/xpanvictor/vadbridge/internal/metrics"
	"github.com/xpanvictor/vadbridge/internal/wire"
	"github.com/xpanvictor/vadbridge/pkg/Logger"
)

// Dispatcher owns the bounded sensor-packet queue, the worker pool, and
// the bounded reply queue.
type Dispatcher struct {
	in  chan wire.SensorPacket
	out chan affective.Result

	engine *affective.Engine
	m      *metrics.Metrics
	log    *Logger.Logger
}

// New constructs a Dispatcher with the given queue capacity.
func New(engine *affective.Engine, capacity int, m *metrics.Metrics, log *Logger.Logger) *Dispatcher {
	return &Dispatcher{
		in:     make(chan wire.SensorPacket, capacity),
		out:    make(chan affective.Result, capacity),
		engine: engine,
		m:      m,
		log:    log,
	}
}

// Results exposes the bounded reply queue for the reply sender to drain.
func (d *Dispatcher) Results() <-chan affective.Result { return d.out }

// Submit pushes a parsed sensor packet into the work queue with a
// non-blocking send. Returns false (and increments the drop counter)
// when the queue is full.
func (d *Dispatcher) Submit(pkt wire.SensorPacket) bool {
	select {
	case d.in <- pkt:
		return true
	default:
		d.m.RecordChannelDrop()
		return false
	}
}

// Run starts procThreads workers and blocks until ctx is cancelled or a
// worker returns an error. Workers exit when the input queue is closed
// or ctx is done.
func (d *Dispatcher) Run(ctx context.Context, procThreads int) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < procThreads; i++ {
		g.Go(func() error {
			d.worker(ctx)
			return nil
		})
	}
	<-ctx.Done()
	close(d.in)
	return g.Wait()
}

func (d *Dispatcher) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case pkt, ok := <-d.in:
			if !ok {
				return
			}
			result := d.engine.Process(pkt)
			d.m.RecordProcessed(result.Active)

			select {
			case d.out <- result:
			default:
				d.m.RecordChannelDrop()
				d.log.Warnw("reply queue full, dropping affective result", "sensor_id", pkt.SensorID)
			}
		}
	}
}
