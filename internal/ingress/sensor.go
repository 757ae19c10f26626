package ingress

import (
	"context"
	"fmt"
	"net"

	"golang.org/x/sync/errgroup"

	"github.com/xpanvictor/vadbridge/internal/dispatch"
	"github.com/xpanvictor/vadbridge/internal/metrics"
	"github.com/xpanvictor/vadbridge/internal/wire"
	"github.com/xpanvictor/vadbridge/pkg/Logger"
)

// sensorBufSize is large enough for a header-only packet or a 10-float
// sensor vector payload.
const sensorBufSize = wire.SensorHeaderSize + 64

// SensorPlane is the sensor endpoint: N UDP sockets sharing one port,
// each run by its own receiver goroutine. Every datagram updates the
// sensor-id address map before being submitted to the dispatcher.
type SensorPlane struct {
	conns []net.PacketConn
	addrs *AddressMap
	disp  *dispatch.Dispatcher
	m     *metrics.Metrics
	log   *Logger.Logger
}

// NewSensorPlane binds n sockets to host:port with kernel port sharing.
func NewSensorPlane(host string, port, n, recvBufSize int, addrs *AddressMap, disp *dispatch.Dispatcher, m *metrics.Metrics, log *Logger.Logger) (*SensorPlane, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	conns := make([]net.PacketConn, 0, n)
	for i := 0; i < n; i++ {
		conn, err := listenReusePort("udp", addr, recvBufSize)
		if err != nil {
			for _, c := range conns {
				_ = c.Close()
			}
			return nil, fmt.Errorf("sensor plane: bind %s: %w", addr, err)
		}
		conns = append(conns, conn)
	}
	return &SensorPlane{conns: conns, addrs: addrs, disp: disp, m: m, log: log}, nil
}

// Run starts one receive loop per bound socket and blocks until ctx is
// cancelled.
func (p *SensorPlane) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, conn := range p.conns {
		conn := conn
		g.Go(func() error {
			p.recvLoop(ctx, conn)
			return nil
		})
	}
	<-ctx.Done()
	for _, c := range p.conns {
		_ = c.Close()
	}
	return g.Wait()
}

// WriteTo writes a raw reply datagram to dst from the first bound
// socket; any bound socket may originate an outbound datagram.
func (p *SensorPlane) WriteTo(b []byte, dst net.Addr) (int, error) {
	return p.conns[0].WriteTo(b, dst)
}

func (p *SensorPlane) recvLoop(ctx context.Context, conn net.PacketConn) {
	buf := make([]byte, sensorBufSize)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, src, err := conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			p.m.RecordRecvError()
			continue
		}
		p.m.RecordRecv(n)

		pkt, ok := wire.ParseSensor(buf[:n])
		if !ok {
			p.m.RecordParseError()
			continue
		}

		p.addrs.Upsert(pkt.SensorID, src)

		if !p.disp.Submit(pkt) {
			p.log.Warnw("dispatcher queue full, dropping sensor packet", "sensor_id", pkt.SensorID)
		}
	}
}
