package ingress

import (
	"context"
	"fmt"
	"net"

	"golang.org/x/sync/errgroup"

	"github.com/xpanvictor/vadbridge/internal/metrics"
	"github.com/xpanvictor/vadbridge/internal/wire"
	"github.com/xpanvictor/vadbridge/pkg/Logger"
)

// AudioHandler receives parsed device audio-protocol frames from the
// audio endpoint.
type AudioHandler interface {
	HandleAudioPacket(src net.Addr, pkt wire.EspPacket)
}

// AudioPlane is the audio endpoint: N UDP sockets sharing one port via
// kernel port sharing, each run by its own receiver goroutine.
type AudioPlane struct {
	conns   []net.PacketConn
	handler AudioHandler
	m       *metrics.Metrics
	log     *Logger.Logger
}

// NewAudioPlane binds n sockets to host:port with kernel port sharing.
func NewAudioPlane(host string, port, n, recvBufSize int, handler AudioHandler, m *metrics.Metrics, log *Logger.Logger) (*AudioPlane, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	conns := make([]net.PacketConn, 0, n)
	for i := 0; i < n; i++ {
		conn, err := listenReusePort("udp", addr, recvBufSize)
		if err != nil {
			for _, c := range conns {
				_ = c.Close()
			}
			return nil, fmt.Errorf("audio plane: bind %s: %w", addr, err)
		}
		conns = append(conns, conn)
	}
	return &AudioPlane{conns: conns, handler: handler, m: m, log: log}, nil
}

// SetHandler installs the audio packet handler. Must be called before
// Run; the ingress plane and the orchestrator that consumes it are
// constructed in two steps to break their cyclic dependency (the
// orchestrator needs a DeviceSender, the plane needs an AudioHandler).
func (p *AudioPlane) SetHandler(handler AudioHandler) {
	p.handler = handler
}

// Run starts one receive loop per bound socket and blocks until ctx is
// cancelled.
func (p *AudioPlane) Run(ctx context.Context) error {
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

func (p *AudioPlane) recvLoop(ctx context.Context, conn net.PacketConn) {
	buf := make([]byte, wire.EspHeaderSize+wire.EspMaxPayload)
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

		pkt, ok := wire.ParseEsp(buf[:n])
		if !ok {
			p.m.RecordParseError()
			continue
		}
		p.handler.HandleAudioPacket(src, pkt)
	}
}

// WriteTo writes a raw device audio-protocol frame to dst from the
// first bound socket; any bound socket may originate an outbound
// datagram.
func (p *AudioPlane) WriteTo(b []byte, dst net.Addr) (int, error) {
	return p.conns[0].WriteTo(b, dst)
}
