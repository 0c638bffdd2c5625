package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"tickforge/internal/common"
	"tickforge/internal/coordinator"
	"tickforge/internal/events"
	"tickforge/internal/queue"

	"github.com/rs/zerolog"
	tomb "gopkg.in/tomb.v2"
)

const (
	maxFrameSize       = 64 * 1024
	defaultConnTimeout = 5 * time.Second

	roleProducer byte = 0
	roleConsumer byte = 1

	noReject = common.RejectNone
)

// Server is the coordinator-facing TCP endpoint of spec.md §6: producer
// connections send framed Submit/Cancel/Halt/SetRef messages; consumer
// connections receive the framed canonical event stream drained from the
// coordinator's shared outbound MPSC. Grounded on the teacher's
// (saiputravu-Exchange) internal/net/server.go Server (tomb-supervised
// listener + worker pool + a dedicated drain goroutine), adapted from a
// single request/response session model to the separate-producer- and
// consumer-connection model spec.md §6 calls for.
type Server struct {
	address string
	port    int

	coord    *coordinator.Coordinator
	outbound *queue.MPSC[events.Event]

	pool *connPool
	log  zerolog.Logger

	consumersMu sync.Mutex
	consumers   map[net.Conn]struct{}
}

// New constructs a Server. nWorkers bounds concurrent producer connection
// handlers.
func New(address string, port int, coord *coordinator.Coordinator, outbound *queue.MPSC[events.Event], nWorkers int, log zerolog.Logger) *Server {
	s := &Server{
		address:   address,
		port:      port,
		coord:     coord,
		outbound:  outbound,
		log:       log.With().Str("component", "transport").Logger(),
		consumers: make(map[net.Conn]struct{}),
	}
	s.pool = newConnPool(nWorkers, s.handleProducer, s.log)
	return s
}

// Run starts the listener, the producer worker pool and the outbound
// broadcaster, and blocks until t is killed (spec.md §5 cooperative
// shutdown).
func (s *Server) Run(t *tomb.Tomb) error {
	var lc net.ListenConfig
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		return fmt.Errorf("transport: listen: %w", err)
	}
	defer listener.Close()

	s.pool.Run(t)
	t.Go(func() error { return s.broadcastOutbound(t) })

	t.Go(func() error {
		<-t.Dying()
		return listener.Close()
	})

	s.log.Info().Str("address", s.address).Int("port", s.port).Msg("transport listening")
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-t.Dying():
				return nil
			default:
				s.log.Error().Err(err).Msg("accept failed")
				continue
			}
		}
		s.dispatch(conn)
	}
}

// dispatch reads the 1-byte role handshake and routes the connection to
// the producer pool or registers it as an outbound consumer.
func (s *Server) dispatch(conn net.Conn) {
	role := make([]byte, 1)
	if _, err := io.ReadFull(conn, role); err != nil {
		s.log.Warn().Err(err).Str("address", conn.RemoteAddr().String()).Msg("dropping connection with no role handshake")
		conn.Close()
		return
	}
	switch role[0] {
	case roleProducer:
		s.pool.AddTask(conn)
	case roleConsumer:
		s.consumersMu.Lock()
		s.consumers[conn] = struct{}{}
		s.consumersMu.Unlock()
		s.log.Info().Str("address", conn.RemoteAddr().String()).Msg("outbound consumer attached")
	default:
		s.log.Warn().Uint8("role", role[0]).Msg("unknown role byte, closing connection")
		conn.Close()
	}
}

// handleProducer reads length-prefixed frames from a producer connection
// until it errors, closes, or t dies, routing each decoded message to the
// coordinator.
func (s *Server) handleProducer(t *tomb.Tomb, conn net.Conn) error {
	defer conn.Close()
	for {
		select {
		case <-t.Dying():
			return nil
		default:
		}
		conn.SetReadDeadline(time.Now().Add(defaultConnTimeout))
		frame, err := readFrame(conn)
		if err != nil {
			if err != io.EOF {
				s.log.Debug().Err(err).Str("address", conn.RemoteAddr().String()).Msg("producer connection closed")
			}
			return nil
		}
		msg, err := DecodeInbound(frame)
		if err != nil {
			s.log.Warn().Err(err).Msg("malformed inbound frame, dropping")
			continue
		}
		s.route(msg)
	}
}

func (s *Server) route(msg InboundFrame) {
	switch msg.Type {
	case TypeSubmit:
		if reason := s.coord.SubmitOrder(msg.Symbol, msg.Submit); reason != noReject {
			s.log.Warn().Str("symbol", msg.Symbol).Str("orderID", msg.Submit.OrderID).
				Str("reason", reason.String()).Msg("submit rejected before entering a tick")
		}
	case TypeCancel:
		if reason := s.coord.CancelOrder(msg.Symbol, msg.Cancel); reason != noReject {
			s.log.Warn().Str("symbol", msg.Symbol).Str("orderID", msg.Cancel.OrderID).
				Str("reason", reason.String()).Msg("cancel rejected before entering a tick")
		}
	case TypeHalt:
		if err := s.coord.Halt(msg.Symbol, msg.Halt); err != nil {
			s.log.Warn().Err(err).Str("symbol", msg.Symbol).Msg("halt on unknown symbol")
		}
	case TypeSetRef:
		if err := s.coord.SetRef(msg.Symbol, msg.SetRef); err != nil {
			s.log.Warn().Err(err).Str("symbol", msg.Symbol).Msg("setref on unknown symbol")
		}
	}
}

// broadcastOutbound drains the shared outbound MPSC and fans each event
// out to every attached consumer connection (spec.md §6: analytics/UI
// sinks on this path may be lossy, see tickengine's emit()).
func (s *Server) broadcastOutbound(t *tomb.Tomb) error {
	idle := time.NewTicker(time.Millisecond)
	defer idle.Stop()
	for {
		select {
		case <-t.Dying():
			return nil
		case <-idle.C:
			for {
				ev, ok := s.outbound.TryPop()
				if !ok {
					break
				}
				s.send(ev)
			}
		}
	}
}

func (s *Server) send(ev events.Event) {
	buf, err := EncodeOutbound(ev)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to encode outbound event")
		return
	}
	framed := frameBytes(buf)

	s.consumersMu.Lock()
	defer s.consumersMu.Unlock()
	for conn := range s.consumers {
		conn.SetWriteDeadline(time.Now().Add(defaultConnTimeout))
		if _, err := conn.Write(framed); err != nil {
			s.log.Warn().Err(err).Str("address", conn.RemoteAddr().String()).Msg("dropping unresponsive consumer")
			conn.Close()
			delete(s.consumers, conn)
		}
	}
}

func readFrame(conn net.Conn) ([]byte, error) {
	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(conn, lenBuf); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf)
	if n == 0 || n > maxFrameSize {
		return nil, fmt.Errorf("transport: frame size %d out of bounds", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(conn, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func frameBytes(payload []byte) []byte {
	out := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(out[0:4], uint32(len(payload)))
	copy(out[4:], payload)
	return out
}
