package ws

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"machinecraft.ai/internal/protocol"
	"machinecraft.ai/internal/sim/machine"
	"machinecraft.ai/internal/sim/world"
)

const (
	defaultQueue = 1024
	maxQueue     = 8192
)

// World is the part of the authoritative host the replica endpoint needs.
type World interface {
	ID() string
	TickRateHz() int
	CurrentTick() uint64
	Tiers() []machine.Tier
	Attach(ctx context.Context, sink world.SyncSink) error
	Detach(sink world.SyncSink)
}

type Server struct {
	world World
	log   *log.Logger

	upgrader websocket.Upgrader

	clients      atomic.Int64
	droppedTotal atomic.Uint64
}

func NewServer(w World, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// Clients is the number of connected replicas.
func (s *Server) Clients() int { return int(s.clients.Load()) }

// DroppedTotal counts messages dropped for slow replicas.
func (s *Server) DroppedTotal() uint64 { return s.droppedTotal.Load() }

// replicaSink queues encoded sync traffic for one connection.
type replicaSink struct {
	srv *Server
	out chan []byte
}

func (c *replicaSink) MachineSynced(msg protocol.MachineSyncMsg)    { c.push(msg) }
func (c *replicaSink) MachineRemoved(msg protocol.MachineRemoveMsg) { c.push(msg) }

func (c *replicaSink) push(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if sendLatest(c.out, b) {
		c.srv.droppedTotal.Add(1)
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		hello, ok := s.handshake(conn)
		if !ok {
			return
		}

		queue := hello.MaxQueue
		if queue <= 0 {
			queue = defaultQueue
		}
		if queue > maxQueue {
			queue = maxQueue
		}
		sink := &replicaSink{srv: s, out: make(chan []byte, queue)}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-sink.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		if err := s.world.Attach(ctx, sink); err != nil {
			s.log.Printf("replica %q: attach: %v", hello.ReplicaName, err)
			return
		}
		s.clients.Add(1)
		s.log.Printf("replica %q connected", hello.ReplicaName)
		defer func() {
			s.world.Detach(sink)
			s.clients.Add(-1)
			s.log.Printf("replica %q disconnected", hello.ReplicaName)
		}()

		// Replicas send nothing after HELLO; reading only detects the close.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) (protocol.HelloMsg, bool) {
	var hello protocol.HelloMsg

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return hello, false
	}
	_ = conn.SetReadDeadline(time.Time{})

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		s.reject(conn, protocol.ErrProtoBadRequest, "expected HELLO")
		return hello, false
	}
	if err := json.Unmarshal(msg, &hello); err != nil {
		s.reject(conn, protocol.ErrProtoBadRequest, "bad HELLO")
		return hello, false
	}
	if hello.ProtocolVersion != protocol.Version {
		s.reject(conn, protocol.ErrProtoVersion, "bad protocol_version")
		return hello, false
	}
	if hello.ReplicaName == "" {
		hello.ReplicaName = "replica"
	}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		WorldID:         s.world.ID(),
		Tick:            s.world.CurrentTick(),
		TickRateHz:      s.world.TickRateHz(),
	}
	for _, t := range s.world.Tiers() {
		welcome.Tiers = append(welcome.Tiers, protocol.TierInfo{
			ID:                t.ID,
			Name:              t.Name,
			MaxStored:         t.MaxStored,
			MaxExtractPerTick: t.MaxExtractPerTick,
		})
	}
	if err := writeJSON(conn, welcome); err != nil {
		return hello, false
	}
	return hello, true
}

func (s *Server) reject(conn *websocket.Conn, code, message string) {
	_ = writeJSON(conn, protocol.NewError(code, message))
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, message), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

// sendLatest enqueues b, dropping the oldest queued message when ch is full.
// It reports whether a message was dropped.
func sendLatest(ch chan []byte, b []byte) bool {
	select {
	case ch <- b:
		return false
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
	return true
}
