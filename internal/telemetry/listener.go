package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"time"
)

// Message is the wire format of one telemetry datagram. Producers send
// one JSON object per datagram, tagged with the agent id and signal kind.
type Message struct {
	Agent string `json:"agent"`
	Kind  string `json:"kind"`

	// state / distcmd / goal payload
	X float64 `json:"x,omitempty"`
	Y float64 `json:"y,omitempty"`
	Z float64 `json:"z,omitempty"`

	// state payload
	StampNanos int64 `json:"stamp_ns,omitempty"`

	// status payload
	AvoidanceActive bool `json:"avoidance_active,omitempty"`
}

// Signal kinds carried in Message.Kind.
const (
	KindState      = "state"      // ground-truth pose/state
	KindRawGoal    = "distcmd"    // raw planner velocity goal
	KindSafeGoal   = "goal"       // collision-safe velocity goal
	KindStatus     = "status"     // safety status flags
	KindAssignment = "assignment" // shared assignment-generated event
)

// ListenerConfig contains configuration options for the UDP listener.
type ListenerConfig struct {
	Address string
	RcvBuf  int
	Store   *Store
}

// Listener receives telemetry datagrams over UDP and dispatches them by
// agent id and kind into the Store.
type Listener struct {
	address string
	rcvBuf  int
	store   *Store
	conn    *net.UDPConn
}

// NewListener creates a new telemetry listener with the provided
// configuration.
func NewListener(cfg ListenerConfig) *Listener {
	rcvBuf := cfg.RcvBuf
	if rcvBuf == 0 {
		rcvBuf = 1 << 20
	}
	return &Listener{
		address: cfg.Address,
		rcvBuf:  rcvBuf,
		store:   cfg.Store,
	}
}

// Start begins listening for telemetry datagrams and dispatching them
// until the context is cancelled.
func (l *Listener) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	l.conn = conn
	defer conn.Close()

	if err := conn.SetReadBuffer(l.rcvBuf); err != nil {
		log.Printf("Warning: failed to set UDP receive buffer size to %d: %v", l.rcvBuf, err)
	}

	log.Printf("telemetry listener started on %s", l.address)

	buffer := make([]byte, 2048)
	for {
		select {
		case <-ctx.Done():
			log.Print("telemetry listener stopping due to context cancellation")
			return ctx.Err()
		default:
			// Read deadline so context cancellation is noticed promptly.
			conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))

			n, src, err := conn.ReadFromUDP(buffer)
			if err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					continue
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Printf("telemetry read error: %v", err)
				continue
			}

			if err := l.handleDatagram(buffer[:n]); err != nil {
				log.Printf("error handling telemetry from %v: %v", src, err)
			}
		}
	}
}

// handleDatagram parses one datagram and routes it into the store.
func (l *Listener) handleDatagram(payload []byte) error {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("failed to unmarshal telemetry JSON: %w", err)
	}
	return Dispatch(l.store, msg)
}

// Dispatch routes one parsed telemetry message into the store by agent id
// and kind.
func Dispatch(store *Store, msg Message) error {
	switch msg.Kind {
	case KindState:
		stamp := time.Unix(0, msg.StampNanos)
		if msg.StampNanos == 0 {
			stamp = time.Time{}
		}
		store.UpdatePose(msg.Agent, Vec3{X: msg.X, Y: msg.Y, Z: msg.Z}, stamp)
	case KindRawGoal:
		store.UpdateRawGoal(msg.Agent, Vec3{X: msg.X, Y: msg.Y, Z: msg.Z})
	case KindSafeGoal:
		store.UpdateSafeGoal(msg.Agent, Vec3{X: msg.X, Y: msg.Y, Z: msg.Z})
	case KindStatus:
		store.UpdateStatus(msg.Agent, msg.AvoidanceActive)
	case KindAssignment:
		store.MarkAssignment()
	default:
		return fmt.Errorf("unknown telemetry kind %q", msg.Kind)
	}
	return nil
}

// Close closes the listener socket if open.
func (l *Listener) Close() error {
	if l.conn != nil {
		return l.conn.Close()
	}
	return nil
}
