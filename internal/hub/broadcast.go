package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
)

// writeTimeout bounds a single subscriber write, so one slow or dead
// peer cannot stall a broadcast to everyone else.
const writeTimeout = 5 * time.Second

// subscriber is one connected external-events port (spec.md §4.6 step
// 3, §6.3). The Go translation of a browser runtime.Port is a
// websocket connection accepted with a declared subprotocol name that
// must match the hub's configured external-events port name.
type subscriber struct {
	conn *websocket.Conn
	name string
}

// broadcaster owns the set of connected subscribers and the
// broadcast-then-prune pass (spec.md §4.6 step 3: "Ports whose
// postMessage throws or that are disconnected are silently pruned on
// next broadcast").
type broadcaster struct {
	mu          sync.Mutex
	portName    string
	subscribers []*subscriber
	log         zerolog.Logger
}

func newBroadcaster(portName string, log zerolog.Logger) *broadcaster {
	return &broadcaster{portName: portName, log: log.With().Str("component", "hub_broadcast").Logger()}
}

// Subscribe accepts conn as a subscriber only if name equals the
// configured external-events port name; otherwise the connection is
// closed immediately (spec.md §6.3: "owner accepts the connection only
// if port.name == <configured name>; otherwise calls disconnect()").
func (b *broadcaster) Subscribe(conn *websocket.Conn, name string) error {
	if name != b.portName {
		return conn.Close(websocket.StatusPolicyViolation, "unexpected port name")
	}
	b.mu.Lock()
	b.subscribers = append(b.subscribers, &subscriber{conn: conn, name: name})
	b.mu.Unlock()
	return nil
}

// Broadcast sends data (pre-marshaled JSON) to every connected
// subscriber, pruning any that error out.
func (b *broadcaster) broadcast(data []byte) {
	b.mu.Lock()
	subs := append([]*subscriber(nil), b.subscribers...)
	b.mu.Unlock()

	var survivors []*subscriber
	for _, s := range subs {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := s.conn.Write(ctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			b.log.Warn().Err(err).Msg("subscriber write failed, pruning port")
			continue
		}
		survivors = append(survivors, s)
	}

	b.mu.Lock()
	b.subscribers = survivors
	b.mu.Unlock()
}

// BroadcastEvent marshals evt and sends it to every connected
// subscriber.
func (b *broadcaster) BroadcastEvent(evt ConversationEvent) {
	data, err := json.Marshal(evt)
	if err != nil {
		b.log.Warn().Err(err).Msg("failed to marshal ConversationEvent for broadcast")
		return
	}
	b.broadcast(data)
}

// SubscriberCount reports the current connected-subscriber count
// (diagnostic/test use).
func (b *broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}
