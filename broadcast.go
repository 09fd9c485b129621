package ember

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// errPeerClosed is reported when a frame is enqueued on a peer whose channel
// has already closed.
var errPeerClosed = errors.New("ember: peer channel is closed")

// peer is one connected WebSocket endpoint tracked by the registry. All
// broadcast frames to its connection go through its own outbound pump, so
// broadcasting never blocks on a slow socket and their write ordering holds.
// Control frames (pongs, close echoes, disconnect closes) are written
// directly on the connection.
type peer struct {
	id       string
	conn     *websocket.Conn
	outbound chan *outboundFrame
	done     chan struct{}
	once     sync.Once
	registry *peerRegistry
}

// outboundFrame is one enqueued write. The prepared message is encoded once
// by the broadcaster and shared by every peer's enqueue; it stays alive until
// the last write holding it completes.
type outboundFrame struct {
	prepared  *websocket.PreparedMessage
	result    chan error
	onFailure func(p *peer, err error)
}

// newPeer returns a new instance of the `peer` for the conn.
func newPeer(conn *websocket.Conn, registry *peerRegistry) *peer {
	return &peer{
		id:       uuid.NewString(),
		conn:     conn,
		outbound: make(chan *outboundFrame, 16),
		done:     make(chan struct{}),
		registry: registry,
	}
}

// ID returns the identifier of the p.
func (p *peer) ID() string {
	return p.id
}

// active reports whether the channel of the p is still open.
func (p *peer) active() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// close closes the channel of the p without sending anything.
func (p *peer) close() {
	p.once.Do(func() {
		close(p.done)
		p.conn.Close()
	})
}

// enqueue hands the f to the outbound pump of the p.
func (p *peer) enqueue(f *outboundFrame) error {
	select {
	case <-p.done:
		return errPeerClosed
	case p.outbound <- f:
		return nil
	}
}

// writePump drains the outbound frames of the p onto its connection. It runs
// on the peer's own goroutine; a failed write drops the peer from the
// registry and drains the remaining queue with the same error.
func (p *peer) writePump() {
	for {
		select {
		case <-p.done:
			p.drain(errPeerClosed)
			return
		case f := <-p.outbound:
			err := p.conn.WritePreparedMessage(f.prepared)
			f.finish(p, err)
			if err != nil {
				p.registry.drop(p, err)
				p.drain(err)
				return
			}
		}
	}
}

// drain fails every frame still queued on the p with the err.
func (p *peer) drain(err error) {
	for {
		select {
		case f := <-p.outbound:
			f.finish(p, err)
		default:
			return
		}
	}
}

// finish reports the outcome of the f for the p. A closed channel is not a
// reportable failure; the peer is just dropped.
func (f *outboundFrame) finish(p *peer, err error) {
	if err != nil && f.onFailure != nil && !closedChannelError(err) {
		f.onFailure(p, err)
	}

	if f.result != nil {
		f.result <- err
	}
}

// closedChannelError reports whether the err means the peer's channel was
// already closed.
func closedChannelError(err error) bool {
	return errors.Is(err, errPeerClosed) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, websocket.ErrCloseSent) ||
		websocket.IsCloseError(err, websocket.CloseNormalClosure,
			websocket.CloseGoingAway)
}

// peerRegistry tracks the connected WebSocket peers and fans frames out to
// them. Iteration works on a snapshot of the peer list, so peers may connect
// and disconnect while a broadcast is in flight.
type peerRegistry struct {
	server *Server

	mutex sync.Mutex
	peers []*peer
}

// newPeerRegistry returns a new instance of the `peerRegistry` with the s.
func newPeerRegistry(s *Server) *peerRegistry {
	return &peerRegistry{
		server: s,
	}
}

// add inserts the p, keeping registration order.
func (reg *peerRegistry) add(p *peer) {
	reg.mutex.Lock()
	defer reg.mutex.Unlock()
	reg.peers = append(reg.peers, p)
}

// remove removes the p.
func (reg *peerRegistry) remove(p *peer) {
	reg.mutex.Lock()
	defer reg.mutex.Unlock()
	for i, rp := range reg.peers {
		if rp == p {
			reg.peers = append(reg.peers[:i], reg.peers[i+1:]...)
			return
		}
	}
}

// drop removes the p after a write failure. Closed channels go silently;
// anything else is logged.
func (reg *peerRegistry) drop(p *peer, err error) {
	reg.remove(p)
	p.close()

	if !closedChannelError(err) {
		reg.server.Logger.WithError(err).WithField("peer", p.id).Warn(
			"ember: dropping peer after write failure",
		)
	}
}

// snapshot returns a copy of the peer list in registration order.
func (reg *peerRegistry) snapshot() []*peer {
	reg.mutex.Lock()
	defer reg.mutex.Unlock()
	return append([]*peer(nil), reg.peers...)
}

// size returns the number of tracked peers.
func (reg *peerRegistry) size() int {
	reg.mutex.Lock()
	defer reg.mutex.Unlock()
	return len(reg.peers)
}

// broadcast encodes the payload into a single frame and enqueues it on every
// active peer without waiting for the writes to complete. Per-peer failures
// are isolated: a peer whose channel is closed is dropped silently, any
// other failure goes through the onFailure callback when one is given.
func (reg *peerRegistry) broadcast(
	messageType int,
	payload []byte,
	onFailure func(p *peer, err error),
) error {
	pm, err := websocket.NewPreparedMessage(messageType, payload)
	if err != nil {
		return err
	}

	if onFailure == nil {
		onFailure = func(p *peer, err error) {}
	}

	for _, p := range reg.snapshot() {
		if !p.active() {
			reg.drop(p, errPeerClosed)
			continue
		}

		f := &outboundFrame{
			prepared:  pm,
			onFailure: onFailure,
		}
		if err := p.enqueue(f); err != nil {
			reg.drop(p, err)
		}
	}

	return nil
}

// broadcastSync is the sequential variant of broadcast: it awaits each
// peer's write in registration order before moving to the next.
func (reg *peerRegistry) broadcastSync(
	messageType int,
	payload []byte,
	onFailure func(p *peer, err error),
) error {
	pm, err := websocket.NewPreparedMessage(messageType, payload)
	if err != nil {
		return err
	}

	if onFailure == nil {
		onFailure = func(p *peer, err error) {}
	}

	for _, p := range reg.snapshot() {
		if !p.active() {
			reg.drop(p, errPeerClosed)
			continue
		}

		f := &outboundFrame{
			prepared:  pm,
			result:    make(chan error, 1),
			onFailure: onFailure,
		}
		if err := p.enqueue(f); err != nil {
			reg.drop(p, err)
			continue
		}

		<-f.result
	}

	return nil
}

// disconnect sends a normal-closure close frame to every active peer, closes
// their channels and empties the registry.
func (reg *peerRegistry) disconnect() {
	reg.mutex.Lock()
	peers := reg.peers
	reg.peers = nil
	reg.mutex.Unlock()

	for _, p := range peers {
		if p.active() {
			p.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(
					websocket.CloseNormalClosure,
					"",
				),
				time.Now().Add(time.Second),
			)
		}

		p.close()
	}
}
