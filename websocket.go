package ember

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// handleUpgrade replaces the HTTP handling of the connection with the
// WebSocket protocol. See RFC 6455.
//
// Upgrade interceptors run first; a response returned by one of them is sent
// instead of completing the handshake and the connection proceeds as plain
// HTTP. After a successful handshake the peer is registered for broadcasts
// and the connection is handed to the frame loop.
func (s *Server) handleUpgrade(
	rw http.ResponseWriter,
	hr *http.Request,
	req *Request,
) {
	for _, ui := range s.upgradeInterceptors {
		res, failure := s.invokeUpgradeInterceptor(ui, req)
		if failure != nil {
			s.write(rw, req, failure)
			return
		}

		if res != nil {
			s.write(rw, req, res)
			return
		}
	}

	upgrader := &websocket.Upgrader{
		HandshakeTimeout: s.WebSocketHandshakeTimeout,
		CheckOrigin: func(*http.Request) bool {
			return true
		},
	}

	conn, err := upgrader.Upgrade(rw, hr, nil)
	if err != nil {
		// The upgrader has already written its error response.
		s.Logger.WithError(err).WithField("path", req.Path).Warn(
			"ember: websocket handshake failed",
		)
		return
	}

	p := newPeer(conn, s.registry)
	s.registry.add(p)
	go p.writePump()

	s.readFrames(p)
}

// readFrames processes the inbound frames of the p until its channel closes.
//
// Frame policy: a ping is answered with a pong carrying a copy of the ping
// payload; a close is echoed before the channel goes down; data frames are
// not routed anywhere at this layer and are logged and ignored.
func (s *Server) readFrames(p *peer) {
	defer func() {
		s.registry.remove(p)
		p.close()
	}()

	p.conn.SetPingHandler(func(appData string) error {
		payload := append([]byte(nil), appData...)
		err := p.conn.WriteControl(
			websocket.PongMessage,
			payload,
			time.Now().Add(time.Second),
		)
		if err == websocket.ErrCloseSent {
			return nil
		}

		return err
	})

	p.conn.SetCloseHandler(func(code int, text string) error {
		p.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(code, ""),
			time.Now().Add(time.Second),
		)

		return nil
	})

	for {
		t, _, err := p.conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if !errors.As(err, &ce) && !closedChannelError(err) {
				s.Logger.WithError(err).WithField(
					"peer",
					p.id,
				).Warn("ember: websocket read failed")
			}

			return
		}

		switch t {
		case websocket.TextMessage, websocket.BinaryMessage:
			s.Logger.WithFields(logrus.Fields{
				"peer": p.id,
				"type": t,
			}).Debug("ember: ignoring inbound data frame")
		}
	}
}
