// Package realtime bridges hub events to websocket clients.
package realtime

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/friden-zhang/raspi-todo/internal/hub"
)

const (
	DefaultWriteTimeout = 10 * time.Second
	// Clients have no inbound protocol; anything larger than this is abuse.
	maxInboundFrame = 64 << 10
)

var errHubClosed = errors.New("hub closed")

// Gateway serves the /ws/updates endpoint. Every connection gets its own hub
// subscription and lives until either side goes away.
type Gateway struct {
	hub          *hub.Hub
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	logger       *log.Logger
}

func NewGateway(h *hub.Hub, writeTimeout time.Duration, logger *log.Logger) *Gateway {
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &Gateway{
		hub: h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		writeTimeout: writeTimeout,
		logger:       logger,
	}
}

// ServeWS upgrades the request and blocks until the connection is torn down.
// The subscription is taken before the upgrade so nothing published after the
// handshake completes can be missed.
func (g *Gateway) ServeWS(c *gin.Context) {
	sub := g.hub.Subscribe()
	defer sub.Close()

	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already answered with an HTTP error.
		g.logger.Debug("websocket upgrade failed", "remote", c.ClientIP(), "err", err)
		return
	}
	logger := g.logger.With("remote", conn.RemoteAddr().String())
	logger.Debug("websocket connected", "subscribers", g.hub.Len())

	err = g.serve(c.Request.Context(), conn, sub)
	if isNormalClose(err) {
		logger.Debug("websocket closed", "reason", err, "dropped", sub.Dropped())
		return
	}
	logger.Warn("websocket closed", "err", err, "dropped", sub.Dropped())
}

// serve runs the relay and the inbound drain until the first of them ends.
// Both close conn on exit so the other one unblocks.
func (g *Gateway) serve(ctx context.Context, conn *websocket.Conn, sub *hub.Subscription) error {
	grp, ctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		defer conn.Close()
		return g.relay(ctx, conn, sub)
	})
	grp.Go(func() error {
		defer conn.Close()
		return drain(conn)
	})
	return grp.Wait()
}

func (g *Gateway) relay(ctx context.Context, conn *websocket.Conn, sub *hub.Subscription) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-sub.C():
			if !ok {
				deadline := time.Now().Add(g.writeTimeout)
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), deadline)
				return errHubClosed
			}
			if err := conn.SetWriteDeadline(time.Now().Add(g.writeTimeout)); err != nil {
				return err
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return err
			}
		}
	}
}

// drain discards client frames; its only job is to notice the peer leaving.
func drain(conn *websocket.Conn) error {
	conn.SetReadLimit(maxInboundFrame)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return err
		}
	}
}

func isNormalClose(err error) bool {
	return err == nil ||
		errors.Is(err, errHubClosed) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, net.ErrClosed) ||
		websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived)
}
