package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/safedispatch/relay/internal/app"
	"github.com/safedispatch/relay/internal/config"
	"github.com/safedispatch/relay/internal/core"
	"github.com/safedispatch/relay/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

// Controller is the per-connection event boundary: it validates joins,
// dispatches relay messages and cleans up membership on disconnect.
type Controller struct {
	Calls *app.CallStore
	Hub   *app.Hub
	Cfg   *config.Config
}

func NewController(calls *app.CallStore, hub *app.Hub, cfg *config.Config) *Controller {
	return &Controller{Calls: calls, Hub: hub, Cfg: cfg}
}

type wsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// client is one connection's gateway state. Only the read pump goroutine
// mutates room/role/joined, so they need no lock.
type client struct {
	id      core.ConnID
	conn    *wsSignalConn
	room    domain.CallID
	role    domain.Role
	joined  bool
	limiter *joinLimiter
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade")
		return
	}
	if ctl.Cfg.ReadLimit > 0 {
		ws.SetReadLimit(ctl.Cfg.ReadLimit)
	}

	conn := &wsSignalConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}
	cl := &client{
		id:      core.ConnID(uuid.NewString()),
		conn:    conn,
		limiter: newJoinLimiter(ctl.Cfg.JoinLimit, ctl.Cfg.JoinWindow),
	}
	log.Info().Str("module", "signal").Str("conn", string(cl.id)).Msg("new WS connection")

	ctl.Hub.Register(cl.id, conn)

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, cl)
}
