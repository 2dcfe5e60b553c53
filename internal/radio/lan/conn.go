package lan

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/gangulaabhinav/ARWalking/internal/logging"
)

// socketPath is where a radio accepts WebSocket connections.
const socketPath = "/nan"

const writeTimeout = 5 * time.Second

var (
	errProbeTimeout = errors.New("probe timed out")
	errConnClosed   = errors.New("connection closed")
)

// envelope carries one discovery message between two sessions.
type envelope struct {
	ID string `json:"id"`
	// From is the sending session's instance, Node its radio.
	From    string `json:"from"`
	Node    string `json:"node"`
	To      string `json:"to"`
	Payload []byte `json:"payload"`
}

// conn is one WebSocket link between two radios. Either side may send on
// it; replies travel back on the link the request arrived on.
type conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex

	mu    sync.Mutex
	pongs map[string]chan struct{}

	closed    chan struct{}
	closeOnce sync.Once
}

func newConn(ws *websocket.Conn) *conn {
	c := &conn{
		ws:     ws,
		pongs:  make(map[string]chan struct{}),
		closed: make(chan struct{}),
	}
	ws.SetPongHandler(func(data string) error {
		c.mu.Lock()
		ch, ok := c.pongs[data]
		delete(c.pongs, data)
		c.mu.Unlock()
		if ok {
			close(ch)
		}
		return nil
	})
	return c
}

func (c *conn) send(env envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteJSON(env)
}

// probe measures one ping/pong round trip. The remote read loop answers
// pings on its own.
func (c *conn) probe(timeout time.Duration) (time.Duration, error) {
	nonce := uuid.NewString()
	ch := make(chan struct{})
	c.mu.Lock()
	c.pongs[nonce] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pongs, nonce)
		c.mu.Unlock()
	}()

	start := time.Now()
	if err := c.ws.WriteControl(websocket.PingMessage, []byte(nonce), start.Add(timeout)); err != nil {
		return 0, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
		return time.Since(start), nil
	case <-timer.C:
		return 0, errProbeTimeout
	case <-c.closed:
		return 0, errConnClosed
	}
}

// readLoop hands every envelope to deliver until the link fails.
func (c *conn) readLoop(deliver func(*conn, envelope)) {
	defer c.close()
	for {
		var env envelope
		if err := c.ws.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Debug("WebSocket link failed", zap.Error(err))
			}
			return
		}
		deliver(c, env)
	}
}

func (c *conn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *conn) close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.ws.Close()
	})
	return err
}
