package relay

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/missioncontrol/internal/adapter/metrics"
)

const (
	writeDeadline     = 5 * time.Second
	pingInterval      = 30 * time.Second
	pongDeadline      = 60 * time.Second
	idleTimeout       = 5 * time.Minute
	messageBufferSize = 16
	maxMessageSize    = 64 * 1024
)

// Client is a websocket connection acting as a Subscriber. Outbound frames go through
// a buffered outbox drained by a dedicated writer goroutine, which also pings.
type Client struct {
	id            string
	connection    *websocket.Conn
	clock         clockwork.Clock
	metrics       *metrics.WebSocketMetrics
	sendChannel   chan []byte
	doneChannel   chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
	lastActivity  time.Time
	activityMutex sync.Mutex
}

// NewClient starts the writer goroutine for connection. m may be nil.
func NewClient(connection *websocket.Conn, clock clockwork.Clock, m *metrics.WebSocketMetrics) *Client {
	c := &Client{
		id:           uuid.NewString(),
		connection:   connection,
		clock:        clock,
		metrics:      m,
		sendChannel:  make(chan []byte, messageBufferSize),
		doneChannel:  make(chan struct{}),
		lastActivity: clock.Now(),
	}
	connection.SetReadLimit(maxMessageSize)
	c.configurePongHandler()
	c.wg.Add(1)
	go c.run()
	return c
}

func (c *Client) ID() string { return c.id }

// Done is closed once the client stops, whether by Close or by a write failure.
func (c *Client) Done() <-chan struct{} { return c.doneChannel }

func (c *Client) Deliver(data []byte) error {
	select {
	case <-c.doneChannel:
		return ErrSubscriberClosed
	default:
	}

	select {
	case c.sendChannel <- data:
		return nil
	case <-c.doneChannel:
		return ErrSubscriberClosed
	default:
		return ErrOutboxFull
	}
}

// ReadMessage reads the next inbound frame. Any frame counts as activity.
func (c *Client) ReadMessage() (int, []byte, error) {
	messageType, data, err := c.connection.ReadMessage()
	if err == nil {
		c.updateReadDeadline()
		c.recordActivity()
	}
	return messageType, data, err
}

// Close stops the writer, then sends a close frame and closes the socket.
func (c *Client) Close(code int, reason string) {
	c.stopOnce.Do(func() {
		close(c.doneChannel)

		// no concurrent writes: the writer has exited before the close frame goes out
		c.wg.Wait()

		closeMsg := websocket.FormatCloseMessage(code, reason)
		c.updateWriteDeadline()
		_ = c.connection.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = c.connection.Close()
	})
}

// abort is used by the writer itself; it must not wait on wg.
func (c *Client) abort() {
	c.stopOnce.Do(func() {
		close(c.doneChannel)
		_ = c.connection.Close()
	})
}

func (c *Client) run() {
	ticker := c.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	defer c.wg.Done()

	for {
		select {
		case msg := <-c.sendChannel:
			start := c.clock.Now()
			c.updateWriteDeadline()
			if err := c.connection.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.abort()
				return
			}
			if c.metrics != nil {
				c.metrics.MessageSendDuration.Observe(c.clock.Since(start).Seconds())
			}
		case <-ticker.Chan():
			if c.idle() {
				if c.metrics != nil {
					c.metrics.IdleDisconnects.Inc()
				}
				c.abort()
				return
			}

			c.updateWriteDeadline()
			if err := c.connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				if c.metrics != nil {
					c.metrics.PingFailures.Inc()
				}
				c.abort()
				return
			}
		case <-c.doneChannel:
			return
		}
	}
}

func (c *Client) configurePongHandler() {
	c.updateReadDeadline()
	c.connection.SetPongHandler(func(string) error {
		c.updateReadDeadline()
		c.recordActivity()
		return nil
	})
}

// Socket deadlines are wall-clock; the injected clock only drives pings and idleness.
func (c *Client) updateWriteDeadline() {
	_ = c.connection.SetWriteDeadline(time.Now().Add(writeDeadline))
}

func (c *Client) updateReadDeadline() {
	_ = c.connection.SetReadDeadline(time.Now().Add(pongDeadline))
}

func (c *Client) recordActivity() {
	c.activityMutex.Lock()
	defer c.activityMutex.Unlock()
	c.lastActivity = c.clock.Now()
}

func (c *Client) idle() bool {
	c.activityMutex.Lock()
	defer c.activityMutex.Unlock()
	return c.clock.Since(c.lastActivity) >= idleTimeout
}
