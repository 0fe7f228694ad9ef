package bridge

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSClient is a websocket Source/Sink to the decision engine. The read
// pump feeds an internal buffer so TryRecv stays non-blocking; the write
// path is direct with a deadline. The pump redials on failure with a
// fixed backoff.
type WSClient struct {
	name string
	url  string

	readTimeout  time.Duration
	writeTimeout time.Duration
	redialWait   time.Duration

	mu   sync.Mutex
	conn *websocket.Conn
	buf  [][]byte
	done chan struct{}
	once sync.Once
}

func NewWSClient(name, url string) *WSClient {
	c := &WSClient{
		name:         name,
		url:          url,
		readTimeout:  60 * time.Second,
		writeTimeout: 10 * time.Second,
		redialWait:   3 * time.Second,
		done:         make(chan struct{}),
	}
	go c.readPump()
	return c
}

func (c *WSClient) dial() error {
	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return err
	}

	conn.SetReadLimit(1 << 20)
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	})

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	log.Printf("[%s] connected to %s", c.name, c.url)
	return nil
}

func (c *WSClient) readPump() {
	for {
		select {
		case <-c.done:
			return
		default:
		}

		if err := c.dial(); err != nil {
			log.Printf("[%s] dial: %v", c.name, err)
			select {
			case <-c.done:
				return
			case <-time.After(c.redialWait):
			}
			continue
		}

		for {
			c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
			_, msg, err := c.conn.ReadMessage()
			if err != nil {
				log.Printf("[%s] read: %v, reconnecting", c.name, err)
				c.conn.Close()
				break
			}
			c.mu.Lock()
			c.buf = append(c.buf, msg)
			c.mu.Unlock()
		}
	}
}

func (c *WSClient) TryRecv() ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.buf) == 0 {
		return nil, false
	}
	msg := c.buf[0]
	c.buf = c.buf[1:]
	return msg, true
}

func (c *WSClient) Send(msg []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, msg)
}

func (c *WSClient) Close() error {
	c.once.Do(func() { close(c.done) })
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
