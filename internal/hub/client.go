package hub

import (
	"context"
	"log"
	"net"
	"sync"
	"time"

	"github.com/abhinay-x/skillnest-connect-sub002/internal/event"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var (
	// tuning parameters
	writeWait          = 10 * time.Second       // time allowed to write a message to the peer
	pongWait           = 20 * time.Second       // time allowed to read the next pong message from the peer
	pingInterval       = (pongWait * 9) / 10    // send pings to peer with this period
	maxMessageSize     = 64 * 1024              // max inbound message size (64KB)
	sendBufSize        = 256                    // per-subscription outbound buffer size
	workerPoolSize     = 16                     // number of workers to process inbound events
	inboundSendTimeout = 500 * time.Millisecond // timeout for sending to inbound channel
)

// Client binds one WebSocket connection to one conversation subscription and
// pumps events in both directions.
type Client struct {
	ID             string
	userID         string
	conversationID string
	conn           *websocket.Conn
	broker         *Broker
	sub            *Subscription

	cancel         context.CancelFunc
	ctx            context.Context
	once           sync.Once
	connClosed     chan struct{}
	connClosedOnce sync.Once
}

// RegisterClient subscribes the connection to the conversation feed and
// starts the read/write pumps.
func RegisterClient(userID, conversationID string, conn *websocket.Conn, b *Broker) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	client := &Client{
		ID:             uuid.New().String(),
		userID:         userID,
		conversationID: conversationID,
		conn:           conn,
		broker:         b,
		sub:            b.Subscribe(conversationID, userID),
		cancel:         cancel,
		ctx:            ctx,
		connClosed:     make(chan struct{}),
	}

	go client.ReadMessages()
	go client.WriteMessages()
	log.Printf("client %s connected for user %s in conversation %s", client.ID, userID, conversationID)
	return client
}

func (c *Client) ReadMessages() {
	defer c.Close()

	c.conn.SetReadLimit(int64(maxMessageSize))
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(c.pongHandler)

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			var ev event.Event

			if err := c.conn.ReadJSON(&ev); err != nil {

				if websocket.IsCloseError(err,
					websocket.CloseNormalClosure,
					websocket.CloseGoingAway,
					websocket.CloseAbnormalClosure,
				) {
					log.Printf("client disconnected: %v", c.ID)
					return
				}

				if websocket.IsUnexpectedCloseError(err,
					websocket.CloseInternalServerErr,
					websocket.CloseProtocolError,
				) {
					log.Printf("unexpected close for %s: %v", c.ID, err)
				}

				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					log.Printf("client %s timed out - closing connection", c.ID)
					return
				}

				log.Printf("error reading from client %s: %v", c.ID, err)
				return
			}

			// The connection fixes sender and conversation; clients cannot
			// inject events for other users or threads.
			ev.SenderID = c.userID
			ev.ConversationID = c.conversationID

			if !c.broker.enqueueInbound(c.userID, ev) {
				log.Printf("inbound queue full: dropping client %s", c.ID)
				return
			}
		}
	}
}

func (c *Client) WriteMessages() {
	ticker := time.NewTicker(pingInterval)

	defer func() {
		ticker.Stop()
		c.Close()
		_ = c.conn.Close()

		c.connClosedOnce.Do(func() {
			close(c.connClosed)
		})
	}()

	for {
		select {
		case <-c.ctx.Done():
			return
		case ev, ok := <-c.sub.Events():
			if !ok {
				if err := c.conn.WriteMessage(websocket.CloseMessage, nil); err != nil {
					log.Printf("connection closed: %v", err)
				}
				return
			}

			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				log.Println("write error: ", err)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Println("ping error: ", err)
				return
			}
		}
	}
}

func (c *Client) pongHandler(string) error {
	return c.conn.SetReadDeadline(time.Now().Add(pongWait))
}

// Close cancels the subscription and tears the connection down exactly once.
func (c *Client) Close() {
	c.once.Do(func() {
		c.cancel()
		c.sub.Cancel()

		// Wait for WriteMessages to close conn, or force close after timeout
		go func() {
			select {
			case <-c.connClosed:
				// WriteMessages closed it properly
			case <-time.After(5 * time.Second):
				_ = c.conn.Close()
				log.Printf("safety timeout: force closed connection for client %s", c.ID)
			}
		}()
	})
}
