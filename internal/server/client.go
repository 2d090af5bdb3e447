package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-pokerplan/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 1024
)

// Client is one live websocket connection. Identity is whatever the client
// claims on join-room, there is no server-enforced credential.
type Client struct {
	sessionId string
	conn      *websocket.Conn
	ps        *PokerServer
	log       *log.Logger
	user      types.User
	userLock  sync.RWMutex
	room      *Room
	roomLock  sync.RWMutex
	send      chan *ServerMessage
	stop      chan struct{}
	stopOnce  sync.Once
}

func NewClient(sessionId string, conn *websocket.Conn, ps *PokerServer, l *log.Logger) *Client {
	return &Client{
		sessionId: sessionId,
		conn:      conn,
		ps:        ps,
		log:       l,
		send:      make(chan *ServerMessage, 256),
		stop:      make(chan struct{}),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Printf("write exiting for session %q", c.sessionId)
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
		c.log.Printf("read exiting for session %q", c.sessionId)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Println("error parsing message:", err)
			c.queueMessage(ErrInvalidMessage(-1))
			continue
		}

		if msg.Join == nil && msg.SetAdmin == nil && msg.StartVote == nil &&
			msg.SubmitVote == nil && msg.RevealVotes == nil {
			c.queueMessage(ErrInvalidMessage(msg.Id))
			continue
		}

		msg.client = c
		msg.Timestamp = Now()

		select {
		case c.ps.commandChan <- &msg:
		default:
			c.log.Printf("command channel full, dropping message from session %q", c.sessionId)
			c.queueMessage(ErrServiceUnavailable(msg.Id))
		}
	}
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Println("failed to send message to client, channel is full")
		return false
	}

	return true
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Client) cleanup() {
	select {
	case c.ps.DeRegisterChan <- c:
	case <-c.ps.done:
		// server already gone
	}
	c.leaveRoom()
	c.stopClient()
}

// leaveRoom notifies the client's current room, if any, that this
// connection is gone. Durable participation is untouched.
func (c *Client) leaveRoom() {
	r := c.getRoom()
	if r == nil {
		return
	}

	select {
	case r.leaveChan <- c:
	default:
		c.log.Printf("leave channel full for room %q", r.id)
	}
}

func (c *Client) setUser(u types.User) {
	c.userLock.Lock()
	defer c.userLock.Unlock()
	c.user = u
}

func (c *Client) getUser() types.User {
	c.userLock.RLock()
	defer c.userLock.RUnlock()
	return c.user
}

func (c *Client) setRoom(r *Room) {
	c.roomLock.Lock()
	defer c.roomLock.Unlock()
	c.room = r
}

func (c *Client) getRoom() *Room {
	c.roomLock.RLock()
	defer c.roomLock.RUnlock()
	return c.room
}
