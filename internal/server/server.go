package server

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"sync"

	"github.com/npezzotti/go-pokerplan/internal/config"
	"github.com/npezzotti/go-pokerplan/internal/database"
	"github.com/npezzotti/go-pokerplan/internal/stats"
)

const (
	statActiveConnections = "ActiveConnections"
	statActiveRooms       = "ActiveRooms"
	statVotesStarted      = "VotesStarted"
	statVotesSubmitted    = "VotesSubmitted"
	statVotesRevealed     = "VotesRevealed"
)

// PokerServer validates and routes inbound commands to room actors. Its run
// loop is the single dispatcher: commands are handed to a room's goroutine
// in arrival order, so each room sees one writer.
type PokerServer struct {
	log            *log.Logger
	db             database.PokerRepository
	cfg            *config.Config
	stats          stats.StatsProvider
	clients        map[*Client]struct{}
	clientsLock    sync.Mutex
	commandChan    chan *ClientMessage
	RegisterChan   chan *Client
	DeRegisterChan chan *Client
	unloadRoomChan chan string
	rooms          map[string]*Room
	stop           chan struct{}
	done           chan struct{}
}

func NewPokerServer(logger *log.Logger, db database.PokerRepository, su stats.StatsProvider, cfg *config.Config) (*PokerServer, error) {
	ps := &PokerServer{
		log:            logger,
		db:             db,
		cfg:            cfg,
		stats:          su,
		clients:        make(map[*Client]struct{}),
		commandChan:    make(chan *ClientMessage, 256),
		RegisterChan:   make(chan *Client),
		DeRegisterChan: make(chan *Client),
		unloadRoomChan: make(chan string, 16),
		rooms:          make(map[string]*Room),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}

	for _, name := range []string{
		statActiveConnections,
		statActiveRooms,
		statVotesStarted,
		statVotesSubmitted,
		statVotesRevealed,
	} {
		su.RegisterMetric(name)
	}

	return ps, nil
}

func (ps *PokerServer) Run() {
	for {
		select {
		case msg := <-ps.commandChan:
			ps.dispatch(msg)
		case client := <-ps.RegisterChan:
			ps.log.Printf("adding connection %q", client.sessionId)
			ps.addClient(client)
			ps.stats.Incr(statActiveConnections)
		case client := <-ps.DeRegisterChan:
			ps.log.Printf("removing connection %q", client.sessionId)
			ps.removeClient(client)
			ps.stats.Decr(statActiveConnections)
		case id := <-ps.unloadRoomChan:
			ps.unloadRoom(id)
		case <-ps.stop:
			ps.log.Println("shutting down rooms")
			for _, r := range ps.rooms {
				close(r.exit)
				<-r.done
			}
			ps.rooms = make(map[string]*Room)

			close(ps.done)
			return
		}
	}
}

// dispatch routes one inbound command. Room-addressed commands load the
// room actor on demand; submit-vote follows the connection's current room.
func (ps *PokerServer) dispatch(msg *ClientMessage) {
	c := msg.client

	switch {
	case msg.Join != nil:
		// one room per connection: joining a new room leaves the old one
		if cur := c.getRoom(); cur != nil && cur.id != msg.Join.RoomId {
			select {
			case cur.leaveChan <- c:
			default:
				ps.log.Printf("leave channel full on room %q", cur.id)
			}
		}

		room, err := ps.ensureRoom(msg.Join.RoomId)
		if err != nil {
			ps.roomLoadError(c, msg.Id, err)
			return
		}

		select {
		case room.joinChan <- msg:
		default:
			ps.log.Printf("join channel full on room %q", room.id)
			c.queueMessage(ErrServiceUnavailable(msg.Id))
		}
	case msg.SetAdmin != nil:
		ps.forwardToRoom(msg, msg.SetAdmin.RoomId)
	case msg.StartVote != nil:
		ps.forwardToRoom(msg, msg.StartVote.RoomId)
	case msg.RevealVotes != nil:
		ps.forwardToRoom(msg, msg.RevealVotes.RoomId)
	case msg.SubmitVote != nil:
		if room := c.getRoom(); room != nil {
			select {
			case room.cmdChan <- msg:
			default:
				ps.log.Printf("command channel full on room %q", room.id)
				c.queueMessage(ErrServiceUnavailable(msg.Id))
			}
			return
		}

		// connection never joined a room: record the response, notify no one
		ps.storeOnlySubmit(msg)
	}
}

func (ps *PokerServer) forwardToRoom(msg *ClientMessage, roomId string) {
	room, err := ps.ensureRoom(roomId)
	if err != nil {
		ps.roomLoadError(msg.client, msg.Id, err)
		return
	}

	select {
	case room.cmdChan <- msg:
	default:
		ps.log.Printf("command channel full on room %q", room.id)
		msg.client.queueMessage(ErrServiceUnavailable(msg.Id))
	}
}

// storeOnlySubmit mirrors handleSubmitVote minus the room broadcast.
func (ps *PokerServer) storeOnlySubmit(msg *ClientMessage) {
	cmd := msg.SubmitVote

	if !ps.cfg.AllowLateVotes {
		vote, err := ps.db.GetVoteById(cmd.VoteId)
		if err == nil && vote.RevealedAt.Valid {
			msg.client.queueMessage(ErrVoteRevealed(msg.Id))
			return
		}
	}

	if err := ps.db.UpsertVoteResponse(cmd.VoteId, cmd.UserId, cmd.Value); err != nil {
		ps.log.Println("UpsertVoteResponse:", err)
		msg.client.queueMessage(ErrInternalError(msg.Id))
		return
	}

	ps.stats.Incr(statVotesSubmitted)
}

// ensureRoom returns the loaded room actor, loading it from the store and
// starting its goroutine if needed.
func (ps *PokerServer) ensureRoom(roomId string) (*Room, error) {
	if room, ok := ps.rooms[roomId]; ok {
		return room, nil
	}

	dbRoom, err := ps.db.GetRoom(roomId)
	if err != nil {
		return nil, err
	}

	room := &Room{
		id:        dbRoom.Id,
		name:      dbRoom.Name,
		cs:        ps,
		joinChan:  make(chan *ClientMessage, 256),
		leaveChan: make(chan *Client, 256),
		cmdChan:   make(chan *ClientMessage, 256),
		clients:   make(map[*Client]struct{}),
		log:       ps.log,
		exit:      make(chan struct{}),
		done:      make(chan struct{}),
	}

	ps.rooms[room.id] = room
	ps.stats.Incr(statActiveRooms)
	go room.start()

	return room, nil
}

func (ps *PokerServer) roomLoadError(c *Client, msgId int, err error) {
	if errors.Is(err, sql.ErrNoRows) {
		c.queueMessage(ErrRoomNotFound(msgId))
		return
	}

	ps.log.Println("GetRoom:", err)
	c.queueMessage(ErrInternalError(msgId))
}

func (ps *PokerServer) unloadRoom(roomId string) {
	r, ok := ps.rooms[roomId]
	if !ok {
		return
	}

	ps.log.Printf("unloading room %q", roomId)
	delete(ps.rooms, roomId)
	close(r.exit)
	<-r.done
	ps.stats.Decr(statActiveRooms)
}

// RegisterClient hands a freshly upgraded connection to the run loop.
func (ps *PokerServer) RegisterClient(c *Client) {
	ps.RegisterChan <- c
}

func (ps *PokerServer) addClient(c *Client) {
	ps.clientsLock.Lock()
	defer ps.clientsLock.Unlock()
	ps.clients[c] = struct{}{}
}

func (ps *PokerServer) removeClient(c *Client) {
	ps.clientsLock.Lock()
	defer ps.clientsLock.Unlock()
	delete(ps.clients, c)
}

func (ps *PokerServer) Shutdown(ctx context.Context) error {
	ps.log.Println("received shutdown signal")

	ps.clientsLock.Lock()
	for c := range ps.clients {
		c.stopClient()
	}
	ps.clientsLock.Unlock()

	close(ps.stop)

	select {
	case <-ps.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
