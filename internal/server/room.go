package server

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/npezzotti/go-pokerplan/internal/database"
	"github.com/npezzotti/go-pokerplan/internal/types"
)

const idleRoomTimeout = time.Minute

// Room is the per-room actor. All state transitions for one room, vote
// lifecycle included, run on its goroutine in arrival order.
type Room struct {
	id         string
	name       string
	cs         *PokerServer
	joinChan   chan *ClientMessage
	leaveChan  chan *Client
	cmdChan    chan *ClientMessage
	clients    map[*Client]struct{}
	clientLock sync.RWMutex
	log        *log.Logger
	// killTimer unloads the room actor once the last connection is gone
	killTimer *time.Timer
	// exit signals the room to shut down
	exit chan struct{}
	done chan struct{}
}

func (r *Room) start() {
	r.log.Printf("starting room %q", r.id)
	r.killTimer = time.NewTimer(idleRoomTimeout)

	for {
		select {
		case join := <-r.joinChan:
			r.handleJoin(join)
		case client := <-r.leaveChan:
			r.handleLeave(client)
		case msg := <-r.cmdChan:
			switch {
			case msg.SetAdmin != nil:
				r.handleSetAdmin(msg)
			case msg.StartVote != nil:
				r.handleStartVote(msg)
			case msg.SubmitVote != nil:
				r.handleSubmitVote(msg)
			case msg.RevealVotes != nil:
				r.handleRevealVotes(msg)
			}
		case <-r.killTimer.C:
			r.handleRoomTimeout()
		case <-r.exit:
			r.handleRoomExit()
			return
		}
	}
}

func (r *Room) handleRoomTimeout() {
	r.log.Printf("room %q timed out", r.id)
	select {
	case r.cs.unloadRoomChan <- r.id:
	default:
		r.log.Printf("unload channel full, retrying room %q later", r.id)
		r.killTimer.Reset(idleRoomTimeout)
	}
}

func (r *Room) handleRoomExit() {
	r.log.Printf("room %q is exiting", r.id)

	r.clientLock.Lock()
	for c := range r.clients {
		c.setRoom(nil)
		delete(r.clients, c)
	}
	r.clientLock.Unlock()

	close(r.done)
}

// handleJoin registers the connection in the room's live set. The user must
// exist in the store; durable participation is the HTTP join's job.
func (r *Room) handleJoin(join *ClientMessage) {
	r.killTimer.Stop()

	c := join.client
	user, err := r.cs.db.GetUserById(join.Join.UserId)
	if err != nil {
		r.log.Println("GetUserById:", err)
		if r.clientCount() == 0 {
			r.killTimer.Reset(idleRoomTimeout)
		}
		c.queueMessage(ErrUserNotFound(join.Id))
		return
	}

	c.setUser(types.User{
		Id:        user.Id,
		Name:      user.Name,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	})
	c.setRoom(r)
	r.addClient(c)

	// everyone else learns about the new participant
	profile := c.getUser()
	r.broadcast(&ServerMessage{
		Notification: &Notification{
			UserJoined: &profile,
		},
		SkipClient: c,
	})

	c.queueMessage(&ServerMessage{
		BaseMessage: BaseMessage{
			Id:        join.Id,
			Timestamp: Now(),
		},
		Notification: &Notification{
			RoomJoined: &RoomJoined{RoomId: r.id},
		},
	})
}

func (r *Room) handleLeave(c *Client) {
	if !r.removeClient(c) {
		return
	}
	c.setRoom(nil)

	// remaining members see the last-known profile
	profile := c.getUser()
	r.broadcast(&ServerMessage{
		Notification: &Notification{
			UserLeft: &profile,
		},
	})
}

// handleSetAdmin transfers adminship. The requester must be the room's
// creator or its current admin; one room read checks both.
func (r *Room) handleSetAdmin(msg *ClientMessage) {
	c := msg.client
	cmd := msg.SetAdmin

	room, err := r.cs.db.GetRoom(r.id)
	if err != nil {
		r.log.Println("GetRoom:", err)
		c.queueMessage(ErrInternalError(msg.Id))
		return
	}

	if cmd.RequesterId != room.CreatorId && cmd.RequesterId != room.AdminId {
		c.queueMessage(ErrNotAuthorized(msg.Id, "set admin"))
		return
	}

	if err := r.cs.db.UpdateRoomAdmin(r.id, cmd.NewAdminId); err != nil {
		r.log.Println("UpdateRoomAdmin:", err)
		c.queueMessage(ErrInternalError(msg.Id))
		return
	}

	// requester included
	r.broadcast(&ServerMessage{
		Notification: &Notification{
			AdminChanged: &AdminChanged{NewAdminId: cmd.NewAdminId},
		},
	})
}

// handleStartVote opens a new estimation round. Any active vote is
// deactivated unconditionally, a never-revealed one is simply superseded.
func (r *Room) handleStartVote(msg *ClientMessage) {
	c := msg.client
	cmd := msg.StartVote

	room, err := r.cs.db.GetRoom(r.id)
	if err != nil {
		r.log.Println("GetRoom:", err)
		c.queueMessage(ErrInternalError(msg.Id))
		return
	}

	if cmd.AdminId != room.AdminId {
		c.queueMessage(ErrNotAuthorized(msg.Id, "start vote"))
		return
	}

	vote, err := r.cs.db.CreateVote(database.CreateVoteParams{
		Id:        uuid.NewString(),
		RoomId:    r.id,
		Name:      cmd.VoteName,
		StartedBy: cmd.AdminId,
	})
	if err != nil {
		r.log.Println("CreateVote:", err)
		c.queueMessage(ErrInternalError(msg.Id))
		return
	}

	r.cs.stats.Incr(statVotesStarted)

	r.broadcast(&ServerMessage{
		Notification: &Notification{
			VoteStarted: &VoteStarted{
				Id:        vote.Id,
				Name:      vote.Name,
				StartedBy: vote.StartedBy,
			},
		},
	})
}

// handleSubmitVote records an estimate. The submitted value is never
// echoed to the room, only the fact that this user has voted.
func (r *Room) handleSubmitVote(msg *ClientMessage) {
	c := msg.client
	cmd := msg.SubmitVote

	if !r.cs.cfg.AllowLateVotes {
		vote, err := r.cs.db.GetVoteById(cmd.VoteId)
		if err == nil && vote.RevealedAt.Valid {
			c.queueMessage(ErrVoteRevealed(msg.Id))
			return
		}
	}

	if err := r.cs.db.UpsertVoteResponse(cmd.VoteId, cmd.UserId, cmd.Value); err != nil {
		r.log.Println("UpsertVoteResponse:", err)
		c.queueMessage(ErrInternalError(msg.Id))
		return
	}

	r.cs.stats.Incr(statVotesSubmitted)

	r.broadcast(&ServerMessage{
		Notification: &Notification{
			VoteSubmitted: &VoteSubmitted{UserId: cmd.UserId},
		},
		SkipClient: c,
	})
}

// handleRevealVotes stamps the vote revealed and fans the collected
// responses out to the whole room. Revealing twice only moves the
// timestamp.
func (r *Room) handleRevealVotes(msg *ClientMessage) {
	c := msg.client
	cmd := msg.RevealVotes

	room, err := r.cs.db.GetRoom(r.id)
	if err != nil {
		r.log.Println("GetRoom:", err)
		c.queueMessage(ErrInternalError(msg.Id))
		return
	}

	if cmd.AdminId != room.AdminId {
		c.queueMessage(ErrNotAuthorized(msg.Id, "reveal votes"))
		return
	}

	if err := r.cs.db.RevealVote(cmd.VoteId); err != nil {
		r.log.Println("RevealVote:", err)
		c.queueMessage(ErrInternalError(msg.Id))
		return
	}

	dbResponses, err := r.cs.db.GetVoteResponses(cmd.VoteId)
	if err != nil {
		r.log.Println("GetVoteResponses:", err)
		c.queueMessage(ErrInternalError(msg.Id))
		return
	}

	responses := make([]types.VoteResponse, len(dbResponses))
	for i, vr := range dbResponses {
		responses[i] = types.VoteResponse{
			VoteId:      vr.VoteId,
			UserId:      vr.UserId,
			Value:       vr.Value,
			SubmittedAt: vr.SubmittedAt,
			UserName:    vr.UserName,
		}
	}

	r.cs.stats.Incr(statVotesRevealed)

	r.broadcast(&ServerMessage{
		Notification: &Notification{
			VotesRevealed: &VotesRevealed{
				VoteId:    cmd.VoteId,
				Responses: responses,
			},
		},
	})
}

func (r *Room) addClient(c *Client) {
	r.clientLock.Lock()
	defer r.clientLock.Unlock()

	r.clients[c] = struct{}{}
}

func (r *Room) removeClient(c *Client) bool {
	r.clientLock.Lock()
	defer r.clientLock.Unlock()

	if _, ok := r.clients[c]; !ok {
		r.log.Printf("session %q not found in room %q", c.sessionId, r.id)
		return false
	}

	delete(r.clients, c)

	if len(r.clients) == 0 {
		r.log.Printf("no clients in %q, starting kill timer", r.id)
		r.killTimer.Reset(idleRoomTimeout)
	}

	return true
}

func (r *Room) clientCount() int {
	r.clientLock.RLock()
	defer r.clientLock.RUnlock()
	return len(r.clients)
}

func (r *Room) broadcast(msg *ServerMessage) {
	msg.Timestamp = Now()

	r.clientLock.RLock()
	defer r.clientLock.RUnlock()

	for client := range r.clients {
		if client == msg.SkipClient {
			continue
		}

		client.queueMessage(msg)
	}
}
