package server

import (
	"database/sql"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/npezzotti/go-pokerplan/internal/database"
	"github.com/npezzotti/go-pokerplan/internal/stats"
	"github.com/npezzotti/go-pokerplan/internal/testutil"
	"github.com/npezzotti/go-pokerplan/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newTestRoom(t *testing.T, ps *PokerServer) *Room {
	t.Helper()
	return &Room{
		id:        "123",
		name:      "Sprint 1",
		cs:        ps,
		joinChan:  make(chan *ClientMessage, 16),
		leaveChan: make(chan *Client, 16),
		cmdChan:   make(chan *ClientMessage, 16),
		clients:   make(map[*Client]struct{}),
		log:       testutil.TestLogger(t),
		killTimer: time.NewTimer(time.Hour),
		exit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func newTestClient(t *testing.T, sessionId string) *Client {
	t.Helper()
	return &Client{
		sessionId: sessionId,
		send:      make(chan *ServerMessage, 16),
		log:       testutil.TestLogger(t),
	}
}

func recvMessage(t *testing.T, c *Client) *ServerMessage {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	default:
		t.Fatalf("expected a message queued for session %q, but none was", c.sessionId)
		return nil
	}
}

func assertNoMessage(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.send:
		t.Fatalf("expected no message queued for session %q, got %+v", c.sessionId, msg)
	default:
	}
}

func Test_addClient_removeClient(t *testing.T) {
	mockRepo := &database.MockPokerRepository{}
	su := &stats.MockStatsUpdater{}
	room := newTestRoom(t, newTestPokerServer(t, mockRepo, su))

	c := newTestClient(t, "s1")
	room.addClient(c)
	assert.Equal(t, 1, room.clientCount(), "expected 1 client after adding")
	assert.Contains(t, room.clients, c, "expected room.clients to contain client")

	// removing the last client arms the kill timer
	room.killTimer.Stop()
	assert.True(t, room.removeClient(c), "expected removal of a present client to succeed")
	assert.Equal(t, 0, room.clientCount(), "expected 0 clients after removal")
	assert.True(t, room.killTimer.Stop(), "expected kill timer to be armed once the room is empty")

	assert.False(t, room.removeClient(c), "expected removal of an absent client to fail")
}

func Test_handleRoomTimeout(t *testing.T) {
	t.Run("successfully requests unload", func(t *testing.T) {
		mockRepo := &database.MockPokerRepository{}
		su := &stats.MockStatsUpdater{}
		room := newTestRoom(t, newTestPokerServer(t, mockRepo, su))

		room.handleRoomTimeout()
		select {
		case id := <-room.cs.unloadRoomChan:
			assert.Equal(t, "123", id, "expected room id to match")
		default:
			t.Error("expected an unload request to be sent")
		}
	})
	t.Run("unload channel full", func(t *testing.T) {
		mockRepo := &database.MockPokerRepository{}
		su := &stats.MockStatsUpdater{}
		room := newTestRoom(t, newTestPokerServer(t, mockRepo, su))
		room.killTimer.Stop()

		room.cs.unloadRoomChan = make(chan string, 1)
		room.cs.unloadRoomChan <- "another-room" // Fill the channel

		room.handleRoomTimeout()
		assert.True(t, room.killTimer.Stop(), "expected kill timer to be rearmed after failed unload request")
	})
}

func Test_handleRoomExit(t *testing.T) {
	mockRepo := &database.MockPokerRepository{}
	su := &stats.MockStatsUpdater{}
	room := newTestRoom(t, newTestPokerServer(t, mockRepo, su))

	c := newTestClient(t, "s1")
	c.setRoom(room)
	room.addClient(c)

	room.handleRoomExit()

	assert.Equal(t, 0, room.clientCount(), "expected all clients to be removed")
	assert.Nil(t, c.getRoom(), "expected client room to be cleared")
	select {
	case <-room.done:
	default:
		t.Error("expected done channel to be closed")
	}
}

func Test_handleJoin(t *testing.T) {
	t.Run("successful join", func(t *testing.T) {
		mockRepo := &database.MockPokerRepository{}
		defer mockRepo.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		room := newTestRoom(t, newTestPokerServer(t, mockRepo, su))

		mockRepo.On("GetUserById", "u2").Return(database.User{
			Id: "u2", Name: "Bob", Email: "bob@example.com",
		}, nil).Once()

		other := newTestClient(t, "s1")
		room.addClient(other)

		joiner := newTestClient(t, "s2")
		room.handleJoin(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1},
			Join:        &JoinRoom{UserId: "u2", RoomId: "123"},
			client:      joiner,
		})

		assert.Equal(t, room, joiner.getRoom(), "expected joiner to be attached to the room")
		assert.Equal(t, "Bob", joiner.getUser().Name, "expected joiner profile to be loaded")
		assert.Equal(t, 2, room.clientCount(), "expected 2 clients in the room")

		msg := recvMessage(t, joiner)
		assert.Equal(t, 1, msg.Id, "expected reply id to match the request")
		assert.NotNil(t, msg.Notification.RoomJoined, "expected a room_joined notification")
		assert.Equal(t, "123", msg.Notification.RoomJoined.RoomId, "expected room id to match")

		broadcastMsg := recvMessage(t, other)
		assert.NotNil(t, broadcastMsg.Notification.UserJoined, "expected a user_joined broadcast")
		assert.Equal(t, "u2", broadcastMsg.Notification.UserJoined.Id, "expected joiner id in broadcast")
		assertNoMessage(t, joiner) // joiner is not told about itself
	})
	t.Run("user not found", func(t *testing.T) {
		mockRepo := &database.MockPokerRepository{}
		defer mockRepo.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		room := newTestRoom(t, newTestPokerServer(t, mockRepo, su))

		mockRepo.On("GetUserById", "missing").Return(database.User{}, sql.ErrNoRows).Once()

		joiner := newTestClient(t, "s1")
		room.handleJoin(&ClientMessage{
			BaseMessage: BaseMessage{Id: 2},
			Join:        &JoinRoom{UserId: "missing", RoomId: "123"},
			client:      joiner,
		})

		assert.Nil(t, joiner.getRoom(), "expected joiner not to be attached")
		msg := recvMessage(t, joiner)
		assert.Equal(t, http.StatusNotFound, msg.Response.ResponseCode, "expected 404 response")
		assert.Equal(t, "user not found", msg.Response.Error, "expected error string to match")
		assert.True(t, room.killTimer.Stop(), "expected kill timer to be rearmed with the room still empty")
	})
}

func Test_handleLeave(t *testing.T) {
	mockRepo := &database.MockPokerRepository{}
	su := &stats.MockStatsUpdater{}
	room := newTestRoom(t, newTestPokerServer(t, mockRepo, su))

	leaver := newTestClient(t, "s1")
	leaver.setUser(types.User{Id: "u1", Name: "Alice"})
	leaver.setRoom(room)
	room.addClient(leaver)

	other := newTestClient(t, "s2")
	room.addClient(other)

	room.handleLeave(leaver)

	assert.Nil(t, leaver.getRoom(), "expected leaver room to be cleared")
	assert.Equal(t, 1, room.clientCount(), "expected 1 client left in the room")

	msg := recvMessage(t, other)
	assert.NotNil(t, msg.Notification.UserLeft, "expected a user_left broadcast")
	assert.Equal(t, "u1", msg.Notification.UserLeft.Id, "expected leaver id in broadcast")

	// leaving a room the client is not in is a no-op
	room.handleLeave(leaver)
	assertNoMessage(t, other)
}

func Test_handleSetAdmin(t *testing.T) {
	mockRoom := database.Room{Id: "123", Name: "Sprint 1", CreatorId: "u1", AdminId: "u1"}

	t.Run("creator promotes another user", func(t *testing.T) {
		mockRepo := &database.MockPokerRepository{}
		defer mockRepo.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		room := newTestRoom(t, newTestPokerServer(t, mockRepo, su))

		mockRepo.On("GetRoom", "123").Return(mockRoom, nil).Once()
		mockRepo.On("UpdateRoomAdmin", "123", "u2").Return(nil).Once()

		requester := newTestClient(t, "s1")
		room.addClient(requester)
		other := newTestClient(t, "s2")
		room.addClient(other)

		room.handleSetAdmin(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1},
			SetAdmin:    &SetAdmin{RoomId: "123", NewAdminId: "u2", RequesterId: "u1"},
			client:      requester,
		})

		// admin changes go to the whole room, requester included
		for _, c := range []*Client{requester, other} {
			msg := recvMessage(t, c)
			assert.NotNil(t, msg.Notification.AdminChanged, "expected an admin_changed broadcast")
			assert.Equal(t, "u2", msg.Notification.AdminChanged.NewAdminId, "expected new admin id in broadcast")
		}
	})
	t.Run("requester not creator or admin", func(t *testing.T) {
		mockRepo := &database.MockPokerRepository{}
		defer mockRepo.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		room := newTestRoom(t, newTestPokerServer(t, mockRepo, su))

		mockRepo.On("GetRoom", "123").Return(mockRoom, nil).Once()

		requester := newTestClient(t, "s1")
		room.addClient(requester)

		room.handleSetAdmin(&ClientMessage{
			BaseMessage: BaseMessage{Id: 2},
			SetAdmin:    &SetAdmin{RoomId: "123", NewAdminId: "u3", RequesterId: "u3"},
			client:      requester,
		})

		msg := recvMessage(t, requester)
		assert.Equal(t, http.StatusForbidden, msg.Response.ResponseCode, "expected 403 response")
		assert.Equal(t, "not authorized to set admin", msg.Response.Error, "expected error string to match")
		mockRepo.AssertNotCalled(t, "UpdateRoomAdmin", mock.Anything, mock.Anything)
	})
	t.Run("update fails", func(t *testing.T) {
		mockRepo := &database.MockPokerRepository{}
		defer mockRepo.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		room := newTestRoom(t, newTestPokerServer(t, mockRepo, su))

		mockRepo.On("GetRoom", "123").Return(mockRoom, nil).Once()
		mockRepo.On("UpdateRoomAdmin", "123", "u2").Return(errors.New("db error")).Once()

		requester := newTestClient(t, "s1")
		room.addClient(requester)

		room.handleSetAdmin(&ClientMessage{
			BaseMessage: BaseMessage{Id: 3},
			SetAdmin:    &SetAdmin{RoomId: "123", NewAdminId: "u2", RequesterId: "u1"},
			client:      requester,
		})

		msg := recvMessage(t, requester)
		assert.Equal(t, http.StatusInternalServerError, msg.Response.ResponseCode, "expected 500 response")
	})
}

func Test_handleStartVote(t *testing.T) {
	mockRoom := database.Room{Id: "123", Name: "Sprint 1", CreatorId: "u1", AdminId: "u1"}

	t.Run("admin starts a vote", func(t *testing.T) {
		mockRepo := &database.MockPokerRepository{}
		defer mockRepo.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)
		room := newTestRoom(t, newTestPokerServer(t, mockRepo, su))

		mockRepo.On("GetRoom", "123").Return(mockRoom, nil).Once()
		mockRepo.On("CreateVote", mock.MatchedBy(func(params database.CreateVoteParams) bool {
			return params.Id != "" &&
				params.RoomId == "123" &&
				params.Name == "Story 42" &&
				params.StartedBy == "u1"
		})).Return(database.Vote{
			Id: "v1", RoomId: "123", Name: "Story 42", StartedBy: "u1", IsActive: true,
		}, nil).Once()
		su.On("Incr", statVotesStarted).Return().Once()

		admin := newTestClient(t, "s1")
		room.addClient(admin)
		other := newTestClient(t, "s2")
		room.addClient(other)

		room.handleStartVote(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1},
			StartVote:   &StartVote{RoomId: "123", VoteName: "Story 42", AdminId: "u1"},
			client:      admin,
		})

		for _, c := range []*Client{admin, other} {
			msg := recvMessage(t, c)
			assert.NotNil(t, msg.Notification.VoteStarted, "expected a vote_started broadcast")
			assert.Equal(t, "v1", msg.Notification.VoteStarted.Id, "expected vote id in broadcast")
			assert.Equal(t, "Story 42", msg.Notification.VoteStarted.Name, "expected vote name in broadcast")
			assert.Equal(t, "u1", msg.Notification.VoteStarted.StartedBy, "expected starter id in broadcast")
		}
	})
	t.Run("non-admin cannot start a vote", func(t *testing.T) {
		mockRepo := &database.MockPokerRepository{}
		defer mockRepo.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		room := newTestRoom(t, newTestPokerServer(t, mockRepo, su))

		mockRepo.On("GetRoom", "123").Return(mockRoom, nil).Once()

		requester := newTestClient(t, "s1")
		room.addClient(requester)
		other := newTestClient(t, "s2")
		room.addClient(other)

		room.handleStartVote(&ClientMessage{
			BaseMessage: BaseMessage{Id: 2},
			StartVote:   &StartVote{RoomId: "123", VoteName: "Story 42", AdminId: "u2"},
			client:      requester,
		})

		msg := recvMessage(t, requester)
		assert.Equal(t, http.StatusForbidden, msg.Response.ResponseCode, "expected 403 response")
		assert.Equal(t, "not authorized to start vote", msg.Response.Error, "expected error string to match")
		assertNoMessage(t, other) // no broadcast on a rejected command
		mockRepo.AssertNotCalled(t, "CreateVote", mock.Anything)
	})
}

func Test_handleSubmitVote(t *testing.T) {
	t.Run("stores estimate and notifies without the value", func(t *testing.T) {
		mockRepo := &database.MockPokerRepository{}
		defer mockRepo.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		room := newTestRoom(t, newTestPokerServer(t, mockRepo, su))

		mockRepo.On("UpsertVoteResponse", "v1", "u2", "8").Return(nil).Once()
		su.On("Incr", statVotesSubmitted).Return().Once()

		submitter := newTestClient(t, "s1")
		room.addClient(submitter)
		other := newTestClient(t, "s2")
		room.addClient(other)

		room.handleSubmitVote(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1},
			SubmitVote:  &SubmitVote{VoteId: "v1", UserId: "u2", Value: "8"},
			client:      submitter,
		})

		msg := recvMessage(t, other)
		assert.NotNil(t, msg.Notification.VoteSubmitted, "expected a vote_submitted broadcast")
		assert.Equal(t, "u2", msg.Notification.VoteSubmitted.UserId, "expected submitter id in broadcast")
		assertNoMessage(t, submitter) // submitter is not echoed its own submission
	})
	t.Run("resubmission reaches the same upsert", func(t *testing.T) {
		mockRepo := &database.MockPokerRepository{}
		defer mockRepo.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		room := newTestRoom(t, newTestPokerServer(t, mockRepo, su))

		mockRepo.On("UpsertVoteResponse", "v1", "u2", "8").Return(nil).Once()
		mockRepo.On("UpsertVoteResponse", "v1", "u2", "13").Return(nil).Once()
		su.On("Incr", statVotesSubmitted).Return().Twice()

		submitter := newTestClient(t, "s1")
		room.addClient(submitter)

		for _, value := range []string{"8", "13"} {
			room.handleSubmitVote(&ClientMessage{
				SubmitVote: &SubmitVote{VoteId: "v1", UserId: "u2", Value: value},
				client:     submitter,
			})
		}
	})
	t.Run("late submission allowed by default", func(t *testing.T) {
		mockRepo := &database.MockPokerRepository{}
		defer mockRepo.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		room := newTestRoom(t, newTestPokerServer(t, mockRepo, su))

		mockRepo.On("UpsertVoteResponse", "v1", "u2", "5").Return(nil).Once()
		su.On("Incr", statVotesSubmitted).Return().Once()

		submitter := newTestClient(t, "s1")
		room.addClient(submitter)

		room.handleSubmitVote(&ClientMessage{
			SubmitVote: &SubmitVote{VoteId: "v1", UserId: "u2", Value: "5"},
			client:     submitter,
		})

		// revealed-state lookup is skipped entirely when late votes are allowed
		mockRepo.AssertNotCalled(t, "GetVoteById", mock.Anything)
	})
	t.Run("late submission rejected when disabled", func(t *testing.T) {
		mockRepo := &database.MockPokerRepository{}
		defer mockRepo.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		ps := newTestPokerServer(t, mockRepo, su)
		ps.cfg.AllowLateVotes = false
		room := newTestRoom(t, ps)

		mockRepo.On("GetVoteById", "v1").Return(database.Vote{
			Id: "v1", RoomId: "123",
			RevealedAt: sql.NullTime{Time: time.Now(), Valid: true},
		}, nil).Once()

		submitter := newTestClient(t, "s1")
		room.addClient(submitter)

		room.handleSubmitVote(&ClientMessage{
			BaseMessage: BaseMessage{Id: 4},
			SubmitVote:  &SubmitVote{VoteId: "v1", UserId: "u2", Value: "5"},
			client:      submitter,
		})

		msg := recvMessage(t, submitter)
		assert.Equal(t, http.StatusConflict, msg.Response.ResponseCode, "expected 409 response")
		assert.Equal(t, "vote already revealed", msg.Response.Error, "expected error string to match")
		mockRepo.AssertNotCalled(t, "UpsertVoteResponse", mock.Anything, mock.Anything, mock.Anything)
	})
}

func Test_handleRevealVotes(t *testing.T) {
	mockRoom := database.Room{Id: "123", Name: "Sprint 1", CreatorId: "u1", AdminId: "u1"}
	now := time.Now().UTC()

	t.Run("admin reveals collected responses", func(t *testing.T) {
		mockRepo := &database.MockPokerRepository{}
		defer mockRepo.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)
		room := newTestRoom(t, newTestPokerServer(t, mockRepo, su))

		mockRepo.On("GetRoom", "123").Return(mockRoom, nil).Once()
		mockRepo.On("RevealVote", "v1").Return(nil).Once()
		mockRepo.On("GetVoteResponses", "v1").Return([]database.VoteResponse{
			{VoteId: "v1", UserId: "u1", Value: "5", SubmittedAt: now, UserName: "Alice"},
			{VoteId: "v1", UserId: "u2", Value: "8", SubmittedAt: now, UserName: "Bob"},
		}, nil).Once()
		su.On("Incr", statVotesRevealed).Return().Once()

		admin := newTestClient(t, "s1")
		room.addClient(admin)
		other := newTestClient(t, "s2")
		room.addClient(other)

		room.handleRevealVotes(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1},
			RevealVotes: &RevealVotes{VoteId: "v1", AdminId: "u1", RoomId: "123"},
			client:      admin,
		})

		for _, c := range []*Client{admin, other} {
			msg := recvMessage(t, c)
			assert.NotNil(t, msg.Notification.VotesRevealed, "expected a votes_revealed broadcast")
			assert.Equal(t, "v1", msg.Notification.VotesRevealed.VoteId, "expected vote id in broadcast")
			assert.Len(t, msg.Notification.VotesRevealed.Responses, 2, "expected both responses")
			assert.Equal(t, "5", msg.Notification.VotesRevealed.Responses[0].Value, "expected estimate in reveal")
			assert.Equal(t, "Bob", msg.Notification.VotesRevealed.Responses[1].UserName, "expected submitter name in reveal")
		}
	})
	t.Run("non-admin cannot reveal", func(t *testing.T) {
		mockRepo := &database.MockPokerRepository{}
		defer mockRepo.AssertExpectations(t)
		su := &stats.MockStatsUpdater{}
		room := newTestRoom(t, newTestPokerServer(t, mockRepo, su))

		mockRepo.On("GetRoom", "123").Return(mockRoom, nil).Once()

		requester := newTestClient(t, "s1")
		room.addClient(requester)

		room.handleRevealVotes(&ClientMessage{
			BaseMessage: BaseMessage{Id: 2},
			RevealVotes: &RevealVotes{VoteId: "v1", AdminId: "u2", RoomId: "123"},
			client:      requester,
		})

		msg := recvMessage(t, requester)
		assert.Equal(t, http.StatusForbidden, msg.Response.ResponseCode, "expected 403 response")
		assert.Equal(t, "not authorized to reveal votes", msg.Response.Error, "expected error string to match")
		mockRepo.AssertNotCalled(t, "RevealVote", mock.Anything)
	})
}

// drainMessages empties a client's send queue and returns everything queued.
func drainMessages(c *Client) []*ServerMessage {
	var msgs []*ServerMessage
	for {
		select {
		case msg := <-c.send:
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
}

func Test_voteLifecycle(t *testing.T) {
	now := time.Now().UTC()
	mockRepo := &database.MockPokerRepository{}
	defer mockRepo.AssertExpectations(t)
	su := &stats.MockStatsUpdater{}
	room := newTestRoom(t, newTestPokerServer(t, mockRepo, su))

	su.On("Incr", mock.Anything).Return()

	mockRepo.On("GetUserById", "u1").Return(database.User{Id: "u1", Name: "Alice"}, nil).Once()
	mockRepo.On("GetUserById", "u2").Return(database.User{Id: "u2", Name: "Bob"}, nil).Once()
	mockRepo.On("GetRoom", "123").Return(database.Room{
		Id: "123", Name: "Sprint 1", CreatorId: "u1", AdminId: "u1",
	}, nil).Twice()
	mockRepo.On("CreateVote", mock.Anything).Return(database.Vote{
		Id: "v1", RoomId: "123", Name: "Story 42", StartedBy: "u1", IsActive: true,
	}, nil).Once()
	mockRepo.On("UpsertVoteResponse", "v1", "u2", "8").Return(nil).Once()
	mockRepo.On("RevealVote", "v1").Return(nil).Once()
	mockRepo.On("GetVoteResponses", "v1").Return([]database.VoteResponse{
		{VoteId: "v1", UserId: "u2", Value: "8", SubmittedAt: now, UserName: "Bob"},
	}, nil).Once()

	alice := newTestClient(t, "s1")
	bob := newTestClient(t, "s2")

	room.handleJoin(&ClientMessage{Join: &JoinRoom{UserId: "u1", RoomId: "123"}, client: alice})
	room.handleJoin(&ClientMessage{Join: &JoinRoom{UserId: "u2", RoomId: "123"}, client: bob})
	drainMessages(alice)
	drainMessages(bob)

	room.handleStartVote(&ClientMessage{
		StartVote: &StartVote{RoomId: "123", VoteName: "Story 42", AdminId: "u1"},
		client:    alice,
	})

	for _, c := range []*Client{alice, bob} {
		msgs := drainMessages(c)
		assert.Len(t, msgs, 1, "expected one vote_started broadcast")
		assert.NotNil(t, msgs[0].Notification.VoteStarted, "expected vote_started notification")
	}

	room.handleSubmitVote(&ClientMessage{
		SubmitVote: &SubmitVote{VoteId: "v1", UserId: "u2", Value: "8"},
		client:     bob,
	})

	// alice learns u2 voted but never the value
	aliceMsgs := drainMessages(alice)
	assert.Len(t, aliceMsgs, 1, "expected one vote_submitted broadcast")
	assert.Equal(t, "u2", aliceMsgs[0].Notification.VoteSubmitted.UserId, "expected submitter id")
	assert.Empty(t, drainMessages(bob), "expected no echo to the submitter")

	room.handleRevealVotes(&ClientMessage{
		RevealVotes: &RevealVotes{VoteId: "v1", AdminId: "u1", RoomId: "123"},
		client:      alice,
	})

	for _, c := range []*Client{alice, bob} {
		msgs := drainMessages(c)
		assert.Len(t, msgs, 1, "expected one votes_revealed broadcast")
		revealed := msgs[0].Notification.VotesRevealed
		assert.NotNil(t, revealed, "expected votes_revealed notification")
		assert.Len(t, revealed.Responses, 1, "expected the stored response")
		assert.Equal(t, "8", revealed.Responses[0].Value, "expected the estimate to be visible after reveal")
	}
}

func Test_adminHandoff(t *testing.T) {
	mockRepo := &database.MockPokerRepository{}
	defer mockRepo.AssertExpectations(t)
	su := &stats.MockStatsUpdater{}
	room := newTestRoom(t, newTestPokerServer(t, mockRepo, su))

	su.On("Incr", statVotesStarted).Return().Once()

	// creator hands adminship to u2; subsequent reads see the new admin
	mockRepo.On("GetRoom", "123").Return(database.Room{
		Id: "123", CreatorId: "u1", AdminId: "u1",
	}, nil).Once()
	mockRepo.On("UpdateRoomAdmin", "123", "u2").Return(nil).Once()
	mockRepo.On("GetRoom", "123").Return(database.Room{
		Id: "123", CreatorId: "u1", AdminId: "u2",
	}, nil).Twice()
	mockRepo.On("CreateVote", mock.Anything).Return(database.Vote{
		Id: "v1", RoomId: "123", Name: "Story 42", StartedBy: "u2", IsActive: true,
	}, nil).Once()

	creator := newTestClient(t, "s1")
	newAdmin := newTestClient(t, "s2")
	room.addClient(creator)
	room.addClient(newAdmin)

	room.handleSetAdmin(&ClientMessage{
		SetAdmin: &SetAdmin{RoomId: "123", NewAdminId: "u2", RequesterId: "u1"},
		client:   creator,
	})
	drainMessages(creator)
	drainMessages(newAdmin)

	// the creator is no longer admin and cannot start a vote
	room.handleStartVote(&ClientMessage{
		BaseMessage: BaseMessage{Id: 1},
		StartVote:   &StartVote{RoomId: "123", VoteName: "Story 42", AdminId: "u1"},
		client:      creator,
	})
	msg := recvMessage(t, creator)
	assert.Equal(t, http.StatusForbidden, msg.Response.ResponseCode, "expected 403 for the former admin")

	// the new admin can
	room.handleStartVote(&ClientMessage{
		StartVote: &StartVote{RoomId: "123", VoteName: "Story 42", AdminId: "u2"},
		client:    newAdmin,
	})
	msg = recvMessage(t, newAdmin)
	assert.NotNil(t, msg.Notification.VoteStarted, "expected vote_started broadcast for the new admin")
}

func Test_broadcast(t *testing.T) {
	mockRepo := &database.MockPokerRepository{}
	su := &stats.MockStatsUpdater{}
	room := newTestRoom(t, newTestPokerServer(t, mockRepo, su))

	c1 := newTestClient(t, "s1")
	c2 := newTestClient(t, "s2")
	room.addClient(c1)
	room.addClient(c2)

	room.broadcast(&ServerMessage{
		Notification: &Notification{
			UserJoined: &types.User{Id: "u1"},
		},
		SkipClient: c1,
	})

	msg := recvMessage(t, c2)
	assert.False(t, msg.Timestamp.IsZero(), "expected broadcast timestamp to be set")
	assertNoMessage(t, c1) // skipped client receives nothing
}
