package server

import (
	"net/http"
	"time"

	"github.com/npezzotti/go-pokerplan/internal/types"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage is the inbound envelope. Exactly one command field is set.
type ClientMessage struct {
	BaseMessage
	Join        *JoinRoom    `json:"join_room,omitempty"`
	SetAdmin    *SetAdmin    `json:"set_admin,omitempty"`
	StartVote   *StartVote   `json:"start_vote,omitempty"`
	SubmitVote  *SubmitVote  `json:"submit_vote,omitempty"`
	RevealVotes *RevealVotes `json:"reveal_votes,omitempty"`
	client      *Client
}

type JoinRoom struct {
	UserId string `json:"user_id"`
	RoomId string `json:"room_id"`
}

type SetAdmin struct {
	RoomId      string `json:"room_id"`
	NewAdminId  string `json:"new_admin_id"`
	RequesterId string `json:"requester_id"`
}

type StartVote struct {
	RoomId   string `json:"room_id"`
	VoteName string `json:"vote_name"`
	AdminId  string `json:"admin_id"`
}

type SubmitVote struct {
	VoteId string `json:"vote_id"`
	UserId string `json:"user_id"`
	Value  string `json:"value"`
}

type RevealVotes struct {
	VoteId  string `json:"vote_id"`
	AdminId string `json:"admin_id"`
	RoomId  string `json:"room_id"`
}

type ServerMessage struct {
	BaseMessage
	Response     *Response     `json:"response,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
	SkipClient   *Client       `json:"-"`
}

type Response struct {
	ResponseCode int            `json:"response_code"`
	Error        string         `json:"error,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}

type Notification struct {
	RoomJoined    *RoomJoined    `json:"room_joined,omitempty"`
	UserJoined    *types.User    `json:"user_joined,omitempty"`
	UserLeft      *types.User    `json:"user_left,omitempty"`
	AdminChanged  *AdminChanged  `json:"admin_changed,omitempty"`
	VoteStarted   *VoteStarted   `json:"vote_started,omitempty"`
	VoteSubmitted *VoteSubmitted `json:"vote_submitted,omitempty"`
	VotesRevealed *VotesRevealed `json:"votes_revealed,omitempty"`
}

type RoomJoined struct {
	RoomId string `json:"room_id"`
}

type AdminChanged struct {
	NewAdminId string `json:"new_admin_id"`
}

type VoteStarted struct {
	Id        string `json:"id"`
	Name      string `json:"name"`
	StartedBy string `json:"started_by"`
}

// VoteSubmitted deliberately carries no value field. Estimates stay hidden
// until the admin reveals the vote.
type VoteSubmitted struct {
	UserId string `json:"user_id"`
}

type VotesRevealed struct {
	VoteId    string               `json:"vote_id"`
	Responses []types.VoteResponse `json:"responses"`
}

func NoErrOK(id int, data map[string]any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func ErrRoomNotFound(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusNotFound,
			Error:        "room not found",
		},
	}
}

func ErrUserNotFound(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusNotFound,
			Error:        "user not found",
		},
	}
}

func ErrNotAuthorized(id int, action string) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusForbidden,
			Error:        "not authorized to " + action,
		},
	}
}

func ErrVoteRevealed(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusConflict,
			Error:        "vote already revealed",
		},
	}
}

func ErrInternalError(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusInternalServerError,
			Error:        "internal server error",
		},
	}
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusServiceUnavailable,
			Error:        "service unavailable",
		},
	}
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "invalid message format",
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
