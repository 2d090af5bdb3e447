package types

import (
	"time"
)

type User struct {
	Id        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

type Room struct {
	Id        string    `json:"id"`
	Name      string    `json:"name"`
	CreatorId string    `json:"creator_id"`
	AdminId   string    `json:"admin_id"`
	AdminName string    `json:"admin_name,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

type Participant struct {
	Id       string    `json:"id"`
	Name     string    `json:"name"`
	Email    string    `json:"email,omitempty"`
	JoinedAt time.Time `json:"joined_at"`
}

type Vote struct {
	Id            string     `json:"id"`
	RoomId        string     `json:"room_id"`
	Name          string     `json:"name"`
	StartedBy     string     `json:"started_by"`
	StartedByName string     `json:"started_by_name,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	RevealedAt    *time.Time `json:"revealed_at,omitempty"`
	IsActive      bool       `json:"is_active"`
}

type VoteResponse struct {
	VoteId      string    `json:"vote_id"`
	UserId      string    `json:"user_id"`
	Value       string    `json:"value"`
	SubmittedAt time.Time `json:"submitted_at"`
	UserName    string    `json:"user_name"`
}

// RoomState is the snapshot returned by GET /api/rooms/{roomId}.
type RoomState struct {
	Room           Room           `json:"room"`
	Participants   []Participant  `json:"participants"`
	CurrentVote    *Vote          `json:"currentVote"`
	VoteResponses  []VoteResponse `json:"voteResponses"`
	EstimateValues []string       `json:"estimateValues"`
}

// EstimateValues is the card deck shown to clients. The server stores whatever
// value a client submits, membership in this set is advisory only.
var EstimateValues = []string{"0", "1", "2", "3", "5", "8", "13", "21", "34", "55", "∞", "?"}
