package database

import (
	"database/sql"
	"time"
)

type User struct {
	Id        string
	Email     string
	Name      string
	CreatedAt time.Time
}

type Room struct {
	Id        string
	Name      string
	CreatorId string
	AdminId   string
	AdminName string
	CreatedAt time.Time
}

type Participant struct {
	RoomId   string
	UserId   string
	Name     string
	Email    string
	JoinedAt time.Time
}

type Vote struct {
	Id            string
	RoomId        string
	Name          string
	StartedBy     string
	StartedByName string
	StartedAt     time.Time
	RevealedAt    sql.NullTime
	IsActive      bool
}

type VoteResponse struct {
	VoteId      string
	UserId      string
	Value       string
	SubmittedAt time.Time
	UserName    string
}

type UpsertUserParams struct {
	Id    string
	Email string
	Name  string
}

type CreateRoomParams struct {
	Id        string
	Name      string
	CreatorId string
}

type CreateVoteParams struct {
	Id        string
	RoomId    string
	Name      string
	StartedBy string
}
