package database

type PokerRepository interface {
	Ping() error
	UpsertUser(params UpsertUserParams) (User, error)
	GetUserById(userId string) (User, error)
	CreateRoom(params CreateRoomParams) (Room, error)
	GetRoom(roomId string) (Room, error)
	AddParticipant(roomId, userId string) error
	GetParticipants(roomId string) ([]Participant, error)
	UpdateRoomAdmin(roomId, newAdminId string) error
	CreateVote(params CreateVoteParams) (Vote, error)
	GetActiveVote(roomId string) (*Vote, error)
	GetVoteById(voteId string) (Vote, error)
	UpsertVoteResponse(voteId, userId, value string) error
	RevealVote(voteId string) error
	GetVoteResponses(voteId string) ([]VoteResponse, error)
}
