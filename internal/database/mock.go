package database

import (
	"github.com/stretchr/testify/mock"
)

type MockPokerRepository struct {
	mock.Mock
}

func (m *MockPokerRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockPokerRepository) UpsertUser(params UpsertUserParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockPokerRepository) GetUserById(userId string) (User, error) {
	args := m.Called(userId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockPokerRepository) CreateRoom(params CreateRoomParams) (Room, error) {
	args := m.Called(params)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockPokerRepository) GetRoom(roomId string) (Room, error) {
	args := m.Called(roomId)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockPokerRepository) AddParticipant(roomId, userId string) error {
	args := m.Called(roomId, userId)
	return args.Error(0)
}
func (m *MockPokerRepository) GetParticipants(roomId string) ([]Participant, error) {
	args := m.Called(roomId)
	return args.Get(0).([]Participant), args.Error(1)
}
func (m *MockPokerRepository) UpdateRoomAdmin(roomId, newAdminId string) error {
	args := m.Called(roomId, newAdminId)
	return args.Error(0)
}
func (m *MockPokerRepository) CreateVote(params CreateVoteParams) (Vote, error) {
	args := m.Called(params)
	return args.Get(0).(Vote), args.Error(1)
}
func (m *MockPokerRepository) GetActiveVote(roomId string) (*Vote, error) {
	args := m.Called(roomId)
	if vote, ok := args.Get(0).(*Vote); ok {
		return vote, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockPokerRepository) GetVoteById(voteId string) (Vote, error) {
	args := m.Called(voteId)
	return args.Get(0).(Vote), args.Error(1)
}
func (m *MockPokerRepository) UpsertVoteResponse(voteId, userId, value string) error {
	args := m.Called(voteId, userId, value)
	return args.Error(0)
}
func (m *MockPokerRepository) RevealVote(voteId string) error {
	args := m.Called(voteId)
	return args.Error(0)
}
func (m *MockPokerRepository) GetVoteResponses(voteId string) ([]VoteResponse, error) {
	args := m.Called(voteId)
	return args.Get(0).([]VoteResponse), args.Error(1)
}
