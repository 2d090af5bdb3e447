package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-pokerplan/internal/database"
	"github.com/npezzotti/go-pokerplan/internal/server"
	"github.com/npezzotti/go-pokerplan/internal/types"
)

type CreateRoomRequest struct {
	UserId    string `json:"userId"`
	RoomName  string `json:"roomName"`
	UserName  string `json:"userName"`
	UserEmail string `json:"userEmail"`
}

type JoinRoomRequest struct {
	UserId    string `json:"userId"`
	UserName  string `json:"userName"`
	UserEmail string `json:"userEmail"`
}

type RoomResponse struct {
	Room types.Room `json:"room"`
}

func (s *PokerApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *PokerApp) createRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.UserId == "" || req.RoomName == "" || req.UserName == "" || req.UserEmail == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	// callers bring their own user record, replace-on-conflict
	if _, err := s.db.UpsertUser(database.UpsertUserParams{
		Id:    req.UserId,
		Email: req.UserEmail,
		Name:  req.UserName,
	}); err != nil {
		s.log.Println("UpsertUser:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	code, err := s.generateRoomCode()
	if err != nil {
		s.log.Println("generateRoomCode:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	newRoom, err := s.db.CreateRoom(database.CreateRoomParams{
		Id:        code,
		Name:      req.RoomName,
		CreatorId: req.UserId,
	})
	if err != nil {
		s.log.Println("CreateRoom:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, RoomResponse{
		Room: types.Room{
			Id:        newRoom.Id,
			Name:      newRoom.Name,
			CreatorId: newRoom.CreatorId,
			AdminId:   newRoom.AdminId,
			CreatedAt: newRoom.CreatedAt,
		},
	})
}

func (s *PokerApp) joinRoom(w http.ResponseWriter, r *http.Request) {
	roomId := r.PathValue("roomId")

	var req JoinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.UserId == "" || req.UserName == "" || req.UserEmail == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if _, err := s.db.UpsertUser(database.UpsertUserParams{
		Id:    req.UserId,
		Email: req.UserEmail,
		Name:  req.UserName,
	}); err != nil {
		s.log.Println("UpsertUser:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	room, err := s.db.GetRoom(roomId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	// membership is idempotent, rejoining is a no-op
	if err := s.db.AddParticipant(roomId, req.UserId); err != nil {
		s.log.Println("AddParticipant:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, RoomResponse{
		Room: types.Room{
			Id:        room.Id,
			Name:      room.Name,
			CreatorId: room.CreatorId,
			AdminId:   room.AdminId,
			AdminName: room.AdminName,
			CreatedAt: room.CreatedAt,
		},
	})
}

func (s *PokerApp) getRoom(w http.ResponseWriter, r *http.Request) {
	roomId := r.PathValue("roomId")

	room, err := s.db.GetRoom(roomId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbParticipants, err := s.db.GetParticipants(roomId)
	if err != nil {
		s.log.Println("GetParticipants:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	participants := make([]types.Participant, len(dbParticipants))
	for i, p := range dbParticipants {
		participants[i] = types.Participant{
			Id:       p.UserId,
			Name:     p.Name,
			Email:    p.Email,
			JoinedAt: p.JoinedAt,
		}
	}

	state := types.RoomState{
		Room: types.Room{
			Id:        room.Id,
			Name:      room.Name,
			CreatorId: room.CreatorId,
			AdminId:   room.AdminId,
			AdminName: room.AdminName,
			CreatedAt: room.CreatedAt,
		},
		Participants:   participants,
		VoteResponses:  make([]types.VoteResponse, 0),
		EstimateValues: types.EstimateValues,
	}

	vote, err := s.db.GetActiveVote(roomId)
	if err != nil {
		s.log.Println("GetActiveVote:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if vote != nil {
		state.CurrentVote = &types.Vote{
			Id:            vote.Id,
			RoomId:        vote.RoomId,
			Name:          vote.Name,
			StartedBy:     vote.StartedBy,
			StartedByName: vote.StartedByName,
			StartedAt:     vote.StartedAt,
			IsActive:      vote.IsActive,
		}
		if vote.RevealedAt.Valid {
			t := vote.RevealedAt.Time
			state.CurrentVote.RevealedAt = &t
		}

		dbResponses, err := s.db.GetVoteResponses(vote.Id)
		if err != nil {
			s.log.Println("GetVoteResponses:", err)
			errResp := NewInternalServerError(err)
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		for _, vr := range dbResponses {
			state.VoteResponses = append(state.VoteResponses, types.VoteResponse{
				VoteId:      vr.VoteId,
				UserId:      vr.UserId,
				Value:       vr.Value,
				SubmittedAt: vr.SubmittedAt,
				UserName:    vr.UserName,
			})
		}
	}

	s.writeJson(w, http.StatusOK, state)
}

func (s *PokerApp) serveWs(w http.ResponseWriter, r *http.Request) {
	sessionId, err := s.generateSessionId()
	if err != nil {
		s.log.Println("generateSessionId:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// only allow connections from allowed origins
			origin := r.Header.Get("Origin")
			if origin == "" {
				// if no origin header, allow the request
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(sessionId, conn, s.ps, s.log)

	s.ps.RegisterClient(client)
	go client.Write()
	go client.Read()
}
