package database

import (
	"database/sql"
	"fmt"
	"time"
)

const addParticipantQuery = "INSERT INTO room_participants (room_id, user_id, joined_at) " +
	"VALUES ($1, $2, $3) ON CONFLICT (room_id, user_id) DO NOTHING"

func (db *PgPokerRepository) UpsertUser(params UpsertUserParams) (User, error) {
	res := db.conn.QueryRow(
		"INSERT INTO users (id, email, name, created_at) VALUES ($1, $2, $3, $4) "+
			"ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, name = EXCLUDED.name "+
			"RETURNING id, email, name, created_at",
		params.Id,
		params.Email,
		params.Name,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Email,
		&u.Name,
		&u.CreatedAt,
	)

	return u, err
}

func (db *PgPokerRepository) GetUserById(userId string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, email, name, created_at FROM users "+
			"WHERE id = $1 LIMIT 1",
		userId,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Email,
		&user.Name,
		&user.CreatedAt,
	)

	return user, err
}

// CreateRoom inserts the room and the creator's participant row in one
// transaction. The creator starts out as admin.
func (db *PgPokerRepository) CreateRoom(params CreateRoomParams) (Room, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return Room{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res := tx.QueryRow(
		"INSERT INTO rooms (id, name, creator_id, admin_id, created_at) "+
			"VALUES ($1, $2, $3, $3, $4) RETURNING id, name, creator_id, admin_id, created_at",
		params.Id,
		params.Name,
		params.CreatorId,
		time.Now().UTC(),
	)

	var room Room
	err = res.Scan(
		&room.Id,
		&room.Name,
		&room.CreatorId,
		&room.AdminId,
		&room.CreatedAt,
	)
	if err != nil {
		return Room{}, err
	}

	_, err = tx.Exec(
		addParticipantQuery,
		room.Id,
		params.CreatorId,
		time.Now().UTC(),
	)
	if err != nil {
		return Room{}, err
	}

	if err = tx.Commit(); err != nil {
		return Room{}, err
	}

	return room, err
}

func (db *PgPokerRepository) GetRoom(roomId string) (Room, error) {
	row := db.conn.QueryRow(
		"SELECT r.id, r.name, r.creator_id, r.admin_id, u.name AS admin_name, r.created_at "+
			"FROM rooms r JOIN users u ON r.admin_id = u.id "+
			"WHERE r.id = $1 LIMIT 1",
		roomId,
	)

	var room Room
	err := row.Scan(
		&room.Id,
		&room.Name,
		&room.CreatorId,
		&room.AdminId,
		&room.AdminName,
		&room.CreatedAt,
	)

	return room, err
}

func (db *PgPokerRepository) AddParticipant(roomId, userId string) error {
	_, err := db.conn.Exec(
		addParticipantQuery,
		roomId,
		userId,
		time.Now().UTC(),
	)

	return err
}

func (db *PgPokerRepository) GetParticipants(roomId string) ([]Participant, error) {
	rows, err := db.conn.Query(
		"SELECT rp.room_id, u.id, u.name, u.email, rp.joined_at "+
			"FROM room_participants rp JOIN users u ON rp.user_id = u.id "+
			"WHERE rp.room_id = $1 ORDER BY rp.joined_at ASC",
		roomId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants = make([]Participant, 0)
	for rows.Next() {
		var p Participant
		if err = rows.Scan(&p.RoomId, &p.UserId, &p.Name, &p.Email, &p.JoinedAt); err != nil {
			break
		}

		participants = append(participants, p)
	}

	return participants, err
}

func (db *PgPokerRepository) UpdateRoomAdmin(roomId, newAdminId string) error {
	_, err := db.conn.Exec(
		"UPDATE rooms SET admin_id = $1 WHERE id = $2",
		newAdminId,
		roomId,
	)

	return err
}

// CreateVote deactivates any active vote for the room and inserts the new
// vote in a single transaction, so at most one vote per room is ever active.
func (db *PgPokerRepository) CreateVote(params CreateVoteParams) (Vote, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return Vote{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.Exec(
		"UPDATE votes SET is_active = FALSE WHERE room_id = $1 AND is_active = TRUE",
		params.RoomId,
	)
	if err != nil {
		return Vote{}, err
	}

	res := tx.QueryRow(
		"INSERT INTO votes (id, room_id, name, started_by, started_at, is_active) "+
			"VALUES ($1, $2, $3, $4, $5, TRUE) "+
			"RETURNING id, room_id, name, started_by, started_at, revealed_at, is_active",
		params.Id,
		params.RoomId,
		params.Name,
		params.StartedBy,
		time.Now().UTC(),
	)

	var vote Vote
	err = res.Scan(
		&vote.Id,
		&vote.RoomId,
		&vote.Name,
		&vote.StartedBy,
		&vote.StartedAt,
		&vote.RevealedAt,
		&vote.IsActive,
	)
	if err != nil {
		return Vote{}, err
	}

	if err = tx.Commit(); err != nil {
		return Vote{}, err
	}

	return vote, err
}

// GetActiveVote returns (nil, nil) when the room has no active vote.
func (db *PgPokerRepository) GetActiveVote(roomId string) (*Vote, error) {
	row := db.conn.QueryRow(
		"SELECT v.id, v.room_id, v.name, v.started_by, u.name AS started_by_name, "+
			"v.started_at, v.revealed_at, v.is_active "+
			"FROM votes v JOIN users u ON v.started_by = u.id "+
			"WHERE v.room_id = $1 AND v.is_active = TRUE "+
			"ORDER BY v.started_at DESC LIMIT 1",
		roomId,
	)

	var vote Vote
	err := row.Scan(
		&vote.Id,
		&vote.RoomId,
		&vote.Name,
		&vote.StartedBy,
		&vote.StartedByName,
		&vote.StartedAt,
		&vote.RevealedAt,
		&vote.IsActive,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get active vote: %w", err)
	}

	return &vote, nil
}

func (db *PgPokerRepository) GetVoteById(voteId string) (Vote, error) {
	row := db.conn.QueryRow(
		"SELECT id, room_id, name, started_by, started_at, revealed_at, is_active "+
			"FROM votes WHERE id = $1 LIMIT 1",
		voteId,
	)

	var vote Vote
	err := row.Scan(
		&vote.Id,
		&vote.RoomId,
		&vote.Name,
		&vote.StartedBy,
		&vote.StartedAt,
		&vote.RevealedAt,
		&vote.IsActive,
	)

	return vote, err
}

func (db *PgPokerRepository) UpsertVoteResponse(voteId, userId, value string) error {
	_, err := db.conn.Exec(
		"INSERT INTO vote_responses (vote_id, user_id, value, submitted_at) "+
			"VALUES ($1, $2, $3, $4) "+
			"ON CONFLICT (vote_id, user_id) DO UPDATE SET value = EXCLUDED.value, submitted_at = EXCLUDED.submitted_at",
		voteId,
		userId,
		value,
		time.Now().UTC(),
	)

	return err
}

// RevealVote stamps revealed_at. Unknown vote ids are a silent no-op.
func (db *PgPokerRepository) RevealVote(voteId string) error {
	_, err := db.conn.Exec(
		"UPDATE votes SET revealed_at = $1 WHERE id = $2",
		time.Now().UTC(),
		voteId,
	)

	return err
}

func (db *PgPokerRepository) GetVoteResponses(voteId string) ([]VoteResponse, error) {
	rows, err := db.conn.Query(
		"SELECT vr.vote_id, vr.user_id, vr.value, vr.submitted_at, u.name AS user_name "+
			"FROM vote_responses vr JOIN users u ON vr.user_id = u.id "+
			"WHERE vr.vote_id = $1 ORDER BY vr.submitted_at ASC",
		voteId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var responses = make([]VoteResponse, 0)
	for rows.Next() {
		var vr VoteResponse
		if err = rows.Scan(&vr.VoteId, &vr.UserId, &vr.Value, &vr.SubmittedAt, &vr.UserName); err != nil {
			break
		}

		responses = append(responses, vr)
	}

	return responses, err
}
