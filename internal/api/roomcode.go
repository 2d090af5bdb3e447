package api

import (
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
)

const roomCodeAttempts = 10

// newRoomCode picks a 3-digit code (100-999) that no existing room uses.
// Bounded retries keep a nearly-full code space from looping forever.
func (s *PokerApp) newRoomCode() (string, error) {
	for range roomCodeAttempts {
		code := strconv.Itoa(100 + rand.IntN(900))

		_, err := s.db.GetRoom(code)
		if errors.Is(err, sql.ErrNoRows) {
			return code, nil
		}
		if err != nil {
			return "", fmt.Errorf("check room code: %w", err)
		}
	}

	return "", fmt.Errorf("no unique room code after %d attempts", roomCodeAttempts)
}
