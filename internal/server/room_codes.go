package server

import (
	"errors"
	"math/rand/v2"
	"strings"
)

// DefaultRoom is the shared room every game has without creating one.
const DefaultRoom = "main"

func GenerateRoomCode(usedCodes map[string]bool) string {
	for {
		code := make([]byte, 4)
		for i := range code {
			code[i] = 'A' + byte(rand.IntN(26))
		}
		roomCode := string(code)

		if !usedCodes[roomCode] {
			return roomCode
		}
	}
}

func ValidateRoomCode(code string) error {
	if code == DefaultRoom {
		return nil
	}
	if len(code) != 4 {
		return errors.New("Room code must be exactly 4 characters")
	}

	code = strings.ToUpper(code)
	for _, ch := range code {
		if ch < 'A' || ch > 'Z' {
			return errors.New("Room code must contain only letters A-Z")
		}
	}

	return nil
}

// NormalizeRoomCode maps an empty room to DefaultRoom and upper-cases codes.
func NormalizeRoomCode(code string) string {
	code = strings.TrimSpace(code)
	if code == "" || strings.EqualFold(code, DefaultRoom) {
		return DefaultRoom
	}
	return strings.ToUpper(code)
}
