package party

import (
	"crypto/rand"

	"github.com/google/uuid"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const codeLength = 6

// newRoomCode draws a random 6-char uppercase alphanumeric code. Collision
// checking against live rooms is the registry's job (see registry.go); this
// function only guarantees a uniformly random draw from the alphabet.
func newRoomCode() (RoomCode, error) {
	// Bytes at or above the largest multiple of len(codeAlphabet) are
	// rejected so the modulo does not favour the first characters.
	limit := 256 - 256%len(codeAlphabet)
	buf := make([]byte, codeLength)
	out := make([]byte, 0, codeLength)
	for len(out) < codeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) < limit && len(out) < codeLength {
				out = append(out, codeAlphabet[int(b)%len(codeAlphabet)])
			}
		}
	}
	return RoomCode(out), nil
}

// newParticipantId mints an opaque participant identifier.
func newParticipantId() ParticipantId {
	return ParticipantId(uuid.NewString())
}

// newId mints an opaque identifier for chat messages and queue items.
func newId() string {
	return uuid.NewString()
}
