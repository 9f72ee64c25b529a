package utils

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// LegacyObjectIDLength is the length of a 24-character hex object id as issued by
// the document store the parking services used before.
const LegacyObjectIDLength = 24

const uuidHexLength = 32

var ErrInvalidID = errors.New("invalid id")

// ParseID accepts either a UUID or a legacy 24-hex object id. Legacy ids map
// onto a UUID left-padded with zeros, so the same spot keeps the same key.
// Example: "682c5990bf4a775c8de9598a" -> "00000000-682c-5990-bf4a-775c8de9598a"
func ParseID(raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) == LegacyObjectIDLength {
		return LegacyIDToUUID(raw)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidID, raw)
	}
	return id, nil
}

// LegacyIDToUUID converts a 24-hex object id into its padded UUID form.
func LegacyIDToUUID(objectID string) (uuid.UUID, error) {
	if len(objectID) != LegacyObjectIDLength {
		return uuid.Nil, fmt.Errorf("%w: expected %d characters, got %d", ErrInvalidID, LegacyObjectIDLength, len(objectID))
	}
	if _, err := hex.DecodeString(objectID); err != nil {
		return uuid.Nil, fmt.Errorf("%w: contains non-hexadecimal characters", ErrInvalidID)
	}

	padded := strings.Repeat("0", uuidHexLength-LegacyObjectIDLength) + strings.ToLower(objectID)
	return uuid.Parse(fmt.Sprintf("%s-%s-%s-%s-%s",
		padded[0:8],
		padded[8:12],
		padded[12:16],
		padded[16:20],
		padded[20:32],
	))
}
