package session

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID names one session. It is a random (version 4) UUID rendered in its
// canonical 36 character form for map keys, cookies and the primary key.
type ID struct {
	uuid uuid.UUID
}

// NewID returns a fresh random identifier.
func NewID() (ID, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return ID{}, fmt.Errorf("generate session id: %w", err)
	}
	return ID{uuid: u}, nil
}

// ParseID parses a client-supplied identifier. Anything other than a UUID is
// rejected with an error matching ErrInvalidID.
func ParseID(raw string) (ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ID{}, fmt.Errorf("%w: empty", ErrInvalidID)
	}
	u, err := uuid.Parse(raw)
	if err != nil {
		return ID{}, fmt.Errorf("%w: %v", ErrInvalidID, err)
	}
	return ID{uuid: u}, nil
}

func (id ID) String() string {
	return id.uuid.String()
}

func (id ID) IsZero() bool {
	return id.uuid == uuid.Nil
}

func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := ParseID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
