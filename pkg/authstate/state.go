package authstate

import (
	"encoding/json"
	"errors"
	"maps"
	"slices"
	"strings"
	"time"
)

// State is the credential bundle of one session.
type State struct {
	// Registered reports that the engine completed pairing at least once with
	// this material.
	Registered bool `json:"registered"`
	// Creds is opaque engine material.
	Creds []byte `json:"creds,omitempty"`
	// Meta carries small engine-defined values such as the device id.
	Meta      map[string]string `json:"meta,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// New returns an empty, unregistered state.
func New() *State {
	return &State{}
}

// Clone returns a deep copy so callers can hand states across goroutines.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := *s
	c.Creds = slices.Clone(s.Creds)
	if s.Meta != nil {
		c.Meta = maps.Clone(s.Meta)
	}
	return &c
}

// Marshal encodes a state for byte-oriented backends.
func Marshal(s *State) ([]byte, error) {
	if s == nil {
		return nil, ErrNilState
	}
	return json.Marshal(s)
}

// Unmarshal decodes bytes produced by Marshal.
func Unmarshal(data []byte) (*State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Join(ErrCorruptState, err)
	}
	return &s, nil
}

// ValidateID rejects ids that cannot be used as a partition key.
func ValidateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrInvalidID
	}
	if strings.ContainsAny(id, `/\:*?"<>| `) || strings.Contains(id, "..") {
		return ErrInvalidID
	}
	return nil
}
