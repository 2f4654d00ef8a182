package session

import (
	"context"
	"encoding/json"
	"fmt"
)

// storageVersion is written with every envelope; restoring any other version is treated as absent.
const storageVersion = 0

// Persister is the durable storage a Store reads and writes its slot through.
type Persister interface {
	Load(ctx context.Context, slot string) ([]byte, error)
	Save(ctx context.Context, slot string, value []byte) error
}

// persistedState is the subset of a Session written to storage.
type persistedState struct {
	AccessToken     *string `json:"access_token"`
	RefreshToken    *string `json:"refresh_token"`
	IsAuthenticated bool    `json:"isAuthenticated"`
}

type envelope struct {
	State   persistedState `json:"state"`
	Version int            `json:"version"`
}

func encode(s Session) ([]byte, error) {
	return json.Marshal(envelope{
		State: persistedState{
			AccessToken:     s.AccessToken,
			RefreshToken:    s.RefreshToken,
			IsAuthenticated: s.IsAuthenticated,
		},
		Version: storageVersion,
	})
}

// decode parses a slot value. The authenticated flag is re-derived from the token
// rather than trusted from storage.
func decode(data []byte) (Session, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Session{}, fmt.Errorf("parse envelope: %w", err)
	}
	if env.Version != storageVersion {
		return Session{}, fmt.Errorf("unsupported version %d", env.Version)
	}

	var t Tokens
	if env.State.AccessToken != nil {
		t.AccessToken = *env.State.AccessToken
	}
	if env.State.RefreshToken != nil {
		t.RefreshToken = *env.State.RefreshToken
	}
	return newSession(t), nil
}
