// Package flowrepo remembers in-flight federated logins between the redirect
// to the identity provider and its callback.
package flowrepo

import (
	"context"
	"time"
)

// FlowState is what BeginFederatedLogin needs back at the callback.
type FlowState struct {
	Slot         string    `json:"slot"`
	CodeVerifier string    `json:"code_verifier"`
	Nonce        string    `json:"nonce"`
	CreatedAt    time.Time `json:"created_at"`
}

// Repo stores flows by their OAuth state parameter.
// Take removes the flow it returns, so a state value can be used once.
type Repo interface {
	Put(ctx context.Context, state string, flow FlowState) error
	Take(ctx context.Context, state string) (FlowState, error)
}
