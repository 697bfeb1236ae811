package service

import (
	"context"

	"lapakchat/internal/domain/entity"
)

// IdentityProvider is the external identity collaborator. The chat service
// never stores credentials or profiles; it only resolves them.
type IdentityProvider interface {
	// ResolveIdentity verifies a credential and returns the participant
	// identity, or an unauthorized error for an invalid/expired credential.
	ResolveIdentity(ctx context.Context, credential string) (*entity.Identity, error)

	// GetIdentity looks up a known user id, or a not-found error for an
	// unknown account.
	GetIdentity(ctx context.Context, id string) (*entity.Identity, error)
}
