package firebase

import (
	"context"

	"firebase.google.com/go/v4/auth"

	"lapakchat/internal/domain/entity"
	"lapakchat/internal/domain/service"
	"lapakchat/pkg/errors"
)

// FirebaseAuthClient adapts Firebase Auth to the IdentityProvider contract.
// The participant role comes from the "role" custom claim; accounts without
// one are treated as buyers.
type FirebaseAuthClient struct {
	client *auth.Client
}

var _ service.IdentityProvider = (*FirebaseAuthClient)(nil)

func NewFirebaseAuthClient(client *auth.Client) *FirebaseAuthClient {
	return &FirebaseAuthClient{
		client: client,
	}
}

func (f *FirebaseAuthClient) ResolveIdentity(ctx context.Context, credential string) (*entity.Identity, error) {
	token, err := f.client.VerifyIDToken(ctx, credential)
	if err != nil {
		return nil, errors.Unauthorized("Invalid or expired token", err)
	}

	return &entity.Identity{
		ID:   token.UID,
		Role: roleFromClaims(token.Claims),
	}, nil
}

func (f *FirebaseAuthClient) GetIdentity(ctx context.Context, id string) (*entity.Identity, error) {
	user, err := f.client.GetUser(ctx, id)
	if err != nil {
		if auth.IsUserNotFound(err) {
			return nil, errors.NotFound("User", err)
		}
		return nil, errors.Internal("Failed to look up user", err)
	}

	return &entity.Identity{
		ID:   user.UID,
		Role: roleFromClaims(user.CustomClaims),
	}, nil
}

func roleFromClaims(claims map[string]interface{}) string {
	if role, ok := claims["role"].(string); ok && role == entity.RoleSeller {
		return entity.RoleSeller
	}
	return entity.RoleBuyer
}
