package oauth

import (
	"context"
	"crypto/subtle"

	"github.com/authedge/authedge/internal/common"
	"github.com/authedge/authedge/model"
	"github.com/authedge/authedge/params"
	"github.com/google/uuid"
)

// ClientRegistry manages the OAuth clients allowed to run the authorization
// code flow.
type ClientRegistry struct {
	clientRepo ClientRepository
}

func (r *ClientRegistry) Register(ctx context.Context, client *model.Client) error {
	if client.Name == "" {
		return ErrClientNameEmpty
	} else if client.RedirectURI == "" {
		return ErrClientRedirectEmpty
	}

	client.ClientID = uuid.NewString()
	secret, err := common.GenerateSecret(params.ClientSecretLength)
	if err != nil {
		return err
	}
	client.ClientSecret = secret
	return r.clientRepo.Create(ctx, client)
}

func (r *ClientRegistry) GetByClientID(ctx context.Context, clientID string) (*model.Client, error) {
	return r.clientRepo.FirstByClientID(ctx, clientID)
}

// Authenticate verifies confidential client credentials at the token
// endpoint. Public clients have an empty secret and pass with one.
func (r *ClientRegistry) Authenticate(ctx context.Context, clientID, clientSecret string) (*model.Client, error) {
	client, err := r.clientRepo.FirstByClientID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(client.ClientSecret), []byte(clientSecret)) != 1 {
		return nil, ErrClientCredentials
	}
	return client, nil
}

// ValidateRedirect requires an exact match against the registered URI.
func (r *ClientRegistry) ValidateRedirect(client *model.Client, redirectURI string) error {
	if redirectURI == "" || client.RedirectURI != redirectURI {
		return ErrRedirectURIMismatch
	}
	return nil
}

func (r *ClientRegistry) Remove(ctx context.Context, clientID string) error {
	return r.clientRepo.Delete(ctx, clientID)
}

func NewClientRegistry(clientRepo ClientRepository) *ClientRegistry {
	return &ClientRegistry{
		clientRepo: clientRepo,
	}
}
