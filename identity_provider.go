package tasks

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

type usersProvider struct {
	repo Users
}

var _ IdentityProvider = (*usersProvider)(nil)

// NewUsersIdentityProvider adapts the users repository to the
// IdentityProvider interface.
func NewUsersIdentityProvider(repo Users) IdentityProvider {
	return &usersProvider{repo: repo}
}

// VerifyIdentity checks the credential pair against the stored hash. A
// missing account and a wrong password both return ErrInvalidCredentials.
// Inactive accounts return their own error before the password check.
func (p *usersProvider) VerifyIdentity(ctx context.Context, identifier, password string) (Identity, error) {
	user, err := p.repo.GetByEmailWithPassword(ctx, identifier)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, ErrAccountInactive
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		return nil, ErrInvalidCredentials
	}

	return IdentityFromUser(user), nil
}

// FindIdentityByIdentifier resolves a live identity by user id. An
// inactive account resolves to an error, so stale tokens stop working
// the moment the account is deactivated.
func (p *usersProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error) {
	id, err := uuid.Parse(identifier)
	if err != nil {
		return nil, ErrIdentityNotFound
	}

	user, err := p.repo.FindByID(ctx, id)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, ErrAccountInactive
	}

	return IdentityFromUser(user), nil
}
