package auth

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Users() Users
	Credentials() repository.Repository[*Credential]
	Roles() repository.Repository[*Role]
	Preferences() repository.Repository[*Preference]
	RefreshTokens() repository.Repository[*RefreshToken]
	PasswordResets() repository.Repository[*PasswordResetToken]
	DB() *bun.DB
}

func NewCredentialsRepository(db *bun.DB) repository.Repository[*Credential] {
	handlers := repository.ModelHandlers[*Credential]{
		NewRecord: func() *Credential {
			return &Credential{}
		},
		GetID: func(record *Credential) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *Credential, id uuid.UUID) {
			record.ID = id
		},
	}
	return repository.NewRepository(db, handlers)
}

func NewRolesRepository(db *bun.DB) repository.Repository[*Role] {
	handlers := repository.ModelHandlers[*Role]{
		NewRecord: func() *Role {
			return &Role{}
		},
		GetID: func(record *Role) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *Role, id uuid.UUID) {
			record.ID = id
		},
	}
	return repository.NewRepository(db, handlers)
}

func NewPreferencesRepository(db *bun.DB) repository.Repository[*Preference] {
	handlers := repository.ModelHandlers[*Preference]{
		NewRecord: func() *Preference {
			return &Preference{}
		},
		GetID: func(record *Preference) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *Preference, id uuid.UUID) {
			record.ID = id
		},
	}
	return repository.NewRepository(db, handlers)
}

func NewRefreshTokensRepository(db *bun.DB) repository.Repository[*RefreshToken] {
	handlers := repository.ModelHandlers[*RefreshToken]{
		NewRecord: func() *RefreshToken {
			return &RefreshToken{}
		},
		GetID: func(record *RefreshToken) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *RefreshToken, id uuid.UUID) {
			record.ID = id
		},
	}
	return repository.NewRepository(db, handlers)
}

func NewPasswordResetsRepository(db *bun.DB) repository.Repository[*PasswordResetToken] {
	handlers := repository.ModelHandlers[*PasswordResetToken]{
		NewRecord: func() *PasswordResetToken {
			return &PasswordResetToken{}
		},
		GetID: func(record *PasswordResetToken) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *PasswordResetToken, id uuid.UUID) {
			record.ID = id
		},
	}
	return repository.NewRepository(db, handlers)
}

type mngr struct {
	db             *bun.DB
	users          Users
	credentials    repository.Repository[*Credential]
	roles          repository.Repository[*Role]
	preferences    repository.Repository[*Preference]
	refreshTokens  repository.Repository[*RefreshToken]
	passwordResets repository.Repository[*PasswordResetToken]
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:             db,
		users:          NewUsersRepository(db),
		credentials:    NewCredentialsRepository(db),
		roles:          NewRolesRepository(db),
		preferences:    NewPreferencesRepository(db),
		refreshTokens:  NewRefreshTokensRepository(db),
		passwordResets: NewPasswordResetsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.credentials == nil {
		return errors.New("repository credentials should be initialized")
	}

	if m.roles == nil {
		return errors.New("repository roles should be initialized")
	}

	if m.preferences == nil {
		return errors.New("repository preferences should be initialized")
	}

	if m.refreshTokens == nil {
		return errors.New("repository refreshTokens should be initialized")
	}

	if m.passwordResets == nil {
		return errors.New("repository passwordResets should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) Credentials() repository.Repository[*Credential] {
	return m.credentials
}

func (m mngr) Roles() repository.Repository[*Role] {
	return m.roles
}

func (m mngr) Preferences() repository.Repository[*Preference] {
	return m.preferences
}

func (m mngr) RefreshTokens() repository.Repository[*RefreshToken] {
	return m.refreshTokens
}

func (m mngr) PasswordResets() repository.Repository[*PasswordResetToken] {
	return m.passwordResets
}

func (m mngr) DB() *bun.DB {
	return m.db
}
