package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// MaxLoginAttempts is the maximum number of failed attempts a user gets
// before the cooldown window applies
var MaxLoginAttempts = 5

// CoolDownPeriod is the window in which the attempt counter is enforced
var CoolDownPeriod = 24 * time.Hour

// Defaults written to the preferences row at signup. Consuming
// applications update the row afterwards through their own settings flow.
var (
	DefaultCurrency = "USD"
	DefaultLocale   = "en-US"
	DefaultTimezone = "UTC"
)

// AccountRecord is the directory's read model for one account: identity,
// credential hash, and role in a single view.
type AccountRecord struct {
	UserID         uuid.UUID
	Email          string
	FirstName      string
	LastName       string
	PasswordHash   string
	Role           UserRole
	LoginAttempts  int
	LoginAttemptAt *time.Time
}

// AccountDirectory owns user identity, credential, and role records. It is
// the only component that reads or writes the users/credentials/roles
// relations, and it implements IdentityProvider for the Auther.
type AccountDirectory struct {
	repo      RepositoryManager
	logger    Logger
	decoyHash string
}

var _ IdentityProvider = (*AccountDirectory)(nil)

// NewAccountDirectory will create a new AccountDirectory
func NewAccountDirectory(repo RepositoryManager) *AccountDirectory {
	return &AccountDirectory{
		repo:   repo,
		logger: defLogger{},
		// compared against when the email is unknown so lookup misses cost
		// the same as password mismatches
		decoyHash: RandomPasswordHash(),
	}
}

func (d *AccountDirectory) WithLogger(logger Logger) *AccountDirectory {
	if logger != nil {
		d.logger = logger
	}
	return d
}

// Create inserts User, Credential, Role, and default Preference in a
// single transaction. The rows either fully commit or fully roll back;
// partial accounts are never observable. A duplicate email surfaces as
// ErrEmailTaken, sourced exclusively from the storage-level unique
// constraint.
func (d *AccountDirectory) Create(ctx context.Context, email, passwordHash, firstName, lastName string) (uuid.UUID, error) {
	userID := uuid.New()

	err := d.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user := &User{
			ID:        userID,
			Email:     email,
			FirstName: firstName,
			LastName:  lastName,
		}

		if _, err := d.repo.Users().CreateTx(ctx, tx, user); err != nil {
			if isUniqueViolation(err) {
				return ErrEmailTaken
			}
			return errors.Wrap(err, errors.CategoryInternal, "could not create user")
		}

		credential := &Credential{
			ID:           uuid.New(),
			UserID:       userID,
			PasswordHash: passwordHash,
		}
		if _, err := d.repo.Credentials().CreateTx(ctx, tx, credential); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "could not create credential")
		}

		role := &Role{
			ID:     uuid.New(),
			UserID: userID,
			Name:   RoleUser,
		}
		if _, err := d.repo.Roles().CreateTx(ctx, tx, role); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "could not create role")
		}

		preference := &Preference{
			ID:       uuid.New(),
			UserID:   userID,
			Currency: DefaultCurrency,
			Locale:   DefaultLocale,
			Timezone: DefaultTimezone,
		}
		if _, err := d.repo.Preferences().CreateTx(ctx, tx, preference); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "could not create preferences")
		}

		return nil
	})

	if err != nil {
		return uuid.Nil, err
	}

	return userID, nil
}

// FindByEmail returns the account view for the exact email, or
// ErrIdentityNotFound.
func (d *AccountDirectory) FindByEmail(ctx context.Context, email string) (*AccountRecord, error) {
	user, err := d.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve user")
	}

	return d.recordForUser(ctx, user)
}

// FindByID returns the account view for the given user id, or
// ErrIdentityNotFound.
func (d *AccountDirectory) FindByID(ctx context.Context, userID uuid.UUID) (*AccountRecord, error) {
	user, err := d.repo.Users().GetByID(ctx, userID.String())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve user")
	}

	return d.recordForUser(ctx, user)
}

func (d *AccountDirectory) recordForUser(ctx context.Context, user *User) (*AccountRecord, error) {
	record := &AccountRecord{
		UserID:         user.ID,
		Email:          user.Email,
		FirstName:      user.FirstName,
		LastName:       user.LastName,
		LoginAttempts:  user.LoginAttempts,
		LoginAttemptAt: user.LoginAttemptAt,
	}

	credential := &Credential{}
	err := d.repo.DB().NewSelect().
		Model(credential).
		Where("?TableAlias.user_id = ?", user.ID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve credential")
	}
	record.PasswordHash = credential.PasswordHash

	role := &Role{}
	err = d.repo.DB().NewSelect().
		Model(role).
		Where("?TableAlias.user_id = ?", user.ID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve role")
	}
	record.Role = role.Name

	return record, nil
}

// UpdatePassword replaces the stored hash wholesale. No history retained.
func (d *AccountDirectory) UpdatePassword(ctx context.Context, userID uuid.UUID, newHash string) error {
	return d.UpdatePasswordTx(ctx, d.repo.DB(), userID, newHash)
}

func (d *AccountDirectory) UpdatePasswordTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, newHash string) error {
	now := time.Now()
	res, err := tx.NewUpdate().
		Model((*Credential)(nil)).
		Set("password_hash = ?", newHash).
		Set("updated_at = ?", now).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to update credential")
	}

	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return ErrIdentityNotFound
	}

	return nil
}

// IsAdmin reports whether the user currently holds the admin role.
// Collaborator endpoints call this to gate admin-only operations instead of
// re-querying the roles relation themselves.
func (d *AccountDirectory) IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error) {
	role := &Role{}
	err := d.repo.DB().NewSelect().
		Model(role).
		Where("?TableAlias.user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return false, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve role")
	}

	return IsAdminRole(role.Name), nil
}

// VerifyIdentity will find the user, compare the password, and return the
// identity. Unknown email and wrong password take the same path: both cost
// one bcrypt comparison and both return the same error.
func (d *AccountDirectory) VerifyIdentity(ctx context.Context, email, password string) (Identity, error) {
	record, err := d.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			// burn a comparison against the decoy so the miss is not faster
			// than a mismatch
			_ = ComparePasswordAndHash(password, d.decoyHash)
			return nil, ErrMismatchedHashAndPassword
		}
		return nil, err
	}

	if record.LoginAttemptAt != nil && time.Since(*record.LoginAttemptAt) > CoolDownPeriod {
		record.LoginAttempts = 0
	}

	if record.LoginAttempts > MaxLoginAttempts {
		return nil, ErrTooManyLoginAttempts
	}

	if err := ComparePasswordAndHash(password, record.PasswordHash); err != nil {
		if err2 := d.repo.Users().TrackAttemptedLogin(ctx, &User{
			ID:            record.UserID,
			LoginAttempts: record.LoginAttempts,
		}); err2 != nil {
			return nil, errors.Wrap(err2, errors.CategoryInternal, "failed to track login attempt")
		}

		return nil, ErrMismatchedHashAndPassword
	}

	if err := d.repo.Users().TrackSuccessfulLogin(ctx, &User{ID: record.UserID}); err != nil {
		d.logger.Error("failed to track successful login: %v", err)
	}

	return identityFromRecord(record), nil
}

// FindIdentityByID returns the identity without credential verification.
func (d *AccountDirectory) FindIdentityByID(ctx context.Context, id string) (Identity, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrIdentityNotFound
	}

	record, err := d.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	return identityFromRecord(record), nil
}

type authIdentity struct {
	id        string
	email     string
	role      string
	firstName string
	lastName  string
}

func (a authIdentity) ID() string        { return a.id }
func (a authIdentity) Email() string     { return a.email }
func (a authIdentity) Role() string      { return a.role }
func (a authIdentity) FirstName() string { return a.firstName }
func (a authIdentity) LastName() string  { return a.lastName }

var _ Identity = authIdentity{}

func identityFromRecord(record *AccountRecord) authIdentity {
	return authIdentity{
		id:        record.UserID.String(),
		email:     record.Email,
		role:      string(record.Role),
		firstName: record.FirstName,
		lastName:  record.LastName,
	}
}

// ProfileFromIdentity builds the public projection for API responses.
func ProfileFromIdentity(identity Identity) Profile {
	id, _ := uuid.Parse(identity.ID())
	return Profile{
		ID:        id,
		Email:     identity.Email(),
		FirstName: identity.FirstName(),
		LastName:  identity.LastName(),
		Role:      identity.Role(),
	}
}
