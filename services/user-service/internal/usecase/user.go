package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/tecnomga/insurance-portal-api/services/user-service/internal/model"
	"github.com/tecnomga/insurance-portal-api/services/user-service/internal/provider"
	"github.com/tecnomga/insurance-portal-api/services/user-service/internal/repository"
	"github.com/tecnomga/insurance-portal-api/shared/mailer"
)

// UserUsecase defines the business logic for portal user management.
type UserUsecase interface {
	// AuthorizeAdmin resolves an access token to its identity and verifies
	// the admin role. Exactly one identity-store call is made.
	AuthorizeAdmin(ctx context.Context, accessToken string) (*provider.Identity, error)

	// CreateUser runs the provisioning saga: identity, then profile, then
	// role assignment, compensating already-completed steps in reverse
	// order when a later step fails.
	CreateUser(ctx context.Context, params CreateUserParams) (*CreatedUser, error)

	// Login performs a password grant against the identity store.
	Login(ctx context.Context, email, password string) (*provider.Token, error)

	// ListUsers returns profiles together with their assigned roles.
	ListUsers(ctx context.Context, params ListUsersParams) ([]*UserDetails, error)

	// GetUser returns one profile together with its assigned role.
	GetUser(ctx context.Context, userID string) (*UserDetails, error)

	// UpdateUserProfile updates the business attributes of a profile.
	UpdateUserProfile(ctx context.Context, userID string, params repository.UpdateProfileParams) (*model.Profile, error)

	// UpdateUserRole replaces a user's role assignment.
	UpdateUserRole(ctx context.Context, userID, role string) error

	// DeleteUser removes the role assignment, profile, and identity of a
	// user, in that order.
	DeleteUser(ctx context.Context, userID string) error
}

// CreateUserParams defines the parameters for provisioning a user.
type CreateUserParams struct {
	Email                       string
	Password                    string
	FullName                    string
	Phone                       string
	Role                        string
	DefaultCommissionPercentage float64
}

// CreatedUser is what a successful provisioning echoes back to the caller.
type CreatedUser struct {
	ID       string
	Email    string
	FullName string
}

// UserDetails pairs a profile with its role assignment.
type UserDetails struct {
	Profile *model.Profile
	Role    string
}

// ListUsersParams defines the filters of the user listing. Role is matched
// against the joined role assignment; the remaining filters apply to the
// profile query.
type ListUsersParams struct {
	Role   *string
	Search *string
	Limit  uint64
	Offset uint64
}

type userUsecase struct {
	identityProvider provider.IdentityProvider
	profileRepo      repository.ProfileRepository
	roleRepo         repository.RoleRepository
	mailer           *mailer.Mailer
	logger           *zerolog.Logger
}

// NewUserUsecase creates a new instance of UserUsecase. The mailer may be
// nil, in which case no welcome email is sent.
func NewUserUsecase(
	identityProvider provider.IdentityProvider,
	profileRepo repository.ProfileRepository,
	roleRepo repository.RoleRepository,
	m *mailer.Mailer,
	logger *zerolog.Logger,
) UserUsecase {
	return &userUsecase{
		identityProvider: identityProvider,
		profileRepo:      profileRepo,
		roleRepo:         roleRepo,
		mailer:           m,
		logger:           logger,
	}
}

func (u *userUsecase) AuthorizeAdmin(ctx context.Context, accessToken string) (*provider.Identity, error) {
	identity, err := u.identityProvider.VerifyToken(ctx, accessToken)
	if err != nil {
		return nil, &Error{Kind: KindAuthentication, Err: err}
	}

	assignment, err := u.roleRepo.GetRoleByUserID(ctx, identity.ID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &Error{Kind: KindAuthorization, Err: ErrAccessDenied}
		}
		return nil, &Error{Kind: KindAuthorizationInfra, Err: err}
	}

	if assignment.Role != model.RoleAdmin {
		return nil, &Error{Kind: KindAuthorization, Err: ErrAccessDenied}
	}

	return identity, nil
}

// sagaStep is one stage of the provisioning workflow. Completed steps keep
// their compensation so a later failure can undo them in reverse order.
type sagaStep struct {
	name       Step
	run        func(ctx context.Context) error
	compensate func(ctx context.Context) error
}

func (u *userUsecase) CreateUser(ctx context.Context, params CreateUserParams) (*CreatedUser, error) {
	var identity *provider.Identity

	steps := []sagaStep{
		{
			name: StepIdentity,
			run: func(ctx context.Context) error {
				created, err := u.identityProvider.CreateUser(ctx, provider.CreateUserParams{
					Email:    params.Email,
					Password: params.Password,
					FullName: params.FullName,
					Phone:    params.Phone,
				})
				if err != nil {
					return err
				}
				if created == nil {
					return ErrNoIdentityReturned
				}
				identity = created
				return nil
			},
			compensate: func(ctx context.Context) error {
				return u.identityProvider.DeleteUser(ctx, identity.ID)
			},
		},
		{
			name: StepProfile,
			run: func(ctx context.Context) error {
				var phone *string
				if params.Phone != "" {
					phone = &params.Phone
				}
				_, err := u.profileRepo.CreateProfile(ctx, &model.Profile{
					ID:                          identity.ID,
					Email:                       params.Email,
					FullName:                    params.FullName,
					Phone:                       phone,
					DefaultCommissionPercentage: params.DefaultCommissionPercentage,
				})
				return err
			},
			compensate: func(ctx context.Context) error {
				return u.profileRepo.DeleteProfile(ctx, identity.ID)
			},
		},
		{
			name: StepRole,
			run: func(ctx context.Context) error {
				_, err := u.roleRepo.AssignRole(ctx, &model.RoleAssignment{
					UserID: identity.ID,
					Role:   params.Role,
				})
				return err
			},
			compensate: func(ctx context.Context) error {
				return u.roleRepo.DeleteRoleByUserID(ctx, identity.ID)
			},
		},
	}

	var completed []sagaStep
	for _, step := range steps {
		if err := step.run(ctx); err != nil {
			rollbackErr := u.compensateAll(ctx, completed)
			return nil, &Error{Kind: KindProvisioning, Step: step.name, Err: err, RollbackErr: rollbackErr}
		}
		completed = append(completed, step)
	}

	u.sendWelcomeEmail(params.Email, params.FullName)

	return &CreatedUser{
		ID:       identity.ID,
		Email:    identity.Email,
		FullName: params.FullName,
	}, nil
}

// compensateAll undoes completed steps in reverse order. The identity must
// never be deleted before the rows that reference it, which reverse order
// guarantees. Failures are collected, not retried: the caller still reports
// the original step error, but the inconsistent state is escalated here.
func (u *userUsecase) compensateAll(ctx context.Context, completed []sagaStep) error {
	var errs []error
	for i := len(completed) - 1; i >= 0; i-- {
		step := completed[i]
		if err := step.compensate(ctx); err != nil {
			u.logger.Error().
				Err(err).
				Str("step", string(step.name)).
				Msg("compensation failed, stores left inconsistent, manual cleanup required")
			errs = append(errs, fmt.Errorf("%s: %w", step.name, err))
		}
	}
	return errors.Join(errs...)
}

func (u *userUsecase) Login(ctx context.Context, email, password string) (*provider.Token, error) {
	return u.identityProvider.Authenticate(ctx, email, password)
}

func (u *userUsecase) ListUsers(ctx context.Context, params ListUsersParams) ([]*UserDetails, error) {
	profiles, err := u.profileRepo.ListProfiles(ctx, repository.FilterProfilesParams{
		Search: params.Search,
		Limit:  params.Limit,
		Offset: params.Offset,
	})
	if err != nil {
		return nil, err
	}

	details := make([]*UserDetails, 0, len(profiles))
	for _, profile := range profiles {
		detail := &UserDetails{Profile: profile}

		assignment, err := u.roleRepo.GetRoleByUserID(ctx, profile.ID)
		if err != nil {
			if !errors.Is(err, mongo.ErrNoDocuments) {
				return nil, err
			}
		} else {
			detail.Role = assignment.Role
		}

		// Roles live in their own collection, so the role filter applies
		// after the join.
		if params.Role != nil && detail.Role != *params.Role {
			continue
		}

		details = append(details, detail)
	}

	return details, nil
}

func (u *userUsecase) GetUser(ctx context.Context, userID string) (*UserDetails, error) {
	profile, err := u.profileRepo.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	detail := &UserDetails{Profile: profile}

	assignment, err := u.roleRepo.GetRoleByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, err
		}
	} else {
		detail.Role = assignment.Role
	}

	return detail, nil
}

func (u *userUsecase) UpdateUserProfile(
	ctx context.Context,
	userID string,
	params repository.UpdateProfileParams,
) (*model.Profile, error) {
	return u.profileRepo.UpdateProfile(ctx, userID, params)
}

func (u *userUsecase) UpdateUserRole(ctx context.Context, userID, role string) error {
	_, err := u.roleRepo.UpdateRole(ctx, userID, role)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			_, err = u.roleRepo.AssignRole(ctx, &model.RoleAssignment{UserID: userID, Role: role})
		}
		return err
	}

	return nil
}

func (u *userUsecase) DeleteUser(ctx context.Context, userID string) error {
	if err := u.roleRepo.DeleteRoleByUserID(ctx, userID); err != nil {
		return err
	}

	if err := u.profileRepo.DeleteProfile(ctx, userID); err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return err
	}

	return u.identityProvider.DeleteUser(ctx, userID)
}

func (u *userUsecase) sendWelcomeEmail(email, fullName string) {
	if u.mailer == nil {
		return
	}

	htmlBody := fmt.Sprintf(`
		<p>Ciao %s,</p>
		<p>Il tuo account per il portale Tecno Advance MGA è stato creato.</p>
		<p>Puoi accedere con il tuo indirizzo email e la password che ti è stata comunicata.</p>

		<p>Grazie,</p>
		<p>Il team Tecno Advance MGA</p>
	`, fullName)

	if err := u.mailer.SendHTML([]string{email}, "Benvenuto nel portale Tecno Advance MGA", htmlBody); err != nil {
		u.logger.Warn().Err(err).Str("email", email).Msg("failed to send welcome email")
	}
}
