package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/tecnomga/insurance-portal-api/services/user-service/internal/model"
	"github.com/tecnomga/insurance-portal-api/services/user-service/internal/provider"
	"github.com/tecnomga/insurance-portal-api/services/user-service/internal/repository"
)

// fakeIdentityProvider records calls so tests can assert which external
// calls fired and in which order.
type fakeIdentityProvider struct {
	calls *[]string

	verifyIdentity *provider.Identity
	verifyErr      error
	createIdentity *provider.Identity
	createErr      error
	deleteErr      error

	deletedIDs []string
}

func (f *fakeIdentityProvider) VerifyToken(ctx context.Context, accessToken string) (*provider.Identity, error) {
	*f.calls = append(*f.calls, "provider.verify")
	return f.verifyIdentity, f.verifyErr
}

func (f *fakeIdentityProvider) CreateUser(ctx context.Context, params provider.CreateUserParams) (*provider.Identity, error) {
	*f.calls = append(*f.calls, "provider.create")
	return f.createIdentity, f.createErr
}

func (f *fakeIdentityProvider) DeleteUser(ctx context.Context, id string) error {
	*f.calls = append(*f.calls, "provider.delete")
	f.deletedIDs = append(f.deletedIDs, id)
	return f.deleteErr
}

func (f *fakeIdentityProvider) Authenticate(ctx context.Context, email, password string) (*provider.Token, error) {
	*f.calls = append(*f.calls, "provider.authenticate")
	return &provider.Token{AccessToken: "token"}, nil
}

type fakeProfileRepository struct {
	calls *[]string

	createErr error
	deleteErr error

	// profiles backs GetProfile, UpdateProfile, and ListProfiles when set.
	profiles []*model.Profile

	created      []*model.Profile
	deleted      []string
	lastFilter   repository.FilterProfilesParams
	lastUpdateID string
	lastUpdate   repository.UpdateProfileParams
}

func (f *fakeProfileRepository) CreateProfile(ctx context.Context, profile *model.Profile) (*model.Profile, error) {
	*f.calls = append(*f.calls, "profile.create")
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, profile)
	return profile, nil
}

func (f *fakeProfileRepository) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	*f.calls = append(*f.calls, "profile.get")
	for _, profile := range f.profiles {
		if profile.ID == id {
			return profile, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (f *fakeProfileRepository) UpdateProfile(ctx context.Context, id string, params repository.UpdateProfileParams) (*model.Profile, error) {
	*f.calls = append(*f.calls, "profile.update")
	f.lastUpdateID = id
	f.lastUpdate = params
	for _, profile := range f.profiles {
		if profile.ID != id {
			continue
		}
		if params.FullName != nil {
			profile.FullName = *params.FullName
		}
		if params.Phone != nil {
			profile.Phone = params.Phone
		}
		if params.DefaultCommissionPercentage != nil {
			profile.DefaultCommissionPercentage = *params.DefaultCommissionPercentage
		}
		return profile, nil
	}
	return nil, mongo.ErrNoDocuments
}

func (f *fakeProfileRepository) DeleteProfile(ctx context.Context, id string) error {
	*f.calls = append(*f.calls, "profile.delete")
	f.deleted = append(f.deleted, id)
	return f.deleteErr
}

func (f *fakeProfileRepository) ListProfiles(ctx context.Context, params repository.FilterProfilesParams) ([]*model.Profile, error) {
	f.lastFilter = params
	if f.profiles != nil {
		return f.profiles, nil
	}
	return f.created, nil
}

type fakeRoleRepository struct {
	calls *[]string

	assignment *model.RoleAssignment
	getErr     error
	assignErr  error
	updateErr  error

	// assignments maps user IDs to roles for tests that join several
	// users; absent entries read as mongo.ErrNoDocuments.
	assignments map[string]string

	assigned []*model.RoleAssignment
	updated  []*model.RoleAssignment
	deleted  []string
}

func (f *fakeRoleRepository) AssignRole(ctx context.Context, assignment *model.RoleAssignment) (*model.RoleAssignment, error) {
	*f.calls = append(*f.calls, "role.assign")
	if f.assignErr != nil {
		return nil, f.assignErr
	}
	f.assigned = append(f.assigned, assignment)
	return assignment, nil
}

func (f *fakeRoleRepository) GetRoleByUserID(ctx context.Context, userID string) (*model.RoleAssignment, error) {
	*f.calls = append(*f.calls, "role.get")
	if f.assignments != nil {
		role, ok := f.assignments[userID]
		if !ok {
			return nil, mongo.ErrNoDocuments
		}
		return &model.RoleAssignment{UserID: userID, Role: role}, nil
	}
	return f.assignment, f.getErr
}

func (f *fakeRoleRepository) UpdateRole(ctx context.Context, userID string, role string) (*model.RoleAssignment, error) {
	*f.calls = append(*f.calls, "role.update")
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	assignment := &model.RoleAssignment{UserID: userID, Role: role}
	f.updated = append(f.updated, assignment)
	return assignment, nil
}

func (f *fakeRoleRepository) DeleteRoleByUserID(ctx context.Context, userID string) error {
	*f.calls = append(*f.calls, "role.delete")
	f.deleted = append(f.deleted, userID)
	return nil
}

type fixture struct {
	usecase     UserUsecase
	provider    *fakeIdentityProvider
	profileRepo *fakeProfileRepository
	roleRepo    *fakeRoleRepository
	calls       *[]string
}

func newFixture() *fixture {
	calls := &[]string{}
	identityProvider := &fakeIdentityProvider{
		calls: calls,
		createIdentity: &provider.Identity{
			ID:       "id-123",
			Email:    "a@b.com",
			FullName: "A B",
		},
	}
	profileRepo := &fakeProfileRepository{calls: calls}
	roleRepo := &fakeRoleRepository{calls: calls}

	logger := zerolog.Nop()

	return &fixture{
		usecase:     NewUserUsecase(identityProvider, profileRepo, roleRepo, nil, &logger),
		provider:    identityProvider,
		profileRepo: profileRepo,
		roleRepo:    roleRepo,
		calls:       calls,
	}
}

func createParams() CreateUserParams {
	return CreateUserParams{
		Email:    "a@b.com",
		Password: "x",
		FullName: "A B",
		Role:     model.RoleAgente,
	}
}

func TestCreateUser_Success(t *testing.T) {
	f := newFixture()

	created, err := f.usecase.CreateUser(context.Background(), createParams())
	require.NoError(t, err)

	assert.Equal(t, "id-123", created.ID)
	assert.Equal(t, "a@b.com", created.Email)
	assert.Equal(t, "A B", created.FullName)

	require.Len(t, f.profileRepo.created, 1)
	assert.Equal(t, "id-123", f.profileRepo.created[0].ID)
	assert.Equal(t, 0.0, f.profileRepo.created[0].DefaultCommissionPercentage)
	assert.Nil(t, f.profileRepo.created[0].Phone)

	require.Len(t, f.roleRepo.assigned, 1)
	assert.Equal(t, "id-123", f.roleRepo.assigned[0].UserID)
	assert.Equal(t, model.RoleAgente, f.roleRepo.assigned[0].Role)

	assert.Equal(t, []string{"provider.create", "profile.create", "role.assign"}, *f.calls)
}

func TestCreateUser_IdentityFailure_NoFurtherCalls(t *testing.T) {
	f := newFixture()
	f.provider.createIdentity = nil
	f.provider.createErr = errors.New("duplicate email")

	_, err := f.usecase.CreateUser(context.Background(), createParams())
	require.Error(t, err)

	uerr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindProvisioning, uerr.Kind)
	assert.Equal(t, StepIdentity, uerr.Step)
	assert.EqualError(t, uerr.Err, "duplicate email")
	assert.NoError(t, uerr.RollbackErr)

	// Nothing was created, so nothing is compensated.
	assert.Equal(t, []string{"provider.create"}, *f.calls)
}

func TestCreateUser_NoIdentityReturned(t *testing.T) {
	f := newFixture()
	f.provider.createIdentity = nil

	_, err := f.usecase.CreateUser(context.Background(), createParams())
	require.Error(t, err)

	uerr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, StepIdentity, uerr.Step)
	assert.ErrorIs(t, uerr.Err, ErrNoIdentityReturned)

	assert.Equal(t, []string{"provider.create"}, *f.calls)
}

func TestCreateUser_ProfileFailure_RollsBackIdentity(t *testing.T) {
	f := newFixture()
	f.profileRepo.createErr = errors.New("duplicate key")

	_, err := f.usecase.CreateUser(context.Background(), createParams())
	require.Error(t, err)

	uerr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, StepProfile, uerr.Step)
	assert.EqualError(t, uerr.Err, "duplicate key")

	// Exactly one compensating identity delete, no role insert attempted.
	assert.Equal(t, []string{"provider.create", "profile.create", "provider.delete"}, *f.calls)
	assert.Equal(t, []string{"id-123"}, f.provider.deletedIDs)
}

func TestCreateUser_RoleFailure_RollsBackProfileThenIdentity(t *testing.T) {
	f := newFixture()
	f.roleRepo.assignErr = errors.New("invalid role")

	_, err := f.usecase.CreateUser(context.Background(), createParams())
	require.Error(t, err)

	uerr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, StepRole, uerr.Step)

	// Profile is deleted before the identity it references.
	assert.Equal(t, []string{
		"provider.create",
		"profile.create",
		"role.assign",
		"profile.delete",
		"provider.delete",
	}, *f.calls)
	assert.Equal(t, []string{"id-123"}, f.profileRepo.deleted)
	assert.Equal(t, []string{"id-123"}, f.provider.deletedIDs)
}

func TestCreateUser_RollbackFailureIsRecorded(t *testing.T) {
	f := newFixture()
	f.profileRepo.createErr = errors.New("duplicate key")
	f.provider.deleteErr = errors.New("store unavailable")

	_, err := f.usecase.CreateUser(context.Background(), createParams())
	require.Error(t, err)

	uerr, ok := AsError(err)
	require.True(t, ok)
	// The caller-facing error is still the original step failure.
	assert.EqualError(t, uerr.Err, "duplicate key")
	require.Error(t, uerr.RollbackErr)
	assert.Contains(t, uerr.RollbackErr.Error(), "store unavailable")
}

func TestCreateUser_PhoneAndCommissionArePersisted(t *testing.T) {
	f := newFixture()

	params := createParams()
	params.Phone = "3331234567"
	params.DefaultCommissionPercentage = 12.5

	_, err := f.usecase.CreateUser(context.Background(), params)
	require.NoError(t, err)

	require.Len(t, f.profileRepo.created, 1)
	require.NotNil(t, f.profileRepo.created[0].Phone)
	assert.Equal(t, "3331234567", *f.profileRepo.created[0].Phone)
	assert.Equal(t, 12.5, f.profileRepo.created[0].DefaultCommissionPercentage)
}

func TestAuthorizeAdmin(t *testing.T) {
	t.Run("admin passes", func(t *testing.T) {
		f := newFixture()
		f.provider.verifyIdentity = &provider.Identity{ID: "caller-1"}
		f.roleRepo.assignment = &model.RoleAssignment{UserID: "caller-1", Role: model.RoleAdmin}

		identity, err := f.usecase.AuthorizeAdmin(context.Background(), "token")
		require.NoError(t, err)
		assert.Equal(t, "caller-1", identity.ID)
	})

	t.Run("invalid token", func(t *testing.T) {
		f := newFixture()
		f.provider.verifyErr = errors.New("token expired")

		_, err := f.usecase.AuthorizeAdmin(context.Background(), "token")
		uerr, ok := AsError(err)
		require.True(t, ok)
		assert.Equal(t, KindAuthentication, uerr.Kind)

		// No creation call was made.
		assert.Equal(t, []string{"provider.verify"}, *f.calls)
	})

	t.Run("role lookup infrastructure error", func(t *testing.T) {
		f := newFixture()
		f.provider.verifyIdentity = &provider.Identity{ID: "caller-1"}
		f.roleRepo.getErr = errors.New("store unreachable")

		_, err := f.usecase.AuthorizeAdmin(context.Background(), "token")
		uerr, ok := AsError(err)
		require.True(t, ok)
		assert.Equal(t, KindAuthorizationInfra, uerr.Kind)
	})

	t.Run("no role assignment means denied", func(t *testing.T) {
		f := newFixture()
		f.provider.verifyIdentity = &provider.Identity{ID: "caller-1"}
		f.roleRepo.getErr = mongo.ErrNoDocuments

		_, err := f.usecase.AuthorizeAdmin(context.Background(), "token")
		uerr, ok := AsError(err)
		require.True(t, ok)
		assert.Equal(t, KindAuthorization, uerr.Kind)
		assert.ErrorIs(t, uerr.Err, ErrAccessDenied)
	})

	t.Run("non-admin denied", func(t *testing.T) {
		f := newFixture()
		f.provider.verifyIdentity = &provider.Identity{ID: "caller-1"}
		f.roleRepo.assignment = &model.RoleAssignment{UserID: "caller-1", Role: model.RoleAgente}

		_, err := f.usecase.AuthorizeAdmin(context.Background(), "token")
		uerr, ok := AsError(err)
		require.True(t, ok)
		assert.Equal(t, KindAuthorization, uerr.Kind)
	})
}

func TestListUsers_RoleFilter(t *testing.T) {
	f := newFixture()
	f.profileRepo.profiles = []*model.Profile{
		{ID: "u-1", Email: "agente@b.com"},
		{ID: "u-2", Email: "admin@b.com"},
		{ID: "u-3", Email: "orphan@b.com"},
	}
	f.roleRepo.assignments = map[string]string{
		"u-1": model.RoleAgente,
		"u-2": model.RoleAdmin,
	}

	role := model.RoleAgente
	details, err := f.usecase.ListUsers(context.Background(), ListUsersParams{Role: &role})
	require.NoError(t, err)

	require.Len(t, details, 1)
	assert.Equal(t, "u-1", details[0].Profile.ID)
	assert.Equal(t, model.RoleAgente, details[0].Role)
}

func TestListUsers_SearchAndPagingReachTheQuery(t *testing.T) {
	f := newFixture()
	f.profileRepo.profiles = []*model.Profile{}

	search := "rossi"
	_, err := f.usecase.ListUsers(context.Background(), ListUsersParams{
		Search: &search,
		Limit:  10,
		Offset: 20,
	})
	require.NoError(t, err)

	require.NotNil(t, f.profileRepo.lastFilter.Search)
	assert.Equal(t, "rossi", *f.profileRepo.lastFilter.Search)
	assert.Equal(t, uint64(10), f.profileRepo.lastFilter.Limit)
	assert.Equal(t, uint64(20), f.profileRepo.lastFilter.Offset)
}

func TestGetUser(t *testing.T) {
	t.Run("joins the role", func(t *testing.T) {
		f := newFixture()
		f.profileRepo.profiles = []*model.Profile{{ID: "u-1", Email: "a@b.com"}}
		f.roleRepo.assignments = map[string]string{"u-1": model.RoleCollaboratore}

		detail, err := f.usecase.GetUser(context.Background(), "u-1")
		require.NoError(t, err)
		assert.Equal(t, "a@b.com", detail.Profile.Email)
		assert.Equal(t, model.RoleCollaboratore, detail.Role)
	})

	t.Run("missing role assignment is tolerated", func(t *testing.T) {
		f := newFixture()
		f.profileRepo.profiles = []*model.Profile{{ID: "u-1", Email: "a@b.com"}}
		f.roleRepo.assignments = map[string]string{}

		detail, err := f.usecase.GetUser(context.Background(), "u-1")
		require.NoError(t, err)
		assert.Empty(t, detail.Role)
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newFixture()

		_, err := f.usecase.GetUser(context.Background(), "u-404")
		assert.ErrorIs(t, err, mongo.ErrNoDocuments)
	})
}

func TestUpdateUserProfile(t *testing.T) {
	t.Run("applies partial update", func(t *testing.T) {
		f := newFixture()
		phone := "3331234567"
		f.profileRepo.profiles = []*model.Profile{{ID: "u-1", FullName: "A B", Phone: &phone}}

		name := "Mario Rossi"
		commission := 7.5
		profile, err := f.usecase.UpdateUserProfile(context.Background(), "u-1", repository.UpdateProfileParams{
			FullName:                    &name,
			DefaultCommissionPercentage: &commission,
		})
		require.NoError(t, err)

		assert.Equal(t, "Mario Rossi", profile.FullName)
		assert.Equal(t, 7.5, profile.DefaultCommissionPercentage)
		// Untouched field survives.
		require.NotNil(t, profile.Phone)
		assert.Equal(t, "3331234567", *profile.Phone)

		assert.Equal(t, "u-1", f.profileRepo.lastUpdateID)
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newFixture()

		name := "Mario Rossi"
		_, err := f.usecase.UpdateUserProfile(context.Background(), "u-404", repository.UpdateProfileParams{FullName: &name})
		assert.ErrorIs(t, err, mongo.ErrNoDocuments)
	})
}

func TestUpdateUserRole(t *testing.T) {
	t.Run("replaces an existing assignment", func(t *testing.T) {
		f := newFixture()

		err := f.usecase.UpdateUserRole(context.Background(), "u-1", model.RoleAdmin)
		require.NoError(t, err)

		require.Len(t, f.roleRepo.updated, 1)
		assert.Equal(t, "u-1", f.roleRepo.updated[0].UserID)
		assert.Equal(t, model.RoleAdmin, f.roleRepo.updated[0].Role)
		assert.Equal(t, []string{"role.update"}, *f.calls)
	})

	t.Run("falls back to assignment when no row exists", func(t *testing.T) {
		f := newFixture()
		f.roleRepo.updateErr = mongo.ErrNoDocuments

		err := f.usecase.UpdateUserRole(context.Background(), "u-1", model.RoleAgente)
		require.NoError(t, err)

		require.Len(t, f.roleRepo.assigned, 1)
		assert.Equal(t, "u-1", f.roleRepo.assigned[0].UserID)
		assert.Equal(t, model.RoleAgente, f.roleRepo.assigned[0].Role)
		assert.Equal(t, []string{"role.update", "role.assign"}, *f.calls)
	})

	t.Run("infrastructure error surfaces", func(t *testing.T) {
		f := newFixture()
		f.roleRepo.updateErr = errors.New("store unreachable")

		err := f.usecase.UpdateUserRole(context.Background(), "u-1", model.RoleAgente)
		assert.EqualError(t, err, "store unreachable")
		assert.Equal(t, []string{"role.update"}, *f.calls)
	})
}

func TestDeleteUser_RoleProfileIdentityOrder(t *testing.T) {
	f := newFixture()

	err := f.usecase.DeleteUser(context.Background(), "id-123")
	require.NoError(t, err)

	assert.Equal(t, []string{"role.delete", "profile.delete", "provider.delete"}, *f.calls)
}
