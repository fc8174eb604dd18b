package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/arklim/identity-adapter/internal/core/domain"
	"github.com/arklim/identity-adapter/internal/core/port"
	"github.com/arklim/identity-adapter/internal/repository"
	"github.com/arklim/identity-adapter/internal/repository/memory"
)

type managementFixture struct {
	store  *memory.AccountStore
	roles  *memory.RoleStore
	events *recordingPublisher
	clock  *testClock
	svc    *ManagementService
}

func newManagementFixture(t *testing.T, storeOpts repository.StoreOptions, opts MetadataOptions, withRoles bool) *managementFixture {
	t.Helper()

	f := &managementFixture{clock: newTestClock(), events: &recordingPublisher{}}
	f.store = newTestStore(t, storeOpts, f.clock)

	var roles port.RoleStore
	if withRoles {
		f.roles = memory.NewRoleStore()
		roles = f.roles
	}

	svc, err := NewManagementService(f.store, roles, opts)
	if err != nil {
		t.Fatalf("NewManagementService: %v", err)
	}
	f.svc = svc.WithLogger(zaptest.NewLogger(t)).WithEvents(f.events).WithClock(f.clock.Now)
	return f
}

func propertyOf(t *testing.T, detail *domain.UserDetail, propType string) string {
	t.Helper()
	for _, p := range detail.Properties {
		if p.Type == propType {
			return p.Value
		}
	}
	t.Fatalf("property %s not present in %+v", propType, detail.Properties)
	return ""
}

func TestNewManagementServiceRequiresQueryableStore(t *testing.T) {
	clock := newTestClock()
	store := newTestStore(t, repository.StoreOptions{}, clock)

	if _, err := NewManagementService(baseStore{store}, nil, MetadataOptions{}); !errors.Is(err, ErrQueryNotSupported) {
		t.Fatalf("expected ErrQueryNotSupported, got %v", err)
	}
	if _, err := NewManagementService(nil, nil, MetadataOptions{}); !errors.Is(err, ErrStoreRequired) {
		t.Fatalf("expected ErrStoreRequired, got %v", err)
	}
}

func TestCreateUserAndGetUser(t *testing.T) {
	ctx := context.Background()
	f := newManagementFixture(t, repository.StoreOptions{RequireUniqueEmail: true}, MetadataOptions{RequireUniqueEmail: true}, false)

	res, err := f.svc.CreateUser(ctx, []domain.PropertyValue{
		{Type: domain.PropertyUsername, Value: "alice"},
		{Type: domain.PropertyPassword, Value: strongPassword},
		{Type: domain.PropertyEmail, Value: "alice@example.com"},
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if !res.IsSuccess() || res.Value.Subject == "" {
		t.Fatalf("expected created subject, got %+v", res)
	}

	account, err := f.store.FindByID(ctx, res.Value.Subject)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if account.Email != "alice@example.com" || !account.EmailConfirmed {
		t.Fatalf("expected confirmed email, got %+v", account)
	}
	if ok, _ := f.store.CheckPassword(ctx, account, strongPassword); !ok {
		t.Fatal("expected password to be set")
	}

	detail, err := f.svc.GetUser(ctx, res.Value.Subject)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if detail.Value == nil || detail.Value.Username != "alice" {
		t.Fatalf("unexpected detail %+v", detail.Value)
	}
	if got := propertyOf(t, detail.Value, domain.PropertyEmail); got != "alice@example.com" {
		t.Fatalf("expected email property, got %q", got)
	}
	if got := propertyOf(t, detail.Value, domain.PropertyPassword); got != "" {
		t.Fatalf("password must never be read back, got %q", got)
	}

	if len(f.events.accountsCreated) != 1 || f.events.accountsCreated[0].AccountID != account.ID {
		t.Fatalf("expected account created event, got %+v", f.events.accountsCreated)
	}
}

func TestCreateUserValidation(t *testing.T) {
	ctx := context.Background()
	f := newManagementFixture(t, repository.StoreOptions{RequireUniqueEmail: true}, MetadataOptions{RequireUniqueEmail: true}, false)

	t.Run("missing username", func(t *testing.T) {
		_, err := f.svc.CreateUser(ctx, []domain.PropertyValue{{Type: domain.PropertyPassword, Value: strongPassword}})
		if !errors.Is(err, ErrMissingProperty) {
			t.Fatalf("expected ErrMissingProperty, got %v", err)
		}
	})

	t.Run("missing password", func(t *testing.T) {
		_, err := f.svc.CreateUser(ctx, []domain.PropertyValue{{Type: domain.PropertyUsername, Value: "alice"}})
		if !errors.Is(err, ErrMissingProperty) {
			t.Fatalf("expected ErrMissingProperty, got %v", err)
		}
	})

	t.Run("required email", func(t *testing.T) {
		res, err := f.svc.CreateUser(ctx, []domain.PropertyValue{
			{Type: domain.PropertyUsername, Value: "alice"},
			{Type: domain.PropertyPassword, Value: strongPassword},
		})
		if err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
		if res.FirstError() != "Email is required." {
			t.Fatalf("expected required email failure, got %+v", res.Errors)
		}
	})

	t.Run("malformed email", func(t *testing.T) {
		res, err := f.svc.CreateUser(ctx, []domain.PropertyValue{
			{Type: domain.PropertyUsername, Value: "alice"},
			{Type: domain.PropertyPassword, Value: strongPassword},
			{Type: domain.PropertyEmail, Value: "not-an-email"},
		})
		if err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
		if res.FirstError() != "Email must be a valid email address." {
			t.Fatalf("expected email format failure, got %+v", res.Errors)
		}
	})

	t.Run("weak password", func(t *testing.T) {
		res, err := f.svc.CreateUser(ctx, []domain.PropertyValue{
			{Type: domain.PropertyUsername, Value: "alice"},
			{Type: domain.PropertyPassword, Value: "short"},
			{Type: domain.PropertyEmail, Value: "alice@example.com"},
		})
		if err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
		if res.IsSuccess() {
			t.Fatal("expected policy failure")
		}
	})

	t.Run("unknown property", func(t *testing.T) {
		_, err := f.svc.CreateUser(ctx, []domain.PropertyValue{
			{Type: domain.PropertyUsername, Value: "alice"},
			{Type: domain.PropertyPassword, Value: strongPassword},
			{Type: domain.PropertyEmail, Value: "alice@example.com"},
			{Type: "shoe_size", Value: "42"},
		})
		if !errors.Is(err, domain.ErrUnknownProperty) {
			t.Fatalf("expected ErrUnknownProperty, got %v", err)
		}
	})

	if len(f.events.accountsCreated) != 0 {
		t.Fatalf("no account should have been created, got %+v", f.events.accountsCreated)
	}
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	ctx := context.Background()
	f := newManagementFixture(t, repository.StoreOptions{}, MetadataOptions{}, false)
	mustCreate(t, f.store, "alice", strongPassword)

	res, err := f.svc.CreateUser(ctx, []domain.PropertyValue{
		{Type: domain.PropertyUsername, Value: "alice"},
		{Type: domain.PropertyPassword, Value: strongPassword},
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if res.FirstError() != "Username 'alice' is already taken." {
		t.Fatalf("unexpected result %+v", res.Errors)
	}
}

func TestQueryUsers(t *testing.T) {
	ctx := context.Background()
	f := newManagementFixture(t, repository.StoreOptions{}, MetadataOptions{}, false)
	alice := mustCreate(t, f.store, "alice", strongPassword)
	mustCreate(t, f.store, "alina", strongPassword)
	mustCreate(t, f.store, "bob", strongPassword)
	mustAddClaim(t, f.store, alice, domain.ClaimName, "Alice Liddell")

	res, err := f.svc.QueryUsers(ctx, "ali", 0, 10)
	if err != nil {
		t.Fatalf("QueryUsers: %v", err)
	}
	page := res.Value
	if page.Total != 2 || len(page.Items) != 2 {
		t.Fatalf("expected two matches, got %+v", page)
	}
	if page.Items[0].Username != "alice" || page.Items[1].Username != "alina" {
		t.Fatalf("expected ordering by username, got %+v", page.Items)
	}
	if page.Items[0].Name != "Alice Liddell" || page.Items[1].Name != "" {
		t.Fatalf("unexpected names %+v", page.Items)
	}
	if page.Filter != "ali" || page.Start != 0 || page.Count != 10 {
		t.Fatalf("expected echoed query, got %+v", page)
	}

	res, err = f.svc.QueryUsers(ctx, "  ", -5, -1)
	if err != nil {
		t.Fatalf("QueryUsers: %v", err)
	}
	if res.Value.Total != 3 || len(res.Value.Items) != 3 || res.Value.Start != 0 {
		t.Fatalf("expected all users unbounded, got %+v", res.Value)
	}

	res, err = f.svc.QueryUsers(ctx, "", 1, 1)
	if err != nil {
		t.Fatalf("QueryUsers: %v", err)
	}
	if res.Value.Total != 3 || len(res.Value.Items) != 1 || res.Value.Items[0].Username != "alina" {
		t.Fatalf("unexpected page %+v", res.Value)
	}
}

func TestSetUserPropertyLockedRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newManagementFixture(t, repository.StoreOptions{}, MetadataOptions{}, false)
	alice := mustCreate(t, f.store, "alice", strongPassword)

	for _, value := range []string{"true", "false", "true"} {
		res, err := f.svc.SetUserProperty(ctx, alice.ID, domain.PropertyLockedOut, value)
		if err != nil || !res.IsSuccess() {
			t.Fatalf("SetUserProperty(%s): %+v %v", value, res, err)
		}
		detail, err := f.svc.GetUser(ctx, alice.ID)
		if err != nil {
			t.Fatalf("GetUser: %v", err)
		}
		if got := propertyOf(t, detail.Value, domain.PropertyLockedOut); got != value {
			t.Fatalf("expected locked=%s, got %s", value, got)
		}
	}

	stored, _ := f.store.FindByID(ctx, alice.ID)
	if !stored.LockoutEnd.Equal(domain.LockoutEndMax) {
		t.Fatalf("expected maximal lockout end, got %v", stored.LockoutEnd)
	}

	res, err := f.svc.SetUserProperty(ctx, alice.ID, domain.PropertyLockedOut, "maybe")
	if err != nil {
		t.Fatalf("SetUserProperty: %v", err)
	}
	if res.FirstError() != "Locked must be true or false." {
		t.Fatalf("expected boolean validation failure, got %+v", res.Errors)
	}
}

func TestSetUserPropertyPasswordAndProfile(t *testing.T) {
	ctx := context.Background()
	f := newManagementFixture(t, repository.StoreOptions{}, MetadataOptions{IncludeAccountProperties: true}, false)
	alice := mustCreate(t, f.store, "alice", strongPassword)
	stamp := alice.SecurityStamp

	const newPassword = "An0ther!Passphrase#2026"
	res, err := f.svc.SetUserProperty(ctx, alice.ID, domain.PropertyPassword, newPassword)
	if err != nil || !res.IsSuccess() {
		t.Fatalf("SetUserProperty(password): %+v %v", res, err)
	}
	current, _ := f.store.FindByID(ctx, alice.ID)
	if ok, _ := f.store.CheckPassword(ctx, current, newPassword); !ok {
		t.Fatal("expected the new password to verify")
	}
	if current.SecurityStamp == stamp {
		t.Fatal("expected the security stamp to rotate")
	}

	res, err = f.svc.SetUserProperty(ctx, alice.ID, domain.PropertyPassword, "weak")
	if err != nil {
		t.Fatalf("SetUserProperty(weak): %v", err)
	}
	if res.IsSuccess() {
		t.Fatal("expected the policy to reject a weak password")
	}

	res, err = f.svc.SetUserProperty(ctx, alice.ID, domain.PropertyGivenName, "Alice")
	if err != nil || !res.IsSuccess() {
		t.Fatalf("SetUserProperty(given_name): %+v %v", res, err)
	}
	res, err = f.svc.SetUserProperty(ctx, alice.ID, domain.PropertyPhone, "+15550100")
	if err != nil || !res.IsSuccess() {
		t.Fatalf("SetUserProperty(phone): %+v %v", res, err)
	}

	current, _ = f.store.FindByID(ctx, alice.ID)
	if current.GivenName != "Alice" {
		t.Fatalf("expected given name persisted, got %+v", current)
	}
	if current.Phone != "+15550100" || !current.PhoneConfirmed {
		t.Fatalf("expected confirmed phone, got %q confirmed=%v", current.Phone, current.PhoneConfirmed)
	}

	if _, err := f.svc.SetUserProperty(ctx, alice.ID, "shoe_size", "42"); !errors.Is(err, domain.ErrUnknownProperty) {
		t.Fatalf("expected ErrUnknownProperty, got %v", err)
	}
}

func TestUserClaimsAreIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newManagementFixture(t, repository.StoreOptions{}, MetadataOptions{}, false)
	alice := mustCreate(t, f.store, "alice", strongPassword)

	for i := 0; i < 2; i++ {
		res, err := f.svc.AddUserClaim(ctx, alice.ID, "department", "research")
		if err != nil || !res.IsSuccess() {
			t.Fatalf("AddUserClaim: %+v %v", res, err)
		}
	}
	claims, _ := f.store.Claims(ctx, alice)
	if len(claims) != 1 {
		t.Fatalf("expected a single claim, got %+v", claims)
	}

	detail, _ := f.svc.GetUser(ctx, alice.ID)
	if len(detail.Value.Claims) != 1 {
		t.Fatalf("expected claim in detail, got %+v", detail.Value.Claims)
	}

	res, err := f.svc.RemoveUserClaim(ctx, alice.ID, "department", "research")
	if err != nil || !res.IsSuccess() {
		t.Fatalf("RemoveUserClaim: %+v %v", res, err)
	}
	claims, _ = f.store.Claims(ctx, alice)
	if len(claims) != 0 {
		t.Fatalf("expected claims removed, got %+v", claims)
	}
}

func TestUnknownSubject(t *testing.T) {
	ctx := context.Background()
	f := newManagementFixture(t, repository.StoreOptions{}, MetadataOptions{}, true)

	detail, err := f.svc.GetUser(ctx, "missing")
	if err != nil || !detail.IsSuccess() || detail.Value != nil {
		t.Fatalf("expected empty detail, got %+v %v", detail, err)
	}

	res, err := f.svc.DeleteUser(ctx, "missing")
	if err != nil || res.FirstError() != "Invalid subject" {
		t.Fatalf("expected invalid subject, got %+v %v", res, err)
	}
	res, err = f.svc.SetUserProperty(ctx, "missing", domain.PropertyTwoFactor, "true")
	if err != nil || res.FirstError() != "Invalid subject" {
		t.Fatalf("expected invalid subject, got %+v %v", res, err)
	}
	if _, err := f.svc.DeleteUser(ctx, ""); !errors.Is(err, ErrSubjectRequired) {
		t.Fatalf("expected ErrSubjectRequired, got %v", err)
	}

	role, err := f.svc.GetRole(ctx, "missing")
	if err != nil || role.Value != nil {
		t.Fatalf("expected empty role detail, got %+v %v", role, err)
	}
}

func TestDeleteUser(t *testing.T) {
	ctx := context.Background()
	f := newManagementFixture(t, repository.StoreOptions{}, MetadataOptions{}, false)
	alice := mustCreate(t, f.store, "alice", strongPassword)

	res, err := f.svc.DeleteUser(ctx, alice.ID)
	if err != nil || !res.IsSuccess() {
		t.Fatalf("DeleteUser: %+v %v", res, err)
	}
	if _, err := f.store.FindByID(ctx, alice.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected account gone, got %v", err)
	}
	if len(f.events.accountsDeleted) != 1 || f.events.accountsDeleted[0].Username != "alice" {
		t.Fatalf("expected delete event, got %+v", f.events.accountsDeleted)
	}
}

func TestRolesNotSupported(t *testing.T) {
	ctx := context.Background()
	f := newManagementFixture(t, repository.StoreOptions{}, MetadataOptions{}, false)

	meta, err := f.svc.GetMetadata(ctx)
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if meta.RoleMetadata.SupportsCreate || meta.RoleMetadata.SupportsDelete {
		t.Fatalf("expected role metadata to support nothing, got %+v", meta.RoleMetadata)
	}

	checks := map[string]func() error{
		"create": func() error {
			_, err := f.svc.CreateRole(ctx, []domain.PropertyValue{{Type: domain.PropertyName, Value: "admins"}})
			return err
		},
		"delete": func() error { _, err := f.svc.DeleteRole(ctx, "r1"); return err },
		"query":  func() error { _, err := f.svc.QueryRoles(ctx, "", 0, 10); return err },
		"get":    func() error { _, err := f.svc.GetRole(ctx, "r1"); return err },
		"set": func() error {
			_, err := f.svc.SetRoleProperty(ctx, "r1", domain.PropertyName, "x")
			return err
		},
	}
	for name, check := range checks {
		if err := check(); !errors.Is(err, ErrRolesNotSupported) {
			t.Fatalf("%s: expected ErrRolesNotSupported, got %v", name, err)
		}
	}
}

func TestRoleLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newManagementFixture(t, repository.StoreOptions{}, MetadataOptions{RoleClaimType: "group"}, true)

	created, err := f.svc.CreateRole(ctx, []domain.PropertyValue{
		{Type: domain.PropertyName, Value: "admins"},
		{Type: domain.PropertyDescription, Value: "Administrators"},
	})
	if err != nil || !created.IsSuccess() {
		t.Fatalf("CreateRole: %+v %v", created, err)
	}

	dup, err := f.svc.CreateRole(ctx, []domain.PropertyValue{{Type: domain.PropertyName, Value: "Admins"}})
	if err != nil {
		t.Fatalf("CreateRole duplicate: %v", err)
	}
	if dup.FirstError() != "Role name 'Admins' is already taken." {
		t.Fatalf("unexpected duplicate result %+v", dup.Errors)
	}

	if _, err := f.svc.CreateRole(ctx, nil); !errors.Is(err, ErrMissingProperty) {
		t.Fatalf("expected ErrMissingProperty, got %v", err)
	}

	res, err := f.svc.SetRoleProperty(ctx, created.Value.Subject, domain.PropertyName, "operators")
	if err != nil || !res.IsSuccess() {
		t.Fatalf("SetRoleProperty: %+v %v", res, err)
	}

	detail, err := f.svc.GetRole(ctx, created.Value.Subject)
	if err != nil || detail.Value == nil {
		t.Fatalf("GetRole: %+v %v", detail, err)
	}
	if detail.Value.Name != "operators" || detail.Value.Description != "Administrators" {
		t.Fatalf("unexpected role %+v", detail.Value)
	}

	page, err := f.svc.QueryRoles(ctx, "oper", 0, -1)
	if err != nil || page.Value.Total != 1 {
		t.Fatalf("QueryRoles: %+v %v", page, err)
	}

	meta, _ := f.svc.GetMetadata(ctx)
	if meta.RoleMetadata.RoleClaimType != "group" || !meta.RoleMetadata.SupportsCreate {
		t.Fatalf("unexpected role metadata %+v", meta.RoleMetadata)
	}

	res, err = f.svc.DeleteRole(ctx, created.Value.Subject)
	if err != nil || !res.IsSuccess() {
		t.Fatalf("DeleteRole: %+v %v", res, err)
	}
	if len(f.events.rolesCreated) != 1 || len(f.events.rolesDeleted) != 1 {
		t.Fatalf("expected role events, got %+v %+v", f.events.rolesCreated, f.events.rolesDeleted)
	}
}

func TestMetadataFollowsCapabilities(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	store := newTestStore(t, repository.StoreOptions{}, clock)

	full, err := StandardMetadata(store, nil, MetadataOptions{}, clock.Now)
	if err != nil {
		t.Fatalf("StandardMetadata: %v", err)
	}
	var types []string
	for _, p := range full.UserMetadata.UpdateProperties {
		types = append(types, p.Type)
	}
	want := []string{
		domain.PropertyPassword, domain.PropertyEmail, domain.PropertyPhone,
		domain.PropertyTwoFactor, domain.PropertyLockoutEnabled, domain.PropertyLockedOut,
	}
	if len(types) != len(want) {
		t.Fatalf("expected %v, got %v", want, types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, types)
		}
	}
	if !full.UserMetadata.SupportsClaims {
		t.Fatal("expected claims support")
	}
	if full.RoleMetadata.RoleClaimType != DefaultRoleClaimType {
		t.Fatalf("expected default role claim type, got %q", full.RoleMetadata.RoleClaimType)
	}

	limited, err := NewManagementService(newQueryOnlyStore(store), nil, MetadataOptions{})
	if err != nil {
		t.Fatalf("NewManagementService: %v", err)
	}
	meta, err := limited.GetMetadata(ctx)
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if len(meta.UserMetadata.UpdateProperties) != 0 || meta.UserMetadata.SupportsClaims {
		t.Fatalf("expected capabilities hidden, got %+v", meta.UserMetadata)
	}
	if len(meta.UserMetadata.CreateProperties) != 1 || meta.UserMetadata.CreateProperties[0].Type != domain.PropertyUsername {
		t.Fatalf("expected only username on create, got %+v", meta.UserMetadata.CreateProperties)
	}

	if _, err := limited.AddUserClaim(ctx, "x", "a", "b"); !errors.Is(err, ErrClaimsNotSupported) {
		t.Fatalf("expected ErrClaimsNotSupported, got %v", err)
	}
}

func TestCustomMetadataFunc(t *testing.T) {
	ctx := context.Background()
	f := newManagementFixture(t, repository.StoreOptions{}, MetadataOptions{}, false)
	alice := mustCreate(t, f.store, "alice", strongPassword)

	nickname := domain.PropertyMetadata[domain.Account]{
		Type: "nickname",
		Name: "Nickname",
		Get: func(context.Context, *domain.Account) (string, error) {
			return "ali", nil
		},
		Set: func(context.Context, *domain.Account, string) (domain.Result, error) {
			return domain.Failure("Nicknames are read-only."), nil
		},
	}
	f.svc.WithMetadataFunc(func(context.Context) (domain.IdentityManagerMetadata, error) {
		return domain.IdentityManagerMetadata{UserMetadata: domain.UserMetadata{
			UpdateProperties: domain.PropertyList[domain.Account]{nickname},
		}}, nil
	})

	detail, err := f.svc.GetUser(ctx, alice.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got := propertyOf(t, detail.Value, "nickname"); got != "ali" {
		t.Fatalf("expected custom property, got %q", got)
	}

	res, err := f.svc.SetUserProperty(ctx, alice.ID, "nickname", "al")
	if err != nil || res.FirstError() != "Nicknames are read-only." {
		t.Fatalf("expected setter failure, got %+v %v", res, err)
	}

	if _, err := f.svc.SetUserProperty(ctx, alice.ID, domain.PropertyTwoFactor, "true"); !errors.Is(err, domain.ErrUnknownProperty) {
		t.Fatalf("expected ErrUnknownProperty outside the custom schema, got %v", err)
	}
}

func TestLockedGetterUsesServiceClock(t *testing.T) {
	ctx := context.Background()
	f := newManagementFixture(t, repository.StoreOptions{}, MetadataOptions{}, false)
	alice := mustCreate(t, f.store, "alice", strongPassword)

	if err := f.store.SetLockoutEnd(ctx, alice, f.clock.Now().Add(time.Hour)); err != nil {
		t.Fatalf("SetLockoutEnd: %v", err)
	}
	detail, _ := f.svc.GetUser(ctx, alice.ID)
	if got := propertyOf(t, detail.Value, domain.PropertyLockedOut); got != "true" {
		t.Fatalf("expected locked, got %s", got)
	}

	f.clock.Advance(2 * time.Hour)
	detail, _ = f.svc.GetUser(ctx, alice.ID)
	if got := propertyOf(t, detail.Value, domain.PropertyLockedOut); got != "false" {
		t.Fatalf("expected lock expired, got %s", got)
	}
}
