package service

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"callflow/backend/internal/security"
	"callflow/backend/internal/user/domain"
	userrepo "callflow/backend/internal/user/repository"
)

// memRepo implements userrepo.Repository in memory for service tests.
type memRepo struct {
	users     map[string]*domain.User
	projects  map[string][]string
	lastQuery userrepo.ListQuery
	createErr error
}

func newMemRepo(users ...*domain.User) *memRepo {
	r := &memRepo{users: map[string]*domain.User{}, projects: map[string][]string{}}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *memRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.users[id], nil
}

func (r *memRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (r *memRepo) List(ctx context.Context, q userrepo.ListQuery) ([]*domain.User, int, error) {
	r.lastQuery = q
	var all []*domain.User
	for _, u := range r.users {
		if q.IDs != nil && !contains(q.IDs, u.ID) {
			continue
		}
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	if q.Offset >= total {
		return nil, total, nil
	}
	end := min(q.Offset+q.Limit, total)
	return all[q.Offset:end], total, nil
}

func (r *memRepo) ProjectUserIDs(ctx context.Context, projectID string) ([]string, error) {
	return append([]string{}, r.projects[projectID]...), nil
}

func (r *memRepo) Create(ctx context.Context, u *domain.User) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.users[u.ID] = u
	return nil
}

func (r *memRepo) UpdateRole(ctx context.Context, id string, role domain.Role) error {
	r.users[id].Role = role
	return nil
}

func (r *memRepo) Delete(ctx context.Context, id string) error {
	delete(r.users, id)
	return nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func seedUsers() []*domain.User {
	return []*domain.User{
		{ID: "u1", Email: "owner@example.com", Role: domain.RoleOwner},
		{ID: "u2", Email: "admin@example.com", Role: domain.RoleAdmin},
		{ID: "u3", Email: "member@example.com", Role: domain.RoleMember},
	}
}

func TestGet(t *testing.T) {
	svc := NewUserService(newMemRepo(seedUsers()...), security.NewHasher(4))
	u, err := svc.Get(context.Background(), "u2")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if u.Email != "admin@example.com" {
		t.Errorf("email = %q", u.Email)
	}
	if _, err := svc.Get(context.Background(), "nope"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("Get(missing) = %v, want ErrUserNotFound", err)
	}
}

func TestList_ClampsLimit(t *testing.T) {
	repo := newMemRepo(seedUsers()...)
	svc := NewUserService(repo, security.NewHasher(4))

	testCases := []struct {
		offset, limit         int
		wantOffset, wantLimit int
	}{
		{0, 0, 0, 100},
		{-3, 10, 0, 10},
		{1, 1000, 1, 250},
	}
	for _, tc := range testCases {
		page, err := svc.List(context.Background(), tc.offset, tc.limit, "")
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if page.Offset != tc.wantOffset || page.Limit != tc.wantLimit {
			t.Errorf("List(%d, %d) page = %d/%d, want %d/%d", tc.offset, tc.limit, page.Offset, page.Limit, tc.wantOffset, tc.wantLimit)
		}
		if page.Total != 3 {
			t.Errorf("total = %d, want 3", page.Total)
		}
	}
}

func TestList_Project(t *testing.T) {
	repo := newMemRepo(seedUsers()...)
	repo.projects["p1"] = []string{"u1", "u3"}
	svc := NewUserService(repo, security.NewHasher(4))

	page, err := svc.List(context.Background(), 0, 10, "p1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 2 || len(page.Users) != 2 {
		t.Fatalf("page = %+v, want 2 users", page)
	}
	if page.Users[0].ID != "u1" || page.Users[1].ID != "u3" {
		t.Errorf("users = %s,%s", page.Users[0].ID, page.Users[1].ID)
	}

	page, err = svc.List(context.Background(), 0, 10, "empty")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 0 {
		t.Errorf("empty project total = %d, want 0", page.Total)
	}
	if repo.lastQuery.IDs == nil {
		t.Error("project filter must be applied even when the project has no users")
	}
}

func TestInvite(t *testing.T) {
	repo := newMemRepo(seedUsers()...)
	hasher := security.NewHasher(4)
	svc := NewUserService(repo, hasher)
	svc.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	results, err := svc.Invite(context.Background(), []Invite{
		{Email: "New@Example.com", Role: "global:member"},
		{Email: "admin@example.com", Role: "global:admin"},
	})
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}

	created := results[0]
	if created.Error != "" || created.User.ID == "" || created.User.InviteToken == "" {
		t.Fatalf("created result = %+v", created)
	}
	if created.User.Email != "new@example.com" {
		t.Errorf("email = %q, want lowercase", created.User.Email)
	}
	stored := repo.users[created.User.ID]
	if stored == nil {
		t.Fatal("invited user was not stored")
	}
	if stored.Role != domain.RoleMember {
		t.Errorf("role = %q", stored.Role)
	}
	if err := hasher.Compare(stored.PasswordHash, []byte(created.User.InviteToken)); err != nil {
		t.Errorf("invite token does not match stored hash: %v", err)
	}

	existing := results[1]
	if existing.Error != "User already exists" || existing.User.ID != "u2" {
		t.Errorf("existing result = %+v", existing)
	}
	if existing.User.InviteToken != "" {
		t.Error("existing users must not receive an invite token")
	}
}

func TestInvite_ValidationFailsWholeRequest(t *testing.T) {
	testCases := []struct {
		name    string
		invites []Invite
	}{
		{"empty", nil},
		{"bad email", []Invite{{Email: "ok@example.com", Role: "global:member"}, {Email: "nope", Role: "global:member"}}},
		{"owner role", []Invite{{Email: "x@example.com", Role: "global:owner"}}},
		{"unknown role", []Invite{{Email: "x@example.com", Role: "root"}}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newMemRepo()
			svc := NewUserService(repo, security.NewHasher(4))
			if _, err := svc.Invite(context.Background(), tc.invites); !errors.Is(err, ErrValidation) {
				t.Errorf("Invite = %v, want ErrValidation", err)
			}
			if len(repo.users) != 0 {
				t.Errorf("users created = %d, want 0", len(repo.users))
			}
		})
	}
}

func TestInvite_CreateFailureReportedPerEntry(t *testing.T) {
	repo := newMemRepo()
	repo.createErr = errors.New("db down")
	svc := NewUserService(repo, security.NewHasher(4))

	results, err := svc.Invite(context.Background(), []Invite{{Email: "x@example.com", Role: "global:member"}})
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if results[0].Error != "Could not create user" || results[0].User.InviteToken != "" {
		t.Errorf("result = %+v", results[0])
	}
}

func TestDelete(t *testing.T) {
	testCases := []struct {
		name     string
		callerID string
		id       string
		wantErr  error
	}{
		{"member", "u2", "u3", nil},
		{"self", "u2", "u2", domain.ErrDeleteSelf},
		{"owner", "u2", "u1", domain.ErrOwnerImmutable},
		{"missing", "u2", "u9", domain.ErrUserNotFound},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newMemRepo(seedUsers()...)
			svc := NewUserService(repo, security.NewHasher(4))
			err := svc.Delete(context.Background(), tc.callerID, tc.id)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Delete = %v, want %v", err, tc.wantErr)
			}
			if tc.wantErr == nil && repo.users[tc.id] != nil {
				t.Error("user should be deleted")
			}
		})
	}
}

func TestChangeRole(t *testing.T) {
	repo := newMemRepo(seedUsers()...)
	svc := NewUserService(repo, security.NewHasher(4))
	ctx := context.Background()

	if err := svc.ChangeRole(ctx, "u3", "global:admin"); err != nil {
		t.Fatalf("ChangeRole: %v", err)
	}
	if repo.users["u3"].Role != domain.RoleAdmin {
		t.Errorf("role = %q, want global:admin", repo.users["u3"].Role)
	}
	if err := svc.ChangeRole(ctx, "u1", "global:member"); !errors.Is(err, domain.ErrOwnerImmutable) {
		t.Errorf("owner change = %v, want ErrOwnerImmutable", err)
	}
	if err := svc.ChangeRole(ctx, "u3", "global:owner"); !errors.Is(err, ErrValidation) {
		t.Errorf("owner grant = %v, want ErrValidation", err)
	}
	if err := svc.ChangeRole(ctx, "u9", "global:member"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("missing = %v, want ErrUserNotFound", err)
	}
}
