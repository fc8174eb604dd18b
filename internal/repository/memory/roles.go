package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	uuid "github.com/google/uuid"

	"github.com/arklim/identity-adapter/internal/core/domain"
	"github.com/arklim/identity-adapter/internal/core/port"
	"github.com/arklim/identity-adapter/internal/repository"
)

// RoleStore keeps roles in process memory. Role names are unique case-insensitively.
// Memberships are keyed by role ID so renames and deletes reach them.
type RoleStore struct {
	mu      sync.RWMutex
	roles   map[string]domain.Role
	members map[string]map[string]struct{} // role id -> account ids
}

// NewRoleStore constructs an empty role store.
func NewRoleStore() *RoleStore {
	return &RoleStore{
		roles:   make(map[string]domain.Role),
		members: make(map[string]map[string]struct{}),
	}
}

// FindByID implements port.RoleStore.
func (s *RoleStore) FindByID(_ context.Context, id string) (*domain.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	role, ok := s.roles[strings.TrimSpace(id)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &role, nil
}

// Create implements port.RoleStore.
func (s *RoleStore) Create(_ context.Context, role *domain.Role) error {
	if role == nil {
		return fmt.Errorf("role is required")
	}
	if role.Persisted() {
		return repository.Reject("Role already exists.")
	}

	name := strings.TrimSpace(role.Name)
	if name == "" {
		return repository.Reject("Role name is required.")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nameTakenLocked(name, "") {
		return repository.Reject(fmt.Sprintf("Role name '%s' is already taken.", name))
	}

	role.ID = uuid.NewString()
	role.Name = name
	s.roles[role.ID] = *role
	return nil
}

// Update implements port.RoleStore.
func (s *RoleStore) Update(_ context.Context, role *domain.Role) error {
	if !role.Persisted() {
		return repository.ErrNotFound
	}

	name := strings.TrimSpace(role.Name)
	if name == "" {
		return repository.Reject("Role name is required.")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roles[role.ID]; !ok {
		return repository.ErrNotFound
	}
	if s.nameTakenLocked(name, role.ID) {
		return repository.Reject(fmt.Sprintf("Role name '%s' is already taken.", name))
	}

	role.Name = name
	s.roles[role.ID] = *role
	return nil
}

// Delete implements port.RoleStore.
func (s *RoleStore) Delete(_ context.Context, role *domain.Role) error {
	if !role.Persisted() {
		return repository.ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roles[role.ID]; !ok {
		return repository.ErrNotFound
	}
	delete(s.roles, role.ID)
	delete(s.members, role.ID)
	return nil
}

// QueryRoles implements port.RoleStore.
func (s *RoleStore) QueryRoles(_ context.Context, query domain.Query) ([]domain.Role, int, error) {
	filter := strings.ToLower(strings.TrimSpace(query.Filter))

	s.mu.RLock()
	matched := make([]domain.Role, 0, len(s.roles))
	for _, role := range s.roles {
		if filter == "" || strings.Contains(strings.ToLower(role.Name), filter) {
			matched = append(matched, role)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })
	return page(matched, query), len(matched), nil
}

// AddMember puts the account into the role.
func (s *RoleStore) AddMember(_ context.Context, role *domain.Role, account *domain.Account) error {
	if !role.Persisted() || !account.Persisted() {
		return repository.Reject("Account and role are required.")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.roles[role.ID]
	if !ok {
		return repository.ErrNotFound
	}
	members := s.members[role.ID]
	if members == nil {
		members = make(map[string]struct{})
		s.members[role.ID] = members
	}
	if _, ok := members[account.ID]; ok {
		return repository.Reject(fmt.Sprintf("Account already in role '%s'.", stored.Name))
	}
	members[account.ID] = struct{}{}
	return nil
}

func (s *RoleStore) namesFor(accountID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := []string{}
	for roleID, members := range s.members {
		if _, ok := members[accountID]; ok {
			names = append(names, s.roles[roleID].Name)
		}
	}
	sort.Strings(names)
	return names
}

func (s *RoleStore) dropAccount(accountID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, members := range s.members {
		delete(members, accountID)
	}
}

func (s *RoleStore) nameTakenLocked(name, exceptID string) bool {
	for id, role := range s.roles {
		if id != exceptID && strings.EqualFold(role.Name, name) {
			return true
		}
	}
	return false
}

var _ port.RoleStore = (*RoleStore)(nil)
