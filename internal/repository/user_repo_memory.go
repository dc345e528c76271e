package repository

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"users-api/internal/domain"
)

// MemoryUserRepository guarda usuarios en memoria respetando el orden de inserción.
// Sirve para desarrollo local (STORE_DRIVER=memory) y tests.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]domain.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID: make(map[string]domain.User),
	}
}

func (r *MemoryUserRepository) Create(_ context.Context, user domain.User) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.emailTakenLocked(user.Email, "") {
		return domain.User{}, ErrEmailTaken
	}
	user.ID = uuid.NewString()
	r.byID[user.ID] = user
	r.order = append(r.order, user.ID)
	return user, nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.byID[id]
	if !ok {
		return domain.User{}, ErrNotFound
	}
	return user, nil
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.order {
		if u := r.byID[id]; u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, ErrNotFound
}

func (r *MemoryUserRepository) List(_ context.Context, q domain.ListQuery) ([]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	needle := strings.ToLower(q.Search)
	users := make([]domain.User, 0, q.Limit)
	skipped := 0
	for _, id := range r.order {
		if len(users) >= q.Limit {
			break
		}
		u := r.byID[id]
		if needle != "" &&
			!strings.Contains(strings.ToLower(u.Name), needle) &&
			!strings.Contains(strings.ToLower(u.Email), needle) {
			continue
		}
		if skipped < q.Skip {
			skipped++
			continue
		}
		users = append(users, u)
	}
	return users, nil
}

func (r *MemoryUserRepository) Update(_ context.Context, id string, patch domain.UserPatch) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return domain.User{}, ErrNotFound
	}
	if patch.Email != nil && r.emailTakenLocked(*patch.Email, id) {
		return domain.User{}, ErrEmailTaken
	}
	if patch.Name != nil {
		user.Name = *patch.Name
	}
	if patch.Email != nil {
		user.Email = *patch.Email
	}
	if patch.PasswordHash != nil {
		user.PasswordHash = *patch.PasswordHash
	}
	user.UpdatedAt = patch.UpdatedAt
	r.byID[id] = user
	return user, nil
}

func (r *MemoryUserRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return ErrNotFound
	}
	delete(r.byID, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *MemoryUserRepository) Ping(_ context.Context) error {
	return nil
}

func (r *MemoryUserRepository) emailTakenLocked(email, exceptID string) bool {
	for id, u := range r.byID {
		if id != exceptID && u.Email == email {
			return true
		}
	}
	return false
}
