package devapi

import (
	"cmp"
	"slices"
	"strings"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/blood-bank-console/internal/errors"
	"github.com/jrsteele09/blood-bank-console/users"
)

type account struct {
	user         users.User
	passwordHash string
}

// userTable is the in-memory account store
type userTable struct {
	mu      sync.RWMutex
	nextID  int64
	byID    map[int64]*account
	byName  map[string]int64
	nowFunc func() time.Time
}

func newUserTable(now func() time.Time) *userTable {
	return &userTable{
		nextID:  1,
		byID:    make(map[int64]*account),
		byName:  make(map[string]int64),
		nowFunc: now,
	}
}

// Create adds an account. It fails if the username is taken.
func (t *userTable) Create(u users.User, password string) (*users.User, error) {
	hash, err := users.HashPassword(password)
	if err != nil {
		return nil, apperrors.Wrapf(err, "userTable.Create hash password")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	key := strings.ToLower(u.Username)
	if _, exists := t.byName[key]; exists {
		return nil, errUsernameTaken
	}
	now := t.nowFunc()
	u.ID = t.nextID
	u.IsActiveAccount = true
	u.CreatedAt = now
	u.UpdatedAt = now
	t.nextID++
	t.byID[u.ID] = &account{user: u, passwordHash: hash}
	t.byName[key] = u.ID
	return u.Clone(), nil
}

// Authenticate returns the user when username and password match
func (t *userTable) Authenticate(username, password string) (*users.User, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.byName[strings.ToLower(username)]
	if !ok {
		return nil, false
	}
	acc := t.byID[id]
	if !acc.user.IsActiveAccount || !users.CheckPasswordHash(password, acc.passwordHash) {
		return nil, false
	}
	return acc.user.Clone(), true
}

func (t *userTable) Get(id int64) (*users.User, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	acc, ok := t.byID[id]
	if !ok {
		return nil, false
	}
	return acc.user.Clone(), true
}

// List returns every account ordered by id
func (t *userTable) List() []users.User {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]users.User, 0, len(t.byID))
	for _, acc := range t.byID {
		out = append(out, acc.user)
	}
	slices.SortFunc(out, func(a, b users.User) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Update applies fn to the stored user and returns the result
func (t *userTable) Update(id int64, fn func(u *users.User)) (*users.User, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	acc, ok := t.byID[id]
	if !ok {
		return nil, false
	}
	fn(&acc.user)
	acc.user.UpdatedAt = t.nowFunc()
	return acc.user.Clone(), true
}

// SetPassword replaces the password after checking the old one
func (t *userTable) SetPassword(id int64, oldPassword, newPassword string) error {
	hash, err := users.HashPassword(newPassword)
	if err != nil {
		return apperrors.Wrapf(err, "userTable.SetPassword hash password")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	acc, ok := t.byID[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	if !users.CheckPasswordHash(oldPassword, acc.passwordHash) {
		return errOldPasswordIncorrect
	}
	acc.passwordHash = hash
	acc.user.UpdatedAt = t.nowFunc()
	return nil
}
