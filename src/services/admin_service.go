package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/khabaroff/apikey-rotator/src/models"
	"golang.org/x/crypto/bcrypt"
)

// AdminService authenticates the admin account configured through the environment
type AdminService struct {
	mu    sync.Mutex
	admin *models.AdminUser
	now   func() time.Time
}

// NewAdminService hashes password with bcrypt and keeps only the hash.
// Empty credentials return a disabled service.
func NewAdminService(username, password string) (*AdminService, error) {
	as := &AdminService{now: time.Now}
	if username == "" || password == "" {
		return as, nil
	}

	if len(username) > 255 {
		return nil, errors.New("username must be between 1 and 255 characters")
	}
	if len(password) < 8 {
		return nil, errors.New("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	as.admin = &models.AdminUser{
		Username:     username,
		PasswordHash: string(hash),
	}
	return as, nil
}

// Enabled returns true if admin credentials are configured
func (as *AdminService) Enabled() bool {
	return as != nil && as.admin != nil
}

// AuthenticateAdmin verifies username and password
func (as *AdminService) AuthenticateAdmin(_ context.Context, username, password string) (*models.AdminUser, error) {
	if !as.Enabled() {
		return nil, ErrInvalidCredentials
	}

	// compare the hash even on a username mismatch so both paths take the same time
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(as.admin.Username)) == 1
	passErr := bcrypt.CompareHashAndPassword([]byte(as.admin.PasswordHash), []byte(password))
	if !userOK || passErr != nil {
		return nil, ErrInvalidCredentials
	}

	// only LastLogin changes after construction
	as.mu.Lock()
	defer as.mu.Unlock()

	now := as.now()
	as.admin.LastLogin = &now

	admin := *as.admin
	return &admin, nil
}
