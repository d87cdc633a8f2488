package models

import (
	"time"
)

// AdminUser represents the single admin account configured through the environment
type AdminUser struct {
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"` // never expose
	LastLogin    *time.Time `json:"last_login"`
}
