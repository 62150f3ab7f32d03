package model

import "time"

type User struct {
	ID                int64      `json:"id"`
	Name              string     `json:"name"`
	Email             string     `json:"email"`
	PasswordHash      string     `json:"-"`
	FailedLoginCount  int        `json:"-"`
	LastFailedLoginAt *time.Time `json:"-"`
	CreatedAt         time.Time  `json:"-"`
}
