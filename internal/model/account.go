package model

import "time"

type Account struct {
	Number    string    `json:"account_number"`
	UserID    int64     `json:"-"`
	Name      string    `json:"name"`
	PINHash   string    `json:"-"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"-"`
}
