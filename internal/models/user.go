package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Role string

const (
	RoleTraveler     Role = "TRAVELER"
	RoleTourOperator Role = "TOUR_OPERATOR"
	RoleAdmin        Role = "ADMIN"
)

func (r Role) Valid() bool {
	switch r {
	case RoleTraveler, RoleTourOperator, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           string    `bun:"id,pk" json:"id"`
	Email        string    `bun:"email,unique,notnull" json:"email"`
	Name         string    `bun:"name,notnull" json:"name"`
	PasswordHash string    `bun:"password_hash,notnull" json:"-"`
	Role         Role      `bun:"role,notnull" json:"role"`
	CreatedAt    time.Time `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt    time.Time `bun:"updated_at,notnull" json:"updatedAt"`
}

type CreateUserRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}
