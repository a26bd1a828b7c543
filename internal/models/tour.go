package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Tour struct {
	bun.BaseModel `bun:"table:tours,alias:t"`

	ID          string    `bun:"id,pk" json:"id"`
	Name        string    `bun:"name,unique,notnull" json:"name"`
	Location    string    `bun:"location,notnull" json:"location"`
	Description string    `bun:"description" json:"description"`
	CreatedAt   time.Time `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt   time.Time `bun:"updated_at,notnull" json:"updatedAt"`
}

type Group struct {
	bun.BaseModel `bun:"table:tour_groups,alias:g"`

	ID        string        `bun:"id,pk" json:"id"`
	Name      string        `bun:"name,unique,notnull" json:"name"`
	LeaderID  string        `bun:"leader_id,notnull" json:"leaderId"`
	TourID    string        `bun:"tour_id,notnull" json:"tourId"`
	CreatedAt time.Time     `bun:"created_at,notnull" json:"createdAt"`
	Members   []GroupMember `bun:"rel:has-many,join:id=group_id" json:"members,omitempty"`
}

type GroupMember struct {
	bun.BaseModel `bun:"table:group_members,alias:gm"`

	ID       string    `bun:"id,pk" json:"id"`
	GroupID  string    `bun:"group_id,notnull" json:"groupId"`
	UserID   string    `bun:"user_id,notnull" json:"userId"`
	JoinedAt time.Time `bun:"joined_at,notnull" json:"joinedAt"`
}
