package types

import "time"

type BaseEntity struct {
	CreatedAt time.Time `json:"created_at" db:"created_at" bson:"createdAt"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at" bson:"updatedAt"`
}
