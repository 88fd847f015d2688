package storagetypes

import (
	"strconv"
	"time"
)

// UserID is the chat platform's numeric user identifier.
type UserID int64

func (id UserID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Mention renders the id as a chat mention.
func (id UserID) Mention() string {
	return "<@" + id.String() + ">"
}

// Entry is one stored (user, key, value) triple with its timestamps.
type Entry struct {
	UserID UserID `json:"user_id" yaml:"user_id"`
	Key    string `json:"key" yaml:"key"`
	Value  string `json:"value" yaml:"value"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}
