package entity

import (
	"bytes"
	"encoding/json"
	"time"

	userentity "github.com/ovaphlow/pitchfork/service-audit-go/internal/user/entity"
)

// Activity is one audit record: who did what, and when.
type Activity struct {
	ID          int64               `db:"id" json:"id"`
	ActorID     int64               `db:"user_id" json:"actor_id"`
	Action      string              `db:"action" json:"action"`
	Description *string             `db:"description" json:"description"`
	CreatedAt   time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time           `db:"updated_at" json:"updated_at"`
	Actor       *userentity.Summary `db:"-" json:"actor,omitempty"`
}

// Patch is a partial update. Only action and description are mutable.
type Patch struct {
	Action      *string        `json:"action"`
	Description NullableString `json:"description"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Action == nil && !p.Description.Set
}

// Apply mutates a in place.
func (p Patch) Apply(a *Activity) {
	if p.Action != nil {
		a.Action = *p.Action
	}
	if p.Description.Set {
		a.Description = p.Description.Ptr()
	}
}

// NullableString tells apart an absent field, an explicit null and a value.
type NullableString struct {
	Set   bool
	Valid bool
	Value string
}

func (n *NullableString) UnmarshalJSON(b []byte) error {
	n.Set = true
	if bytes.Equal(b, []byte("null")) {
		n.Valid = false
		n.Value = ""
		return nil
	}
	if err := json.Unmarshal(b, &n.Value); err != nil {
		return err
	}
	n.Valid = true
	return nil
}

// Ptr returns nil for null, else a pointer to the value.
func (n NullableString) Ptr() *string {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

// ActorCount is the number of records attributed to one actor.
type ActorCount struct {
	ActorID int64 `db:"user_id" json:"actor_id"`
	Count   int   `db:"action_count" json:"action_count"`
}

// ActionCount is the number of records for one action. FirstID is the
// lowest record id carrying the action, i.e. where it was first seen.
type ActionCount struct {
	Action  string `db:"action"`
	Count   int    `db:"count"`
	FirstID int64  `db:"first_id"`
}
