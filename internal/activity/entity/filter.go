package entity

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
)

const dateLayout = "2006-01-02"

// Filter selects activity records. Zero-valued options impose no constraint.
type Filter struct {
	ActorID *int64
	// Action matches as a case-insensitive substring.
	Action string
	// From and To bound created_at inclusively. The range applies only when
	// both are set; a lone bound is ignored.
	From *time.Time
	To   *time.Time
}

// Predicate is one condition of a Filter. Each predicate can test a record in
// memory and render itself as SQL, so every store applies the same semantics.
type Predicate interface {
	Match(a Activity) bool
	// SQL renders the condition; bind registers an argument and returns its
	// placeholder.
	SQL(bind func(v any) string) string
}

// Predicates returns the conditions the filter imposes, in a stable order.
func (f Filter) Predicates() []Predicate {
	var ps []Predicate
	if f.ActorID != nil {
		ps = append(ps, actorIs(*f.ActorID))
	}
	if f.Action != "" {
		ps = append(ps, actionContains(f.Action))
	}
	if f.From != nil && f.To != nil {
		ps = append(ps, createdBetween{from: *f.From, to: *f.To})
	}
	return ps
}

// Match reports whether a satisfies every predicate.
func (f Filter) Match(a Activity) bool {
	for _, p := range f.Predicates() {
		if !p.Match(a) {
			return false
		}
	}
	return true
}

type actorIs int64

func (p actorIs) Match(a Activity) bool { return a.ActorID == int64(p) }

func (p actorIs) SQL(bind func(any) string) string {
	return "a.user_id = " + bind(int64(p))
}

type actionContains string

func (p actionContains) Match(a Activity) bool {
	return strings.Contains(strings.ToLower(a.Action), strings.ToLower(string(p)))
}

// strpos keeps LIKE wildcards in the needle literal.
func (p actionContains) SQL(bind func(any) string) string {
	return "strpos(lower(a.action), lower(" + bind(string(p)) + ")) > 0"
}

type createdBetween struct {
	from, to time.Time
}

func (p createdBetween) Match(a Activity) bool {
	return !a.CreatedAt.Before(p.from) && !a.CreatedAt.After(p.to)
}

func (p createdBetween) SQL(bind func(any) string) string {
	return "a.created_at BETWEEN " + bind(p.from) + " AND " + bind(p.to)
}

const badDate = "must be a date (YYYY-MM-DD) or RFC3339 timestamp"

// ParseFilter builds a Filter from query parameters: actor_id (alias user_id),
// action, from_date, to_date. Dates are YYYY-MM-DD (UTC, to_date covering the
// whole day) or RFC3339. A malformed parameter yields validation.Errors keyed
// by its name.
func ParseFilter(q url.Values) (Filter, error) {
	var f Filter

	raw := q.Get("actor_id")
	param := "actor_id"
	if raw == "" {
		raw = q.Get("user_id")
		param = "user_id"
	}
	if raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return Filter{}, validation.Errors{param: errors.New("must be a positive integer")}
		}
		f.ActorID = &id
	}

	f.Action = strings.TrimSpace(q.Get("action"))

	if raw := q.Get("from_date"); raw != "" {
		t, err := parseBound(raw, false)
		if err != nil {
			return Filter{}, validation.Errors{"from_date": errors.New(badDate)}
		}
		f.From = &t
	}
	if raw := q.Get("to_date"); raw != "" {
		t, err := parseBound(raw, true)
		if err != nil {
			return Filter{}, validation.Errors{"to_date": errors.New(badDate)}
		}
		f.To = &t
	}
	return f, nil
}

func parseBound(raw string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
