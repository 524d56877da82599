package model

import "time"

// Entry is an immutable in-process cache record. Overwrites replace the pointer,
// they never mutate a published entry.
type Entry struct {
	key        string
	value      any
	insertedAt int64 // unix nano
	ttl        int64 // nano, always > 0
	weight     int64 // approximate bytes: key + serialized value
}

// NewEntry stamps value with insertedAt. weight is the caller's approximation of
// the serialized value size; the key length is added here.
func NewEntry(key string, value any, insertedAt time.Time, ttl time.Duration, weight int64) *Entry {
	return &Entry{
		key:        key,
		value:      value,
		insertedAt: insertedAt.UnixNano(),
		ttl:        ttl.Nanoseconds(),
		weight:     int64(len(key)) + max(weight, 0),
	}
}

func (e *Entry) Key() string           { return e.key }
func (e *Entry) Value() any            { return e.value }
func (e *Entry) Weight() int64         { return e.weight }
func (e *Entry) TTL() time.Duration    { return time.Duration(e.ttl) }
func (e *Entry) InsertedAt() time.Time { return time.Unix(0, e.insertedAt) }

// IsExpired reports now - insertedAt > ttl.
func (e *Entry) IsExpired(now time.Time) bool {
	if e == nil {
		return false
	}
	return now.UnixNano()-e.insertedAt > e.ttl
}
