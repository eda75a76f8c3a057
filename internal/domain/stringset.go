package domain

import "encoding/json"

// StringSet is an insertion-ordered set of string ids.
// It serializes as a JSON array and never holds duplicates.
type StringSet struct {
	items []string
}

// NewStringSet builds a set from ids, dropping duplicates and empty strings.
func NewStringSet(ids ...string) StringSet {
	var s StringSet
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add inserts id and reports whether it was newly added.
func (s *StringSet) Add(id string) bool {
	if id == "" || s.Contains(id) {
		return false
	}
	s.items = append(s.items, id)
	return true
}

// Contains reports whether id is a member.
func (s StringSet) Contains(id string) bool {
	for _, item := range s.items {
		if item == id {
			return true
		}
	}
	return false
}

// Len returns the number of members.
func (s StringSet) Len() int { return len(s.items) }

// Items returns a copy of the members in insertion order.
func (s StringSet) Items() []string {
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}

func (s StringSet) MarshalJSON() ([]byte, error) {
	if s.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.items)
}

func (s *StringSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewStringSet(ids...)
	return nil
}
