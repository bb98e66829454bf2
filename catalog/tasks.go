package catalog

import "sort"

// TaskSet is the set of content item ids a learner has completed.
type TaskSet map[string]struct{}

// NewTaskSet builds a set from ids, duplicates collapse.
func NewTaskSet(ids ...string) TaskSet {
	s := make(TaskSet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add inserts id and reports whether it was not present before.
func (s TaskSet) Add(id string) bool {
	if id == "" {
		return false
	}
	if _, ok := s[id]; ok {
		return false
	}
	s[id] = struct{}{}
	return true
}

func (s TaskSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s TaskSet) Len() int {
	return len(s)
}

// Slice returns the ids in lexical order.
func (s TaskSet) Slice() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
