package main

import (
	"slices"
	"sync"
)

const DefaultMaxResponsesPerCategory = 100

// ResponseLog keeps the raw bodies of successful API responses grouped by
// category. Each category holds at most max entries; appending past the
// limit drops the oldest entry. A nil log records nothing and reads as empty.
type ResponseLog struct {
	mu        sync.Mutex
	max       int
	responses map[string][]string
}

// NewResponseLog creates a log bounded to max entries per category. A
// non-positive max falls back to DefaultMaxResponsesPerCategory.
func NewResponseLog(max int) *ResponseLog {
	if max <= 0 {
		max = DefaultMaxResponsesPerCategory
	}
	return &ResponseLog{
		max:       max,
		responses: map[string][]string{},
	}
}

func (l *ResponseLog) Append(category, response string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := append(l.responses[category], response)
	if overflow := len(entries) - l.max; overflow > 0 {
		entries = slices.Clone(entries[overflow:])
	}
	l.responses[category] = entries
}

// Responses returns a copy of the entries for category, oldest first.
func (l *ResponseLog) Responses(category string) []string {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.responses[category])
}

// Latest returns the most recent entry for category.
func (l *ResponseLog) Latest(category string) (string, bool) {
	if l == nil {
		return "", false
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.responses[category]
	if len(entries) == 0 {
		return "", false
	}
	return entries[len(entries)-1], true
}

// Categories returns the known categories in sorted order.
func (l *ResponseLog) Categories() []string {
	if l == nil {
		return []string{}
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	categories := make([]string, 0, len(l.responses))
	for c := range l.responses {
		categories = append(categories, c)
	}
	slices.Sort(categories)
	return categories
}

// Max returns the per-category bound. A nil log reports the default.
func (l *ResponseLog) Max() int {
	if l == nil {
		return DefaultMaxResponsesPerCategory
	}
	return l.max
}
