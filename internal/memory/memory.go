// Package memory holds the shared cross-trial memory used by cohorts that
// enable the memory capability. Entries written by one trial are recallable
// by later trials in the same run.
package memory

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Entry is one remembered observation.
type Entry struct {
	TaskID    string    `json:"task_id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Store is a mutex-serialized append-only memory. Trials run concurrently,
// so every access goes through the lock.
type Store struct {
	mu      sync.Mutex
	entries []Entry
}

func NewStore() *Store {
	return &Store{}
}

// Append records an observation. Empty content is dropped.
func (s *Store) Append(taskID, content string) {
	content = strings.TrimSpace(content)
	if content == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, Entry{
		TaskID:    taskID,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
}

// Len reports the number of stored entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Recall returns up to topK entries ranked by term overlap with the query,
// most recent first among equal scores. A topK of zero or less returns nil.
func (s *Store) Recall(query string, topK int) []Entry {
	if topK <= 0 {
		return nil
	}

	s.mu.Lock()
	snapshot := make([]Entry, len(s.entries))
	copy(snapshot, s.entries)
	s.mu.Unlock()

	if len(snapshot) == 0 {
		return nil
	}

	terms := termSet(query)
	type scored struct {
		entry Entry
		score int
		order int
	}
	ranked := make([]scored, len(snapshot))
	for i, e := range snapshot {
		ranked[i] = scored{entry: e, score: overlap(terms, e.Content), order: i}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].order > ranked[j].order
	})

	if topK > len(ranked) {
		topK = len(ranked)
	}
	out := make([]Entry, topK)
	for i := 0; i < topK; i++ {
		out[i] = ranked[i].entry
	}
	return out
}

// Render formats recalled entries as a prompt section. Returns "" when there
// is nothing to recall.
func Render(entries []Entry) string {
	if len(entries) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Relevant observations from earlier trials:\n")
	for _, e := range entries {
		b.WriteString("- ")
		b.WriteString(e.Content)
		b.WriteString("\n")
	}
	return b.String()
}

func termSet(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, f := range strings.Fields(strings.ToLower(s)) {
		f = strings.Trim(f, ".,;:!?\"'()")
		if len(f) < 3 {
			continue
		}
		out[f] = struct{}{}
	}
	return out
}

func overlap(terms map[string]struct{}, content string) int {
	seen := map[string]struct{}{}
	for _, f := range strings.Fields(strings.ToLower(content)) {
		f = strings.Trim(f, ".,;:!?\"'()")
		if _, ok := terms[f]; !ok {
			continue
		}
		seen[f] = struct{}{}
	}
	return len(seen)
}
