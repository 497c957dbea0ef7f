package rewrite

// Log is an insertion-ordered map of old reference strings to their new
// values. The order drives the deterministic application of text
// replacements; a Log is built per query and never shared.
type Log struct {
	keys []string
	vals map[string]string
}

// Entry is one old-to-new replacement pair.
type Entry struct {
	Old string
	New string
}

// NewLog returns an empty replacement log.
func NewLog() *Log {
	return &Log{vals: make(map[string]string)}
}

// Set records old -> new. Re-setting an existing key overwrites the value
// but keeps the key's original position.
func (l *Log) Set(old, replacement string) {
	if _, exists := l.vals[old]; !exists {
		l.keys = append(l.keys, old)
	}
	l.vals[old] = replacement
}

// Get returns the replacement recorded for old.
func (l *Log) Get(old string) (string, bool) {
	v, ok := l.vals[old]
	return v, ok
}

// Len returns the number of entries.
func (l *Log) Len() int {
	if l == nil {
		return 0
	}
	return len(l.keys)
}

// Entries returns the pairs in insertion order.
func (l *Log) Entries() []Entry {
	if l == nil {
		return nil
	}
	out := make([]Entry, 0, len(l.keys))
	for _, k := range l.keys {
		out = append(out, Entry{Old: k, New: l.vals[k]})
	}
	return out
}
