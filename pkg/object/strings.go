package object

// StringPool is the file-level deduplicated string table some container
// versions store string fields in. Indices are stable across Intern calls,
// first-seen order.
type StringPool struct {
	strings []string
	index   map[string]uint32
	maxLen  int
}

// NewStringPool returns an empty pool.
func NewStringPool() *StringPool {
	return &StringPool{index: make(map[string]uint32)}
}

// Intern adds s to the pool if absent and returns its index. The empty
// string is never pooled; callers encode it with the no-string sentinel.
func (p *StringPool) Intern(s string) uint32 {
	if i, ok := p.index[s]; ok {
		return i
	}
	i := uint32(len(p.strings))
	p.strings = append(p.strings, s)
	p.index[s] = i
	if len(s) > p.maxLen {
		p.maxLen = len(s)
	}
	return i
}

// Load fills the pool from a container header, keeping positions exactly
// as stored even when entries repeat. Intern resolves a repeated string
// to its first position.
func (p *StringPool) Load(ss []string) {
	p.Reset()
	for _, s := range ss {
		if _, ok := p.index[s]; !ok {
			p.index[s] = uint32(len(p.strings))
		}
		p.strings = append(p.strings, s)
		if len(s) > p.maxLen {
			p.maxLen = len(s)
		}
	}
}

// Get returns the string at index i.
func (p *StringPool) Get(i uint32) (string, bool) {
	if int(i) >= len(p.strings) {
		return "", false
	}
	return p.strings[i], true
}

// Len returns the number of pooled strings.
func (p *StringPool) Len() int {
	return len(p.strings)
}

// Strings returns the pool in index order. The slice is the pool's own
// backing store; callers must not mutate it.
func (p *StringPool) Strings() []string {
	return p.strings
}

// MaxLength returns the length of the longest pooled string.
func (p *StringPool) MaxLength() int {
	return p.maxLen
}

// Reset empties the pool for a fresh write pass.
func (p *StringPool) Reset() {
	p.strings = p.strings[:0]
	p.index = make(map[string]uint32)
	p.maxLen = 0
}
