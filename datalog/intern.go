package datalog

import (
	"sync"
)

// KeywordIntern provides keyword interning to avoid repeated allocations
// Uses sync.Map for lock-free concurrent reads
type KeywordIntern struct {
	cache sync.Map // map[string]*Keyword
}

// Global keyword intern instance
var keywordIntern = &KeywordIntern{}

// InternKeyword returns an interned keyword instance
func InternKeyword(s string) *Keyword {
	// Fast path: load existing (lock-free)
	if val, ok := keywordIntern.cache.Load(s); ok {
		return val.(*Keyword)
	}

	// Slow path: create and store
	kw := NewKeyword(s)
	actual, _ := keywordIntern.cache.LoadOrStore(s, &kw)
	return actual.(*Keyword)
}

// ClearInterns clears the keyword intern cache
// Useful for testing or when memory needs to be reclaimed
func ClearInterns() {
	keywordIntern = &KeywordIntern{}
}
