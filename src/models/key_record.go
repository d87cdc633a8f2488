package models

import (
	"time"
)

// KeyRecord is one upstream API key together with its daily quota state
type KeyRecord struct {
	Key        string    `json:"key"`
	Name       string    `json:"name"`
	Active     bool      `json:"active"`
	DailyLimit int       `json:"dailyLimit"`
	UsedToday  int       `json:"usedToday"`
	LastReset  time.Time `json:"lastReset"`
}

// Remaining returns the unused quota for the current day (never negative)
func (kr *KeyRecord) Remaining() int {
	if kr.UsedToday >= kr.DailyLimit {
		return 0
	}
	return kr.DailyLimit - kr.UsedToday
}

// HasQuota returns true if the key is active and still under its daily limit
func (kr *KeyRecord) HasQuota() bool {
	return kr.Active && kr.UsedToday < kr.DailyLimit
}

// NeedsReset reports whether the UTC calendar day of LastReset differs from now
func (kr *KeyRecord) NeedsReset(now time.Time) bool {
	last := kr.LastReset.UTC()
	cur := now.UTC()
	return last.Year() != cur.Year() || last.Month() != cur.Month() || last.Day() != cur.Day()
}

// ResetIfNeeded zeroes the counter when a new UTC day has started.
// Returns true if the record changed.
func (kr *KeyRecord) ResetIfNeeded(now time.Time) bool {
	if !kr.NeedsReset(now) {
		return false
	}
	kr.UsedToday = 0
	kr.LastReset = now.UTC()
	return true
}

// MaskedKey returns the last 4 characters of the key, safe for logs and admin listings
func (kr *KeyRecord) MaskedKey() string {
	return MaskKey(kr.Key)
}

// MaskKey returns the last 4 characters of a key, or the full key if it's shorter
func MaskKey(key string) string {
	if len(key) > 4 {
		return "..." + key[len(key)-4:]
	}
	return key
}

// KeyPool is the full persisted set of key records
type KeyPool struct {
	Version int         `json:"version"`
	Updated time.Time   `json:"updated"`
	Keys    []KeyRecord `json:"keys"`
}

// NewKeyPool creates an empty pool tagged with the current schema version
func NewKeyPool() *KeyPool {
	return &KeyPool{
		Version: SchemaVersion,
		Keys:    []KeyRecord{},
	}
}

// Find returns the record with the given key, or nil
func (p *KeyPool) Find(key string) *KeyRecord {
	for i := range p.Keys {
		if p.Keys[i].Key == key {
			return &p.Keys[i]
		}
	}
	return nil
}

// ActiveCount returns the number of active records
func (p *KeyPool) ActiveCount() int {
	count := 0
	for i := range p.Keys {
		if p.Keys[i].Active {
			count++
		}
	}
	return count
}

// Clone returns a deep copy of the pool
func (p *KeyPool) Clone() *KeyPool {
	if p == nil {
		return nil
	}
	cp := &KeyPool{
		Version: p.Version,
		Updated: p.Updated,
		Keys:    make([]KeyRecord, len(p.Keys)),
	}
	copy(cp.Keys, p.Keys)
	return cp
}
