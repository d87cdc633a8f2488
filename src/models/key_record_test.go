package models

import (
	"errors"
	"testing"
	"time"
)

func TestKeyRecord_NeedsReset(t *testing.T) {
	now := time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name      string
		lastReset time.Time
		want      bool
	}{
		{"same day earlier", time.Date(2026, 10, 15, 0, 0, 1, 0, time.UTC), false},
		{"same day later", time.Date(2026, 10, 15, 23, 0, 0, 0, time.UTC), false},
		{"previous day", time.Date(2026, 10, 14, 23, 59, 59, 0, time.UTC), true},
		{"same day of month, previous month", time.Date(2026, 9, 15, 9, 30, 0, 0, time.UTC), true},
		{"same date, previous year", time.Date(2025, 10, 15, 9, 30, 0, 0, time.UTC), true},
		{"non-UTC zone on the same UTC day", time.Date(2026, 10, 15, 5, 0, 0, 0, time.FixedZone("EST", -5*3600)), false},
		{"non-UTC zone on the previous UTC day", time.Date(2026, 10, 14, 18, 0, 0, 0, time.FixedZone("EST", -5*3600)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kr := &KeyRecord{LastReset: tt.lastReset}
			if got := kr.NeedsReset(now); got != tt.want {
				t.Errorf("NeedsReset() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKeyRecord_ResetIfNeeded(t *testing.T) {
	now := time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)
	kr := &KeyRecord{DailyLimit: 10, UsedToday: 7, LastReset: now.AddDate(0, 0, -3)}

	if !kr.ResetIfNeeded(now) {
		t.Fatal("expected reset for a record three days old")
	}
	if kr.UsedToday != 0 {
		t.Errorf("expected usedToday 0, got %d", kr.UsedToday)
	}
	if !kr.LastReset.Equal(now) {
		t.Errorf("expected lastReset %v, got %v", now, kr.LastReset)
	}

	kr.UsedToday = 2
	if kr.ResetIfNeeded(now.Add(time.Hour)) {
		t.Error("expected no second reset on the same day")
	}
	if kr.UsedToday != 2 {
		t.Errorf("expected usedToday to stay 2, got %d", kr.UsedToday)
	}
}

func TestKeyRecord_Remaining(t *testing.T) {
	kr := &KeyRecord{DailyLimit: 100, UsedToday: 40}
	if kr.Remaining() != 60 {
		t.Errorf("expected 60 remaining, got %d", kr.Remaining())
	}

	kr.UsedToday = 120
	if kr.Remaining() != 0 {
		t.Errorf("expected remaining to clamp at 0, got %d", kr.Remaining())
	}
}

func TestMaskKey(t *testing.T) {
	if got := MaskKey("0f370e39f301408b9c1e4af782174a96"); got != "...4a96" {
		t.Errorf("unexpected mask: %s", got)
	}
	if got := MaskKey("abc"); got != "abc" {
		t.Errorf("short keys are returned unchanged, got %s", got)
	}
}

func TestKeyPool_FindAndClone(t *testing.T) {
	pool := &KeyPool{Version: SchemaVersion, Keys: []KeyRecord{
		{Key: "a", Active: true, DailyLimit: 5},
		{Key: "b", Active: false, DailyLimit: 5},
	}}

	if pool.Find("missing") != nil {
		t.Error("expected nil for unknown key")
	}
	if pool.ActiveCount() != 1 {
		t.Errorf("expected 1 active record, got %d", pool.ActiveCount())
	}

	clone := pool.Clone()
	clone.Find("a").UsedToday = 3
	if pool.Find("a").UsedToday != 0 {
		t.Error("mutating the clone must not affect the original")
	}
}

func TestDecodePool_LegacyDocument(t *testing.T) {
	// Layout written by the original single-file deployment: no version tag
	data := []byte(`{"keys":[{"key":"k1","name":"Primary Key","active":true,"dailyLimit":100,"usedToday":4,"lastReset":"2026-10-15T00:00:00Z"}]}`)

	pool, err := DecodePool(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pool.Version != SchemaVersion {
		t.Errorf("expected version %d, got %d", SchemaVersion, pool.Version)
	}
	if len(pool.Keys) != 1 || pool.Keys[0].UsedToday != 4 || pool.Keys[0].Name != "Primary Key" {
		t.Errorf("unexpected records: %+v", pool.Keys)
	}
}

func TestDecodePool_NewerVersionRejected(t *testing.T) {
	_, err := DecodePool([]byte(`{"version":99,"keys":[]}`))
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestDecodePool_Empty(t *testing.T) {
	pool, err := DecodePool(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pool.Keys) != 0 || pool.Version != SchemaVersion {
		t.Errorf("expected empty pool, got %+v", pool)
	}
}

func TestEncodePool_SetsVersion(t *testing.T) {
	data, err := EncodePool(&KeyPool{Keys: []KeyRecord{{Key: "k", DailyLimit: 1}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pool, err := DecodePool(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pool.Version != SchemaVersion || pool.Find("k") == nil {
		t.Errorf("unexpected decoded pool: %+v", pool)
	}
}
