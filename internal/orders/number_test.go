package orders

import (
	"regexp"
	"testing"
	"time"
)

func TestGenerateOrderNumberFormat(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 15, 23, 59, 0, 0, time.FixedZone("CST", 8*3600))
	number, err := GenerateOrderNumber(now)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	// The date segment is UTC, so the +08:00 wall clock rolls back a day.
	pattern := regexp.MustCompile(`^ORD-20250615-[0-9A-Z]{6}$`)
	if !pattern.MatchString(number) {
		t.Fatalf("unexpected format %q", number)
	}
}

func TestGenerateOrderNumberUsesUTCDate(t *testing.T) {
	t.Parallel()

	// 01:30 on the 16th in Taipei is still the 15th in UTC.
	now := time.Date(2025, 6, 16, 1, 30, 0, 0, time.FixedZone("CST", 8*3600))
	number, err := GenerateOrderNumber(now)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got := number[4:12]; got != "20250615" {
		t.Fatalf("expected UTC date 20250615, got %s", got)
	}
}

func TestGenerateOrderNumberVaries(t *testing.T) {
	t.Parallel()

	now := time.Now()
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		number, err := GenerateOrderNumber(now)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		seen[number] = true
	}
	if len(seen) < 45 {
		t.Fatalf("suffixes barely vary: %d unique of 50", len(seen))
	}
}
