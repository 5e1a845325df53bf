package server

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestAudit(t *testing.T, limit int) *AuditLog {
	t.Helper()
	audit, err := OpenAuditLog(filepath.Join(t.TempDir(), "audit.db"), limit, 5)
	if err != nil {
		t.Fatalf("OpenAuditLog: %v", err)
	}
	t.Cleanup(func() { audit.Close() })
	return audit
}

func TestAuditRecordAndRecent(t *testing.T) {
	audit := openTestAudit(t, 100)

	for i, raw := range []string{"kick bob", "ban carl 30", "mute dave"} {
		err := audit.Record(AuditEntry{
			Time:     time.Now(),
			Invoker:  int32(i + 1),
			Name:     "admin",
			Command:  commandWord(raw),
			Raw:      raw,
			Result:   1,
			Duration: 125 * time.Microsecond,
		})
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	entries, err := audit.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Recent returned %d entries, want 3", len(entries))
	}
	// Newest first.
	if entries[0].Raw != "mute dave" {
		t.Errorf("entries[0].Raw = %q, want the latest dispatch", entries[0].Raw)
	}
	if entries[2].Command != "kick" {
		t.Errorf("entries[2].Command = %q, want kick", entries[2].Command)
	}
	if entries[0].Invoker != 3 {
		t.Errorf("entries[0].Invoker = %d, want 3", entries[0].Invoker)
	}
}

func TestAuditRecentClampsToLimit(t *testing.T) {
	audit := openTestAudit(t, 2)

	for i := 0; i < 5; i++ {
		if err := audit.Record(AuditEntry{Time: time.Now(), Invoker: 1, Raw: "x"}); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := audit.Recent(50)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("Recent returned %d entries, want clamp to 2", len(entries))
	}
}

func TestAuditRoundTripsResultAndCode(t *testing.T) {
	audit := openTestAudit(t, 10)

	err := audit.Record(AuditEntry{
		Time:    time.Now(),
		Invoker: 7,
		Name:    "rena",
		Command: "kick",
		Raw:     "kick",
		Result:  -1,
		ErrCode: 7,
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	entries, err := audit.Recent(1)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	e := entries[0]
	if e.Result != -1 || e.ErrCode != 7 {
		t.Errorf("got result=%d code=%d, want -1/7", e.Result, e.ErrCode)
	}
	if e.Name != "rena" {
		t.Errorf("Name = %q, want rena", e.Name)
	}
}
