package circuitbreaker

import (
	"testing"
	"time"

	"github.com/truesoulcoder/crm-admin-sub001/internal/testutil"
)

const mailbox = "kyle@truesoul.example"

func TestAllow_UnknownMailbox(t *testing.T) {
	cb := New(3, 5*time.Second)
	if err := cb.Allow(mailbox); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestAllow_BelowThreshold(t *testing.T) {
	cb := New(3, 5*time.Second)
	cb.RecordFailure(mailbox)
	cb.RecordFailure(mailbox)
	if err := cb.Allow(mailbox); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestAllow_AtThreshold_Open(t *testing.T) {
	cb := New(3, 5*time.Second)
	cb.RecordFailure(mailbox)
	cb.RecordFailure(mailbox)
	cb.RecordFailure(mailbox)
	if err := cb.Allow(mailbox); err == nil {
		t.Fatal("expected ErrCircuitOpen, got nil")
	}
}

func TestAllow_AfterCooldown_HalfOpenProbe(t *testing.T) {
	clk := testutil.NewFakeClock(time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC))
	cb := New(3, time.Minute)
	cb.clock = clk.Now

	cb.RecordFailure(mailbox)
	cb.RecordFailure(mailbox)
	cb.RecordFailure(mailbox)

	clk.Advance(2 * time.Minute)
	if err := cb.Allow(mailbox); err != nil {
		t.Fatalf("expected probe allowed, got %v", err)
	}
	if err := cb.Allow(mailbox); err == nil {
		t.Fatal("expected ErrCircuitOpen while probe in flight")
	}
}

func TestRecordSuccess_Closes(t *testing.T) {
	clk := testutil.NewFakeClock(time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC))
	cb := New(3, time.Minute)
	cb.clock = clk.Now

	cb.RecordFailure(mailbox)
	cb.RecordFailure(mailbox)
	cb.RecordFailure(mailbox)

	clk.Advance(2 * time.Minute)
	cb.Allow(mailbox)
	cb.RecordSuccess(mailbox)

	if err := cb.Allow(mailbox); err != nil {
		t.Fatalf("expected closed after success, got %v", err)
	}
}

func TestMailboxesAreIndependent(t *testing.T) {
	cb := New(1, time.Minute)
	cb.RecordFailure("a@truesoul.example")

	if err := cb.Allow("a@truesoul.example"); err == nil {
		t.Fatal("a should be open")
	}
	if err := cb.Allow("b@truesoul.example"); err != nil {
		t.Fatalf("b should be unaffected, got %v", err)
	}
}
