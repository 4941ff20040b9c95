package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeReaper struct {
	maxAge time.Duration
	n      int
}

func (f *fakeReaper) Reap(maxAge time.Duration) int {
	f.maxAge = maxAge
	return f.n
}

type fakePruner struct {
	before time.Time
	n      int64
	err    error
}

func (f *fakePruner) Prune(_ context.Context, before time.Time) (int64, error) {
	f.before = before
	return f.n, f.err
}

func TestSessionReapAction(t *testing.T) {
	r := &fakeReaper{n: 3}
	fn := SessionReapAction(r, 2*time.Hour, newTestLogger())
	if err := fn(context.Background()); err != nil {
		t.Fatalf("action: %v", err)
	}
	if r.maxAge != 2*time.Hour {
		t.Errorf("maxAge = %v", r.maxAge)
	}
}

func TestSessionReapActionCancelled(t *testing.T) {
	r := &fakeReaper{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := SessionReapAction(r, time.Hour, newTestLogger())(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want Canceled", err)
	}
	if r.maxAge != 0 {
		t.Error("reaper should not run on a cancelled context")
	}
}

func TestAuditRetentionAction(t *testing.T) {
	p := &fakePruner{n: 5}
	before := time.Now()
	if err := AuditRetentionAction(p, 24*time.Hour, newTestLogger())(context.Background()); err != nil {
		t.Fatalf("action: %v", err)
	}
	cutoff := before.Add(-24 * time.Hour)
	if p.before.Before(cutoff.Add(-time.Second)) || p.before.After(cutoff.Add(time.Second)) {
		t.Errorf("cutoff = %v, want about %v", p.before, cutoff)
	}
}

func TestAuditRetentionActionError(t *testing.T) {
	p := &fakePruner{err: errors.New("disk full")}
	if err := AuditRetentionAction(p, time.Hour, newTestLogger())(context.Background()); err == nil {
		t.Error("expected prune error to propagate")
	}
}
