package notify

import (
	"testing"
	"time"
)

func TestNotifyAndDismiss(t *testing.T) {
	c := NewCenter(nil, 0)

	var received []Notice
	unsubscribe := c.Subscribe(func(n Notice) { received = append(received, n) })

	first := c.Error("Save failed", "Your change was not saved.")
	c.Info("Already Applied", "")
	unsubscribe()
	c.Success("Saved", "")

	if len(received) != 2 || received[0].Severity != SeverityError {
		t.Fatalf("unexpected notices delivered: %+v", received)
	}

	if !c.Dismiss(first.ID) {
		t.Fatal("dismiss of active notice failed")
	}
	if c.Dismiss(first.ID) {
		t.Fatal("notice dismissed twice")
	}

	active := c.Active()
	if len(active) != 2 || active[0].Title != "Already Applied" || active[1].Title != "Saved" {
		t.Fatalf("unexpected active notices %+v", active)
	}
}

func TestNoticesExpire(t *testing.T) {
	c := NewCenter(nil, time.Second)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Info("old", "")
	now = now.Add(2 * time.Second)
	c.Info("new", "")

	last, ok := c.Last()
	if !ok || last.Title != "new" {
		t.Fatalf("unexpected last notice %+v", last)
	}
	if got := len(c.Active()); got != 1 {
		t.Fatalf("expected 1 active notice, got %d", got)
	}
}

func TestNoticeString(t *testing.T) {
	cases := []struct {
		notice Notice
		want   string
	}{
		{Notice{Title: "Identity Required", Message: "Please sign up to apply for this position."}, "Identity Required: Please sign up to apply for this position."},
		{Notice{Title: "Saved"}, "Saved"},
	}

	for _, tc := range cases {
		if got := tc.notice.String(); got != tc.want {
			t.Errorf("String() = %q, want %q", got, tc.want)
		}
	}
}
