package steer

import "testing"

func TestDrainSteerClearsQueue(t *testing.T) {
	q := New()
	q.PushSteer("c1", "stop")
	if !q.HasSteer("c1") {
		t.Fatal("expected steer present")
	}
	drained := q.DrainSteer("c1")
	if len(drained) != 1 || drained[0].Text != "stop" {
		t.Fatalf("unexpected drain result: %+v", drained)
	}
	if q.HasSteer("c1") {
		t.Fatal("expected HasSteer false immediately after drain")
	}
}

func TestConsumeOneFollowUpShiftsHeadOnly(t *testing.T) {
	q := New()
	q.PushFollowUp("c1", "消息1")
	q.PushFollowUp("c1", "消息2")
	q.PushFollowUp("c1", "消息3")

	want := []string{"消息1", "消息2", "消息3"}
	for _, w := range want {
		msg, ok := q.ConsumeOneFollowUp("c1")
		if !ok || msg.Text != w {
			t.Fatalf("expected %q, got %+v ok=%v", w, msg, ok)
		}
	}
	if _, ok := q.ConsumeOneFollowUp("c1"); ok {
		t.Fatal("expected no follow-up left")
	}
}

func TestFollowUpQueuesAreIndependentPerChat(t *testing.T) {
	q := New()
	q.PushFollowUp("c1", "a")
	q.PushFollowUp("c2", "b")
	if !q.HasFollowUp("c1") || !q.HasFollowUp("c2") {
		t.Fatal("expected both chats to have follow-ups")
	}
	q.DrainFollowUp("c1")
	if q.HasFollowUp("c1") {
		t.Fatal("expected c1 drained")
	}
	if !q.HasFollowUp("c2") {
		t.Fatal("expected c2 untouched")
	}
}
