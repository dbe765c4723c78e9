package models

import "testing"

func TestNormalizeStatus(t *testing.T) {
	cases := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"inbox", "inbox", true},
		{"IN_PROGRESS", "in_progress", true},
		{"  Done ", "done", true},
		{"ARCHIVED", "archived", true},
		{"sideways", "sideways", false},
		{"", "", false},
	}
	for _, c := range cases {
		got, ok := NormalizeStatus(c.in)
		if got != c.want || ok != c.wantOK {
			t.Errorf("NormalizeStatus(%q) = (%q, %v), want (%q, %v)", c.in, got, ok, c.want, c.wantOK)
		}
	}
}

func TestTaskPatchIsZero(t *testing.T) {
	if !(TaskPatch{}).IsZero() {
		t.Error("empty patch should be zero")
	}
	s := StatusDone
	if (TaskPatch{Status: &s}).IsZero() {
		t.Error("patch with a status is not zero")
	}
	empty := []string{}
	if (TaskPatch{Assignees: &empty}).IsZero() {
		t.Error("an explicit empty assignee list still counts as a change")
	}
}

func TestValidators(t *testing.T) {
	if !ValidStatus(StatusReview) || ValidStatus("limbo") {
		t.Error("ValidStatus mismatch")
	}
	if !ValidPriority(PriorityCritical) || ValidPriority("mild") {
		t.Error("ValidPriority mismatch")
	}
	if !ValidAgentStatus(AgentBlocked) || ValidAgentStatus("napping") {
		t.Error("ValidAgentStatus mismatch")
	}
}
