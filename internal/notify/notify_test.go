package notify

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/chojs23/runme/internal/domain"
)

func TestSlackNotifier_Send(t *testing.T) {
	var got SlackMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewSlackNotifier(server.URL)
	err := notifier.Send(Notification{
		Title:    "README.md: 1 block failing",
		Message:  "Summary: 2 blocks",
		Type:     NotifyError,
		Document: "README.md",
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if got.Text != "README.md: 1 block failing" {
		t.Errorf("Text = %q", got.Text)
	}
	if len(got.Attachments) != 1 {
		t.Fatalf("Attachments = %d, want 1", len(got.Attachments))
	}
	a := got.Attachments[0]
	if a.Color != "danger" || a.Title != "README.md" || a.Footer != "runme" {
		t.Errorf("attachment = %+v", a)
	}
}

func TestSlackNotifier_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_token", http.StatusForbidden)
	}))
	defer server.Close()

	err := NewSlackNotifier(server.URL).Send(Notification{Title: "x"})
	if err == nil || !strings.Contains(err.Error(), "403") || !strings.Contains(err.Error(), "invalid_token") {
		t.Errorf("Send() error = %v, want status and body", err)
	}
}

func TestSlackNotifier_Disabled(t *testing.T) {
	if err := NewSlackNotifier("").Send(Notification{Title: "x"}); err != nil {
		t.Errorf("empty webhook should be a no-op, got %v", err)
	}
}

func TestNotificationTypeColors(t *testing.T) {
	tests := []struct {
		typ  NotificationType
		want string
	}{
		{NotifySuccess, "good"},
		{NotifyWarning, "warning"},
		{NotifyError, "danger"},
		{NotifyInfo, "#439FE0"},
	}

	for _, tt := range tests {
		got := SlackColor(tt.typ)
		if got != tt.want {
			t.Errorf("SlackColor(%v) = %s, want %s", tt.typ, got, tt.want)
		}
	}
}

func TestAppleScriptQuoting(t *testing.T) {
	got := appleScript(Notification{Title: `say "hi"`, Message: "ok"})
	want := `display notification "ok" with title "say \"hi\""`
	if got != want {
		t.Errorf("appleScript() = %q, want %q", got, want)
	}
}

func TestMultiNotifier(t *testing.T) {
	var called []string

	mock1 := &mockNotifier{name: "mock1", calls: &called}
	mock2 := &mockNotifier{name: "mock2", calls: &called, err: errors.New("boom")}

	multi := NewMultiNotifier(mock1, mock2)
	if err := multi.Send(Notification{Title: "Test"}); err == nil {
		t.Error("MultiNotifier should surface a failing notifier")
	}

	if len(called) != 2 {
		t.Errorf("Expected 2 calls, got %d", len(called))
	}
}

func TestForRun(t *testing.T) {
	r := &domain.RunReport{
		Document: "README.md",
		Results: []*domain.BlockResult{
			{BlockID: "block-001", Status: domain.StatusSucceeded},
			{BlockID: "block-002", Status: domain.StatusFailed},
		},
	}

	tests := []struct {
		exit      int
		wantType  NotificationType
		wantTitle string
	}{
		{0, NotifySuccess, "README.md: docs are runnable again"},
		{1, NotifyError, "README.md: 1 block failing"},
		{3, NotifyWarning, "README.md: sandbox errors"},
		{130, NotifyInfo, "README.md: run interrupted"},
	}
	for _, tt := range tests {
		n := ForRun(r, tt.exit)
		if n.Type != tt.wantType || n.Title != tt.wantTitle {
			t.Errorf("ForRun(exit %d) = %+v", tt.exit, n)
		}
		if !strings.HasPrefix(n.Message, "Summary: 2 blocks") {
			t.Errorf("Message = %q", n.Message)
		}
	}
}

func TestTracker(t *testing.T) {
	var called []string
	tracker := NewTracker(&mockNotifier{name: "m", calls: &called})
	r := &domain.RunReport{Document: "README.md"}

	steps := []struct {
		exit int
		want bool
	}{
		{0, false},   // first run passing is quiet
		{0, false},   // unchanged
		{1, true},    // broke
		{1, false},   // still broken
		{130, false}, // interrupts never notify
		{0, true},    // fixed
	}
	for i, s := range steps {
		sent, err := tracker.Observe(r, s.exit)
		if err != nil {
			t.Fatal(err)
		}
		if sent != s.want {
			t.Errorf("step %d (exit %d): sent = %v, want %v", i, s.exit, sent, s.want)
		}
	}
	if len(called) != 2 {
		t.Errorf("notifier called %d times, want 2", len(called))
	}

	first := NewTracker(nil)
	if sent, _ := first.Observe(r, 1); !sent {
		t.Error("a failing first run should notify")
	}
}

type mockNotifier struct {
	name  string
	calls *[]string
	err   error
}

func (m *mockNotifier) Send(n Notification) error {
	*m.calls = append(*m.calls, m.name)
	return m.err
}
