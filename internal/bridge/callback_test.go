package bridge

import (
	"errors"
	"testing"
)

func TestCallbackFinishes(t *testing.T) {
	sink := newRecorder()
	cb := NewCallback("cb1", sink)

	cb.SendResult(Pending())
	cb.SendResult(Progress("chunk"))
	if cb.IsFinished() {
		t.Fatal("callback finished by a keep result")
	}

	cb.SendResult(OK("done"))
	if !cb.IsFinished() {
		t.Fatal("callback not finished by a final result")
	}

	cb.SendResult(Result{Status: StatusInvalidAction})
	cb.SendResult(Failure(InvalidStateError))

	got := sink.get("cb1")
	if len(got) != 3 {
		t.Fatalf("sink got %d results, want 3: %+v", len(got), got)
	}
	if got[2].Message != "done" {
		t.Errorf("last result = %+v, want OK done", got[2])
	}
}

func TestCallbackSinkError(t *testing.T) {
	cb := NewCallback("cb2", SinkFunc(func(string, Result) error {
		return errors.New("client gone")
	}))
	cb.SendResult(OK(true))
	if !cb.IsFinished() {
		t.Error("a failed send should still finish the callback")
	}
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusNoResult, "NO_RESULT"},
		{StatusOK, "OK"},
		{StatusInvalidAction, "INVALID_ACTION"},
		{StatusJSONException, "JSON_EXCEPTION"},
		{StatusError, "ERROR"},
		{Status(42), "Status(42)"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", int(tt.status), got, tt.want)
		}
	}
}

func TestQueueOrder(t *testing.T) {
	q := newQueue()
	var order []int
	for i := 0; i < 100; i++ {
		q.push(func() { order = append(order, i) })
	}
	if q.len() != 100 {
		t.Fatalf("len() = %d, want 100", q.len())
	}
	select {
	case <-q.notify:
	default:
		t.Fatal("push did not signal notify")
	}
	for _, task := range q.drain() {
		task()
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("task %d ran as %d", i, v)
		}
	}
	if q.len() != 0 {
		t.Errorf("len() after drain = %d, want 0", q.len())
	}
}

func TestFilePathFromURL(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"file:///tmp/a.wav", "/tmp/a.wav", false},
		{"file:/tmp/a.wav", "/tmp/a.wav", false},
		{"file:///tmp/with%20space.wav", "/tmp/with space.wav", false},
		{"/tmp/a.wav", "", true},
		{"http://host/a.wav", "", true},
		{"file://host/a.wav", "", true},
		{"file:a.wav", "", true},
		{"file:///a.wav#x", "", true},
		{"file:///a.wav?", "", true},
		{"file://", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := filePathFromURL(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidURL) {
				t.Errorf("error %v does not wrap ErrInvalidURL", err)
			}
			if got != tt.want {
				t.Errorf("path = %q, want %q", got, tt.want)
			}
		})
	}
}
