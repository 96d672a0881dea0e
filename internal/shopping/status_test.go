package shopping

import (
	"errors"
	"testing"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		input   string
		want    Status
		wantErr bool
	}{
		{"pending", StatusPending, false},
		{" Selected ", StatusSelected, false},
		{"FOUND", StatusFound, false},
		{"not_found", StatusNotFound, false},
		{"archived", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseStatus(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseStatus(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrInvalidStatus) {
			t.Errorf("ParseStatus(%q) error = %v, want ErrInvalidStatus", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("ParseStatus(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestTransition(t *testing.T) {
	all := []Status{StatusPending, StatusSelected, StatusFound, StatusNotFound}
	for _, from := range all {
		for _, to := range all {
			if err := Transition(from, to); err != nil {
				t.Errorf("Transition(%s, %s) = %v, want nil", from, to, err)
			}
		}
	}
	if err := Transition(StatusFound, "archived"); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected archived to be rejected, got %v", err)
	}
	if err := Transition("archived", StatusPending); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected unknown source to be rejected, got %v", err)
	}
}

func TestStatusDone(t *testing.T) {
	if StatusPending.Done() || StatusSelected.Done() {
		t.Error("pending and selected are not archived")
	}
	if !StatusFound.Done() || !StatusNotFound.Done() {
		t.Error("found and not_found are archived")
	}
}
