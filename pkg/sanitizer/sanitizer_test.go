package sanitizer

import (
	"reflect"
	"testing"
)

func TestText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"   ", ""},
		{"  Intro  to\tRobotics  ", "Intro to Robotics"},
		{"Line\nbreak", "Line break"},
		{"bell\x07char", "bellchar"},
		{"Ünïcode   Lab", "Ünïcode Lab"},
	}
	for _, tt := range tests {
		if got := Text(tt.in); got != tt.want {
			t.Errorf("Text(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if got := Text(Text(tt.in)); got != tt.want {
			t.Errorf("Text is not idempotent for %q", tt.in)
		}
	}
}

func TestMultiline(t *testing.T) {
	in := "  First   line \r\n\r\n\r\n\r\nSecond\x00 line  "
	want := "First line\n\nSecond line"
	if got := Multiline(in); got != want {
		t.Errorf("Multiline() = %q, want %q", got, want)
	}
	if got := Multiline(want); got != want {
		t.Errorf("Multiline is not idempotent: %q", got)
	}
}

func TestLabCode(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{" cs-101 ", "CS101"},
		{"bio lab 2", "BIOLAB2"},
		{"@@", ""},
	}
	for _, tt := range tests {
		if got := LabCode(tt.in); got != tt.want {
			t.Errorf("LabCode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestKey(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Air Conditioning", "air_conditioning"},
		{"  wifi ", "wifi"},
		{"__Smart--Board__", "smart_board"},
	}
	for _, tt := range tests {
		if got := Key(tt.in); got != tt.want {
			t.Errorf("Key(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSlice(t *testing.T) {
	got := Slice([]string{"WiFi", " wifi", "", "Projector", "projector "}, Key)
	want := []string{"wifi", "projector"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Slice() = %v, want %v", got, want)
	}

	if got := Slice(nil, Key); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
}

func TestClamp(t *testing.T) {
	if Clamp(0, 1, 100) != 1 || Clamp(500, 1, 100) != 100 || Clamp(42, 1, 100) != 42 {
		t.Error("Clamp returned an out-of-range value")
	}
}

func TestEmail(t *testing.T) {
	if got := Email("  Jane.Doe@School.EDU "); got != "jane.doe@school.edu" {
		t.Errorf("unexpected %q", got)
	}
}
