package types

import "testing"

func TestConnectionStateLabel(t *testing.T) {
	tests := []struct {
		name  string
		state ConnectionState
		want  string
	}{
		{"disconnected", ConnectionState{Daemon: "ready", Custom: "x"}, "unknown"},
		{"connected, nothing known", ConnectionState{Connected: true}, "unknown"},
		{"daemon", ConnectionState{Connected: true, Daemon: "startup"}, "klipper_startup"},
		{"ready without job", ConnectionState{Connected: true, Daemon: "ready"}, "klipper_ready"},
		{"job", ConnectionState{Connected: true, Daemon: "ready", Print: "printing"}, "print_printing"},
		{"job ignored when not ready", ConnectionState{Connected: true, Daemon: "error", Print: "printing"}, "klipper_error"},
		{"custom wins", ConnectionState{Connected: true, Daemon: "ready", Print: "printing", Custom: "paused"}, "custom_paused"},
		{"custom before daemon state", ConnectionState{Connected: true, Custom: "hello"}, "custom_hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.Label(); got != tt.want {
				t.Errorf("Label() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBoundsClip(t *testing.T) {
	tests := []struct {
		b      Bounds
		n      int
		lo, hi int
	}{
		{WholeStrip, 10, 0, 10},
		{Bounds{Start: 3, Open: true}, 10, 3, 10},
		{Bounds{Start: 2, End: 5}, 10, 2, 5},
		{Bounds{Start: 8, End: 20}, 10, 8, 10},
		{Bounds{Start: 12, End: 20}, 10, 10, 10},
	}
	for _, tt := range tests {
		lo, hi := tt.b.Clip(tt.n)
		if lo != tt.lo || hi != tt.hi {
			t.Errorf("%v.Clip(%d) = (%d, %d), want (%d, %d)", tt.b, tt.n, lo, hi, tt.lo, tt.hi)
		}
	}
}
