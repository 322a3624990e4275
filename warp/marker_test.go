package warp

import (
	"testing"
)

func TestNewMarkerValidation(t *testing.T) {
	tests := []struct {
		name     string
		original int
		warped   float64
		wantErr  bool
	}{
		{name: "valid", original: 100, warped: 200, wantErr: false},
		{name: "valid zero", original: 0, warped: 0, wantErr: false},
		{name: "negative original", original: -1, warped: 0, wantErr: true},
		{name: "negative warped", original: 0, warped: -1, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMarker(tt.original, tt.warped, MarkerUser)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewMarker() error = %v, wantErr %v", err, tt.wantErr)
			}

			if tt.wantErr {
				return
			}

			if m.OriginalPos() != tt.original {
				t.Fatalf("OriginalPos() = %d, want %d", m.OriginalPos(), tt.original)
			}

			if m.WarpedPos() != tt.warped {
				t.Fatalf("WarpedPos() = %f, want %f", m.WarpedPos(), tt.warped)
			}
		})
	}
}

func TestMarkerTypeDefaults(t *testing.T) {
	tests := []struct {
		typ        MarkerType
		wantLocked bool
		wantAnchor bool
	}{
		{MarkerStart, true, true},
		{MarkerEnd, false, true},
		{MarkerUser, false, false},
		{MarkerBeat, false, false},
		{MarkerTransient, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			m, err := NewMarker(0, 0, tt.typ)
			if err != nil {
				t.Fatalf("NewMarker() error = %v", err)
			}

			if m.Locked() != tt.wantLocked {
				t.Fatalf("Locked() = %v, want %v", m.Locked(), tt.wantLocked)
			}

			if m.Type().IsAnchor() != tt.wantAnchor {
				t.Fatalf("IsAnchor() = %v, want %v", m.Type().IsAnchor(), tt.wantAnchor)
			}
		})
	}
}

func TestMarkerMoveLockedFails(t *testing.T) {
	m, err := NewMarker(0, 0, MarkerStart)
	if err != nil {
		t.Fatalf("NewMarker() error = %v", err)
	}

	if m.MoveWarped(100) {
		t.Fatal("MoveWarped() on locked marker must report failure")
	}

	if m.WarpedPos() != 0 {
		t.Fatalf("WarpedPos() = %f, want 0 after rejected move", m.WarpedPos())
	}
}

func TestMarkerStartStaysLocked(t *testing.T) {
	m, err := NewMarker(0, 0, MarkerStart)
	if err != nil {
		t.Fatalf("NewMarker() error = %v", err)
	}

	m.SetLocked(false)

	if !m.Locked() {
		t.Fatal("Start marker must stay locked")
	}
}

func TestMarkerMove(t *testing.T) {
	m, err := NewMarker(100, 100, MarkerUser)
	if err != nil {
		t.Fatalf("NewMarker() error = %v", err)
	}

	if !m.MoveWarped(50) {
		t.Fatal("MoveWarped() failed on unlocked marker")
	}

	if m.WarpedPos() != 150 {
		t.Fatalf("WarpedPos() = %f, want 150", m.WarpedPos())
	}

	if m.SetWarpedPos(-1) {
		t.Fatal("SetWarpedPos() must reject negative positions")
	}

	m.SetLocked(true)
	if m.MoveWarped(10) {
		t.Fatal("MoveWarped() must report failure once locked")
	}
}

func TestMarkerStretchRatioFrom(t *testing.T) {
	prev, _ := NewMarker(0, 0, MarkerStart)

	tests := []struct {
		name     string
		original int
		warped   float64
		want     float64
	}{
		{name: "double speed", original: 88200, warped: 44100, want: 2.0},
		{name: "half speed", original: 44100, warped: 88200, want: 0.5},
		{name: "identity", original: 1000, warped: 1000, want: 1.0},
		{name: "zero warped duration", original: 1000, warped: 0, want: 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMarker(tt.original, tt.warped, MarkerEnd)
			if err != nil {
				t.Fatalf("NewMarker() error = %v", err)
			}

			if got := m.StretchRatioFrom(prev); got != tt.want {
				t.Fatalf("StretchRatioFrom() = %f, want %f", got, tt.want)
			}
		})
	}

	m, _ := NewMarker(10, 10, MarkerUser)
	if got := m.StretchRatioFrom(nil); got != 1.0 {
		t.Fatalf("StretchRatioFrom(nil) = %f, want 1", got)
	}
}

func TestMarkerCloneFreshIdentity(t *testing.T) {
	m, err := NewMarker(500, 600, MarkerBeat)
	if err != nil {
		t.Fatalf("NewMarker() error = %v", err)
	}
	m.SetTransientStrength(0.5)

	c := m.Clone()

	if c.ID() == m.ID() {
		t.Fatal("Clone() must carry a fresh identity")
	}

	if c.OriginalPos() != m.OriginalPos() || c.WarpedPos() != m.WarpedPos() || c.Type() != m.Type() {
		t.Fatal("Clone() must preserve positions and type")
	}

	if c.TransientStrength() != m.TransientStrength() {
		t.Fatal("Clone() must preserve transient strength")
	}
}

func TestMarkerTransientStrengthClamped(t *testing.T) {
	m, _ := NewMarker(0, 0, MarkerTransient)

	m.SetTransientStrength(2)
	if m.TransientStrength() != 1 {
		t.Fatalf("TransientStrength() = %f, want 1", m.TransientStrength())
	}

	m.SetTransientStrength(-1)
	if m.TransientStrength() != 0 {
		t.Fatalf("TransientStrength() = %f, want 0", m.TransientStrength())
	}
}
