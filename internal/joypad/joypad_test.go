package joypad

import "testing"

func TestRead_NoSelection_AllReleased(t *testing.T) {
	p := New()
	p.Write(0x30) // both select lines high = deselected
	if got := p.Read(); got != 0xFF {
		t.Fatalf("Read() = %#x, want 0xFF", got)
	}
}

func TestRead_DPadSelected_ReflectsPressed(t *testing.T) {
	p := New()
	p.Press(Right)
	p.Press(Down)
	p.Write(0x20) // select D-pad (P14 low)
	got := p.Read() & 0x0F
	want := byte(0x0F) &^ (1<<Right | 1<<Down)
	if got != want {
		t.Fatalf("Read() low nibble = %#x, want %#x", got, want)
	}
}

func TestRead_ButtonsSelected_ReflectsPressed(t *testing.T) {
	p := New()
	p.Press(A)
	p.Write(0x10) // select buttons (P15 low)
	got := p.Read() & 0x0F
	want := byte(0x0F) &^ 0x01 // A is bit0 of the upper nibble -> bit0 of low nibble here
	if got != want {
		t.Fatalf("Read() low nibble = %#x, want %#x", got, want)
	}
}

func TestPress_FallingEdge_RequestsInterrupt(t *testing.T) {
	p := New()
	p.Write(0x20) // D-pad selected, nothing pressed yet
	p.Press(Up)
	if !p.Poll() {
		t.Fatalf("expected interrupt request on press-induced falling edge")
	}
	if p.Poll() {
		t.Fatalf("expected no further interrupt with no new edge")
	}
}

func TestRelease_DoesNotRequestInterrupt(t *testing.T) {
	p := New()
	p.Write(0x20)
	p.Press(Up)
	p.Poll()
	p.Release(Up)
	if p.Poll() {
		t.Fatalf("release should not produce a falling edge")
	}
}

func TestSaveLoadState_RoundTrips(t *testing.T) {
	p := New()
	p.Press(B)
	p.Write(0x10)
	blob := p.SaveState()

	p2 := New()
	p2.LoadState(blob)
	if p2.Read() != p.Read() {
		t.Fatalf("Read() after reload = %#x, want %#x", p2.Read(), p.Read())
	}
}
