package keypad

import "testing"

func TestKeyMapIsBijective(t *testing.T) {
	seen := map[int]byte{}
	for i := 0; i < len(KeyIDs); i++ {
		id := KeyIDs[i]
		idx, ok := Index(id)
		if !ok {
			t.Fatalf("Index(%c) not found", id)
		}
		if idx < 0 || idx >= NumKeys {
			t.Fatalf("Index(%c) = %d, out of range", id, idx)
		}
		if prev, dup := seen[idx]; dup {
			t.Fatalf("Index(%c) = %d, already used by %c", id, idx, prev)
		}
		seen[idx] = id
	}
	for _, c := range []struct {
		id  byte
		idx int
	}{{'0', 3}, {'3', 0xf}, {'c', 0}, {'f', 0xc}, {'8', 1}} {
		if got, _ := Index(c.id); got != c.idx {
			t.Fatalf("Index(%c) = %d, want %d", c.id, got, c.idx)
		}
	}
	for _, id := range []byte{'g', 'A', '/', 0} {
		if _, ok := Index(id); ok {
			t.Fatalf("Index(%q) ok = true, want false", id)
		}
	}
}

func TestBrightness(t *testing.T) {
	if got := Brightness(0); got != 0 {
		t.Fatalf("Brightness(0) = %v, want 0", got)
	}
	if got := Brightness(255); got != 1 {
		t.Fatalf("Brightness(255) = %v, want 1", got)
	}
	if got := Brightness(128); got < 0.501 || got > 0.503 {
		t.Fatalf("Brightness(128) = %v, want ~0.502", got)
	}
	prev := Brightness(0)
	for v := 1; v <= 255; v++ {
		b := Brightness(uint8(v))
		if b < prev {
			t.Fatalf("Brightness(%d) = %v < Brightness(%d) = %v", v, b, v-1, prev)
		}
		prev = b
	}
}

func TestFrameLayout(t *testing.T) {
	f := NewFrame()
	buf := f.Bytes()
	if len(buf) != 4+NumPads*4+4 {
		t.Fatalf("len(Bytes()) = %d, want %d", len(buf), 4+NumPads*4+4)
	}
	for i := 0; i < 4; i++ {
		if buf[i] != 0 || buf[len(buf)-1-i] != 0 {
			t.Fatalf("start/trailer bytes not zero: %x", buf)
		}
	}

	f.SetColor(2, 0x11, 0x22, 0x33)
	f.SetBrightness(2, 1)
	if got := buf[4+8 : 4+12]; got[0] != 0xFF || got[1] != 0x33 || got[2] != 0x22 || got[3] != 0x11 {
		t.Fatalf("pad 2 bytes = %x, want ff332211", got)
	}

	f.SetBrightness(3, 0.5)
	if got, want := buf[4+12], byte(0b11100000|15); got != want {
		t.Fatalf("pad 3 header = %08b, want %08b", got, want)
	}
}

func TestFrameIgnoresOutOfRange(t *testing.T) {
	f := NewFrame()
	before := append([]byte(nil), f.Bytes()...)

	f.SetBrightness(-1, 0.5)
	f.SetBrightness(NumPads, 0.5)
	f.SetBrightness(0, 1.5)
	f.SetBrightness(0, -0.1)
	f.SetColor(NumPads, 1, 2, 3)
	f.SetOn(-1)
	f.SetOff(NumPads)

	if string(f.Bytes()) != string(before) {
		t.Fatalf("frame changed by out of range writes:\n%x\n%x", before, f.Bytes())
	}
	if got := f.Level(0); got != 1 {
		t.Fatalf("Level(0) = %v, want 1", got)
	}
}

func TestFrameOffKeepsRestoreLevel(t *testing.T) {
	f := NewFrame()
	f.SetBrightness(5, 0.25)
	f.SetOff(5)
	if got := f.Bytes()[4+20]; got != 0b11100000 {
		t.Fatalf("header after off = %08b, want 11100000", got)
	}
	f.SetOn(5)
	if got, want := f.Bytes()[4+20], byte(0b11100000|7); got != want {
		t.Fatalf("header after on = %08b, want %08b", got, want)
	}
}
