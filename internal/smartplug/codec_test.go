package smartplug

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"
	"testing/quick"
)

func TestEncode_KnownVector(t *testing.T) {
	got := Encode([]byte("{}"))
	want := []byte{0x00, 0x00, 0x00, 0x02, 0xD0, 0xAD}

	if !bytes.Equal(got, want) {
		t.Errorf("Encode(%q) = % X, want % X", "{}", got, want)
	}
}

func TestEncode_Empty(t *testing.T) {
	got := Encode(nil)
	want := []byte{0, 0, 0, 0}

	if !bytes.Equal(got, want) {
		t.Errorf("Encode(nil) = % X, want % X", got, want)
	}
}

func TestEncode_LengthPrefix(t *testing.T) {
	plain := bytes.Repeat([]byte("a"), 300)
	got := Encode(plain)

	if len(got) != 304 {
		t.Fatalf("len(Encode) = %d, want 304", len(got))
	}
	if got[0] != 0 || got[1] != 0 || got[2] != 0x01 || got[3] != 0x2C {
		t.Errorf("length prefix = % X, want 00 00 01 2C", got[:4])
	}
}

func TestDecode_KnownVector(t *testing.T) {
	got, err := Decode([]byte{0x00, 0x00, 0x00, 0x02, 0xD0, 0xAD})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if string(got) != "{}" {
		t.Errorf("Decode() = %q, want %q", got, "{}")
	}
}

func TestDecode_IgnoresLengthPrefix(t *testing.T) {
	framed := Encode([]byte(`{"a":1}`))
	framed[3] = 0xFF // corrupt the declared length

	got, err := Decode(framed)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if string(got) != `{"a":1}` {
		t.Errorf("Decode() = %q, want %q", got, `{"a":1}`)
	}
}

func TestDecode_TooShort(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{"nil", nil},
		{"empty", []byte{}},
		{"three bytes", []byte{0, 0, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.input)
			if !errors.Is(err, ErrDecode) {
				t.Errorf("Decode(% X) error = %v, want ErrDecode", tt.input, err)
			}
		})
	}
}

func TestDecode_HeaderOnly(t *testing.T) {
	got, err := Decode([]byte{0, 0, 0, 0})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Decode() = % X, want empty", got)
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	roundTrip := func(p []byte) bool {
		got, err := Decode(Encode(p))
		if err != nil {
			return false
		}
		return bytes.Equal(got, p) || (len(p) == 0 && len(got) == 0)
	}

	cfg := &quick.Config{
		MaxCount: 500,
		Rand:     rand.New(rand.NewSource(171)),
	}
	if err := quick.Check(roundTrip, cfg); err != nil {
		t.Error(err)
	}
}

func TestCodec_RoundTripCommand(t *testing.T) {
	cmd := []byte(`{"system":{"set_relay_state":{"state":1}}}`)

	got, err := Decode(Encode(cmd))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !bytes.Equal(got, cmd) {
		t.Errorf("round trip = %q, want %q", got, cmd)
	}
}

func BenchmarkEncode(b *testing.B) {
	cmd := []byte(`{"system":{"set_relay_state":{"state":1}}}`)
	for i := 0; i < b.N; i++ {
		Encode(cmd)
	}
}
