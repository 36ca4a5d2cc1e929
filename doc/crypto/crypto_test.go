package crypto

import (
	"encoding/binary"
	"testing"
)

func header(major, minor uint16, size int) []byte {
	b := make([]byte, size)
	binary.LittleEndian.PutUint16(b, major)
	binary.LittleEndian.PutUint16(b[2:], minor)
	return b
}

func TestDetect(t *testing.T) {
	rc4 := header(1, 1, 52)
	for i := 0; i < 16; i++ {
		rc4[4+i] = byte(i + 1)
	}
	cases := []struct {
		name   string
		data   []byte
		obfus  bool
		method Method
	}{
		{"xor", nil, true, XOR},
		{"rc4", rc4, false, RC4},
		{"cryptoapi2", header(2, 2, 64), false, RC4CryptoAPI},
		{"cryptoapi4", header(4, 2, 64), false, RC4CryptoAPI},
		{"other", header(4, 4, 64), false, Unknown},
	}
	for _, c := range cases {
		info, err := Detect(c.data, c.obfus, 0x1234)
		if err != nil {
			t.Fatalf("%s: %v", c.name, err)
		}
		if info.Method != c.method {
			t.Fatalf("%s: got method %s, want %s", c.name, info.Method, c.method)
		}
		if info.Key != 0x1234 {
			t.Fatalf("%s: key not carried over", c.name)
		}
	}

	info, _ := Detect(rc4, false, 0)
	if len(info.Salt) != 16 || info.Salt[0] != 1 || info.Salt[15] != 16 {
		t.Fatalf("unexpected salt %v", info.Salt)
	}
}

func TestDetectShort(t *testing.T) {
	if _, err := Detect([]byte{1, 0}, false, 0); err == nil {
		t.Fatal("expected an error for a short table stream")
	}
	if _, err := Detect(header(1, 1, 20), false, 0); err == nil {
		t.Fatal("expected an error for a short RC4 header")
	}
}
