package jwt

import (
	"testing"
	"time"
)

// FuzzDecode feeds arbitrary strings to both decoders. Neither may panic.
func FuzzDecode(f *testing.F) {
	mgr, err := NewManager(Config{
		AccessTTL:     5 * time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("fuzz-key-fuzz-key-fuzz-key-fuzz!"),
	})
	if err != nil {
		f.Fatal(err)
	}
	valid, err := mgr.CreateAccess("uid1", "", "a@example.com", []string{"read"}, []string{"admin"})
	if err != nil {
		f.Fatal(err)
	}

	f.Add(valid)
	f.Add("")
	f.Add("not.a.jwt")
	f.Add("eyJhbGciOiJub25lIn0.eyJyb2xlcyI6WyJhZG1pbiJdfQ.")

	f.Fuzz(func(t *testing.T, input string) {
		if claims, err := Decode(input); err == nil && claims == nil {
			t.Fatal("Decode returned nil claims without error")
		}
		if claims, err := mgr.ParseAccess(input); err == nil && claims == nil {
			t.Fatal("ParseAccess returned nil claims without error")
		}
	})
}
