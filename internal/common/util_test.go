package common

import "testing"

func TestWipeByteArray(t *testing.T) {
	b := []byte("Str0ng-Passw0rd!")
	WipeByteArray(b)
	for i, c := range b {
		if c != 0 {
			t.Fatalf("byte %d not wiped: %v", i, b)
		}
	}

	WipeByteArray(nil)
}
