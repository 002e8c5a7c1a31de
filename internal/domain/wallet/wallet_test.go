package wallet

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	cases := []struct {
		raw     string
		want    AccountID
		wantErr bool
	}{
		{raw: "0.0.4512", want: "0.0.4512"},
		{raw: "  0.0.98 ", want: "0.0.98"},
		{raw: "0.0.123-vfmkw", want: "0.0.123"},
		{raw: "1.2.3", want: "1.2.3"},
		{raw: "", wantErr: true},
		{raw: "0.0", wantErr: true},
		{raw: "0.0.abc", wantErr: true},
		{raw: "ckq2a1b0c0000xyz", wantErr: true},
		{raw: "0x00000000000000000000000000000000000011a8", wantErr: true},
		{raw: "0.0.12-ABCDE", wantErr: true},
	}

	for _, tc := range cases {
		got, err := Parse(tc.raw)
		if tc.wantErr {
			if !errors.Is(err, ErrNotAccountID) {
				t.Fatalf("Parse(%q) err = %v, want ErrNotAccountID", tc.raw, err)
			}
			if IsAccountID(tc.raw) {
				t.Fatalf("IsAccountID(%q) = true, want false", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("Parse(%q) unexpected error: %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("Parse(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}
