package watch

import "testing"

func TestEligible(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"/data/voyage_12.xlsx", true},
		{"/data/VOYAGE_12.XLSX", true},
		{"/data/~$voyage_12.xlsx", false},
		{"/data/readme.txt", false},
		{"/data/voyage_12.xls", false},
	}
	for _, tc := range cases {
		if got := eligible(tc.path); got != tc.want {
			t.Errorf("eligible(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}
