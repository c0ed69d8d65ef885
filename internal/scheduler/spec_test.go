package scheduler

import "testing"

func TestNormalizeSpec(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "15 8-18 * * *", want: "15 8-18 * * *"},
		{in: "@hourly", want: "@hourly"},
		{in: "@every 30m", want: "@every 30m"},
		{in: "30m", want: "@every 30m0s"},
		{in: "1h15m", want: "@every 1h15m0s"},
		{in: "  0 9 * * 1  ", want: "0 9 * * 1"},
		{in: "", wantErr: true},
		{in: "30s", wantErr: true}, // sub-minute intervals hammer the source
		{in: "not a spec", wantErr: true},
		{in: "61 * * * *", wantErr: true},
	}

	for _, tc := range cases {
		got, err := NormalizeSpec(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("NormalizeSpec(%q): expected error, got %q", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeSpec(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("NormalizeSpec(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
