package agenda

import (
	"testing"

	"slidepress/internal/errs"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Item
	}{
		{
			name:  "relative after absolute",
			input: "14:00\n+1:00\tPresentation\n+0:45\tXYZ\n+0:45\tABC",
			want: []Item{
				{"14:00", "15:00", "1:00", "Presentation"},
				{"15:00", "15:45", "0:45", "XYZ"},
				{"15:45", "16:30", "0:45", "ABC"},
			},
		},
		{
			name:  "absolute times",
			input: "13:00\n14:00 A\n15:15 B\n16:20 C",
			want: []Item{
				{"13:00", "14:00", "1:00", "A"},
				{"14:00", "15:15", "1:15", "B"},
				{"15:15", "16:20", "1:05", "C"},
			},
		},
		{
			name:  "gap",
			input: "13:00\n14:00 A\n15:00\n16:00 B",
			want: []Item{
				{"13:00", "14:00", "1:00", "A"},
				{"15:00", "16:00", "1:00", "B"},
			},
		},
		{
			name:  "past midnight",
			input: "23:00\n+2:00 Presentation",
			want:  []Item{{"23:00", "1:00", "2:00", "Presentation"}},
		},
		{
			name:  "backward relative",
			input: "+1:00 Talk\n+0:30 Questions\n12:00",
			want: []Item{
				{"10:30", "11:30", "1:00", "Talk"},
				{"11:30", "12:00", "0:30", "Questions"},
			},
		},
		{
			name:  "equal weights",
			input: "13:00\n* A\n* B\n14:00",
			want: []Item{
				{"13:00", "13:30", "0:30", "A"},
				{"13:30", "14:00", "0:30", "B"},
			},
		},
		{
			name:  "weights around fixed item",
			input: "13:00\n* A\n+0:30 B\n*2 C\n14:00",
			want: []Item{
				{"13:00", "13:10", "0:10", "A"},
				{"13:10", "13:40", "0:30", "B"},
				{"13:40", "14:00", "0:20", "C"},
			},
		},
		{
			name:  "divider and rounding",
			input: "9:00\n+1:00/3 Short\n+0:13 Odd",
			want: []Item{
				{"9:00", "9:20", "0:20", "Short"},
				{"9:20", "9:35", "0:15", "Odd"},
			},
		},
		{
			name:  "day offset",
			input: "22:00\n1+1:00 Night shift",
			want:  []Item{{"22:00", "1:00", "3:00", "Night shift"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Parse(tt.input, DefaultGranularity)
			if err != nil {
				t.Fatal(err)
			}
			got := a.Items()
			if len(got) != len(tt.want) {
				t.Fatalf("got %d items %v, want %d", len(got), got, len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("item %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kind  errs.Kind
	}{
		{"syntax", "around noon Lunch", errs.KindInvalidAgenda},
		{"divider on absolute", "13:00/2 A", errs.KindInvalidAgenda},
		{"weight at start", "* A\n14:00", errs.KindUnresolvableAgenda},
		{"weight at end", "13:00\n* A", errs.KindUnresolvableAgenda},
		{"zero weights", "13:00\n*0 A\n14:00", errs.KindUnresolvableAgenda},
		{"fixed too long", "13:00\n* A\n+2:00 B\n* C\n14:00", errs.KindUnresolvableAgenda},
		{"undefined start", "+0:30 A", errs.KindUnresolvableAgenda},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input, DefaultGranularity)
			if !errs.IsKind(err, tt.kind) {
				t.Fatalf("error = %v, want kind %v", err, tt.kind)
			}
		})
	}
}
