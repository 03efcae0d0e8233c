package sheets

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"mvpplanner/pkg/domain"
)

func TestDecodeCSV(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []domain.Record
	}{
		{
			name: "empty",
			in:   "  \n",
			want: []domain.Record{},
		},
		{
			name: "header only",
			in:   "clinician_id,last_name\n",
			want: []domain.Record{},
		},
		{
			name: "basic rows with crlf",
			in:   "clinician_id, last_name \r\n1, Lovelace\r\n2,Hopper\r\n",
			want: []domain.Record{
				{"clinician_id": "1", "last_name": "Lovelace"},
				{"clinician_id": "2", "last_name": "Hopper"},
			},
		},
		{
			name: "quoted commas and escaped quotes",
			in:   "measure_id,measure_name\n001,\"Diabetes, \"\"Poor\"\" Control\"\n",
			want: []domain.Record{
				{"measure_id": "001", "measure_name": `Diabetes, "Poor" Control`},
			},
		},
		{
			name: "drops mismatched and empty rows",
			in:   "a,b\n1,2\n3\n,\n\n   \n4,5,6\n7,8\n",
			want: []domain.Record{
				{"a": "1", "b": "2"},
				{"a": "7", "b": "8"},
			},
		},
		{
			name: "trailing empty cell still counts",
			in:   "a,b\n1,\n",
			want: []domain.Record{{"a": "1", "b": ""}},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, DecodeCSV(tc.in)); diff != "" {
				t.Fatalf("DecodeCSV mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSplitLineKeepsQuotedSeparators(t *testing.T) {
	got := splitLine(`G1,"M1, M2",  x  `)
	want := []string{"G1", "M1, M2", "x"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("splitLine mismatch (-want +got):\n%s", diff)
	}
}
