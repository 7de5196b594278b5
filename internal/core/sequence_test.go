package core

import "testing"

func TestClassifyTotal(t *testing.T) {
	cases := []struct {
		name     string
		last     int64
		incoming int64
		want     Classification
	}{
		{"no-sequence beats none-last", SequenceNone, SequenceNone, NoSequence},
		{"first", SequenceNone, 1, First},
		{"in-order", 1, 2, InOrder},
		{"duplicate", 5, 5, Duplicate},
		{"gap forward", 5, 10, Gap},
		{"gap backward", 10, 3, Gap},
		{"no-sequence with prior cursor", 5, SequenceNone, NoSequence},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Classify(c.last, c.incoming)
			if got != c.want {
				t.Fatalf("Classify(%d, %d) = %v, want %v", c.last, c.incoming, got, c.want)
			}
		})
	}
}

func TestClassifyInOrderIff(t *testing.T) {
	for last := int64(0); last < 20; last++ {
		for incoming := int64(0); incoming < 20; incoming++ {
			got := Classify(last, incoming) == InOrder
			want := incoming == last+1
			if got != want {
				t.Fatalf("Classify(%d,%d) in-order = %v, want %v", last, incoming, got, want)
			}
		}
	}
}
