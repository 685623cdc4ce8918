package comparison

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseScanIDs(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   []int64
		enough bool
	}{
		{"duplicates collapse in order", "3,3,9", []int64{3, 9}, true},
		{"single id", "1", []int64{1}, false},
		{"empty", "", []int64{}, false},
		{"whitespace trimmed", " 4 , 2 ", []int64{4, 2}, true},
		{"non numeric dropped", "a,5,,b,7", []int64{5, 7}, true},
		{"non positive dropped", "0,-3,8", []int64{8}, false},
		{"fractions dropped", "1.5,2,3", []int64{2, 3}, true},
		{"order preserved", "9,3,9,1", []int64{9, 3, 1}, true},
		{"overflow dropped", "99999999999999999999,1,2", []int64{1, 2}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseScanIDs(tt.raw)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.enough, HasEnoughScans(got))
		})
	}
}

func TestJoinScanIDs(t *testing.T) {
	assert.Equal(t, "5-7-11", JoinScanIDs([]int64{5, 7, 11}, "-"))
	assert.Equal(t, "3,9", JoinScanIDs([]int64{3, 9}, ","))
	assert.Equal(t, "", JoinScanIDs(nil, ","))
}
