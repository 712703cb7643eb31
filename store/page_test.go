package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaginateClampsIndex(t *testing.T) {
	items := make([]int, 25) // 3 pages of 10

	cases := []struct {
		name      string
		index     int
		wantIndex int
		wantLen   int
	}{
		{"first", 0, 0, 10},
		{"middle", 1, 1, 10},
		{"last", 2, 2, 5},
		{"negative clamps to first", -5, 0, 10},
		{"overflow clamps to last", 99, 2, 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			page := Paginate(items, tc.index)
			assert.Equal(t, tc.wantIndex, page.Index)
			assert.Equal(t, 3, page.Total)
			assert.Len(t, page.Items, tc.wantLen)
		})
	}
}

func TestPaginateEmptyStillOnePage(t *testing.T) {
	page := Paginate([]string(nil), 4)
	assert.Equal(t, 0, page.Index)
	assert.Equal(t, 1, page.Total)
	assert.Empty(t, page.Items)
}

func TestPaginateExactBoundary(t *testing.T) {
	items := make([]int, 20)
	page := Paginate(items, 1)
	assert.Equal(t, 2, page.Total)
	assert.Len(t, page.Items, 10)
}
