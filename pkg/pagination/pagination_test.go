package pagination

import (
	"math"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromQuery(t *testing.T) {
	tbl := []struct {
		raw    string
		page   int
		offset int
	}{
		{"", 1, 0},
		{"page=2", 2, 10},
		{"page=0", 1, 0},
		{"page=-3", 1, 0},
		{"page=abc", 1, 0},
		{"page=5", 5, 40},
		{"page=922337203685477582", math.MaxInt/DefaultPageSize + 1, math.MaxInt / DefaultPageSize * DefaultPageSize},
	}
	for _, c := range tbl {
		t.Run(c.raw, func(t *testing.T) {
			q, _ := url.ParseQuery(c.raw)
			p := FromQuery(q)
			assert.Equal(t, c.page, p.Page)
			assert.Equal(t, DefaultPageSize, p.Limit())
			assert.Equal(t, c.offset, p.Offset())
		})
	}
}

func TestNew(t *testing.T) {
	p := New([]int{1, 2}, Params{Page: 2}, 12)
	assert.Equal(t, 2, p.CurrentPage)
	assert.Equal(t, 10, p.PerPage)
	assert.Equal(t, 2, p.LastPage)
	assert.Equal(t, 12, p.Total)

	empty := New[int](nil, Params{}, 0)
	assert.NotNil(t, empty.Data)
	assert.Equal(t, 1, empty.LastPage)
}

func TestOffsetNeverOverflows(t *testing.T) {
	for _, p := range []Params{
		{Page: math.MaxInt},
		{Page: math.MaxInt, Size: 7},
		{Page: math.MaxInt / 3, Size: 3},
	} {
		assert.GreaterOrEqual(t, p.Offset(), 0, "%+v", p)
		assert.GreaterOrEqual(t, p.Limit(), 1)
	}
}
