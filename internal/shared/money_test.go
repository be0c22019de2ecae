package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRound2(t *testing.T) {
	assert.Equal(t, 1.01, Round2(1.005))
	assert.Equal(t, -2.35, Round2(-2.345))
	assert.Equal(t, 0.0, Round2(0))
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "970.00", FormatAmount(970))
	assert.Equal(t, "76.44%", FormatPct(0.764444))
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(0, 0, 41)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 20, p.PerPage)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 0, p.Offset())

	p = NewPagination(3, 500, 250)
	assert.Equal(t, MaxPerPage, p.PerPage)
	assert.Equal(t, 200, p.Offset())
	assert.Equal(t, 3, p.TotalPages)
}
