package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNearest(t *testing.T) {
	g := buildGraph(t, 1, []Point{pt(0, 0), pt(10, 0)}, nil)

	tests := []struct {
		name  string
		query Point
		want  FeatureID
	}{
		{"closer to second", pt(6, 0), 1},
		{"exact hit", pt(0, 0), 0},
		{"tie keeps first", pt(5, 0), 0},
		{"far away", pt(-100, 40), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ok, err := g.Nearest(0, tt.query)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, tt.want, f.ID)
		})
	}
}

func TestNearest_EmptyFrame(t *testing.T) {
	g := buildGraph(t, 1, []Point{pt(0, 0)}, nil)
	f, ok, err := g.Nearest(1, pt(0, 0))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, f)
}

func TestNearest_OutOfRange(t *testing.T) {
	g := buildGraph(t, 1, []Point{pt(0, 0)})
	_, _, err := g.Nearest(1, pt(0, 0))
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, _, err = g.Nearest(-1, pt(0, 0))
	assert.ErrorIs(t, err, ErrOutOfRange)
}
