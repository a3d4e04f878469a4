package graphinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDegrees(t *testing.T) {
	t.Run("counts in and out degrees", func(t *testing.T) {
		stats := Degrees([]int{0, 1, 2}, []Arc{{0, 1}, {0, 2}, {1, 2}})

		assert.Equal(t, map[int]int{0: 0, 1: 1, 2: 2}, stats.InDegree)
		assert.Equal(t, map[int]int{0: 2, 1: 1, 2: 0}, stats.OutDegree)
		assert.Equal(t, 2, stats.MaxInDegree)
		assert.Equal(t, 2, stats.MaxOutDegree)
	})

	t.Run("isolated nodes have zero degree", func(t *testing.T) {
		stats := Degrees([]int{0, 1}, nil)

		assert.Equal(t, 0, stats.InDegree[1])
		assert.Equal(t, 0, stats.MaxOutDegree)
	})

	t.Run("self loop counts in both directions", func(t *testing.T) {
		stats := Degrees([]int{0}, []Arc{{0, 0}})

		assert.Equal(t, 1, stats.InDegree[0])
		assert.Equal(t, 1, stats.OutDegree[0])
	})
}

func TestConnectivityOf(t *testing.T) {
	t.Run("empty graph is not connected", func(t *testing.T) {
		c := ConnectivityOf(nil, nil)

		assert.False(t, c.StronglyConnected)
		assert.False(t, c.WeaklyConnected)
		assert.Zero(t, c.NumWeaklyComponents)
	})

	t.Run("one way chain is weakly connected only", func(t *testing.T) {
		c := ConnectivityOf([]int{0, 1, 2}, []Arc{{0, 1}, {1, 2}})

		assert.False(t, c.StronglyConnected)
		assert.True(t, c.WeaklyConnected)
		assert.Equal(t, 3, c.NumStronglyComponents)
		assert.Equal(t, 1, c.NumWeaklyComponents)
	})

	t.Run("cycle is strongly connected", func(t *testing.T) {
		c := ConnectivityOf([]int{0, 1, 2}, []Arc{{0, 1}, {1, 2}, {2, 0}})

		assert.True(t, c.StronglyConnected)
		assert.True(t, c.WeaklyConnected)
	})

	t.Run("disconnected islands", func(t *testing.T) {
		c := ConnectivityOf([]int{0, 1, 2, 3}, []Arc{{0, 1}, {2, 3}, {3, 3}})

		assert.False(t, c.WeaklyConnected)
		assert.Equal(t, 2, c.NumWeaklyComponents)
	})
}
