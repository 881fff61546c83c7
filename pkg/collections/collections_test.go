package collections_test

import (
	"testing"

	"github.com/alkime/callboard/pkg/collections"

	"github.com/stretchr/testify/require"
)

func TestApply(t *testing.T) {
	t.Run("basic types", func(t *testing.T) {
		ints := []int{1, 2, 3, 4}
		squared := collections.Apply(ints, func(i int) int {
			return i * i
		})

		require.Equal(t, []int{1, 4, 9, 16}, squared)
	})

	t.Run("structs", func(t *testing.T) {
		type job struct {
			ID     string
			Status string
		}

		jobs := []job{{ID: "a", Status: "PENDING"}, {ID: "b", Status: "SUCCESS"}}
		ids := collections.Apply(jobs, func(j job) string {
			return j.ID
		})

		require.Equal(t, []string{"a", "b"}, ids)
	})
}

func TestFilter(t *testing.T) {
	evens := collections.Filter([]int{1, 2, 3, 4, 5, 6}, func(i int) bool {
		return i%2 == 0
	})
	require.Equal(t, []int{2, 4, 6}, evens)

	none := collections.Filter([]int{1, 3}, func(i int) bool { return i > 10 })
	require.Empty(t, none)
}

func TestUnique(t *testing.T) {
	require.Equal(t, []string{"job-1", "job-2", "job-3"},
		collections.Unique([]string{"job-1", "job-2", "job-1", "job-3", "job-2"}))
	require.Empty(t, collections.Unique[string](nil))
}
