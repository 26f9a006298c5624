package errgroup_test

import (
	"errors"
	"fmt"
	"testing"

	"photoindex/internal/errgroup"

	"github.com/stretchr/testify/assert"
)

func TestFaultTolerantGroup(t *testing.T) {
	t.Run("all tasks succeed", func(t *testing.T) {
		var g errgroup.FaultTolerantGroup

		results := make([]int, 0)
		g.Go(func() error {
			results = append(results, 1)
			return nil
		})
		g.Go(func() error {
			results = append(results, 2)
			return nil
		})
		g.Go(func() error {
			results = append(results, 3)
			return nil
		})

		errs := g.Wait()
		assert.Empty(t, errs, "should have no errors when all tasks succeed")
		assert.Len(t, results, 3, "all tasks should have executed")
		assert.ElementsMatch(t, []int{1, 2, 3}, results)
	})

	t.Run("some tasks fail", func(t *testing.T) {
		var g errgroup.FaultTolerantGroup

		successCount := 0
		g.Go(func() error {
			successCount++
			return nil
		})
		g.Go(func() error {
			successCount++
			return errors.New("task 2 failed")
		})
		g.Go(func() error {
			successCount++
			return nil
		})
		g.Go(func() error {
			successCount++
			return errors.New("task 4 failed")
		})

		errs := g.Wait()
		assert.Len(t, errs, 2, "should have 2 errors")
		assert.Equal(t, 4, successCount, "all tasks should have executed despite failures")

		messages := make([]string, len(errs))
		for i, err := range errs {
			messages[i] = err.Error()
		}
		assert.ElementsMatch(t, []string{"task 2 failed", "task 4 failed"}, messages)
	})

	t.Run("no tasks", func(t *testing.T) {
		var g errgroup.FaultTolerantGroup
		assert.Empty(t, g.Wait(), "should have no errors when no tasks are queued")
	})
}

func TestFaultTolerantGroup_WaitWithResults(t *testing.T) {
	t.Run("results keyed by call order", func(t *testing.T) {
		var g errgroup.FaultTolerantGroup

		g.Go(func() error { return nil }) // 0: success
		g.Go(func() error { return errors.New("task 1 failed") })
		g.Go(func() error { return nil }) // 2: success
		g.Go(func() error { return errors.New("task 3 failed") })

		results := g.WaitWithResults()
		assert.Len(t, results, 4)
		assert.NoError(t, results[0])
		assert.EqualError(t, results[1], "task 1 failed")
		assert.NoError(t, results[2])
		assert.EqualError(t, results[3], "task 3 failed")
	})
}

func TestFaultTolerantGroup_ErrorTypes(t *testing.T) {
	var g errgroup.FaultTolerantGroup

	customErr := fmt.Errorf("custom error")
	g.Go(func() error { return customErr })
	g.Go(func() error { return errors.New("standard error") })
	g.Go(func() error { return nil })

	errs := g.Wait()
	assert.Len(t, errs, 2)
	assert.Equal(t, customErr, errs[0])
	assert.Equal(t, "standard error", errs[1].Error())
}

func TestFaultTolerantGroup_LargeBatch(t *testing.T) {
	var g errgroup.FaultTolerantGroup

	const numTasks = 100
	for i := 0; i < numTasks; i++ {
		g.Go(func() error { return nil })
	}

	assert.Empty(t, g.Wait())
}
