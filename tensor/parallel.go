package tensor

import "golang.org/x/sync/errgroup"

// ForEachRow calls fn for every row index in [0, n), running at most limit
// calls at once. Rows must be independent of each other. limit <= 1 runs
// sequentially on the calling goroutine.
func ForEachRow(n, limit int, fn func(i int) error) error {
	if limit <= 1 || n <= 1 {
		for i := 0; i < n; i++ {
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			return fn(i)
		})
	}
	return g.Wait()
}
