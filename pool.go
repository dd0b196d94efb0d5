package sparsepce

import (
	"runtime"
	"sync"
)

// parallel calls job(i) for every i in [0, n) from up to concurrent worker
// goroutines and returns once all of the calls are complete. If concurrent
// is 0 it defaults to GOMAXPROCS.
func parallel(n, concurrent int, job func(i int)) {
	if concurrent == 0 {
		concurrent = runtime.GOMAXPROCS(0)
	}
	if concurrent > n {
		concurrent = n
	}

	jobs := make(chan int)
	go func() {
		for i := 0; i < n; i++ {
			jobs <- i
		}
		close(jobs)
	}()

	var wg sync.WaitGroup
	for w := 0; w < concurrent; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				job(i)
			}
		}()
	}
	wg.Wait()
}
