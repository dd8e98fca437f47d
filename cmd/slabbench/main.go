// Command slabbench drives the slab allocator outside of `go test`: a
// benchmark/soak mode that hammers a SizeRouter from many goroutines, a
// --version flag, and an optional live counter watch driven by fsnotify.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	semver "github.com/Masterminds/semver/v3"
	"github.com/fsnotify/fsnotify"

	"github.com/orizon-lang/slabpool/internal/slab"
)

const toolVersion = "0.1.0"

func main() {
	var (
		slotBaseSize   = flag.Uint64("slot-base-size", uint64(slab.DefaultSlotBaseSize), "base slot size S")
		sizeClassCount = flag.Int("size-classes", slab.DefaultSizeClassCount, "number of size classes K")
		blockSize      = flag.Uint64("block-size", uint64(slab.DefaultBlockSize), "block size B")
		workers        = flag.Int("workers", 8, "number of concurrent worker goroutines")
		duration       = flag.Duration("duration", 3*time.Second, "how long to run the benchmark")
		watchFile      = flag.String("watch-file", "", "path to watch; dumps allocator counters on every write event")
		version        = flag.Bool("version", false, "print slabbench's version and exit")
		requireVersion = flag.String("require-version", "", "fail unless slabbench's version satisfies this semver constraint")
	)

	flag.Parse()

	if *version {
		fmt.Println(toolVersion)

		return
	}

	if *requireVersion != "" {
		if err := checkVersion(*requireVersion); err != nil {
			log.Fatalf("version check failed: %v", err)
		}
	}

	router := slab.NewSizeRouter(uintptr(*slotBaseSize), *sizeClassCount, uintptr(*blockSize))
	router.Init()
	defer router.Destroy()

	var stopWatch func()

	if *watchFile != "" {
		stop, err := watchCounters(*watchFile, router)
		if err != nil {
			log.Fatalf("failed to watch %s: %v", *watchFile, err)
		}

		stopWatch = stop
	}

	run(router, *workers, *duration)

	if stopWatch != nil {
		stopWatch()
	}
}

// checkVersion enforces --require-version against toolVersion, following
// the same semver.NewConstraint/NewVersion pattern the host project's CLI
// uses to gate package manager dependency resolution.
func checkVersion(constraint string) error {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return fmt.Errorf("invalid constraint %q: %w", constraint, err)
	}

	v, err := semver.NewVersion(toolVersion)
	if err != nil {
		return fmt.Errorf("invalid tool version %q: %w", toolVersion, err)
	}

	if !c.Check(v) {
		return fmt.Errorf("slabbench %s does not satisfy %q", toolVersion, constraint)
	}

	return nil
}

// run hammers router from workers goroutines for duration, each allocating
// and freeing randomly-sized regions, then reports the router's cumulative
// counters.
func run(router *slab.SizeRouter, workers int, duration time.Duration) {
	deadline := time.Now().Add(duration)

	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)

		go func(seed int64) {
			defer wg.Done()

			rnd := rand.New(rand.NewSource(seed))

			for time.Now().Before(deadline) {
				size := uintptr(rnd.Intn(int(router.MaxPooledSize())*2) + 1)

				ptr := router.Allocate(size)
				if ptr != nil {
					router.Deallocate(ptr, size)
				}
			}
		}(int64(i) + 1)
	}

	wg.Wait()

	log.Printf("blockCnt=%d freeSlotCnt=%d", router.BlockCnt(), router.FreeSlotCnt())
}

// watchCounters mirrors the runtime vfs package's fsnotify event loop: a
// goroutine draining Events/Errors from a single watched path, here dumping
// the router's counters on every write instead of forwarding a typed event.
func watchCounters(path string, router *slab.SizeRouter) (func(), error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := w.Add(path); err != nil {
		_ = w.Close()

		return nil, err
	}

	done := make(chan struct{})

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}

				if ev.Op&fsnotify.Write != 0 {
					log.Printf("%s changed: blockCnt=%d freeSlotCnt=%d", path, router.BlockCnt(), router.FreeSlotCnt())
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}

				log.Printf("watch error: %v", err)
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		_ = w.Close()
	}, nil
}
