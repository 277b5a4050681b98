package bench

import (
	"fmt"
	"sync"
	"time"

	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/sqlock/sqlock/cmd/util"
	"github.com/sqlock/sqlock/lib/lockmgr"
	"github.com/sqlock/sqlock/lib/lockstore"
	"github.com/sqlock/sqlock/rpc/client"
)

var (
	rpcLockStore lockstore.ILockStore

	benchThreads   int
	benchCycles    int
	benchDatabases int

	// BenchCmd represents the bench command
	BenchCmd = &cobra.Command{
		Use:     "bench",
		Short:   "Performance testing tool for lock servers",
		Long:    "Run acquire/release cycles against a lock server and report latency and throughput statistics.",
		PreRunE: setupBenchClient,
		RunE:    run,
	}
)

func init() {
	cobra.OnInitialize(util.InitClientConfig)

	util.SetupRPCClientFlags(BenchCmd)

	BenchCmd.Flags().IntVar(&benchThreads, "threads", 10, util.WrapString("Number of concurrent workers"))
	BenchCmd.Flags().IntVar(&benchCycles, "cycles", 1000, util.WrapString("Number of acquire/release cycles per worker"))
	BenchCmd.Flags().IntVar(&benchDatabases, "databases", 100, util.WrapString("How many distinct database keys to spread the load over"))
}

// setupBenchClient initializes the RPC lock store
func setupBenchClient(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	config := util.GetClientConfig()

	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetTransport()
	if err != nil {
		return err
	}

	rpcLockStore, err = client.NewRPCLockStore(util.GetShardID(), *config, t, s)
	return err
}

// run executes the benchmark
func run(_ *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for lock servers")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads:   %d\n", benchThreads)
	fmt.Printf("Cycles:    %d\n", benchCycles)
	fmt.Printf("Databases: %d\n", benchDatabases)
	fmt.Println()

	registry := gometrics.NewRegistry()
	acquireTimer := gometrics.NewRegisteredTimer("acquire", registry)
	releaseTimer := gometrics.NewRegisteredTimer("release", registry)
	busyCounter := gometrics.NewRegisteredCounter("busy", registry)
	errorCounter := gometrics.NewRegisteredCounter("errors", registry)

	var wg sync.WaitGroup
	start := time.Now()

	for worker := 0; worker < benchThreads; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()

			for i := 0; i < benchCycles; i++ {
				// Spread workers over distinct databases, contention
				// happens when two workers pick the same one
				database := fmt.Sprintf("/bench/db-%d.sqlite", (worker*benchCycles+i)%benchDatabases)

				mgr, err := lockmgr.New(rpcLockStore, nil, lockmgr.Config{
					Database:    database,
					Expiration:  30 * time.Second,
					WaitTimeout: time.Second,
					MaxAttempts: 1,
				})
				if err != nil {
					errorCounter.Inc(1)
					continue
				}

				var acquireErr error
				acquireTimer.Time(func() {
					acquireErr = mgr.Acquire()
				})
				if acquireErr != nil {
					busyCounter.Inc(1)
					continue
				}

				releaseTimer.Time(func() {
					mgr.Release()
				})
			}
		}(worker)
	}

	wg.Wait()
	elapsed := time.Since(start)

	fmt.Println("Results:")
	printTimer("acquire", acquireTimer)
	printTimer("release", releaseTimer)
	fmt.Printf("  %-10s: %d\n", "busy", busyCounter.Count())
	fmt.Printf("  %-10s: %d\n", "errors", errorCounter.Count())
	fmt.Printf("  %-10s: %s\n", "elapsed", elapsed)

	return nil
}

// printTimer prints one timer in a compact single line format
func printTimer(name string, t gometrics.Timer) {
	ps := t.Percentiles([]float64{0.5, 0.95, 0.99})
	fmt.Printf("  %-10s: count=%d rate=%.1f/s mean=%s p50=%s p95=%s p99=%s\n",
		name,
		t.Count(),
		t.RateMean(),
		time.Duration(t.Mean()),
		time.Duration(ps[0]),
		time.Duration(ps[1]),
		time.Duration(ps[2]),
	)
}
