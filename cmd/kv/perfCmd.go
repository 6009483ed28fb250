package kv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/kvs/cmd/util"
	"github.com/ValentinKolb/kvs/lib/db"
	"github.com/ValentinKolb/kvs/lib/store"
	"github.com/ValentinKolb/kvs/rpc/common"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for kvs servers",
		Long:    "Runs set, get and rm workloads against a kvs server and prints throughput and latency percentiles per workload.",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__test"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfSkip             = make([]string, 0)

	// perfRegistry holds one latency timer and one error counter per workload
	perfRegistry = gometrics.NewRegistry()
)

// perfTest is one workload of the perf command
type perfTest struct {
	name string
	// prepare runs before the timer starts, it returns the operation to measure
	prepare func(getKey func(int) string, iter func(func(string))) func(counter int) error
}

var perfTests = []perfTest{
	{
		name: "set",
		prepare: func(getKey func(int) string, _ func(func(string))) func(int) error {
			return func(i int) error {
				return rpcStore.Set(getKey(i), []byte("test"))
			}
		},
	},
	{
		name: "set-large",
		prepare: func(getKey func(int) string, _ func(func(string))) func(int) error {
			largeValue := make([]byte, perfLargeValueSizeKB*1024)
			return func(i int) error {
				return rpcStore.Set(getKey(i), largeValue)
			}
		},
	},
	{
		name: "get",
		prepare: func(getKey func(int) string, iter func(func(string))) func(int) error {
			setAll(iter)
			return func(i int) error {
				_, _, err := rpcStore.Get(getKey(i))
				return err
			}
		},
	},
	{
		name: "get-not",
		prepare: func(_ func(int) string, _ func(func(string))) func(int) error {
			return func(i int) error {
				_, _, err := rpcStore.Get(fmt.Sprintf("%s/get-not-%d", perfKeyPrefix, i%100))
				return err
			}
		},
	},
	{
		name: "rm",
		prepare: func(getKey func(int) string, iter func(func(string))) func(int) error {
			setAll(iter)
			return func(i int) error {
				// every key exists once, the following rounds only measure the not found path
				return removeExisting(rpcStore, getKey(i))
			}
		},
	},
	{
		name: "mixed",
		prepare: func(getKey func(int) string, iter func(func(string))) func(int) error {
			setAll(iter)
			return func(i int) error {
				key := getKey(i)
				// 2 sets, 1 get, 1 rm
				switch i % 4 {
				case 0, 2:
					return rpcStore.Set(key, []byte("test"))
				case 1:
					_, _, err := rpcStore.Get(key)
					return err
				default:
					return removeExisting(rpcStore, key)
				}
			}
		},
	},
}

// removeExisting removes a key, a missing key is not counted as an error
func removeExisting(s store.IStore, key string) error {
	if err := s.Remove(key); err != nil && !errors.Is(err, db.ErrKeyNotFound) {
		return err
	}
	return nil
}

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the value for the set-large test should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = viper.GetInt("keys")
	perfNumThreads = viper.GetInt("threads")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	if perfKeySpread < 1 {
		return fmt.Errorf("keys must be at least 1")
	}
	return nil
}

func runPerf(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for kvs servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("starting tests...")

	// Create results map
	results := make(map[string]testing.BenchmarkResult)

	for _, test := range perfTests {
		result := runPerfTest(test)
		results[test.name] = result
		printResult(test.name, result)
	}

	// Write results to csv if specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, util.GetClientConfig()); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// runPerfTest runs one workload in parallel and records every operation in the timer of the workload
func runPerfTest(test perfTest) testing.BenchmarkResult {
	if shouldSkip(test.name) {
		return testing.BenchmarkResult{}
	}

	timer := gometrics.GetOrRegisterTimer(test.name+".latency", perfRegistry)
	errCount := gometrics.GetOrRegisterCounter(test.name+".errors", perfRegistry)

	return testing.Benchmark(func(b *testing.B) {
		// prepare keys
		getKey, iter := getKeys(test.name)
		op := test.prepare(getKey, iter)

		// cleanup
		b.Cleanup(func() {
			iter(func(k string) {
				if err := removeExisting(rpcStore, k); err != nil {
					fmt.Printf("cleanup of %s failed: %v\n", k, err)
				}
			})
		})

		b.SetParallelism(perfNumThreads)

		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				start := time.Now()
				err := op(counter)
				timer.UpdateSince(start)
				if err != nil {
					errCount.Inc(1)
				}
				counter++
			}
		})
	})
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == strings.TrimSpace(skip) {
			return true
		}
	}
	return false
}

// setAll stores a value for every key of the test
func setAll(iter func(func(string))) {
	iter(func(k string) {
		if err := rpcStore.Set(k, []byte("test")); err != nil {
			fmt.Fprintf(os.Stderr, "error setting key %s: %v\n", k, err)
		}
	})
}

// creates an array of test keys and functions to work with them
func getKeys(prefix string) (func(int) string, func(func(string))) {
	keys := make([]string, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i)
	}

	// Function to get a key by index (with wraparound)
	getKey := func(i int) string {
		return keys[i%perfKeySpread]
	}

	// Function to iterate over all keys and apply a function to each
	iterateKeys := func(fn func(string)) {
		for _, key := range keys {
			fn(key)
		}
	}

	return getKey, iterateKeys
}

// latency returns the latency snapshot and the error count of a workload
func latency(test string) (gometrics.Timer, int64) {
	timer := gometrics.GetOrRegisterTimer(test+".latency", perfRegistry).Snapshot()
	errCount := gometrics.GetOrRegisterCounter(test+".errors", perfRegistry).Count()
	return timer, errCount
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-12sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	timer, errCount := latency(test)
	ps := timer.Percentiles([]float64{0.5, 0.99})

	// Print the formatted result
	fmt.Printf("%-12s%.0fns/op (%s/op)\t%.0f ops/sec\tp50=%s p99=%s max=%s\terrors=%d\n",
		test, nsPerOp, time.Duration(nsPerOp), opsPerSec,
		time.Duration(ps[0]), time.Duration(ps[1]), time.Duration(timer.Max()), errCount)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "P50Ns", "P99Ns", "Errors", "Skipped",
		"Endpoint", "TimeoutSec", "RetryCount", "Serializer", "Transport",
		"Threads", "LargeValueSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for _, test := range perfTests {
		result, ok := results[test.name]
		if !ok {
			continue
		}

		var nsPerOp float64
		var opsPerSec float64
		var skipped string

		if result.NsPerOp() == 0 {
			skipped = "true"
		} else {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		timer, errCount := latency(test.name)
		ps := timer.Percentiles([]float64{0.5, 0.99})

		row := []string{
			test.name,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			fmt.Sprintf("%.0f", ps[0]),
			fmt.Sprintf("%.0f", ps[1]),
			strconv.FormatInt(errCount, 10),
			skipped,
			config.Endpoint,
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.RetryCount),
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test.name, err)
		}
	}

	return nil
}
