// Package util provides small building blocks shared by the storage engines and
// the thread pools.
//
// The package contains:
//   - lockfreempsc: an unbounded queue with lock-free producers whose items are handed
//     out through a channel, used as the shared job queue of the thread pools
//   - statistics: a SizeHistogram for tracking record size distributions without
//     keeping every sample, used by the engines' GetInfo reports
package util
