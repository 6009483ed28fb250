package kvs

import (
	"fmt"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/ValentinKolb/kvs/lib/db"
	"github.com/puzpuzpuz/xsync/v3"
)

var (
	compactionsTotal        = metrics.NewCounter("kvs_compactions_total")
	compactionFailuresTotal = metrics.NewCounter("kvs_compaction_failures_total")
	compactionDuration      = metrics.NewHistogram("kvs_compaction_duration_seconds")
	compactionReclaimed     = metrics.NewCounter("kvs_compaction_reclaimed_bytes_total")
)

// maybeCompact runs a compaction if the stale bytes exceed the threshold.
// A failed compaction leaves the database unchanged, so the error is logged and counted
// but not returned to the write that triggered it.
// Must be called with mu held.
func (kvs *DB) maybeCompact() {
	if kvs.stale.Load() <= kvs.opts.CompactionThreshold {
		return
	}
	if err := kvs.compact(); err != nil {
		compactionFailuresTotal.Inc()
		Logger.Errorf("compaction failed: %v", err)
	}
}

// compact rewrites every live record into a new generation and drops all older generations.
//
// With n being the active generation, the live records are copied into generation n+1 and
// all following writes go to generation n+2. Generations below n+1 are deleted as soon as
// no reader holds the index version that still points into them.
//
// Must be called with mu held.
func (kvs *DB) compact() error {
	start := time.Now()
	staleBefore := kvs.stale.Load()

	compactionGen := kvs.writer.gen + 1
	activeGen := kvs.writer.gen + 2

	// the old active generation must be readable through the compaction reader
	if err := kvs.writer.flush(); err != nil {
		return err
	}

	active, err := newGenWriter(kvs.dir, activeGen)
	if err != nil {
		return err
	}
	out, err := newGenWriter(kvs.dir, compactionGen)
	if err != nil {
		active.discard()
		return err
	}

	old := kvs.current.Load()
	index := xsync.NewMapOf[string, LogPointer]()

	var copyErr error
	old.index.Range(func(key string, p LogPointer) bool {
		record, err := kvs.compactReader.readAt(p)
		if err != nil {
			copyErr = err
			return false
		}
		offset, err := out.append(record)
		if err != nil {
			copyErr = err
			return false
		}
		index.Store(key, LogPointer{Gen: compactionGen, Offset: offset, Len: p.Len})
		return true
	})
	if copyErr == nil {
		copyErr = out.sync()
	}
	if copyErr == nil {
		copyErr = out.close()
	}
	if copyErr == nil {
		// the new files must be reachable after a crash before old generations are deleted
		copyErr = syncDir(kvs.dir)
	}
	if copyErr != nil {
		out.discard()
		active.discard()
		return db.WrapError(db.RetCIoError, copyErr, fmt.Sprintf("failed to write compaction generation %d", compactionGen))
	}

	// swap
	if err := kvs.writer.close(); err != nil {
		Logger.Warningf("failed to close generation %d after compaction: %v", kvs.writer.gen, err)
	}
	kvs.writer = active
	kvs.current.Store(newVersion(index))
	kvs.safePoint.Store(compactionGen)
	kvs.stale.Store(0)
	kvs.compactions.Add(1)

	kvs.reclaimer.retire(old, compactionGen)
	kvs.compactReader.dropBelow(compactionGen)

	compactionsTotal.Inc()
	compactionReclaimed.Add(int(staleBefore))
	compactionDuration.UpdateDuration(start)
	Logger.Debugf("compacted %d keys into generation %d in %s, reclaimed %d bytes",
		index.Size(), compactionGen, time.Since(start), staleBefore)

	return nil
}
