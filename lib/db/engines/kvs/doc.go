// Package kvs implements the native log-structured storage engine of the module.
// It provides a complete implementation of the db.KVDB interface on top of an
// append-only command log.
//
// The package focuses on:
//   - Durable writes: every Set and Remove is one checksummed record appended to a log
//   - Lock-free reads: readers never wait for the writer or for each other
//   - Bounded disk usage: stale records are reclaimed by compaction
//   - Crash recovery: the index is rebuilt from the log on open, torn tails are cut off
//
// Key Components:
//
//   - DB: The engine returned by Open. A single mutex serializes Set, Remove and
//     compaction. Readers pin the current index version and read through their own
//     file handles, so a Get never blocks on a write.
//
//   - Generations: The log is split into files named "<n>.log". Exactly one generation,
//     the one with the highest number, is appended to. Older generations are immutable
//     and only ever deleted by compaction.
//
//   - Records: Each command is stored as
//     [crc32(4)][op(1)][keysize(4)][valuesize(4)][key][value] in little endian.
//     The checksum covers everything after itself, so a record cut off by a crash
//     or damaged on disk is detected during recovery.
//
//   - Index: An xsync.MapOf from key to LogPointer (generation, offset, length) holding
//     exactly the live keys. Superseded and removed records are counted as stale bytes.
//
// Internal Mechanisms:
//
//   - Compaction: When the stale bytes exceed DBOptions.CompactionThreshold after a write,
//     the live records of active generation n are copied verbatim into generation n+1 and
//     writes continue in generation n+2. The copy is built next to the old state and only
//     swapped in once it is synced, a failure leaves the database untouched.
//
//   - Versions: Compaction replaces the whole index. Every index is wrapped in a reference
//     counted version. The generations of a retired version are deleted once its last
//     reader releases it and every older retired version is gone, always in ascending
//     order, so no read can hit a deleted file and no remove record is deleted before
//     the set records it cancels.
//
//   - Reader arenas: Read handles are grouped into arenas that are pooled and used by one
//     goroutine at a time. Handles of compacted generations are closed lazily the next
//     time an arena is taken from the pool.
//
//   - Recovery: Open replays the generations in ascending order. A torn or corrupt record
//     truncates its generation at the last good record (or fails Open with
//     DBOptions.StrictRecovery). Files left behind by an interrupted compaction only hold
//     copies of the latest values and are replayed like any other generation.
//
//   - Directory lock: An exclusive flock on "<dir>/LOCK" keeps a second process (or a
//     second DB in the same process) from opening the directory.
//
// Usage Example:
//
//	database, err := kvs.Open("data", nil)
//	if err != nil {
//	    return err
//	}
//	defer database.Close()
//
//	_ = database.Set("key", []byte("value"))
//	value, ok, err := database.Get("key")
package kvs
