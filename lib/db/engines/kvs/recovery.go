package kvs

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ValentinKolb/kvs/lib/db"
	"github.com/puzpuzpuz/xsync/v3"
)

// recoveredState is the in-memory state rebuilt from the generations on disk
type recoveredState struct {
	index  *xsync.MapOf[string, LogPointer]
	stale  int64
	gens   []uint64
	minGen uint64 // lowest generation on disk (0 if there is none)
	maxGen uint64 // highest generation on disk (0 if there is none)
}

// recoverGenerations replays every generation in dir in ascending order.
//
// A torn or corrupt record ends the replay of its generation: the file is truncated at the last
// good record and replay continues with the next generation. With strict set the first such
// record fails the recovery instead.
func recoverGenerations(dir string, strict bool) (*recoveredState, error) {
	gens, err := listGenerations(dir)
	if err != nil {
		return nil, err
	}

	state := &recoveredState{
		index: xsync.NewMapOf[string, LogPointer](),
		gens:  gens,
	}
	if len(gens) > 0 {
		state.minGen = gens[0]
		state.maxGen = gens[len(gens)-1]
	}

	for _, gen := range gens {
		if err := state.replay(dir, gen, strict); err != nil {
			return nil, err
		}
	}
	return state, nil
}

// replay applies all records of one generation to the state
func (s *recoveredState) replay(dir string, gen uint64, strict bool) error {
	file, err := os.OpenFile(genPath(dir, gen), os.O_RDWR, 0o644)
	if err != nil {
		return db.WrapError(db.RetCIoError, err, fmt.Sprintf("failed to open generation %d", gen))
	}
	defer file.Close()

	reader := bufio.NewReaderSize(file, 64*1024)
	var offset int64
	for {
		cmd, n, err := readCommand(reader)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, errTornRecord) || errors.Is(err, errCorruptRecord) {
			if strict {
				return db.WrapError(db.RetCSerializationError, err,
					fmt.Sprintf("generation %d is damaged at offset %d", gen, offset))
			}
			Logger.Warningf("generation %d is damaged at offset %d (%v), truncating", gen, offset, err)
			if err := file.Truncate(offset); err != nil {
				return db.WrapError(db.RetCIoError, err, fmt.Sprintf("failed to truncate generation %d", gen))
			}
			return nil
		}
		if err != nil {
			return err
		}

		pointer := LogPointer{Gen: gen, Offset: offset, Len: n}
		switch cmd.op {
		case opSet:
			if old, loaded := s.index.LoadAndStore(cmd.key, pointer); loaded {
				s.stale += old.Len
			}
		case opRemove:
			if old, loaded := s.index.LoadAndDelete(cmd.key); loaded {
				s.stale += old.Len
			}
			s.stale += n
		}
		offset += n
	}
}
