package minilang

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/dgraph-io/ristretto"
	"github.com/oarkflow/log"
)

// ProgramCache keeps compiled programs keyed by a hash of their source. Safe
// for concurrent use.
type ProgramCache struct {
	cache  *ristretto.Cache
	logger *log.Logger
}

func NewProgramCache(maxPrograms int, logger *log.Logger) (*ProgramCache, error) {
	if maxPrograms <= 0 {
		maxPrograms = 1024
	}
	if logger == nil {
		logger = &log.DefaultLogger
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        int64(maxPrograms * 10),
		MaxCost:            int64(maxPrograms),
		BufferItems:        64,
		// cost counts programs, not bytes
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &ProgramCache{cache: cache, logger: logger}, nil
}

// programKey includes the nesting limit a program was parsed under, so a
// caller with a stricter limit never receives a program compiled under a
// looser one.
func programKey(ctx context.Context, source string) string {
	depth := effectiveRuntimeConfig(ctx).MaxNestingDepth
	sum := sha256.Sum256([]byte(strconv.Itoa(depth) + "\x00" + source))
	return hex.EncodeToString(sum[:])
}

func (pc *ProgramCache) Get(ctx context.Context, source string) (*Program, bool) {
	v, found := pc.cache.Get(programKey(ctx, source))
	if !found {
		return nil, false
	}
	prog, ok := v.(*Program)
	return prog, ok
}

// Compile returns the cached program for source, compiling and storing it on
// a miss. The runtime configuration on ctx applies to the compilation. Failed
// compilations are not cached.
func (pc *ProgramCache) Compile(ctx context.Context, source string) (*Program, error) {
	if prog, ok := pc.Get(ctx, source); ok {
		return prog, nil
	}
	prog, err := CompileContext(ctx, source)
	if err != nil {
		return nil, err
	}
	key := programKey(ctx, source)
	if !pc.cache.Set(key, prog, 1) {
		pc.logger.Warn().Str("key", key).Msg("program cache rejected entry")
	}
	pc.cache.Wait()
	return prog, nil
}

func (pc *ProgramCache) Remove(ctx context.Context, source string) {
	pc.cache.Del(programKey(ctx, source))
}

func (pc *ProgramCache) Close() {
	pc.cache.Close()
}
