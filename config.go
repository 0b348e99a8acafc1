package stratum

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// Default server parameters, used when a Config field is left at its
// zero value.
const (
	DefaultGroupCommitInterval = 100 // milliseconds between journal ticks
	DefaultChunkSizeBytes      = 64 << 20
	DefaultTicketPoolSize      = 128
	DefaultPaddingFloor        = 1.0
	DefaultPaddingCeiling      = 2.0
	DefaultGeohashPrecision    = 26 // bits of interleaved lat/lon precision
)

// Config collects the tunables a deployment passes to Open, in place
// of the package-global mutables an older design would have reached
// for. The counter and pool-size fields are atomic; Open reads them
// once, so a change made after Open does not affect the running
// database.
type Config struct {
	// Logger receives structured logs for every subsystem. A nil
	// Logger is replaced by a default production logger on Open.
	Logger *zap.SugaredLogger

	// DataDir is the directory holding the database's data files,
	// journal segments, and catalog.
	DataDir string

	// GroupCommitIntervalMillis is the group-commit thread's tick
	// period, read once by Open.
	GroupCommitIntervalMillis atomic.Int64

	// ChunkSizeBytes is a nominal target chunk size. Only withDefaults
	// reads it; the shard package's auto-split uses its own
	// MaxChunkSize.
	ChunkSizeBytes atomic.Int64

	// MaxReadTickets and MaxWriteTickets size the two ticket pools
	// operations acquire before taking their respective locks; Open
	// reads them once.
	MaxReadTickets  atomic.Int64
	MaxWriteTickets atomic.Int64

	// PaddingFloor and PaddingCeiling name the padding-factor bounds.
	// Only withDefaults reads them; the storage package applies its
	// own fixed bounds of 1.0 and 2.0.
	PaddingFloor   float64
	PaddingCeiling float64

	// GeohashPrecision names a 2D index bit depth. Only withDefaults
	// reads it; each geo index takes its precision from the geo.Config
	// passed when it is created.
	GeohashPrecision int
}

// withDefaults returns a copy of c with every unset field replaced by
// its documented default.
func (c Config) withDefaults() *Config {
	out := &c
	if out.Logger == nil {
		out.Logger = newLogger()
	}
	if out.GroupCommitIntervalMillis.Load() == 0 {
		out.GroupCommitIntervalMillis.Store(DefaultGroupCommitInterval)
	}
	if out.ChunkSizeBytes.Load() == 0 {
		out.ChunkSizeBytes.Store(DefaultChunkSizeBytes)
	}
	if out.MaxReadTickets.Load() == 0 {
		out.MaxReadTickets.Store(DefaultTicketPoolSize)
	}
	if out.MaxWriteTickets.Load() == 0 {
		out.MaxWriteTickets.Store(DefaultTicketPoolSize)
	}
	if out.PaddingFloor == 0 {
		out.PaddingFloor = DefaultPaddingFloor
	}
	if out.PaddingCeiling == 0 {
		out.PaddingCeiling = DefaultPaddingCeiling
	}
	if out.GeohashPrecision == 0 {
		out.GeohashPrecision = DefaultGeohashPrecision
	}
	return out
}

// ticketPool is a bounded counting semaphore used to cap concurrent
// readers or writers against a thundering herd. A buffered channel is
// the idiomatic Go semaphore; nothing in the dependency pack models
// one more specifically than the language itself does.
type ticketPool chan struct{}

func newTicketPool(n int64) ticketPool {
	return make(ticketPool, n)
}

// acquire blocks until a ticket is available or done is closed.
func (p ticketPool) acquire(done <-chan struct{}) error {
	select {
	case p <- struct{}{}:
		return nil
	case <-done:
		return ErrInterrupted
	}
}

func (p ticketPool) release() {
	select {
	case <-p:
	default:
	}
}
