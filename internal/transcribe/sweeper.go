package transcribe

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper removes temp files left behind in the upload directory, for
// example by a process killed mid-request. Requests clean up their own
// files; the sweeper only touches workspace files older than maxAge, so a
// shared directory such as /tmp is safe.
type Sweeper struct {
	dir      string
	maxAge   time.Duration
	interval time.Duration
	log      zerolog.Logger
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewSweeper creates a sweeper for dir. A zero maxAge disables it.
func NewSweeper(dir string, maxAge time.Duration, log zerolog.Logger) *Sweeper {
	interval := maxAge / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	return &Sweeper{
		dir:      dir,
		maxAge:   maxAge,
		interval: interval,
		log:      log.With().Str("component", "temp-sweeper").Logger(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *Sweeper) Start() {
	go s.loop()
}

// Stop ends the loop and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

func (s *Sweeper) loop() {
	defer close(s.done)
	if s.maxAge <= 0 {
		return
	}

	// Clear anything left from before a restart
	s.Sweep(time.Now())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			s.Sweep(now)
		case <-s.stop:
			return
		}
	}
}

// Sweep removes workspace files in the directory last modified before
// now minus maxAge and returns how many were removed.
func (s *Sweeper) Sweep(now time.Time) int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn().Err(err).Msg("read temp dir failed")
		}
		return 0
	}

	cutoff := now.Add(-s.maxAge)
	var removed int
	var removedBytes int64
	for _, e := range entries {
		if !e.Type().IsRegular() || !ownedName(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			s.log.Warn().Err(err).Str("file", e.Name()).Msg("remove stale temp file failed")
			continue
		}
		removed++
		removedBytes += info.Size()
	}

	if removed > 0 {
		s.log.Info().Int("files", removed).Int64("bytes", removedBytes).Msg("stale temp files removed")
	}
	return removed
}
