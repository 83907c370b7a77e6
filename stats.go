package udptun

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// Stats counts relayed traffic per direction.
type Stats struct {
	UpFrames   atomic.Int64
	UpBytes    atomic.Int64
	DownFrames atomic.Int64
	DownBytes  atomic.Int64
}

func (s *Stats) Uplink(n int) {
	s.UpFrames.Add(1)
	s.UpBytes.Add(int64(n))
}

func (s *Stats) Downlink(n int) {
	s.DownFrames.Add(1)
	s.DownBytes.Add(int64(n))
}

const statsInterval = time.Second * 10

// statsService reports traffic deltas periodically, staying quiet while
// the link is idle.
func (s *Session) statsService() {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	var prevUp, prevDown, prevUpFrames, prevDownFrames int64
	for {
		select {
		case <-ticker.C:
			up, down := s.stats.UpBytes.Load(), s.stats.DownBytes.Load()
			upFrames, downFrames := s.stats.UpFrames.Load(), s.stats.DownFrames.Load()

			if upFrames != prevUpFrames || downFrames != prevDownFrames {
				s.config.Logger.Info("traffic",
					slog.Int64("up-frames", upFrames-prevUpFrames),
					slog.Int64("up-bytes", up-prevUp),
					slog.Int64("down-frames", downFrames-prevDownFrames),
					slog.Int64("down-bytes", down-prevDown),
				)
			}
			prevUp, prevDown = up, down
			prevUpFrames, prevDownFrames = upFrames, downFrames

		case <-s.srvCtx.Done():
			return
		}
	}
}
