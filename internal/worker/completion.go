package worker

import (
	"context"
	"time"

	"github.com/hackgods/therapy-scheduling/pkg/logging"
)

// Completer is implemented by *appointment.Service.
type Completer interface {
	CompletePastAppointments(ctx context.Context) (int, error)
}

// CompletionSweeper periodically marks ended sessions completed.
type CompletionSweeper struct {
	completer Completer
	interval  time.Duration
	timeout   time.Duration
	logger    *logging.Logger
}

func NewCompletionSweeper(c Completer, interval time.Duration, logger *logging.Logger) *CompletionSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CompletionSweeper{
		completer: c,
		interval:  interval,
		timeout:   20 * time.Second,
		logger:    logger,
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *CompletionSweeper) Run(ctx context.Context) {
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("completion sweeper stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

func (s *CompletionSweeper) RunOnce(ctx context.Context) (int, error) {
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	n, err := s.completer.CompletePastAppointments(runCtx)
	if err != nil {
		s.logger.Error("completion sweep failed", "error", err)
		return 0, err
	}
	s.logger.Debug("completion sweep finished",
		"completed", n,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return n, nil
}
