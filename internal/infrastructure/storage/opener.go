package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"Bluebird/internal/domain"
	"Bluebird/internal/ports"
)

// Opener selects and opens the sink variant named by a run's target.
type Opener struct {
	clock  clockwork.Clock
	logger *slog.Logger
}

var _ ports.SinkOpener = (*Opener)(nil)

// NewOpener wires the clock used for default file names.
func NewOpener(clock clockwork.Clock, logger *slog.Logger) *Opener {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Opener{clock: clock, logger: logger}
}

// Open requires exactly one of target.File or target.Database.
func (o *Opener) Open(ctx context.Context, target domain.SinkTarget) (ports.Sink, error) {
	switch {
	case target.File != nil && target.Database != nil:
		return nil, fmt.Errorf("%w: file and database targets are mutually exclusive", domain.ErrSinkUnavailable)
	case target.File != nil:
		sink, err := OpenCSV(*target.File, o.clock)
		if err != nil {
			return nil, err
		}
		o.debug("csv sink opened", "path", sink.Path())
		return sink, nil
	case target.Database != nil:
		sink, err := OpenSQL(ctx, *target.Database)
		if err != nil {
			return nil, err
		}
		o.debug("sql sink opened", "driver", target.Database.Driver, "table", target.Database.Table)
		return sink, nil
	default:
		return nil, fmt.Errorf("%w: no sink target selected", domain.ErrSinkUnavailable)
	}
}

func (o *Opener) debug(msg string, args ...any) {
	if o.logger != nil {
		o.logger.Debug(msg, args...)
	}
}
