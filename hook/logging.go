package hook

import (
	"log/slog"

	"github.com/deeplooplabs/pagedcache"
)

// LoggingHook logs every cache notification
type LoggingHook struct {
	logger *slog.Logger
}

// NewLoggingHook creates a logging hook, nil uses slog.Default()
func NewLoggingHook(logger *slog.Logger) *LoggingHook {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingHook{logger: logger}
}

func (h *LoggingHook) Name() string {
	return "logging"
}

func (h *LoggingHook) OnTotalCountChanged(q *pagedcache.Query, total int) {
	h.logger.Info("total count changed", "query", q, "total", total)
}

func (h *LoggingHook) OnFetchFailed(q *pagedcache.Query, offset int, err error) {
	h.logger.Warn("fetch failed", "query", q, "offset", offset, "error", err)
}

func (h *LoggingHook) OnQueryChanged(q *pagedcache.Query) {
	h.logger.Info("query changed", "query", q)
}

func (h *LoggingHook) OnBatchSizeChanged(n int) {
	h.logger.Debug("batch size changed", "batch_size", n)
}

func (h *LoggingHook) OnItemsInserted(q *pagedcache.Query, first, last int) {
	h.logger.Debug("items inserted", "query", q, "first", first, "last", last)
}

func (h *LoggingHook) OnStatusChanged(status pagedcache.Status) {
	h.logger.Debug("status changed", "status", status.String())
}

func (h *LoggingHook) OnFetchFinished(f Fetch) {
	if f.Stale {
		h.logger.Debug("stale response dropped", "query", f.Query, "offset", f.Offset)
		return
	}
	if f.Superseded {
		h.logger.Debug("superseded response dropped", "query", f.Query, "offset", f.Offset)
		return
	}
	h.logger.Debug("fetch finished",
		"query", f.Query,
		"offset", f.Offset,
		"limit", f.Limit,
		"count", f.Count,
		"duration", f.Duration,
	)
}
