package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// Processor is the part of simplemedia.Service the handler drives.
type Processor interface {
	ProcessUpload(ctx context.Context, req simplemedia.ProcessUploadRequest) error
}

// Handler processes S3 event documents.
type Handler struct {
	processor Processor
	logger    *slog.Logger
}

// NewHandler creates a notification handler
func NewHandler(processor Processor, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{processor: processor, logger: logger}
}

// Handle parses body and processes every record in it. Records that fail
// permanently are logged and skipped; the returned error is non-nil only
// when the document is malformed or a record should be retried, and is
// then classified so Retryable can tell the two apart.
func (h *Handler) Handle(ctx context.Context, body []byte) error {
	requests, err := ParseS3Event(body)
	if err != nil {
		h.logger.WarnContext(ctx, "Dropping malformed notification", "err", err)
		return err
	}

	var retry []error
	for _, req := range requests {
		err := h.processor.ProcessUpload(ctx, req)
		switch {
		case err == nil:
			h.logger.DebugContext(ctx, "Processed notification record", "storage_key", req.StorageKey)
		case Retryable(err):
			h.logger.ErrorContext(ctx, "Notification record failed, will retry",
				"storage_key", req.StorageKey, "err", err)
			retry = append(retry, fmt.Errorf("%s: %w", req.StorageKey, err))
		default:
			h.logger.WarnContext(ctx, "Skipping notification record",
				"storage_key", req.StorageKey, "kind", simplemedia.KindOf(err), "err", err)
		}
	}
	return errors.Join(retry...)
}

// Retryable reports whether err is transient. Only internal errors are
// worth redelivering; every other kind fails the same way again.
func Retryable(err error) bool {
	return err != nil && simplemedia.KindOf(err) == simplemedia.KindInternal
}
