package async

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Job asks a worker to process one OcrResult.
type Job struct {
	OcrResultID uuid.UUID
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// Handler processes one OcrResult. It must record the outcome itself.
type Handler interface {
	Process(ctx context.Context, ocrResultID uuid.UUID) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ocrResultID uuid.UUID) error

func (f HandlerFunc) Process(ctx context.Context, id uuid.UUID) error { return f(ctx, id) }
