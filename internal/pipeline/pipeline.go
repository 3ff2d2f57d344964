package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"detection-bot/internal/chat"
	"detection-bot/internal/core"
	"detection-bot/internal/core/types"
	"detection-bot/internal/metrics"
	"detection-bot/internal/naming"
	"detection-bot/internal/storage"
	"detection-bot/pkg/api"

	"github.com/google/uuid"
)

type State string

const (
	Received         State = "received"
	Downloaded       State = "downloaded"
	Staged           State = "staged"
	Dispatched       State = "dispatched"
	Succeeded        State = "succeeded"
	NotFound         State = "not_found"
	ServiceError     State = "service_error"
	TransportFailure State = "transport_failure"
	Delivered        State = "delivered"
	LoggedAndDropped State = "logged_and_dropped"
)

const (
	StageDownload = "download"
	StageRename   = "rename"
	StageLayout   = "layout"
	StageUpload   = "upload"
	StageDetect   = "detect"
	StageDeliver  = "deliver"
)

// Messenger is the chat capability the pipeline needs.
type Messenger interface {
	DownloadFile(ctx context.Context, fileId, dir string) (string, error)
	SendMessage(ctx context.Context, chatId int64, text string) error
}

type Detector interface {
	Detect(ctx context.Context, remoteKey string, correlationId uuid.UUID) (*api.PredictionSummary, error)
}

// Outcome records how far a photo message travelled. Reached is the last
// state before dispatch, Result is one of the dispatch results once the
// inference call returned, and Final is either Delivered or LoggedAndDropped.
type Outcome struct {
	CorrelationId uuid.UUID
	Image         naming.StagedImage
	Reached       State
	Result        State
	Final         State
	Stage         string
	Message       string
	Err           error
}

func (o Outcome) label() string {
	if o.Final == Delivered {
		return string(o.Result)
	}
	return "dropped_" + o.Stage
}

type Pipeline struct {
	messenger   Messenger
	namer       *naming.Namer
	stager      *storage.Stager
	detector    Detector
	downloadDir string
}

func New(messenger Messenger, namer *naming.Namer, stager *storage.Stager, detector Detector, downloadDir string) *Pipeline {
	return &Pipeline{
		messenger:   messenger,
		namer:       namer,
		stager:      stager,
		detector:    detector,
		downloadDir: downloadDir,
	}
}

// Run takes a photo message through download, staging, detection and
// delivery. It never returns an error: failures are either answered with the
// generic failure message or logged and dropped.
func (p *Pipeline) Run(ctx context.Context, msg chat.Message) Outcome {
	start := time.Now()
	out := Outcome{CorrelationId: uuid.New(), Reached: Received}
	logger := slog.With("correlation_id", out.CorrelationId, "chat_id", msg.Chat.Id)

	p.run(ctx, logger, msg, &out)

	if out.Final == LoggedAndDropped {
		logger.Error("photo message dropped", "stage", out.Stage, "error", out.Err)
	} else {
		logger.Info("photo message processed", "result", out.Result, "duration", time.Since(start))
	}

	metrics.PipelineOutcomes.WithLabelValues(out.label()).Inc()
	metrics.PipelineDuration.Observe(time.Since(start).Seconds())

	return out
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, msg chat.Message, out *Outcome) {
	drop := func(stage string, err error) {
		out.Final = LoggedAndDropped
		out.Stage = stage
		out.Err = err
	}

	photo, ok := msg.LargestPhoto()
	if !ok {
		drop(StageDownload, fmt.Errorf("message has no photo: %w", types.ErrMissingParameter))
		return
	}

	localPath, err := p.messenger.DownloadFile(ctx, photo.FileId, p.downloadDir)
	if err != nil {
		drop(StageDownload, fmt.Errorf("error downloading photo: %w: %w", types.ErrDownloadFailure, err))
		return
	}
	out.Reached = Downloaded
	logger.Debug("photo downloaded", "path", localPath)

	staged, err := p.namer.Stage(localPath)
	if err != nil {
		drop(StageRename, err)
		return
	}

	if err := p.stager.EnsureLayout(ctx); err != nil {
		drop(StageLayout, err)
		return
	}

	key, err := p.stager.Upload(ctx, staged.LocalPath, storage.PhotosPrefix)
	if err != nil {
		drop(StageUpload, err)
		return
	}
	out.Image = staged.WithRemoteKey(key)
	out.Reached = Staged
	logger.Info("photo staged", "key", key)

	out.Reached = Dispatched
	summary, err := p.detector.Detect(ctx, key, out.CorrelationId)
	out.Result = classify(err)

	var text string
	switch out.Result {
	case Succeeded:
		text = core.FormatMessage(core.Aggregate(core.DetectionsFromSummary(summary)))
	case NotFound, ServiceError:
		logger.Warn("detection returned no usable result", "result", out.Result, "error", err)
		text = core.GenericFailureMessage
	default:
		drop(StageDetect, err)
		return
	}

	if err := p.messenger.SendMessage(ctx, msg.Chat.Id, text); err != nil {
		drop(StageDeliver, err)
		return
	}

	out.Final = Delivered
	out.Message = text
}

func classify(err error) State {
	switch {
	case err == nil:
		return Succeeded
	case errors.Is(err, types.ErrResultNotFound):
		return NotFound
	case errors.Is(err, types.ErrServiceError):
		return ServiceError
	case errors.Is(err, types.ErrTransportFailure):
		return TransportFailure
	default:
		return ""
	}
}
