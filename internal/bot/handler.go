package bot

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"detection-bot/internal/chat"
	"detection-bot/internal/pipeline"
)

const MissingPhotoMessage = "Don't forget to send photo"

type Messenger interface {
	SendMessage(ctx context.Context, chatId int64, text string) error
}

type PhotoPipeline interface {
	Run(ctx context.Context, msg chat.Message) pipeline.Outcome
}

// Handler routes incoming chat messages: photos captioned with "predict" go
// through the detection pipeline, everything else gets a canned reply.
type Handler struct {
	messenger Messenger
	pipeline  PhotoPipeline
	responder Responder
}

func NewHandler(messenger Messenger, pipeline PhotoPipeline, responder Responder) *Handler {
	return &Handler{messenger: messenger, pipeline: pipeline, responder: responder}
}

func (h *Handler) HandleUpdate(ctx context.Context, update chat.Update) {
	if update.Message == nil {
		slog.Debug("ignoring update without message", "update_id", update.UpdateId)
		return
	}
	h.HandleMessage(ctx, *update.Message)
}

func (h *Handler) HandleMessage(ctx context.Context, msg chat.Message) {
	slog.Info("incoming message", "chat_id", msg.Chat.Id, "message_id", msg.MessageId, "photo", len(msg.Photo) > 0)

	if len(msg.Photo) > 0 {
		h.handlePhoto(ctx, msg)
		return
	}

	h.reply(ctx, msg.Chat.Id, h.textReply(msg.Text))
}

func (h *Handler) handlePhoto(ctx context.Context, msg chat.Message) {
	caption := strings.ToLower(msg.Caption)
	switch {
	case caption == "":
		h.reply(ctx, msg.Chat.Id, h.responder.Respond(NoCaption))
	case strings.Contains(caption, "predict"):
		h.pipeline.Run(ctx, msg)
	default:
		h.reply(ctx, msg.Chat.Id, h.responder.Respond(Default))
	}
}

func (h *Handler) textReply(text string) string {
	lower := strings.ToLower(text)
	words := strings.Fields(lower)

	switch {
	case slices.Contains(words, "hi") || slices.Contains(words, "hello"):
		return h.responder.Respond(Greeting)
	case strings.Contains(lower, "how are you") || strings.Contains(lower, "how you doing"):
		return h.responder.Respond(WellBeing)
	case strings.Contains(lower, "thank"):
		return h.responder.Respond(Thanks)
	case strings.Contains(lower, "help"):
		return h.responder.Respond(Help)
	case strings.Contains(lower, "what is") && strings.Contains(lower, "predict"):
		return h.responder.Respond(PredictInfo)
	case strings.Contains(lower, "predict"):
		return MissingPhotoMessage
	default:
		return h.responder.Respond(Default)
	}
}

func (h *Handler) reply(ctx context.Context, chatId int64, text string) {
	if text == "" {
		return
	}
	if err := h.messenger.SendMessage(ctx, chatId, text); err != nil {
		slog.Error("error sending reply", "chat_id", chatId, "error", err)
	}
}
