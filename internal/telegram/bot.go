package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/quietlabs/docbot/internal/azure"
	"github.com/quietlabs/docbot/internal/ingest"
	"github.com/quietlabs/docbot/internal/logger"
	"github.com/quietlabs/docbot/internal/rag"
	"github.com/quietlabs/docbot/internal/ratelimit"
	"github.com/quietlabs/docbot/internal/store"
)

// messageLimit stays under Telegram's 4096-character cap with headroom for
// the sources footer.
const messageLimit = 4000

const noAnswerReply = "The answer was not found in the documents."

// AnswerService answers questions from the document library.
type AnswerService interface {
	Answer(ctx context.Context, userID, question string) (*rag.Answer, error)
	ClearHistory(userID string)
}

// IngestService turns an uploaded PDF into searchable chunks.
type IngestService interface {
	IngestPDF(ctx context.Context, source string, data []byte) (int, error)
}

// DocumentStore lists and removes ingested documents.
type DocumentStore interface {
	ListSources(ctx context.Context) ([]store.SourceInfo, error)
	DeleteSource(ctx context.Context, source string) (int64, error)
}

// PolicyService decides who may talk to the bot and who may manage documents.
type PolicyService interface {
	IsAllowed(userID int64) bool
	CanManageDocuments(userID int64) bool
}

// RateLimiter throttles questions per user.
type RateLimiter interface {
	Allow(userID string) error
}

// Bot is the Telegram front end for the document Q&A service.
type Bot struct {
	bot       *bot.Bot
	answers   AnswerService
	ingester  IngestService
	documents DocumentStore
	policy    PolicyService
	limiter   RateLimiter

	maxUploadBytes int64
	username       string
	httpClient     *http.Client
}

// NewBot creates a new bot instance.
func NewBot(token string, answers AnswerService, ingester IngestService, documents DocumentStore, policy PolicyService, limiter RateLimiter, maxUploadBytes int64) (*Bot, error) {
	b := &Bot{
		answers:        answers,
		ingester:       ingester,
		documents:      documents,
		policy:         policy,
		limiter:        limiter,
		maxUploadBytes: maxUploadBytes,
		httpClient:     &http.Client{Timeout: 60 * time.Second},
	}

	botAPI, err := bot.New(token, bot.WithDefaultHandler(b.handleUpdate))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}

	b.bot = botAPI
	return b, nil
}

// Start resolves the bot identity and runs the long-polling loop until the
// context is canceled.
func (b *Bot) Start(ctx context.Context) {
	if me, err := b.bot.GetMe(ctx); err == nil {
		b.username = me.Username
		logger.BotInfo("Running as @%s", b.username)
	} else {
		logger.BotWarn("Could not resolve bot identity: %v", err)
	}
	b.bot.Start(ctx)
}

// handleUpdate handles a Telegram update.
func (b *Bot) handleUpdate(ctx context.Context, tgbot *bot.Bot, update *models.Update) {
	message := update.Message
	if message == nil || message.From == nil {
		return
	}
	chatID := message.Chat.ID
	userID := message.From.ID

	if !b.policy.IsAllowed(userID) {
		logger.BotDebug("Chat[%d] User[%d]: Ignored message from disallowed user.", chatID, userID)
		return
	}

	if message.Document != nil {
		b.handleDocument(ctx, message)
		return
	}

	text := strings.TrimSpace(message.Text)
	if text == "" {
		logger.BotDebug("Chat[%d] User[%d]: Ignored unhandled message type.", chatID, userID)
		return
	}

	if cmd, ok := parseCommand(text); ok {
		b.handleCommand(ctx, message, cmd)
		return
	}

	// Plain text counts as a question in private chats; in groups the bot
	// only answers when mentioned.
	if message.Chat.Type == models.ChatTypePrivate {
		b.handleAsk(ctx, message, text)
		return
	}
	if stripped, mentioned := stripMention(text, b.username); mentioned {
		b.handleAsk(ctx, message, stripped)
		return
	}
}

// handleCommand processes a command message.
func (b *Bot) handleCommand(ctx context.Context, message *models.Message, cmd Command) {
	chatID := message.Chat.ID
	userID := message.From.ID
	logger.BotInfo("Chat[%d] User[%d]: Received command: %s", chatID, userID, cmd.Name)

	switch cmd.Name {
	case "start", "help":
		b.reply(ctx, chatID, helpText())

	case "ask":
		if cmd.Args == "" {
			b.reply(ctx, chatID, "Usage: !ask <question>")
			return
		}
		b.handleAsk(ctx, message, cmd.Args)

	case "sources", "docs":
		b.handleSources(ctx, chatID)

	case "delete":
		b.handleDelete(ctx, message, cmd.Args)

	case "upload":
		b.reply(ctx, chatID, "Attach a PDF file to your message and I will ingest it.")

	case "reset":
		b.answers.ClearHistory(strconv.FormatInt(userID, 10))
		b.reply(ctx, chatID, "Your conversation history has been cleared.")

	default:
		logger.BotInfo("Chat[%d] User[%d]: Unknown command: %s", chatID, userID, cmd.Name)
		b.reply(ctx, chatID, "Unknown command. Try !help to see what I can do.")
	}
}

// handleAsk runs the retrieval pipeline for one question.
func (b *Bot) handleAsk(ctx context.Context, message *models.Message, question string) {
	chatID := message.Chat.ID
	userID := strconv.FormatInt(message.From.ID, 10)

	if err := b.limiter.Allow(userID); errors.Is(err, ratelimit.ErrRateLimited) {
		logger.BotInfo("Chat[%d] User[%s]: Rate limited.", chatID, userID)
		b.reply(ctx, chatID, "You're asking questions a bit too quickly. Please wait a minute and try again.")
		return
	}

	typingDone := make(chan struct{})
	go b.sendContinuousTypingAction(ctx, chatID, typingDone)
	defer close(typingDone)

	answer, err := b.answers.Answer(ctx, userID, question)
	if err != nil {
		b.replyForAnswerError(ctx, chatID, err)
		return
	}

	text := answer.Text
	if len(answer.Citations) > 0 {
		text += "\n\nSources: " + strings.Join(answer.Citations, ", ")
	}
	b.reply(ctx, chatID, text)
}

// replyForAnswerError maps pipeline failures to user-facing messages without
// leaking internals.
func (b *Bot) replyForAnswerError(ctx context.Context, chatID int64, err error) {
	switch {
	case errors.Is(err, rag.ErrNoMatch):
		b.reply(ctx, chatID, noAnswerReply)
	case errors.Is(err, azure.ErrUpstreamTimeout):
		logger.BotError("Chat[%d]: Upstream timeout: %v", chatID, err)
		b.reply(ctx, chatID, "The language model is taking too long to respond. Please try again in a moment.")
	case errors.Is(err, rag.ErrCompletion):
		logger.BotError("Chat[%d]: Completion failed: %v", chatID, err)
		b.reply(ctx, chatID, "Sorry, I couldn't generate an answer. Please try again.")
	default:
		logger.BotError("Chat[%d]: Error answering question: %v", chatID, err)
		b.reply(ctx, chatID, "Sorry, something went wrong while processing your question.")
	}
}

// handleDocument ingests a PDF attachment.
func (b *Bot) handleDocument(ctx context.Context, message *models.Message) {
	chatID := message.Chat.ID
	userID := message.From.ID
	doc := message.Document

	if !b.policy.CanManageDocuments(userID) {
		logger.BotInfo("Chat[%d] User[%d]: Denied document upload.", chatID, userID)
		b.reply(ctx, chatID, "You don't have permission to manage documents.")
		return
	}

	name := doc.FileName
	if name == "" || !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		b.reply(ctx, chatID, "I can only ingest PDF files.")
		return
	}
	if b.maxUploadBytes > 0 && doc.FileSize > b.maxUploadBytes {
		b.reply(ctx, chatID, fmt.Sprintf("That file is too large. The limit is %d MB.", b.maxUploadBytes/(1024*1024)))
		return
	}

	logger.BotInfo("Chat[%d] User[%d]: Ingesting document %q (%d bytes)", chatID, userID, name, doc.FileSize)

	typingDone := make(chan struct{})
	go b.sendContinuousTypingAction(ctx, chatID, typingDone)
	defer close(typingDone)

	data, err := b.downloadFile(ctx, doc.FileID)
	if err != nil {
		logger.BotError("Chat[%d]: Failed to download %q: %v", chatID, name, err)
		b.reply(ctx, chatID, "Sorry, I couldn't download that file from Telegram.")
		return
	}

	count, err := b.ingester.IngestPDF(ctx, name, data)
	if err != nil {
		b.replyForIngestError(ctx, chatID, name, err)
		return
	}
	b.reply(ctx, chatID, fmt.Sprintf("Ingested %q: %d chunks are now searchable.", name, count))
}

func (b *Bot) replyForIngestError(ctx context.Context, chatID int64, name string, err error) {
	switch {
	case errors.Is(err, ingest.ErrTooLarge):
		b.reply(ctx, chatID, fmt.Sprintf("That file is too large. The limit is %d MB.", b.maxUploadBytes/(1024*1024)))
	case errors.Is(err, ingest.ErrInvalidPDF):
		b.reply(ctx, chatID, fmt.Sprintf("%q doesn't look like a readable PDF.", name))
	case errors.Is(err, ingest.ErrNoText):
		b.reply(ctx, chatID, fmt.Sprintf("%q contains no extractable text. Scanned images aren't supported.", name))
	default:
		logger.BotError("Chat[%d]: Failed to ingest %q: %v", chatID, name, err)
		b.reply(ctx, chatID, fmt.Sprintf("Sorry, ingesting %q failed.", name))
	}
}

// handleSources lists the ingested documents.
func (b *Bot) handleSources(ctx context.Context, chatID int64) {
	infos, err := b.documents.ListSources(ctx)
	if err != nil {
		logger.BotError("Chat[%d]: Failed to list sources: %v", chatID, err)
		b.reply(ctx, chatID, "Sorry, I couldn't list the documents right now.")
		return
	}
	if len(infos) == 0 {
		b.reply(ctx, chatID, "No documents have been ingested yet. Attach a PDF to add one.")
		return
	}

	var sb strings.Builder
	sb.WriteString("Ingested documents:\n")
	for _, info := range infos {
		fmt.Fprintf(&sb, "- %s (%d chunks)\n", info.Source, info.ChunkCount)
	}
	b.reply(ctx, chatID, sb.String())
}

// handleDelete removes one document and its chunks.
func (b *Bot) handleDelete(ctx context.Context, message *models.Message, name string) {
	chatID := message.Chat.ID
	userID := message.From.ID

	if !b.policy.CanManageDocuments(userID) {
		logger.BotInfo("Chat[%d] User[%d]: Denied document delete.", chatID, userID)
		b.reply(ctx, chatID, "You don't have permission to manage documents.")
		return
	}
	if name == "" {
		b.reply(ctx, chatID, "Usage: !delete <filename.pdf>")
		return
	}

	count, err := b.documents.DeleteSource(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			b.reply(ctx, chatID, fmt.Sprintf("No document named %q is ingested. Use !sources to see what's available.", name))
			return
		}
		logger.BotError("Chat[%d]: Failed to delete %q: %v", chatID, name, err)
		b.reply(ctx, chatID, fmt.Sprintf("Sorry, deleting %q failed.", name))
		return
	}
	b.reply(ctx, chatID, fmt.Sprintf("Deleted %q (%d chunks removed).", name, count))
}

// downloadFile fetches an attachment through the Telegram file API.
func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	file, err := b.bot.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	url := b.bot.FileDownloadLink(file)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("file download returned status %d", resp.StatusCode)
	}

	limit := b.maxUploadBytes
	if limit <= 0 {
		limit = 50 * 1024 * 1024
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file body: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, ingest.ErrTooLarge
	}
	return data, nil
}

// sendContinuousTypingAction sends the typing action periodically until the
// done channel is closed. Telegram's typing status expires after ~5 seconds.
func (b *Bot) sendContinuousTypingAction(ctx context.Context, chatID int64, done chan struct{}) {
	b.bot.SendChatAction(ctx, &bot.SendChatActionParams{
		ChatID: chatID,
		Action: models.ChatActionTyping,
	})

	ticker := time.NewTicker(4 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			b.bot.SendChatAction(ctx, &bot.SendChatActionParams{
				ChatID: chatID,
				Action: models.ChatActionTyping,
			})
		case <-ctx.Done():
			return
		}
	}
}

// reply sends a message, splitting it when it exceeds the Telegram limit.
func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	for _, part := range splitMessage(text, messageLimit) {
		if _, err := b.bot.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   part,
		}); err != nil {
			logger.BotError("Chat[%d]: Failed to send message: %v", chatID, err)
			return
		}
	}
}

func helpText() string {
	return "I answer questions from the ingested document library.\n\n" +
		"Commands (use ! or /):\n" +
		"!ask <question> - Ask a question about the documents\n" +
		"!sources - List ingested documents\n" +
		"!delete <filename.pdf> - Remove a document\n" +
		"!reset - Clear your conversation history\n" +
		"!help - Show this message\n\n" +
		"Attach a PDF file to ingest it. In group chats, mention me to ask a question."
}
