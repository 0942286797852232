package telegram

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"

	"refhub/entity"
	"refhub/lib/sl"
)

// Sender delivers notifications to Telegram chat ids. Outbound only: this
// system's admins interact over HTTP, the bot never polls for updates.
type Sender struct {
	api *tgbotapi.Bot
	log *slog.Logger
}

func NewSender(apiKey string, log *slog.Logger) (*Sender, error) {
	api, err := tgbotapi.NewBot(apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating api instance: %v", err)
	}
	return &Sender{
		api: api,
		log: log.With(sl.Module("telegram")),
	}, nil
}

func (s *Sender) Send(_ context.Context, channel entity.Channel, text string) error {
	_, err := s.api.SendMessage(channel.ChatId, Sanitize(text), &tgbotapi.SendMessageOpts{
		ParseMode: "MarkdownV2",
	})
	if err == nil {
		return nil
	}
	s.log.With(slog.Int64("id", channel.ChatId)).Warn("sending message", sl.Err(err))

	// markdown rejections are common; retry the same text unformatted
	_, err = s.api.SendMessage(channel.ChatId, text, &tgbotapi.SendMessageOpts{})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// Sanitize escapes MarkdownV2 reserved characters in dynamic message parts.
func Sanitize(input string) string {
	reservedChars := "\\_{}#+-.!|()[]=*"
	sanitized := make([]rune, 0, len(input))
	for _, char := range input {
		for _, r := range reservedChars {
			if r == char {
				sanitized = append(sanitized, '\\')
				break
			}
		}
		sanitized = append(sanitized, char)
	}
	return string(sanitized)
}
