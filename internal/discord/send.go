package discord

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"stash-bot/internal/router"
	"stash-bot/internal/transform"
	"stash-bot/pkg/retrylimit"
)

// maxMessageLen stays under Discord's 2000 character limit.
const maxMessageLen = 1990

type messageSender interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// sendReply posts reply as one or more messages. The attachment, if any, rides on the
// first message. Mentions only ping users.
func sendReply(ctx context.Context, s messageSender, lim *retrylimit.AdaptiveLimiter, reply *router.OutboundReply) error {
	chunks := splitMessage(reply.Body, maxMessageLen)
	if len(chunks) == 0 {
		chunks = []string{""}
	}

	for i, chunk := range chunks {
		withFile := i == 0 && reply.Attachment != nil
		if chunk == "" && !withFile {
			continue
		}

		err := retrylimit.WithRetryMax(ctx, func() error {
			send := &discordgo.MessageSend{
				Content:   chunk,
				Reference: &discordgo.MessageReference{MessageID: reply.Target.ID, ChannelID: reply.Target.ChannelID},
				AllowedMentions: &discordgo.MessageAllowedMentions{
					Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeUsers},
				},
			}
			if withFile {
				send.Files = []*discordgo.File{{
					Name:        reply.Attachment.Name,
					ContentType: reply.Attachment.ContentType,
					Reader:      bytes.NewReader(reply.Attachment.Data),
				}}
			}
			_, err := s.ChannelMessageSendComplex(reply.Target.ChannelID, send, discordgo.WithContext(ctx))
			return classifyDiscordError(err)
		}, lim, 3)
		if err != nil {
			return fmt.Errorf("send chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}
	return nil
}

type restStatusError struct {
	err  *discordgo.RESTError
	code int
}

func (e *restStatusError) Error() string   { return e.err.Error() }
func (e *restStatusError) Unwrap() error   { return e.err }
func (e *restStatusError) StatusCode() int { return e.code }

// classifyDiscordError marks client errors other than 429 as fatal so they are not retried.
func classifyDiscordError(err error) error {
	if err == nil {
		return nil
	}
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil {
		code := rest.Response.StatusCode
		if code >= 400 && code < 500 && code != http.StatusTooManyRequests {
			return &retrylimit.FatalError{Err: err}
		}
		return &restStatusError{err: rest, code: code}
	}
	return err
}

// splitMessage cuts text into pieces of at most limit runes, preferring line breaks
// and then spaces as cut points.
func splitMessage(text string, limit int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var chunks []string
	for utf8.RuneCountInString(text) > limit {
		cut := byteOffset(text, limit)
		head := text[:cut]
		if i := strings.LastIndex(head, "\n"); i > 0 {
			cut = i + 1
		} else if i := strings.LastIndex(head, " "); i > 0 {
			cut = i + 1
		}
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

// byteOffset returns the byte index just after the first n runes of s.
func byteOffset(s string, n int) int {
	i := 0
	for n > 0 && i < len(s) {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
		n--
	}
	return i
}

type httpDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Fetcher downloads attachment bytes, capped at the deepfry size limit.
type Fetcher struct {
	client httpDoer
}

// NewFetcher uses client, or http.DefaultClient when client is nil.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		return &Fetcher{client: http.DefaultClient}
	}
	return &Fetcher{client: client}
}

func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	client := f.client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, transform.MaxImageBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > transform.MaxImageBytes {
		return nil, fmt.Errorf("attachment larger than %d bytes", transform.MaxImageBytes)
	}
	return data, nil
}
