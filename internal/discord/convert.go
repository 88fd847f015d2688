package discord

import (
	"strconv"

	"github.com/bwmarrin/discordgo"

	"stash-bot/internal/command"
	"stash-bot/internal/router"
	st "stash-bot/internal/storagetypes"
)

// toInbound converts a gateway message. It returns false for messages without a
// usable author.
func toInbound(m *discordgo.Message, selfID st.UserID) (router.InboundMessage, bool) {
	if m == nil || m.Author == nil {
		return router.InboundMessage{}, false
	}
	author, err := strconv.ParseInt(m.Author.ID, 10, 64)
	if err != nil {
		return router.InboundMessage{}, false
	}

	msg := router.InboundMessage{
		Ref:       router.MessageRef{ID: m.ID, ChannelID: m.ChannelID},
		AuthorID:  st.UserID(author),
		SelfID:    selfID,
		IsFromBot: m.Author.Bot,
		Text:      m.Content,
	}

	switch {
	case m.ReferencedMessage != nil:
		msg.Reply = toCommandMessage(m.ReferencedMessage)
	case m.MessageReference != nil && m.MessageReference.MessageID != "":
		// the referenced message was deleted or not sent along
		msg.Reply = &command.Message{ID: m.MessageReference.MessageID, ChannelID: m.MessageReference.ChannelID}
	}
	return msg, true
}

func toCommandMessage(m *discordgo.Message) *command.Message {
	out := &command.Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		Content:   m.Content,
	}
	if m.Author != nil {
		if id, err := strconv.ParseInt(m.Author.ID, 10, 64); err == nil {
			out.AuthorID = st.UserID(id)
		}
	}
	for _, a := range m.Attachments {
		if a == nil {
			continue
		}
		out.Attachments = append(out.Attachments, command.Link{Name: a.Filename, URL: a.URL, ContentType: a.ContentType})
	}
	for _, s := range m.StickerItems {
		if s == nil {
			continue
		}
		out.Stickers = append(out.Stickers, command.Link{Name: s.Name, URL: stickerURL(s)})
	}
	return out
}

func stickerURL(s *discordgo.StickerItem) string {
	ext := "png"
	if s.FormatType == discordgo.StickerFormatTypeLottie {
		ext = "json"
	}
	return "https://media.discordapp.net/stickers/" + s.ID + "." + ext
}
