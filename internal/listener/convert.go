package listener

import (
	"github.com/gotd/td/tg"

	"lead_bot/internal/model"
	"lead_bot/internal/pipeline"
)

// channelIDOffset turns a raw channel id into the Bot API "-100..." form.
const channelIDOffset = 1_000_000_000_000

const unknownTitle = "Unknown"

// MarkedChannelID returns the Bot API chat id of a channel or supergroup.
func MarkedChannelID(id int64) int64 {
	return -(channelIDOffset + id)
}

// MarkedChatID returns the Bot API chat id of a basic group.
func MarkedChatID(id int64) int64 {
	return -id
}

// Convert resolves an MTProto message into a pipeline message. It reports
// false for outgoing messages and peers it cannot classify.
func Convert(msg *tg.Message, e tg.Entities) (pipeline.Message, bool) {
	if msg == nil || msg.Out {
		return pipeline.Message{}, false
	}

	out := pipeline.Message{
		Text:      msg.Message,
		MessageID: msg.ID,
		ChatTitle: unknownTitle,
	}

	switch p := msg.PeerID.(type) {
	case *tg.PeerUser:
		out.ChatKind = model.ChatDialog
		out.ChatID = p.UserID
		if u, ok := e.Users[p.UserID]; ok {
			out.ChatUsername = u.Username
			if u.FirstName != "" {
				out.ChatTitle = u.FirstName
			}
		}
	case *tg.PeerChat:
		out.ChatKind = model.ChatGroup
		out.ChatID = MarkedChatID(p.ChatID)
		if c, ok := e.Chats[p.ChatID]; ok && c.Title != "" {
			out.ChatTitle = c.Title
		}
	case *tg.PeerChannel:
		out.ChatKind = model.ChatGroup
		out.ChatID = MarkedChannelID(p.ChannelID)
		if c, ok := e.Channels[p.ChannelID]; ok {
			if c.Broadcast {
				out.ChatKind = model.ChatBroadcast
			}
			out.ChatUsername = c.Username
			if c.Title != "" {
				out.ChatTitle = c.Title
			}
		}
	default:
		return pipeline.Message{}, false
	}

	// Private messages and channel posts often carry no from_id; the chat
	// itself is the sender then.
	from, ok := msg.GetFromID()
	if !ok {
		from = msg.PeerID
	}
	switch p := from.(type) {
	case *tg.PeerUser:
		out.SenderID = p.UserID
		if u, ok := e.Users[p.UserID]; ok {
			out.SenderIsBot = u.Bot
		}
	case *tg.PeerChannel:
		out.SenderID = MarkedChannelID(p.ChannelID)
	case *tg.PeerChat:
		out.SenderID = MarkedChatID(p.ChatID)
	}

	return out, true
}
