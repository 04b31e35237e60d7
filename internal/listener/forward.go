package listener

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/gotd/td/telegram/query"
	"github.com/gotd/td/tg"
)

// errUnknownPeer is returned when the entities of an update carry no access
// hash for the source chat.
var errUnknownPeer = errors.New("source chat has no access hash")

// forwardAPI is the part of tg.Client used to forward leads.
type forwardAPI interface {
	MessagesForwardMessages(ctx context.Context, req *tg.MessagesForwardMessagesRequest) (tg.UpdatesClass, error)
}

// resolveFunc finds the input peer of a chat by its marked id.
type resolveFunc func(ctx context.Context, chatID int64) (tg.InputPeerClass, error)

// forwarder copies admitted messages into the notification chat so media
// and formatting reach the admins as posted.
type forwarder struct {
	api     forwardAPI
	resolve resolveFunc

	mu    sync.Mutex
	peers map[int64]tg.InputPeerClass
}

func newForwarder(api *tg.Client) *forwarder {
	return &forwarder{
		api:     api,
		resolve: dialogResolver(api),
		peers:   make(map[int64]tg.InputPeerClass),
	}
}

// Forward sends msg to the chat with marked id target.
func (f *forwarder) Forward(ctx context.Context, target int64, msg *tg.Message, e tg.Entities) error {
	from, ok := InputPeer(msg.PeerID, e)
	if !ok {
		return errUnknownPeer
	}
	to, err := f.peer(ctx, target)
	if err != nil {
		return err
	}

	_, err = f.api.MessagesForwardMessages(ctx, &tg.MessagesForwardMessagesRequest{
		FromPeer: from,
		ToPeer:   to,
		ID:       []int{msg.ID},
		RandomID: []int64{rand.Int64()},
	})
	if err != nil {
		return fmt.Errorf("forward message: %w", err)
	}
	return nil
}

func (f *forwarder) peer(ctx context.Context, chatID int64) (tg.InputPeerClass, error) {
	// Basic groups need no access hash.
	if chatID < 0 && chatID > -channelIDOffset {
		return &tg.InputPeerChat{ChatID: -chatID}, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if p, ok := f.peers[chatID]; ok {
		return p, nil
	}
	p, err := f.resolve(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("resolve chat %d: %w", chatID, err)
	}
	f.peers[chatID] = p
	return p, nil
}

// dialogResolver looks the chat up in the account's dialog list. The account
// must be a member of the notification chat.
func dialogResolver(api *tg.Client) resolveFunc {
	return func(ctx context.Context, chatID int64) (tg.InputPeerClass, error) {
		iter := query.GetDialogs(api).BatchSize(100).Iter()
		for iter.Next(ctx) {
			if p := iter.Value().Peer; MarkedPeerID(p) == chatID {
				return p, nil
			}
		}
		if err := iter.Err(); err != nil {
			return nil, fmt.Errorf("list dialogs: %w", err)
		}
		return nil, errors.New("chat is not in the account's dialogs")
	}
}

// InputPeer builds the input peer of a message's chat from update entities.
func InputPeer(peer tg.PeerClass, e tg.Entities) (tg.InputPeerClass, bool) {
	switch p := peer.(type) {
	case *tg.PeerUser:
		u, ok := e.Users[p.UserID]
		if !ok {
			return nil, false
		}
		return &tg.InputPeerUser{UserID: u.ID, AccessHash: u.AccessHash}, true
	case *tg.PeerChat:
		return &tg.InputPeerChat{ChatID: p.ChatID}, true
	case *tg.PeerChannel:
		c, ok := e.Channels[p.ChannelID]
		if !ok {
			return nil, false
		}
		return &tg.InputPeerChannel{ChannelID: c.ID, AccessHash: c.AccessHash}, true
	}
	return nil, false
}

// MarkedPeerID returns the Bot API chat id of an input peer, or 0.
func MarkedPeerID(p tg.InputPeerClass) int64 {
	switch p := p.(type) {
	case *tg.InputPeerUser:
		return p.UserID
	case *tg.InputPeerChat:
		return MarkedChatID(p.ChatID)
	case *tg.InputPeerChannel:
		return MarkedChannelID(p.ChannelID)
	}
	return 0
}
