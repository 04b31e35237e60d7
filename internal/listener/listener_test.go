package listener

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gotd/td/tg"

	"lead_bot/internal/accounts"
	"lead_bot/internal/model"
	"lead_bot/internal/pipeline"
)

func entities() tg.Entities {
	return tg.Entities{
		Users: map[int64]*tg.User{
			10: {ID: 10, AccessHash: 1010, FirstName: "Alice", Username: "alice"},
			11: {ID: 11, FirstName: "Helper", Bot: true},
		},
		Chats: map[int64]*tg.Chat{
			20: {ID: 20, Title: "Neighbours"},
		},
		Channels: map[int64]*tg.Channel{
			30: {ID: 30, AccessHash: 3030, Title: "Deals", Username: "deals", Broadcast: true},
			31: {ID: 31, Title: "Flea Market", Megagroup: true},
		},
	}
}

func newMessage(id int, peer tg.PeerClass, from tg.PeerClass, text string) *tg.Message {
	m := &tg.Message{ID: id, PeerID: peer, Message: text}
	if from != nil {
		m.SetFromID(from)
	}
	return m
}

func TestConvert(t *testing.T) {
	tests := []struct {
		name   string
		msg    *tg.Message
		want   pipeline.Message
		wantOK bool
	}{
		{
			name:   "private dialog without from_id",
			msg:    newMessage(1, &tg.PeerUser{UserID: 10}, nil, "hi"),
			wantOK: true,
			want: pipeline.Message{
				Text:         "hi",
				SenderID:     10,
				ChatKind:     model.ChatDialog,
				ChatTitle:    "Alice",
				ChatID:       10,
				MessageID:    1,
				ChatUsername: "alice",
			},
		},
		{
			name:   "basic group from a bot",
			msg:    newMessage(2, &tg.PeerChat{ChatID: 20}, &tg.PeerUser{UserID: 11}, "beep"),
			wantOK: true,
			want: pipeline.Message{
				Text:        "beep",
				SenderID:    11,
				SenderIsBot: true,
				ChatKind:    model.ChatGroup,
				ChatTitle:   "Neighbours",
				ChatID:      -20,
				MessageID:   2,
			},
		},
		{
			name:   "broadcast channel post",
			msg:    newMessage(3, &tg.PeerChannel{ChannelID: 30}, nil, "sale"),
			wantOK: true,
			want: pipeline.Message{
				Text:         "sale",
				SenderID:     -1000000000030,
				ChatKind:     model.ChatBroadcast,
				ChatTitle:    "Deals",
				ChatID:       -1000000000030,
				MessageID:    3,
				ChatUsername: "deals",
			},
		},
		{
			name:   "supergroup member message",
			msg:    newMessage(4, &tg.PeerChannel{ChannelID: 31}, &tg.PeerUser{UserID: 10}, "selling sofa"),
			wantOK: true,
			want: pipeline.Message{
				Text:      "selling sofa",
				SenderID:  10,
				ChatKind:  model.ChatGroup,
				ChatTitle: "Flea Market",
				ChatID:    -1000000000031,
				MessageID: 4,
			},
		},
		{
			name:   "unknown channel falls back",
			msg:    newMessage(5, &tg.PeerChannel{ChannelID: 99}, &tg.PeerUser{UserID: 77}, "x"),
			wantOK: true,
			want: pipeline.Message{
				Text:      "x",
				SenderID:  77,
				ChatKind:  model.ChatGroup,
				ChatTitle: "Unknown",
				ChatID:    -1000000000099,
				MessageID: 5,
			},
		},
		{
			name:   "outgoing skipped",
			msg:    &tg.Message{ID: 6, Out: true, PeerID: &tg.PeerUser{UserID: 10}, Message: "mine"},
			wantOK: false,
		},
		{
			name:   "nil message",
			msg:    nil,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Convert(tt.msg, entities())
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Convert() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestConvertPermalinkForm(t *testing.T) {
	got, ok := Convert(newMessage(42, &tg.PeerChannel{ChannelID: 31}, &tg.PeerUser{UserID: 10}, "x"), entities())
	if !ok {
		t.Fatal("expected ok")
	}
	link := pipeline.Permalink(got.ChatUsername, got.ChatID, got.MessageID)
	if link != "https://t.me/c/31/42" {
		t.Errorf("permalink = %q", link)
	}
}

type recordingProcessor struct {
	got []pipeline.Message
}

func (r *recordingProcessor) Process(_ context.Context, msg pipeline.Message) (pipeline.Decision, error) {
	r.got = append(r.got, msg)
	return pipeline.Decision{Reason: model.ReasonNoKeywordMatch}, nil
}

func TestHandleAppliesAccountTarget(t *testing.T) {
	proc := &recordingProcessor{}
	acc := accounts.Account{ID: "a", NotifyChatID: "-100555"}
	l := New(acc, Config{}, proc, slog.New(slog.NewTextHandler(io.Discard, nil)))

	l.handle(context.Background(), entities(), newMessage(1, &tg.PeerUser{UserID: 10}, nil, "hi"))
	l.handle(context.Background(), entities(), &tg.MessageService{ID: 2})

	if len(proc.got) != 1 {
		t.Fatalf("processed = %d, want 1", len(proc.got))
	}
	if proc.got[0].NotifyTarget != "-100555" {
		t.Errorf("NotifyTarget = %q", proc.got[0].NotifyTarget)
	}
}

func TestRunMissingSession(t *testing.T) {
	cfg := Config{APIID: 1, APIHash: "x", SessionDir: t.TempDir()}
	l := New(accounts.Account{ID: "a", SessionFile: "missing.json"}, cfg, &recordingProcessor{},
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := l.Run(context.Background()); err == nil {
		t.Fatal("expected error for missing session file")
	}
}

func TestSessionPath(t *testing.T) {
	cfg := Config{SessionDir: "/data/sessions"}
	tests := []struct {
		file string
		want string
	}{
		{file: "acc.json", want: filepath.Join("/data/sessions", "acc.json")},
		{file: "/abs/acc.json", want: "/abs/acc.json"},
	}
	for _, tt := range tests {
		if got := cfg.SessionPath(accounts.Account{SessionFile: tt.file}); got != tt.want {
			t.Errorf("SessionPath(%q) = %q, want %q", tt.file, got, tt.want)
		}
	}
}
