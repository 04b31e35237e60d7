// Command session logs a Telegram user account in over MTProto, writes its
// session file and registers the account for monitoring.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/joho/godotenv"

	"lead_bot/internal/accounts"
)

func main() {
	_ = godotenv.Load()

	phone := flag.String("phone", "", "account phone number in international format")
	id := flag.String("id", "", "account id (default: phone digits)")
	notify := flag.String("notify", "", "chat id for leads found by this account (default: global)")
	sessionDir := flag.String("sessions", envOrDefault("SESSION_DIR", "./data/sessions"), "session directory")
	accountsFile := flag.String("accounts", envOrDefault("ACCOUNTS_FILE", "./data/accounts.yaml"), "accounts file")
	flag.Parse()

	apiID, err := strconv.Atoi(os.Getenv("TELEGRAM_API_ID"))
	if err != nil || apiID == 0 {
		log.Fatal("TELEGRAM_API_ID must be set to a number")
	}
	apiHash := os.Getenv("TELEGRAM_API_HASH")
	if apiHash == "" {
		log.Fatal("TELEGRAM_API_HASH must be set")
	}

	in := bufio.NewReader(os.Stdin)
	if *phone == "" {
		*phone = prompt(in, "Phone number: ")
	}
	if *id == "" {
		*id = digits(*phone)
	}
	if *id == "" {
		log.Fatal("account id is required")
	}

	if err := os.MkdirAll(*sessionDir, 0o700); err != nil {
		log.Fatalf("create session directory: %v", err)
	}
	sessionFile := *id + ".session"

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := telegram.NewClient(apiID, apiHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: filepath.Join(*sessionDir, sessionFile)},
	})

	var username string
	err = client.Run(ctx, func(ctx context.Context) error {
		flow := auth.NewFlow(terminalAuth{phone: *phone, in: in}, auth.SendCodeOptions{})
		if err := client.Auth().IfNecessary(ctx, flow); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
		status, err := client.Auth().Status(ctx)
		if err != nil {
			return fmt.Errorf("auth status: %w", err)
		}
		if status.User != nil {
			username = status.User.Username
		}
		return nil
	})
	if err != nil {
		log.Fatalf("login: %v", err)
	}

	store := accounts.NewStore(*accountsFile)
	acc := accounts.Account{
		ID:           *id,
		Phone:        *phone,
		Username:     username,
		SessionFile:  sessionFile,
		NotifyChatID: *notify,
		Enabled:      true,
	}
	err = store.Add(acc)
	if errors.Is(err, accounts.ErrExists) {
		_, err = store.Update(acc.ID, func(a *accounts.Account) {
			a.Phone = acc.Phone
			a.Username = acc.Username
			a.SessionFile = acc.SessionFile
			if acc.NotifyChatID != "" {
				a.NotifyChatID = acc.NotifyChatID
			}
		})
	}
	if err != nil {
		log.Fatalf("save account: %v", err)
	}

	fmt.Printf("Account %s logged in, session saved to %s\n", acc.ID, filepath.Join(*sessionDir, sessionFile))
}

// terminalAuth asks for the login code and the 2FA password on stdin.
type terminalAuth struct {
	phone string
	in    *bufio.Reader
}

func (a terminalAuth) Phone(_ context.Context) (string, error) {
	return a.phone, nil
}

func (a terminalAuth) Password(_ context.Context) (string, error) {
	return prompt(a.in, "2FA password: "), nil
}

func (a terminalAuth) Code(_ context.Context, _ *tg.AuthSentCode) (string, error) {
	return prompt(a.in, "Login code: "), nil
}

func (terminalAuth) AcceptTermsOfService(_ context.Context, tos tg.HelpTermsOfService) error {
	return &auth.SignUpRequired{TermsOfService: tos}
}

func (terminalAuth) SignUp(_ context.Context) (auth.UserInfo, error) {
	return auth.UserInfo{}, errors.New("sign up is not supported, register the number in a Telegram app first")
}

func prompt(in *bufio.Reader, label string) string {
	fmt.Print(label)
	line, _ := in.ReadString('\n')
	return strings.TrimSpace(line)
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
