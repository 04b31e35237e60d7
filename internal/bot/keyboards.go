package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"lead_bot/internal/accounts"
	"lead_bot/internal/model"
)

// Callback data prefixes. Arguments follow, separated by ":".
const (
	cbMenu        = "menu"
	cbToggle      = "toggle"
	cbWords       = "words"
	cbWordSort    = "wsort"
	cbWordDelete  = "wdel"
	cbWordCopy    = "wcopy"
	cbWordAdd     = "wadd"
	cbWordClear   = "wclear"
	cbWordClearOK = "wclearok"
	cbBlacklist   = "bl"
	cbBlSort      = "blsort"
	cbBlDelete    = "bldel"
	cbBlCopy      = "blcopy"
	cbBlAdd       = "bladd"
	cbBlClear     = "blclear"
	cbBlClearOK   = "blclearok"
	cbNotifyChat  = "notify"
	cbAccToggle   = "acctoggle"
	cbAccCurrent  = "acccur"

	menuMain     = "main"
	menuSettings = "settings"
	menuHistory  = "history"
	menuSources  = "sources"
	menuAccounts = "accounts"
	menuHelp     = "help"
)

func button(text, data string) tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardButtonData(text, data)
}

func mainKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			button("👤 Accounts", cbMenu+":"+menuAccounts),
			button("⚙️ Parser settings", cbMenu+":"+menuSettings),
		),
		tgbotapi.NewInlineKeyboardRow(
			button("📜 Lead history", cbMenu+":"+menuHistory),
			button("📰 Sources", cbMenu+":"+menuSources),
		),
		tgbotapi.NewInlineKeyboardRow(
			button("❓ Help", cbMenu+":"+menuHelp),
		),
	)
}

func backRow(to string) []tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardRow(button("⬅️ Back", cbMenu+":"+to))
}

func backKeyboard(to string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(backRow(to))
}

func settingsKeyboard(s model.Settings) tgbotapi.InlineKeyboardMarkup {
	values := toggleValues(s)
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, k := range model.ToggleKeys {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			button(onOff(values[k])+" "+toggleLabels[k], cbToggle+":"+string(k)),
		))
	}
	rows = append(rows,
		tgbotapi.NewInlineKeyboardRow(
			button("🔑 Keywords", fmt.Sprintf("%s:%s:0", cbWords, model.Keyword)),
			button("🚫 Stopwords", fmt.Sprintf("%s:%s:0", cbWords, model.Stopword)),
		),
		tgbotapi.NewInlineKeyboardRow(
			button("⛔ Blacklist", cbBlacklist+":0"),
			button("📨 Notification chat", cbNotifyChat),
		),
		backRow(menuMain),
	)
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func wordsKeyboard(kind model.WordKind, words []model.Word, page int, order model.SortOrder) tgbotapi.InlineKeyboardMarkup {
	start, end, page, pages := pageBounds(len(words), page)

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, w := range words[start:end] {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			button("❌ "+Truncate(w.Text, 30), fmt.Sprintf("%s:%s:%d:%d", cbWordDelete, kind, w.ID, page)),
		))
	}
	if nav := navRow(fmt.Sprintf("%s:%s:", cbWords, kind), page, pages); len(nav) > 0 {
		rows = append(rows, nav)
	}
	rows = append(rows,
		tgbotapi.NewInlineKeyboardRow(
			button(sortButtonLabel(order), fmt.Sprintf("%s:%s", cbWordSort, kind)),
			button("📋 Copy all", fmt.Sprintf("%s:%s", cbWordCopy, kind)),
		),
		tgbotapi.NewInlineKeyboardRow(
			button("➕ Add", fmt.Sprintf("%s:%s", cbWordAdd, kind)),
			button("🗑 Delete all", fmt.Sprintf("%s:%s", cbWordClear, kind)),
		),
		backRow(menuSettings),
	)
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func blacklistKeyboard(entries []model.BlacklistEntry, page int, order model.SortOrder) tgbotapi.InlineKeyboardMarkup {
	start, end, page, pages := pageBounds(len(entries), page)

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, e := range entries[start:end] {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			button(fmt.Sprintf("❌ %d", e.UserID), fmt.Sprintf("%s:%d:%d", cbBlDelete, e.UserID, page)),
		))
	}
	if nav := navRow(cbBlacklist+":", page, pages); len(nav) > 0 {
		rows = append(rows, nav)
	}
	rows = append(rows,
		tgbotapi.NewInlineKeyboardRow(
			button(sortButtonLabel(order), cbBlSort),
			button("📋 Copy all", cbBlCopy),
		),
		tgbotapi.NewInlineKeyboardRow(
			button("➕ Add", cbBlAdd),
			button("🗑 Delete all", cbBlClear),
		),
		backRow(menuSettings),
	)
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func navRow(prefix string, page, pages int) []tgbotapi.InlineKeyboardButton {
	var row []tgbotapi.InlineKeyboardButton
	if page > 0 {
		row = append(row, button("◀️", fmt.Sprintf("%s%d", prefix, page-1)))
	}
	if page < pages-1 {
		row = append(row, button("▶️", fmt.Sprintf("%s%d", prefix, page+1)))
	}
	return row
}

func sortButtonLabel(current model.SortOrder) string {
	if current == model.SortAlpha {
		return "🔃 Sort: newest"
	}
	return "🔃 Sort: A-Z"
}

func confirmKeyboard(yesData, backTo string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			button("Yes, delete all", yesData),
			button("Cancel", backTo),
		),
	)
}

func accountsKeyboard(accs []accounts.Account, currentID string) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, a := range accs {
		toggle := "Enable"
		if a.Enabled {
			toggle = "Disable"
		}
		row := tgbotapi.NewInlineKeyboardRow(
			button(toggle+" "+Truncate(accountLabel(a), 24), cbAccToggle+":"+a.ID),
		)
		if a.ID != currentID {
			row = append(row, button("Make current", cbAccCurrent+":"+a.ID))
		}
		rows = append(rows, row)
	}
	rows = append(rows, backRow(menuMain))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
