package model

// ConfigKey is one of the fixed runtime configuration keys.
type ConfigKey string

// Runtime configuration keys.
const (
	KeyWorkingStatus      ConfigKey = "working_status"
	KeyGroupsEnabled      ConfigKey = "groups_enabled"
	KeyChannelsEnabled    ConfigKey = "channels_enabled"
	KeyDialogsEnabled     ConfigKey = "dialogs_enabled"
	KeyIgnoreDuplicates   ConfigKey = "ignore_duplicates"
	KeyNotificationChatID ConfigKey = "notification_chat_id"
)

// Defaults holds the value every key resolves to when it was never set.
var Defaults = map[ConfigKey]string{
	KeyWorkingStatus:      "false",
	KeyGroupsEnabled:      "true",
	KeyChannelsEnabled:    "true",
	KeyDialogsEnabled:     "false",
	KeyIgnoreDuplicates:   "true",
	KeyNotificationChatID: "",
}

// ToggleKeys lists the boolean keys in display order.
var ToggleKeys = []ConfigKey{
	KeyWorkingStatus,
	KeyGroupsEnabled,
	KeyChannelsEnabled,
	KeyDialogsEnabled,
	KeyIgnoreDuplicates,
}

// IsToggle reports whether k is a boolean key.
func IsToggle(k ConfigKey) bool {
	for _, t := range ToggleKeys {
		if t == k {
			return true
		}
	}
	return false
}

// Settings is a typed snapshot of the runtime configuration.
type Settings struct {
	Working            bool
	GroupsEnabled      bool
	ChannelsEnabled    bool
	DialogsEnabled     bool
	IgnoreDuplicates   bool
	NotificationChatID string
}

// SettingsFrom builds a snapshot from raw stored values. Missing keys take
// their default; any boolean value other than "true" is false.
func SettingsFrom(raw map[ConfigKey]string) Settings {
	get := func(k ConfigKey) string {
		if v, ok := raw[k]; ok {
			return v
		}
		return Defaults[k]
	}
	return Settings{
		Working:            get(KeyWorkingStatus) == "true",
		GroupsEnabled:      get(KeyGroupsEnabled) == "true",
		ChannelsEnabled:    get(KeyChannelsEnabled) == "true",
		DialogsEnabled:     get(KeyDialogsEnabled) == "true",
		IgnoreDuplicates:   get(KeyIgnoreDuplicates) == "true",
		NotificationChatID: get(KeyNotificationChatID),
	}
}

// ChatKindEnabled reports whether messages from chats of kind k are processed.
func (s Settings) ChatKindEnabled(k ChatKind) bool {
	switch k {
	case ChatBroadcast:
		return s.ChannelsEnabled
	case ChatGroup:
		return s.GroupsEnabled
	case ChatDialog:
		return s.DialogsEnabled
	}
	return false
}

// Reason explains an admission decision.
type Reason string

// Admission reasons, in pipeline stage order.
const (
	ReasonPassed           Reason = "passed"
	ReasonDisabled         Reason = "disabled"
	ReasonSenderIsBot      Reason = "sender_is_bot"
	ReasonChatKindDisabled Reason = "chat_kind_disabled"
	ReasonEmptyMessage     Reason = "empty_message"
	ReasonBlacklisted      Reason = "blacklisted"
	ReasonNoKeywordMatch   Reason = "no_keyword_match"
	ReasonStopwordMatch    Reason = "stopword_match"
	ReasonDuplicate        Reason = "duplicate"
)
