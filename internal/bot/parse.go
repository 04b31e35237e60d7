package bot

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ParseIDArg extracts a numeric ID from a command argument string.
func ParseIDArg(args string) (int64, error) {
	s := strings.TrimSpace(args)
	if s == "" {
		return 0, fmt.Errorf("source ID is required")
	}
	id, err := strconv.ParseInt(strings.Fields(s)[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid source ID %q", s)
	}
	return id, nil
}

// SplitLines returns the trimmed non-empty lines of text.
func SplitLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// ParseUserIDs parses one sender id per line. Channels sending as
// themselves have negative ids. Any invalid line fails the whole input.
func ParseUserIDs(text string) ([]int64, error) {
	lines := SplitLines(text)
	if len(lines) == 0 {
		return nil, fmt.Errorf("no user IDs given")
	}
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		id, err := strconv.ParseInt(line, 10, 64)
		if err != nil || id == 0 {
			return nil, fmt.Errorf("invalid user ID %q", line)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ParseChatID parses a notification chat id. Negative ids are groups and
// channels.
func ParseChatID(text string) (int64, error) {
	s := strings.TrimSpace(text)
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid chat ID %q", s)
	}
	return id, nil
}

// ChunkLines joins lines with newlines into messages of at most limit bytes.
// A single line longer than limit is split.
func ChunkLines(lines []string, limit int) []string {
	var (
		chunks []string
		b      strings.Builder
	)
	flush := func() {
		if b.Len() > 0 {
			chunks = append(chunks, b.String())
			b.Reset()
		}
	}
	for _, line := range lines {
		for len(line) > limit {
			flush()
			cut := limit
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			chunks = append(chunks, line[:cut])
			line = line[cut:]
		}
		extra := len(line)
		if b.Len() > 0 {
			extra++
		}
		if b.Len()+extra > limit {
			flush()
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
	}
	flush()
	return chunks
}
