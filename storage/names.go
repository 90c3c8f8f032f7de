package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
)

// GenerateConversationTitle generates a conversation title from the first user message
func GenerateConversationTitle(firstMessage string) string {
	// Remove newlines
	name := strings.ReplaceAll(firstMessage, "\n", " ")
	name = strings.ReplaceAll(name, "\r", " ")
	name = strings.TrimSpace(name)

	if name == "" {
		return fmt.Sprintf("Conversation %s", time.Now().Format("Jan 2, 3:04 PM"))
	}

	// Take the first 30 display columns without splitting a rune
	return runewidth.Truncate(name, 33, "...")
}
