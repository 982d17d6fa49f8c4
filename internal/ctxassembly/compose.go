package ctxassembly

import (
	"fmt"
	"strings"
	"time"

	"tzurot/internal/llm"
)

// ChannelContext carries the Discord-specific labels for the optional
// one-line context header (spec §4.3 step 7); GuildName/ChannelName are
// left empty for DMs, which also suppresses the header entirely.
type ChannelContext struct {
	GuildName    string
	ChannelName  string
	IsDM         bool
	HeaderEnabled bool
	Now          time.Time
}

// BackgroundKnowledge is an ordered, stable knowledge entry injected
// ahead of retrieved memories (spec §4.3 step 4).
type BackgroundKnowledge struct {
	Title string
	Body  string
}

// ComposeInput gathers everything compose needs so Compose itself stays
// a pure function of its inputs (deterministic given identical inputs,
// per spec §4.3's invariant, modulo the embedding model's own output).
type ComposeInput struct {
	SystemPromptBody string
	Background       []BackgroundKnowledge
	Memories         []RetrievedMemory
	History          []HistoryTurn
	CurrentUserText  string
	Channel          ChannelContext
}

// Compose builds the final message list: [system prompt + background
// knowledge + relevant memories] + history + [current user turn], per
// spec §4.3 step 4.
func Compose(in ComposeInput) []llm.Message {
	var sys strings.Builder
	sys.WriteString(in.SystemPromptBody)

	if len(in.Background) > 0 {
		sys.WriteString("\n\n## Background Knowledge\n")
		for _, b := range in.Background {
			if b.Title != "" {
				fmt.Fprintf(&sys, "\n### %s\n%s\n", b.Title, b.Body)
			} else {
				fmt.Fprintf(&sys, "\n%s\n", b.Body)
			}
		}
	}

	if len(in.Memories) > 0 {
		sys.WriteString("\n\n## Relevant Memories\n")
		for _, m := range in.Memories {
			fmt.Fprintf(&sys, "\n- [%s] %s\n", m.Memory.CreatedAt.Format(time.RFC3339), m.FullText)
		}
	}

	messages := make([]llm.Message, 0, len(in.History)*2+2)
	messages = append(messages, llm.Message{Role: "system", Content: sys.String()})
	messages = append(messages, ToMessages(in.History)...)

	userContent := in.CurrentUserText
	if header := contextHeader(in.Channel); header != "" {
		userContent = header + "\n" + userContent
	}
	messages = append(messages, llm.Message{Role: "user", Content: userContent})

	return messages
}

// contextHeader renders the optional one-line "[Discord: Server >
// #channel | ISO-timestamp]" header, suppressed for DMs and whenever the
// caller disables it per personality or channel kind (spec §4.3 step 7).
func contextHeader(c ChannelContext) string {
	if !c.HeaderEnabled || c.IsDM {
		return ""
	}
	if c.GuildName == "" || c.ChannelName == "" {
		return ""
	}
	ts := c.Now
	if ts.IsZero() {
		ts = time.Now()
	}
	return fmt.Sprintf("[Discord: %s > #%s | %s]", c.GuildName, c.ChannelName, ts.Format(time.RFC3339))
}
