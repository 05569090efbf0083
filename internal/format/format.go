// Package format renders a match into the Markdown body of a notification.
package format

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ppiankov/hnpager/internal/fetch"
	"github.com/ppiankov/hnpager/internal/source"
)

// Notification is one rendered message bound for a chat.
type Notification struct {
	MatchID string
	ChatID  int64
	Text    string
}

// Format renders:
//
//	- *[<title>]*(<postURL>)
//	[source](<externalURL>) by <author>
//	<summaryOrText>
//
// The source link is left out when the page fetched was not an external link.
// Title, author and body are escaped for Telegram's Markdown parse mode.
func Format(m source.Match, page fetch.Page, summaryOrText string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "- *[%s]*(%s)\n", escapeInBold(m.Title), m.PostURL())
	if page.External {
		fmt.Fprintf(&b, "[source](%s) ", page.ResolvedURL)
	}
	fmt.Fprintf(&b, "by %s\n", escape(m.Author))
	b.WriteString(escape(summaryOrText))
	return b.String()
}

// Markdown (legacy) allows a backslash escape only outside entities. Inside
// the bold title a literal star closes the entity, is escaped, and reopens it.
var (
	escaper       = strings.NewReplacer("_", `\_`, "*", `\*`, "`", "\\`", "[", `\[`)
	boldEscaper   = strings.NewReplacer("*", `*\**`)
	boldUnescaper = strings.NewReplacer(`*\**`, "*")
	escapedRe     = regexp.MustCompile("\\\\([_*`\\[])")
)

func escape(s string) string       { return escaper.Replace(s) }
func escapeInBold(s string) string { return boldEscaper.Replace(s) }
func unescape(s string) string     { return escapedRe.ReplaceAllString(s, "$1") }

// Parsed holds the fields recovered from a formatted message.
type Parsed struct {
	Title       string
	PostURL     string
	ExternalURL string
	Author      string
	Body        string
}

var (
	headerRe = regexp.MustCompile(`^- \*\[(.*)\]\*\((\S+)\)$`)
	bylineRe = regexp.MustCompile(`^(?:\[source\]\((\S+)\) )?by (.*)$`)
)

// ErrUnrecognized is returned by Parse for text Format did not produce.
var ErrUnrecognized = errors.New("unrecognized message layout")

// Parse reverses Format.
func Parse(text string) (Parsed, error) {
	lines := strings.SplitN(text, "\n", 3)
	if len(lines) < 3 {
		return Parsed{}, fmt.Errorf("%w: want 3 sections, got %d", ErrUnrecognized, len(lines))
	}

	header := headerRe.FindStringSubmatch(lines[0])
	if header == nil {
		return Parsed{}, fmt.Errorf("%w: header %q", ErrUnrecognized, lines[0])
	}
	byline := bylineRe.FindStringSubmatch(lines[1])
	if byline == nil {
		return Parsed{}, fmt.Errorf("%w: byline %q", ErrUnrecognized, lines[1])
	}

	return Parsed{
		Title:       boldUnescaper.Replace(header[1]),
		PostURL:     header[2],
		ExternalURL: byline[1],
		Author:      unescape(byline[2]),
		Body:        unescape(lines[2]),
	}, nil
}
