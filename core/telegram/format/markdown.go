// Package format holds text formatting helpers for outbound messages.
package format

import "strings"

// mdEscaper covers the legacy-Markdown control characters that user-supplied
// text may contain. Names, usernames and request bodies pass through here
// before being embedded into Markdown templates.
var mdEscaper = strings.NewReplacer(
	"_", `\_`,
	"*", `\*`,
	"[", `\[`,
	"]", `\]`,
	"(", `\(`,
	")", `\)`,
)

// EscapeMarkdown escapes legacy-Markdown specials so arbitrary user text
// renders literally.
func EscapeMarkdown(text string) string {
	return mdEscaper.Replace(text)
}
