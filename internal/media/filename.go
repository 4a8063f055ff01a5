package media

import "strings"

// filenameReplacer replaces filesystem-unsafe characters with safe
// alternatives. Attachment names arrive from remote users and must never be
// able to escape the media folder or break path handling.
var filenameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SafeFilename replaces filesystem-unsafe characters in an attachment name.
// Slashes, backslashes, colons, and asterisks become dashes; other unsafe
// characters are removed. The result is trimmed of leading/trailing
// whitespace and dots, so ".." can never survive sanitization.
func SafeFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	name = strings.TrimSpace(filenameReplacer.Replace(name))
	return strings.TrimLeft(name, ".")
}
