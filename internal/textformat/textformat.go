// Package textformat converts the section-sign colour codes used in
// server log lines ("§a", "§l", ...) into ANSI escape sequences, or
// strips them for plain output.
package textformat

import (
	"regexp"
	"strings"
)

// Escape introduces a format code.
const Escape = "§"

const (
	Black       = Escape + "0"
	DarkBlue    = Escape + "1"
	DarkGreen   = Escape + "2"
	DarkAqua    = Escape + "3"
	DarkRed     = Escape + "4"
	DarkPurple  = Escape + "5"
	Gold        = Escape + "6"
	Gray        = Escape + "7"
	DarkGray    = Escape + "8"
	Blue        = Escape + "9"
	Green       = Escape + "a"
	Aqua        = Escape + "b"
	Red         = Escape + "c"
	LightPurple = Escape + "d"
	Yellow      = Escape + "e"
	White       = Escape + "f"

	Obfuscated    = Escape + "k"
	Bold          = Escape + "l"
	Strikethrough = Escape + "m"
	Underline     = Escape + "n"
	Italic        = Escape + "o"
	Reset         = Escape + "r"
)

const codeChars = "0123456789abcdefklmnor"

var ansi = map[string]string{
	Bold:          "\x1b[1m",
	Obfuscated:    "",
	Italic:        "\x1b[3m",
	Underline:     "\x1b[4m",
	Strikethrough: "\x1b[9m",
	Reset:         "\x1b[m",

	Black:       "\x1b[38;5;16m",
	DarkBlue:    "\x1b[38;5;19m",
	DarkGreen:   "\x1b[38;5;34m",
	DarkAqua:    "\x1b[38;5;37m",
	DarkRed:     "\x1b[38;5;124m",
	DarkPurple:  "\x1b[38;5;127m",
	Gold:        "\x1b[38;5;214m",
	Gray:        "\x1b[38;5;145m",
	DarkGray:    "\x1b[38;5;59m",
	Blue:        "\x1b[38;5;63m",
	Green:       "\x1b[38;5;83m",
	Aqua:        "\x1b[38;5;87m",
	Red:         "\x1b[38;5;203m",
	LightPurple: "\x1b[38;5;207m",
	Yellow:      "\x1b[38;5;227m",
	White:       "\x1b[38;5;231m",
}

var (
	codeRe     = regexp.MustCompile(Escape + "[" + codeChars + "]")
	ansiRe     = regexp.MustCompile(`\x1b[\(\]\[][0-9;\[\(]+[Bm]`)
	bareResets = regexp.MustCompile(`\x1b\[m`)
)

// ToANSI replaces every format code with its ANSI sequence. Unknown
// codes are left in place.
func ToANSI(s string) string {
	if !strings.Contains(s, Escape) {
		return s
	}
	return codeRe.ReplaceAllStringFunc(s, func(code string) string {
		return ansi[code]
	})
}

// Clean removes format codes and ANSI colour sequences.
func Clean(s string) string {
	s = codeRe.ReplaceAllString(s, "")
	s = ansiRe.ReplaceAllString(s, "")
	s = bareResets.ReplaceAllString(s, "")
	return strings.ReplaceAll(s, Escape, "")
}

// Color normalises a colour field taken from a server log line. A bare
// code character such as "a" becomes "§a"; values that already carry the
// escape are returned unchanged and anything else maps to White.
func Color(field string) string {
	switch {
	case len(field) == 1 && strings.Contains(codeChars, field):
		return Escape + field
	case codeRe.MatchString(field) && strings.HasPrefix(field, Escape):
		return field
	default:
		return White
	}
}
