package chat

import (
	"regexp"
	"strings"
)

// mIRC color code: \x03 with optional fg and fg,bg numbers.
var colorCode = regexp.MustCompile("\x03(\\d{1,2}(,\\d{1,2})?)?")

// StripFormatting removes mIRC color codes and the bold/underline/reverse/reset
// control characters from a message.
func StripFormatting(s string) string {
	s = colorCode.ReplaceAllString(s, "")
	return strings.Map(func(r rune) rune {
		switch r {
		case 0x02, 0x1F, 0x16, 0x0F: // bold, underline, reverse, reset
			return -1
		}
		return r
	}, s)
}
