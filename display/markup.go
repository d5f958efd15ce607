package display

import (
	"image/color"
	"strings"
)

// span is a run of text drawn in one colour.
type span struct {
	text string
	c    color.RGBA
}

// parseMarkup splits a line using the recolour markup "#rrggbb text#".
// A '#' that does not open a valid tag is drawn literally.
func parseMarkup(line string, def color.RGBA) []span {
	var (
		out []span
		cur = def
		b   strings.Builder
		in  bool
	)
	flush := func() {
		if b.Len() > 0 {
			out = append(out, span{text: b.String(), c: cur})
			b.Reset()
		}
	}
	for i := 0; i < len(line); i++ {
		if line[i] != '#' {
			b.WriteByte(line[i])
			continue
		}
		if in {
			flush()
			cur, in = def, false
			continue
		}
		if c, ok := parseHex(line[i+1:]); ok && i+7 < len(line) && line[i+7] == ' ' {
			flush()
			cur, in = c, true
			i += 7
			continue
		}
		b.WriteByte('#')
	}
	flush()
	return out
}

func parseHex(s string) (color.RGBA, bool) {
	if len(s) < 6 {
		return color.RGBA{}, false
	}
	var v [3]uint8
	for i := 0; i < 6; i++ {
		n, ok := hexNibble(s[i])
		if !ok {
			return color.RGBA{}, false
		}
		v[i/2] = v[i/2]<<4 | n
	}
	return color.RGBA{R: v[0], G: v[1], B: v[2], A: 0xff}, true
}

func hexNibble(c byte) (uint8, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// plain strips markup.
func plain(line string) string {
	var b strings.Builder
	for _, s := range parseMarkup(line, color.RGBA{}) {
		b.WriteString(s.text)
	}
	return b.String()
}
