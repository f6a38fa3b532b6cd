package badge

import (
	"encoding/base64"
	"fmt"
	"html"
	"math"
	"strings"
)

// Colors used for build status.
const (
	ColorPassing = "#4c1"
	ColorPartial = "#dfb317"
	ColorFailing = "#e05d44"
	ColorUnknown = "#9f9f9f"
)

// Badge is the content of a two-part badge.
type Badge struct {
	Label string
	Value string
	Color string // hex color of the value side
}

// ForBuilds summarizes build counts: all passing is green, some failures
// yellow, all failing red. No builds gives a grey "none".
func ForBuilds(passed, failed int) Badge {
	b := Badge{Label: "docker builds"}
	switch total := passed + failed; {
	case total == 0:
		b.Value, b.Color = "none", ColorUnknown
	case failed == 0:
		b.Value, b.Color = fmt.Sprintf("%d passing", passed), ColorPassing
	case passed == 0:
		b.Value, b.Color = fmt.Sprintf("%d failing", failed), ColorFailing
	default:
		b.Value, b.Color = fmt.Sprintf("%d/%d passing", passed, total), ColorPartial
	}
	return b
}

// Render produces a flat SVG with the font embedded, sized from m.
func Render(m *Metrics, b Badge) string {
	lw := int(math.Round(m.TextWidth(b.Label))) + 10
	vw := int(math.Round(m.TextWidth(b.Value))) + 10
	w := lw + vw

	label := html.EscapeString(b.Label)
	value := html.EscapeString(b.Value)
	family := html.EscapeString(fmt.Sprintf("'%s',Verdana,Geneva,sans-serif", m.family))

	var s strings.Builder
	fmt.Fprintf(&s, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="20" role="img" aria-label="%s: %s">`, w, label, value)
	fmt.Fprintf(&s, `<title>%s: %s</title>`, label, value)
	fmt.Fprintf(&s, `<defs><style type="text/css">@font-face{font-family:'%s';src:url(data:font/ttf;base64,%s) format('truetype')}</style>`,
		html.EscapeString(m.family), base64.StdEncoding.EncodeToString(m.data))
	s.WriteString(`<linearGradient id="s" x2="0" y2="100%"><stop offset="0" stop-color="#bbb" stop-opacity=".1"/><stop offset="1" stop-opacity=".1"/></linearGradient></defs>`)
	fmt.Fprintf(&s, `<clipPath id="r"><rect width="%d" height="20" rx="3" fill="#fff"/></clipPath>`, w)
	fmt.Fprintf(&s, `<g clip-path="url(#r)"><rect width="%d" height="20" fill="#555"/><rect x="%d" width="%d" height="20" fill="%s"/><rect width="%d" height="20" fill="url(#s)"/></g>`,
		lw, lw, vw, html.EscapeString(b.Color), w)
	fmt.Fprintf(&s, `<g fill="#fff" text-anchor="middle" font-family="%s" font-size="%g">`, family, m.size)
	for _, t := range []struct {
		x    int
		text string
	}{{lw / 2, label}, {lw + vw/2, value}} {
		fmt.Fprintf(&s, `<text x="%d" y="15" fill="#010101" fill-opacity=".3">%s</text><text x="%d" y="14">%s</text>`, t.x, t.text, t.x, t.text)
	}
	s.WriteString(`</g></svg>`)
	return s.String()
}
