// Package output renders build announcements and summaries for the console
// and CI systems.
package output

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/sofmeright/dockerbuild/src/build"
	"github.com/sofmeright/dockerbuild/src/discover"
)

const ruleWidth = 80

// Severity classifies a console line.
type Severity int

const (
	SeverityInfo Severity = iota
	SeveritySuccess
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeveritySuccess:
		return "success"
	case SeverityError:
		return "error"
	default:
		return "info"
	}
}

// Printer writes severity-tagged lines. With Color off the output is plain
// text, which is what tests and log files see.
type Printer struct {
	Writer io.Writer
	Color  bool

	renderer *lipgloss.Renderer
}

// NewPrinter creates a printer writing to stdout with color auto-detection.
func NewPrinter() *Printer {
	return &Printer{
		Writer: os.Stdout,
		Color:  UseColor(),
	}
}

// Emit writes one line.
func (p *Printer) Emit(sev Severity, text string) {
	fmt.Fprintln(p.Writer, p.style(sev, text))
}

func (p *Printer) style(sev Severity, text string) string {
	if !p.Color || text == "" {
		return text
	}
	if p.renderer == nil {
		p.renderer = lipgloss.NewRenderer(p.Writer)
		p.renderer.SetColorProfile(termenv.ANSI)
	}

	switch sev {
	case SeveritySuccess:
		return p.renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("2")).Render(text)
	case SeverityError:
		return p.renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("1")).Render(text)
	}
	return text
}

// Announce prints the block describing a build before it runs.
func (p *Printer) Announce(b discover.Build, dry bool) {
	rule := strings.Repeat("*", ruleWidth)

	p.Emit(SeverityInfo, rule)
	p.Emit(SeverityInfo, "   Dockerfile | "+b.Path())
	p.Emit(SeverityInfo, "   Image name | "+b.Image)
	if b.Excluded {
		p.Emit(SeverityError, "   EXCLUDING  | Excluded by config file")
	} else {
		p.Emit(SeverityInfo, "   Command    | "+FormatCommand(b.Command))
	}
	if !dry {
		p.Emit(SeverityInfo, rule)
		p.Emit(SeverityInfo, "")
	}
}

// BuildFailed prints the banner following a failed build.
func (p *Printer) BuildFailed(r build.Result) {
	rule := "    " + strings.Repeat("*", ruleWidth)

	p.Emit(SeverityInfo, "")
	p.Emit(SeverityError, rule)
	p.Emit(SeverityError, "    BUILD FAILED: "+r.Build.Image)
	if r.Err != nil {
		p.Emit(SeverityError, "    "+r.Err.Error())
	}
	p.Emit(SeverityError, rule)
	p.Emit(SeverityInfo, "")
}

// Summary prints one entry per executed build: elapsed time for successes,
// the directory and the command to reproduce failures.
func (p *Printer) Summary(results []build.Result) {
	rule := strings.Repeat("=", ruleWidth)

	p.Emit(SeverityInfo, "")
	p.Emit(SeverityInfo, rule)

	failed := 0
	for _, r := range results {
		p.Emit(SeverityInfo, " - "+r.Build.Path())
		if r.Succeeded {
			line := "    OK | took: " + formatElapsed(r.Elapsed)
			if r.ImageID != "" {
				line += fmt.Sprintf(" | image: %s (%s)", r.ImageID, r.Size.HumanReadable())
			}
			p.Emit(SeveritySuccess, line)
			continue
		}

		failed++
		p.Emit(SeverityError, "    ERROR | You might want to go to the directory and check things out")
		p.Emit(SeverityError, "          | $> cd "+shellQuote(r.Build.Dir))
		p.Emit(SeverityError, "          | $> "+FormatCommand(r.Build.Command))
	}

	p.Emit(SeverityInfo, rule)
	total := fmt.Sprintf(" %d built, %d failed", len(results)-failed, failed)
	if failed > 0 {
		p.Emit(SeverityError, total)
	} else {
		p.Emit(SeveritySuccess, total)
	}
}

var shellSafeRe = regexp.MustCompile(`^[A-Za-z0-9_@%+=:,./-]+$`)

// FormatCommand joins argv into a line that can be pasted into a POSIX shell.
func FormatCommand(argv []string) string {
	quoted := make([]string, len(argv))
	for i, arg := range argv {
		quoted[i] = shellQuote(arg)
	}
	return strings.Join(quoted, " ")
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if shellSafeRe.MatchString(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// formatElapsed formats a duration for display.
func formatElapsed(d time.Duration) string {
	if d < time.Millisecond {
		return "<1ms"
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	mins := int(d.Minutes())
	secs := d.Seconds() - float64(mins*60)
	return fmt.Sprintf("%dm%.1fs", mins, secs)
}

func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// UseColor returns true if colored output should be used.
// Respects NO_COLOR env, TERM=dumb, and terminal detection.
func UseColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return isTerminal() || IsCI()
}
