package layout

import (
	"strings"

	"github.com/go-pdf/fpdf"
)

// Measurer reports the rendered width of a string in points.
type Measurer interface {
	Width(text string, size float64, bold bool) float64
}

// FontMeasurer measures text with the Helvetica core font metrics used by the
// PDF renderer. It is not safe for concurrent use; create one per assembly.
type FontMeasurer struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

// NewFontMeasurer returns a Helvetica measurer working in points.
func NewFontMeasurer() *FontMeasurer {
	pdf := fpdf.New("P", "pt", "A4", "")
	return &FontMeasurer{
		pdf: pdf,
		tr:  pdf.UnicodeTranslatorFromDescriptor(""),
	}
}

func (m *FontMeasurer) Width(text string, size float64, bold bool) float64 {
	style := ""
	if bold {
		style = "B"
	}
	m.pdf.SetFont("Helvetica", style, size)
	return m.pdf.GetStringWidth(m.tr(text))
}

// FixedMeasurer assigns every rune the same advance, expressed as a fraction of
// the font size. Useful wherever exact metrics do not matter.
type FixedMeasurer struct {
	Advance float64
}

func (m FixedMeasurer) Width(text string, size float64, _ bool) float64 {
	adv := m.Advance
	if adv <= 0 {
		adv = 0.5
	}
	return float64(len([]rune(text))) * adv * size
}

// Wrap breaks text into lines no wider than width using greedy word packing.
// A word that is wider than width on its own is placed alone on a line and is
// not split. Whitespace-only input yields no lines.
func Wrap(m Measurer, text string, width, size float64, bold bool) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	lines := make([]string, 0, 4)
	current := words[0]
	for _, word := range words[1:] {
		candidate := current + " " + word
		if m.Width(candidate, size, bold) < width {
			current = candidate
			continue
		}
		lines = append(lines, current)
		current = word
	}
	return append(lines, current)
}
