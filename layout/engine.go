// Package layout places text and shapes onto fixed-size pages, wrapping text to
// the content width and starting new pages when vertical space runs out.
package layout

import (
	"strings"

	"signflow/document"
)

const (
	// A4 in points.
	DefaultPageWidth  = 595
	DefaultPageHeight = 842

	DefaultMargin  = 50
	DefaultLeading = 6

	// Field values start this far right of the left margin.
	ValueColumnOffset = 120

	BodySize       = 10
	BodyLineHeight = 14
	HeaderSize     = 12
	HeaderBand     = 20
)

// Style describes how a text run is drawn.
type Style struct {
	Size  float64
	Bold  bool
	Color document.Color
}

var (
	Body  = Style{Size: BodySize}
	Label = Style{Size: BodySize, Bold: true, Color: document.Gray(0.3)}
)

// Option customises an Engine.
type Option func(*Engine)

// WithPageSize overrides the default A4 page size.
func WithPageSize(width, height float64) Option {
	return func(e *Engine) {
		e.width = width
		e.height = height
	}
}

// WithMargin overrides the uniform page margin.
func WithMargin(margin float64) Option {
	return func(e *Engine) { e.margin = margin }
}

// Engine accumulates pages and tracks the cursor. The cursor Y is the
// baseline of the next line measured from the top of the page.
type Engine struct {
	measure Measurer

	width   float64
	height  float64
	margin  float64
	leading float64

	pages []document.Page
	y     float64
}

// New returns an engine positioned at the top margin of a fresh first page.
func New(m Measurer, opts ...Option) *Engine {
	if m == nil {
		m = NewFontMeasurer()
	}
	e := &Engine{
		measure: m,
		width:   DefaultPageWidth,
		height:  DefaultPageHeight,
		margin:  DefaultMargin,
		leading: DefaultLeading,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.NewPage()
	return e
}

// ContentWidth is the horizontal space between the margins.
func (e *Engine) ContentWidth() float64 { return e.width - 2*e.margin }

// Margin returns the page margin.
func (e *Engine) Margin() float64 { return e.margin }

// Cursor returns the current baseline position.
func (e *Engine) Cursor() float64 { return e.y }

// PageCount returns the number of pages started so far.
func (e *Engine) PageCount() int { return len(e.pages) }

// Pages returns the accumulated pages.
func (e *Engine) Pages() []document.Page { return e.pages }

// Document wraps the accumulated pages in a document.
func (e *Engine) Document(title string) document.Document {
	return document.Document{Title: title, Pages: e.pages}
}

// NewPage starts a page of the engine's fixed size and resets the cursor.
func (e *Engine) NewPage() {
	e.pages = append(e.pages, document.Page{Width: e.width, Height: e.height, Ops: []document.Op{}})
	e.y = e.margin
}

// Space moves the cursor down by dy points.
func (e *Engine) Space(dy float64) { e.y += dy }

// EnsureSpace starts a new page unless h points fit between the cursor and the
// bottom margin.
func (e *Engine) EnsureSpace(h float64) {
	if e.y+h > e.height-e.margin {
		e.NewPage()
	}
}

// paginate starts a new page once the cursor has passed the bottom margin.
func (e *Engine) paginate() {
	if e.y > e.height-e.margin {
		e.NewPage()
	}
}

func (e *Engine) draw(op document.Op) {
	last := &e.pages[len(e.pages)-1]
	last.Ops = append(last.Ops, op)
}

// TextAt draws a text run at (x, e.Cursor()+dy) without moving the cursor.
func (e *Engine) TextAt(x, dy float64, text string, st Style) {
	e.draw(document.Op{
		Kind:  document.OpText,
		X:     x,
		Y:     e.y + dy,
		Text:  text,
		Size:  st.Size,
		Bold:  st.Bold,
		Color: st.Color,
	})
}

// RectAt draws a rectangle whose top edge is dy below the cursor. A zero
// lineWidth fills it with color, otherwise it is stroked.
func (e *Engine) RectAt(x, dy, w, h float64, color document.Color, lineWidth float64) {
	e.draw(document.Op{
		Kind:      document.OpRect,
		X:         x,
		Y:         e.y + dy,
		W:         w,
		H:         h,
		Color:     color,
		Filled:    lineWidth == 0,
		LineWidth: lineWidth,
	})
}

// Line draws a single line of text at the left margin and advances the cursor
// by the font size plus leading.
func (e *Engine) Line(text string, st Style) {
	e.paginate()
	e.TextAt(e.margin, 0, text, st)
	e.y += st.Size + e.leading
}

// Field draws label in the left column and wraps value into the space right of
// the value column. Pagination is checked for every wrapped line, so a long
// value may continue on the next page.
func (e *Engine) Field(label, value string) {
	if strings.TrimSpace(value) == "" {
		value = "-"
	}
	valueX := e.margin + ValueColumnOffset
	lines := Wrap(e.measure, value, e.ContentWidth()-ValueColumnOffset, Body.Size, false)
	for i, line := range lines {
		e.paginate()
		if i == 0 {
			e.TextAt(e.margin, 0, label, Label)
		}
		e.TextAt(valueX, 0, line, Body)
		e.y += BodyLineHeight
	}
	e.y += e.leading
}

// SectionHeader draws a shaded band with a bold title and advances past it.
func (e *Engine) SectionHeader(title string) {
	e.y += 10
	e.paginate()
	e.RectAt(e.margin, -(HeaderBand - 5), e.ContentWidth(), HeaderBand, document.Gray(0.9), 0)
	e.TextAt(e.margin+5, 0, title, Style{Size: HeaderSize, Bold: true})
	e.y += 30
}

// Block draws free text. Explicit line breaks start new paragraphs; an empty
// paragraph leaves a gap. Each paragraph is wrapped to the content width.
func (e *Engine) Block(text string) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	for _, paragraph := range strings.Split(text, "\n") {
		lines := Wrap(e.measure, paragraph, e.ContentWidth(), Body.Size, false)
		if len(lines) == 0 {
			e.y += 10
			continue
		}
		for _, line := range lines {
			e.paginate()
			e.TextAt(e.margin, 0, line, Body)
			e.y += BodyLineHeight
		}
	}
	e.y += 10
}
