package document

// OpKind enumerates the draw operations a page can carry.
type OpKind uint8

const (
	OpText OpKind = iota + 1
	OpRect
	OpImage
)

// Color is an RGB triple with components in [0,1].
type Color struct {
	R float64 `cbor:"r,omitempty"`
	G float64 `cbor:"g,omitempty"`
	B float64 `cbor:"b,omitempty"`
}

var (
	Black = Color{}
	White = Color{R: 1, G: 1, B: 1}
)

// Gray returns a neutral color of the given intensity.
func Gray(v float64) Color { return Color{R: v, G: v, B: v} }

// Op is a single positioned draw operation. Coordinates are in points with the
// origin at the top-left corner of the page. For text, Y is the baseline.
type Op struct {
	Kind OpKind  `cbor:"k"`
	X    float64 `cbor:"x,omitempty"`
	Y    float64 `cbor:"y,omitempty"`

	// Text runs.
	Text string  `cbor:"t,omitempty"`
	Size float64 `cbor:"s,omitempty"`
	Bold bool    `cbor:"b,omitempty"`

	// Rectangles and images.
	W float64 `cbor:"w,omitempty"`
	H float64 `cbor:"h,omitempty"`

	// Color is the text color for text runs; for rectangles it is the fill
	// color when Filled is set and the stroke color otherwise.
	Color     Color   `cbor:"c"`
	Filled    bool    `cbor:"f,omitempty"`
	LineWidth float64 `cbor:"lw,omitempty"`

	// PNG holds the encoded raster for image operations.
	PNG []byte `cbor:"png,omitempty"`
}

// Page is a fixed-size canvas holding ordered draw operations.
type Page struct {
	Width  float64 `cbor:"w"`
	Height float64 `cbor:"h"`
	Ops    []Op    `cbor:"ops"`
}

// Document is an ordered page list plus descriptive metadata.
type Document struct {
	Title string `cbor:"title,omitempty"`
	Pages []Page `cbor:"pages"`
}

// Texts returns the text of every text run on the page in draw order.
func (p Page) Texts() []string {
	out := make([]string, 0, len(p.Ops))
	for _, op := range p.Ops {
		if op.Kind == OpText {
			out = append(out, op.Text)
		}
	}
	return out
}

// Append adds a page to the end of the document.
func (d *Document) Append(p Page) {
	d.Pages = append(d.Pages, p)
}

// LastPage returns the final page, or false for an empty document.
func (d Document) LastPage() (Page, bool) {
	if len(d.Pages) == 0 {
		return Page{}, false
	}
	return d.Pages[len(d.Pages)-1], true
}
