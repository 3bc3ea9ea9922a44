package document

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/go-pdf/fpdf"
)

const (
	fontFamily = "Helvetica"
	boldStyle  = "B"
)

// RenderPDF writes doc as a portable PDF with identical page sizes and draw
// operations. The stored binary stays the source of truth.
func RenderPDF(doc Document, w io.Writer) error {
	if len(doc.Pages) == 0 {
		return fmt.Errorf("document: render: no pages")
	}

	first := doc.Pages[0]
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: first.Width, Ht: first.Height},
	})
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	if doc.Title != "" {
		pdf.SetTitle(doc.Title, true)
	}
	pdf.SetCreator("SignFlow", false)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for pi, page := range doc.Pages {
		pdf.AddPageFormat("P", fpdf.SizeType{Wd: page.Width, Ht: page.Height})
		for oi, op := range page.Ops {
			switch op.Kind {
			case OpText:
				style := ""
				if op.Bold {
					style = boldStyle
				}
				pdf.SetFont(fontFamily, style, op.Size)
				r, g, b := op.Color.rgb255()
				pdf.SetTextColor(r, g, b)
				pdf.Text(op.X, op.Y, tr(op.Text))
			case OpRect:
				r, g, b := op.Color.rgb255()
				if op.Filled {
					pdf.SetFillColor(r, g, b)
					pdf.Rect(op.X, op.Y, op.W, op.H, "F")
					continue
				}
				lw := op.LineWidth
				if lw <= 0 {
					lw = 1
				}
				pdf.SetDrawColor(r, g, b)
				pdf.SetLineWidth(lw)
				pdf.Rect(op.X, op.Y, op.W, op.H, "D")
			case OpImage:
				name := fmt.Sprintf("p%d-img%d", pi, oi)
				opts := fpdf.ImageOptions{ImageType: "PNG"}
				pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(op.PNG))
				pdf.ImageOptions(name, op.X, op.Y, op.W, op.H, false, opts, 0, "")
			default:
				return fmt.Errorf("document: render: page %d op %d: unknown kind %d", pi+1, oi+1, op.Kind)
			}
			if pdf.Err() {
				return fmt.Errorf("document: render: page %d op %d: %w", pi+1, oi+1, pdf.Error())
			}
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("document: render: %w", err)
	}
	return nil
}

func (c Color) rgb255() (int, int, int) {
	return channel(c.R), channel(c.G), channel(c.B)
}

func channel(v float64) int {
	return int(math.Round(math.Max(0, math.Min(1, v)) * 255))
}
