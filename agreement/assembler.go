package agreement

import (
	"fmt"
	"strings"
	"time"

	"signflow/document"
	"signflow/layout"
)

const (
	signatureBoxHeight = 100

	// SignatureHeading marks the placeholder box on the final page.
	SignatureHeading = "AUTHORIZED SIGNATURE"
	signatureLine    = "X ________________________________________________"
)

var titleColor = document.Color{G: 0.3, B: 0.6}

// Assembler renders agreements into unsigned documents. It renders whatever it
// is given; callers validate first.
type Assembler struct {
	newMeasurer func() layout.Measurer
	now         func() time.Time
}

// AssemblerOption customises an Assembler.
type AssemblerOption func(*Assembler)

// WithClock sets the source of the date stamp.
func WithClock(now func() time.Time) AssemblerOption {
	return func(a *Assembler) { a.now = now }
}

// WithMeasurer sets the text measurer factory. A fresh measurer is created
// per assembly.
func WithMeasurer(fn func() layout.Measurer) AssemblerOption {
	return func(a *Assembler) { a.newMeasurer = fn }
}

func NewAssembler(opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		newMeasurer: func() layout.Measurer { return layout.NewFontMeasurer() },
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble renders and encodes the agreement.
func (a *Assembler) Assemble(agr Agreement) ([]byte, error) {
	data, err := document.Marshal(a.Build(agr))
	if err != nil {
		return nil, fmt.Errorf("agreement: assemble: %w", err)
	}
	return data, nil
}

// Build lays out the agreement: title block, parties, project details, scope,
// payment terms, optional special notes and the signature placeholder.
func (a *Assembler) Build(agr Agreement) document.Document {
	e := layout.New(a.newMeasurer())
	margin := e.Margin()

	e.Line("AGREEMENT DOCUMENT", layout.Style{Size: 20, Bold: true, Color: titleColor})
	e.Line(strings.ToUpper(agr.Title), layout.Style{Size: 14, Bold: true})
	e.Space(10)
	e.Line("Date: "+a.now().Format("January 2, 2006"), layout.Body)
	e.Space(20)

	e.SectionHeader("1. PARTIES")
	e.Line("SERVICE PROVIDER (AGENCY):", layout.Style{Size: layout.BodySize, Bold: true})
	e.Line(agr.Agency.Name, layout.Body)
	e.Line("Attn: "+agr.Agency.PreparedBy, layout.Body)
	e.Line("Email: "+agr.Agency.Email, layout.Body)
	e.Line("Phone: "+agr.Agency.Phone, layout.Body)
	e.Space(10)

	cp := agr.Counterparty
	e.Line("CLIENT:", layout.Style{Size: layout.BodySize, Bold: true})
	name := cp.Name
	if cp.Company != "" {
		name += " (" + cp.Company + ")"
	}
	e.Line(name, layout.Body)
	e.Line("Address: "+joinNonEmpty(", ", cp.Address, cp.CityStateZip, cp.Country), layout.Body)
	e.Line("Email: "+cp.Email, layout.Body)
	e.Line("Phone: "+cp.Phone, layout.Body)
	e.Space(20)

	e.SectionHeader("2. PROJECT DETAILS")
	e.Field("Project Name:", agr.Project.Name)
	e.Field("Start Date:", agr.Project.StartDate.String())
	e.Field("End Date:", agr.Project.EndDate.String())
	e.Space(10)

	e.SectionHeader("3. SCOPE OF WORK")
	e.Block(agr.Project.Scope)

	e.SectionHeader("4. PAYMENT TERMS")
	e.Block(agr.Project.PaymentTerms)

	if strings.TrimSpace(agr.Project.SpecialNotes) != "" {
		e.SectionHeader("5. SPECIAL NOTES / CLAUSES")
		e.Block(agr.Project.SpecialNotes)
	}

	// The box is drawn relative to the cursor and must not straddle pages.
	e.Space(30)
	e.EnsureSpace(signatureBoxHeight)
	e.RectAt(margin, 0, e.ContentWidth(), signatureBoxHeight, document.Gray(0.8), 1)
	e.TextAt(margin+10, 20, SignatureHeading, layout.Style{Size: layout.BodySize, Bold: true, Color: document.Gray(0.5)})
	e.TextAt(margin+20, 70, signatureLine, layout.Style{Size: 12})
	e.TextAt(margin+20, 90, "Signed by: "+cp.Name, layout.Body)
	e.Space(signatureBoxHeight)

	return e.Document(agr.Title)
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, sep)
}
