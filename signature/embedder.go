// Package signature appends a signature certificate page to an assembled
// document without touching the pages that were already there.
package signature

import (
	"errors"
	"fmt"
	"time"

	"signflow/document"
)

// ErrDocumentDecode is returned when the input binary cannot be parsed. It
// always wraps document.ErrMalformed as well.
var ErrDocumentDecode = errors.New("signature: cannot decode document")

const (
	CertificateWidth  = 595
	CertificateHeight = 400

	CertificateHeading = "DIGITAL SIGNATURE CERTIFICATE"
	Attestation        = "This document has been signed electronically via SignFlow."

	// Raster size limits on the certificate page, in points.
	MaxImageWidth  = 200
	MaxImageHeight = 80

	certMargin   = 50
	imageTop     = 120
	defaultScale = 0.5
)

// Artifact is a captured signature plus the facts printed beside it.
type Artifact struct {
	// Image is the raw upload in any supported raster format.
	Image      []byte
	CapturedAt time.Time
	// Signer is the identity that passed the identity gate.
	Signer     string
	DocumentID string
	SignerIP   string
}

// Embedder appends certificate pages.
type Embedder struct {
	scale    float64
	location *time.Location
}

// EmbedderOption customises an Embedder.
type EmbedderOption func(*Embedder)

// WithScale sets the points-per-pixel factor applied before clipping.
func WithScale(scale float64) EmbedderOption {
	return func(e *Embedder) {
		if scale > 0 {
			e.scale = scale
		}
	}
}

// WithLocation sets the zone the signed-at timestamp is printed in.
func WithLocation(loc *time.Location) EmbedderOption {
	return func(e *Embedder) {
		if loc != nil {
			e.location = loc
		}
	}
}

func NewEmbedder(opts ...EmbedderOption) *Embedder {
	e := &Embedder{scale: defaultScale, location: time.UTC}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Embed returns binary with one certificate page appended. The first N pages of
// the result are identical to the N pages of the input.
func (e *Embedder) Embed(binary []byte, art Artifact) ([]byte, error) {
	doc, err := document.Unmarshal(binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDocumentDecode, err)
	}

	img, _, err := Decode(art.Image)
	if err != nil {
		return nil, err
	}
	normalized := Normalize(img)
	raster, err := EncodePNG(normalized)
	if err != nil {
		return nil, err
	}

	b := normalized.Bounds()
	doc.Append(e.certificate(art, raster, b.Dx(), b.Dy()))

	out, err := document.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("signature: embed: %w", err)
	}
	return out, nil
}

func (e *Embedder) certificate(art Artifact, raster []byte, px, py int) document.Page {
	body := func(y float64, text string) document.Op {
		return document.Op{Kind: document.OpText, X: certMargin, Y: y, Text: text, Size: 12}
	}

	w, h := e.imageSize(px, py)
	ops := []document.Op{
		{Kind: document.OpText, X: certMargin, Y: 50, Text: CertificateHeading, Size: 16, Bold: true},
		body(80, "Signed by Identity: "+art.Signer),
		body(100, "Date Signed: "+art.CapturedAt.In(e.location).Format("January 2, 2006 15:04:05 MST")),
		{Kind: document.OpImage, X: certMargin, Y: imageTop, W: w, H: h, PNG: raster},
	}

	y := float64(imageTop) + h + 30
	if art.DocumentID != "" {
		ops = append(ops, document.Op{Kind: document.OpText, X: certMargin, Y: y, Text: "Document ID: " + art.DocumentID, Size: 10})
		y += 16
	}
	if art.SignerIP != "" {
		ops = append(ops, document.Op{Kind: document.OpText, X: certMargin, Y: y, Text: "Signer IP: " + art.SignerIP, Size: 10})
	}

	ops = append(ops, document.Op{
		Kind:  document.OpText,
		X:     certMargin,
		Y:     350,
		Text:  Attestation,
		Size:  10,
		Color: document.Gray(0.5),
	})

	return document.Page{Width: CertificateWidth, Height: CertificateHeight, Ops: ops}
}

// imageSize scales the raster's native pixel size and shrinks it, keeping the
// aspect ratio, until it fits MaxImageWidth x MaxImageHeight.
func (e *Embedder) imageSize(px, py int) (w, h float64) {
	w = float64(px) * e.scale
	h = float64(py) * e.scale
	if fit := min(MaxImageWidth/w, MaxImageHeight/h); fit < 1 {
		w *= fit
		h *= fit
	}
	return w, h
}
