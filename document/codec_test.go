package document

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/ledongthuc/pdf"
)

func sampleDocument() Document {
	return Document{
		Title: "Consulting Agreement",
		Pages: []Page{
			{
				Width:  595,
				Height: 842,
				Ops: []Op{
					{Kind: OpRect, X: 50, Y: 85, W: 495, H: 20, Color: Gray(0.9), Filled: true},
					{Kind: OpText, X: 50, Y: 50, Text: "AGREEMENT DOCUMENT", Size: 20, Bold: true, Color: Color{G: 0.3, B: 0.6}},
					{Kind: OpRect, X: 50, Y: 400, W: 495, H: 100, Color: Gray(0.8), LineWidth: 1},
				},
			},
			{
				Width:  595,
				Height: 842,
				Ops: []Op{
					{Kind: OpText, X: 50, Y: 50, Text: "Signed by: Jane Client", Size: 10},
				},
			},
		},
	}
}

func TestMarshalUnmarshal_PreservesPages(t *testing.T) {
	doc := sampleDocument()

	data, err := Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.HasPrefix(data, magic) {
		t.Fatalf("expected magic header, got %q", data[:6])
	}

	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(got, doc) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, doc)
	}
}

func TestMarshal_Deterministic(t *testing.T) {
	a, err := Marshal(sampleDocument())
	if err != nil {
		t.Fatalf("marshal a: %v", err)
	}
	b, err := Marshal(sampleDocument())
	if err != nil {
		t.Fatalf("marshal b: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("expected identical encodings for identical documents")
	}
}

func TestUnmarshal_RejectsMalformedInput(t *testing.T) {
	valid, err := Marshal(sampleDocument())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	cases := map[string][]byte{
		"empty":        nil,
		"pdf header":   []byte("%PDF-1.7\n"),
		"truncated":    valid[:len(valid)/2],
		"garbage body": append(append([]byte{}, magic...), 0xde, 0xad, 0xbe, 0xef),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Unmarshal(data); !errors.Is(err, ErrMalformed) {
				t.Fatalf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestPageCount(t *testing.T) {
	data, err := Marshal(sampleDocument())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	n, err := PageCount(data)
	if err != nil {
		t.Fatalf("page count: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 pages, got %d", n)
	}
}

func TestRenderPDF_PageCountMatches(t *testing.T) {
	doc := sampleDocument()
	doc.Pages = append(doc.Pages, Page{
		Width:  595,
		Height: 400,
		Ops: []Op{
			{Kind: OpText, X: 50, Y: 50, Text: "DIGITAL SIGNATURE CERTIFICATE", Size: 16, Bold: true},
		},
	})

	var buf bytes.Buffer
	if err := RenderPDF(doc, &buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("expected PDF header")
	}

	r, err := pdf.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("read rendered pdf: %v", err)
	}
	if r.NumPage() != len(doc.Pages) {
		t.Fatalf("expected %d pages, got %d", len(doc.Pages), r.NumPage())
	}
}

func TestRenderPDF_EmptyDocument(t *testing.T) {
	if err := RenderPDF(Document{}, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error rendering an empty document")
	}
}
