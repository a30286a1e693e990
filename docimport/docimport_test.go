package docimport

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"
)

func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	if _, err := w.Write([]byte(documentXML)); err != nil {
		t.Fatalf("write entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

const sampleXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Hello</w:t></w:r><w:r><w:t xml:space="preserve"> world</w:t></w:r></w:p>
    <w:p><w:r><w:t>Col1</w:t><w:tab/><w:t>Col2</w:t><w:br/><w:t>Next line</w:t></w:r></w:p>
  </w:body>
</w:document>`

func TestExtractDOCX(t *testing.T) {
	got, err := ExtractDOCX(buildDOCX(t, sampleXML))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	want := "Hello world\nCol1\tCol2\nNext line"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExtractDOCXFailures(t *testing.T) {
	var missing bytes.Buffer
	zw := zip.NewWriter(&missing)
	zw.Create("word/other.xml")
	zw.Close()

	tests := []struct {
		name string
		data []byte
	}{
		{name: "not a zip", data: []byte("plain text")},
		{name: "no document part", data: missing.Bytes()},
		{name: "broken xml", data: buildDOCX(t, "<w:document><w:body>")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ExtractDOCX(tt.data); !errors.Is(err, ErrParse) {
				t.Errorf("expected ErrParse, got %v", err)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		want    Kind
		wantErr bool
	}{
		{name: "report.docx", want: KindDOCX},
		{name: "REPORT.DOCX", want: KindDOCX},
		{name: "paper.pdf", want: KindPDF},
		{name: "legacy.doc", wantErr: true},
		{name: "noext", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify(tt.name)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupported) {
					t.Errorf("expected ErrUnsupported, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("Classify(%q) = %v, %v", tt.name, got, err)
			}
		})
	}
}

func TestPDFForwardsBytes(t *testing.T) {
	data := []byte("%PDF-1.7 ...")
	doc := PDF("paper.pdf", data)
	if doc.MIMEType != PDFMIMEType || !bytes.Equal(doc.Data, data) {
		t.Errorf("unexpected document: %+v", doc)
	}
}
