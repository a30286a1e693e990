// Package docimport turns an imported document into either plain text
// (Word) or a binary payload forwarded to the model untouched (PDF).
package docimport

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

type Kind int

const (
	KindDOCX Kind = iota + 1
	KindPDF
)

const PDFMIMEType = "application/pdf"

var (
	ErrUnsupported = errors.New("unsupported document type")
	ErrParse       = errors.New("failed to parse document")
)

// Document is a payload sent to the model as-is.
type Document struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Classify picks the import path from the file name.
func Classify(name string) (Kind, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".docx":
		return KindDOCX, nil
	case ".pdf":
		return KindPDF, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupported, name)
	}
}

// PDF wraps raw PDF bytes without inspecting them.
func PDF(name string, data []byte) Document {
	return Document{Name: name, MIMEType: PDFMIMEType, Data: data}
}

// ExtractDOCX returns the plain text of a .docx file, one line per paragraph.
func ExtractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrParse, err)
	}

	var body *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			body = f
			break
		}
	}
	if body == nil {
		return "", fmt.Errorf("%w: word/document.xml missing", ErrParse)
	}

	rc, err := body.Open()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrParse, err)
	}
	defer rc.Close()

	text, err := collectText(rc)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrParse, err)
	}
	return text, nil
}

func collectText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		sb     strings.Builder
		inText bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}
