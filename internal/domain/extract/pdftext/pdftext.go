// Package pdftext turns PDF bytes into page-marked plain text. Each page is
// prefixed with a literal "<<<PAGE n>>>" sentinel line (1-based) so the
// scanners downstream can attribute rows to pages.
package pdftext

import (
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// Extract renders every page of the document to text with page sentinels.
func Extract(pdf []byte) (string, error) {
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()
	return pagesText(doc), nil
}

// ExtractFile is Extract for an on-disk path, used by the CLI.
func ExtractFile(path string) (string, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()
	return pagesText(doc), nil
}

// pagesText concatenates page texts behind their sentinels. A page that fails
// to render is skipped; its sentinel is still emitted so numbering stays
// aligned.
func pagesText(doc *fitz.Document) string {
	var b strings.Builder
	for i := 0; i < doc.NumPage(); i++ {
		fmt.Fprintf(&b, "\n<<<PAGE %d>>>\n", i+1)
		text, err := doc.Text(i)
		if err != nil {
			continue
		}
		b.WriteString(text)
	}
	return b.String()
}
