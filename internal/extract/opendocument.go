package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strings"
)

const odfContentPath = "content.xml"

var (
	// odfEmptyBlock matches self-closing paragraphs and headings.
	odfEmptyBlock = regexp.MustCompile(`<text:[ph](?:\s[^>]*)?/>`)
	// odfBlock matches a text:p or text:h element, spans included.
	odfBlock = regexp.MustCompile(`(?s)<text:(?:p|h)(?:\s[^>]*)?>(.*?)</text:(?:p|h)>`)
	// odfSpace matches the elements ODF uses for spaces, tabs and line breaks.
	odfSpace = regexp.MustCompile(`<text:(?:s|tab|line-break)(?:\s[^>]*)?/>`)
	anyTag   = regexp.MustCompile(`<[^>]+>`)
)

// extractODP covers OpenDocument presentations.
func extractODP(content []byte) (string, error) {
	return extractOpenDocument(content, "ODP")
}

// extractODS covers OpenDocument spreadsheets; each cell paragraph becomes a line.
func extractODS(content []byte) (string, error) {
	return extractOpenDocument(content, "ODS")
}

// extractOpenDocument returns the paragraphs and headings of content.xml in
// document order, one per line.
func extractOpenDocument(content []byte, kind string) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract %s: not a zip: %w", kind, err)
	}
	data, err := readZipEntry(zr, odfContentPath)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", kind, err)
	}
	if data == nil {
		return "", fmt.Errorf("extract %s: %s not found", kind, odfContentPath)
	}
	data = odfEmptyBlock.ReplaceAll(data, nil)

	var b strings.Builder
	for _, m := range odfBlock.FindAllSubmatch(data, -1) {
		inner := odfSpace.ReplaceAll(m[1], []byte(" "))
		text := strings.TrimSpace(html.UnescapeString(string(anyTag.ReplaceAll(inner, nil))))
		if text != "" {
			b.WriteString(text)
			b.WriteByte('\n')
		}
	}
	return strings.TrimSpace(b.String()), nil
}
