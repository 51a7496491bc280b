package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	// pptxSlideRe matches slide parts and captures the slide number.
	pptxSlideRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
	// apTag matches a DrawingML paragraph; <a:pPr> does not match.
	apTag = regexp.MustCompile(`(?s)<a:p(?:\s[^>]*)?>(.*?)</a:p>`)
	// atTag matches <a:t>text</a:t> with or without attributes.
	atTag = regexp.MustCompile(`<a:t(?:\s[^>]*)?>([^<]*)</a:t>`)
)

// extractPPTX returns the text of every slide in slide-number order, one
// line per paragraph.
func extractPPTX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract PPTX: not a zip: %w", err)
	}
	type slide struct {
		num  int
		name string
	}
	var slides []slide
	for _, f := range zr.File {
		m := pptxSlideRe.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{num: n, name: f.Name})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var b strings.Builder
	for _, s := range slides {
		data, err := readZipEntry(zr, s.name)
		if err != nil {
			return "", fmt.Errorf("extract PPTX: %w", err)
		}
		writeParagraphs(&b, data, apTag, atTag)
	}
	return strings.TrimSpace(b.String()), nil
}

// writeParagraphs appends one line per paragraph matched by para, built from
// the runs matched by run. Paragraphs without text are skipped.
func writeParagraphs(b *strings.Builder, xml []byte, para, run *regexp.Regexp) {
	for _, p := range para.FindAllSubmatch(xml, -1) {
		var line strings.Builder
		for _, r := range run.FindAllSubmatch(p[1], -1) {
			line.WriteString(html.UnescapeString(string(r[1])))
		}
		if text := strings.TrimSpace(line.String()); text != "" {
			b.WriteString(text)
			b.WriteByte('\n')
		}
	}
}
