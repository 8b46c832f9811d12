package ocr

import (
	"strconv"
	"strings"
)

// tesseract TSV columns
const (
	tsvLevel = iota
	tsvPage
	tsvBlock
	tsvPar
	tsvLine
	tsvWord
	tsvLeft
	tsvTop
	tsvWidth
	tsvHeight
	tsvConf
	tsvText
	tsvColumns
)

const tsvWordLevel = "5"

// parseTSV rebuilds page text from tesseract word rows and averages the word
// confidences (0..100). Rows with conf -1 carry layout only.
func parseTSV(out []byte) PageText {
	var (
		b          strings.Builder
		sum        float64
		n          int
		lastBlock  string
		lastPar    string
		lastLine   string
		lineHasTxt bool
	)
	for i, ln := range strings.Split(string(out), "\n") {
		if i == 0 || ln == "" {
			continue // header
		}
		cols := strings.Split(strings.TrimRight(ln, "\r"), "\t")
		if len(cols) < tsvColumns || cols[tsvLevel] != tsvWordLevel {
			continue
		}
		word := strings.TrimSpace(cols[tsvText])
		if word == "" {
			continue
		}
		if conf, err := strconv.ParseFloat(cols[tsvConf], 64); err == nil && conf >= 0 {
			sum += conf
			n++
		}

		block, par, line := cols[tsvBlock], cols[tsvPar], cols[tsvLine]
		switch {
		case b.Len() == 0:
		case block != lastBlock || par != lastPar:
			b.WriteString("\n\n")
			lineHasTxt = false
		case line != lastLine:
			b.WriteString("\n")
			lineHasTxt = false
		}
		if lineHasTxt {
			b.WriteByte(' ')
		}
		b.WriteString(word)
		lineHasTxt = true
		lastBlock, lastPar, lastLine = block, par, line
	}

	pt := PageText{Text: b.String()}
	if n > 0 {
		pt.Confidence = sum / float64(n)
	}
	return pt
}
