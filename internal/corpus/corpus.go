// Package corpus supplies the texts to synthesize: the common simplified
// Chinese characters of GB2312 level 1, or lines read from a text file.
package corpus

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
)

// GB2312 level 1 occupies rows 0xB0-0xD7, cells 0xA1-0xFE. The tail of
// the last row is unassigned and is skipped during decoding.
const (
	firstRow  = 0xB0
	lastRow   = 0xD7
	firstCell = 0xA1
	lastCell  = 0xFE
)

// Level1Size is the number of characters in GB2312 level 1.
const Level1Size = 3755

// CommonHanzi returns the first n level-1 GB2312 characters in code point
// order of the encoding (pinyin order), one per string. n <= 0 or n larger
// than Level1Size returns the whole level.
func CommonHanzi(n int) ([]string, error) {
	if n <= 0 || n > Level1Size {
		n = Level1Size
	}

	dec := simplifiedchinese.GBK.NewDecoder()
	out := make([]string, 0, n)
	for row := firstRow; row <= lastRow; row++ {
		for cell := firstCell; cell <= lastCell; cell++ {
			b, err := dec.Bytes([]byte{byte(row), byte(cell)})
			if err != nil {
				return nil, fmt.Errorf("failed to decode GB2312 %02X%02X: %w", row, cell, err)
			}
			r, size := utf8.DecodeRune(b)
			if r == utf8.RuneError || size != len(b) || !unicode.Is(unicode.Han, r) {
				continue
			}
			out = append(out, string(r))
			if len(out) == n {
				return out, nil
			}
		}
	}
	return out, nil
}

// LoadLines reads one text per line from path. Lines are trimmed and empty
// lines are skipped. max > 0 stops after that many texts.
func LoadLines(path string, max int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open text file: %w", err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
		if max > 0 && len(lines) >= max {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read text file: %w", err)
	}
	return lines, nil
}
