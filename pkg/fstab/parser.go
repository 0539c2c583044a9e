package fstab

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kriansa/fstabctl/internal/log"
)

const (
	// fieldsPerLine is the number of whitespace-separated columns in a data line.
	fieldsPerLine = 6

	// maxLineLen is the scanner cap for a single line. The bufio default of
	// 64KiB would turn an overlong junk line into a fatal read error rather
	// than a skipped line.
	maxLineLen = 1 << 20
)

// ParseError reports a data line whose check order column could not be
// decoded as a uint16. Unlike lines with the wrong column count, which are
// skipped, a bad number aborts the whole parse.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("fstab line %d: invalid check order: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse decodes fstab-formatted text into an ordered entry list.
//
// A line is a comment when its first character is "#"; leading whitespace is
// not stripped first. Comments, blank lines, and lines that do not split
// into exactly six fields are skipped. The sixth field must parse as an
// unsigned 16-bit integer, otherwise Parse fails with a *ParseError and
// returns no entries.
func Parse(r io.Reader) ([]Entry, error) {
	var entries []Entry

	lineNum := 0
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, maxLineLen)
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != fieldsPerLine {
			if len(fields) > 0 {
				log.Debug("skipping unparseable fstab line", "line", lineNum, "fields", len(fields))
			}
			continue
		}

		checkOrder, err := strconv.ParseUint(fields[5], 10, 16)
		if err != nil {
			return nil, &ParseError{Line: lineNum, Err: err}
		}

		entries = append(entries, Entry{
			Device:     fields[0],
			MountPoint: fields[1],
			FSType:     fields[2],
			Options:    strings.Split(fields[3], ","),
			Dump:       fields[4] != "0",
			CheckOrder: uint16(checkOrder),
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read fstab: %w", err)
	}

	return entries, nil
}
