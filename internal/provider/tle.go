package provider

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/signalsfoundry/conjunction-sweep/model"
)

// ParseTLE reads element sets in NORAD text form. Both the three-line form
// (a name line, optionally prefixed "0 ", then lines 1 and 2) and the bare
// two-line form are accepted; two-line sets are named by catalog number.
// Lines that do not form a set are skipped.
func ParseTLE(r io.Reader) ([]model.TrackedObject, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read element sets: %w", err)
	}

	var objects []model.TrackedObject
	for i := 0; i < len(lines); {
		switch {
		case i+1 < len(lines) && isLine(lines[i], '1') && isLine(lines[i+1], '2'):
			objects = append(objects, newObject("", lines[i], lines[i+1]))
			i += 2
		case i+2 < len(lines) && isLine(lines[i+1], '1') && isLine(lines[i+2], '2'):
			objects = append(objects, newObject(lines[i], lines[i+1], lines[i+2]))
			i += 3
		default:
			i++
		}
	}
	return objects, nil
}

func isLine(s string, n byte) bool {
	return len(s) >= 2 && s[0] == n && s[1] == ' '
}

func newObject(name, line1, line2 string) model.TrackedObject {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, "0 ") {
		name = strings.TrimSpace(name[2:])
	}
	return model.TrackedObject{
		Designator: name,
		NoradID:    catalogNumber(line1),
		Line1:      strings.TrimSpace(line1),
		Line2:      strings.TrimSpace(line2),
	}
}

// catalogNumber reads columns 3-7 of line 1; zero when absent or in the
// alphanumeric form.
func catalogNumber(line1 string) int {
	if len(line1) < 7 {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(line1[2:7]))
	if err != nil {
		return 0
	}
	return n
}
