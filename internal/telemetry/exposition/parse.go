package exposition

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/yndnr/plonemetrics-go/internal/core/domain"
)

// Sample is one parsed sample line together with the HELP and TYPE metadata
// announced for its name before it.
type Sample struct {
	Name   string
	Labels Labels
	Value  float64
	// Raw is the value exactly as it appeared on the line.
	Raw  string
	Help string
	Kind Kind
}

// Document is a parsed exposition body.
type Document struct {
	Samples []Sample
	// Comments holds free comment lines without the leading "# ".
	Comments []string
}

const maxLineSize = 1 << 20

// Parse reads exposition text and returns its samples in order.
func Parse(r io.Reader) ([]Sample, error) {
	doc, err := ParseDocument(r)
	if err != nil {
		return nil, err
	}
	return doc.Samples, nil
}

// ParseDocument reads exposition text, keeping free comment lines.
//
// Malformed lines yield domain.ErrMalformedExposition with the line number.
func ParseDocument(r io.Reader) (*Document, error) {
	doc := &Document{}
	help := make(map[string]string)
	kinds := make(map[string]Kind)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		if strings.HasPrefix(line, "#") {
			body := strings.TrimPrefix(strings.TrimPrefix(line, "#"), " ")
			switch {
			case strings.HasPrefix(body, "HELP "):
				name, text, _ := strings.Cut(strings.TrimPrefix(body, "HELP "), " ")
				if !ValidName(name) {
					return nil, malformed(lineNo, "invalid HELP name %q", name)
				}
				help[name] = unescapeHelp(text)
			case strings.HasPrefix(body, "TYPE "):
				name, kind, _ := strings.Cut(strings.TrimPrefix(body, "TYPE "), " ")
				if !ValidName(name) {
					return nil, malformed(lineNo, "invalid TYPE name %q", name)
				}
				kinds[name] = ParseKind(strings.TrimSpace(kind))
			default:
				doc.Comments = append(doc.Comments, body)
			}
			continue
		}

		s, err := parseSample(line)
		if err != nil {
			return nil, malformed(lineNo, "%v", err)
		}
		s.Help = help[s.Name]
		s.Kind = kinds[s.Name]
		doc.Samples = append(doc.Samples, s)
	}
	if err := sc.Err(); err != nil {
		return nil, domain.ErrMalformedExposition.WithCause(err)
	}
	return doc, nil
}

func malformed(line int, format string, args ...any) error {
	return domain.ErrMalformedExposition.WithDetails(
		fmt.Sprintf("line %d: %s", line, fmt.Sprintf(format, args...)))
}

func parseSample(line string) (Sample, error) {
	var s Sample

	end := strings.IndexAny(line, "{ \t")
	if end < 0 {
		return s, fmt.Errorf("missing value")
	}
	s.Name = line[:end]
	if !ValidName(s.Name) {
		return s, fmt.Errorf("invalid metric name %q", s.Name)
	}
	rest := line[end:]

	if strings.HasPrefix(rest, "{") {
		labels, n, err := parseLabels(rest[1:])
		if err != nil {
			return s, err
		}
		s.Labels = labels
		rest = rest[1+n:]
	}

	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return s, fmt.Errorf("missing value")
	}
	if len(fields) > 2 {
		return s, fmt.Errorf("unexpected trailing data %q", strings.Join(fields[2:], " "))
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return s, fmt.Errorf("invalid value %q", fields[0])
	}
	s.Value = v
	s.Raw = fields[0]
	return s, nil
}

// parseLabels parses the label list after the opening brace and returns the
// labels plus the number of bytes consumed including the closing brace.
func parseLabels(in string) (Labels, int, error) {
	labels := Labels{}
	i := 0
	for {
		for i < len(in) && (in[i] == ' ' || in[i] == ',') {
			i++
		}
		if i >= len(in) {
			return nil, 0, fmt.Errorf("unterminated label set")
		}
		if in[i] == '}' {
			return labels, i + 1, nil
		}

		eq := strings.IndexByte(in[i:], '=')
		if eq < 0 {
			return nil, 0, fmt.Errorf("label without value")
		}
		name := strings.TrimSpace(in[i : i+eq])
		if !ValidName(name) {
			return nil, 0, fmt.Errorf("invalid label name %q", name)
		}
		i += eq + 1
		if i >= len(in) || in[i] != '"' {
			return nil, 0, fmt.Errorf("label %s: value must be quoted", name)
		}
		i++

		var val strings.Builder
		closed := false
		for i < len(in) {
			c := in[i]
			i++
			if c == '"' {
				closed = true
				break
			}
			if c == '\\' && i < len(in) {
				switch in[i] {
				case 'n':
					val.WriteByte('\n')
				case '\\', '"':
					val.WriteByte(in[i])
				default:
					val.WriteByte('\\')
					val.WriteByte(in[i])
				}
				i++
				continue
			}
			val.WriteByte(c)
		}
		if !closed {
			return nil, 0, fmt.Errorf("label %s: unterminated value", name)
		}
		labels = append(labels, Label{Name: name, Value: val.String()})
	}
}

func unescapeHelp(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case 'n':
				b.WriteByte('\n')
				i++
				continue
			case '\\':
				b.WriteByte('\\')
				i++
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
