package exposition

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/yndnr/plonemetrics-go/internal/core/domain"
)

// Kind is the metric type announced on the TYPE line.
type Kind int

const (
	// KindNone suppresses the TYPE line.
	KindNone Kind = iota
	KindGauge
	KindCounter
)

// String returns the exposition keyword of the kind.
func (k Kind) String() string {
	switch k {
	case KindGauge:
		return "gauge"
	case KindCounter:
		return "counter"
	default:
		return ""
	}
}

// ParseKind maps a TYPE keyword back to a Kind. Unknown keywords map to
// KindNone.
func ParseKind(s string) Kind {
	switch s {
	case "gauge":
		return KindGauge
	case "counter":
		return KindCounter
	default:
		return KindNone
	}
}

// Label is a single name/value pair.
type Label struct {
	Name  string
	Value string
}

// Labels is an ordered label set.
type Labels []Label

// With returns a copy of l with the pair appended.
func (l Labels) With(name, value string) Labels {
	out := make(Labels, len(l), len(l)+1)
	copy(out, l)
	return append(out, Label{Name: name, Value: value})
}

// Get returns the value of the first label called name.
func (l Labels) Get(name string) (string, bool) {
	for _, lb := range l {
		if lb.Name == name {
			return lb.Value, true
		}
	}
	return "", false
}

// Metric is one sample to render.
//
// Value may be any Go integer or float type, or a string holding a number.
type Metric struct {
	Name   string
	Labels Labels
	Value  any
	Kind   Kind
	Help   string
}

// Format renders the metric. See the package-level Format.
func (m Metric) Format() (string, error) {
	return Format(m.Name, m.Labels, m.Value, m.Kind, m.Help)
}

// Format renders one metric as exposition text: an optional HELP line, an
// optional TYPE line and exactly one sample line, each ending in "\n".
//
// An invalid metric or label name yields domain.ErrMalformedMetricName and a
// value that is not a number yields domain.ErrMalformedMetricValue.
func Format(name string, labels Labels, value any, kind Kind, help string) (string, error) {
	if !ValidName(name) {
		return "", domain.ErrMalformedMetricName.WithDetails(strconv.Quote(name))
	}
	for _, lb := range labels {
		if !ValidName(lb.Name) {
			return "", domain.ErrMalformedMetricName.WithDetails(
				fmt.Sprintf("label %q of %s", lb.Name, name))
		}
	}
	v, err := FormatValue(value)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}

	var b strings.Builder
	if help != "" {
		b.WriteString("# HELP ")
		b.WriteString(name)
		b.WriteByte(' ')
		b.WriteString(helpEscaper.Replace(help))
		b.WriteByte('\n')
	}
	if kind != KindNone {
		b.WriteString("# TYPE ")
		b.WriteString(name)
		b.WriteByte(' ')
		b.WriteString(kind.String())
		b.WriteByte('\n')
	}
	b.WriteString(name)
	b.WriteByte('{')
	for i, lb := range labels {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(lb.Name)
		b.WriteString(`="`)
		b.WriteString(labelEscaper.Replace(lb.Value))
		b.WriteByte('"')
	}
	b.WriteString("} ")
	b.WriteString(v)
	b.WriteByte('\n')
	return b.String(), nil
}

// Comment renders free text as comment lines, one "# " line per input line.
func Comment(text string) string {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return ""
	}
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		b.WriteString("# ")
		b.WriteString(strings.TrimRight(line, "\r"))
		b.WriteByte('\n')
	}
	return b.String()
}

// ValidName reports whether s matches [a-zA-Z_][a-zA-Z0-9_]*.
func ValidName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// FormatValue renders a sample value. Integers never carry a decimal point,
// integral floats are rendered like integers and special floats use the
// NaN, +Inf and -Inf spellings.
func FormatValue(value any) (string, error) {
	switch v := value.(type) {
	case int:
		return strconv.FormatInt(int64(v), 10), nil
	case int8:
		return strconv.FormatInt(int64(v), 10), nil
	case int16:
		return strconv.FormatInt(int64(v), 10), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float32:
		return formatFloat(float64(v)), nil
	case float64:
		return formatFloat(v), nil
	case string:
		s := strings.TrimSpace(v)
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			return "", domain.ErrMalformedMetricValue.WithDetails(strconv.Quote(v))
		}
		return s, nil
	default:
		return "", domain.ErrMalformedMetricValue.WithDetails(fmt.Sprintf("unsupported type %T", value))
	}
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	case f == math.Trunc(f) && math.Abs(f) < 1e15:
		return strconv.FormatFloat(f, 'f', -1, 64)
	default:
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
}

var (
	labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	helpEscaper  = strings.NewReplacer(`\`, `\\`, "\n", `\n`)
)
