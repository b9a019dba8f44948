package table

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
)

// Format selects how a table is serialized.
type Format int

const (
	// Markdown is a pipe table with a leading row-index column.
	Markdown Format = iota
	// JSON is an array of records keyed by column name.
	JSON
)

func (f Format) String() string {
	if f == JSON {
		return "json"
	}
	return "markdown"
}

// Render serializes the first n rows of t in the given format.
func Render(t *ResultTable, format Format, n int) string {
	head := t.Head(n)
	if format == JSON {
		return renderJSON(head)
	}
	return renderMarkdown(head)
}

type alignment int

const (
	alignLeft alignment = iota
	alignRight
)

func renderMarkdown(t *ResultTable) string {
	ncol := len(t.Columns) + 1
	header := make([]string, ncol)
	for i, c := range t.Columns {
		header[i+1] = cellText(c.Name)
	}
	cells := make([][]string, len(t.Rows))
	for r, row := range t.Rows {
		line := make([]string, ncol)
		line[0] = strconv.Itoa(r)
		for c, v := range row {
			line[c+1] = formatCell(v)
		}
		cells[r] = line
	}

	aligns := make([]alignment, ncol)
	aligns[0] = alignRight
	for c := range t.Columns {
		aligns[c+1] = columnAlignment(t.Rows, c)
	}

	widths := make([]int, ncol)
	for c := range header {
		widths[c] = runewidth.StringWidth(header[c])
	}
	for _, line := range cells {
		for c, s := range line {
			if w := runewidth.StringWidth(s); w > widths[c] {
				widths[c] = w
			}
		}
	}

	var b strings.Builder
	writeRow(&b, header, widths, aligns)
	b.WriteByte('|')
	for c, w := range widths {
		if aligns[c] == alignRight {
			b.WriteString(strings.Repeat("-", w+1))
			b.WriteByte(':')
		} else {
			b.WriteByte(':')
			b.WriteString(strings.Repeat("-", w+1))
		}
		b.WriteByte('|')
	}
	b.WriteByte('\n')
	for _, line := range cells {
		writeRow(&b, line, widths, aligns)
	}
	return b.String()
}

func writeRow(b *strings.Builder, cells []string, widths []int, aligns []alignment) {
	b.WriteByte('|')
	for c, s := range cells {
		b.WriteByte(' ')
		if aligns[c] == alignRight {
			b.WriteString(runewidth.FillLeft(s, widths[c]))
		} else {
			b.WriteString(runewidth.FillRight(s, widths[c]))
		}
		b.WriteString(" |")
	}
	b.WriteByte('\n')
}

// columnAlignment right-aligns columns whose non-null values are all numeric.
func columnAlignment(rows [][]any, c int) alignment {
	seen := false
	for _, row := range rows {
		switch row[c].(type) {
		case nil:
		case int64, float64:
			seen = true
		default:
			return alignLeft
		}
	}
	if seen {
		return alignRight
	}
	return alignLeft
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case Date:
		return x.String()
	case []byte:
		return cellText(string(x))
	case string:
		return cellText(x)
	default:
		return ""
	}
}

var cellEscaper = strings.NewReplacer("|", `\|`, "\r\n", " ", "\n", " ", "\r", " ")

// cellText keeps a value on one line and inside its cell.
func cellText(s string) string {
	return cellEscaper.Replace(s)
}

func renderJSON(t *ResultTable) string {
	var b strings.Builder
	b.WriteByte('[')
	for r, row := range t.Rows {
		if r > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('{')
		for c, col := range t.Columns {
			if c > 0 {
				b.WriteByte(',')
			}
			writeJSONString(&b, col.Name)
			b.WriteByte(':')
			writeJSONValue(&b, row[c])
		}
		b.WriteByte('}')
	}
	b.WriteByte(']')
	return b.String()
}

func writeJSONValue(b *strings.Builder, v any) {
	switch x := v.(type) {
	case nil:
		b.WriteString("null")
	case int64:
		b.WriteString(strconv.FormatInt(x, 10))
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			b.WriteString("null")
			return
		}
		b.WriteString(strconv.FormatFloat(x, 'f', -1, 64))
	case bool:
		b.WriteString(strconv.FormatBool(x))
	case Date:
		writeJSONString(b, x.String())
	case []byte:
		writeJSONString(b, string(x))
	case string:
		writeJSONString(b, x)
	default:
		b.WriteString("null")
	}
}

func writeJSONString(b *strings.Builder, s string) {
	// Marshalling a string cannot fail.
	out, _ := json.Marshal(s)
	b.Write(out)
}
