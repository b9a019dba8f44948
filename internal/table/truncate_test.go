package table

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
	"testing"

	"github.com/hyperjump/aibridge/internal/tokenizer"
)

func sampleTable() *ResultTable {
	return &ResultTable{
		Columns: []TypedColumn{{Name: "id", TypeName: TypeInt}, {Name: "name", TypeName: TypeString}},
		Rows:    [][]any{{int64(1), "alice"}, {int64(22), "bob"}},
	}
}

func wideTable(n int) *ResultTable {
	tbl := &ResultTable{Columns: []TypedColumn{
		{Name: "id", TypeName: TypeLong},
		{Name: "city", TypeName: TypeString},
		{Name: "amount", TypeName: TypeDouble},
		{Name: "day", TypeName: TypeDate},
	}}
	for i := 0; i < n; i++ {
		tbl.Rows = append(tbl.Rows, []any{
			int64(i),
			strings.Repeat("ville ", i%4+1) + fmt.Sprint(i),
			float64(i) * 1.25,
			Date{2024, 1, i%28 + 1},
		})
	}
	return tbl
}

// lineCounter treats every line as one token.
var lineCounter = tokenizer.Func(func(s string) int { return strings.Count(s, "\n") })

func TestRender_markdown(t *testing.T) {
	want := "|   | id | name  |\n" +
		"|--:|---:|:------|\n" +
		"| 0 |  1 | alice |\n" +
		"| 1 | 22 | bob   |\n"
	if got := Render(sampleTable(), Markdown, 2); got != want {
		t.Errorf("markdown:\n%s\nwant:\n%s", got, want)
	}
}

func TestRender_markdownNullsAndEscapes(t *testing.T) {
	tbl := &ResultTable{
		Columns: []TypedColumn{{Name: "v", TypeName: TypeInt}, {Name: "s", TypeName: TypeString}},
		Rows:    [][]any{{nil, "a|b"}, {int64(3), "line\nbreak"}},
	}
	got := Render(tbl, Markdown, 2)
	if !strings.Contains(got, `a\|b`) {
		t.Errorf("pipe not escaped:\n%s", got)
	}
	if !regexp.MustCompile(`(?m)^\| 0 \| +\| a\\\|b`).MatchString(got) {
		t.Errorf("null should render as an empty cell:\n%s", got)
	}
	if strings.Count(got, "\n") != 4 {
		t.Errorf("embedded newline leaked into output:\n%s", got)
	}
	// Column with nulls and ints is still numeric.
	if !strings.Contains(got, "|--:|--:|") {
		t.Errorf("expected right-aligned numeric column:\n%s", got)
	}
}

func TestRender_json(t *testing.T) {
	want := `[{"id":1,"name":"alice"},{"id":22,"name":"bob"}]`
	if got := Render(sampleTable(), JSON, 2); got != want {
		t.Errorf("json = %s, want %s", got, want)
	}
}

func TestRender_jsonTypes(t *testing.T) {
	tbl := &ResultTable{
		Columns: []TypedColumn{
			{Name: "z", TypeName: TypeString},
			{Name: "a", TypeName: TypeDate},
			{Name: "f", TypeName: TypeDouble},
			{Name: "b", TypeName: TypeBinary},
			{Name: "ok", TypeName: TypeBoolean},
		},
		Rows: [][]any{
			{nil, Date{2024, 1, 15}, math.NaN(), []byte("raw"), true},
		},
	}
	got := Render(tbl, JSON, 1)
	want := `[{"z":null,"a":"2024-01-15","f":null,"b":"raw","ok":true}]`
	if got != want {
		t.Errorf("json = %s, want %s", got, want)
	}
	var decoded []map[string]any
	if err := json.Unmarshal([]byte(got), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
}

func TestRender_headerOnly(t *testing.T) {
	if got := Render(sampleTable(), JSON, 0); got != "[]" {
		t.Errorf("json with 0 rows = %s", got)
	}
	if got := Render(sampleTable(), Markdown, 0); strings.Count(got, "\n") != 2 {
		t.Errorf("markdown with 0 rows should be header + separator:\n%s", got)
	}
}

func TestTruncate_empty(t *testing.T) {
	tr := NewTruncator(tokenizer.WordCounter{}, 10)
	empty := &ResultTable{Columns: []TypedColumn{{Name: "a"}}}
	for _, f := range []Format{Markdown, JSON} {
		if got := tr.Truncate(empty, f); got != Empty {
			t.Errorf("Truncate(empty, %s) = %q, want %q", f, got, Empty)
		}
		if got := tr.Truncate(nil, f); got != Empty {
			t.Errorf("Truncate(nil, %s) = %q, want %q", f, got, Empty)
		}
	}
}

func TestTruncate_fits(t *testing.T) {
	tr := NewTruncator(tokenizer.WordCounter{}, 1000)
	tbl := wideTable(5)
	for _, f := range []Format{Markdown, JSON} {
		got := tr.Truncate(tbl, f)
		if want := strings.TrimSpace(Render(tbl, f, tbl.Len())); got != want {
			t.Errorf("%s: fitting table changed:\n%s\nwant:\n%s", f, got, want)
		}
		if again := tr.Truncate(tbl, f); again != got {
			t.Errorf("%s: truncation not idempotent", f)
		}
	}
}

func TestTruncate_dropsTrailingRows(t *testing.T) {
	// header + separator + 3 rows = 5 lines.
	tr := NewTruncator(lineCounter, 5)
	tbl := wideTable(10)
	got := tr.Truncate(tbl, Markdown)
	if want := strings.TrimSpace(Render(tbl, Markdown, 3)); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestTruncate_cannotFitOneRow(t *testing.T) {
	tbl := wideTable(4)
	for _, budget := range []int{1, 2} {
		tr := NewTruncator(lineCounter, budget)
		if got := tr.Truncate(tbl, Markdown); got != "" {
			t.Errorf("budget %d: got %q, want empty string", budget, got)
		}
	}
}

func TestTruncate_prefixProperty(t *testing.T) {
	tbl := wideTable(40)
	counter := tokenizer.WordCounter{}
	for _, f := range []Format{Markdown, JSON} {
		fullCost := counter.Count(Render(tbl, f, tbl.Len()))
		for budget := 5; budget < fullCost; budget += 17 {
			tr := NewTruncator(counter, budget)
			got := tr.Truncate(tbl, f)
			if got == "" {
				continue
			}
			if c := counter.Count(got); c > budget {
				t.Fatalf("%s budget %d: result costs %d tokens", f, budget, c)
			}
			kept := -1
			for n := 1; n <= tbl.Len(); n++ {
				if strings.TrimSpace(Render(tbl, f, n)) == got {
					kept = n
					break
				}
			}
			if kept < 0 {
				t.Fatalf("%s budget %d: result is not a row prefix", f, budget)
			}
			if kept < tbl.Len() && counter.Count(Render(tbl, f, kept+1)) <= budget {
				t.Errorf("%s budget %d: kept %d rows but %d would fit", f, budget, kept, kept+1)
			}
		}
	}
}

func TestTruncate_defaultBudget(t *testing.T) {
	tr := NewTruncator(tokenizer.WordCounter{}, 0)
	if tr.MaxTokens() != DefaultMaxTokens {
		t.Errorf("MaxTokens = %d, want %d", tr.MaxTokens(), DefaultMaxTokens)
	}
}
