package server

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strings"

	"github.com/harshithgowdakt/widepart/internal/column"
	"github.com/harshithgowdakt/widepart/internal/types"
)

// OutputFormat is the encoding of a result block.
type OutputFormat string

const (
	FormatTabSeparated OutputFormat = "TabSeparated"
	FormatJSON         OutputFormat = "JSON"
	FormatCSV          OutputFormat = "CSV"
)

// ParseFormat maps a ?format= value to an OutputFormat. Unknown values
// fall back to TabSeparated.
func ParseFormat(s string) OutputFormat {
	for _, f := range []OutputFormat{FormatJSON, FormatCSV} {
		if strings.EqualFold(s, string(f)) {
			return f
		}
	}
	return FormatTabSeparated
}

func (f OutputFormat) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatCSV:
		return "text/csv"
	}
	return "text/tab-separated-values"
}

// FormatBlock writes block to w with a header row (or meta section).
func FormatBlock(w io.Writer, block *column.Block, format OutputFormat) error {
	if format == FormatJSON {
		return formatJSON(w, block)
	}
	if format == FormatTabSeparated {
		return formatTabSeparated(w, block)
	}
	rw := csv.NewWriter(w)
	rw.Write(block.ColumnNames)
	for row := range block.NumRows() {
		rw.Write(rowStrings(block, row))
	}
	rw.Flush()
	return rw.Error()
}

// TabSeparated escapes tabs and newlines inside values instead of quoting.
var tsvEscaper = strings.NewReplacer("\\", "\\\\", "\t", "\\t", "\n", "\\n")

func formatTabSeparated(w io.Writer, block *column.Block) error {
	var sb strings.Builder
	line := func(vals []string) {
		for i, v := range vals {
			if i > 0 {
				sb.WriteByte('\t')
			}
			tsvEscaper.WriteString(&sb, v)
		}
		sb.WriteByte('\n')
	}
	line(block.ColumnNames)
	for row := range block.NumRows() {
		line(rowStrings(block, row))
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func rowStrings(block *column.Block, row int) []string {
	vals := make([]string, block.NumColumns())
	for c, col := range block.Columns {
		vals[c] = types.ValueToString(col.Value(row))
	}
	return vals
}

type jsonMeta struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type jsonResult struct {
	Meta []jsonMeta       `json:"meta"`
	Data []map[string]any `json:"data"`
	Rows int              `json:"rows"`
}

func formatJSON(w io.Writer, block *column.Block) error {
	res := jsonResult{
		Meta: make([]jsonMeta, block.NumColumns()),
		Data: make([]map[string]any, block.NumRows()),
		Rows: block.NumRows(),
	}
	for c, name := range block.ColumnNames {
		res.Meta[c] = jsonMeta{Name: name, Type: block.Columns[c].Type().String()}
	}
	for row := range res.Data {
		res.Data[row] = make(map[string]any, block.NumColumns())
		for c, name := range block.ColumnNames {
			res.Data[row][name] = block.Columns[c].Value(row)
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
