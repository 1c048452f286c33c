package storage

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/harshithgowdakt/widepart/internal/serialization"
	"github.com/harshithgowdakt/widepart/internal/types"
)

const (
	ColumnsFileName      = "columns.txt"
	CountFileName        = "count.txt"
	PrimaryIndexFileName = "primary.idx"
	UUIDFileName         = "uuid.txt"
)

// MinMaxIndexFileName returns the min/max index file of a partition column.
func MinMaxIndexFileName(column string) string {
	return "minmax_" + serialization.EscapeForFileName(column) + ".idx"
}

var (
	columnNameEscaper   = strings.NewReplacer("\\", "\\\\", "\t", "\\t", "\n", "\\n")
	columnNameUnescaper = strings.NewReplacer("\\\\", "\\", "\\t", "\t", "\\n", "\n")
)

// writeColumnsFile writes columns.txt with one "name\ttype" line per column.
// Backslashes, tabs and newlines in names are backslash-escaped.
func writeColumnsFile(w io.Writer, columns []types.NameAndType) error {
	var sb strings.Builder
	for _, c := range columns {
		columnNameEscaper.WriteString(&sb, c.Name)
		sb.WriteByte('\t')
		sb.WriteString(c.Type.String())
		sb.WriteByte('\n')
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func readColumnsFile(r io.Reader) ([]types.NameAndType, error) {
	var columns []types.NameAndType
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		name, typ, ok := strings.Cut(text, "\t")
		if !ok {
			return nil, fmt.Errorf("%s line %d: expected name and type separated by a tab", ColumnsFileName, line)
		}
		ct, err := types.ParseColumnType(typ)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", ColumnsFileName, line, err)
		}
		columns = append(columns, types.NameAndType{Name: columnNameUnescaper.Replace(name), Type: ct})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return columns, nil
}

func formatCount(rows uint64) []byte {
	return []byte(strconv.FormatUint(rows, 10) + "\n")
}

func parseCount(data []byte) (uint64, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", CountFileName, err)
	}
	return n, nil
}
