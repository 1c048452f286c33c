package serialization

import (
	"encoding/json"
	"fmt"
	"io"
)

// InfoFileName is the per-part file recording non-default serialization kinds.
const InfoFileName = "serialization.json"

// Infos maps a column name to the kind it is serialized with in one part.
// Columns that are absent use KindDefault.
type Infos map[string]Kind

// KindOf returns the serialization kind of a column.
func (in Infos) KindOf(column string) Kind {
	if in == nil {
		return KindDefault
	}
	return in[column]
}

type infosJSON struct {
	Version int              `json:"version"`
	Columns []columnInfoJSON `json:"columns"`
}

type columnInfoJSON struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// WriteInfos serializes the non-default kinds to w.
func WriteInfos(w io.Writer, in Infos, columnOrder []string) error {
	j := infosJSON{Version: 1}
	for _, name := range columnOrder {
		if k := in.KindOf(name); k != KindDefault {
			j.Columns = append(j.Columns, columnInfoJSON{Name: name, Kind: k.String()})
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(j)
}

// ReadInfos parses a serialization.json document.
func ReadInfos(r io.Reader) (Infos, error) {
	var j infosJSON
	if err := json.NewDecoder(r).Decode(&j); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", InfoFileName, err)
	}
	if j.Version != 1 {
		return nil, fmt.Errorf("unsupported %s version %d", InfoFileName, j.Version)
	}
	in := make(Infos, len(j.Columns))
	for _, c := range j.Columns {
		switch c.Kind {
		case "Default":
			in[c.Name] = KindDefault
		case "Sparse":
			in[c.Name] = KindSparse
		default:
			return nil, fmt.Errorf("unknown serialization kind %q for column %s", c.Kind, c.Name)
		}
	}
	return in, nil
}
