// Package render turns cqlvalue.Value and query.ResultSet into the
// text/JSON/CSV shapes the cqlite CLI prints. None of this touches core
// decode logic; it is purely a presentation layer over the public API.
package render

import (
	"encoding/base64"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cqlite/cqlite/cqlvalue"
	"github.com/cqlite/cqlite/query"
	"github.com/cqlite/cqlite/schema"
)

// Scalar renders a single cqlvalue.Value as a Go value suitable for
// json.Marshal or CSV cell text: nil for NULL, otherwise the value's
// preferred Go representation per spec.md §3's type-mapping table.
func Scalar(v cqlvalue.Value) any {
	if v.Null || v.Type == nil {
		return nil
	}
	switch v.Type.Kind {
	case schema.Boolean:
		return v.Bool
	case schema.Tinyint:
		return v.Int8
	case schema.Smallint:
		return v.Int16
	case schema.Int:
		return v.Int32
	case schema.Bigint, schema.Counter:
		return v.Int64
	case schema.Varint:
		if v.Varint == nil {
			return nil
		}
		return v.Varint.String()
	case schema.Float:
		return v.Float32
	case schema.Double:
		return v.Float64
	case schema.Decimal:
		if v.Decimal.Unscaled == nil {
			return nil
		}
		return fmt.Sprintf("%sE-%d", v.Decimal.Unscaled.String(), v.Decimal.Scale)
	case schema.Ascii, schema.Text:
		return v.Text
	case schema.Blob:
		return base64.StdEncoding.EncodeToString(v.Bytes)
	case schema.Timestamp, schema.Date:
		return v.Time.Format("2006-01-02T15:04:05.000Z07:00")
	case schema.Time:
		return v.Int64
	case schema.UUID, schema.TimeUUID:
		return v.UUID.String()
	case schema.Inet:
		return v.IP.String()
	case schema.Duration:
		return fmt.Sprintf("%dmo%dd%dns", v.Duration.Months, v.Duration.Days, v.Duration.Nanoseconds)
	case schema.List, schema.Set, schema.Tuple:
		out := make([]any, len(v.Elems))
		for i, e := range v.Elems {
			out[i] = Scalar(e)
		}
		return out
	case schema.Map:
		out := make(map[string]any, len(v.Pairs))
		for _, p := range v.Pairs {
			out[keyText(p.Key)] = Scalar(p.Value)
		}
		return out
	case schema.UDT:
		out := make(map[string]any, len(v.Flds))
		for name, f := range v.Flds {
			out[name] = Scalar(f)
		}
		return out
	default:
		return v.Text
	}
}

func keyText(k cqlvalue.Value) string {
	if s, ok := Scalar(k).(string); ok {
		return s
	}
	b, _ := json.Marshal(Scalar(k))
	return string(b)
}

// JSON writes a result set as a JSON array of row objects, one object
// keyed by column name per row, matching §6's ResultSet column list.
func JSON(w io.Writer, rs *query.ResultSet) error {
	rows := make([]map[string]any, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		obj := make(map[string]any, len(rs.Columns))
		for _, col := range rs.Columns {
			v, ok := row.Values[col]
			if !ok {
				obj[col] = nil
				continue
			}
			obj[col] = Scalar(v)
		}
		rows = append(rows, obj)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

// CSV writes a result set as a header row followed by one row per
// match, rendering every cell with CSVText.
func CSV(w io.Writer, rs *query.ResultSet) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(rs.Columns); err != nil {
		return err
	}
	for _, row := range rs.Rows {
		record := make([]string, len(rs.Columns))
		for i, col := range rs.Columns {
			v, ok := row.Values[col]
			if !ok {
				continue
			}
			record[i] = CSVText(v)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSVText renders one value as flat CSV cell text; composite types
// fall back to their JSON encoding since CSV has no native nesting.
func CSVText(v cqlvalue.Value) string {
	s := Scalar(v)
	if s == nil {
		return ""
	}
	switch t := s.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}

// Tabular writes a simple aligned-width text table, used by `read` and
// `select` when no --format flag is given.
func Tabular(w io.Writer, rs *query.ResultSet) {
	widths := make([]int, len(rs.Columns))
	for i, col := range rs.Columns {
		widths[i] = len(col)
	}
	texts := make([][]string, len(rs.Rows))
	for r, row := range rs.Rows {
		texts[r] = make([]string, len(rs.Columns))
		for i, col := range rs.Columns {
			cell := "null"
			if v, ok := row.Values[col]; ok {
				if s := CSVText(v); s != "" || !v.Null {
					cell = s
				}
			}
			texts[r][i] = cell
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}
	writeRow(w, rs.Columns, widths)
	sep := make([]string, len(rs.Columns))
	for i, wd := range widths {
		sep[i] = strings.Repeat("-", wd)
	}
	writeRow(w, sep, widths)
	for _, row := range texts {
		writeRow(w, row, widths)
	}
}

func writeRow(w io.Writer, cells []string, widths []int) {
	padded := make([]string, len(cells))
	for i, c := range cells {
		padded[i] = c + strings.Repeat(" ", widths[i]-len(c))
	}
	fmt.Fprintln(w, strings.Join(padded, "  "))
}
