// Package main contains the cli implementation of the tool. It uses
// cobra for cli tool implementation; see DESIGN.md for why the command
// tree mirrors Pieczasz-smf/cmd/smf.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cqlite/cqlite/cmd/cqlite/internal/render"
	"github.com/cqlite/cqlite/cqlerr"
	"github.com/cqlite/cqlite/query"
	"github.com/cqlite/cqlite/schema"
	"github.com/cqlite/cqlite/sstable"
	"github.com/cqlite/cqlite/sstfile"
)

// exit codes, per spec.md §6.
const (
	exitUsage         = 1
	exitQueryOrSchema = 2
	exitCorruption    = 3
	exitIO            = 4
)

type readFlags struct {
	schemaFile string
	format     string
}

type selectFlags struct {
	schemaFile string
	format     string
}

type exportFlags struct {
	schemaFile string
	format     string
	outFile    string
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "cqlite",
		Short: "Read Cassandra 5 SSTables without a running cluster",
	}

	rootCmd.AddCommand(readCmd())
	rootCmd.AddCommand(selectCmd())
	rootCmd.AddCommand(infoCmd())
	rootCmd.AddCommand(schemaCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(validateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps the cqlerr taxonomy (spec.md §7) onto the CLI's exit
// codes (spec.md §6). Outside that taxonomy, an error os.IsNotExist
// recognizes maps to exitIO and anything else (flag parsing, bad
// arguments) falls through to exitUsage.
func exitCodeFor(err error) int {
	var ce *cqlerr.Error
	if errors.As(err, &ce) {
		switch ce.Kind {
		case cqlerr.Io:
			return exitIO
		case cqlerr.Corrupt, cqlerr.Truncated, cqlerr.UnknownFlag:
			return exitCorruption
		case cqlerr.SchemaMismatch, cqlerr.TypeMismatch, cqlerr.Unsupported, cqlerr.ResourceExceeded, cqlerr.Cancelled, cqlerr.UnsupportedFormat:
			return exitQueryOrSchema
		}
	}
	if os.IsNotExist(err) {
		return exitIO
	}
	return exitUsage
}

func loadSchema(path string) (*schema.Table, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema file: %w", err)
	}
	text := strings.TrimSpace(string(raw))
	if strings.HasPrefix(text, "{") {
		return schemaFromJSON(raw)
	}
	return schema.ParseCreateTable(text)
}

// jsonSchema mirrors the JSON schema input surface spec.md §6 defines:
// { keyspace, table, partition_key, clustering_key, columns, udts }.
type jsonSchema struct {
	Keyspace      string                  `json:"keyspace"`
	Table         string                  `json:"table"`
	PartitionKey  []jsonKeyColumn         `json:"partition_key"`
	ClusteringKey []jsonKeyColumn         `json:"clustering_key"`
	Columns       []jsonColumn            `json:"columns"`
	UDTs          map[string][]jsonColumn `json:"udts"`
}

type jsonKeyColumn struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Position int    `json:"position"`
	Order    string `json:"order"`
}

type jsonColumn struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Kind string `json:"kind"`
}

func schemaFromJSON(raw []byte) (*schema.Table, error) {
	var js jsonSchema
	if err := json.Unmarshal(raw, &js); err != nil {
		return nil, cqlerr.Wrap(cqlerr.SchemaMismatch, "cmd/cqlite", err, "parsing JSON schema")
	}
	reg := schema.NewRegistry()
	for name, fields := range js.UDTs {
		def := &schema.UDTDef{Keyspace: js.Keyspace, Name: name}
		for _, f := range fields {
			t, err := parseJSONType(f.Type)
			if err != nil {
				return nil, err
			}
			def.Fields = append(def.Fields, schema.Field{Name: f.Name, Type: t})
		}
		if err := reg.RegisterUDT(def); err != nil {
			return nil, err
		}
	}
	if err := reg.ResolveForwardRefs(); err != nil {
		return nil, err
	}

	table := &schema.Table{Keyspace: js.Keyspace, Name: js.Table}
	for _, pk := range js.PartitionKey {
		t, err := parseJSONType(pk.Type)
		if err != nil {
			return nil, err
		}
		table.PartitionKey = append(table.PartitionKey, schema.PartitionKeyColumn{Name: pk.Name, Type: t, Position: pk.Position})
	}
	for _, ck := range js.ClusteringKey {
		t, err := parseJSONType(ck.Type)
		if err != nil {
			return nil, err
		}
		order := schema.Asc
		if strings.EqualFold(ck.Order, "desc") {
			order = schema.Desc
		}
		table.ClusteringKey = append(table.ClusteringKey, schema.ClusteringColumn{Name: ck.Name, Type: t, Position: ck.Position, Order: order})
	}
	for _, c := range js.Columns {
		t, err := parseJSONType(c.Type)
		if err != nil {
			return nil, err
		}
		kind := schema.Regular
		if strings.EqualFold(c.Kind, "static") {
			kind = schema.Static
		}
		table.Columns = append(table.Columns, schema.Column{Name: c.Name, Type: t, Kind: kind})
	}
	reg.RegisterTable(table)
	return table, nil
}

// parseJSONType resolves a JSON schema's type string by round-tripping
// it through a throwaway CREATE TABLE statement, reusing the one CQL
// type grammar the engine already carries instead of a second parser.
func parseJSONType(typeName string) (*schema.Type, error) {
	stmt := fmt.Sprintf("CREATE TABLE t (k %s PRIMARY KEY)", typeName)
	table, err := schema.ParseCreateTable(stmt)
	if err != nil {
		return nil, cqlerr.Wrap(cqlerr.SchemaMismatch, "cmd/cqlite", err, "parsing type %q", typeName)
	}
	return table.PartitionKey[0].Type, nil
}

func openHandle(path, schemaFile string) (*sstable.Handle, error) {
	table, err := loadSchema(schemaFile)
	if err != nil {
		return nil, err
	}
	var opts []sstable.Option
	if table != nil {
		opts = append(opts, sstable.WithSchemaOverride(table))
	}
	return sstable.Open(path, opts...)
}

func readCmd() *cobra.Command {
	flags := &readFlags{}
	cmd := &cobra.Command{
		Use:   "read <path>",
		Short: "Dump every partition in an SSTable",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runRead(args[0], flags)
		},
	}
	cmd.Flags().StringVar(&flags.schemaFile, "schema", "", "CQL or JSON schema file")
	cmd.Flags().StringVarP(&flags.format, "format", "f", "table", "Output format: table, json, or csv")
	return cmd
}

func runRead(path string, flags *readFlags) error {
	h, err := openHandle(path, flags.schemaFile)
	if err != nil {
		return err
	}
	defer h.Close()

	rs, err := query.Execute(h, fmt.Sprintf("SELECT * FROM %s ALLOW FILTERING", h.Schema().FullName()))
	if err != nil {
		return err
	}
	return writeResultSet(os.Stdout, rs, flags.format)
}

func selectCmd() *cobra.Command {
	flags := &selectFlags{}
	cmd := &cobra.Command{
		Use:   "select <path> <sql>",
		Short: "Run a SELECT statement against an SSTable",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return runSelect(args[0], args[1], flags)
		},
	}
	cmd.Flags().StringVar(&flags.schemaFile, "schema", "", "CQL or JSON schema file")
	cmd.Flags().StringVarP(&flags.format, "format", "f", "table", "Output format: table, json, or csv")
	return cmd
}

func runSelect(path, sql string, flags *selectFlags) error {
	h, err := openHandle(path, flags.schemaFile)
	if err != nil {
		return err
	}
	defer h.Close()

	rs, err := query.Execute(h, sql)
	if err != nil {
		return err
	}
	return writeResultSet(os.Stdout, rs, flags.format)
}

func writeResultSet(w *os.File, rs *query.ResultSet, format string) error {
	switch strings.ToLower(format) {
	case "", "table":
		render.Tabular(w, rs)
		return nil
	case "json":
		return render.JSON(w, rs)
	case "csv":
		return render.CSV(w, rs)
	default:
		return cqlerr.New(cqlerr.Unsupported, "cmd/cqlite", "unknown format %q; use table, json, or csv", format)
	}
}

func infoCmd() *cobra.Command {
	var schemaFile string
	cmd := &cobra.Command{
		Use:   "info <path>",
		Short: "Print partition count, size, and filter/compression stats",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runInfo(args[0], schemaFile)
		},
	}
	cmd.Flags().StringVar(&schemaFile, "schema", "", "CQL or JSON schema file")
	return cmd
}

func runInfo(path, schemaFile string) error {
	h, err := openHandle(path, schemaFile)
	if err != nil {
		return err
	}
	defer h.Close()

	stats := h.Stats()
	hits, misses := h.CacheStats()
	fmt.Printf("table:            %s\n", h.Schema().FullName())
	fmt.Printf("format:           %s\n", formatName(stats.Format))
	fmt.Printf("partitions:       %d\n", stats.PartitionCount)
	fmt.Printf("rows:             %d\n", stats.RowCount)
	fmt.Printf("data size:        %s\n", stats.DataSize.String())
	fmt.Printf("compressed:       %v\n", stats.HasCompression)
	fmt.Printf("bloom filter:     %v\n", stats.HasFilter)
	fmt.Printf("cache hits/miss:  %d/%d\n", hits, misses)
	return nil
}

func formatName(f sstfile.Format) string {
	switch f {
	case sstfile.FormatBig:
		return "big (oa)"
	case sstfile.FormatBTI:
		return "bti (da)"
	default:
		return "unknown"
	}
}

func schemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Validate, infer, or describe a table schema",
	}
	cmd.AddCommand(schemaValidateCmd(), schemaInferCmd(), schemaDescribeCmd())
	return cmd
}

func schemaValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <path> --schema <file>",
		Short: "Check a schema file against an SSTable's serialization header",
		Args:  cobra.ExactArgs(1),
	}
	var schemaFile string
	cmd.Flags().StringVar(&schemaFile, "schema", "", "CQL or JSON schema file")
	cmd.RunE = func(_ *cobra.Command, args []string) error {
		if schemaFile == "" {
			return cqlerr.New(cqlerr.Unsupported, "cmd/cqlite", "schema validate requires --schema")
		}
		h, err := openHandle(args[0], schemaFile)
		if err != nil {
			return err
		}
		defer h.Close()
		fmt.Println("schema agrees with serialization header")
		return nil
	}
	return cmd
}

func schemaInferCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "infer <path>",
		Short: "Print the positional schema synthesized from the serialization header",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			h, err := openHandle(args[0], "")
			if err != nil {
				return err
			}
			defer h.Close()
			return json.NewEncoder(os.Stdout).Encode(describeTable(h.Schema()))
		},
	}
}

func schemaDescribeCmd() *cobra.Command {
	var schemaFile string
	cmd := &cobra.Command{
		Use:   "describe <path>",
		Short: "Print the resolved schema as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			h, err := openHandle(args[0], schemaFile)
			if err != nil {
				return err
			}
			defer h.Close()
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(describeTable(h.Schema()))
		},
	}
	cmd.Flags().StringVar(&schemaFile, "schema", "", "CQL or JSON schema file")
	return cmd
}

type describedColumn struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Position int    `json:"position,omitempty"`
	Order    string `json:"order,omitempty"`
	Kind     string `json:"kind,omitempty"`
}

type describedTable struct {
	Keyspace      string            `json:"keyspace"`
	Table         string            `json:"table"`
	PartitionKey  []describedColumn `json:"partition_key"`
	ClusteringKey []describedColumn `json:"clustering_key"`
	Columns       []describedColumn `json:"columns"`
}

func describeTable(t *schema.Table) describedTable {
	out := describedTable{Keyspace: t.Keyspace, Table: t.Name}
	for _, pk := range t.PartitionKey {
		out.PartitionKey = append(out.PartitionKey, describedColumn{Name: pk.Name, Type: pk.Type.String(), Position: pk.Position})
	}
	for _, ck := range t.ClusteringKey {
		order := "ASC"
		if ck.Order == schema.Desc {
			order = "DESC"
		}
		out.ClusteringKey = append(out.ClusteringKey, describedColumn{Name: ck.Name, Type: ck.Type.String(), Position: ck.Position, Order: order})
	}
	for _, c := range t.Columns {
		kind := "regular"
		if c.Kind == schema.Static {
			kind = "static"
		}
		out.Columns = append(out.Columns, describedColumn{Name: c.Name, Type: c.Type.String(), Kind: kind})
	}
	return out
}

func exportCmd() *cobra.Command {
	flags := &exportFlags{}
	cmd := &cobra.Command{
		Use:   "export <path>",
		Short: "Export every partition to json or csv",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runExport(args[0], flags)
		},
	}
	cmd.Flags().StringVar(&flags.schemaFile, "schema", "", "CQL or JSON schema file")
	cmd.Flags().StringVarP(&flags.format, "format", "f", "json", "Output format: json or csv")
	cmd.Flags().StringVarP(&flags.outFile, "output", "o", "", "Output file (default stdout)")
	return cmd
}

func runExport(path string, flags *exportFlags) error {
	h, err := openHandle(path, flags.schemaFile)
	if err != nil {
		return err
	}
	defer h.Close()

	rs, err := query.Execute(h, fmt.Sprintf("SELECT * FROM %s ALLOW FILTERING", h.Schema().FullName()))
	if err != nil {
		return err
	}

	out := os.Stdout
	if flags.outFile != "" {
		f, err := os.Create(flags.outFile)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	switch strings.ToLower(flags.format) {
	case "json":
		return render.JSON(out, rs)
	case "csv":
		return render.CSV(out, rs)
	default:
		return cqlerr.New(cqlerr.Unsupported, "cmd/cqlite", "unknown export format %q; use json or csv", flags.format)
	}
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <path>",
		Short: "Open every component and scan every partition, reporting any corruption",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runValidate(args[0])
		},
	}
}

func runValidate(path string) error {
	handles, err := sstable.OpenAll(path)
	if err != nil {
		return err
	}
	defer func() {
		for _, h := range handles {
			h.Close()
		}
	}()

	var partitions, rows int64
	for _, h := range handles {
		for p, err := range h.Scan() {
			if err != nil {
				return err
			}
			partitions++
			for _, rowErr := range p.Rows() {
				if rowErr != nil {
					return rowErr
				}
				rows++
			}
		}
	}
	fmt.Printf("ok: %d generation(s), %d partition(s), %d row(s)\n", len(handles), partitions, rows)
	return nil
}
