package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/formflow/internal/cli/output"
	"github.com/marmos91/formflow/pkg/multipart"
)

var (
	inspectBoundary string
	inspectFormat   string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect FILE",
	Short: "Inspect a multipart capture file",
	Long: `Decode a raw multipart/form-data capture and list its fields.

The file must contain a multipart body (for example, an HTTP request body
saved with curl --trace or tcpdump) and the boundary token must be supplied
with --boundary, exactly as it appears in the Content-Type header.

Examples:
  # List fields as a table
  formflow inspect capture.bin --boundary "----WebKitFormBoundaryX3IqzKZ1"

  # JSON output
  formflow inspect capture.bin --boundary mybound -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&inspectBoundary, "boundary", "", "Multipart boundary token (required)")
	inspectCmd.Flags().StringVarP(&inspectFormat, "output", "o", "table", "Output format: table or json")
	_ = inspectCmd.MarkFlagRequired("boundary")
}

// inspectedField is the JSON shape of one decoded field.
type inspectedField struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Filename    string `json:"filename,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(inspectFormat)
	if err != nil {
		return err
	}

	boundary, err := multipart.NewBoundary(inspectBoundary)
	if err != nil {
		return err
	}

	file, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open capture file: %w", err)
	}
	defer func() { _ = file.Close() }()

	form, err := multipart.ReadForm(context.Background(), boundary, file)
	if err != nil {
		return fmt.Errorf("failed to decode multipart body: %w", err)
	}

	fields := make([]inspectedField, 0, form.Len())
	for _, field := range form.Fields() {
		content, err := field.Bytes(context.Background())
		if err != nil {
			return fmt.Errorf("failed to read field %q: %w", field.Name(), err)
		}
		kind := "value"
		if field.Kind() == multipart.KindStream {
			kind = "stream"
		}
		fields = append(fields, inspectedField{
			Name:        field.Name(),
			Kind:        kind,
			Filename:    field.Filename(),
			ContentType: field.ContentType(),
			Size:        int64(len(content)),
		})
	}

	printer := output.NewPrinter(os.Stdout, format, true)

	if format == output.FormatJSON {
		return printer.Print(fields)
	}

	table := output.NewTableData("Name", "Kind", "Filename", "Content-Type", "Size")
	for _, f := range fields {
		table.AddRow(f.Name, f.Kind, f.Filename, f.ContentType, fmt.Sprintf("%d", f.Size))
	}
	if err := printer.Print(table); err != nil {
		return err
	}
	printer.Printf("\n%d field(s)\n", len(fields))
	return nil
}
