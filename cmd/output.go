package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"scheduled-backup/internal/display"
)

// Output format names accepted by --format
const (
	formatJSON  = "json"
	formatYAML  = "yaml"
	formatTable = "table"
)

// outputOptions holds the display flags of a reporting command
type outputOptions struct {
	format  string
	theme   string
	noColor bool
}

// addDisplayFlags registers --format, --theme and --no-color on c
func addDisplayFlags(c *cobra.Command, defaultFormat string) {
	c.Flags().String("format", defaultFormat, "output format (json, yaml, table)")
	c.Flags().String("theme", "dark", "color theme for table output (dark, light, plain)")
	c.Flags().Bool("no-color", false, "disable color output")
}

func outputOptionsFrom(cmd *cobra.Command) outputOptions {
	format, _ := cmd.Flags().GetString("format")
	theme, _ := cmd.Flags().GetString("theme")
	noColor, _ := cmd.Flags().GetBool("no-color")
	return outputOptions{format: strings.ToLower(format), theme: theme, noColor: noColor}
}

// validateOutputFlags is used as PreRunE so a bad format fails before any work is done
func validateOutputFlags(cmd *cobra.Command, args []string) error {
	return validateFormat(outputOptionsFrom(cmd).format)
}

func validateFormat(format string) error {
	switch format {
	case formatJSON, formatYAML, formatTable:
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s (must be json, yaml or table)", format)
	}
}

// write encodes value as json or yaml, or calls table for the table format
func (o outputOptions) write(w io.Writer, value interface{}, table func(io.Writer, *display.ColorSystem)) error {
	switch o.format {
	case formatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(value)
	case formatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(value); err != nil {
			return err
		}
		return encoder.Close()
	case formatTable:
		if table == nil {
			return fmt.Errorf("table output is not available here")
		}
		table(w, o.colorSystem(w))
		return nil
	default:
		return validateFormat(o.format)
	}
}

func (o outputOptions) colorSystem(w io.Writer) *display.ColorSystem {
	if o.noColor || os.Getenv("SCHEDULED_BACKUP_NO_COLOR") != "" {
		return display.NewPlainColorSystem()
	}
	return display.NewColorSystem(w, display.ThemeByName(o.theme))
}
