package display

import (
	"fmt"
	"io"
	"strconv"

	"scheduled-backup/internal/backup"
)

// RunReport writes a run report as a table followed by a summary line
func RunReport(w io.Writer, report *backup.RunReport, cs *ColorSystem) {
	if cs == nil {
		cs = NewPlainColorSystem()
	}
	theme := cs.Theme()

	if len(report.Results) == 0 {
		msg := report.Message
		if msg == "" {
			msg = backup.NoSchedulesDueMessage
		}
		fmt.Fprintln(w, cs.Colorize(msg, theme.Muted))
		return
	}

	t := NewTable(cs)
	t.SetHeaders("SCHEDULE", "STATUS", "RECORDS", "STAGE", "ERROR")
	t.SetAlignment(2, AlignRight)
	t.SetColumnColor(1, func(status string) Color {
		if status == string(backup.StatusCompleted) {
			return theme.Success
		}
		return theme.Error
	})

	failed := 0
	for _, o := range report.Results {
		records := "-"
		if o.Records != nil {
			records = strconv.Itoa(*o.Records)
		}
		if o.Status == backup.StatusFailed {
			failed++
		}
		t.AddRow(o.ScheduleID, string(o.Status), records, string(o.Stage), o.Error)
	}
	t.RenderTo(w)

	summary := fmt.Sprintf("Processed %d schedule(s), %d failed", report.Processed, failed)
	clr := theme.Success
	if failed > 0 {
		clr = theme.Warning
	}
	fmt.Fprintln(w, cs.Colorize(summary, clr))
}

// Retention writes the outcome of a retention pass
func Retention(w io.Writer, result *backup.RetentionResult, cs *ColorSystem) {
	if cs == nil {
		cs = NewPlainColorSystem()
	}
	theme := cs.Theme()

	verb := "Deleted"
	if result.DryRun {
		verb = "Would delete"
	}

	if len(result.Deleted) > 0 {
		t := NewTable(cs)
		t.SetHeaders("ID", "FILE", "SIZE", "CREATED")
		t.SetAlignment(2, AlignRight)
		for _, r := range result.Deleted {
			t.AddRow(r.ID, r.FilePath, FormatBytes(r.SizeBytes), r.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
		}
		t.RenderTo(w)
	}

	fmt.Fprintln(w, cs.Sprintf(theme.Success, "%s %d backup(s), kept %d", verb, len(result.Deleted), result.Kept))
	for _, e := range result.Errors {
		fmt.Fprintln(w, cs.Colorize("error: "+e, theme.Error))
	}
}

// FormatBytes renders a byte count with a binary unit
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
