// Package report assembles the per-port scan records into the final
// text table and JSON document.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"svcscan/internal/scan"
)

const (
	// AppName and AppRepo identify the application in reports.
	AppName = "SvcScan"
	AppRepo = "https://github.com/vandavey/SvcScan"

	columnSep = "   "

	ansiGreen = "\x1b[38;2;80;200;120m"
	ansiReset = "\x1b[0m"
)

// Input is everything the assembler needs for one report.
type Input struct {
	Target   string
	Services []*scan.ServiceInfo
	Timer    *scan.Timer
	Args     *scan.Args
}

// Write prints the scan summary followed by the text table, or the
// pretty JSON document when JSON output was requested.
func Write(w io.Writer, in Input, colorize bool) error {
	if in.Args != nil && in.Args.JSON {
		data, err := JSON(in)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "\n%s\n", data); err != nil {
			return err
		}
		return nil
	}

	_, err := fmt.Fprintf(w, "\n%s\n\n%s\n", Summary(in), Table(in, colorize))
	return err
}

// Save writes the report to the output path named by the arguments:
// the text form with a header line, or the JSON document.
func Save(path string, in Input) error {
	var data []byte
	if in.Args != nil && in.Args.JSON {
		out, err := JSON(in)
		if err != nil {
			return err
		}
		data = append(out, '\n')
	} else {
		header := fmt.Sprintf("%s (%s) scan report", AppName, AppRepo)
		text := fmt.Sprintf("%s\n\n%s\n\n%s", header, Summary(in), Table(in, false))
		data = []byte(text)
	}
	return os.WriteFile(path, data, 0o644)
}

// Summary renders the scan summary block.
func Summary(in Input) string {
	var b strings.Builder
	b.WriteString("Scan Summary\n")
	fmt.Fprintf(&b, "Duration   : %s\n", in.Timer.Elapsed().Round(time.Millisecond))
	fmt.Fprintf(&b, "Start Time : %s\n", scan.Timestamp(in.Timer.StartTime()))
	fmt.Fprintf(&b, "End Time   : %s", scan.Timestamp(in.Timer.EndTime()))

	if in.Args != nil && in.Args.OutPath != "" {
		fmt.Fprintf(&b, "\nReport     : '%s'", in.Args.OutPath)
	}
	return b.String()
}

// Table renders the padded service table preceded by the target title.
func Table(in Input, colorize bool) string {
	headers := []string{"PORT", "SERVICE", "STATE", "INFO"}
	rows := make([][]string, 0, len(in.Services))
	for _, svc := range in.Services {
		rows = append(rows, []string{
			portField(svc),
			svc.Service,
			string(svc.State),
			svc.Summary,
		})
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, field := range row {
			if len(field) > widths[i] {
				widths[i] = len(field)
			}
		}
	}

	var b strings.Builder
	title := fmt.Sprintf("Target: %s", in.Target)
	if colorize {
		title = ansiGreen + title + ansiReset
	}
	b.WriteString(title)
	b.WriteByte('\n')
	b.WriteString(strings.Repeat("-", len("Target: ")+len(in.Target)))
	b.WriteByte('\n')

	header := joinPadded(headers, widths)
	if colorize {
		header = ansiGreen + header + ansiReset
	}
	b.WriteString(header)
	b.WriteByte('\n')

	for _, row := range rows {
		b.WriteString(joinPadded(row, widths))
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func joinPadded(fields []string, widths []int) string {
	padded := make([]string, len(fields))
	for i, field := range fields {
		padded[i] = field + strings.Repeat(" ", widths[i]-len(field))
	}
	return strings.TrimRight(strings.Join(padded, columnSep), " ")
}

func portField(svc *scan.ServiceInfo) string {
	proto := svc.Proto
	if proto == "" {
		proto = "tcp"
	}
	return fmt.Sprintf("%d/%s", svc.Port, proto)
}
