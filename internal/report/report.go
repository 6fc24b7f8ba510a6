// Package report writes the final monitoring summary.
package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cptspacemanspiff/procwatch/internal/fsutil"
	"github.com/cptspacemanspiff/procwatch/internal/monitor"
)

// StdoutPath selects standard output as the report destination.
const StdoutPath = "-"

// Format writes snap in the report layout:
//
//	Memory Max: <bytes>
//	Cpu Max: <percent>
//	<memory samples, comma separated>
//	<cpu samples, comma separated>
func Format(w io.Writer, snap monitor.Snapshot) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "Memory Max: %d\n", snap.MemoryMax)
	fmt.Fprintf(bw, "Cpu Max: %s\n", formatFloat(snap.CPUMax))

	mem := make([]string, len(snap.MemoryUsage))
	for i, m := range snap.MemoryUsage {
		mem[i] = strconv.FormatUint(m, 10)
	}
	bw.WriteString(strings.Join(mem, ","))
	bw.WriteByte('\n')

	cpu := make([]string, len(snap.CPUUsage))
	for i, c := range snap.CPUUsage {
		cpu[i] = formatFloat(c)
	}
	bw.WriteString(strings.Join(cpu, ","))
	bw.WriteByte('\n')

	return bw.Flush()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// New returns the reporter for path: standard output for "-", a file otherwise.
func New(path string) monitor.Reporter {
	if path == StdoutPath {
		return &StdoutWriter{Out: os.Stdout}
	}
	return &FileWriter{Path: path}
}

// FileWriter replaces the file at Path with the report. A regular file is
// written under a temporary name and renamed into place, so readers never see
// a partial report. Symlinks and devices such as /dev/stderr are written
// through.
type FileWriter struct {
	Path string
}

// Write implements monitor.Reporter.
func (f *FileWriter) Write(snap monitor.Snapshot) error {
	if strings.TrimSpace(f.Path) == "" {
		return fmt.Errorf("report path must not be empty")
	}
	err := fsutil.ReplaceFile(f.Path, ".report-*.txt", 0o644, func(w io.Writer) error {
		return Format(w, snap)
	})
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// StdoutWriter prints the report to Out.
type StdoutWriter struct {
	Out io.Writer
}

// Write implements monitor.Reporter.
func (s *StdoutWriter) Write(snap monitor.Snapshot) error {
	return Format(s.Out, snap)
}
