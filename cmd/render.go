package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"gamepub/internal/domain/archive"
	"gamepub/internal/domain/qcreport"
	"gamepub/internal/usecase/versions"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	passStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	failStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
)

func verdictStyle(v qcreport.Verdict) lipgloss.Style {
	switch v {
	case qcreport.VerdictPass:
		return passStyle
	case qcreport.VerdictWarning:
		return warnStyle
	default:
		return failStyle
	}
}

func checkMark(ok bool) string {
	if ok {
		return passStyle.Render("ok")
	}
	return failStyle.Render("FAILED")
}

func bulletList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString(sectionStyle.Render(title))
	b.WriteString("\n")
	for _, item := range items {
		b.WriteString("  - ")
		b.WriteString(item)
		b.WriteString("\n")
	}
}

func renderArchiveResult(name string, size int64, r archive.Result) string {
	var b strings.Builder
	status := passStyle.Render("VALID")
	if !r.Valid {
		status = failStyle.Render("INVALID")
	}
	fmt.Fprintf(&b, "%s %s %s\n", titleStyle.Render(name), dimStyle.Render("("+humanize.IBytes(uint64(size))+")"), status)
	fmt.Fprintf(&b, "entries: %d  index: %t  manifest: %t\n", r.EntryCount, r.HasIndex, r.HasManifest)
	if r.EntryFile != "" {
		fmt.Fprintf(&b, "entry file: %s\n", r.EntryFile)
	}
	if m := r.Manifest; m != nil {
		fmt.Fprintf(&b, "manifest: id=%s version=%s runtime=%s\n", m.ID, m.Version, m.Runtime)
	}
	bulletList(&b, "Errors", r.Errors)
	bulletList(&b, "Warnings", r.Warnings)
	return b.String()
}

func renderQCReport(r qcreport.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", titleStyle.Render("QC report"), verdictStyle(r.OverallResult).Render(string(r.OverallResult)))
	fmt.Fprintf(&b, "%s\n", dimStyle.Render("generated "+humanize.Time(r.GeneratedAt)))

	b.WriteString(sectionStyle.Render("Checks"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "  handshake     %s\n", checkMark(r.QAResults.Handshake.Passed))
	fmt.Fprintf(&b, "  converter     %s\n", checkMark(r.QAResults.Converter.Passed))
	fmt.Fprintf(&b, "  ios packaging %s\n", checkMark(r.QAResults.IOSPackaging.Passed))
	fmt.Fprintf(&b, "  idempotency   %s\n", checkMark(r.QAResults.Idempotency.Passed))
	fmt.Fprintf(&b, "  sdk tests     %d/%d\n", r.SDKTestResults.Passed, r.SDKTestResults.Total)

	p := r.PerformanceMetrics
	fmt.Fprintf(&b, "%s load %s ms, %s fps, %s MB\n", sectionStyle.Render("Performance"),
		humanize.FormatFloat("#,###.", p.LoadTimeMs), humanize.FormatFloat("#.#", p.FrameRate), humanize.FormatFloat("#.#", p.MemoryMB))

	bulletList(&b, "Critical issues", r.CriticalIssues)
	bulletList(&b, "Warnings", r.Warnings)
	bulletList(&b, "Recommendations", r.Recommendations)
	return b.String()
}

func renderVersion(v versions.VersionDetail) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s\n", titleStyle.Render(v.GameID+"@"+v.Version), dimStyle.Render(v.ID), sectionStyle.Render(string(v.Status)))
	if v.Metadata.Title != "" {
		fmt.Fprintf(&b, "title: %s\n", v.Metadata.Title)
	}
	if v.StoragePath != "" {
		fmt.Fprintf(&b, "archive: %s (entry %s, runtime %s)\n", v.StoragePath, v.EntryFile, v.Runtime)
	}
	fmt.Fprintf(&b, "self-qa complete: %t\n", v.SelfQAComplete)
	if v.LastCodeUpdateBy != "" {
		fmt.Fprintf(&b, "last code update: %s at %s\n", v.LastCodeUpdateBy, v.LastCodeUpdateAt)
	}
	return b.String()
}

func renderHistory(items []versions.HistoryItem) string {
	var b strings.Builder
	for _, h := range items {
		move := h.To
		if h.From != "" && h.From != h.To {
			move = h.From + " -> " + h.To
		}
		line := fmt.Sprintf("%s  %-14s %-28s %s", dimStyle.Render(h.CreatedAt), h.Action, move, h.Actor)
		if h.Note != "" {
			line += "  " + dimStyle.Render(h.Note)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
