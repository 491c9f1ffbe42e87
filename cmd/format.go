package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/rubiojr/vendorscout/pkg/cachestats"
	"github.com/rubiojr/vendorscout/pkg/locations"
	"github.com/rubiojr/vendorscout/pkg/locsync"
	"github.com/rubiojr/vendorscout/pkg/search"
	"github.com/rubiojr/vendorscout/pkg/sources"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			Background(lipgloss.Color("235")).
			Padding(0, 1).
			Margin(0, 0, 1, 0)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")).
			Margin(1, 0, 1, 0)

	resultStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1).
			Margin(0, 0, 1, 2)

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	summaryStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("32")).
			Border(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("32")).
			Padding(0, 1).
			Margin(0, 0, 1, 0)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	noDataStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true).
			Margin(1, 0)

	urlStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33"))
)

var titleCaser = cases.Title(language.English)

// formatNumber formats a number with K/M suffixes for readability
func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	} else if n < 1000000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return fmt.Sprintf("%.1fM", float64(n)/1000000)
}

// formatCategory turns "hair-makeup" into "Hair Makeup".
func formatCategory(c string) string {
	if c == "" {
		return "Unclassified"
	}
	return titleCaser.String(strings.ReplaceAll(c, "-", " "))
}

func formatResult(r sources.Result) string {
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Render(r.Title))
	if r.Rating != nil {
		fmt.Fprintf(&b, "  ★ %.1f (%s reviews)", r.Rating.Value, formatNumber(r.Rating.Count))
	}
	b.WriteString("\n")
	if r.Description != "" {
		b.WriteString(r.Description + "\n")
	}
	if r.Address != nil {
		b.WriteString(*r.Address + "\n")
	}
	if r.Phone != nil {
		b.WriteString(*r.Phone + "\n")
	}
	if r.URL != nil {
		b.WriteString(urlStyle.Render(*r.URL) + "\n")
	}
	b.WriteString(metaStyle.Render(fmt.Sprintf("%s · %s · %s", formatCategory(r.Category), r.SourceTag, r.ExternalID)))
	return resultStyle.Render(b.String())
}

// formatSearchOutput renders a search response for the terminal.
func formatSearchOutput(req search.Request, resp *search.Response) string {
	var out strings.Builder

	out.WriteString(titleStyle.Render(fmt.Sprintf("%s in %s", req.Keyword, req.Location)))
	out.WriteString("\n")
	out.WriteString(metaStyle.Render(fmt.Sprintf("category: %s · location code %d (%s) · %dms",
		formatCategory(resp.Category), resp.LocationCode, resp.MatchedLevel, resp.ElapsedMs)))
	out.WriteString("\n")

	if resp.Total == 0 {
		out.WriteString(noDataStyle.Render("No vendors found."))
		out.WriteString("\n")
	}

	tag := ""
	for _, r := range resp.Results {
		if r.SourceTag != tag {
			tag = r.SourceTag
			out.WriteString(headerStyle.Render(tag))
			out.WriteString("\n")
		}
		out.WriteString(formatResult(r))
		out.WriteString("\n")
	}

	var parts []string
	for _, s := range resp.PerSource {
		if s.Error != "" {
			parts = append(parts, errorStyle.Render(fmt.Sprintf("%s: failed (%s)", s.Name, s.Error)))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %d", s.Name, s.Count))
	}
	out.WriteString(summaryStyle.Render(fmt.Sprintf("%d results · %s", resp.Total, strings.Join(parts, " · "))))
	out.WriteString("\n")
	return out.String()
}

func formatCacheStats(st cachestats.CacheStats, taxonomy int, freshness locations.Freshness) string {
	var out strings.Builder
	out.WriteString(titleStyle.Render("vendorscout statistics"))
	out.WriteString("\n")

	out.WriteString(headerStyle.Render("Location taxonomy"))
	out.WriteString("\n")
	fmt.Fprintf(&out, "Stored locations: %s\n", formatNumber(taxonomy))
	fmt.Fprintf(&out, "Freshness:        %s\n", freshness)

	out.WriteString(headerStyle.Render("Search calls"))
	out.WriteString("\n")
	fmt.Fprintf(&out, "Recorded searches:   %s\n", formatNumber(st.TotalEntries))
	fmt.Fprintf(&out, "Expired:             %s\n", formatNumber(st.ExpiredEntries))
	fmt.Fprintf(&out, "Total API cost:      $%.4f\n", st.TotalAPICost)
	fmt.Fprintf(&out, "Avg results/search:  %.1f\n", st.AvgResultCount)
	fmt.Fprintf(&out, "Cache hit potential: %.1f%%\n", st.CacheHitPotential)
	return out.String()
}

func formatSyncResult(res *locsync.Result) string {
	var out strings.Builder
	out.WriteString(summaryStyle.Render(res.Message()))
	out.WriteString("\n")
	if res.Skipped {
		return out.String()
	}
	fmt.Fprintf(&out, "Received:   %s\n", formatNumber(res.Received))
	fmt.Fprintf(&out, "Kept:       %s\n", formatNumber(res.Filtered))
	fmt.Fprintf(&out, "Processed:  %s\n", formatNumber(res.Processed))
	fmt.Fprintf(&out, "Errors:     %d\n", res.Errors)
	fmt.Fprintf(&out, "Backfilled: %d state codes\n", res.Backfilled)
	fmt.Fprintf(&out, "Elapsed:    %dms\n", res.ElapsedMs)
	for _, e := range res.BatchErrors {
		out.WriteString(errorStyle.Render("  " + e))
		out.WriteString("\n")
	}
	return out.String()
}

func isTerminal() bool {
	fileInfo, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// displayWithPager pipes content through $PAGER, less or more.
func displayWithPager(content string) error {
	pagerCmd := os.Getenv("PAGER")
	if pagerCmd == "" {
		for _, pager := range []string{"less", "more"} {
			if _, err := exec.LookPath(pager); err == nil {
				pagerCmd = pager
				break
			}
		}
	}

	if pagerCmd == "" {
		fmt.Print(content)
		return nil
	}

	args := []string{}
	if strings.Contains(pagerCmd, "less") {
		args = []string{"-R", "-S", "-F", "-X"}
	}

	cmd := exec.Command(pagerCmd, args...)
	cmd.Stdin = strings.NewReader(content)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
