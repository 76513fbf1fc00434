package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/stats"
)

// render writes v as indented JSON with --output json, else calls text.
func (a *app) render(cmd *cobra.Command, v any, text func(w io.Writer) error) error {
	out := cmd.OutOrStdout()
	if a.jsonOutput() {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return text(out)
}

func table(w io.Writer, header string, rows func(tw *tabwriter.Writer)) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	rows(tw)
	return tw.Flush()
}

// formatWeight prints kg with at most two decimals and no trailing zeros.
func formatWeight(kg float64) string {
	return strconv.FormatFloat(math.Round(kg*100)/100, 'f', -1, 64)
}

func formatDate(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04")
}

// writeHistory prints sets as a table. %PR is the set weight as a percentage
// of the exercise's personal record 1RM.
func writeHistory(w io.Writer, sets []models.WorkoutSet, prs map[string]models.PersonalRecord) error {
	if len(sets) == 0 {
		_, err := fmt.Fprintln(w, "no sets logged")
		return err
	}
	return table(w, "DATE\tEXERCISE\tBODY PART\tWEIGHT\tREPS\t1RM\t%PR\tSYNCED", func(tw *tabwriter.Writer) {
		for _, s := range sets {
			pct := "-"
			if pr, ok := prs[s.Name]; ok && pr.OneRM > 0 && s.Weight > 0 {
				pct = strconv.Itoa(stats.Intensity(s.Weight, pr.OneRM)) + "%"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
				formatDate(s.Date), s.Name, s.BodyPart, formatWeight(s.Weight), s.Reps,
				stats.SetOneRepMax(s), pct, yesNo(s.Synced))
		}
	})
}

func sortedRecords(prs map[string]models.PersonalRecord) []models.PersonalRecord {
	out := make([]models.PersonalRecord, 0, len(prs))
	for name, pr := range prs {
		if pr.Exercise == "" {
			pr.Exercise = name
		}
		out = append(out, pr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Exercise < out[j].Exercise })
	return out
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
