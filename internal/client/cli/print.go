package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/goalkeeper/internal/client/models"
)

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func syncState(r models.GoalRecord) string {
	if r.IsDirty {
		return "dirty"
	}
	if r.LastSyncAt != nil {
		return "synced " + formatTime(*r.LastSyncAt)
	}
	return "clean"
}

func printRecord(w io.Writer, r models.GoalRecord) {
	fmt.Fprintf(w, "id:           %s\n", r.ID)
	fmt.Fprintf(w, "owner:        %s\n", r.OwnerID)
	fmt.Fprintf(w, "steps:        %d\n", r.Values.Steps)
	fmt.Fprintf(w, "calories:     %d\n", r.Values.Calories)
	fmt.Fprintf(w, "heart points: %d\n", r.Values.HeartPoints)
	fmt.Fprintf(w, "calculated:   %s (%s)\n", formatTime(r.CalculatedAt), r.Source)
	fmt.Fprintf(w, "revision:     %d\n", r.Revision)
	fmt.Fprintf(w, "state:        %s\n", syncState(r))
}

func printRecords(w io.Writer, rs []models.GoalRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tOWNER\tCALCULATED\tSTEPS\tCALORIES\tHEART POINTS\tSOURCE\tREV\tSTATE")
	for _, r := range rs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%d\t%s\n",
			r.ID, r.OwnerID, formatTime(r.CalculatedAt), r.Values.Steps, r.Values.Calories,
			r.Values.HeartPoints, r.Source, r.Revision, syncState(r))
	}
	return tw.Flush()
}

func printBatchResult(w io.Writer, res models.BatchResult) {
	fmt.Fprintf(w, "synced: %d, failed: %d, rejected: %d, unauthorized: %d\n",
		len(res.Synced()), len(res.Failed()), len(res.Rejected()), len(res.Unauthorized()))
	for _, it := range res.Items {
		if it.Status == models.StatusSynced {
			continue
		}
		fmt.Fprintf(w, "  %s (%s): %s: %v\n", it.ID, it.OwnerID, it.Status, it.Err)
	}
}
