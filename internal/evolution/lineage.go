// Package evolution runs the closed optimization loop: generate strategies,
// replay them against the frozen market stream, and rewrite each lineage
// round by round from performance feedback.
package evolution

import (
	"fmt"
	"strings"

	"bidarena/internal/types"
)

// sourceSnippetLen bounds the per-ancestor code excerpt included in
// optimization feedback.
const sourceSnippetLen = 300

// Entry pairs one artifact with its simulation result at one round.
type Entry struct {
	Round    int
	Artifact *types.StrategyArtifact
	Result   *types.SimulationResult
}

// Lineage is the chronological sequence of entries sharing a base name
// across rounds. It lives only in process memory for the session.
type Lineage struct {
	Name    string
	Entries []Entry
}

// Latest returns the most recent entry. Lineages are never empty.
func (l *Lineage) Latest() Entry {
	return l.Entries[len(l.Entries)-1]
}

// Best returns the entry with the maximum total conversions. Ties keep the
// earlier round, so an optimization that merely matches its ancestor does
// not displace it as the base.
func (l *Lineage) Best() Entry {
	best := l.Entries[0]
	for _, e := range l.Entries[1:] {
		if e.Result.ConversionCount > best.Result.ConversionCount {
			best = e
		}
	}
	return best
}

// nextRound is the round number the lineage's next successful entry takes.
// A failed round consumes no number, keeping per-lineage rounds gapless.
func (l *Lineage) nextRound() int {
	return l.Latest().Round + 1
}

// historyContext renders the full lineage for the optimization prompt:
// every ancestor's round, key metrics, and a truncated source snippet,
// plus the revert or re-roll guidance when either applies.
func (l *Lineage) historyContext(best Entry, revert, reroll bool) string {
	var b strings.Builder
	for _, e := range l.Entries {
		fmt.Fprintf(&b, "Round %d [%s]: wins=%d conversions=%d spend=%.2f cpa=%.2f win_rate=%.3f\n",
			e.Round, e.Artifact.Name,
			e.Result.WinCount, e.Result.ConversionCount,
			e.Result.TotalSpend, e.Result.AvgCPA, e.Result.WinRate)
		fmt.Fprintf(&b, "  source: %s\n", truncate(e.Artifact.Code, sourceSnippetLen))
	}

	if reroll {
		fmt.Fprintf(&b,
			"\nThis lineage has stagnated: its best result is only %d conversions. "+
				"Discard the prior logic entirely and write a fresh, aggressive strategy "+
				"from scratch rather than an incremental edit.\n",
			best.Result.ConversionCount)
	} else if revert {
		latest := l.Latest()
		fmt.Fprintf(&b,
			"\nThe latest round (round %d, %d conversions) underperformed round %d "+
				"(%d conversions). Resume optimization from the round-%d ancestor, whose "+
				"source is the base strategy above.\n",
			latest.Round, latest.Result.ConversionCount,
			best.Round, best.Result.ConversionCount, best.Round)
	}

	return b.String()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
