package agent

import (
	"log/slog"

	"github.com/4sgupta828/oats/pkg/models"
)

// MergeOutcome reports what a state merge changed, for stuck detection.
type MergeOutcome struct {
	NewFacts    int
	NewRuledOut int

	// ActiveChanged is set when the active task id differs from before.
	ActiveChanged bool

	// Warnings carries merge-rule violations the engine surfaces as
	// warning status events (e.g. multiple active tasks downgraded).
	Warnings []string
}

// Delta reports whether the merge learned anything new.
func (o *MergeOutcome) Delta() bool {
	return o.NewFacts > 0 || o.NewRuledOut > 0
}

// MergeState folds the oracle's proposed state into the authoritative
// state under the merge invariants:
//
//   - facts and ruled_out are unioned with textual dedup — the oracle can
//     add but never remove;
//   - unknowns are replaced (open questions may be resolved);
//   - tasks are replaced, with at-most-one-active enforced by downgrading
//     extras to blocked;
//   - active.turns_on_task is engine-controlled: incremented while the
//     same task stays active, reset when it changes.
func MergeState(state *models.AgentState, proposed *models.ProposedState) *MergeOutcome {
	outcome := &MergeOutcome{}
	if proposed == nil {
		return outcome
	}

	var dropped int
	state.Facts, outcome.NewFacts, dropped = unionStrings(state.Facts, proposed.Facts)
	if dropped > 0 {
		outcome.Warnings = append(outcome.Warnings,
			"oracle proposed dropping facts; union semantics preserved them")
		slog.Warn("oracle proposed a regressing facts set", "dropped", dropped)
	}
	state.RuledOut, outcome.NewRuledOut, _ = unionStrings(state.RuledOut, proposed.RuledOut)

	if proposed.Unknowns != nil {
		state.Unknowns = proposed.Unknowns
	}

	if proposed.Tasks != nil {
		state.Tasks = enforceSingleActive(proposed.Tasks, outcome)
	}

	mergeActiveTask(state, proposed, outcome)
	return outcome
}

// unionStrings returns old ∪ proposed preserving old's order, the count of
// genuinely new entries, and how many old entries the proposal omitted.
func unionStrings(old, proposed []string) ([]string, int, int) {
	seen := make(map[string]bool, len(old))
	out := make([]string, 0, len(old)+len(proposed))
	for _, s := range old {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}

	proposedSet := make(map[string]bool, len(proposed))
	added := 0
	for _, s := range proposed {
		proposedSet[s] = true
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
			added++
		}
	}

	dropped := 0
	for _, s := range old {
		if !proposedSet[s] {
			dropped++
		}
	}
	return out, added, dropped
}

// enforceSingleActive downgrades all but the first active task to blocked.
func enforceSingleActive(tasks []models.Task, outcome *MergeOutcome) []models.Task {
	out := make([]models.Task, len(tasks))
	copy(out, tasks)

	activeSeen := false
	for i := range out {
		if out[i].Status != models.TaskStatusActive {
			continue
		}
		if !activeSeen {
			activeSeen = true
			continue
		}
		out[i].Status = models.TaskStatusBlocked
		outcome.Warnings = append(outcome.Warnings,
			"multiple active tasks proposed; downgraded "+out[i].ID+" to blocked")
	}
	return out
}

func mergeActiveTask(state *models.AgentState, proposed *models.ProposedState, outcome *MergeOutcome) {
	if proposed.Active == nil {
		return
	}

	next := *proposed.Active
	if !next.Archetype.Valid() {
		outcome.Warnings = append(outcome.Warnings,
			"unknown archetype "+string(next.Archetype)+"; defaulting to Investigate")
		next.Archetype = models.ArchetypeInvestigate
	}
	if next.Phase != "" && !models.ValidPhase(next.Archetype, next.Phase) {
		outcome.Warnings = append(outcome.Warnings,
			"phase "+next.Phase+" is not canonical for archetype "+string(next.Archetype))
	}

	// turns_on_task is ours, not the oracle's.
	if state.Active != nil && state.Active.ID == next.ID {
		next.TurnsOnTask = state.Active.TurnsOnTask + 1
	} else {
		next.TurnsOnTask = 0
		outcome.ActiveChanged = state.Active != nil || next.ID != ""
	}
	state.Active = &next
}
