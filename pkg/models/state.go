package models

// TaskStatus is the status of one sub-task in the agent's plan.
type TaskStatus string

// Sub-task statuses. At most one task is active at a time; the
// investigation completes when every task is done.
const (
	TaskStatusActive  TaskStatus = "active"
	TaskStatusDone    TaskStatus = "done"
	TaskStatusBlocked TaskStatus = "blocked"
)

// Archetype classifies the active task. Advisory — surfaced in the prompt
// but not enforced beyond membership in this set.
type Archetype string

// Task archetypes.
const (
	ArchetypeInvestigate Archetype = "Investigate"
	ArchetypeCreate      Archetype = "Create"
	ArchetypeModify      Archetype = "Modify"
	ArchetypeProvision   Archetype = "Provision"
	ArchetypeUnorthodox  Archetype = "Unorthodox"
)

// Valid reports whether the archetype is a known value.
func (a Archetype) Valid() bool {
	switch a {
	case ArchetypeInvestigate, ArchetypeCreate, ArchetypeModify, ArchetypeProvision, ArchetypeUnorthodox:
		return true
	}
	return false
}

// CanonicalPhases maps each archetype to its ordered phase progression.
var CanonicalPhases = map[Archetype][]string{
	ArchetypeInvestigate: {"Gather", "Hypothesize", "Test", "Isolate", "Conclude"},
	ArchetypeCreate:      {"Requirements", "Draft", "Validate", "Refine", "Done"},
	ArchetypeModify:      {"Understand", "Backup", "Implement", "Verify", "Done"},
	ArchetypeProvision:   {"Check", "Install", "Verify"},
	ArchetypeUnorthodox:  nil, // free-form, any phase label accepted
}

// ValidPhase reports whether phase belongs to the archetype's canonical
// progression. Unorthodox tasks accept any phase.
func ValidPhase(a Archetype, phase string) bool {
	phases, ok := CanonicalPhases[a]
	if !ok {
		return false
	}
	if phases == nil {
		return true
	}
	for _, p := range phases {
		if p == phase {
			return true
		}
	}
	return false
}

// Task is one sub-task record in the agent's plan.
type Task struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
}

// ActiveTask carries the metadata of the currently active task.
// TurnsOnTask is engine-controlled: incremented while the same task id
// stays active, reset to zero when the active task changes.
type ActiveTask struct {
	ID          string    `json:"id"`
	Archetype   Archetype `json:"archetype"`
	Phase       string    `json:"phase"`
	TurnsOnTask int       `json:"turns_on_task"`
}

// TranscriptEntry is one completed turn. Prior entries are immutable.
type TranscriptEntry struct {
	TurnIndex   int    `json:"turn_index"`
	Thought     string `json:"thought"`
	Action      string `json:"action"`
	Observation string `json:"observation"`
}

// AgentState is the structured state the reasoning engine maintains across
// turns. It lives only inside one worker process and is never persisted
// across workers.
type AgentState struct {
	Goal       string            `json:"goal"`
	Tasks      []Task            `json:"tasks"`
	Active     *ActiveTask       `json:"active,omitempty"`
	Facts      []string          `json:"facts"`
	RuledOut   []string          `json:"ruled_out"`
	Unknowns   []string          `json:"unknowns"`
	Transcript []TranscriptEntry `json:"transcript"`
	TurnCount  int               `json:"turn_count"`
	IsComplete bool              `json:"is_complete"`

	// FinalResult is set iff IsComplete and completion came via the
	// finish tool.
	FinalResult string `json:"final_result,omitempty"`
}

// NewAgentState constructs the initial state for a goal.
func NewAgentState(goal string) *AgentState {
	return &AgentState{
		Goal:     goal,
		Facts:    []string{},
		RuledOut: []string{},
		Unknowns: []string{},
	}
}

// ProposedState is the state object the oracle echoes back each turn.
// The engine merges it into AgentState subject to the merge invariants —
// the oracle proposes, the engine disposes.
type ProposedState struct {
	Tasks    []Task      `json:"tasks"`
	Active   *ActiveTask `json:"active,omitempty"`
	Facts    []string    `json:"facts"`
	RuledOut []string    `json:"ruled_out"`
	Unknowns []string    `json:"unknowns"`
}
