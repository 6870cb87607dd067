package diagnosis

import (
	"sort"
	"strings"
)

// WorkingMemory is the fact set of one inference run. It is allocated per
// call and never shared.
type WorkingMemory struct {
	facts map[string]struct{}
}

func NewWorkingMemory(codes ...string) *WorkingMemory {
	wm := &WorkingMemory{facts: make(map[string]struct{}, len(codes))}
	for _, c := range codes {
		wm.Assert(c)
	}
	return wm
}

// Assert adds a fact. Asserting a known fact is a no-op.
func (wm *WorkingMemory) Assert(code string) {
	wm.facts[code] = struct{}{}
}

func (wm *WorkingMemory) Holds(code string) bool {
	_, ok := wm.facts[code]
	return ok
}

// HoldsAll reports whether every code is a known fact.
func (wm *WorkingMemory) HoldsAll(codes []string) bool {
	for _, c := range codes {
		if !wm.Holds(c) {
			return false
		}
	}
	return true
}

func (wm *WorkingMemory) Len() int { return len(wm.facts) }

// Facts returns the known facts in ascending order.
func (wm *WorkingMemory) Facts() []string {
	out := make([]string, 0, len(wm.facts))
	for c := range wm.facts {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// RuleGroup is the conjunction of all rules sharing a condition and a group
// code. It is satisfied only when every member symptom is present.
type RuleGroup struct {
	ConditionCode string   `json:"condition_code"`
	GroupCode     string   `json:"group_code"`
	Symptoms      []string `json:"symptoms"`
}

func (g RuleGroup) Key() string {
	return g.ConditionCode + "/" + g.GroupCode
}

func (g RuleGroup) SatisfiedBy(wm *WorkingMemory) bool {
	return len(g.Symptoms) > 0 && wm.HoldsAll(g.Symptoms)
}

// GroupRules partitions rules by (condition, group) and returns the groups in
// evaluation order: ascending condition code, then ascending group code.
// Member symptoms are de-duplicated and sorted.
func GroupRules(rules []Rule) []RuleGroup {
	type key struct{ condition, group string }
	members := make(map[key]map[string]struct{})
	for _, r := range rules {
		k := key{r.ConditionCode, r.GroupCode}
		if members[k] == nil {
			members[k] = make(map[string]struct{})
		}
		members[k][r.SymptomCode] = struct{}{}
	}

	groups := make([]RuleGroup, 0, len(members))
	for k, set := range members {
		g := RuleGroup{ConditionCode: k.condition, GroupCode: k.group, Symptoms: make([]string, 0, len(set))}
		for s := range set {
			g.Symptoms = append(g.Symptoms, s)
		}
		sort.Strings(g.Symptoms)
		groups = append(groups, g)
	}

	sort.Slice(groups, func(i, j int) bool {
		if c := strings.Compare(groups[i].ConditionCode, groups[j].ConditionCode); c != 0 {
			return c < 0
		}
		return groups[i].GroupCode < groups[j].GroupCode
	})
	return groups
}

// Engine runs forward chaining over a fixed rule base snapshot. It holds no
// per-run state and is safe for concurrent use.
type Engine struct {
	groups []RuleGroup
}

func NewEngine(rules []Rule) *Engine {
	return &Engine{groups: GroupRules(rules)}
}

// Groups returns the rule groups in evaluation order.
func (e *Engine) Groups() []RuleGroup {
	out := make([]RuleGroup, len(e.groups))
	copy(out, e.groups)
	return out
}

// Fire evaluates groups in order and returns the first satisfied group that
// admit accepts. admit lets the caller skip a group whose conclusion cannot be
// used (for example a condition missing from the catalog); an admit error
// stops evaluation. ok is false when no group fires.
func (e *Engine) Fire(wm *WorkingMemory, admit func(g RuleGroup) (bool, error)) (fired RuleGroup, ok bool, err error) {
	for _, g := range e.groups {
		if !g.SatisfiedBy(wm) {
			continue
		}
		if admit != nil {
			accepted, err := admit(g)
			if err != nil {
				return RuleGroup{}, false, err
			}
			if !accepted {
				continue
			}
		}
		return g, true, nil
	}
	return RuleGroup{}, false, nil
}
