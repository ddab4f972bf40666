package triggers

// TriggerSet is an immutable, insertion-ordered collection of rules keyed by
// their normalized key (see NormalizeKey). Mutating helpers return a new set and leave the receiver
// untouched, so a *TriggerSet can be shared freely between goroutines.
type TriggerSet struct {
	rules []compiledRule
	index map[string]int
	// settings travel with the rules so a reload swaps both at once.
	settings Settings
}

// NewTriggerSet builds a set from rules in order. A later rule with the same
// key replaces the earlier one in place.
func NewTriggerSet(rules []Rule, settings Settings) *TriggerSet {
	ts := &TriggerSet{
		rules:    make([]compiledRule, 0, len(rules)),
		index:    make(map[string]int, len(rules)),
		settings: settings,
	}
	for _, r := range rules {
		if r, ok := normalize(r); ok {
			ts.put(r)
		}
	}
	return ts
}

// Len returns the number of rules.
func (ts *TriggerSet) Len() int {
	if ts == nil {
		return 0
	}
	return len(ts.rules)
}

// Rules returns a deep copy of the rules in order.
func (ts *TriggerSet) Rules() []Rule {
	if ts == nil {
		return nil
	}
	out := make([]Rule, len(ts.rules))
	for i, cr := range ts.rules {
		out[i] = cr.Rule.Clone()
	}
	return out
}

// Get looks up a rule by key. An exact match wins; otherwise the folded key
// is tried, so plain triggers are found regardless of case.
func (ts *TriggerSet) Get(key string) (Rule, bool) {
	if ts == nil {
		return Rule{}, false
	}
	i, ok := ts.lookup(key)
	if !ok {
		return Rule{}, false
	}
	return ts.rules[i].Rule.Clone(), true
}

func (ts *TriggerSet) lookup(key string) (int, bool) {
	if i, ok := ts.index[key]; ok {
		return i, true
	}
	i, ok := ts.index[Fold(key)]
	return i, ok
}

// Settings returns the settings loaded with this set.
func (ts *TriggerSet) Settings() Settings {
	if ts == nil {
		return Settings{}
	}
	return ts.settings
}

// Invalid returns the rules whose pattern failed to compile, keyed by rule
// key.
func (ts *TriggerSet) Invalid() map[string]error {
	out := make(map[string]error)
	if ts == nil {
		return out
	}
	for _, cr := range ts.rules {
		if cr.reErr != nil {
			out[cr.Key] = cr.reErr
		}
	}
	return out
}

// With returns a copy of ts with r added, replacing any rule with the same
// key at its existing position. A rule whose key folds to empty is ignored.
func (ts *TriggerSet) With(r Rule) *TriggerSet {
	next := ts.clone()
	if r, ok := normalize(r); ok {
		next.put(r)
	}
	return next
}

// Without returns a copy of ts with key removed and whether it was present.
// The key is resolved the same way as Get.
func (ts *TriggerSet) Without(key string) (*TriggerSet, bool) {
	if ts == nil {
		return ts, false
	}
	drop, ok := ts.lookup(key)
	if !ok {
		return ts, false
	}

	next := &TriggerSet{
		rules:    make([]compiledRule, 0, len(ts.rules)-1),
		index:    make(map[string]int, len(ts.rules)-1),
		settings: ts.settings,
	}
	for i, cr := range ts.rules {
		if i == drop {
			continue
		}
		next.index[cr.Key] = len(next.rules)
		next.rules = append(next.rules, cr)
	}
	return next, true
}

func (ts *TriggerSet) clone() *TriggerSet {
	next := &TriggerSet{
		rules:    make([]compiledRule, len(ts.rules), len(ts.rules)+1),
		index:    make(map[string]int, len(ts.rules)+1),
		settings: ts.settings,
	}
	copy(next.rules, ts.rules)
	for k, v := range ts.index {
		next.index[k] = v
	}
	return next
}

// normalize canonicalizes the mode and key of a copy of r.
func normalize(r Rule) (Rule, bool) {
	r = r.Clone()
	r.Mode = ParseMatchMode(string(r.Mode))
	r.Key = NormalizeKey(r.Key, r.Mode)
	if r.Key == "" {
		return Rule{}, false
	}
	return r, true
}

// put inserts or replaces r (caller guarantees exclusive access).
func (ts *TriggerSet) put(r Rule) {
	cr := compileRule(r)
	if i, ok := ts.index[r.Key]; ok {
		ts.rules[i] = cr
		return
	}
	ts.index[r.Key] = len(ts.rules)
	ts.rules = append(ts.rules, cr)
}
