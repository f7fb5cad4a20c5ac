package mapping

import "fmt"

// Partition is a point-in-time copy of the classification state, safe to
// serialize or render without holding the state lock.
type Partition struct {
	NonLinked []KeyRecord      `json:"nonLinked"`
	Mapped    []MappedKey      `json:"mapped"`
	Ignored   []IgnoredKey     `json:"ignored"`
	Manual    []ManualProperty `json:"manualProperties"`
}

// Snapshot copies the current partition and manual-property set.
func (s *State) Snapshot() Partition {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := Partition{
		NonLinked: make([]KeyRecord, len(s.nonLinked)),
		Mapped:    make([]MappedKey, len(s.mapped)),
		Ignored:   make([]IgnoredKey, len(s.ignored)),
		Manual:    make([]ManualProperty, len(s.manual)),
	}
	copy(p.NonLinked, s.nonLinked)
	copy(p.Mapped, s.mapped)
	copy(p.Ignored, s.ignored)
	copy(p.Manual, s.manual)
	return p
}

// SetContext attaches a contextual-association map to a mapped or ignored
// key.
func (s *State) SetContext(key string, ctx *ContextMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.mapped {
		if s.mapped[i].Key == key {
			s.mapped[i].Context = ctx
			return nil
		}
	}
	for i := range s.ignored {
		if s.ignored[i].Key == key {
			s.ignored[i].Context = ctx
			return nil
		}
	}
	return fmt.Errorf("key %q is neither mapped nor ignored", key)
}

// Restore replaces the mapped and ignored categories and the manual-property
// set, as when loading a persisted mapping document. Restored keys are
// removed from non-linked, and previously classified keys the document does
// not mention fall back to non-linked, so every known key still sits in
// exactly one category afterwards.
func (s *State) Restore(mapped []MappedKey, ignored []IgnoredKey, manual []ManualProperty) {
	s.mu.Lock()
	defer s.mu.Unlock()

	restored := make(map[string]struct{}, len(mapped)+len(ignored))
	for _, mk := range mapped {
		restored[mk.Key] = struct{}{}
	}
	for _, ik := range ignored {
		restored[ik.Key] = struct{}{}
	}

	var displaced []KeyRecord
	for _, mk := range s.mapped {
		if _, kept := restored[mk.Key]; !kept {
			displaced = append(displaced, mk.KeyRecord)
		}
	}
	for _, ik := range s.ignored {
		if _, kept := restored[ik.Key]; !kept {
			displaced = append(displaced, ik.KeyRecord)
		}
	}

	s.mapped = mapped
	s.ignored = ignored
	s.manual = manual

	var remaining []KeyRecord
	for _, k := range s.nonLinked {
		if _, taken := restored[k.Key]; !taken {
			remaining = append(remaining, k)
		}
	}
	s.nonLinked = append(remaining, displaced...)
}

// KnownKeys lists every key across the three categories.
func (s *State) KnownKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.nonLinked)+len(s.mapped)+len(s.ignored))
	for _, k := range s.nonLinked {
		keys = append(keys, k.Key)
	}
	for _, k := range s.mapped {
		keys = append(keys, k.Key)
	}
	for _, k := range s.ignored {
		keys = append(keys, k.Key)
	}
	return keys
}
