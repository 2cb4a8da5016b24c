package research

// Snapshot is the merged, de-duplicated view of a task's progress, fed by
// both the polling loop and the push stream.
type Snapshot struct {
	Percentage       float64
	CurrentStep      string
	StepsCompleted   []string
	SourcesFound     int
	SourcesProcessed int
}

// merge folds one wire payload into the snapshot. Percentage, completed
// steps, and source counters never regress: a payload that arrives out of
// order can update the current step label but cannot roll progress back.
func (s *Snapshot) merge(p progressPayload) {
	if p.Percentage > s.Percentage {
		s.Percentage = p.Percentage
	}
	if p.CurrentStep != "" {
		s.CurrentStep = p.CurrentStep
	}

	for _, step := range p.StepsCompleted {
		if !containsStep(s.StepsCompleted, step) {
			s.StepsCompleted = append(s.StepsCompleted, step)
		}
	}

	if p.SourcesFound != nil && *p.SourcesFound > s.SourcesFound {
		s.SourcesFound = *p.SourcesFound
	}
	if p.SourcesProcessed != nil && *p.SourcesProcessed > s.SourcesProcessed {
		s.SourcesProcessed = *p.SourcesProcessed
	}
}

// clone returns an independent copy safe to hand outside the lock.
func (s *Snapshot) clone() Snapshot {
	copied := *s
	copied.StepsCompleted = append([]string(nil), s.StepsCompleted...)
	return copied
}

func containsStep(steps []string, step string) bool {
	for _, existing := range steps {
		if existing == step {
			return true
		}
	}
	return false
}
