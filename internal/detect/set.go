package detect

import (
	"sync"

	"factorytune/pkg/models"
)

// Set runs a group of detectors against call sites and aggregates their
// evidence into a signal.
type Set struct {
	detectors []Detector
	mu        sync.RWMutex
}

// NewSet creates a Set from explicit detectors.
func NewSet(detectors ...Detector) *Set {
	return &Set{detectors: detectors}
}

// DefaultSet creates a Set with the four built-in detectors, their
// vocabularies extended by rules when given.
func DefaultSet(rules *Rules) *Set {
	if rules == nil {
		rules = &Rules{}
	}
	return NewSet(
		NewAccessorDetector(rules.Accessors...),
		NewAssociationDetector(rules.AssociationMutators...),
		NewQueryDetector(rules.QueryMethods...),
		NewConsumerDetector(rules.ConsumerSuffixes...),
	)
}

// Add appends a detector. Because aggregation is an OR, adding detectors
// can only move sites toward requiring persistence, never away from it.
func (s *Set) Add(d Detector) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detectors = append(s.detectors, d)
}

// Names lists the detectors in probe order.
func (s *Set) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, len(s.detectors))
	for i, d := range s.detectors {
		names[i] = d.Name()
	}
	return names
}

// Evaluate probes one site with every detector and aggregates the result.
// All evidence is returned, matched or not, so reports can show what was
// checked.
func (s *Set) Evaluate(site models.CallSite, text string) (models.Signal, []models.Evidence) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	evidence := make([]models.Evidence, 0, len(s.detectors))
	for _, d := range s.detectors {
		evidence = append(evidence, d.Detect(site, text))
	}
	return models.AggregateSignal(evidence), evidence
}
