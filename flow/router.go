package flow

import (
	"github.com/hupe1980/dialogmesh/intent"
)

// ClassifierRouter starts the flow of the highest ranked confident intent.
// Ranking is the classifier's: score descending, ties in declaration order.
type ClassifierRouter struct {
	Classifier *intent.Classifier
	Catalog    *Catalog
	Threshold  float64
}

// NewClassifierRouter builds a router with intent.DefaultThreshold.
func NewClassifierRouter(c *intent.Classifier, catalog *Catalog) *ClassifierRouter {
	return &ClassifierRouter{Classifier: c, Catalog: catalog, Threshold: intent.DefaultThreshold}
}

// Route implements Router.
func (r *ClassifierRouter) Route(text string) (*Definition, bool) {
	if r.Classifier == nil || r.Catalog == nil {
		return nil, false
	}
	for _, m := range r.Classifier.Classify(text) {
		if !intent.IsConfident(m, r.Threshold) {
			// ranked descending, nothing further can pass
			return nil, false
		}
		if def, ok := r.Catalog.ForTaskType(m.TaskType); ok {
			return def, true
		}
	}
	return nil, false
}
