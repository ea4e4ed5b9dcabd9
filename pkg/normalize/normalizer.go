// Package normalize enriches results documents with section names and drops
// sub-events (halves, periods, statistics) so only headline events remain.
package normalize

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/results-ingest/pkg/logging"
	"github.com/Sternrassler/results-ingest/pkg/model"
	"github.com/Sternrassler/results-ingest/pkg/query"
)

// Normalizer turns raw documents into persistable batches. It is safe for concurrent use.
type Normalizer struct {
	vocab   *Vocabulary
	markers []string
	logger  zerolog.Logger
}

// New creates a Normalizer for the given vocabulary.
func New(v *Vocabulary) *Normalizer {
	markers := v.Markers
	if v.FoldCase {
		markers = make([]string, len(v.Markers))
		for i, m := range v.Markers {
			markers[i] = strings.ToLower(m)
		}
	}
	return &Normalizer{
		vocab:   v,
		markers: markers,
		logger:  logging.NewLogger("normalizer"),
	}
}

// Vocabulary returns the vocabulary in use.
func (n *Normalizer) Vocabulary() *Vocabulary {
	return n.vocab
}

// Normalize enriches doc and filters its sub-events into a batch sourced from q.
func (n *Normalizer) Normalize(doc *model.RawDocument, q query.Query) (model.Batch, error) {
	enriched, err := n.Enrich(doc)
	if err != nil {
		normalizationErrorsTotal.Inc()
		return model.Batch{}, err
	}

	events := n.Filter(enriched.Events)
	dropped := len(enriched.Events) - len(events)
	eventsFilteredTotal.Add(float64(dropped))

	n.logger.Debug().
		Str(logging.FieldDay, q.Date()).
		Int("events", len(enriched.Events)).
		Int("kept", len(events)).
		Msg("Events filtered")

	return model.Batch{Source: q.Path, Events: events}, nil
}

// Enrich returns a copy of doc where every event referenced by a section carries
// that section's name. When several sections reference one event the last one wins.
// doc is not modified, so Enrich(Enrich(d)) equals Enrich(d).
func (n *Normalizer) Enrich(doc *model.RawDocument) (*model.RawDocument, error) {
	events := make([]model.Event, len(doc.Events))
	copy(events, doc.Events)

	for _, section := range doc.Sections {
		for _, ref := range section.Events {
			i := int(ref)
			if i < 1 || i > len(events) {
				return nil, &NormalizationError{Section: section.Name, Index: i, Events: len(events)}
			}
			events[i-1] = events[i-1].WithSection(section.Name)
		}
	}

	return &model.RawDocument{Events: events, Sections: doc.Sections}, nil
}

// Filter returns the events whose name contains no vocabulary marker, in order.
func (n *Normalizer) Filter(events []model.Event) []model.Event {
	kept := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if !n.isSubEvent(ev.Name) {
			kept = append(kept, ev)
		}
	}
	return kept
}

func (n *Normalizer) isSubEvent(name string) bool {
	if n.vocab.FoldCase {
		name = strings.ToLower(name)
	}
	for _, m := range n.markers {
		if strings.Contains(name, m) {
			return true
		}
	}
	return false
}
