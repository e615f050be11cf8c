package models

import "encoding/json"

// QuirkImpact grades how badly ignoring a repo quirk hurts a contribution.
type QuirkImpact string

const (
	QuirkImpactBlocker QuirkImpact = "blocker"
	QuirkImpactWarning QuirkImpact = "warning"
	QuirkImpactNote    QuirkImpact = "note"
)

// Quirk is one piece of tribal knowledge about a target repo.
type Quirk struct {
	Description string      `json:"description"`
	Impact      QuirkImpact `json:"impact"`
}

// TextList is a list of text items, accepting either a list of strings or a
// single opaque text blob (normalized to a one-element list) on the wire.
// The aggregator emits both shapes for dossier guidance fields.
type TextList []string

func (t *TextList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*t = nil
			return nil
		}
		*t = []string{single}
		return nil
	}
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*t = items
	return nil
}

// Dossier is externally supplied repository intelligence used to enrich the
// agent task brief. All fields are optional.
type Dossier struct {
	Slug              string   `json:"slug"`
	ContributionRules TextList `json:"contributionRules"`
	Quirks            []Quirk  `json:"quirks"`
	SuccessPatterns   TextList `json:"successPatterns"`
}
