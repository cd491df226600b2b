package models

import "fmt"

// EditModel is one of the backends able to edit an image from a reference URL.
type EditModel int

const (
	EditKontext EditModel = iota
	EditFlux
	EditFluxKontext
)

type editSpec struct {
	name         string
	referenceKey string
	promptPrefix string
}

var editSpecs = map[EditModel]editSpec{
	EditKontext:     {name: "kontext", referenceKey: "image"},
	EditFlux:        {name: "flux", referenceKey: "reference", promptPrefix: "based on reference image, "},
	EditFluxKontext: {name: "flux-kontext", referenceKey: "image"},
}

// EditModels returns every edit model in canonical fallback order.
func EditModels() []EditModel {
	return []EditModel{EditKontext, EditFlux, EditFluxKontext}
}

func (m EditModel) String() string {
	if s, ok := editSpecs[m]; ok {
		return s.name
	}
	return fmt.Sprintf("EditModel(%d)", int(m))
}

// ReferenceParam is the query parameter that carries the source image URL.
func (m EditModel) ReferenceParam() string {
	return editSpecs[m].referenceKey
}

func (m EditModel) PromptPrefix() string {
	return editSpecs[m].promptPrefix
}

func ParseEditModel(name string) (EditModel, error) {
	for _, m := range EditModels() {
		if m.String() == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownEditModel, name)
}

// EditAttempt describes one step of the edit fallback chain.
type EditAttempt struct {
	Model        EditModel
	ModelName    string
	ParameterKey string
	PromptPrefix string
}

// EditPlan orders all edit models with preferred first and the rest in
// canonical order, without duplicates.
func EditPlan(preferred EditModel) []EditAttempt {
	order := []EditModel{preferred}
	for _, m := range EditModels() {
		if m != preferred {
			order = append(order, m)
		}
	}

	plan := make([]EditAttempt, 0, len(order))
	for _, m := range order {
		if _, ok := editSpecs[m]; !ok {
			continue
		}
		plan = append(plan, EditAttempt{
			Model:        m,
			ModelName:    m.String(),
			ParameterKey: m.ReferenceParam(),
			PromptPrefix: m.PromptPrefix(),
		})
	}
	return plan
}
