// Package domain contains core business types and interfaces.
//
// This file defines the spread catalog. A spread fixes how many cards are
// drawn, what each position means and which instruction the AI receives.
package domain

import (
	"fmt"
	"strings"
)

// Position is one slot of a spread.
type Position struct {
	Index int    `json:"index"`
	Label string `json:"label"`
}

// SpreadDefinition describes one reading product. Definitions are immutable.
type SpreadDefinition struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	CardsRequired    int        `json:"cards_required"`
	Positions        []Position `json:"positions"`
	AIInstruction    string     `json:"-"`
	PromptTag        string     `json:"prompt_tag"` // stored as the reading type
	LayoutType       string     `json:"layout_type"`
	RequiresQuestion bool       `json:"requires_question"`
}

// Reading types that are not spreads.
const (
	ReadingTypeDaily = "daily"
	ReadingTypeDream = "dream"
)

var allowedCardCounts = map[int]bool{5: true, 6: true, 7: true, 9: true, 12: true}

// Validate checks the structural rules of a catalog spread.
func (s SpreadDefinition) Validate() error {
	if s.ID == "" || s.Title == "" || s.PromptTag == "" {
		return fmt.Errorf("spread %q: id, title and prompt tag are required", s.ID)
	}
	if !allowedCardCounts[s.CardsRequired] {
		return fmt.Errorf("spread %q: %d cards is not a supported spread size", s.ID, s.CardsRequired)
	}
	return s.validatePositions()
}

func (s SpreadDefinition) validatePositions() error {
	if len(s.Positions) != s.CardsRequired {
		return fmt.Errorf("spread %q: has %d positions, want %d", s.ID, len(s.Positions), s.CardsRequired)
	}
	for i, p := range s.Positions {
		if p.Index != i+1 {
			return fmt.Errorf("spread %q: position %d has index %d", s.ID, i+1, p.Index)
		}
		if strings.TrimSpace(p.Label) == "" {
			return fmt.Errorf("spread %q: position %d has no label", s.ID, p.Index)
		}
	}
	return nil
}

// PositionLabel returns the meaning label of the i-th (0-based) selected card.
func (s SpreadDefinition) PositionLabel(i int) string {
	if i < 0 || i >= len(s.Positions) {
		return ""
	}
	return s.Positions[i].Label
}

func positions(labels ...string) []Position {
	out := make([]Position, len(labels))
	for i, l := range labels {
		out[i] = Position{Index: i + 1, Label: l}
	}
	return out
}

var catalog = []SpreadDefinition{
	{
		ID:            "cruz",
		Title:         "Cruz Cigana",
		CardsRequired: 5,
		Positions: positions(
			"Situação atual", "O que favorece", "O que se opõe",
			"Caminho a seguir", "Resultado",
		),
		AIInstruction: "Read the cards as a cross: the centre is the present situation, " +
			"left and right are the forces for and against, the top is the path and the bottom the outcome.",
		PromptTag:        "tarot_cruz",
		LayoutType:       "cross",
		RequiresQuestion: true,
	},
	{
		ID:            "amor",
		Title:         "Templo do Amor",
		CardsRequired: 6,
		Positions: positions(
			"Você", "A outra pessoa", "O que os une",
			"O que os separa", "Conselho", "Tendência",
		),
		AIInstruction: "Focus on the relationship between the consulter and the other person. " +
			"Contrast the first two cards and weigh what unites against what separates them.",
		PromptTag:        "tarot_amor",
		LayoutType:       "two-columns",
		RequiresQuestion: true,
	},
	{
		ID:            "ferradura",
		Title:         "Ferradura",
		CardsRequired: 7,
		Positions: positions(
			"Passado", "Presente", "Influências ocultas", "Obstáculos",
			"Ambiente", "O que fazer", "Resultado",
		),
		AIInstruction: "Read the cards along a horseshoe from past to outcome, " +
			"giving special weight to hidden influences and the recommended action.",
		PromptTag:        "tarot_ferradura",
		LayoutType:       "horseshoe",
		RequiresQuestion: true,
	},
	{
		ID:            "quadrado",
		Title:         "Quadrado de Nove",
		CardsRequired: 9,
		Positions: positions(
			"Passado distante", "Passado recente", "Raiz da questão",
			"Presente", "Centro da questão", "O que se aproxima",
			"Futuro próximo", "Desfecho", "Futuro distante",
		),
		AIInstruction: "The cards form a 3x3 square. Rows are past, present and future; " +
			"the central card is the heart of the matter and colours the whole reading.",
		PromptTag:        "tarot_quadrado",
		LayoutType:       "grid-3x3",
		RequiresQuestion: true,
	},
	{
		ID:            "mandala",
		Title:         "Mandala Astrológica",
		CardsRequired: 12,
		Positions: positions(
			"Casa 1 - Personalidade", "Casa 2 - Finanças", "Casa 3 - Comunicação",
			"Casa 4 - Lar e família", "Casa 5 - Amor e criatividade", "Casa 6 - Trabalho e saúde",
			"Casa 7 - Relacionamentos", "Casa 8 - Transformação", "Casa 9 - Espiritualidade",
			"Casa 10 - Carreira", "Casa 11 - Amizades e projetos", "Casa 12 - Inconsciente",
		),
		AIInstruction: "Each card falls in one of the twelve astrological houses. " +
			"Give a panorama of the consulter's life for the coming year, house by house.",
		PromptTag:  "tarot_mandala",
		LayoutType: "circle",
	},
}

// DailySpread is the single-card definition used by the daily bonus draw.
// It is not part of the purchasable catalog.
var DailySpread = SpreadDefinition{
	ID:            "diario",
	Title:         "Carta do Dia",
	CardsRequired: 1,
	Positions:     positions("Carta do dia"),
	AIInstruction: "Give a short, encouraging message for the consulter's day based on this card.",
	PromptTag:     ReadingTypeDaily,
	LayoutType:    "single",
}

// Spreads returns the spread catalog in display order.
func Spreads() []SpreadDefinition {
	out := make([]SpreadDefinition, len(catalog))
	copy(out, catalog)
	return out
}

// SpreadByID looks up a catalog spread.
func SpreadByID(id string) (SpreadDefinition, bool) {
	for _, s := range catalog {
		if s.ID == id {
			return s, true
		}
	}
	return SpreadDefinition{}, false
}

// ValidateCatalog checks every spread and the uniqueness of ids and tags.
// The server refuses to start when this fails.
func ValidateCatalog() error {
	ids := make(map[string]bool)
	tags := map[string]bool{ReadingTypeDaily: true, ReadingTypeDream: true}
	for _, s := range catalog {
		if err := s.Validate(); err != nil {
			return err
		}
		if ids[s.ID] {
			return fmt.Errorf("spread %q: duplicate id", s.ID)
		}
		if tags[s.PromptTag] {
			return fmt.Errorf("spread %q: duplicate prompt tag %q", s.ID, s.PromptTag)
		}
		ids[s.ID] = true
		tags[s.PromptTag] = true
	}
	return DailySpread.validatePositions()
}
