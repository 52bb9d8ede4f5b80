package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCatalog(t *testing.T) {
	require.NoError(t, ValidateCatalog())

	sizes := map[int]bool{}
	for _, s := range Spreads() {
		sizes[s.CardsRequired] = true
		assert.Len(t, s.Positions, s.CardsRequired, s.ID)
		assert.NotEmpty(t, s.AIInstruction, s.ID)
	}
	assert.Equal(t, map[int]bool{5: true, 6: true, 7: true, 9: true, 12: true}, sizes)
}

func TestSpreadDefinition_Validate(t *testing.T) {
	base := SpreadDefinition{
		ID:            "teste",
		Title:         "Teste",
		CardsRequired: 5,
		Positions:     positions("a", "b", "c", "d", "e"),
		PromptTag:     "tarot_teste",
	}
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(s *SpreadDefinition)
	}{
		{"unsupported size", func(s *SpreadDefinition) { s.CardsRequired = 10 }},
		{"too few positions", func(s *SpreadDefinition) { s.Positions = s.Positions[:4] }},
		{"missing label", func(s *SpreadDefinition) {
			s.Positions = positions("a", "b", "", "d", "e")
		}},
		{"out of order index", func(s *SpreadDefinition) {
			s.Positions = []Position{{1, "a"}, {2, "b"}, {4, "c"}, {3, "d"}, {5, "e"}}
		}},
		{"missing prompt tag", func(s *SpreadDefinition) { s.PromptTag = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base
			s.Positions = append([]Position(nil), base.Positions...)
			tt.mutate(&s)
			assert.Error(t, s.Validate())
		})
	}
}

func TestSpreadByID(t *testing.T) {
	s, ok := SpreadByID("quadrado")
	require.True(t, ok)
	assert.Equal(t, 9, s.CardsRequired)
	assert.Equal(t, "Presente", s.PositionLabel(3))
	assert.Empty(t, s.PositionLabel(9))

	_, ok = SpreadByID("diario")
	assert.False(t, ok, "daily spread is not purchasable")
}

type seqRNG struct {
	values []int
	i      int
}

func (r *seqRNG) IntN(n int) int {
	v := r.values[r.i%len(r.values)] % n
	r.i++
	return v
}

func TestShuffle(t *testing.T) {
	cards := Deck()
	shuffled := Shuffle(&seqRNG{values: []int{3, 17, 0, 8, 22, 5}}, cards)

	assert.Len(t, shuffled, DeckSize)
	assert.Equal(t, Deck(), cards, "input must not be modified")
	assert.ElementsMatch(t, cards, shuffled)
}

func TestDrawCard(t *testing.T) {
	card := DrawCard(&seqRNG{values: []int{30}})
	assert.Equal(t, 31, card.ID)
	assert.Equal(t, "O Sol", card.Name)
	assert.Equal(t, "cards/31.jpg", card.ImageRef)

	_, ok := CardByID(0)
	assert.False(t, ok)
	_, ok = CardByID(37)
	assert.False(t, ok)
}
