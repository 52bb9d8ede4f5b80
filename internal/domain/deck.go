package domain

import (
	"fmt"
	"math/rand/v2"
)

// DeckSize is the number of cards in the Cigano deck.
const DeckSize = 36

// Card is one card of the deck.
type Card struct {
	ID       int    `json:"card_id"`
	Name     string `json:"card_name"`
	ImageRef string `json:"image_ref"` // storage key of the card artwork
}

var cardNames = [DeckSize]string{
	"O Cavaleiro", "O Trevo", "O Navio", "A Casa", "A Árvore", "As Nuvens",
	"A Cobra", "O Caixão", "O Buquê", "A Foice", "O Chicote", "Os Pássaros",
	"A Criança", "A Raposa", "O Urso", "A Estrela", "A Cegonha", "O Cachorro",
	"A Torre", "O Jardim", "A Montanha", "Os Caminhos", "Os Ratos", "O Coração",
	"O Anel", "Os Livros", "A Carta", "O Cigano", "A Cigana", "Os Lírios",
	"O Sol", "A Lua", "A Chave", "Os Peixes", "A Âncora", "A Cruz",
}

var deck = func() []Card {
	cards := make([]Card, DeckSize)
	for i, name := range cardNames {
		cards[i] = Card{ID: i + 1, Name: name, ImageRef: CardImageKey(i + 1)}
	}
	return cards
}()

// CardImageKey returns the storage key of a card's artwork.
func CardImageKey(id int) string {
	return fmt.Sprintf("cards/%02d.jpg", id)
}

// Deck returns the full deck in canonical order.
func Deck() []Card {
	out := make([]Card, len(deck))
	copy(out, deck)
	return out
}

// CardByID looks up a card.
func CardByID(id int) (Card, bool) {
	if id < 1 || id > DeckSize {
		return Card{}, false
	}
	return deck[id-1], true
}

// RNG is the source of randomness for shuffles and draws. Tests inject a
// deterministic implementation.
type RNG interface {
	IntN(n int) int
}

type defaultRNG struct{}

func (defaultRNG) IntN(n int) int { return rand.IntN(n) }

// DefaultRNG returns an RNG backed by the runtime's concurrency-safe generator.
func DefaultRNG() RNG { return defaultRNG{} }

// Shuffle returns a Fisher-Yates permutation of cards. The input is not modified.
func Shuffle(rng RNG, cards []Card) []Card {
	out := make([]Card, len(cards))
	copy(out, cards)
	for i := len(out) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// DrawCard picks one card uniformly at random.
func DrawCard(rng RNG) Card {
	return deck[rng.IntN(DeckSize)]
}
