package ai

import (
	"fmt"
	"strings"
	"time"

	"github.com/DukeRupert/oraculo/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

const (
	defaultConsulterName = "Consulente"
	defaultConsulterAge  = 30

	dailyQuestion = "Qual é a mensagem das cartas para o meu dia de hoje?"
)

const persona = `You are Madame Esmeralda, an experienced and warm Cigano (Lenormand) card reader.
You speak directly to the consulter, with empathy and without fatalism.
Never mention that you are an AI and never give medical, legal or financial guarantees.`

// Consulter is the person the reading is for.
type Consulter struct {
	Name      string
	BirthDate string // free text; unparseable values fall back to the default age
}

var birthDateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	time.RFC3339,
}

// consulterAge returns the age in whole years at now, or the default age when
// the birth date is missing or implausible.
func consulterAge(birthDate string, now time.Time) int {
	birthDate = strings.TrimSpace(birthDate)
	if birthDate == "" {
		return defaultConsulterAge
	}
	for _, layout := range birthDateLayouts {
		born, err := time.Parse(layout, birthDate)
		if err != nil {
			continue
		}
		age := now.Year() - born.Year()
		if now.Month() < born.Month() || (now.Month() == born.Month() && now.Day() < born.Day()) {
			age--
		}
		if age < 0 || age > 120 {
			return defaultConsulterAge
		}
		return age
	}
	return defaultConsulterAge
}

func consulterName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return defaultConsulterName
	}
	return cases.Title(language.BrazilianPortuguese).String(strings.ToLower(name))
}

// languageName renders a BCP 47 tag as an English language name for the
// model, e.g. "pt-BR" becomes "Brazilian Portuguese".
func languageName(tag language.Tag) string {
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return "Brazilian Portuguese"
}

const readingShape = `{
  "intro": "string",
  "timeline": {"past": "string", "present": "string", "future": "string"},
  "individual_cards": [
    {"card_id": 0, "position": "string", "card_name": "string", "interpretation": "string"}
  ],
  "summary": "string",
  "advice": "string"
}`

func buildReadingPrompt(req ReadingRequest, lang language.Tag, now time.Time) string {
	var b strings.Builder

	b.WriteString(persona)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Spread: %s (%d cards)\n", req.Spread.Title, len(req.Cards))
	fmt.Fprintf(&b, "Consulter: %s, %d years old\n", consulterName(req.Consulter.Name), consulterAge(req.Consulter.BirthDate, now))
	if q := strings.TrimSpace(req.Question); q != "" {
		fmt.Fprintf(&b, "Question: %s\n", q)
	} else {
		b.WriteString("Question: none, give a general reading\n")
	}

	b.WriteString("\nCards in the order they were drawn:\n")
	for i, card := range req.Cards {
		fmt.Fprintf(&b, "%d. [%d] %s", i+1, card.ID, card.Name)
		if label := req.Spread.PositionLabel(i); label != "" {
			fmt.Fprintf(&b, " (position: %s)", label)
		}
		b.WriteString("\n")
	}

	if req.Spread.AIInstruction != "" {
		fmt.Fprintf(&b, "\nHow to read this spread: %s\n", req.Spread.AIInstruction)
	}

	fmt.Fprintf(&b, "\nWrite every text value in %s.\n", languageName(lang))
	b.WriteString("Give exactly one entry in individual_cards per card, in the same order, using the card ids above.\n")
	b.WriteString("Respond with a single JSON object and nothing else, with this exact shape:\n")
	b.WriteString(readingShape)
	return b.String()
}

func buildInterpretationPrompt(req InterpretationRequest, lang language.Tag, now time.Time) string {
	var b strings.Builder

	b.WriteString(persona)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Consulter: %s, %d years old\n", consulterName(req.Consulter.Name), consulterAge(req.Consulter.BirthDate, now))

	switch req.Kind {
	case KindDream:
		b.WriteString("The consulter tells you a dream and asks what it means.\n")
		fmt.Fprintf(&b, "Dream: %s\n", strings.TrimSpace(req.Text))
		b.WriteString("Interpret its symbols and the message it brings for waking life.\n")
	case KindDaily:
		fmt.Fprintf(&b, "Question: %s\n", dailyQuestion)
		if req.Card != nil {
			fmt.Fprintf(&b, "Card of the day: [%d] %s\n", req.Card.ID, req.Card.Name)
		}
		fmt.Fprintf(&b, "%s\n", domain.DailySpread.AIInstruction)
	}

	fmt.Fprintf(&b, "\nWrite the interpretation in %s, in at most three short paragraphs.\n", languageName(lang))
	b.WriteString("Respond with a single JSON object and nothing else, with this exact shape:\n")
	b.WriteString(`{"interpretation": "string"}`)
	return b.String()
}
