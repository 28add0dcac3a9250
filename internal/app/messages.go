package app

import "github.com/D371L/asmodeus/internal/spin"

// VictoryMessages are shown alongside each winner
var VictoryMessages = []string{
	"Fate has chosen you!",
	"The stars align in your favor!",
	"A glorious victory!",
	"Asmodeus smiles upon you.",
	"Destiny has spoken.",
	"Luck is your ally tonight.",
	"The Abyss gazes back... and winks.",
	"Your soul shines the brightest!",
	"Fortune favors the bold.",
	"The wheel stops for you!",
}

// messagePicker picks victory messages without repeating the previous one.
// Not safe for concurrent use.
type messagePicker struct {
	messages []string
	rng      spin.RandomSource
	last     int
}

func newMessagePicker(messages []string, rng spin.RandomSource) *messagePicker {
	if rng == nil {
		rng = spin.DefaultRNG()
	}
	return &messagePicker{
		messages: messages,
		rng:      rng,
		last:     -1,
	}
}

// Pick returns a random message, never the same one twice in a row
func (p *messagePicker) Pick() string {
	switch len(p.messages) {
	case 0:
		return ""
	case 1:
		return p.messages[0]
	}

	n := len(p.messages)
	if p.last < 0 {
		p.last = int(spin.Uniform(p.rng, 0, float64(n)))
		return p.messages[p.last]
	}

	// Choose among the other n-1 and skip over the last one
	i := int(spin.Uniform(p.rng, 0, float64(n-1)))
	if i >= p.last {
		i++
	}
	p.last = i
	return p.messages[i]
}
