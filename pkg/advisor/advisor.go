// Package advisor is the eco advisor chat: four suggested questions with canned answers,
// delivered after a short typing indicator.
package advisor

import (
	"strings"
	"time"
)

// TypingText is shown while the answer is "being written".
const TypingText = "MossPay is typing..."

// DefaultDelay is how long the typing indicator stays up.
const DefaultDelay = time.Second

// Fallback answers anything that is not a suggested question.
const Fallback = "I can only help with the suggested questions for now. Pick one of them below!"

// Message kinds.
const (
	KindUser   = "user"
	KindTyping = "typing"
	KindAnswer = "answer"
	KindError  = "error"
)

// Message is one chat bubble.
type Message struct {
	Kind string `json:"type"`
	Text string `json:"text"`
}

var canned = []struct {
	question string
	answer   string
}{
	{
		"How do I log a purchase?",
		"To log a purchase, get a bill from a vendor. Then, go to the 'Log Purchase' page in your app. You'll see all your pending bills. Just click the 'Log' button to claim your MossCoins!",
	},
	{
		"How do I redeem my MossCoins?",
		"Go to the 'Redeem' page from the main menu. You can browse all available rewards from our partners and government schemes. If you have enough coins, just click the 'Redeem' button!",
	},
	{
		"How can I reduce my water usage?",
		"A great way is to take shorter showers! Also, fix any leaky faucets. A single drip can waste hundreds of gallons of water per month.",
	},
	{
		"What's the most impactful way to recycle?",
		"Focus on the 'Big 4': 1. Paper & Cardboard, 2. Glass bottles & jars, 3. Metal cans (like soda cans), and 4. Plastic bottles & jugs. Make sure they are clean and dry!",
	},
}

// Questions returns the suggested questions in display order.
func Questions() []string {
	out := make([]string, len(canned))
	for i, c := range canned {
		out[i] = c.question
	}
	return out
}

// Answer looks up the canned answer; ok is false when the fallback was used.
func Answer(question string) (answer string, ok bool) {
	q := strings.TrimSpace(question)
	for _, c := range canned {
		if strings.EqualFold(c.question, q) {
			return c.answer, true
		}
	}
	return Fallback, false
}

// Transcript is the chat window: it echoes a question, shows the typing bubble and then
// swaps it for the answer.
type Transcript struct {
	Messages []Message
	pending  string
}

// Ask appends the question and the typing indicator. A second Ask while an answer is
// pending is ignored.
func (t *Transcript) Ask(question string) bool {
	if t.Typing() {
		return false
	}
	t.Messages = append(t.Messages, Message{Kind: KindUser, Text: question}, Message{Kind: KindTyping, Text: TypingText})
	t.pending = question
	return true
}

// Typing reports whether the indicator is showing.
func (t *Transcript) Typing() bool {
	n := len(t.Messages)
	return n > 0 && t.Messages[n-1].Kind == KindTyping
}

// Resolve removes the typing indicator and appends the answer.
func (t *Transcript) Resolve() Message {
	if !t.Typing() {
		return Message{}
	}
	answer, _ := Answer(t.pending)
	t.Messages[len(t.Messages)-1] = Message{Kind: KindAnswer, Text: answer}
	t.pending = ""
	return t.Messages[len(t.Messages)-1]
}
