package usecase

import (
	"fmt"
	"strings"

	"github.com/hockeytools/rules-engine/internal/core/ports"
)

const historyWindow = 4

func buildContextualizationPrompt(history []ports.Turn, question, jurisdictionLabel string) string {
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}

	var historyBuilder strings.Builder
	for _, turn := range history {
		historyBuilder.WriteString(turn.Role)
		historyBuilder.WriteString(": ")
		historyBuilder.WriteString(turn.Text)
		historyBuilder.WriteString("\n")
	}

	return fmt.Sprintf(`Given the following conversation and a follow up user input about Field Hockey.

YOUR GOAL:
Rephrase the 'Follow Up Input' to be a standalone question, using the 'Chat History' ONLY to resolve pronouns (it, they, that) or ambiguous references to the previous topic.

CONTEXT INFORMATION:
The user is currently asking about rules in this jurisdiction: %s.
If the user says "here", "in my country", "locally", or "this jurisdiction", they are referring to %s.

RULES:
1. If the 'Follow Up Input' is a valid follow-up question, rewrite it to be fully self-contained including the hockey variant.
2. If the 'Follow Up Input' is completely unrelated to the previous context, return it unchanged (but still add the variant tag).
3. Do NOT attempt to answer the question.
4. First determine the hockey variant (outdoor, indoor, hockey5s) from the context. Default to 'outdoor' if unclear.
5. Prepend the variant in a strict format: [VARIANT: <variant>]

Chat History:
%s
Follow Up Input: %s

Standalone Question:`, jurisdictionLabel, jurisdictionLabel, historyBuilder.String(), question)
}

func buildRoutingPrompt(question string, variants []string) string {
	list := strings.Join(variants, ", ")
	return fmt.Sprintf(
		"Analyze this Field Hockey question and categorize it as one of: %s. Return exactly one label and nothing else. Default to 'outdoor'.\nQUESTION: %s",
		list, question,
	)
}
