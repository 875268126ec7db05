package orchestrator

import "strings"

type term struct {
	Key        string
	Definition string
}

// glossary is searched in order; the first key found in the message wins.
var glossary = []term{
	{Key: "freight value", Definition: "Shipping fee charged for delivering items for an order; in Olist it's the `freight_value` column on order items."},
	{Key: "aov", Definition: "Average order value = total revenue / number of orders."},
	{Key: "lead time", Definition: "Time between order placement and delivery to the customer."},
	{Key: "sla", Definition: "Service Level Agreement: expected service quality/time (e.g., delivery time promise)."},
}

func seedDefinition(message string) string {
	lowered := strings.ToLower(message)
	for _, t := range glossary {
		if strings.Contains(lowered, t.Key) {
			return t.Definition
		}
	}
	return ""
}

func explainPrompt(message string) string {
	prompt := "Explain briefly the term in e-commerce/logistics context: " + message
	if seed := seedDefinition(message); seed != "" {
		prompt += "\n\nSeed context: " + seed
	}
	return prompt
}

var targetLanguages = []struct {
	phrase   string
	language string
}{
	{phrase: "to portuguese", language: "Portuguese"},
	{phrase: "to spanish", language: "Spanish"},
	{phrase: "to french", language: "French"},
}

const defaultTargetLanguage = "English"

func targetLanguage(message string) string {
	lowered := strings.ToLower(message)
	for _, t := range targetLanguages {
		if strings.Contains(lowered, t.phrase) {
			return t.language
		}
	}
	return defaultTargetLanguage
}

func translatePrompt(message, language string) string {
	return "Translate to " + language + ". Keep only translated text, no extra words:\n\n" + message
}
