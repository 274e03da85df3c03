package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dvloznov/finance-wrapped/internal/domain"
)

// buildClassificationPrompt renders the system prompt listing the taxonomy the
// oracle must choose from.
func buildClassificationPrompt(tax domain.Taxonomy) string {
	var b strings.Builder
	b.WriteString("You are a specialized transaction-classification assistant. ")
	b.WriteString("Your job is to map a merchant name into one of these categories:\n\n")
	for _, c := range tax.Categories() {
		b.WriteString("  - " + c.Name + ": " + c.Hint + "\n")
	}
	b.WriteString("\nRespond ONLY with a JSON object with exactly two keys:\n")
	b.WriteString("  {\n")
	b.WriteString("    \"category\": <one of the category names above>,\n")
	b.WriteString("    \"reasoning\": <a single sentence explaining why>\n")
	b.WriteString("  }\n\n")
	b.WriteString("Do NOT include any additional text, markdown, or code fences.\n")
	b.WriteString("Use the exact category names as listed above and be decisive.\n")
	fmt.Fprintf(&b, "If the merchant does not clearly fit a category, choose %q.\n\n", tax.Fallback())
	b.WriteString("Example:\n")
	b.WriteString("Input: \"Shell\"\n")
	b.WriteString("Output: {\"category\": \"transport\", \"reasoning\": \"Shell is a fuel station chain.\"}")
	return b.String()
}

func buildClassificationUserPrompt(merchant string) string {
	return "Merchant: " + merchant
}

// promptRecord is the shape of a transaction as shown to the persona and narrative oracles.
type promptRecord struct {
	Date        string      `json:"date"`
	Merchant    string      `json:"merchant"`
	Amount      json.Number `json:"amount"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	AccountName string      `json:"account_name"`
}

// renderRecords serializes categorized records as a compact JSON array.
func renderRecords(records []*domain.Transaction) (string, error) {
	rows := make([]promptRecord, 0, len(records))
	for _, r := range records {
		rows = append(rows, promptRecord{
			Date:        r.Date.String(),
			Merchant:    r.Merchant,
			Amount:      json.Number(r.Amount.String()),
			Description: r.Description,
			Category:    r.Category,
			AccountName: r.AccountName,
		})
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("renderRecords: marshal: %w", err)
	}
	return string(data), nil
}

// buildPersonaPrompt renders the persona-scoring system prompt.
func buildPersonaPrompt(personas domain.PersonaTable) string {
	var list strings.Builder
	for _, p := range personas.All() {
		fmt.Fprintf(&list, "%d. %s (%q): %s\n", p.ID, p.Name, p.CharacterAlias, p.Description)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a financial coach. Here are %d possible personas:\n\n", personas.Len())
	b.WriteString(list.String())
	b.WriteString("\nBased on the user's transaction history and spending patterns, choose exactly one persona ID.\n\n")
	b.WriteString("Then return only a JSON object with three keys:\n")
	fmt.Fprintf(&b, "  \"conversationPoints\": an array of %d-%d short, actionable strings,\n",
		MinConversationPoints, MaxConversationPoints)
	fmt.Fprintf(&b, "  \"persona_id\": the single chosen ID (integer 1-%d),\n", personas.Len())
	b.WriteString("  \"persona_scores\": an array with each persona's confidence score (number between 0 and 1) ")
	b.WriteString("at index id-1, summing to 1.0.\n\n")
	b.WriteString("Do not output any extra text, bullets, markdown, or code fences. Just the raw JSON.")
	return b.String()
}

func buildTransactionsUserPrompt(recordsJSON, ask string) string {
	return "Here are my transactions for the past year:\n\n" + recordsJSON + "\n\n" + ask
}

const narrativeSystemPrompt = "You are a financial analyst crafting an engaging, concise \"Year in Review\" narrative. " +
	"You'll be given a JSON array of transactions, each with date, merchant, amount, description, and category. " +
	"Summarize total spending, highlight the top 3 categories by spend, call out any notable merchants or patterns, " +
	"and wrap up with an overall reflection. " +
	"Write 1-2 short paragraphs in a friendly, conversational tone. Avoid jargon and technical terms."
