package pipeline

import (
	"strings"

	"github.com/dvloznov/asset-tracker/internal/models"
)

// buildStatementPrompt constructs the instructions sent alongside the PDF.
// The allowed transaction types depend on the account the statement is
// imported into.
func buildStatementPrompt(hint StatementHint) string {
	var b strings.Builder

	b.WriteString("You are a financial statement parser.\n\n")
	b.WriteString("Task:\n")
	b.WriteString("- Parse ALL transactions in the attached statement")
	if hint.Institution != "" {
		b.WriteString(" issued by " + hint.Institution)
	}
	b.WriteString(".\n")
	b.WriteString("- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n")
	b.WriteString("- Output a JSON array of objects.\n\n")

	b.WriteString("Each object must have these fields:\n")
	b.WriteString("- \"date\": string, ISO format \"YYYY-MM-DD\"\n")
	b.WriteString("- \"description\": string\n")
	b.WriteString("- \"amount\": number (positive for money IN, negative for money OUT)\n")
	b.WriteString("- \"currency\": string (e.g. \"" + currencyOrDefault(hint.Currency) + "\")\n")
	b.WriteString("- \"type\": string or null, one of: ")
	types := models.TransactionTypesFor(models.AccountType(hint.AccountType))
	for i, t := range types {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(string(t))
	}
	b.WriteString("\n")
	b.WriteString("- \"asset_name\": string or null (ticker or security name of the asset traded)\n")
	b.WriteString("- \"asset_quantity\": number or null (units bought or sold)\n\n")

	b.WriteString("Rules:\n")
	b.WriteString("- If the statement has separate \"paid out\" / \"paid in\" columns, convert to a single signed \"amount\".\n")
	b.WriteString("- Use null for \"type\" when no listed type fits.\n")
	b.WriteString("- Use null for asset fields on pure cash movements.\n\n")

	b.WriteString("Return ONLY valid raw JSON.\n")
	b.WriteString("Do NOT wrap the response in code fences.\n")
	b.WriteString("Do NOT use ```json or any Markdown.\n")
	b.WriteString("Output must begin with \"[\" and end with \"]\".\n")

	return b.String()
}

func currencyOrDefault(currency string) string {
	if currency == "" {
		return "CAD"
	}
	return currency
}
