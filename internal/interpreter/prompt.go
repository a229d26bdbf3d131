package interpreter

import (
	"strings"

	"github.com/dompet-app/dompet/internal/domain"
)

// buildPrompt renders the extraction instructions for one command. The
// output depends only on its inputs, so identical commands produce
// identical prompts.
func buildPrompt(command string, taxonomy domain.Taxonomy) string {
	var b strings.Builder

	b.WriteString("You are a personal finance assistant. Analyze the user's command and extract one transaction.\n\n")

	b.WriteString("User command: \"")
	b.WriteString(command)
	b.WriteString("\"\n\n")

	b.WriteString("Extract these fields:\n")
	b.WriteString("1. \"type\": \"income\" if money comes in (salary, savings deposit, gift received), \"expense\" if money goes out\n")
	b.WriteString("2. \"amount\": the amount as a plain number, without thousand separators or currency symbols (\"30rb\" means 30000, \"1,5jt\" means 1500000)\n")
	b.WriteString("3. \"category\": exactly one of the categories below\n")
	b.WriteString("4. \"note\": a short note describing the transaction\n\n")

	b.WriteString("Categories:\n")
	for _, name := range taxonomy.Names() {
		b.WriteString("  - " + name + "\n")
	}
	b.WriteString("\n")

	b.WriteString("Rules:\n")
	b.WriteString("- If no category clearly applies, use \"" + taxonomy.Fallback() + "\".\n")
	b.WriteString("- If there is no obvious note, write a short fitting one.\n")
	b.WriteString("- Respond with a single JSON object only, like this:\n")
	b.WriteString("{\n")
	b.WriteString("  \"type\": \"expense\",\n")
	b.WriteString("  \"amount\": 30000,\n")
	b.WriteString("  \"category\": \"" + taxonomy.Fallback() + "\",\n")
	b.WriteString("  \"note\": \"Note\"\n")
	b.WriteString("}\n")

	return b.String()
}
