package classify

import (
	"fmt"
	"strings"
)

// Correction is a previously confirmed user classification, fed to the
// prompt so the model learns merchant-specific conventions.
type Correction struct {
	Pattern     string
	Category    string
	Subcategory string
	UsageCount  int64
}

// BuildPrompt renders the classification prompt for one expense. The
// taxonomy is listed in full so the model only picks from known labels,
// and past corrections are appended as worked examples.
func BuildPrompt(tax Taxonomy, description string, amount float64, corrections []Correction) string {
	var b strings.Builder

	b.WriteString("Eres un clasificador de gastos bancarios. Clasifica el siguiente movimiento en una de estas categorías y subcategorías:\n\n")
	for _, cat := range tax.Categories() {
		fmt.Fprintf(&b, "- %s: %s\n", cat, strings.Join(tax[cat], ", "))
	}

	if len(corrections) > 0 {
		b.WriteString("\nClasificaciones confirmadas por el usuario en el pasado:\n")
		for _, c := range corrections {
			fmt.Fprintf(&b, "- %q -> %s / %s\n", c.Pattern, c.Category, c.Subcategory)
		}
	}

	fmt.Fprintf(&b, "\nMovimiento:\nConcepto: %s\nImporte: %.2f\n\n", description, amount)
	b.WriteString("Responde SOLO con un objeto JSON con las claves \"categoria\" y \"subcategoria\". Sin explicaciones.")

	return b.String()
}
