package classify

import "strings"

// keywordRule maps merchant keywords to a category. Rules are evaluated
// in order and the first hit wins.
type keywordRule struct {
	keywords []string
	category string
}

var fallbackRules = []keywordRule{
	{
		keywords: []string{"mercadona", "carrefour", "lidl", "aldi", "supermercado", "restaurante", "alcampo", "eroski"},
		category: "Alimentación",
	},
	{
		keywords: []string{"repsol", "cepsa", "bp", "galp", "gasolina", "gasolinera", "parking", "renfe", "metro", "cabify", "uber", "bolt"},
		category: "Transporte",
	},
	{
		keywords: []string{"iberdrola", "endesa", "naturgy", "agua", "luz", "gas", "movistar", "vodafone", "orange", "alquiler", "hipoteca"},
		category: "Hogar",
	},
	{
		keywords: []string{"farmacia", "medico", "clinica", "hospital", "gimnasio"},
		category: "Salud",
	},
	{
		keywords: []string{"netflix", "spotify", "amazon prime", "cine", "teatro", "hbo", "disney"},
		category: "Ocio",
	},
	{
		keywords: []string{"transferencia", "comision", "comisión", "seguro", "bizum"},
		category: "Finanzas",
	},
}

// FallbackClassify classifies an expense from keyword rules alone. A rule
// hit yields its category with no subcategory. It is total: an expense
// that matches no rule falls back to the amount sign, positive amounts
// being income.
func FallbackClassify(description string, amount float64) Classification {
	desc := strings.ToLower(description)

	for _, rule := range fallbackRules {
		for _, kw := range rule.keywords {
			if strings.Contains(desc, kw) {
				return Classification{
					Category:   rule.category,
					Provenance: ProvenanceFallback,
				}
			}
		}
	}

	if amount > 0 {
		return Classification{
			Category:    "Ingresos",
			Subcategory: "Otros ingresos",
			Provenance:  ProvenanceFallback,
		}
	}
	return Classification{
		Category:    "Otros",
		Subcategory: "Sin categoría",
		Provenance:  ProvenanceFallback,
	}
}
