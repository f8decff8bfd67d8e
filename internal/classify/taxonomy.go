// Package classify assigns a category and subcategory to each expense.
// The first configured AI provider is asked; when it is unavailable or
// returns garbage, deterministic keyword rules take over, so
// classification as a whole never fails.
package classify

import "sort"

// Taxonomy is the set of categories and subcategories the classification
// prompt offers to the model.
type Taxonomy map[string][]string

// DefaultTaxonomy returns the built-in Spanish expense taxonomy.
func DefaultTaxonomy() Taxonomy {
	return Taxonomy{
		"Alimentación": {"Supermercado", "Restaurantes", "Comida rápida", "Cafeterías"},
		"Transporte":   {"Combustible", "Transporte público", "Taxi/VTC", "Parking", "Peajes"},
		"Hogar":        {"Alquiler", "Hipoteca", "Suministros", "Mantenimiento", "Seguros hogar"},
		"Salud":        {"Farmacia", "Médico", "Dentista", "Óptica", "Seguro médico"},
		"Ocio":         {"Entretenimiento", "Viajes", "Deportes", "Suscripciones", "Cultura"},
		"Compras":      {"Ropa", "Electrónica", "Hogar", "Otros"},
		"Finanzas":     {"Transferencias", "Comisiones", "Impuestos", "Seguros"},
		"Ingresos":     {"Nómina", "Transferencia recibida", "Devolución", "Otros ingresos"},
		"Otros":        {"Sin categoría"},
	}
}

// Categories returns the category names in deterministic order.
func (t Taxonomy) Categories() []string {
	order := []string{
		"Alimentación", "Transporte", "Hogar", "Salud", "Ocio",
		"Compras", "Finanzas", "Ingresos", "Otros",
	}
	var out []string
	for _, c := range order {
		if _, ok := t[c]; ok {
			out = append(out, c)
		}
	}
	var extra []string
	for c := range t {
		if !contains(out, c) {
			extra = append(extra, c)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
