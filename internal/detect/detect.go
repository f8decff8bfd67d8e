// Package detect maps the arbitrary column names of a bank export to the
// three roles an expense needs: date, description and amount. Matching by
// header name comes first; columns left unresolved are sniffed by content.
package detect

import (
	"strings"

	"github.com/dvloznov/expense-classifier/internal/ingest"
)

// Role identifies one of the semantic columns of a statement.
type Role string

const (
	RoleDate        Role = "date"
	RoleDescription Role = "description"
	RoleAmount      Role = "amount"
)

// roleOrder fixes the priority in which roles claim columns during name
// matching. Earlier roles win contested columns.
var roleOrder = []Role{RoleDate, RoleDescription, RoleAmount}

// Header name fragments per role, compared after normalization. Spanish
// bank exports dominate, with the common English aliases included.
var namePatterns = map[Role][]string{
	RoleDate: {
		"fecha", "date", "f.valor", "f.operacion",
		"fecha_operacion", "fecha_valor", "f. valor", "f. operacion", "data",
	},
	RoleDescription: {
		"concepto", "descripcion", "description", "detalle", "movimiento",
		"comercio", "beneficiario", "pagador", "texto", "referencia",
	},
	RoleAmount: {
		"importe", "cantidad", "amount", "monto", "valor", "total",
		"cargo", "abono", "saldo", "euros", "eur",
	},
}

// ColumnRef names a detected column together with its position, so that
// duplicate header names stay unambiguous.
type ColumnRef struct {
	Name  string
	Index int
}

// Mapping is the result of detection: one column per resolved role.
type Mapping map[Role]ColumnRef

// sniffSampleSize caps the number of non-empty cells examined per column
// during content sniffing.
const sniffSampleSize = 100

// contentThreshold is the fraction of sampled cells that must satisfy a
// role's predicate. Strictly-greater comparison: exactly 80% is rejected.
const contentThreshold = 0.8

// sniffOrder fixes the role priority during content sniffing. It differs
// from name matching on purpose: numeric columns are cheaper to recognize
// than free text, so amount is resolved before description.
var sniffOrder = []Role{RoleDate, RoleAmount, RoleDescription}

// Detect resolves the date, description and amount columns of a table.
// Roles resolved by header name are never reconsidered by the content
// phase, and a column claimed by one role is unavailable to the rest.
// Roles missing from the returned mapping could not be detected.
func Detect(t *ingest.Table) Mapping {
	mapping := Mapping{}
	claimed := make(map[int]bool)

	for _, role := range roleOrder {
		if ref, ok := findByName(t.Columns, namePatterns[role], claimed); ok {
			mapping[role] = ref
			claimed[ref.Index] = true
		}
	}

	for _, role := range sniffOrder {
		if _, ok := mapping[role]; ok {
			continue
		}
		for idx, name := range t.Columns {
			if claimed[idx] {
				continue
			}
			if sniffColumn(t, idx, role) {
				mapping[role] = ColumnRef{Name: name, Index: idx}
				claimed[idx] = true
				break
			}
		}
	}

	return mapping
}

// Missing lists the roles a mapping failed to resolve, in fixed order.
func (m Mapping) Missing() []Role {
	var missing []Role
	for _, role := range roleOrder {
		if _, ok := m[role]; !ok {
			missing = append(missing, role)
		}
	}
	return missing
}

// normalizeName lowercases and strips everything that is not a letter or
// digit, so "F. Valor", "f.valor" and "FVALOR" all compare equal.
func normalizeName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r > 127 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// findByName resolves one role by header name. Patterns are tried in
// priority order and each pattern scans the columns in table order, so
// "Importe" beats "Saldo" for the amount role even when Saldo comes
// first. Containment is checked in both directions so that both "fecha
// valor" against "fecha" and "f.v" against "f.valor" style abbreviations
// work.
func findByName(columns []string, patterns []string, claimed map[int]bool) (ColumnRef, bool) {
	for _, p := range patterns {
		np := normalizeName(p)
		for idx, name := range columns {
			if claimed[idx] {
				continue
			}
			h := normalizeName(name)
			if h == "" {
				continue
			}
			if strings.Contains(h, np) || strings.Contains(np, h) {
				return ColumnRef{Name: name, Index: idx}, true
			}
		}
	}
	return ColumnRef{}, false
}

// sniffColumn samples up to sniffSampleSize non-empty cells of a column
// and applies the role's content predicate.
func sniffColumn(t *ingest.Table, idx int, role Role) bool {
	var sample []string
	for _, row := range t.Rows {
		if idx >= len(row) {
			continue
		}
		v := strings.TrimSpace(row[idx])
		if v == "" {
			continue
		}
		sample = append(sample, v)
		if len(sample) == sniffSampleSize {
			break
		}
	}
	if len(sample) == 0 {
		return false
	}

	switch role {
	case RoleDate:
		return fraction(sample, looksLikeDate) > contentThreshold
	case RoleAmount:
		return fraction(sample, looksLikeAmount) > contentThreshold
	case RoleDescription:
		return meanLength(sample) > 10
	}
	return false
}

func fraction(sample []string, pred func(string) bool) float64 {
	hits := 0
	for _, v := range sample {
		if pred(v) {
			hits++
		}
	}
	return float64(hits) / float64(len(sample))
}

func meanLength(sample []string) float64 {
	total := 0
	for _, v := range sample {
		total += len([]rune(v))
	}
	return float64(total) / float64(len(sample))
}

func looksLikeDate(v string) bool {
	_, err := ParseDate(v)
	return err == nil
}

func looksLikeAmount(v string) bool {
	_, err := ParseAmount(v)
	return err == nil
}
