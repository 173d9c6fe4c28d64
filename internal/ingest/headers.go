package ingest

import "strings"

// Field is one of the canonical contact attributes every file must supply.
type Field string

const (
	FieldEmail     Field = "email"
	FieldFirstName Field = "first_name"
	FieldLastName  Field = "last_name"
	FieldCompany   Field = "company"
)

// CanonicalFields lists the canonical fields in reporting order.
var CanonicalFields = []Field{FieldEmail, FieldFirstName, FieldLastName, FieldCompany}

// ParseField resolves a canonical field name.
func ParseField(name string) (Field, bool) {
	for _, f := range CanonicalFields {
		if string(f) == strings.ToLower(strings.TrimSpace(name)) {
			return f, true
		}
	}
	return "", false
}

// headerVariants maps each canonical field to its accepted spellings, already
// normalized (lower case, trimmed).
var headerVariants = map[Field]map[string]struct{}{
	FieldEmail: set(
		"email", "e-mail", "e_mail", "email_address", "email address", "emailaddress",
		"e-mail address", "mail", "correo", "endereco de email", "endereço de email",
	),
	FieldFirstName: set(
		"first_name", "firstname", "first name", "first", "given_name", "given name",
		"forename", "nome", "primeiro_nome", "primeiro nome",
	),
	FieldLastName: set(
		"last_name", "lastname", "last name", "last", "surname", "family_name",
		"family name", "sobrenome", "ultimo_nome", "último nome",
	),
	FieldCompany: set(
		"company", "company_name", "company name", "companyname", "organization",
		"organisation", "employer", "empresa", "companhia",
	),
}

func set(values ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}

// ColumnMap maps each canonical field to its source column index.
type ColumnMap map[Field]int

// Value returns the field's cell in row, or "" for short rows.
func (m ColumnMap) Value(row []string, f Field) string {
	idx, ok := m[f]
	if !ok || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// NormalizeHeader lower-cases and trims a raw header cell.
func NormalizeHeader(raw string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff")))
}

// MapHeaders resolves every canonical field to the first (leftmost) matching
// column. All four fields must resolve.
func MapHeaders(header []string) (ColumnMap, error) {
	cols := make(ColumnMap, len(CanonicalFields))
	for i, raw := range header {
		name := NormalizeHeader(raw)
		for _, f := range CanonicalFields {
			if _, taken := cols[f]; taken {
				continue
			}
			if _, ok := headerVariants[f][name]; ok {
				cols[f] = i
				break
			}
		}
	}
	var missing []Field
	for _, f := range CanonicalFields {
		if _, ok := cols[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		found := make([]string, len(header))
		for i, raw := range header {
			found[i] = strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff"))
		}
		return nil, &MissingHeadersError{Missing: missing, Found: found}
	}
	return cols, nil
}
