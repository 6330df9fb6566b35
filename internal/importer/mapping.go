package importer

import (
	"strings"

	"github.com/schollz/closestmatch"
)

// Field is a target domain field a spreadsheet column can map to.
type Field string

const (
	FieldName        Field = "name"
	FieldDocNumber   Field = "docNumber"
	FieldEmail       Field = "email"
	FieldPhone       Field = "phone"
	FieldServiceType Field = "serviceType"
	FieldRoomNumber  Field = "roomNumber"
	FieldStatus      Field = "status"
)

// Fields is the fixed detection order. Detection must be deterministic,
// so synonym scanning never iterates a map.
var Fields = []Field{
	FieldName,
	FieldDocNumber,
	FieldEmail,
	FieldPhone,
	FieldServiceType,
	FieldRoomNumber,
	FieldStatus,
}

// RequiredFields must be mapped before any row is transformed.
var RequiredFields = []Field{FieldName, FieldDocNumber, FieldServiceType}

// synonyms is the only schema integrators see: to support a new header
// naming convention, extend the list for the matching field. Matching is
// lowercased, trimmed, exact or substring.
var synonyms = map[Field][]string{
	FieldName:        {"nome", "razão social", "razao social", "cliente", "empresa", "customer", "name"},
	FieldDocNumber:   {"cnpj", "cpf", "documento", "doc", "cpf/cnpj"},
	FieldEmail:       {"email", "e-mail"},
	FieldPhone:       {"telefone", "celular", "fone", "whatsapp", "phone"},
	FieldServiceType: {"plano", "serviço", "servico", "produto", "service", "plan"},
	FieldRoomNumber:  {"sala", "estação", "estacao", "room", "unidade"},
	FieldStatus:      {"status", "situação", "situacao"},
}

// Mapping assigns a spreadsheet column header to each target field.
// An absent key means the field is unmapped.
type Mapping map[Field]string

// DetectMapping guesses which column feeds each target field. For each
// field, headers are scanned in order and the first header whose
// normalized text equals or contains one of the field's synonyms wins.
// Fields with no match are left out so the caller can ask the user.
// Pure and idempotent: the same headers always yield the same mapping.
func DetectMapping(headers []string) Mapping {
	mapping := make(Mapping, len(Fields))
	for _, field := range Fields {
		for _, header := range headers {
			if matchesField(field, header) {
				mapping[field] = header
				break
			}
		}
	}
	return mapping
}

func matchesField(field Field, header string) bool {
	normalized := strings.ToLower(strings.TrimSpace(header))
	if normalized == "" {
		return false
	}
	for _, synonym := range synonyms[field] {
		if normalized == synonym || strings.Contains(normalized, synonym) {
			return true
		}
	}
	return false
}

// MissingRequired returns the required fields that are unmapped or
// mapped to a blank column name.
func (m Mapping) MissingRequired() []Field {
	var missing []Field
	for _, field := range RequiredFields {
		if strings.TrimSpace(m[field]) == "" {
			missing = append(missing, field)
		}
	}
	return missing
}

// Suggest offers a fuzzy header candidate for each field DetectMapping
// left unmapped. Suggestions are UI hints only and are never applied
// without the user confirming them.
func Suggest(headers []string, mapping Mapping) map[Field]string {
	unmapped := make([]Field, 0, len(Fields))
	for _, field := range Fields {
		if strings.TrimSpace(mapping[field]) == "" {
			unmapped = append(unmapped, field)
		}
	}
	if len(unmapped) == 0 || len(headers) == 0 {
		return nil
	}

	normalized := make([]string, 0, len(headers))
	original := make(map[string]string, len(headers))
	for _, header := range headers {
		key := strings.ToLower(strings.TrimSpace(header))
		if key == "" {
			continue
		}
		normalized = append(normalized, key)
		if _, seen := original[key]; !seen {
			original[key] = header
		}
	}
	if len(normalized) == 0 {
		return nil
	}

	cm := closestmatch.New(normalized, []int{2, 3})
	suggestions := make(map[Field]string, len(unmapped))
	for _, field := range unmapped {
		best := cm.Closest(string(field))
		if best == "" {
			continue
		}
		suggestions[field] = original[best]
	}
	return suggestions
}
