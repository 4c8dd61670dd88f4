package models

import (
	"fmt"
	"strings"

	"github.com/Epistemic-Technology/rental-check/internal/apperr"
)

// groundedField is a visitor view over one grounded value of an answer set.
type groundedField struct {
	path     string
	hasValue bool
	citation *string
}

func (a Answers) fields() []groundedField {
	fields := make([]groundedField, 0, len(a.Renters.Names)+5)
	for i, n := range a.Renters.Names {
		fields = append(fields, groundedField{
			path:     fmt.Sprintf("renters.names[%d].name", i),
			hasValue: n.Name.HasValue(),
			citation: n.Name.Citation,
		})
	}
	fields = append(fields,
		groundedField{path: "letting_agency", hasValue: a.LettingAgency.HasValue(), citation: a.LettingAgency.Citation},
		groundedField{path: "property_address", hasValue: a.PropertyAddress.HasValue(), citation: a.PropertyAddress.Citation},
		groundedField{path: "agreement_date", hasValue: a.AgreementDate.HasValue(), citation: a.AgreementDate.Citation},
		groundedField{path: "deposit", hasValue: a.Deposit.HasValue(), citation: a.Deposit.Citation},
		groundedField{path: "rent", hasValue: a.Rent.HasValue(), citation: a.Rent.Citation},
	)
	return fields
}

// Validate enforces that every grounded value carries a citation exactly
// when it carries a value. A monetary currency on its own is not a value.
func (a Answers) Validate() error {
	var problems []string
	for _, f := range a.fields() {
		switch {
		case f.hasValue && f.citation == nil:
			problems = append(problems, f.path+": value without citation")
		case !f.hasValue && f.citation != nil:
			problems = append(problems, f.path+": citation without value")
		}
	}
	if len(problems) > 0 {
		return apperr.Validation("citation invariant violated: "+strings.Join(problems, "; "), nil)
	}
	return nil
}

// Validate checks the citation invariant of a single value.
func (v NumericValue) Validate() error {
	if v.HasValue() != (v.Citation != nil) {
		return apperr.Validation("numeric value and citation must be set together", nil)
	}
	return nil
}

// CheckGrounding verifies that every citation is an exact contiguous
// substring of document.
func (a Answers) CheckGrounding(document string) error {
	for _, f := range a.fields() {
		if f.citation == nil {
			continue
		}
		if !strings.Contains(document, *f.citation) {
			return apperr.Validation(
				fmt.Sprintf("%s: citation %q not found in document", f.path, truncateForMessage(*f.citation)),
				nil,
			)
		}
	}
	return nil
}

func truncateForMessage(s string) string {
	const limit = 80
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}
