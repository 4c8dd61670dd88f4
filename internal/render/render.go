// Package render formats an answer set for people to read.
package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Epistemic-Technology/rental-check/models"
)

// Text writes one entry per answer, each followed by its citation, and a
// "No ... found." line for every fact without a value.
func Text(w io.Writer, a models.Answers) error {
	var b strings.Builder

	renters := 0
	for _, n := range a.Renters.Names {
		if !n.Name.HasValue() {
			continue
		}
		entry(&b, "Renter Name", *n.Name.Value, n.Name.Citation)
		renters++
	}
	if renters == 0 {
		b.WriteString("No renters found.\n")
	}

	if a.LettingAgency.HasValue() {
		entry(&b, "Agency Name", *a.LettingAgency.Value, a.LettingAgency.Citation)
	} else {
		b.WriteString("No letting agency found.\n")
	}

	if a.PropertyAddress.HasValue() {
		entry(&b, "Address", *a.PropertyAddress.Value, a.PropertyAddress.Citation)
	} else {
		b.WriteString("No property address found.\n")
	}

	if a.AgreementDate.HasValue() {
		entry(&b, "Agreement Date", FormatDate(a.AgreementDate), a.AgreementDate.Citation)
	} else {
		b.WriteString("No agreement date found.\n")
	}

	if a.Deposit.HasValue() {
		entry(&b, "Deposit", FormatMoney(a.Deposit), a.Deposit.Citation)
	} else {
		b.WriteString("No deposit information found.\n")
	}

	if a.Rent.HasValue() {
		entry(&b, "Rent", FormatMoney(a.Rent), a.Rent.Citation)
	} else {
		b.WriteString("No rent information found.\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// String returns the Text rendering of a.
func String(a models.Answers) string {
	var b strings.Builder
	_ = Text(&b, a)
	return b.String()
}

// FormatDate renders day/month/year with "?" for unknown parts.
func FormatDate(d models.DateValue) string {
	part := func(p *int) string {
		if p == nil {
			return "?"
		}
		return strconv.Itoa(*p)
	}
	return part(d.Day) + "/" + part(d.Month) + "/" + part(d.Year)
}

// FormatMoney renders "amount currency", omitting an unknown currency.
func FormatMoney(m models.MonetaryValue) string {
	if m.Amount == nil {
		return ""
	}
	amount := strconv.FormatFloat(*m.Amount, 'f', -1, 64)
	if m.Currency == nil || *m.Currency == "" {
		return amount
	}
	return amount + " " + *m.Currency
}

func entry(b *strings.Builder, label, value string, citation *string) {
	fmt.Fprintf(b, "%s: %s\n", label, value)
	fmt.Fprintf(b, "  Citation: %s\n", deref(citation))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
