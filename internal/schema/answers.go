package schema

import "github.com/Epistemic-Technology/rental-check/models"

// AnswersName is the schema name sent with the structured-output request.
const AnswersName = "answers"

func citationProperty() map[string]any {
	return map[string]any{
		"type":        []string{"string", "null"},
		"description": models.CitationDescription,
	}
}

func nullable(typ string) map[string]any {
	return map[string]any{"type": []string{typ, "null"}}
}

func object(properties map[string]any, required ...string) map[string]any {
	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}

func stringValue() map[string]any {
	return object(map[string]any{
		"value":    nullable("string"),
		"citation": citationProperty(),
	}, "value", "citation")
}

func monetaryValue(description string) map[string]any {
	s := object(map[string]any{
		"amount":   nullable("number"),
		"currency": nullable("string"),
		"citation": citationProperty(),
	}, "amount", "currency", "citation")
	s["description"] = description
	return s
}

func dateValue() map[string]any {
	return object(map[string]any{
		"day":      nullable("integer"),
		"month":    nullable("integer"),
		"year":     nullable("integer"),
		"citation": citationProperty(),
	}, "day", "month", "year", "citation")
}

// NumericValue is the schema of a grounded number. No field of the answer
// set uses it.
func NumericValue() map[string]any {
	return object(map[string]any{
		"amount":   nullable("number"),
		"citation": citationProperty(),
	}, "amount", "citation")
}

// Answers returns the JSON schema of models.Answers in the strict form
// accepted by structured-output providers: every property required, no
// additional properties, optionality expressed as a null type.
func Answers() map[string]any {
	renters := object(map[string]any{
		"names": map[string]any{
			"type":        "array",
			"description": "Names of all listed renters for this property.",
			"items": object(map[string]any{
				"name": stringValue(),
			}, "name"),
		},
	}, "names")

	return object(map[string]any{
		"renters":          renters,
		"letting_agency":   stringValue(),
		"property_address": stringValue(),
		"agreement_date":   dateValue(),
		"deposit":          monetaryValue("Deposit amount with currency."),
		"rent":             monetaryValue("Monthly rent amount with currency."),
	}, "renters", "letting_agency", "property_address", "agreement_date", "deposit", "rent")
}
