package models

// CitationDescription is sent to the model as the description of every
// citation field.
const CitationDescription = "An exact sub-string of the provided text that provides the most relevant citation to the answer. Can be None if answer is None."

// StringValue is a grounded text answer.
type StringValue struct {
	Value    *string `json:"value"`
	Citation *string `json:"citation"`
}

// NumericValue is a grounded number (integer or decimal).
type NumericValue struct {
	Amount   *float64 `json:"amount"`
	Citation *string  `json:"citation"`
}

// MonetaryValue is a grounded amount of money. Amount carries the value;
// Currency qualifies it and is only meaningful when Amount is set.
type MonetaryValue struct {
	Amount   *float64 `json:"amount"`
	Currency *string  `json:"currency"`
	Citation *string  `json:"citation"`
}

// DateValue is a grounded calendar date. Components are not checked against
// a calendar, so 31/2/2024 is representable.
type DateValue struct {
	Day      *int    `json:"day"`
	Month    *int    `json:"month"`
	Year     *int    `json:"year"`
	Citation *string `json:"citation"`
}

type Name struct {
	Name StringValue `json:"name"`
}

type Renters struct {
	Names []Name `json:"names"`
}

// Answers is the structured result of one extraction run.
type Answers struct {
	Renters         Renters       `json:"renters"`
	LettingAgency   StringValue   `json:"letting_agency"`
	PropertyAddress StringValue   `json:"property_address"`
	AgreementDate   DateValue     `json:"agreement_date"`
	Deposit         MonetaryValue `json:"deposit"`
	Rent            MonetaryValue `json:"rent"`
}

// Empty returns an answer set in which nothing was found.
func Empty() Answers {
	return Answers{Renters: Renters{Names: []Name{}}}
}

func NewStringValue(value, citation string) StringValue {
	return StringValue{Value: &value, Citation: &citation}
}

func NewNumericValue(amount float64, citation string) NumericValue {
	return NumericValue{Amount: &amount, Citation: &citation}
}

func NewMonetaryValue(amount float64, currency, citation string) MonetaryValue {
	return MonetaryValue{Amount: &amount, Currency: &currency, Citation: &citation}
}

func NewDateValue(day, month, year int, citation string) DateValue {
	return DateValue{Day: &day, Month: &month, Year: &year, Citation: &citation}
}

// HasValue reports whether a value was found.
func (v StringValue) HasValue() bool { return v.Value != nil }

func (v NumericValue) HasValue() bool { return v.Amount != nil }

func (v MonetaryValue) HasValue() bool { return v.Amount != nil }

func (v DateValue) HasValue() bool {
	return v.Day != nil || v.Month != nil || v.Year != nil
}

// SourceInfo records where a contract came from.
type SourceInfo struct {
	Path     string `json:"path,omitempty"`
	URL      string `json:"url,omitempty"`
	ZoteroID string `json:"zotero_id,omitempty"`
}

// ExtractionRecord is a stored extraction run.
type ExtractionRecord struct {
	RunID         string     `json:"run_id"`
	DocumentID    string     `json:"document_id"`
	DocumentName  string     `json:"document_name"`
	Source        SourceInfo `json:"source"`
	Model         string     `json:"model"`
	OriginalChars int        `json:"original_chars"`
	Truncated     bool       `json:"truncated"`
	Pages         int        `json:"pages"`
	Answers       Answers    `json:"answers"`
	CreatedAt     string     `json:"created_at,omitempty"`
}

// DocumentData is raw document bytes with the detected type.
type DocumentData struct {
	Data []byte
	Type string
	Name string
}
