package pipeline

const (
	// DefaultModelName is the default Gemini model used for parsing.
	DefaultModelName = "gemini-2.5-flash"

	// statementMIMEType is the only document type the parser accepts.
	statementMIMEType = "application/pdf"

	// dateLayout is the date format the model is asked to produce.
	dateLayout = "2006-01-02"
)
