package models

// ReasonCode tags why a PreOCR decision was reached.
type ReasonCode string

const (
	ReasonImageFile         ReasonCode = "IMAGE_FILE"
	ReasonOfficeWithText    ReasonCode = "OFFICE_WITH_TEXT"
	ReasonPDFAssumedDigital ReasonCode = "PDF_ASSUMED_DIGITAL"
	ReasonUnknownFormat     ReasonCode = "UNKNOWN_FORMAT"
)

// PreOCRDecision estimates whether a file's text needs optical recovery.
type PreOCRDecision struct {
	NeedsOCR   bool       `json:"needs_ocr"`
	Confidence float64    `json:"confidence"`
	Reason     ReasonCode `json:"reason_code"`
}
