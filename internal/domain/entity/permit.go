package entity

import (
	"fmt"
	"time"
)

// PermitNumberPrefix is the stable prefix of issued permit numbers
const PermitNumberPrefix = "AUT"

// Permit is the issued authorization document. Immutable once created;
// exactly one exists per approved request.
type Permit struct {
	ID           int64     `json:"id"`
	Number       string    `json:"number"`
	Year         int       `json:"year"`
	Sequence     int       `json:"sequence"`
	RequestID    int64     `json:"request_id"`
	PermitType   string    `json:"permit_type"`
	SignerName   string    `json:"signer_name"`
	DocumentPath string    `json:"document_path,omitempty"`
	EmittedAt    time.Time `json:"emitted_at"`

	Items []PermitItem `json:"items,omitempty"`
}

// PermitItem is one tariff-code line carried over from the issuing request
type PermitItem struct {
	ID          int64  `json:"id"`
	PermitID    int64  `json:"permit_id"`
	TariffCode  string `json:"tariff_code"`
	Description string `json:"description"`
}

// FormatPermitNumber renders the human-readable permit number,
// e.g. AUT-2024-0007
func FormatPermitNumber(year, sequence int) string {
	return fmt.Sprintf("%s-%d-%04d", PermitNumberPrefix, year, sequence)
}
