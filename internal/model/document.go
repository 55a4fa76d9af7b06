// Package model holds the IndexDocument product type and its enumerations.
package model

import "time"

// Source identifies which ingestion path produced an index row.
type Source string

const (
	SourceDuProcess  Source = "DuProcess"
	SourceHistorical Source = "Historical"
)

// DownloadStatus is the work-queue status field on IndexDocument.
type DownloadStatus string

const (
	StatusPending    DownloadStatus = "pending"
	StatusInProgress DownloadStatus = "in_progress"
	StatusCompleted  DownloadStatus = "completed"
	StatusFailed     DownloadStatus = "failed"
	StatusSkipped    DownloadStatus = "skipped"
)

// Portal is one of the three upstream record-serving interfaces.
type Portal string

const (
	PortalHistorical Portal = "Historical"
	PortalMid        Portal = "Mid"
	PortalNew        Portal = "New"
)

// RelatedItem is a single structured cross-reference parsed from
// related_items_raw by the related-items parser (C9).
type RelatedItem struct {
	InstrumentNumber int    `json:"instrument_number"`
	Book             int    `json:"book"`
	Page             int    `json:"page"`
	ExistsInDB       bool   `json:"exists_in_db"`
	TargetID         *int64 `json:"target_id"`
}

// IndexDocument is one row of the index store: one per recorded document.
type IndexDocument struct {
	ID         int64
	Source     Source
	SourceFile string

	// Record locators.
	Book             *int
	Page             *int
	InstrumentNumber *int
	GIN              *int
	BookVolume       *string

	// Document classification.
	InstrumentTypeRaw    *string
	InstrumentTypeParsed *string
	DocumentType         *string

	// Recording metadata.
	FileDate *time.Time
	NumPages *int

	PartyType       *string
	PartySeq        *int
	SearchedName    *string
	CrossPartyName  *string
	GrantorParty    *string
	GranteeParty    *string

	Description *string
	Location    *string
	Direction   *string
	Legals      *string
	SubDiv      *string
	Block       *string
	Lot         *string
	Sec         *string
	Town        *string
	Rng         *string
	Square      *string
	Remarks     *string

	// Sixteen quarter-section booleans (NE/NE, NE/NW, ... SW/SW etc, four
	// quarters each split into four sub-quarters).
	QuarterSections [16]bool

	Address   *string
	StreetName *string
	City      *string
	Zip       *string
	ParcelNum *string
	ParcelID  *string
	PPIN      *string
	PatentNum *string

	// Workflow fields, mutated by the pipeline.
	DownloadStatus   DownloadStatus
	DownloadPriority *int
	DownloadAttempts int
	DownloadError    *string
	DownloadedAt     *time.Time
	UpdatedAt        time.Time
	ImportDate       *time.Time
	GCSPath          *string
	ActualBook       *int
	ActualPage       *int
	BookPageMismatch bool

	RelatedItemsRaw *string
	RelatedItems    []RelatedItem
}

// MaxErrorLen is the truncation length for download_error, per §3/§7.
const MaxErrorLen = 500

// TruncateError truncates an error message to MaxErrorLen characters.
func TruncateError(s string) string {
	if len(s) <= MaxErrorLen {
		return s
	}
	return s[:MaxErrorLen]
}

// QuarterSectionNames gives the sixteen quarter-section boolean column
// names in storage order (NE-NE, NE-NW, NE-SE, NE-SW, NW-NE, ...).
var QuarterSectionNames = [16]string{
	"ne_ne", "ne_nw", "ne_se", "ne_sw",
	"nw_ne", "nw_nw", "nw_se", "nw_sw",
	"se_ne", "se_nw", "se_se", "se_sw",
	"sw_ne", "sw_nw", "sw_se", "sw_sw",
}
