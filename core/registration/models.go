package registration

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/iba-dss/hxd-api/core"
)

var (
	// errors
	ErrNotFound       = errors.New("registration not found")
	ErrSubmitInFlight = errors.New("a submission for this registration is already in progress")
	ErrSubmitFailed   = errors.New("could not reach the registration service, please try again")
)

// UpstreamError carries a business rejection from the spreadsheet backend
// (e.g. duplicate registration). Its message is authoritative and is shown
// to the user verbatim; it is never retried.
type UpstreamError struct {
	Message string
}

func (e *UpstreamError) Error() string { return e.Message }

type PaymentState string

const (
	PaymentNotStarted        PaymentState = "NOT_STARTED"
	PaymentInitiated         PaymentState = "INITIATED"
	PaymentReferenceProvided PaymentState = "REFERENCE_PROVIDED"
)

type (
	Participant struct {
		FullName string `json:"full_name"`
		Phone    string `json:"phone"`
		CNIC     string `json:"cnic"` // 13-digit CNIC, or a 4-6 digit campus ID for affiliated teams
		Email    string `json:"email,omitempty"`
	}

	// Draft is the in-progress, unsubmitted registration. Each session owns its
	// draft exclusively; the first participant is the team lead and is the only
	// one carrying an email address.
	Draft struct {
		Key            string        `json:"key"`
		TeamName       string        `json:"team_name"`
		Institute      string        `json:"institute"`
		Affiliated     bool          `json:"affiliated"`
		Modules        []string      `json:"modules"`
		Participants   []Participant `json:"participants"`
		PaymentState   PaymentState  `json:"payment_state"`
		OrderReference string        `json:"order_reference"`
		CreatedAt      time.Time     `json:"created_at"` // UTC
		UpdatedAt      time.Time     `json:"updated_at"` // UTC
	}

	// SnapshotRepository persists in-progress drafts keyed by session. Snapshots
	// are overwritten on every mutation and deleted once a final submission
	// succeeds.
	SnapshotRepository interface {
		SaveDraft(ctx context.Context, draft Draft) error // upsert by key
		GetDraft(ctx context.Context, key string) (Draft, error)
		DeleteDraft(ctx context.Context, key string) error
	}

	// SheetClient talks to the external spreadsheet web app; the system of
	// record once a registration is submitted.
	SheetClient interface {
		SubmitRecord(ctx context.Context, rec Record) (Result, error)
		EditLogin(ctx context.Context, cnic, key string) (Result, error)
		EditUpdate(ctx context.Context, upd EditUpdate) (Result, error)
	}
)

func (d *Draft) Lead() Participant {
	if len(d.Participants) == 0 {
		return Participant{}
	}
	return d.Participants[0]
}

// Sanitize strips unsafe characters from every user-supplied field and
// resolves the institute for affiliated teams. Idempotent.
func (d *Draft) Sanitize(affiliateInstitute string) {
	d.TeamName = core.SanitizeString(d.TeamName)
	d.Institute = core.SanitizeString(d.Institute)
	if d.Affiliated {
		d.Institute = affiliateInstitute
	}
	d.OrderReference = core.SanitizeString(d.OrderReference)
	for i := range d.Modules {
		d.Modules[i] = core.SanitizeString(d.Modules[i])
	}
	for i := range d.Participants {
		p := &d.Participants[i]
		p.FullName = core.SanitizeString(p.FullName)
		p.Phone = core.StripSeparators(core.SanitizeString(p.Phone))
		p.CNIC = core.StripSeparators(core.SanitizeString(p.CNIC))
		p.Email = core.CleanString(core.SanitizeString(p.Email), true /* lower */)
	}
}

// Record statuses
const (
	RecordStatusPending = "pending" // payment initiated, awaiting confirmation
	RecordStatusFinal   = "final"
)

// Record is the flat row shape the spreadsheet backend expects.
type Record struct {
	Status         string `json:"status"`
	Key            string `json:"key"`
	TeamName       string `json:"team_name"`
	Institute      string `json:"institute"`
	Modules        string `json:"modules"` // comma-separated module ids
	LeadName       string `json:"lead_name"`
	LeadPhone      string `json:"lead_phone"`
	LeadEmail      string `json:"lead_email"`
	LeadCNIC       string `json:"lead_cnic"`
	P2Name         string `json:"p2_name,omitempty"`
	P2Phone        string `json:"p2_phone,omitempty"`
	P2CNIC         string `json:"p2_cnic,omitempty"`
	P3Name         string `json:"p3_name,omitempty"`
	P3Phone        string `json:"p3_phone,omitempty"`
	P3CNIC         string `json:"p3_cnic,omitempty"`
	P4Name         string `json:"p4_name,omitempty"`
	P4Phone        string `json:"p4_phone,omitempty"`
	P4CNIC         string `json:"p4_cnic,omitempty"`
	OrderReference string `json:"order_reference,omitempty"`
	TotalFee       int    `json:"total_fee"`
	SubmittedAt    string `json:"submitted_at"` // RFC3339, UTC
}

// NewRecord flattens a draft into the sheet row shape.
func NewRecord(d Draft, status string, total int, now time.Time) Record {
	rec := Record{
		Status:         status,
		Key:            d.Key,
		TeamName:       d.TeamName,
		Institute:      d.Institute,
		Modules:        strings.Join(d.Modules, ","),
		OrderReference: d.OrderReference,
		TotalFee:       total,
		SubmittedAt:    now.UTC().Format(time.RFC3339),
	}
	for i, p := range d.Participants {
		switch i {
		case 0:
			rec.LeadName, rec.LeadPhone, rec.LeadCNIC, rec.LeadEmail = p.FullName, p.Phone, p.CNIC, p.Email
		case 1:
			rec.P2Name, rec.P2Phone, rec.P2CNIC = p.FullName, p.Phone, p.CNIC
		case 2:
			rec.P3Name, rec.P3Phone, rec.P3CNIC = p.FullName, p.Phone, p.CNIC
		case 3:
			rec.P4Name, rec.P4Phone, rec.P4CNIC = p.FullName, p.Phone, p.CNIC
		}
	}
	return rec
}

// Upstream result values
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultRetry   = "retry" // transient, re-attempt once after a fixed delay
)

// Result is the spreadsheet backend's response envelope.
type Result struct {
	Result  string          `json:"result"`
	Message string          `json:"message,omitempty"`
	Row     json.RawMessage `json:"row,omitempty"` // stored row, returned on edit-login
}

// EditUpdate defines what a team may change on its stored registration after
// logging into the edit flow.
type EditUpdate struct {
	RowIndex  int    `json:"row_index" validate:"required"`
	TeamName  string `json:"team_name"`
	Institute string `json:"institute"`
	LeadPhone string `json:"lead_phone" validate:"omitempty,pkmobile"`
	LeadEmail string `json:"lead_email" validate:"omitempty,email"`
	P2Name    string `json:"p2_name"`
	P2Phone   string `json:"p2_phone" validate:"omitempty,pkmobile"`
	P2CNIC    string `json:"p2_cnic" validate:"omitempty,cnic"`
	P3Name    string `json:"p3_name"`
	P3Phone   string `json:"p3_phone" validate:"omitempty,pkmobile"`
	P3CNIC    string `json:"p3_cnic" validate:"omitempty,cnic"`
}
