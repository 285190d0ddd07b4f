package registration

import (
	"fmt"
	"regexp"

	"github.com/pkg/errors"

	"github.com/iba-dss/hxd-api/core"
)

var (
	phoneRegex       = regexp.MustCompile(`^03\d{9}$`)
	cnicRegex        = regexp.MustCompile(`^\d{13}$`)
	instituteIDRegex = regexp.MustCompile(`^\d{4,6}$`)
	emailRegex       = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

	errDraftInvalid = errors.New("registration is incomplete or invalid")
)

// ValidationContext carries what draft validation needs besides the draft
// itself.
type ValidationContext struct {
	Catalog Catalog
	Total   int
	// RequireOrderRef is false during payment initiation; the order reference
	// only becomes mandatory on final submission, and only for paid totals.
	RequireOrderRef bool
}

// participantField maps a participant index to its flat field prefix: the
// first participant is the team lead, the rest are p2..p4.
func participantField(i int, suffix string) string {
	if i == 0 {
		return "lead_" + suffix
	}
	return fmt.Sprintf("p%d_%s", i+1, suffix)
}

// ValidateDraft checks the whole draft and returns a *core.ValidationError
// naming every failing field, or nil. The draft must already be sanitized.
// Pure: repeated calls on an unchanged draft yield identical errors.
func ValidateDraft(d Draft, vc ValidationContext) error {
	var flds []core.FieldError

	if d.TeamName == "" {
		flds = append(flds, core.FieldError{Field: "team_name", Error: "team name is required"})
	}
	if d.Institute == "" && !d.Affiliated {
		flds = append(flds, core.FieldError{Field: "institute", Error: "institute is required"})
	}

	if len(d.Modules) == 0 {
		flds = append(flds, core.FieldError{Field: "modules", Error: "select at least one module"})
	} else {
		for _, id := range d.Modules {
			if _, ok := vc.Catalog.Get(id); !ok {
				flds = append(flds, core.FieldError{Field: "modules", Error: fmt.Sprintf("unknown module %q", id)})
			}
		}
		if max := vc.Catalog.MaxTeamSize(d.Modules); max > 0 && len(d.Participants) > max {
			flds = append(flds, core.FieldError{
				Field: "modules",
				Error: fmt.Sprintf("selected modules allow at most %d participants", max),
			})
		}
	}

	if len(d.Participants) == 0 {
		flds = append(flds, core.FieldError{Field: "lead_name", Error: "the team lead is required"})
	} else if len(d.Participants) > 4 {
		flds = append(flds, core.FieldError{Field: "participants", Error: "a team may have at most 4 participants"})
	}

	for i, p := range d.Participants {
		if p.FullName == "" {
			flds = append(flds, core.FieldError{Field: participantField(i, "name"), Error: "full name is required"})
		}
		if !phoneRegex.MatchString(p.Phone) {
			flds = append(flds, core.FieldError{
				Field: participantField(i, "phone"),
				Error: "enter a valid phone number (03XXXXXXXXX)",
			})
		}
		if d.Affiliated {
			if !instituteIDRegex.MatchString(p.CNIC) {
				flds = append(flds, core.FieldError{
					Field: participantField(i, "cnic"),
					Error: "enter a valid institutional ID (4-6 digits)",
				})
			}
		} else if !cnicRegex.MatchString(p.CNIC) {
			flds = append(flds, core.FieldError{
				Field: participantField(i, "cnic"),
				Error: "enter a valid 13-digit CNIC (no dashes)",
			})
		}
		if i == 0 && !emailRegex.MatchString(p.Email) {
			flds = append(flds, core.FieldError{Field: "lead_email", Error: "enter a valid email address"})
		}
	}

	if vc.RequireOrderRef && vc.Total > 0 && d.OrderReference == "" {
		flds = append(flds, core.FieldError{Field: "order_reference", Error: "payment order reference is required"})
	}

	if len(flds) > 0 {
		return core.NewValidationError(errDraftInvalid, flds...)
	}
	return nil
}
