package registration

import (
	"context"
	"fmt"
	"net/mail"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iba-dss/hxd-api/core"
)

// Service orchestrates the registration flow: draft persistence, pricing,
// validation, payment initiation and final submission to the sheet backend.
type Service struct {
	conf    *core.Config
	repo    SnapshotRepository
	sheet   SheetClient
	mailSvc core.EmailService
	log     core.Logger
	catalog Catalog

	// single-flight guard: at most one final submission in flight per draft key
	mu       sync.Mutex
	inFlight map[string]struct{}

	now func() time.Time
}

func NewService(conf *core.Config, repo SnapshotRepository, sheet SheetClient, mailSvc core.EmailService, log core.Logger) *Service {
	return &Service{
		conf:     conf,
		repo:     repo,
		sheet:    sheet,
		mailSvc:  mailSvc,
		log:      log,
		catalog:  NewCatalog(conf.Registration.WaivableModule),
		inFlight: make(map[string]struct{}),
		now:      time.Now,
	}
}

func (svc *Service) Catalog() Catalog { return svc.catalog }

func (svc *Service) EarlyBirdCutoff() time.Time { return svc.conf.Registration.EarlyBirdCutoff }

// EarlyBirdActive reports whether early-bird pricing currently applies.
// Read against the wall clock on every call so date rollover takes effect
// without a restart.
func (svc *Service) EarlyBirdActive() bool {
	return svc.now().Before(svc.conf.Registration.EarlyBirdCutoff)
}

// Quote prices the draft as-is. A zero total with no modules selected means
// "incomplete", not "free".
func (svc *Service) Quote(d Draft) int {
	return ComputeTotal(d, svc.catalog, svc.conf.Registration.EarlyBirdCutoff, svc.now())
}

// Validate sanitizes and checks the whole draft. The order reference is only
// enforced on final submission (requireOrderRef) and only for paid totals.
func (svc *Service) Validate(d Draft, requireOrderRef bool) error {
	d.Sanitize(svc.conf.Registration.AffiliateInstitute)
	return ValidateDraft(d, ValidationContext{
		Catalog:         svc.catalog,
		Total:           svc.Quote(d),
		RequireOrderRef: requireOrderRef,
	})
}

func (svc *Service) NewDraft(ctx context.Context) (Draft, error) {
	now := svc.now().UTC()
	d := Draft{
		Key:          uuid.New().String(),
		PaymentState: PaymentNotStarted,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := svc.repo.SaveDraft(ctx, d); err != nil {
		return Draft{}, err
	}
	return d, nil
}

func (svc *Service) Get(ctx context.Context, key string) (Draft, error) {
	return svc.repo.GetDraft(ctx, key)
}

// Save overwrites the stored snapshot with the given draft state and returns
// the updated draft plus its quoted total. Every mutation persists, valid or
// not, so a reload never loses progress.
func (svc *Service) Save(ctx context.Context, key string, d Draft) (Draft, int, error) {
	orig, err := svc.repo.GetDraft(ctx, key)
	if err != nil {
		return Draft{}, 0, err
	}

	d.Key = key
	d.CreatedAt = orig.CreatedAt
	d.UpdatedAt = svc.now().UTC()
	if d.PaymentState == "" {
		d.PaymentState = orig.PaymentState
	}
	d.Sanitize(svc.conf.Registration.AffiliateInstitute)

	if err = svc.repo.SaveDraft(ctx, d); err != nil {
		return Draft{}, 0, err
	}
	return d, svc.Quote(d), nil
}

func (svc *Service) Delete(ctx context.Context, key string) error {
	return svc.repo.DeleteDraft(ctx, key)
}

// InitiatePayment validates the draft (minus the order reference), marks the
// payment as initiated and returns the external payment link for the team
// size. A "pending" record is sent to the sheet in the background; its failure
// is logged and never surfaced.
func (svc *Service) InitiatePayment(ctx context.Context, key string) (Draft, string, error) {
	d, err := svc.repo.GetDraft(ctx, key)
	if err != nil {
		return Draft{}, "", err
	}
	d.Sanitize(svc.conf.Registration.AffiliateInstitute)

	total := svc.Quote(d)
	if err = ValidateDraft(d, ValidationContext{Catalog: svc.catalog, Total: total}); err != nil {
		return Draft{}, "", err
	}

	d.PaymentState = PaymentInitiated
	d.UpdatedAt = svc.now().UTC()
	if err = svc.repo.SaveDraft(ctx, d); err != nil {
		return Draft{}, "", err
	}

	svc.sendPendingRecord(NewRecord(d, RecordStatusPending, total, svc.now()))

	var link string
	if n := len(d.Participants); n >= 1 && n <= len(svc.conf.Registration.PaymentLinks) {
		link = svc.conf.Registration.PaymentLinks[n-1]
	}
	return d, link, nil
}

// sendPendingRecord is fire-and-forget: an unacknowledged at-most-once side
// effect that must never block or fail the payment flow.
func (svc *Service) sendPendingRecord(rec Record) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), svc.conf.Sheets.Timeout)
		defer cancel()

		res, err := svc.sheet.SubmitRecord(ctx, rec)
		if err != nil {
			svc.log.Warn(fmt.Sprintf("registration: pending record for %s not sent: %v", rec.Key, err))
		} else if res.Result != ResultSuccess {
			svc.log.Warn(fmt.Sprintf("registration: pending record for %s rejected: %s", rec.Key, res.Message))
		}
	}()
}

// Submit runs full validation and sends the final record to the sheet. A
// "retry" result triggers exactly one automatic re-attempt after a fixed
// delay; a second non-success is treated as a connectivity failure. On success
// the stored snapshot is deleted and a confirmation email goes out to the
// team lead. Once the request is in flight there is no cancellation.
func (svc *Service) Submit(ctx context.Context, key, orderReference string) (Draft, error) {
	d, err := svc.repo.GetDraft(ctx, key)
	if err != nil {
		return Draft{}, err
	}
	if ref := core.SanitizeString(orderReference); ref != "" {
		d.OrderReference = ref
		d.PaymentState = PaymentReferenceProvided
	}
	d.Sanitize(svc.conf.Registration.AffiliateInstitute)

	total := svc.Quote(d)
	if err = ValidateDraft(d, ValidationContext{Catalog: svc.catalog, Total: total, RequireOrderRef: true}); err != nil {
		return Draft{}, err
	}

	if !svc.acquire(key) {
		return Draft{}, ErrSubmitInFlight
	}
	defer svc.release(key)

	d.UpdatedAt = svc.now().UTC()
	if err = svc.repo.SaveDraft(ctx, d); err != nil {
		return Draft{}, err
	}

	rec := NewRecord(d, RecordStatusFinal, total, svc.now())
	res, err := svc.sheet.SubmitRecord(ctx, rec)
	if err == nil && res.Result == ResultRetry {
		time.Sleep(svc.conf.Registration.SubmitRetryDelay)
		res, err = svc.sheet.SubmitRecord(ctx, rec)
	}
	if err != nil {
		svc.log.Error(fmt.Sprintf("registration: final record for %s not sent: %v", key, err))
		return d, ErrSubmitFailed
	}

	switch res.Result {
	case ResultSuccess:
		if err = svc.repo.DeleteDraft(ctx, key); err != nil {
			// the registration went through; losing the cleanup only leaves a stale snapshot
			svc.log.Warn(fmt.Sprintf("registration: snapshot cleanup for %s failed: %v", key, err))
		}
		svc.sendConfirmation(d, total)
		return d, nil
	case ResultError:
		if res.Message == "" {
			return d, ErrSubmitFailed
		}
		return d, &UpstreamError{Message: res.Message}
	default:
		return d, ErrSubmitFailed
	}
}

func (svc *Service) sendConfirmation(d Draft, total int) {
	lead := d.Lead()
	if lead.Email == "" {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: lead.FullName, Address: lead.Email}},
		Subject:      fmt.Sprintf("%s - Registration Confirmed", svc.conf.AppName),
		TemplateName: "registration-confirmed",
		TemplateData: struct {
			TeamName string
			Modules  []string
			Total    int
		}{d.TeamName, d.Modules, total},
	})
}

// EditLogin authenticates a team against its stored row using the lead CNIC
// and the registration key issued at submission.
func (svc *Service) EditLogin(ctx context.Context, cnic, key string) (Result, error) {
	cnic = core.StripSeparators(core.SanitizeString(cnic))
	key = core.SanitizeString(key)

	var flds []core.FieldError
	if cnic == "" {
		flds = append(flds, core.FieldError{Field: "cnic", Error: "CNIC is required"})
	}
	if key == "" {
		flds = append(flds, core.FieldError{Field: "key", Error: "registration key is required"})
	}
	if len(flds) > 0 {
		return Result{}, core.NewValidationError(errDraftInvalid, flds...)
	}

	res, err := svc.sheet.EditLogin(ctx, cnic, key)
	if err != nil {
		svc.log.Error(fmt.Sprintf("registration: edit login failed: %v", err))
		return Result{}, ErrSubmitFailed
	}
	if res.Result != ResultSuccess {
		if res.Message == "" {
			res.Message = "invalid CNIC or registration key"
		}
		return Result{}, &UpstreamError{Message: res.Message}
	}
	return res, nil
}

// EditUpdate forwards edited registration fields to the sheet. Field formats
// are checked at the API boundary; only sanitization happens here.
func (svc *Service) EditUpdate(ctx context.Context, upd EditUpdate) (Result, error) {
	upd.TeamName = core.SanitizeString(upd.TeamName)
	upd.Institute = core.SanitizeString(upd.Institute)
	upd.LeadPhone = core.StripSeparators(core.SanitizeString(upd.LeadPhone))
	upd.LeadEmail = core.CleanString(core.SanitizeString(upd.LeadEmail), true /* lower */)
	upd.P2Name = core.SanitizeString(upd.P2Name)
	upd.P2Phone = core.StripSeparators(core.SanitizeString(upd.P2Phone))
	upd.P2CNIC = core.StripSeparators(core.SanitizeString(upd.P2CNIC))
	upd.P3Name = core.SanitizeString(upd.P3Name)
	upd.P3Phone = core.StripSeparators(core.SanitizeString(upd.P3Phone))
	upd.P3CNIC = core.StripSeparators(core.SanitizeString(upd.P3CNIC))

	res, err := svc.sheet.EditUpdate(ctx, upd)
	if err != nil {
		svc.log.Error(fmt.Sprintf("registration: edit update failed: %v", err))
		return Result{}, ErrSubmitFailed
	}
	if res.Result != ResultSuccess {
		if res.Message == "" {
			return Result{}, ErrSubmitFailed
		}
		return Result{}, &UpstreamError{Message: res.Message}
	}
	return res, nil
}

func (svc *Service) acquire(key string) bool {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if _, ok := svc.inFlight[key]; ok {
		return false
	}
	svc.inFlight[key] = struct{}{}
	return true
}

func (svc *Service) release(key string) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	delete(svc.inFlight, key)
}
