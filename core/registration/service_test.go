package registration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/iba-dss/hxd-api/core"
)

// fakes

type fakeRepo struct {
	mu    sync.Mutex
	table map[string]Draft
}

func newFakeRepo() *fakeRepo { return &fakeRepo{table: make(map[string]Draft)} }

func (r *fakeRepo) SaveDraft(_ context.Context, d Draft) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.table[d.Key] = d
	return nil
}

func (r *fakeRepo) GetDraft(_ context.Context, key string) (Draft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.table[key]; ok {
		return d, nil
	}
	return Draft{}, ErrNotFound
}

func (r *fakeRepo) DeleteDraft(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.table, key)
	return nil
}

func (r *fakeRepo) has(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.table[key]
	return ok
}

type sheetCall struct {
	res Result
	err error
}

type fakeSheet struct {
	mu      sync.Mutex
	script  []sheetCall
	records []Record
}

func (s *fakeSheet) SubmitRecord(_ context.Context, rec Record) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	if len(s.script) == 0 {
		return Result{Result: ResultSuccess}, nil
	}
	call := s.script[0]
	s.script = s.script[1:]
	return call.res, call.err
}

func (s *fakeSheet) EditLogin(_ context.Context, _, _ string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.script) == 0 {
		return Result{Result: ResultSuccess}, nil
	}
	call := s.script[0]
	s.script = s.script[1:]
	return call.res, call.err
}

func (s *fakeSheet) EditUpdate(_ context.Context, _ EditUpdate) (Result, error) {
	return s.EditLogin(context.Background(), "", "")
}

func (s *fakeSheet) sent() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

type mailRecorder struct {
	mu   sync.Mutex
	sent []*core.EmailMessage
}

func (m *mailRecorder) SendMessages(messages ...*core.EmailMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, messages...)
}

type testLogger struct{}

func (testLogger) Enable(bool)                  {}
func (testLogger) Debug(string, ...interface{}) {}
func (testLogger) Info(string, ...interface{})  {}
func (testLogger) Warn(string, ...interface{})  {}
func (testLogger) Error(string, ...interface{}) {}
func (testLogger) Fatal(string, ...interface{}) {}

func newTestConfig() *core.Config {
	conf := &core.Config{AppName: "HxD"}
	conf.Registration.EarlyBirdCutoff = testCutoff
	conf.Registration.AffiliateInstitute = "IBA"
	conf.Registration.WaivableModule = "csi"
	conf.Registration.SubmitRetryDelay = time.Millisecond
	conf.Registration.PaymentLinks = []string{"https://pay.test/1", "https://pay.test/2", "https://pay.test/3", "https://pay.test/4"}
	conf.Sheets.Timeout = time.Second
	return conf
}

func newTestService(t *testing.T) (*Service, *fakeRepo, *fakeSheet, *mailRecorder) {
	t.Helper()

	repo := newFakeRepo()
	sheet := &fakeSheet{}
	mailSvc := &mailRecorder{}
	svc := NewService(newTestConfig(), repo, sheet, mailSvc, testLogger{})
	svc.now = func() time.Time { return beforeCut }
	return svc, repo, sheet, mailSvc
}

func saveValidDraft(t *testing.T, svc *Service) Draft {
	t.Helper()

	ctx := context.Background()
	d, err := svc.NewDraft(ctx)
	if err != nil {
		t.Fatalf("NewDraft() failed: %v", err)
	}
	d, _, err = svc.Save(ctx, d.Key, validDraft())
	if err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	return d
}

func Test_service_draftLifecycle(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	ctx := context.Background()

	d, err := svc.NewDraft(ctx)
	assert.NoError(t, err)
	assert.NotEmpty(t, d.Key)
	assert.Equal(t, PaymentNotStarted, d.PaymentState)
	assert.True(t, repo.has(d.Key))

	_, err = svc.Get(ctx, "missing")
	assert.Equal(t, ErrNotFound, err)

	// every mutation persists, valid or not
	upd, total, err := svc.Save(ctx, d.Key, Draft{TeamName: "  <Incomplete> "})
	assert.NoError(t, err)
	assert.Equal(t, "Incomplete", upd.TeamName)
	assert.Equal(t, 0, total)

	upd, total, err = svc.Save(ctx, d.Key, validDraft())
	assert.NoError(t, err)
	assert.Equal(t, 1000, total) // web-dev early bird x 2

	got, err := svc.Get(ctx, d.Key)
	assert.NoError(t, err)
	assert.Equal(t, upd, got)

	assert.NoError(t, svc.Delete(ctx, d.Key))
	assert.False(t, repo.has(d.Key))
}

func Test_service_Save_affiliationOverridesInstitute(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	d, err := svc.NewDraft(ctx)
	assert.NoError(t, err)

	in := validDraft()
	in.Affiliated = true
	in.Institute = "Something Else"

	upd, _, err := svc.Save(ctx, d.Key, in)
	assert.NoError(t, err)
	assert.Equal(t, "IBA", upd.Institute)
}

func Test_service_InitiatePayment(t *testing.T) {
	svc, _, sheet, _ := newTestService(t)
	ctx := context.Background()

	// invalid draft is rejected before anything is sent
	d, err := svc.NewDraft(ctx)
	assert.NoError(t, err)
	_, _, err = svc.InitiatePayment(ctx, d.Key)
	vErr, ok := err.(*core.ValidationError)
	if assert.True(t, ok, "expected *core.ValidationError, got %v", err) {
		assert.NotEmpty(t, vErr.Fields)
	}
	assert.Empty(t, sheet.sent())

	// valid draft: state flips, link matches team size, pending record goes out
	d = saveValidDraft(t, svc)
	upd, link, err := svc.InitiatePayment(ctx, d.Key)
	assert.NoError(t, err)
	assert.Equal(t, PaymentInitiated, upd.PaymentState)
	assert.Equal(t, "https://pay.test/2", link)

	assert.Eventually(t, func() bool { return len(sheet.sent()) == 1 }, time.Second, time.Millisecond)
	rec := sheet.sent()[0]
	assert.Equal(t, RecordStatusPending, rec.Status)
	assert.Equal(t, d.Key, rec.Key)
	assert.Equal(t, 1000, rec.TotalFee)
}

func Test_service_InitiatePayment_pendingFailureIsInvisible(t *testing.T) {
	svc, _, sheet, _ := newTestService(t)
	sheet.script = []sheetCall{{err: assert.AnError}}

	d := saveValidDraft(t, svc)
	_, _, err := svc.InitiatePayment(context.Background(), d.Key)
	assert.NoError(t, err)

	assert.Eventually(t, func() bool { return len(sheet.sent()) == 1 }, time.Second, time.Millisecond)
}

func Test_service_Submit(t *testing.T) {
	tests := []struct {
		name      string
		script    []sheetCall
		wantErr   error
		wantCalls int
		wantKept  bool // snapshot survives
	}{
		{
			name:      "success deletes snapshot",
			script:    []sheetCall{{res: Result{Result: ResultSuccess}}},
			wantCalls: 1,
		},
		{
			name: "retry signal re-attempts exactly once",
			script: []sheetCall{
				{res: Result{Result: ResultRetry}},
				{res: Result{Result: ResultSuccess}},
			},
			wantCalls: 2,
		},
		{
			name: "second retry becomes a connectivity error",
			script: []sheetCall{
				{res: Result{Result: ResultRetry}},
				{res: Result{Result: ResultRetry}},
			},
			wantErr:   ErrSubmitFailed,
			wantCalls: 2,
			wantKept:  true,
		},
		{
			name:      "upstream business error propagates verbatim",
			script:    []sheetCall{{res: Result{Result: ResultError, Message: "Duplicate registration"}}},
			wantErr:   &UpstreamError{Message: "Duplicate registration"},
			wantCalls: 1,
			wantKept:  true,
		},
		{
			name:      "upstream error without message is generic",
			script:    []sheetCall{{res: Result{Result: ResultError}}},
			wantErr:   ErrSubmitFailed,
			wantCalls: 1,
			wantKept:  true,
		},
		{
			name:      "transport error is generic",
			script:    []sheetCall{{err: assert.AnError}},
			wantErr:   ErrSubmitFailed,
			wantCalls: 1,
			wantKept:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, sheet, mailSvc := newTestService(t)
			sheet.script = tt.script

			d := saveValidDraft(t, svc)
			_, err := svc.Submit(context.Background(), d.Key, "TXN-42")

			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				assert.Empty(t, mailSvc.sent)
			} else {
				assert.NoError(t, err)
				if assert.Len(t, mailSvc.sent, 1) {
					assert.Equal(t, "alina@test.pk", mailSvc.sent[0].To[0].Address)
				}
			}

			assert.Len(t, sheet.sent(), tt.wantCalls)
			assert.Equal(t, tt.wantKept, repo.has(d.Key))

			rec := sheet.sent()[0]
			assert.Equal(t, RecordStatusFinal, rec.Status)
			assert.Equal(t, "TXN-42", rec.OrderReference)
		})
	}
}

func Test_service_Submit_validation(t *testing.T) {
	svc, _, sheet, _ := newTestService(t)
	ctx := context.Background()

	// order reference required for a paid total
	d := saveValidDraft(t, svc)
	_, err := svc.Submit(ctx, d.Key, "")
	flds := fieldErrs(t, err)
	assert.Contains(t, flds, "order_reference")
	assert.Empty(t, sheet.sent())

	// fully waived total needs no reference
	free := validDraft()
	free.Affiliated = true
	free.Modules = []string{"csi"}
	for i := range free.Participants {
		free.Participants[i].CNIC = "12345"
	}
	d2, err := svc.NewDraft(ctx)
	assert.NoError(t, err)
	_, total, err := svc.Save(ctx, d2.Key, free)
	assert.NoError(t, err)
	assert.Equal(t, 0, total)

	_, err = svc.Submit(ctx, d2.Key, "")
	assert.NoError(t, err)
}

func Test_service_Submit_singleFlight(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	d := saveValidDraft(t, svc)
	assert.True(t, svc.acquire(d.Key))

	_, err := svc.Submit(context.Background(), d.Key, "TXN-42")
	assert.Equal(t, ErrSubmitInFlight, err)

	svc.release(d.Key)
	_, err = svc.Submit(context.Background(), d.Key, "TXN-42")
	assert.NoError(t, err)
}

func Test_service_Quote_earlyBirdRollover(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	d := validDraft()

	svc.now = func() time.Time { return beforeCut }
	assert.Equal(t, 1000, svc.Quote(d))
	assert.True(t, svc.EarlyBirdActive())

	// the clock is read per call, so rollover applies without a restart
	svc.now = func() time.Time { return afterCut }
	assert.Equal(t, 2000, svc.Quote(d))
	assert.False(t, svc.EarlyBirdActive())
}

func Test_service_EditLogin(t *testing.T) {
	svc, _, sheet, _ := newTestService(t)
	ctx := context.Background()

	// both credentials required
	_, err := svc.EditLogin(ctx, "", "")
	flds := fieldErrs(t, err)
	assert.Contains(t, flds, "cnic")
	assert.Contains(t, flds, "key")

	// invalid credentials surface the upstream rejection
	sheet.script = []sheetCall{{res: Result{Result: ResultError, Message: "invalid CNIC or registration key"}}}
	_, err = svc.EditLogin(ctx, "42201-1234567-1", "abc")
	assert.Equal(t, &UpstreamError{Message: "invalid CNIC or registration key"}, err)

	// success returns the stored row
	sheet.script = []sheetCall{{res: Result{Result: ResultSuccess, Row: []byte(`{"team_name":"Bit Flippers"}`)}}}
	res, err := svc.EditLogin(ctx, "42201-1234567-1", "abc")
	assert.NoError(t, err)
	assert.JSONEq(t, `{"team_name":"Bit Flippers"}`, string(res.Row))
}

func Test_service_EditUpdate(t *testing.T) {
	svc, _, sheet, _ := newTestService(t)

	sheet.script = []sheetCall{{res: Result{Result: ResultSuccess}}}
	_, err := svc.EditUpdate(context.Background(), EditUpdate{RowIndex: 3, LeadPhone: "0300-123 4567"})
	assert.NoError(t, err)

	sheet.script = []sheetCall{{err: assert.AnError}}
	_, err = svc.EditUpdate(context.Background(), EditUpdate{RowIndex: 3})
	assert.Equal(t, ErrSubmitFailed, err)
}
