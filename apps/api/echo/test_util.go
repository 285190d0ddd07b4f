package echoapi

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/iba-dss/hxd-api/core"
	"github.com/iba-dss/hxd-api/core/registration"
	emailsvc "github.com/iba-dss/hxd-api/services/email"
	logsvc "github.com/iba-dss/hxd-api/services/logger"
	sheetsvc "github.com/iba-dss/hxd-api/services/sheets"
	inmemdb "github.com/iba-dss/hxd-api/storage/database/inmem"
)

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	wantCode int
	wantData []byte
}

func newTestServer(t *testing.T, upstream http.HandlerFunc) (*Server, *core.Config) {
	t.Helper()

	sheetSrv := httptest.NewServer(upstream)
	t.Cleanup(sheetSrv.Close)

	conf := &core.Config{
		TestMode: true,
		AppName:  "HxD",
		WorkDir:  core.Getwd(),
	}
	conf.Sheets.URL = sheetSrv.URL
	conf.Sheets.APISecret = "s3cret"
	conf.Sheets.Timeout = time.Second
	conf.Registration.EarlyBirdCutoff = time.Now().Add(24 * time.Hour)
	conf.Registration.AffiliateInstitute = "IBA"
	conf.Registration.WaivableModule = "csi"
	conf.Registration.SubmitRetryDelay = time.Millisecond
	conf.Registration.PaymentLinks = []string{"https://pay.test/1", "https://pay.test/2", "https://pay.test/3", "https://pay.test/4"}

	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags), conf)
	logger.Enable(false)

	sheet := sheetsvc.NewClient(conf)
	regSvc := registration.NewService(
		conf,
		inmemdb.NewDraftRepository(),
		sheet,
		emailsvc.NewConsoleServiceMock(conf),
		logger,
	)

	validate := validator.New()
	translator := newTestTranslator()
	core.InitValidators(validate, translator)

	server := NewServer(ServerDeps{
		Conf:       conf,
		Logger:     logger,
		RegSvc:     regSvc,
		Sheet:      sheet,
		Validate:   validate,
		Translator: translator,
	})
	return server, conf
}

func newTestTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set(echoHeaderContentType, echoMIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return req, rec
}

// avoid importing echo in every test file for two constants
const (
	echoHeaderContentType   = "Content-Type"
	echoMIMEApplicationJSON = "application/json"
)

func validDraftRequest() DraftRequest {
	return DraftRequest{
		TeamName:  "Bit Flippers",
		Institute: "NED",
		Modules:   []string{"web-dev"},
		Participants: []registration.Participant{
			{FullName: "Alina Khan", Phone: "03001234567", CNIC: "4220112345671", Email: "alina@test.pk"},
			{FullName: "Bilal Syed", Phone: "03211234567", CNIC: "4220198765432"},
		},
	}
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()

	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func createDraft(t *testing.T, server *Server) registration.Draft {
	t.Helper()

	req, rec := newRequest(http.MethodPost, "/v1/drafts")
	server.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("createDraft() code = %v, body = %s", rec.Code, rec.Body.String())
	}

	var d registration.Draft
	if err := json.Unmarshal(rec.Body.Bytes(), &d); err != nil {
		t.Fatalf("createDraft() failed to decode: %v", err)
	}
	return d
}

func putDraft(t *testing.T, server *Server, key string, data DraftRequest) {
	t.Helper()

	req, rec := newRequest(http.MethodPut, "/v1/drafts/"+key, marchallObj(t, data))
	server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("putDraft() code = %v, body = %s", rec.Code, rec.Body.String())
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()

	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func sheetRespond(t *testing.T, body string) http.HandlerFunc {
	t.Helper()

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(echoHeaderContentType, echoMIMEApplicationJSON)
		_, _ = w.Write([]byte(body))
	}
}
