package echoapi

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iba-dss/hxd-api/core/registration"
)

func Test_home(t *testing.T) {
	server, _ := newTestServer(t, sheetRespond(t, `{"result":"success"}`))

	req, rec := newRequest(http.MethodGet, "/")
	server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to the HxD API!", rec.Body.String())
}

func Test_registrationApi_modules(t *testing.T) {
	server, _ := newTestServer(t, sheetRespond(t, `{"result":"success"}`))

	req, rec := newRequest(http.MethodGet, "/v1/modules")
	server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Modules   registration.Catalog `json:"modules"`
		EarlyBird bool                 `json:"early_bird"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Modules, 9)
	assert.True(t, resp.EarlyBird)

	csi, ok := resp.Modules.Get("csi")
	assert.True(t, ok)
	assert.True(t, csi.Waivable)
}

func Test_registrationApi_draftCRUD(t *testing.T) {
	server, _ := newTestServer(t, sheetRespond(t, `{"result":"success"}`))

	d := createDraft(t, server)
	assert.NotEmpty(t, d.Key)
	assert.Equal(t, registration.PaymentNotStarted, d.PaymentState)

	// unknown keys
	for _, method := range []string{http.MethodGet, http.MethodPut} {
		req, rec := newRequest(method, "/v1/drafts/missing", []byte(`{}`))
		server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusNotFound,
			wantData: []byte(`{"error":"registration not found"}`),
		}, rec)
	}

	// save computes a quote and echoes the sanitized draft
	req, rec := newRequest(http.MethodPut, "/v1/drafts/"+d.Key, marchallObj(t, validDraftRequest()))
	server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var saved struct {
		Draft registration.Draft `json:"draft"`
		Total int                `json:"total"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
	assert.Equal(t, 1000, saved.Total) // web-dev early bird x 2
	assert.Equal(t, "Bit Flippers", saved.Draft.TeamName)

	// restore
	req, rec = newRequest(http.MethodGet, "/v1/drafts/"+d.Key)
	server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// discard
	req, rec = newRequest(http.MethodDelete, "/v1/drafts/"+d.Key)
	server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req, rec = newRequest(http.MethodGet, "/v1/drafts/"+d.Key)
	server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_registrationApi_validate(t *testing.T) {
	server, _ := newTestServer(t, sheetRespond(t, `{"result":"success"}`))
	d := createDraft(t, server)

	// empty draft: everything missing
	req, rec := newRequest(http.MethodPost, "/v1/drafts/"+d.Key+"/validate")
	server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var flds map[string]string
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &flds))
	assert.Contains(t, flds, "team_name")
	assert.Contains(t, flds, "modules")
	assert.Contains(t, flds, "lead_name")

	// complete but unpaid: the order reference is the one missing piece
	putDraft(t, server, d.Key, validDraftRequest())
	req, rec = newRequest(http.MethodPost, "/v1/drafts/"+d.Key+"/validate")
	server.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: []byte(`{"order_reference":"payment order reference is required"}`),
	}, rec)

	// with a reference the draft validates
	data := validDraftRequest()
	data.OrderReference = "TXN-42"
	putDraft(t, server, d.Key, data)
	req, rec = newRequest(http.MethodPost, "/v1/drafts/"+d.Key+"/validate")
	server.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusOK,
		wantData: []byte(`{"valid":true}`),
	}, rec)
}

func Test_registrationApi_paymentAndSubmit(t *testing.T) {
	server, _ := newTestServer(t, sheetRespond(t, `{"result":"success"}`))
	d := createDraft(t, server)
	putDraft(t, server, d.Key, validDraftRequest())

	// initiate payment: state flips, link matches the team size
	req, rec := newRequest(http.MethodPost, "/v1/drafts/"+d.Key+"/payment")
	server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var pay struct {
		Draft       registration.Draft `json:"draft"`
		Total       int                `json:"total"`
		PaymentLink string             `json:"payment_link"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pay))
	assert.Equal(t, registration.PaymentInitiated, pay.Draft.PaymentState)
	assert.Equal(t, 1000, pay.Total)
	assert.Equal(t, "https://pay.test/2", pay.PaymentLink)

	// final submission clears the snapshot
	req, rec = newRequest(http.MethodPost, "/v1/drafts/"+d.Key+"/submit", []byte(`{"order_reference":"TXN-42"}`))
	server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req, rec = newRequest(http.MethodGet, "/v1/drafts/"+d.Key)
	server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_registrationApi_submit_incompleteDraft(t *testing.T) {
	server, _ := newTestServer(t, sheetRespond(t, `{"result":"success"}`))
	d := createDraft(t, server)
	putDraft(t, server, d.Key, validDraftRequest())

	// missing order reference blocks the network call
	req, rec := newRequest(http.MethodPost, "/v1/drafts/"+d.Key+"/submit", []byte(`{}`))
	server.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: []byte(`{"order_reference":"payment order reference is required"}`),
	}, rec)
}

func Test_registrationApi_submit_upstreamError(t *testing.T) {
	server, _ := newTestServer(t, sheetRespond(t, `{"result":"error","message":"Duplicate registration"}`))
	d := createDraft(t, server)
	putDraft(t, server, d.Key, validDraftRequest())

	req, rec := newRequest(http.MethodPost, "/v1/drafts/"+d.Key+"/submit", []byte(`{"order_reference":"TXN-42"}`))
	server.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: []byte(`{"error":"Duplicate registration"}`),
	}, rec)

	// snapshot survives for a manual retry
	req, rec = newRequest(http.MethodGet, "/v1/drafts/"+d.Key)
	server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func Test_registrationApi_submit_retrySignal(t *testing.T) {
	var calls int32
	server, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(echoHeaderContentType, echoMIMEApplicationJSON)
		if atomic.AddInt32(&calls, 1) == 1 {
			_, _ = w.Write([]byte(`{"result":"retry"}`))
			return
		}
		_, _ = w.Write([]byte(`{"result":"success"}`))
	})

	d := createDraft(t, server)
	putDraft(t, server, d.Key, validDraftRequest())

	req, rec := newRequest(http.MethodPost, "/v1/drafts/"+d.Key+"/submit", []byte(`{"order_reference":"TXN-42"}`))
	server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func Test_registrationApi_submit_networkFailure(t *testing.T) {
	server, conf := newTestServer(t, sheetRespond(t, `{"result":"success"}`))
	conf.Sheets.URL = "http://127.0.0.1:1" // nothing listens here

	d := createDraft(t, server)
	putDraft(t, server, d.Key, validDraftRequest())

	req, rec := newRequest(http.MethodPost, "/v1/drafts/"+d.Key+"/submit", []byte(`{"order_reference":"TXN-42"}`))
	server.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadGateway,
		wantData: []byte(`{"error":"could not reach the registration service, please try again"}`),
	}, rec)
}

func Test_registrationApi_edit(t *testing.T) {
	server, _ := newTestServer(t, sheetRespond(t, `{"result":"success","row":{"team_name":"Bit Flippers"}}`))

	// credentials are mandatory
	req, rec := newRequest(http.MethodPost, "/v1/edit/login", []byte(`{}`))
	server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var flds map[string]string
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &flds))
	assert.Contains(t, flds, "cnic")
	assert.Contains(t, flds, "key")

	// login returns the stored row
	req, rec = newRequest(http.MethodPost, "/v1/edit/login", []byte(`{"cnic":"4220112345671","key":"reg-1"}`))
	server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var res registration.Result
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, registration.ResultSuccess, res.Result)

	// malformed phone is rejected before forwarding
	req, rec = newRequest(http.MethodPost, "/v1/edit", []byte(`{"row_index":3,"lead_phone":"12345"}`))
	server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &flds))
	assert.Contains(t, flds, "lead_phone")

	// valid update forwards
	req, rec = newRequest(http.MethodPost, "/v1/edit", []byte(`{"row_index":3,"lead_phone":"0300-1234567"}`))
	server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
