package httptransport_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"edueasy/internal/audit"
	"edueasy/internal/auth"
	"edueasy/internal/tracking/service"
	"edueasy/internal/tracking/store"
	httptransport "edueasy/internal/transport/http"
	"edueasy/internal/verification"
)

const (
	userA = "4f4622bc-7e0f-4711-9ec8-4b3edcbe09e3"
	userB = "98c0d0da-2455-4036-b058-2878ffe7e387"

	validNationalID       = "8001015009087"
	badChecksumNationalID = "8001015009088"
)

type HandlersSuite struct {
	suite.Suite

	server *httptest.Server
	tokens *auth.TokenService
}

func TestHandlersSuite(t *testing.T) {
	suite.Run(t, new(HandlersSuite))
}

func (s *HandlersSuite) SetupTest() {
	auditor := audit.NewPublisher(audit.NewInMemoryStore())

	allocator, err := service.New(
		store.NewInMemoryCounter(0),
		store.NewInMemoryAssignments(),
		auditor,
	)
	s.Require().NoError(err)

	verifier, err := verification.New(verification.NewInMemoryStore(), allocator)
	s.Require().NoError(err)

	s.tokens = auth.NewTokenService("handlers-test-key", "edueasy-test")

	handler, err := httptransport.NewHandler(verifier, allocator, auditor, s.tokens, nil)
	s.Require().NoError(err)

	s.server = httptest.NewServer(handler.Router())
	s.T().Cleanup(s.server.Close)
}

func (s *HandlersSuite) do(method, path, token, body string) *http.Response {
	req, err := http.NewRequest(method, s.server.URL+path, strings.NewReader(body))
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (s *HandlersSuite) decode(resp *http.Response, into any) {
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(into))
}

func (s *HandlersSuite) adminToken() string {
	token, err := s.tokens.GenerateToken("ops@edueasy", auth.RoleAdmin, time.Minute)
	s.Require().NoError(err)
	return token
}

func (s *HandlersSuite) TestVerify_Valid() {
	resp := s.do(http.MethodPost, "/verify", "",
		`{"user_id":"`+userA+`","national_id":"  `+validNationalID+`  "}`)
	s.Equal(http.StatusOK, resp.StatusCode)

	var body struct {
		Valid      bool   `json:"valid"`
		TrackingID string `json:"tracking_id"`
		IDLast4    string `json:"id_last4"`
	}
	s.decode(resp, &body)
	s.True(body.Valid)
	s.Regexp(`^EDU-ZA-\d{2}-\d{6}$`, body.TrackingID)
	s.Equal("9087", body.IDLast4)
}

func (s *HandlersSuite) TestVerify_InvalidChecksum() {
	resp := s.do(http.MethodPost, "/verify", "",
		`{"user_id":"`+userA+`","national_id":"`+badChecksumNationalID+`"}`)
	s.Equal(http.StatusUnprocessableEntity, resp.StatusCode)

	var body struct {
		Valid  bool   `json:"valid"`
		Reason string `json:"reason"`
	}
	s.decode(resp, &body)
	s.False(body.Valid)
	s.Equal("checksum_invalid", body.Reason)
}

func (s *HandlersSuite) TestVerify_BadRequests() {
	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{"user_id":`},
		{"unknown field", `{"user_id":"` + userA + `","national_id":"x","extra":1}`},
		{"bad user id", `{"user_id":"not-a-uuid","national_id":"` + validNationalID + `"}`},
		{"empty national id", `{"user_id":"` + userA + `","national_id":""}`},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			resp := s.do(http.MethodPost, "/verify", "", tc.body)
			s.Equal(http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func (s *HandlersSuite) TestAdminRoutes_RequireToken() {
	for _, path := range []string{"/tracking/next", "/audit/EDU-ZA-25-000001"} {
		resp := s.do(http.MethodGet, path, "", "")
		s.Equal(http.StatusUnauthorized, resp.StatusCode, path)
	}
	resp := s.do(http.MethodPost, "/tracking/assign", "", `{}`)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *HandlersSuite) TestPeekNext() {
	resp := s.do(http.MethodGet, "/tracking/next", s.adminToken(), "")
	s.Equal(http.StatusOK, resp.StatusCode)

	var body struct {
		TrackingID string `json:"tracking_id"`
	}
	s.decode(resp, &body)
	s.Regexp(`^EDU-ZA-\d{2}-000001$`, body.TrackingID)

	// Peeking consumes nothing.
	again := s.do(http.MethodGet, "/tracking/next", s.adminToken(), "")
	s.Equal(http.StatusOK, again.StatusCode)
}

func (s *HandlersSuite) TestAssignAndAuditTrail() {
	token := s.adminToken()

	resp := s.do(http.MethodPost, "/tracking/assign", token,
		`{"user_id":"`+userA+`","tracking_id":"EDU-ZA-24-000500"}`)
	s.Equal(http.StatusNoContent, resp.StatusCode)

	// Same tracking ID again is a conflict.
	resp = s.do(http.MethodPost, "/tracking/assign", token,
		`{"user_id":"`+userB+`","tracking_id":"EDU-ZA-24-000500"}`)
	s.Equal(http.StatusConflict, resp.StatusCode)

	resp = s.do(http.MethodGet, "/audit/EDU-ZA-24-000500", token, "")
	s.Equal(http.StatusOK, resp.StatusCode)

	var entries []struct {
		TrackingID string `json:"tracking_id"`
		UserID     string `json:"user_id"`
		Method     string `json:"method"`
		ActorID    string `json:"actor_id"`
	}
	s.decode(resp, &entries)
	s.Require().Len(entries, 1)
	s.Equal("EDU-ZA-24-000500", entries[0].TrackingID)
	s.Equal(userA, entries[0].UserID)
	s.Equal("manual", entries[0].Method)
	s.Equal("ops@edueasy", entries[0].ActorID)
}

func (s *HandlersSuite) TestAssign_InvalidTrackingID() {
	resp := s.do(http.MethodPost, "/tracking/assign", s.adminToken(),
		`{"user_id":"`+userA+`","tracking_id":"EDU-ZA-24-5"}`)
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *HandlersSuite) TestAuditTrail_Unknown() {
	resp := s.do(http.MethodGet, "/audit/EDU-ZA-25-009999", s.adminToken(), "")
	s.Equal(http.StatusNotFound, resp.StatusCode)

	resp = s.do(http.MethodGet, "/audit/not-a-tracking-id", s.adminToken(), "")
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *HandlersSuite) TestHealthz() {
	resp := s.do(http.MethodGet, "/healthz", "", "")
	s.Equal(http.StatusOK, resp.StatusCode)
}
