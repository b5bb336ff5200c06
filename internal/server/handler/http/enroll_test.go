package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voicegate/voicegate/internal/models"
	"github.com/voicegate/voicegate/internal/service"
)

// fakeEnrollService implements EnrollmentService with function fields.
type fakeEnrollService struct {
	startFn     func(ctx context.Context, userID string, difficulty models.Difficulty, overwrite bool) (models.EnrollmentSession, error)
	addSampleFn func(ctx context.Context, sessionID, challengeID string, audio []byte) error
	completeFn  func(ctx context.Context, sessionID string) (models.VoiceSignature, error)
	abortFn     func(ctx context.Context, sessionID string) error
}

func (f *fakeEnrollService) Start(ctx context.Context, userID string, difficulty models.Difficulty, overwrite bool) (models.EnrollmentSession, error) {
	return f.startFn(ctx, userID, difficulty, overwrite)
}

func (f *fakeEnrollService) AddSample(ctx context.Context, sessionID, challengeID string, audio []byte) error {
	return f.addSampleFn(ctx, sessionID, challengeID, audio)
}

func (f *fakeEnrollService) Complete(ctx context.Context, sessionID string) (models.VoiceSignature, error) {
	return f.completeFn(ctx, sessionID)
}

func (f *fakeEnrollService) Abort(ctx context.Context, sessionID string) error {
	return f.abortFn(ctx, sessionID)
}

// unusedVerifyService fails the test if any verification endpoint is hit.
func unusedVerifyService(t *testing.T) *fakeVerifyService {
	t.Helper()
	fail := func() {
		t.Fatal("verification service must not be called")
	}
	return &fakeVerifyService{
		startFn: func(context.Context, string, models.Difficulty) (models.VerificationSession, error) {
			fail()
			return models.VerificationSession{}, nil
		},
		submitFn: func(context.Context, string, string, []byte) (models.CascadeResult, error) {
			fail()
			return models.CascadeResult{}, nil
		},
		decisionFn: func(context.Context, string) (models.SessionState, []models.ChallengeResult, error) {
			fail()
			return "", nil, nil
		},
		abortFn: func(context.Context, string) error {
			fail()
			return nil
		},
	}
}

func enrollServer(t *testing.T, svc EnrollmentService) *httptest.Server {
	t.Helper()
	router := NewRouter(&EnrollHandler{Enrollment: svc}, &VerifyHandler{Verification: unusedVerifyService(t)}, zap.NewNop())
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestEnrollStart(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		startErr   error
		wantStatus int
	}{
		{
			name:       "created",
			body:       StartEnrollRequest{UserID: "u1", Difficulty: models.Medium},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "missing user",
			body:       StartEnrollRequest{Difficulty: models.Medium},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing difficulty",
			body:       StartEnrollRequest{UserID: "u1"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "already enrolled",
			body:       StartEnrollRequest{UserID: "u1", Difficulty: models.Medium},
			startErr:   service.ErrAlreadyEnrolled,
			wantStatus: http.StatusConflict,
		},
		{
			name:       "no eligible phrases",
			body:       StartEnrollRequest{UserID: "u1", Difficulty: models.Medium},
			startErr:   service.ErrInsufficientPhrases,
			wantStatus: http.StatusUnprocessableEntity,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeEnrollService{
				startFn: func(_ context.Context, userID string, difficulty models.Difficulty, overwrite bool) (models.EnrollmentSession, error) {
					if tt.startErr != nil {
						return models.EnrollmentSession{}, tt.startErr
					}
					return models.EnrollmentSession{
						ID:         "sess-1",
						UserID:     userID,
						State:      models.StateCollectingSamples,
						Challenges: []models.Challenge{{ID: "ch-1", Text: "a phrase"}},
					}, nil
				},
			}
			srv := enrollServer(t, svc)

			resp := postJSON(t, srv.URL+"/api/enroll", tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			if tt.wantStatus == http.StatusCreated {
				var sess models.EnrollmentSession
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&sess))
				assert.Equal(t, "sess-1", sess.ID)
				assert.Len(t, sess.Challenges, 1)
			}
		})
	}
}

func TestEnrollAddSample(t *testing.T) {
	audio := base64.StdEncoding.EncodeToString([]byte("pcm-audio"))
	tests := []struct {
		name       string
		body       any
		svcErr     error
		wantStatus int
	}{
		{
			name:       "accepted",
			body:       SampleRequest{ChallengeID: "ch-1", Audio: audio},
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing challenge id",
			body:       SampleRequest{Audio: audio},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad audio encoding",
			body:       SampleRequest{ChallengeID: "ch-1", Audio: "not-base64!!!"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "session gone",
			body:       SampleRequest{ChallengeID: "ch-1", Audio: audio},
			svcErr:     service.ErrSessionNotFound,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "session expired",
			body:       SampleRequest{ChallengeID: "ch-1", Audio: audio},
			svcErr:     service.ErrSessionExpired,
			wantStatus: http.StatusGone,
		},
		{
			name:       "duplicate sample",
			body:       SampleRequest{ChallengeID: "ch-1", Audio: audio},
			svcErr:     service.ErrDuplicateSample,
			wantStatus: http.StatusConflict,
		},
		{
			name:       "low quality",
			body:       SampleRequest{ChallengeID: "ch-1", Audio: audio},
			svcErr:     service.ErrLowQualitySample,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "inference down",
			body:       SampleRequest{ChallengeID: "ch-1", Audio: audio},
			svcErr:     service.ErrUnavailable,
			wantStatus: http.StatusBadGateway,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeEnrollService{
				addSampleFn: func(_ context.Context, sessionID, challengeID string, audio []byte) error {
					assert.Equal(t, "sess-1", sessionID)
					assert.Equal(t, "ch-1", challengeID)
					assert.Equal(t, []byte("pcm-audio"), audio)
					return tt.svcErr
				},
			}
			srv := enrollServer(t, svc)

			resp := postJSON(t, srv.URL+"/api/enroll/sess-1/sample", tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestEnrollComplete(t *testing.T) {
	tests := []struct {
		name       string
		svcErr     error
		wantStatus int
	}{
		{name: "completed", wantStatus: http.StatusOK},
		{name: "incomplete", svcErr: service.ErrIncompleteSamples, wantStatus: http.StatusUnprocessableEntity},
		{name: "quality too low", svcErr: service.ErrEnrollmentQualityTooLow, wantStatus: http.StatusUnprocessableEntity},
		{name: "already finalized", svcErr: service.ErrSessionAlreadyFinalized, wantStatus: http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeEnrollService{
				completeFn: func(_ context.Context, sessionID string) (models.VoiceSignature, error) {
					assert.Equal(t, "sess-1", sessionID)
					if tt.svcErr != nil {
						return models.VoiceSignature{}, tt.svcErr
					}
					return models.VoiceSignature{UserID: "u1", QualityScore: 0.9467}, nil
				},
			}
			srv := enrollServer(t, svc)

			resp := postJSON(t, srv.URL+"/api/enroll/sess-1/complete", struct{}{})
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			if tt.wantStatus == http.StatusOK {
				var out map[string]any
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
				assert.Equal(t, "completed", out["status"])
				assert.InDelta(t, 0.9467, out["quality_score"], 1e-9)
			}
		})
	}
}

func TestEnrollAbort(t *testing.T) {
	svc := &fakeEnrollService{
		abortFn: func(_ context.Context, sessionID string) error {
			assert.Equal(t, "sess-1", sessionID)
			return nil
		},
	}
	srv := enrollServer(t, svc)

	resp := postJSON(t, srv.URL+"/api/enroll/sess-1/abort", struct{}{})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouterRejectsWrongContentType(t *testing.T) {
	srv := enrollServer(t, &fakeEnrollService{})

	resp, err := http.Post(srv.URL+"/api/enroll", "text/plain", bytes.NewReader([]byte("hi")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := enrollServer(t, &fakeEnrollService{})

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
