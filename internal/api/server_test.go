package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/veridict/voiceguard-go/internal/conf"
	"github.com/veridict/voiceguard-go/internal/detect"
	"github.com/veridict/voiceguard-go/internal/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeDetector struct {
	result  *detect.Result
	err     error
	gotLang string
	gotData []byte
	gotFmt  string
	block   chan struct{}
}

func (f *fakeDetector) Detect(ctx context.Context, language string, audioData []byte, format string) (*detect.Result, error) {
	f.gotLang = language
	f.gotData = audioData
	f.gotFmt = format
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func serverSettings() *conf.Settings {
	s := &conf.Settings{}
	s.Audio.MaxBytes = 15_000_000
	s.Web = conf.WebSettings{
		Host:        "127.0.0.1",
		Port:        0,
		APIKeys:     []string{"test-key"},
		MaxInFlight: 1,
	}
	return s
}

func postDetection(t *testing.T, srv *Server, apiKey string, body any) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/voice-detection", bytes.NewReader(payload))
	req.Header.Set(echoContentType, "application/json")
	if apiKey != "" {
		req.Header.Set("x-api-key", apiKey)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

const echoContentType = "Content-Type"

func validRequest() DetectionRequest {
	return DetectionRequest{
		Language:    "English",
		AudioFormat: "wav",
		AudioBase64: base64.StdEncoding.EncodeToString([]byte("fake-audio-bytes")),
	}
}

func successResult() *detect.Result {
	return &detect.Result{
		Language:        "English",
		Classification:  "AI_GENERATED",
		ConfidenceScore: 0.93,
		Explanation:     "Synthetic probability 0.93 exceeds the 0.50 decision threshold.",
		Rule:            "threshold",
		Quality:         "USABLE",
		Windows:         3,
	}
}

func TestDetectionSuccess(t *testing.T) {
	detector := &fakeDetector{result: successResult()}
	srv := New(serverSettings(), detector, nil)

	rec := postDetection(t, srv, "test-key", validRequest())

	require.Equal(t, http.StatusOK, rec.Code)
	var resp DetectionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "AI_GENERATED", resp.Classification)
	assert.InDelta(t, 0.93, resp.ConfidenceScore, 1e-9)
	assert.NotEmpty(t, resp.Explanation)

	assert.Equal(t, "English", detector.gotLang)
	assert.Equal(t, []byte("fake-audio-bytes"), detector.gotData)
	assert.Equal(t, "wav", detector.gotFmt)
}

func TestDetectionRequiresAPIKey(t *testing.T) {
	srv := New(serverSettings(), &fakeDetector{result: successResult()}, nil)

	rec := postDetection(t, srv, "", validRequest())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postDetection(t, srv, "wrong-key", validRequest())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDetectionNoConfiguredKeysBlocksAll(t *testing.T) {
	settings := serverSettings()
	settings.Web.APIKeys = nil
	srv := New(settings, &fakeDetector{result: successResult()}, nil)

	rec := postDetection(t, srv, "any-key", validRequest())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDetectionRejectsMissingAudio(t *testing.T) {
	srv := New(serverSettings(), &fakeDetector{}, nil)

	req := validRequest()
	req.AudioBase64 = ""
	rec := postDetection(t, srv, "test-key", req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
}

func TestDetectionRejectsInvalidBase64(t *testing.T) {
	srv := New(serverSettings(), &fakeDetector{}, nil)

	req := validRequest()
	req.AudioBase64 = "!!! not base64 !!!"
	rec := postDetection(t, srv, "test-key", req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDetectionRejectsOversizedPayload(t *testing.T) {
	settings := serverSettings()
	settings.Audio.MaxBytes = 16
	srv := New(settings, &fakeDetector{}, nil)

	req := validRequest()
	req.AudioBase64 = strings.Repeat("A", settings.MaxBase64Length()+1)
	rec := postDetection(t, srv, "test-key", req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestDetectionErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{
			"validation",
			errors.Newf("unsupported language").Category(errors.CategoryValidation).Build(),
			http.StatusBadRequest,
		},
		{
			"decode",
			errors.Newf("cannot decode audio").Category(errors.CategoryAudioDecode).Build(),
			http.StatusBadRequest,
		},
		{
			"duration_gate",
			errors.Newf("clip too short").Category(errors.CategoryDurationGate).Build(),
			http.StatusUnprocessableEntity,
		},
		{
			"inference",
			errors.Newf("invoke failed").Category(errors.CategoryModelInference).Build(),
			http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := New(serverSettings(), &fakeDetector{err: tt.err}, nil)
			rec := postDetection(t, srv, "test-key", validRequest())
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestDetectionInternalErrorHidesDetail(t *testing.T) {
	internal := errors.Newf("interpreter state corrupt at tensor 7").
		Category(errors.CategoryModelInference).Build()
	srv := New(serverSettings(), &fakeDetector{err: internal}, nil)

	rec := postDetection(t, srv, "test-key", validRequest())

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "tensor 7")
}

func TestHealthzOpen(t *testing.T) {
	srv := New(serverSettings(), &fakeDetector{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestInFlightLimitRejectsExcess(t *testing.T) {
	block := make(chan struct{})
	detector := &fakeDetector{result: successResult(), block: block}
	srv := New(serverSettings(), detector, nil)

	first := make(chan int)
	go func() {
		rec := postDetection(t, srv, "test-key", validRequest())
		first <- rec.Code
	}()

	// Wait until the first request holds the slot.
	require.Eventually(t, func() bool {
		return len(srv.inFlight) == 1
	}, 2*time.Second, 10*time.Millisecond)

	rec := postDetection(t, srv, "test-key", validRequest())
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	close(block)
	assert.Equal(t, http.StatusOK, <-first)
}

func TestKeyAccepted(t *testing.T) {
	keys := []string{"alpha", "beta"}

	assert.True(t, keyAccepted("alpha", keys))
	assert.True(t, keyAccepted("beta", keys))
	assert.False(t, keyAccepted("gamma", keys))
	assert.False(t, keyAccepted("", keys))
	assert.False(t, keyAccepted("alpha", nil))

	// Matching is case-insensitive on both sides.
	assert.True(t, keyAccepted("ALPHA", keys))
	assert.True(t, keyAccepted("Alpha", keys))
	assert.True(t, keyAccepted("test-key", []string{"Test-Key"}))
}

func TestDetectionAPIKeyCaseInsensitive(t *testing.T) {
	settings := serverSettings()
	settings.Web.APIKeys = []string{"Test-Key"}
	srv := New(settings, &fakeDetector{result: successResult()}, nil)

	rec := postDetection(t, srv, "test-key", validRequest())
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = postDetection(t, srv, "TEST-KEY", validRequest())
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDetectionConfidenceRounded(t *testing.T) {
	result := successResult()
	result.ConfidenceScore = 0.9333333333333333
	srv := New(serverSettings(), &fakeDetector{result: result}, nil)

	rec := postDetection(t, srv, "test-key", validRequest())

	require.Equal(t, http.StatusOK, rec.Code)
	var resp DetectionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 0.93, resp.ConfidenceScore)
}

func TestRoundConfidence(t *testing.T) {
	assert.Equal(t, 0.93, roundConfidence(0.9333333))
	assert.Equal(t, 0.94, roundConfidence(0.936))
	assert.Equal(t, 1.0, roundConfidence(1.2))
	assert.Equal(t, 0.0, roundConfidence(-0.1))
	assert.Equal(t, 0.5, roundConfidence(0.5))
}
