package diagnosis

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/anime-shed/plant-inspector-go/internal/errors"
	"github.com/anime-shed/plant-inspector-go/internal/i18n"
)

type fakeVision struct {
	text     string
	err      error
	block    chan struct{}
	calls    atomic.Int32
	lastImg  ImageInput
	lastText string
}

func (f *fakeVision) AnalyzeImage(ctx context.Context, img ImageInput, prompt string) (string, error) {
	f.calls.Add(1)
	f.lastImg = img
	f.lastText = prompt
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.text, f.err
}

func (f *fakeVision) GenerateText(ctx context.Context, prompt string) (string, error) {
	f.lastText = prompt
	return f.text, f.err
}

func frame(w, h int) *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

func TestParseDiagnosis(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		diagnosis string
		treatment string
	}{
		{"empty", "", "", ""},
		{"short", "Leaf blight\nSevere", "Leaf blight\nSevere", ""},
		{"exactly three", "a\nb\nc", "a\nb\nc", ""},
		{"split", "a\n\nb\nc\n\n\nd\ne", "a\nb\nc", "d\ne"},
		{"crlf", "a\r\nb\r\nc\r\nd", "a\nb\nc", "d"},
		{"whitespace lines", "a\n   \nb\n\t\nc\nd", "a\nb\nc", "d"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, tr := ParseDiagnosis(tt.in)
			assert.Equal(t, tt.diagnosis, d)
			assert.Equal(t, tt.treatment, tr)
		})
	}
}

func TestDiagnose_Success(t *testing.T) {
	client := &fakeVision{text: "Early blight\nFungal\nModerate\nRemove leaves\nSpray copper"}
	bridge := NewBridge(client, BridgeConfig{})

	res, err := bridge.Diagnose(context.Background(), frame(64, 48), "kn-IN")
	require.NoError(t, err)

	assert.Equal(t, "Early blight\nFungal\nModerate", res.Diagnosis)
	assert.Equal(t, "Remove leaves\nSpray copper", res.Treatment)
	assert.Equal(t, i18n.Kannada, res.Language)
	assert.Equal(t, "image/jpeg", client.lastImg.MimeType)
	assert.Equal(t, i18n.Message(i18n.MsgDiagnosisPrompt, i18n.Kannada), client.lastText)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(client.lastImg.Data))
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Width)
	assert.False(t, bridge.Analyzing())
}

func TestDiagnose_NoFrame(t *testing.T) {
	client := &fakeVision{text: "x"}
	bridge := NewBridge(client, BridgeConfig{})

	_, err := bridge.Diagnose(context.Background(), nil, "en")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	_, err = bridge.Diagnose(context.Background(), frame(0, 0), "en")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	assert.Equal(t, int32(0), client.calls.Load())
}

func TestDiagnose_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		typ  apperrors.ErrorType
		msg  i18n.Key
	}{
		{"api", &APIError{StatusCode: 400, Message: "bad"}, apperrors.ErrorTypeProcessing, i18n.MsgAnalysisFailed},
		{"network", errors.New("dial tcp: refused"), apperrors.ErrorTypeNetwork, i18n.MsgAnalysisNetwork},
		{"deadline", context.DeadlineExceeded, apperrors.ErrorTypeTimeout, i18n.MsgAnalysisTimeout},
		{"unconfigured", ErrNotConfigured, apperrors.ErrorTypeInternal, i18n.MsgAnalysisFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bridge := NewBridge(&fakeVision{err: tt.err}, BridgeConfig{})
			_, err := bridge.Diagnose(context.Background(), frame(8, 8), "hi")
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, tt.typ))
			assert.Equal(t, i18n.Message(tt.msg, i18n.Hindi), apperrors.UserMessage(err, ""))
		})
	}
}

func TestDiagnose_EmptyResponse(t *testing.T) {
	bridge := NewBridge(&fakeVision{text: "  \n "}, BridgeConfig{})
	_, err := bridge.Diagnose(context.Background(), frame(8, 8), "en")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeProcessing))
}

func TestDiagnose_TimeoutAndAnalyzing(t *testing.T) {
	client := &fakeVision{block: make(chan struct{})}
	bridge := NewBridge(client, BridgeConfig{Timeout: 200 * time.Millisecond})

	done := make(chan error, 1)
	go func() {
		_, err := bridge.Diagnose(context.Background(), frame(8, 8), "en")
		done <- err
	}()

	require.Eventually(t, bridge.Analyzing, time.Second, 5*time.Millisecond)

	select {
	case err := <-done:
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeTimeout))
	case <-time.After(2 * time.Second):
		t.Fatal("diagnosis did not time out")
	}
	assert.False(t, bridge.Analyzing())
}

func TestEncodeJPEG_Downscales(t *testing.T) {
	data, err := EncodeJPEG(frame(2000, 1000), 1000)
	require.NoError(t, err)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.Width)
	assert.Equal(t, 500, cfg.Height)

	data, err = EncodeJPEG(frame(300, 900), 0)
	require.NoError(t, err)
	cfg, err = jpeg.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 900, cfg.Height)
}
