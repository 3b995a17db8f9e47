// Package predictor implements the Predictor port with an ONNX model executed
// through onnxruntime. The model consumes a (1, 60, 6) float32 tensor — one
// row per second of the candle window — and produces class probabilities; the
// probability of the "enter" class is returned as the confidence.
package predictor

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/alanyoungcy/scalpbot/internal/domain"
)

const (
	windowLen   = 60
	featureDim  = 6
	outputDim   = 2 // [no-trade, enter]
	inputName   = "input"
	outputName  = "output"
	enterClass  = 1
)

var initOnce sync.Once

// initRuntime points onnxruntime at the shared library and initializes the
// environment once per process.
func initRuntime(libraryPath string) error {
	var err error
	initOnce.Do(func() {
		if libraryPath == "" {
			switch runtime.GOOS {
			case "darwin":
				libraryPath = "libonnxruntime.dylib"
			case "windows":
				libraryPath = "onnxruntime.dll"
			default:
				libraryPath = "/usr/lib/libonnxruntime.so"
			}
		}
		ort.SetSharedLibraryPath(libraryPath)
		err = ort.InitializeEnvironment()
	})
	return err
}

// ONNX wraps an onnxruntime session. Score serializes inference behind a
// mutex since the session reuses its input/output tensors.
type ONNX struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

// NewONNX loads the model at modelPath. A missing or unloadable model is a
// startup precondition failure; callers should refuse to begin streaming.
func NewONNX(modelPath, libraryPath string) (*ONNX, error) {
	if err := initRuntime(libraryPath); err != nil {
		return nil, fmt.Errorf("predictor: init onnxruntime: %w", err)
	}

	inputTensor, err := ort.NewTensor(ort.NewShape(1, windowLen, featureDim), make([]float32, windowLen*featureDim))
	if err != nil {
		return nil, fmt.Errorf("predictor: create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, outputDim))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("predictor: create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{inputName}, []string{outputName},
		[]ort.Value{inputTensor}, []ort.Value{outputTensor}, nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("predictor: load model %s: %w", modelPath, err)
	}

	return &ONNX{
		session: session,
		input:   inputTensor,
		output:  outputTensor,
	}, nil
}

// Score runs inference over the flattened feature grid and returns the enter
// probability in [0,1].
func (m *ONNX) Score(ctx context.Context, features []float32) (float64, error) {
	if m.session == nil {
		return 0, domain.ErrModelMissing
	}
	if len(features) != windowLen*featureDim {
		return 0, fmt.Errorf("predictor: expected %d features, got %d", windowLen*featureDim, len(features))
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	copy(m.input.GetData(), features)
	if err := m.session.Run(); err != nil {
		return 0, fmt.Errorf("predictor: inference: %w", err)
	}

	out := m.output.GetData()
	if len(out) <= enterClass {
		return 0, fmt.Errorf("predictor: unexpected output size %d", len(out))
	}
	confidence := float64(out[enterClass])
	if confidence < 0 {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}
	return confidence, nil
}

// Close releases the session and tensors.
func (m *ONNX) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != nil {
		m.session.Destroy()
		m.session = nil
	}
	if m.input != nil {
		m.input.Destroy()
		m.input = nil
	}
	if m.output != nil {
		m.output.Destroy()
		m.output = nil
	}
}

// Compile-time interface check.
var _ domain.Predictor = (*ONNX)(nil)
