// Package onnx runs emotion models through ONNX Runtime.
package onnx

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/dj-oyu/moodcam/internal/classify"
	"github.com/dj-oyu/moodcam/internal/logger"
)

// Config selects the model file and its tensor layout.
type Config struct {
	ModelPath     string
	SharedLibrary string // path to libonnxruntime; empty uses the loader default
	Metadata      classify.Metadata
}

// Scorer owns one ONNX Runtime session with preallocated tensors. Score
// calls are serialized.
type Scorer struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

var _ classify.Scorer = (*Scorer)(nil)

// NewScorer initializes the runtime environment and loads the model.
// Failure here is fatal to startup.
func NewScorer(cfg Config) (*Scorer, error) {
	if cfg.SharedLibrary != "" {
		ort.SetSharedLibraryPath(cfg.SharedLibrary)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	md := cfg.Metadata
	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(md.InputShape...))
	if err != nil {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(md.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{md.InputName}, []string{md.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create ONNX session for %s: %w", cfg.ModelPath, err)
	}

	logger.Info("ONNX", "Loaded %s (input %v %s, output %v)", cfg.ModelPath, md.InputShape, md.Layout, md.OutputShape)

	return &Scorer{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// Score copies input into the session tensor, runs inference and returns a
// copy of the output vector.
func (s *Scorer) Score(input []float32) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, fmt.Errorf("scorer closed")
	}
	dst := s.inputTensor.GetData()
	if len(input) != len(dst) {
		return nil, fmt.Errorf("input has %d values, model expects %d", len(input), len(dst))
	}
	copy(dst, input)

	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	out := s.outputTensor.GetData()
	result := make([]float32, len(out))
	copy(result, out)
	return result, nil
}

// Close releases the session, its tensors and the runtime environment
func (s *Scorer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil
	}
	s.inputTensor.Destroy()
	s.outputTensor.Destroy()
	err := s.session.Destroy()
	s.session = nil
	if envErr := ort.DestroyEnvironment(); err == nil {
		err = envErr
	}
	return err
}
