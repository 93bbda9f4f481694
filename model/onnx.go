//go:build cgo

package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/RyanBlaney/sonido-emotion/emotion"
	"github.com/RyanBlaney/sonido-emotion/features"
	"github.com/RyanBlaney/sonido-emotion/logging"
	ort "github.com/yalue/onnxruntime_go"
)

var (
	runtimeInitialized bool
	runtimeMu          sync.Mutex
)

// InitRuntime initializes the ONNX runtime environment once per process.
// libraryPath may be empty to search the usual install locations.
func InitRuntime(libraryPath string) error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if runtimeInitialized {
		return nil
	}

	if libraryPath == "" {
		libraryPath = FindRuntimeLibrary()
	}
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}

	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("%w: failed to initialize ONNX runtime: %w", emotion.ErrModelUnavailable, err)
	}

	runtimeInitialized = true
	return nil
}

// DestroyRuntime tears the ONNX runtime environment down.
func DestroyRuntime() error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if !runtimeInitialized {
		return nil
	}

	if err := ort.DestroyEnvironment(); err != nil {
		return fmt.Errorf("failed to destroy ONNX runtime: %w", err)
	}

	runtimeInitialized = false
	return nil
}

// ONNXScorer runs the exported emotion network with onnxruntime. Tensors are
// allocated per call, so concurrent Score calls share only the session.
type ONNXScorer struct {
	cfg         ONNXConfig
	inputShape  ort.Shape
	outputShape ort.Shape
	logger      logging.Logger

	mu      sync.RWMutex
	session *ort.DynamicAdvancedSession
}

// NewONNXScorer loads the model. Any failure is reported as emotion.ErrModelUnavailable,
// or emotion.ErrShapeMismatch when the graph does not take 162 features and
// return 8 scores.
func NewONNXScorer(cfg ONNXConfig) (*ONNXScorer, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "onnx_scorer",
		"model":     cfg.ModelPath,
	})

	if err := cfg.IsValid(); err != nil {
		return nil, err
	}
	if err := InitRuntime(cfg.LibraryPath); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to inspect model: %w", emotion.ErrModelUnavailable, err)
	}

	in, err := pickNode(inputs, cfg.InputName, "input")
	if err != nil {
		return nil, err
	}
	out, err := pickNode(outputs, cfg.OutputName, "output")
	if err != nil {
		return nil, err
	}

	inputShape, err := concreteShape(in.Dimensions, features.VectorLength)
	if err != nil {
		return nil, fmt.Errorf("input %q: %w", in.Name, err)
	}
	outputShape, err := concreteShape(out.Dimensions, emotion.NumLabels)
	if err != nil {
		return nil, fmt.Errorf("output %q: %w", out.Name, err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create session options: %w", emotion.ErrModelUnavailable, err)
	}
	defer options.Destroy()

	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll); err != nil {
		return nil, fmt.Errorf("%w: failed to set graph optimization level: %w", emotion.ErrModelUnavailable, err)
	}
	if cfg.IntraOpThreads > 0 {
		if err := options.SetIntraOpNumThreads(cfg.IntraOpThreads); err != nil {
			return nil, fmt.Errorf("%w: failed to set intra-op threads: %w", emotion.ErrModelUnavailable, err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath, []string{in.Name}, []string{out.Name}, options)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create session: %w", emotion.ErrModelUnavailable, err)
	}

	logger.Info("Loaded emotion model", logging.Fields{
		"input":        in.Name,
		"input_shape":  inputShape.String(),
		"output":       out.Name,
		"output_shape": outputShape.String(),
	})

	return &ONNXScorer{
		cfg:         cfg,
		inputShape:  inputShape,
		outputShape: outputShape,
		logger:      logger,
		session:     session,
	}, nil
}

func pickNode(nodes []ort.InputOutputInfo, name, kind string) (ort.InputOutputInfo, error) {
	if len(nodes) == 0 {
		return ort.InputOutputInfo{}, fmt.Errorf("%w: model has no %s", emotion.ErrModelUnavailable, kind)
	}
	if name == "" {
		return nodes[0], nil
	}
	for _, n := range nodes {
		if n.Name == name {
			return n, nil
		}
	}
	return ort.InputOutputInfo{}, fmt.Errorf("%w: model has no %s named %q", emotion.ErrModelUnavailable, kind, name)
}

// concreteShape fixes dynamic dimensions to batch size 1 and checks that the
// remaining dimensions hold exactly want elements.
func concreteShape(dims ort.Shape, want int) (ort.Shape, error) {
	if len(dims) == 0 {
		return nil, fmt.Errorf("%w: scalar tensor", emotion.ErrShapeMismatch)
	}

	shape := make(ort.Shape, len(dims))
	copy(shape, dims)

	known := int64(1)
	dynamic := -1
	for i, d := range shape {
		if d > 0 {
			known *= d
			continue
		}
		if i == 0 {
			shape[i] = 1
			continue
		}
		if dynamic >= 0 {
			return nil, fmt.Errorf("%w: more than one dynamic dimension in %v", emotion.ErrShapeMismatch, dims)
		}
		dynamic = i
	}

	if dynamic >= 0 {
		if int64(want)%known != 0 {
			return nil, fmt.Errorf("%w: cannot fit %d values into %v", emotion.ErrShapeMismatch, want, dims)
		}
		shape[dynamic] = int64(want) / known
		known = int64(want)
	}
	if known != int64(want) {
		return nil, fmt.Errorf("%w: shape %v holds %d values, expected %d", emotion.ErrShapeMismatch, dims, known, want)
	}
	return shape, nil
}

// Score implements Scorer.
func (s *ONNXScorer) Score(ctx context.Context, input []float32) ([]float32, error) {
	if err := CheckInput(input); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil, fmt.Errorf("%w: scorer is closed", emotion.ErrModelUnavailable)
	}

	data := make([]float32, len(input))
	copy(data, input)

	inputTensor, err := ort.NewTensor(s.inputShape, data)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputTensor, err := ort.NewEmptyTensor[float32](s.outputShape)
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	if err := s.session.Run([]ort.Value{inputTensor}, []ort.Value{outputTensor}); err != nil {
		return nil, fmt.Errorf("%w: failed to run inference: %w", emotion.ErrModelUnavailable, err)
	}

	raw := outputTensor.GetData()
	scores := make([]float32, len(raw))
	copy(scores, raw)
	if err := CheckOutput(scores); err != nil {
		return nil, err
	}
	return scores, nil
}

// Close implements Scorer.
func (s *ONNXScorer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil
	}
	if err := s.session.Destroy(); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	s.session = nil
	return nil
}

var _ Scorer = (*ONNXScorer)(nil)
