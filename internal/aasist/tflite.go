package aasist

import (
	"context"
	"math"
	"runtime"
	"sync"

	tflite "github.com/tphakala/go-tflite"
	"github.com/tphakala/go-tflite/delegates/xnnpack"

	"github.com/veridict/voiceguard-go/internal/conf"
	"github.com/veridict/voiceguard-go/internal/errors"
	"github.com/veridict/voiceguard-go/internal/logging"
	"github.com/veridict/voiceguard-go/internal/myaudio"
)

var logger = logging.ForService("aasist")

// TFLiteScorer runs one AASIST model through the TensorFlow Lite interpreter.
// The model takes a fixed-length raw waveform and outputs logits for the
// [synthetic, bonafide] classes.
type TFLiteScorer struct {
	id           string
	interpreter  *tflite.Interpreter
	inputSamples int

	// The TFLite interpreter is not safe for concurrent invocation; model
	// weights themselves stay read-only.
	mu sync.Mutex
}

// NewTFLiteScorer builds an interpreter for the given model data. The input
// tensor length must match the configured window length.
func NewTFLiteScorer(id string, modelData []byte, settings *conf.Settings) (*TFLiteScorer, error) {
	model := tflite.NewModel(modelData)
	if model == nil {
		return nil, errors.Newf("cannot load TensorFlow Lite model").
			Component("aasist").
			Category(errors.CategoryModelInit).
			ModelContext(id).
			Context("model_size_mb", len(modelData)/1024/1024).
			Build()
	}

	threads := determineThreadCount(settings.Models.Threads)
	options := tflite.NewInterpreterOptions()
	if settings.Models.UseXNNPACK {
		delegate := xnnpack.New(xnnpack.DelegateOptions{NumThreads: int32(max(1, threads-1))}) //nolint:gosec // G115: thread count bounded by CPU count
		if delegate == nil {
			logger.Warn("failed to create XNNPACK delegate, falling back to default CPU",
				"model_id", id)
			options.SetNumThread(threads)
		} else {
			options.AddDelegate(delegate)
			options.SetNumThread(1)
		}
	} else {
		options.SetNumThread(threads)
	}
	options.SetErrorReporter(func(msg string, userData any) {
		logger.Error("TFLite error", "message", msg)
	}, nil)

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		return nil, errors.Newf("cannot create interpreter").
			Component("aasist").
			Category(errors.CategoryModelInit).
			ModelContext(id).
			Build()
	}
	if status := interpreter.AllocateTensors(); status != tflite.OK {
		return nil, errors.Newf("tensor allocation failed: %v", status).
			Component("aasist").
			Category(errors.CategoryModelInit).
			ModelContext(id).
			Build()
	}

	inputTensor := interpreter.GetInputTensor(0)
	if inputTensor == nil {
		return nil, errors.Newf("cannot get input tensor").
			Component("aasist").
			Category(errors.CategoryModelInit).
			ModelContext(id).
			Build()
	}
	inputSamples := inputTensor.Dim(inputTensor.NumDims() - 1)
	if expected := settings.WindowSamples(); inputSamples != expected {
		return nil, errors.Newf("model input length mismatch: model expects %d samples, window length gives %d",
			inputSamples, expected).
			Component("aasist").
			Category(errors.CategoryValidation).
			ModelContext(id).
			Build()
	}

	// The model data is no longer needed, TFLite keeps its own copy.
	runtime.GC()

	logger.Info("AASIST model initialized",
		"model_id", id,
		"input_samples", inputSamples,
		"threads", threads,
		"total_cpus", runtime.NumCPU())

	return &TFLiteScorer{
		id:           id,
		interpreter:  interpreter,
		inputSamples: inputSamples,
	}, nil
}

// ID returns the stable model identifier.
func (s *TFLiteScorer) ID() string {
	return s.id
}

// Score runs inference on a single window and converts the output logits to
// class probabilities via softmax.
func (s *TFLiteScorer) Score(ctx context.Context, window myaudio.Window) (ModelScore, error) {
	if err := ctx.Err(); err != nil {
		return ModelScore{}, errors.New(err).
			Component("aasist").
			Category(errors.CategoryCancellation).
			ModelContext(s.id).
			Build()
	}
	if len(window.Samples) != s.inputSamples {
		return ModelScore{}, errors.Newf("window length %d does not match model input length %d",
			len(window.Samples), s.inputSamples).
			Component("aasist").
			Category(errors.CategoryValidation).
			ModelContext(s.id).
			Build()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inputTensor := s.interpreter.GetInputTensor(0)
	if inputTensor == nil {
		return ModelScore{}, errors.Newf("cannot get input tensor").
			Component("aasist").
			Category(errors.CategoryModelInference).
			ModelContext(s.id).
			Build()
	}
	copy(inputTensor.Float32s(), window.Samples)

	if status := s.interpreter.Invoke(); status != tflite.OK {
		return ModelScore{}, errors.Newf("tensor invoke failed: %v", status).
			Component("aasist").
			Category(errors.CategoryModelInference).
			ModelContext(s.id).
			Build()
	}

	outputTensor := s.interpreter.GetOutputTensor(0)
	if outputTensor == nil {
		return ModelScore{}, errors.Newf("cannot get output tensor").
			Component("aasist").
			Category(errors.CategoryModelInference).
			ModelContext(s.id).
			Build()
	}
	logits := outputTensor.Float32s()
	if len(logits) < 2 {
		return ModelScore{}, errors.Newf("unexpected output tensor size: %d", len(logits)).
			Component("aasist").
			Category(errors.CategoryModelInference).
			ModelContext(s.id).
			Build()
	}

	// Output index 0 = synthetic (spoof), index 1 = bonafide.
	synthetic, bonafide := softmax2(float64(logits[0]), float64(logits[1]))
	return ModelScore{ModelID: s.id, Synthetic: synthetic, Bonafide: bonafide}, nil
}

// Delete releases the interpreter resources.
func (s *TFLiteScorer) Delete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.interpreter != nil {
		s.interpreter.Delete()
		s.interpreter = nil
	}
}

// softmax2 converts a pair of logits to probabilities, shifted by the max
// logit for numerical stability.
func softmax2(a, b float64) (pa, pb float64) {
	m := math.Max(a, b)
	ea := math.Exp(a - m)
	eb := math.Exp(b - m)
	sum := ea + eb
	return ea / sum, eb / sum
}

// determineThreadCount picks the interpreter thread count from settings,
// bounded by the system CPU count. Zero means use all CPUs.
func determineThreadCount(configured int) int {
	systemCPUs := runtime.NumCPU()
	if configured <= 0 || configured > systemCPUs {
		return systemCPUs
	}
	return configured
}
