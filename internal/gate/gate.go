package gate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/scalpbot/internal/domain"
)

// Decision is the outcome of one gate evaluation.
type Decision struct {
	Trade      bool
	Confidence float64
}

// Gate enforces the readiness precondition and the confidence threshold;
// feature scoring is delegated entirely to the Predictor collaborator.
type Gate struct {
	predictor domain.Predictor
	logger    *slog.Logger
}

// New creates a Gate.
func New(predictor domain.Predictor, logger *slog.Logger) *Gate {
	return &Gate{
		predictor: predictor,
		logger:    logger.With(slog.String("component", "signal_gate")),
	}
}

// Evaluate scores the current window. It returns trade=false without
// consulting the predictor while the window is not yet full. A predictor
// error also yields trade=false; scoring failures never stop the stream.
func (g *Gate) Evaluate(ctx context.Context, candles []domain.Candle, threshold float64) (Decision, error) {
	if len(candles) < windowCapacity {
		return Decision{}, nil
	}

	features := BuildFeatures(candles)
	confidence, err := g.predictor.Score(ctx, features)
	if err != nil {
		g.logger.Warn("predictor scoring failed", slog.String("error", err.Error()))
		return Decision{}, fmt.Errorf("gate: score: %w", err)
	}

	return Decision{
		Trade:      confidence >= threshold,
		Confidence: confidence,
	}, nil
}

// windowCapacity mirrors the aggregator's sliding-window size; the gate only
// evaluates against a completely warmed-up window.
const windowCapacity = 60
