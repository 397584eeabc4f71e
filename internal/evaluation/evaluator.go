package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/chat"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/embedding"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/apperr"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/logger"
)

const (
	DefaultUserEmail = "evaluation@docchat.local"

	ClassIrrelevant    = "irrelevant"
	ClassModerate      = "moderate"
	ClassFullyRelevant = "fully_relevant"
	ClassFailed        = "failed"
)

type Responder interface {
	Respond(ctx context.Context, req chat.Request) *chat.Response
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Evaluator struct {
	responder Responder
	embedder  Embedder
	userEmail string
}

type Dataset struct {
	Items []DatasetItem `json:"items"`
}

type DatasetItem struct {
	Question    string `json:"question"`
	GroundTruth string `json:"ground_truth"`
	Category    string `json:"category,omitempty"`
}

type ItemResult struct {
	Question         string   `json:"question"`
	Response         string   `json:"response"`
	CosineSimilarity float64  `json:"cosine_similarity"`
	ConfidenceScore  *float64 `json:"confidence_score"`
	Sources          int      `json:"sources"`
	Classification   string   `json:"classification"`
	Error            string   `json:"error,omitempty"`
}

type Report struct {
	TotalQueries            int          `json:"total_queries"`
	FailedCount             int          `json:"failed_count"`
	IrrelevantCount         int          `json:"irrelevant_count"`
	ModerateCount           int          `json:"moderate_count"`
	FullyRelevantCount      int          `json:"fully_relevant_count"`
	AvgCosineSimilarity     float64      `json:"avg_cosine_similarity"`
	AvgConfidence           *float64     `json:"avg_confidence"`
	IrrelevantPercentage    float64      `json:"irrelevant_percentage"`
	ModeratePercentage      float64      `json:"moderate_percentage"`
	FullyRelevantPercentage float64      `json:"fully_relevant_percentage"`
	Items                   []ItemResult `json:"items"`
}

func NewEvaluator(responder Responder, embedder Embedder, userEmail string) *Evaluator {
	if userEmail == "" {
		userEmail = DefaultUserEmail
	}
	return &Evaluator{
		responder: responder,
		embedder:  embedder,
		userEmail: userEmail,
	}
}

// EvaluateItem asks the question in a fresh conversation and compares the
// answer with the ground truth.
func (e *Evaluator) EvaluateItem(ctx context.Context, item DatasetItem) ItemResult {
	resp := e.responder.Respond(ctx, chat.Request{UserEmail: e.userEmail, Message: item.Question})

	result := ItemResult{
		Question:        item.Question,
		Response:        resp.Response,
		ConfidenceScore: resp.ConfidenceScore,
		Sources:         len(resp.Sources),
	}

	if resp.Error != "" {
		result.Classification = ClassFailed
		result.Error = resp.Error
		return result
	}

	if strings.TrimSpace(item.GroundTruth) != "" {
		sim, err := e.similarity(ctx, resp.Response, item.GroundTruth)
		if err != nil {
			logger.Warn("Failed to calculate cosine similarity", zap.Error(err))
		}
		result.CosineSimilarity = sim
	}

	result.Classification = Classify(result.CosineSimilarity)
	return result
}

func (e *Evaluator) RunDatasetEvaluation(ctx context.Context, dataset *Dataset) (*Report, error) {
	logger.Info("Running dataset evaluation", zap.Int("items", len(dataset.Items)))

	report := &Report{
		TotalQueries: len(dataset.Items),
		Items:        make([]ItemResult, 0, len(dataset.Items)),
	}

	var totalCosineSim, totalConfidence float64
	var scored, withConfidence int

	for i, item := range dataset.Items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		logger.Info("Evaluating item", zap.Int("index", i+1), zap.Int("total", len(dataset.Items)))

		result := e.EvaluateItem(ctx, item)
		report.Items = append(report.Items, result)

		switch result.Classification {
		case ClassFailed:
			report.FailedCount++
			continue
		case ClassIrrelevant:
			report.IrrelevantCount++
		case ClassModerate:
			report.ModerateCount++
		case ClassFullyRelevant:
			report.FullyRelevantCount++
		}

		scored++
		totalCosineSim += result.CosineSimilarity
		if result.ConfidenceScore != nil {
			withConfidence++
			totalConfidence += *result.ConfidenceScore
		}
	}

	if scored > 0 {
		report.AvgCosineSimilarity = totalCosineSim / float64(scored)
	}
	if withConfidence > 0 {
		avg := totalConfidence / float64(withConfidence)
		report.AvgConfidence = &avg
	}
	if report.TotalQueries > 0 {
		report.IrrelevantPercentage = float64(report.IrrelevantCount) / float64(report.TotalQueries) * 100
		report.ModeratePercentage = float64(report.ModerateCount) / float64(report.TotalQueries) * 100
		report.FullyRelevantPercentage = float64(report.FullyRelevantCount) / float64(report.TotalQueries) * 100
	}

	logger.Info("Dataset evaluation completed",
		zap.Int("total", report.TotalQueries),
		zap.Int("failed", report.FailedCount),
		zap.Int("irrelevant", report.IrrelevantCount),
		zap.Int("moderate", report.ModerateCount),
		zap.Int("fully_relevant", report.FullyRelevantCount),
	)

	return report, nil
}

// Classify buckets an answer by its similarity to the ground truth.
func Classify(similarity float64) string {
	switch {
	case similarity >= 0.8:
		return ClassFullyRelevant
	case similarity >= 0.5:
		return ClassModerate
	default:
		return ClassIrrelevant
	}
}

func (e *Evaluator) similarity(ctx context.Context, text1, text2 string) (float64, error) {
	emb1, err := e.embedder.Embed(ctx, text1)
	if err != nil {
		return 0, err
	}

	emb2, err := e.embedder.Embed(ctx, text2)
	if err != nil {
		return 0, err
	}

	return embedding.Cosine(emb1, emb2)
}

func LoadDatasetFromJSON(data []byte) (*Dataset, error) {
	var dataset Dataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dataset: %w: %w", apperr.ErrValidation, err)
	}

	for i, item := range dataset.Items {
		if strings.TrimSpace(item.Question) == "" {
			return nil, fmt.Errorf("dataset item %d has no question: %w", i, apperr.ErrValidation)
		}
	}

	return &dataset, nil
}

func GenerateReport(report *Report) string {
	confidence := "n/a"
	if report.AvgConfidence != nil {
		confidence = fmt.Sprintf("%.3f", *report.AvgConfidence)
	}

	return fmt.Sprintf(`
Evaluation Report
=================

Total Queries: %d
Failed: %d

Classifications:
- Irrelevant: %d (%.1f%%)
- Moderately Relevant: %d (%.1f%%)
- Fully Relevant: %d (%.1f%%)

Cosine Similarity: %.3f
Average Confidence: %s
`,
		report.TotalQueries,
		report.FailedCount,
		report.IrrelevantCount, report.IrrelevantPercentage,
		report.ModerateCount, report.ModeratePercentage,
		report.FullyRelevantCount, report.FullyRelevantPercentage,
		report.AvgCosineSimilarity,
		confidence,
	)
}
