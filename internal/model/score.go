package model

import (
	"time"
)

// Metric identifies one of the evaluation metrics.
type Metric string

const (
	MetricFaithfulness       Metric = "faithfulness"
	MetricAnswerRelevance    Metric = "answer_relevance"
	MetricSemanticSimilarity Metric = "semantic_similarity"
	MetricURLValidity        Metric = "url_validity"
)

// Valid reports whether m is a known metric.
func (m Metric) Valid() bool {
	switch m {
	case MetricFaithfulness, MetricAnswerRelevance, MetricSemanticSimilarity, MetricURLValidity:
		return true
	}
	return false
}

// Score is one graded metric for one session. A correctly operating
// evaluator writes at most one Score per (session, metric); the store does
// not enforce uniqueness — the ungraded-session anti-join does.
type Score struct {
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id"`
	Metric    Metric    `json:"metric_name"`
	Score     float64   `json:"score"`
	Reason    string    `json:"reason"`
}
