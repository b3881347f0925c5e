package model

import "testing"

func TestEventTypeValid(t *testing.T) {
	valid := []EventType{
		EventUserInput, EventToolStart, EventToolEnd, EventDecision,
		EventLLMEnd, EventFinalAnswer, EventError,
	}
	for _, et := range valid {
		if !et.Valid() {
			t.Errorf("%q should be valid", et)
		}
	}
	if EventType("llm_start").Valid() {
		t.Error("llm_start is not a recorded event type")
	}
	if EventType("").Valid() {
		t.Error("empty event type should be invalid")
	}
}

func TestMetricValid(t *testing.T) {
	valid := []Metric{
		MetricFaithfulness, MetricAnswerRelevance,
		MetricSemanticSimilarity, MetricURLValidity,
	}
	for _, m := range valid {
		if !m.Valid() {
			t.Errorf("%q should be valid", m)
		}
	}
	if Metric("latency").Valid() {
		t.Error("latency is not a grading metric")
	}
}
