package models

// ReviewConfidenceThreshold is the OCR confidence below which a token flags
// the whole extraction for human review.
const ReviewConfidenceThreshold = 60

// Token is a single OCR token with the engine's 0-100 confidence score.
type Token struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// RawExtraction is the immutable output of the text-extraction stage.
type RawExtraction struct {
	Tokens           []Token `json:"tokens"`
	FullText         string  `json:"full_text"`
	CleanedText      string  `json:"cleaned_text"`
	FlaggedForReview bool    `json:"flagged_for_review"`
}

// Text returns the LLM-refined text when refinement succeeded, otherwise the
// raw full-page text.
func (r *RawExtraction) Text() string {
	if r.CleanedText != "" {
		return r.CleanedText
	}
	return r.FullText
}

// NewRawExtraction derives full text and the review flag from OCR tokens.
func NewRawExtraction(tokens []Token, fullText string) *RawExtraction {
	flagged := false
	for _, t := range tokens {
		if t.Confidence < ReviewConfidenceThreshold {
			flagged = true
			break
		}
	}
	return &RawExtraction{
		Tokens:           tokens,
		FullText:         fullText,
		FlaggedForReview: flagged,
	}
}
