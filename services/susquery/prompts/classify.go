// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package prompts

import (
	"strings"

	"github.com/AleutianAI/susquery/services/susquery/datatypes"
)

// Keyword sets for prompt-type classification, matched as substrings of the
// lowercased question. Priority is fixed: statistical beats comparative
// beats trend beats geographic, so "comparar a média por estado" is
// classified as statistical.
var (
	statisticalKeywords = []string{"média", "total", "soma", "count", "quantidade", "estatística"}
	comparativeKeywords = []string{"comparar", "versus", "diferença", "maior", "menor", "ranking"}
	trendKeywords       = []string{"tendência", "evolução", "histórico", "tempo", "crescimento", "ano"}
	geographicKeywords  = []string{"estado", "município", "região", "cidade", "geografia", "mapa"}
)

// Classify picks the analysis template for a question.
//
// A failed query always classifies as error explanation regardless of the
// question's wording. Otherwise the keyword sets are checked in priority
// order and the first hit wins; questions matching nothing get the basic
// response template.
func Classify(question string, hasError bool) datatypes.PromptType {
	if hasError {
		return datatypes.PromptErrorExplanation
	}

	lower := strings.ToLower(question)
	switch {
	case containsAny(lower, statisticalKeywords):
		return datatypes.PromptStatisticalAnalysis
	case containsAny(lower, comparativeKeywords):
		return datatypes.PromptComparativeAnalysis
	case containsAny(lower, trendKeywords):
		return datatypes.PromptTrendAnalysis
	case containsAny(lower, geographicKeywords):
		return datatypes.PromptGeographicAnalysis
	default:
		return datatypes.PromptBasicResponse
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
