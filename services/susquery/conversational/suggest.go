// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package conversational

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/susquery/services/susquery/datatypes"
)

// maxSuggestions caps the follow-up list per answer.
const maxSuggestions = 3

var typeSuggestions = map[datatypes.PromptType][]string{
	datatypes.PromptBasicResponse: {
		"Gostaria de ver a evolução temporal destes dados?",
		"Quer comparar com outras regiões?",
		"Posso mostrar estatísticas detalhadas destes resultados",
	},
	datatypes.PromptStatisticalAnalysis: {
		"Quer ver a distribuição geográfica destes indicadores?",
		"Posso comparar com períodos anteriores",
		"Gostaria de análise de tendências temporais?",
	},
	datatypes.PromptComparativeAnalysis: {
		"Quer entender os fatores que explicam essas diferenças?",
		"Posso mostrar a evolução temporal dessas comparações",
		"Gostaria de ver dados por estabelecimento específico?",
	},
	datatypes.PromptGeographicAnalysis: {
		"Quer analisar fatores socioeconômicos relacionados?",
		"Posso mostrar a evolução temporal por região",
		"Gostaria de comparar urbano vs rural?",
	},
}

var temporalIndicators = []string{"ano", "mes", "data", "periodo", "20", "19"}
var geographicIndicators = []string{"estado", "municipio", "cidade", "regiao", "uf"}

// suggest proposes up to three follow-up analyses for the answer type and
// result shape.
func suggest(pt datatypes.PromptType, results []datatypes.Row) []string {
	suggestions := append([]string(nil), typeSuggestions[pt]...)

	if firstRowContains(results, temporalIndicators) {
		suggestions = append(suggestions, "Posso criar análise de tendências temporais")
	}
	if firstRowContains(results, geographicIndicators) {
		suggestions = append(suggestions, "Posso gerar análise de distribuição geográfica")
	}

	if len(suggestions) > maxSuggestions {
		suggestions = suggestions[:maxSuggestions]
	}
	return suggestions
}

// firstRowContains checks the stringified first row for any of the given
// markers. Only the first row is inspected; result sets are homogeneous.
func firstRowContains(results []datatypes.Row, indicators []string) bool {
	if len(results) == 0 {
		return false
	}
	first := strings.ToLower(fmt.Sprintf("%v", results[0]))
	for _, indicator := range indicators {
		if strings.Contains(first, indicator) {
			return true
		}
	}
	return false
}
