// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package prompts builds the specialized Portuguese-language prompts that
// turn SQL results into conversational public-health answers.
//
// Each analysis type pairs a system prompt (base persona plus a
// specialization section plus embedded SUS domain knowledge) with a user
// template that carries the question, the executed SQL and the formatted
// results. Classify selects the analysis type from the question's wording.
package prompts

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/susquery/services/susquery/datatypes"
)

// =============================================================================
// Embedded SUS Knowledge Base
// =============================================================================

//go:embed knowledge.yaml
var knowledgeYAML []byte

// knowledgeBase is the parsed form of knowledge.yaml.
type knowledgeBase struct {
	Areas         map[string]string   `yaml:"areas"`
	TemplateAreas map[string][]string `yaml:"template_areas"`
}

// =============================================================================
// System Prompts
// =============================================================================

// baseSystemPrompt is the shared persona for every analysis type.
const baseSystemPrompt = `Você é um assistente especialista em dados do Sistema Único de Saúde (SUS) brasileiro.
Sua expertise inclui análise de dados de saúde pública, terminologia médica em português,
estrutura organizacional do SUS e interpretação de indicadores de saúde.

SUAS RESPONSABILIDADES:
- Transformar dados SQL em insights de saúde pública
- Explicar contexto e relevância dos dados SUS
- Usar terminologia médica e do SUS apropriada
- Fornecer interpretações práticas para gestores de saúde
- Manter linguagem profissional mas acessível

SEMPRE CONSIDERE:
- Impacto na saúde pública
- Relevância para gestão em saúde
- Contexto epidemiológico brasileiro
- Implicações para políticas públicas de saúde`

const statisticalSpecialization = `
ESPECIALIZAÇÃO EM ANÁLISE ESTATÍSTICA:
- Calcule e explique indicadores de saúde
- Identifique padrões e anomalias estatísticas
- Compare com médias nacionais e regionais
- Avalie significância estatística quando relevante
- Forneça interpretação epidemiológica`

const comparativeSpecialization = `
ESPECIALIZAÇÃO EM ANÁLISE COMPARATIVA:
- Compare dados entre regiões, estados, municípios
- Identifique disparidades regionais em saúde
- Analise performance relativa de estabelecimentos
- Contextualize diferenças socioeconômicas
- Sugira fatores explicativos para as diferenças`

const trendSpecialization = `
ESPECIALIZAÇÃO EM ANÁLISE TEMPORAL:
- Identifique tendências temporais em dados de saúde
- Detecte sazonalidade e ciclos
- Analise impacto de políticas públicas ao longo do tempo
- Projete tendências futuras quando apropriado
- Correlacione com eventos históricos relevantes`

const geographicSpecialization = `
ESPECIALIZAÇÃO EM ANÁLISE GEOGRÁFICA:
- Analise distribuição espacial de dados de saúde
- Identifique clusters geográficos
- Considere fatores socioeconômicos regionais
- Analise acessibilidade e cobertura geográfica
- Contextualize diferenças urbano-rurais`

const errorSpecialization = `
ESPECIALIZAÇÃO EM RESOLUÇÃO DE PROBLEMAS:
- Explique erros de forma educativa
- Sugira correções práticas
- Forneça contexto sobre limitações dos dados SUS
- Oriente sobre fontes alternativas de dados
- Mantenha tom construtivo e útil`

const suggestionSpecialization = `
ESPECIALIZAÇÃO EM SUGESTÕES ANALÍTICAS:
- Sugira análises complementares relevantes
- Identifique oportunidades de aprofundamento
- Proponha cruzamentos de dados úteis
- Recomende visualizações apropriadas
- Oriente sobre próximos passos analíticos`

// =============================================================================
// User Templates
// =============================================================================

const basicUserTemplate = `PERGUNTA DO USUÁRIO: {{.UserQuery}}
CONSULTA SQL: {{.SQLQuery}}
RESULTADOS: {{.Results}}

Transforme estes dados em uma resposta clara e informativa.
Inclua contexto relevante sobre o SUS e implicações práticas dos dados.

FORMATO DA RESPOSTA:
1. Resposta direta à pergunta
2. Interpretação dos dados
3. Contexto relevante do SUS
4. Observações práticas`

const statisticalUserTemplate = `ANÁLISE ESTATÍSTICA SOLICITADA: {{.UserQuery}}
DADOS OBTIDOS: {{.Results}}

Realize análise estatística completa incluindo:
- Medidas de tendência central
- Variabilidade dos dados
- Comparação com padrões esperados
- Identificação de outliers
- Interpretação epidemiológica
- Recomendações baseadas nos achados`

const comparativeUserTemplate = `COMPARAÇÃO SOLICITADA: {{.UserQuery}}
DADOS COMPARATIVOS: {{.Results}}

Realize análise comparativa detalhada:
- Ranking das entidades comparadas
- Diferenças percentuais significativas
- Fatores explicativos possíveis
- Implicações para políticas públicas
- Recomendações específicas por região/entidade`

const trendUserTemplate = `ANÁLISE TEMPORAL SOLICITADA: {{.UserQuery}}
DADOS TEMPORAIS: {{.Results}}

Analise as tendências temporais:
- Direção da tendência (crescente/decrescente/estável)
- Taxa de mudança ao longo do tempo
- Pontos de inflexão significativos
- Sazonalidade identificada
- Fatores explicativos para as mudanças
- Projeções e implicações futuras`

const geographicUserTemplate = `ANÁLISE GEOGRÁFICA SOLICITADA: {{.UserQuery}}
DADOS GEOGRÁFICOS: {{.Results}}

Analise a distribuição geográfica:
- Padrões de distribuição espacial
- Regiões com maior/menor indicador
- Fatores geográficos explicativos
- Implicações para acesso aos serviços
- Recomendações de políticas regionalizadas`

const errorUserTemplate = `ERRO ENCONTRADO: {{.ErrorMessage}}
CONSULTA PROBLEMÁTICA: {{.SQLQuery}}
PERGUNTA ORIGINAL: {{.UserQuery}}

Explique o erro de forma construtiva:
- O que causou o problema
- Como corrigir a consulta
- Limitações dos dados SUS relevantes
- Alternativas de consulta
- Dicas para futuras consultas`

const suggestionUserTemplate = `CONSULTA REALIZADA: {{.UserQuery}}
RESULTADOS OBTIDOS: {{.Results}}

Com base nos dados, sugira:
- Análises complementares relevantes
- Cruzamentos de dados interessantes
- Comparações úteis
- Visualizações recomendadas
- Próximos passos analíticos`

// =============================================================================
// Builder
// =============================================================================

// promptSpec couples one analysis type's system prompt, parsed user
// template and attached knowledge areas.
type promptSpec struct {
	name           string
	systemPrompt   string
	userTmpl       *template.Template
	responseFormat string
	knowledge      []string
}

// BuildInput carries the per-request values rendered into a user template.
// Results must already be formatted text (see FormatResults).
type BuildInput struct {
	UserQuery    string
	SQLQuery     string
	Results      string
	ErrorMessage string
}

// Builder renders complete prompts for every analysis type.
//
// Thread Safety: Immutable after construction; safe for concurrent use.
type Builder struct {
	specs     map[datatypes.PromptType]promptSpec
	knowledge knowledgeBase
}

// TemplateInfo describes one available template for status endpoints.
type TemplateInfo struct {
	Name           string   `json:"name"`
	ResponseFormat string   `json:"response_format"`
	Knowledge      []string `json:"specialized_knowledge"`
}

// NewBuilder parses the user templates and the embedded knowledge base.
func NewBuilder() (*Builder, error) {
	var kb knowledgeBase
	if err := yaml.Unmarshal(knowledgeYAML, &kb); err != nil {
		return nil, fmt.Errorf("parsing embedded knowledge base: %w", err)
	}

	raw := []struct {
		pt             datatypes.PromptType
		name           string
		systemPrompt   string
		userTemplate   string
		responseFormat string
	}{
		{datatypes.PromptBasicResponse, "Resposta Básica SUS", baseSystemPrompt, basicUserTemplate, "conversational"},
		{datatypes.PromptStatisticalAnalysis, "Análise Estatística SUS", baseSystemPrompt + "\n" + statisticalSpecialization, statisticalUserTemplate, "analytical"},
		{datatypes.PromptComparativeAnalysis, "Análise Comparativa SUS", baseSystemPrompt + "\n" + comparativeSpecialization, comparativeUserTemplate, "comparative"},
		{datatypes.PromptTrendAnalysis, "Análise de Tendências SUS", baseSystemPrompt + "\n" + trendSpecialization, trendUserTemplate, "temporal"},
		{datatypes.PromptGeographicAnalysis, "Análise Geográfica SUS", baseSystemPrompt + "\n" + geographicSpecialization, geographicUserTemplate, "geographic"},
		{datatypes.PromptErrorExplanation, "Explicação de Erros SUS", baseSystemPrompt + "\n" + errorSpecialization, errorUserTemplate, "explanatory"},
		{datatypes.PromptSuggestionResponse, "Sugestões de Análise SUS", baseSystemPrompt + "\n" + suggestionSpecialization, suggestionUserTemplate, "suggestive"},
	}

	specs := make(map[datatypes.PromptType]promptSpec, len(raw))
	for _, r := range raw {
		tmpl, err := template.New(string(r.pt)).Parse(r.userTemplate)
		if err != nil {
			return nil, fmt.Errorf("parsing %s user template: %w", r.pt, err)
		}
		specs[r.pt] = promptSpec{
			name:           r.name,
			systemPrompt:   r.systemPrompt,
			userTmpl:       tmpl,
			responseFormat: r.responseFormat,
			knowledge:      kb.TemplateAreas[string(r.pt)],
		}
	}

	return &Builder{specs: specs, knowledge: kb}, nil
}

// System returns the full system prompt for the type: persona and
// specialization plus the attached knowledge areas.
func (b *Builder) System(pt datatypes.PromptType) string {
	spec, ok := b.specs[pt]
	if !ok {
		spec = b.specs[datatypes.PromptBasicResponse]
	}

	var sb strings.Builder
	sb.WriteString(spec.systemPrompt)
	for _, area := range spec.knowledge {
		text, ok := b.knowledge.Areas[area]
		if !ok {
			continue
		}
		sb.WriteString("\n\n")
		sb.WriteString(strings.TrimSpace(text))
	}
	return sb.String()
}

// User renders the user prompt for the type from the given input.
func (b *Builder) User(pt datatypes.PromptType, in BuildInput) (string, error) {
	spec, ok := b.specs[pt]
	if !ok {
		spec = b.specs[datatypes.PromptBasicResponse]
	}

	var buf bytes.Buffer
	if err := spec.userTmpl.Execute(&buf, in); err != nil {
		return "", fmt.Errorf("rendering %s user template: %w", pt, err)
	}
	return buf.String(), nil
}

// Build renders the complete single-string prompt (system plus user) for
// callers that talk to a completion-style endpoint.
func (b *Builder) Build(pt datatypes.PromptType, in BuildInput) (string, error) {
	user, err := b.User(pt, in)
	if err != nil {
		return "", err
	}
	return b.System(pt) + "\n\n" + user, nil
}

// Available lists every template with its metadata, keyed by type.
func (b *Builder) Available() map[string]TemplateInfo {
	out := make(map[string]TemplateInfo, len(b.specs))
	for pt, spec := range b.specs {
		out[string(pt)] = TemplateInfo{
			Name:           spec.name,
			ResponseFormat: spec.responseFormat,
			Knowledge:      spec.knowledge,
		}
	}
	return out
}

// =============================================================================
// Result Formatting
// =============================================================================

// FormatResults renders result rows as a numbered list for prompt
// inclusion, truncated to limit rows.
//
// Nil means the query produced no result payload at all; an empty slice
// means it ran but matched nothing. The two render differently so the
// model can phrase the answer accordingly.
func FormatResults(rows []datatypes.Row, limit int) string {
	if rows == nil {
		return "Nenhum resultado encontrado."
	}
	if len(rows) == 0 {
		return "Consulta executada com sucesso, mas não retornou dados."
	}

	shown := rows
	if len(rows) > limit {
		shown = rows[:limit]
	}

	lines := make([]string, 0, len(shown)+1)
	for i, row := range shown {
		lines = append(lines, fmt.Sprintf("%d. %v", i+1, row))
	}
	if len(rows) > limit {
		lines = append(lines, fmt.Sprintf("... (mostrando %d de %d resultados)", limit, len(rows)))
	}
	return strings.Join(lines, "\n")
}
