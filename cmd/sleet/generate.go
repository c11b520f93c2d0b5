package main

import (
	"context"
	"fmt"

	"github.com/sleetrun/sleet/pkg/llmadapter"
	"github.com/sleetrun/sleet/pkg/orchestration"
)

// runGenerate drives a full planning session (§4.2.2) to convergence
// using llmadapter.DeterministicClient in place of a real provider,
// mirroring S6: the session is expected to converge a few iterations in
// once the deterministic arbiter starts reporting goal_achieved.
func runGenerate(_ []string) int {
	client := &llmadapter.DeterministicClient{Iterations: 2}

	goal := "draft a rollout plan for the new ingestion pipeline"
	lead := llmadapter.NewLeadSpecialist(client, goal)
	panel := []orchestration.FeedbackSpecialist{
		llmadapter.NewFeedbackSpecialist(client, "security-reviewer", "security"),
		llmadapter.NewFeedbackSpecialist(client, "ops-reviewer", "operability"),
	}
	distiller := llmadapter.NewDistiller(client)
	arbiter := llmadapter.NewArbiter(client, "You judge whether the goal has been achieved, responding as JSON.")
	scorer := llmadapter.NewScorer(client)
	breakout := llmadapter.NewBreakoutSummarizer(client)

	cfg := orchestration.DefaultSessionConfig()
	cfg.MaxIterations = 10
	cfg.MinConfidence = 0.8

	session := orchestration.NewSession("demo-session", cfg, lead, panel, distiller, arbiter, scorer, breakout)

	assessment, err := session.Run(context.Background())
	if err != nil {
		fmt.Printf("generate: session did not converge: %v\n", err)
		return exitRuntimeFailure
	}

	fmt.Printf("generate: converged after %d iteration(s): achieved=%t confidence=%.2f reasoning=%q\n",
		len(session.History()), assessment.GoalAchieved, assessment.Confidence, assessment.Reasoning)
	return exitSuccess
}
