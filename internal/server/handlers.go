package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rahul/sentinel/internal/agent"
	"github.com/rahul/sentinel/internal/artifacts"
	"github.com/rahul/sentinel/internal/diagram"
	"github.com/rahul/sentinel/internal/prompts"
)

type reviewResponse struct {
	Report            string `json:"report"`
	OriginalGraph     string `json:"original_graph"`
	ChangedGraph      string `json:"changed_graph"`
	ChangedTerraform  string `json:"changed_terraform"`
	OriginalTerraform string `json:"original_terraform"`
}

func (s *Server) processTerraform(c *gin.Context) {
	// held from the purge through read-back so no other run touches the
	// workspace in between
	release, ok := s.gate.TryAcquire()
	if !ok {
		abortWithError(c, agent.BusyError())
		return
	}
	defer release()

	inputs, err := s.workspace.LoadInputs()
	if err != nil {
		abortWithError(c, err)
		return
	}

	removed, err := s.workspace.PurgeStale()
	if err != nil {
		s.logger.Warn("stale artifacts not fully removed", "err", err)
	}
	if len(removed) > 0 {
		s.logger.Debug("removed stale artifacts", "files", removed)
	}

	if err := s.workspace.Write(artifacts.OriginalTerraform, inputs.Terraform); err != nil {
		abortWithError(c, err)
		return
	}

	goal, err := s.prompts.Get(prompts.TerraformGoal)
	if err != nil {
		abortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	run, err := s.reviewer.Execute(ctx, goal)
	if err != nil {
		abortWithError(c, fmt.Errorf("review run failed: %w", err))
		return
	}

	outputs, err := s.workspace.ReadAll(artifacts.ReviewOutputs...)
	if err != nil {
		var incomplete *artifacts.IncompleteRunError
		if errors.As(err, &incomplete) {
			s.logger.Error("review finished without all artifacts", "run", run.ID, "missing", incomplete.Missing)
			err = &agent.Error{Kind: agent.KindArtifact, Err: incomplete}
		}
		s.notify(ctx, fmt.Sprintf("Terraform review %s failed: %v", run.ID, err))
		abortWithError(c, err)
		return
	}

	s.notify(ctx, reviewSummary(run, outputs[artifacts.Report]))

	c.JSON(http.StatusOK, reviewResponse{
		Report:            outputs[artifacts.Report],
		OriginalGraph:     outputs[artifacts.OriginalGraph],
		ChangedGraph:      outputs[artifacts.ChangedGraph],
		ChangedTerraform:  outputs[artifacts.ChangedTerraform],
		OriginalTerraform: inputs.Terraform,
	})
}

func (s *Server) notify(ctx context.Context, msg string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(context.WithoutCancel(ctx), msg); err != nil {
		s.logger.Warn("notification failed", "err", err)
	}
}

// reviewSummary counts findings per severity when the report is the expected
// JSON array.
func reviewSummary(run *agent.Run, report string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Terraform review %s finished: %d steps.", run.ID, len(run.Outputs))

	var findings []struct {
		Severity int `json:"severity"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(report)), &findings); err == nil {
		counts := map[int]int{}
		for _, f := range findings {
			counts[f.Severity]++
		}
		fmt.Fprintf(&b, " %d vulnerabilities (high: %d, medium: %d, low: %d).", len(findings), counts[3], counts[2], counts[1])
	}
	return b.String()
}

func (s *Server) bindDiagramInput(c *gin.Context) (diagram.Input, bool) {
	var in diagram.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return in, false
	}
	if len(in.InfrastructureData) == 0 || string(in.InfrastructureData) == "null" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "infrastructure_data is required"})
		return in, false
	}
	return in, true
}

func (s *Server) generateInfrastructureDiagram(c *gin.Context) {
	in, ok := s.bindDiagramInput(c)
	if !ok {
		return
	}

	if err := s.workspace.Write(artifacts.InfrastructureData, string(in.InfrastructureData)); err != nil {
		abortWithError(c, err)
		return
	}

	d, err := s.diagrams.Generate(c.Request.Context(), diagram.KindInfrastructure, in)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if err := s.workspace.Write(artifacts.InfrastructureDiagram, d.Code); err != nil {
		abortWithError(c, err)
		return
	}

	security, _, err := s.workspace.Read(artifacts.SecurityGraph)
	if err != nil {
		s.logger.Warn("could not read security graph", "err", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"infrastructure_diagram": d.Code,
		"security_diagram":       security,
		"status":                 "success",
		"file_saved":             artifacts.InfrastructureDiagram,
	})
}

func (s *Server) generateSecurityGraph(c *gin.Context) {
	in, ok := s.bindDiagramInput(c)
	if !ok {
		return
	}

	d, err := s.diagrams.Generate(c.Request.Context(), diagram.KindSecurity, in)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if err := s.workspace.Write(artifacts.SecurityGraph, d.Code); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"security_graph": d.Code,
		"status":         "success",
		"file_saved":     artifacts.SecurityGraph,
		"description":    diagram.SecurityLegend,
	})
}
