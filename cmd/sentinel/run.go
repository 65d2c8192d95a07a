package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rahul/sentinel/internal/agent"
	"github.com/rahul/sentinel/internal/diagram"
	"github.com/spf13/cobra"
)

var runShowGraph bool

var runCmd = &cobra.Command{
	Use:   "run <goal>",
	Short: "Plan and execute a single goal",
	Long: `Run plans the goal into tasks, executes each task with the tool-using
agent and prints every step's output.

Example:
  sentinel run "Review main.tf for public S3 buckets and fix them"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGoal,
}

func init() {
	runCmd.Flags().BoolVar(&runShowGraph, "graph", false, "Print the plan as a mermaid flowchart")
}

func runGoal(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	goal := strings.Join(args, " ")
	a.orchestrator.OnPlan = func(runID string, tasks []agent.Task) {
		a.tracker.SetPlanGraph(diagram.PlanGraph(tasks))
		color.New(color.FgCyan, color.Bold).Printf("Plan (%s)\n", runID)
		fmt.Print(agent.FormatTasks(tasks))
		fmt.Println()
	}

	run, err := a.orchestrator.Execute(ctx, goal)
	if run != nil {
		printRun(run)
		if runShowGraph {
			fmt.Println(diagram.PlanGraph(run.Tasks))
		}
	}
	return err
}

func printRun(run *agent.Run) {
	for i, out := range run.Outputs {
		header := color.New(color.FgGreen)
		if out.Failure != "" {
			header = color.New(color.FgYellow)
		}
		header.Printf("[%d/%d] %s (%s)\n", i+1, len(run.Tasks), out.TaskID, out.Elapsed.Round(time.Millisecond))
		fmt.Println(out.Output)
		if out.Failure != "" {
			color.Yellow("  absorbed: %s", out.Failure)
		}
		fmt.Println()
	}
	if run.PlanError != "" {
		color.Yellow("planner fell back: %s", run.PlanError)
	}
}
