package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/commitly/internal/agent"
	"github.com/lucasnoah/commitly/internal/agents"
	"github.com/lucasnoah/commitly/internal/audit"
	"github.com/lucasnoah/commitly/internal/checks"
	"github.com/lucasnoah/commitly/internal/config"
	"github.com/lucasnoah/commitly/internal/execx"
	"github.com/lucasnoah/commitly/internal/gitx"
	"github.com/lucasnoah/commitly/internal/hub"
	"github.com/lucasnoah/commitly/internal/llm"
	"github.com/lucasnoah/commitly/internal/logging"
	"github.com/lucasnoah/commitly/internal/notify"
	"github.com/lucasnoah/commitly/internal/optimizer"
	"github.com/lucasnoah/commitly/internal/orchestrator"
	"github.com/lucasnoah/commitly/internal/pipeline"
)

var (
	commitMessage string
	commitYes     bool
	commitNo      bool
)

var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Record a commit and run the pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		if commitMessage == "" {
			return configError(fmt.Errorf("commit message is required (-m)"))
		}
		workspace, err := os.Getwd()
		if err != nil {
			return err
		}
		return runCommit(cmd, workspace)
	},
}

func init() {
	commitCmd.Flags().StringVarP(&commitMessage, "message", "m", "", "commit message")
	commitCmd.Flags().BoolVarP(&commitYes, "yes", "y", false, "approve the sync gate without prompting")
	commitCmd.Flags().BoolVar(&commitNo, "no", false, "decline the sync gate without prompting")
}

func runCommit(cmd *cobra.Command, workspace string) error {
	cfg, err := config.LoadDefault(workspace)
	if err != nil {
		return configError(err)
	}
	if err := cfg.Validate(); err != nil {
		return configError(err)
	}

	logs := logging.NewFactory(workspace)
	gitLog, _, closeGitLog, err := logs.Open("git")
	if err != nil {
		return err
	}
	defer closeGitLog()
	git := &gitx.ExecGit{Log: gitLog}

	if err := recordUserCommit(git, workspace, commitMessage); err != nil {
		return err
	}

	run, err := runPipeline(cmd.Context(), cfg, workspace, git, logs)
	if err != nil {
		return err
	}
	return reportRunResult(cmd, run, workspace)
}

// recordUserCommit stages everything and commits in the user repo. An empty
// working tree is fine; the pipeline then re-validates the existing tip.
func recordUserCommit(git gitx.Runner, workspace, message string) error {
	ws := gitx.NewRepo(git, workspace)
	if _, err := git.Run(workspace, "add", "-A"); err != nil {
		return fmt.Errorf("stage changes: %w", err)
	}
	entries, err := ws.StatusPorcelain()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("nothing new to commit; validating the current tip")
		return nil
	}
	if _, err := git.Run(workspace, "commit", "-m", message); err != nil {
		return fmt.Errorf("record commit: %w", err)
	}
	return nil
}

// runPipeline builds the collaborators, wires the seven agents, and runs the
// orchestrator under an interrupt-aware context.
func runPipeline(parent context.Context, cfg *config.Config, workspace string, git gitx.Runner, logs *logging.Factory) (*pipeline.Run, error) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var llmClient llm.Client
	if client, err := llm.NewOpenAIClient(cfg.LLM); err == nil {
		llmClient = client
	} else {
		fmt.Fprintln(os.Stderr, "note: language model unavailable; optimizer and refactor degrade to no-ops")
	}

	rc, err := orchestrator.BuildRunContext(cfg, workspace, git, logs, llmClient)
	if err != nil {
		return nil, err
	}

	store := pipeline.NewStore(workspace)
	base := agent.NewBase(store)

	auditDB, err := audit.Open(audit.DefaultPath(workspace))
	if err == nil {
		if err := auditDB.Migrate(); err != nil {
			auditDB.Close()
			auditDB = nil
		} else {
			defer auditDB.Close()
		}
	} else {
		auditDB = nil
	}

	pipeLog, _, closePipeLog, err := logs.Open("pipeline")
	if err != nil {
		return nil, err
	}
	defer closePipeLog()

	hubMgr := hub.NewManager(git, workspace, cfg.Git.Remote, rc.WorkingBranch, pipeLog)
	cmdRunner := &execx.ExecRunner{}
	checkRunner := checks.NewRunner(cmdRunner)

	var notifier notify.Notifier
	if cfg.Notify.Enabled && cfg.Notify.Token != "" {
		notifier = notify.NewSlackNotifier(cfg.Notify.Token)
	}

	rollback := &orchestrator.Rollback{
		Hub:        hubMgr,
		CleanupHub: cfg.Pipeline.CleanupHubOnFailure,
		Log:        pipeLog,
	}

	orc := orchestrator.New(store, base, auditDB, rollback, pipeLog,
		&agents.Clone{Hub: hubMgr},
		&agents.Code{Hub: hubMgr, Cmd: cmdRunner, Checks: checkRunner},
		&agents.Test{Hub: hubMgr, Cmd: cmdRunner, ConnectDB: func(ctx context.Context) (optimizer.Explainer, error) {
			return optimizer.Connect(ctx, cfg.Database)
		}},
		&agents.Refactor{Hub: hubMgr, Cmd: cmdRunner, Checks: checkRunner},
		&agents.Sync{Hub: hubMgr, Store: store, Approver: buildApprover()},
		&agents.Notify{Notifier: notifier},
		&agents.Report{Store: store},
	)

	return orc.Run(ctx, rc)
}

// buildApprover picks the approval source: scripted via flags, interactive
// otherwise.
func buildApprover() agents.Approver {
	if commitYes {
		return ScriptedApprover(true)
	}
	if commitNo {
		return ScriptedApprover(false)
	}
	return &TerminalApprover{In: os.Stdin, Out: os.Stdout}
}

// reportRunResult prints the one-line status plus pointers for follow-up and
// maps the terminal status to the exit code.
func reportRunResult(cmd *cobra.Command, run *pipeline.Run, workspace string) error {
	elapsed := run.EndedAt.Sub(run.StartedAt).Round(time.Millisecond)
	cmd.Printf("pipeline %s: %s (%s)\n", run.ID, run.Status, elapsed)

	switch run.Status {
	case pipeline.RunSucceeded:
		return nil
	case pipeline.RunApprovedNoPush:
		return &ExitError{Code: ExitDeclined, Msg: "push declined; hub left on the refactor branch for inspection"}
	default:
		var detail []string
		for _, out := range run.Outcomes {
			if out.Status == pipeline.StatusFailed && out.Error != nil && agentIsBlocking(out.Agent) {
				detail = append(detail, fmt.Sprintf("%s agent: %s", out.Agent, out.Error.Error()))
				if out.LogPath != "" {
					detail = append(detail, "log: "+out.LogPath)
				}
			}
		}
		detail = append(detail, "inspect the hub with: cd "+hub.Path(workspace))
		return &ExitError{Code: ExitPipelineFail, Msg: strings.Join(detail, "\n")}
	}
}

func agentIsBlocking(name string) bool {
	return agent.Blocking(name)
}
