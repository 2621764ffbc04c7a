package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	cfg "github.com/interview-coach/assess-pipeline/config"
	"github.com/interview-coach/assess-pipeline/logging"
	"github.com/interview-coach/assess-pipeline/orchestrator"
	"github.com/interview-coach/assess-pipeline/scoring"
)

var (
	configFlag    string
	logLevelFlag  string
	outFlag       string
	inputFlag     string
	questionsFlag string
	emotionsFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "assess-pipeline",
	Short: "Assess recorded interview videos",
	Long: `assess-pipeline splits an interview recording into clips, transcribes them,
measures facial action units with a batch expression service and scores the
answers with a chat model.

Examples:
  assess-pipeline analyze interview.mp4
  assess-pipeline assess interview.mp4 --questions questions.yaml
  assess-pipeline feedback --input request.json`,
	SilenceUsage: true,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <video>",
	Short: "Transcribe a video and summarize its facial behavior",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		a, err := p.Analyze(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return emit(a)
	},
}

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Score a transcript against interview questions",
	RunE: func(cmd *cobra.Command, args []string) error {
		if inputFlag == "" {
			return fmt.Errorf("--input is required")
		}
		b, err := os.ReadFile(inputFlag)
		if err != nil {
			return err
		}
		var in scoring.Input
		if err := json.Unmarshal(b, &in); err != nil {
			return fmt.Errorf("input %s: %w", inputFlag, err)
		}
		p, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		res, err := p.Score(cmd.Context(), in)
		if err != nil {
			return err
		}
		return emit(res)
	},
}

var assessCmd = &cobra.Command{
	Use:   "assess <video>",
	Short: "Analyze a video and score it in one run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		questions, err := loadQuestions(questionsFlag)
		if err != nil {
			return err
		}
		var emotions scoring.EmotionDistribution
		if emotionsFlag != "" {
			b, err := os.ReadFile(emotionsFlag)
			if err != nil {
				return err
			}
			if err := json.Unmarshal(b, &emotions); err != nil {
				return fmt.Errorf("emotions %s: %w", emotionsFlag, err)
			}
		}

		p, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		r, err := p.Assess(cmd.Context(), args[0], questions, emotions)
		if err != nil {
			return err
		}
		path := outFlag
		if path == "" {
			path, err = p.WriteReport(r)
		} else {
			err = orchestrator.WriteJSON(path, r)
		}
		if err != nil {
			return err
		}
		log.WithFields(log.Fields{"report": path, "total": r.Score.Total}).Info("assessment written")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "config file (default config/<CONFIG_ENV>/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level, overrides pipeline.log_level")

	analyzeCmd.Flags().StringVarP(&outFlag, "out", "o", "", "write JSON here instead of stdout")
	feedbackCmd.Flags().StringVarP(&inputFlag, "input", "i", "", "JSON request with transcript, questions, behaviors and emotions")
	feedbackCmd.Flags().StringVarP(&outFlag, "out", "o", "", "write JSON here instead of stdout")
	assessCmd.Flags().StringVarP(&questionsFlag, "questions", "q", "", "YAML list of interview questions")
	assessCmd.Flags().StringVarP(&emotionsFlag, "emotions", "e", "", "JSON emotion distribution")
	assessCmd.Flags().StringVarP(&outFlag, "out", "o", "", "report path (default: a new session dir under paths.outputs)")
	_ = assessCmd.MarkFlagRequired("questions")

	rootCmd.AddCommand(analyzeCmd, feedbackCmd, assessCmd)
}

func setup(ctx context.Context) (*orchestrator.Pipeline, error) {
	conf, err := cfg.Load(configFlag)
	if err != nil {
		return nil, err
	}
	level := conf.Pipeline.LogLvl
	if logLevelFlag != "" {
		level = logLevelFlag
	}
	logging.Init(level)
	log.WithFields(log.Fields{"pipeline": conf.Pipeline.Name, "version": conf.Pipeline.Version}).Debug("config loaded")
	return orchestrator.NewPipeline(ctx, conf)
}

func emit(v any) error {
	if outFlag != "" {
		return orchestrator.WriteJSON(outFlag, v)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// loadQuestions reads either a bare YAML list or a document with a
// questions key.
func loadQuestions(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Questions []string `yaml:"questions"`
	}
	if err := yaml.Unmarshal(b, &doc); err == nil && len(doc.Questions) > 0 {
		return doc.Questions, nil
	}
	var list []string
	if err := yaml.Unmarshal(b, &list); err != nil {
		return nil, fmt.Errorf("questions %s: %w", path, err)
	}
	return list, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
