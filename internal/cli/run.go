package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lodestar-data/lodestar/pkg/config"
	"github.com/lodestar-data/lodestar/pkg/emitter"
	"github.com/lodestar-data/lodestar/pkg/graph"
	"github.com/lodestar-data/lodestar/pkg/ingestion"
	"github.com/lodestar-data/lodestar/pkg/mirror"
	"github.com/lodestar-data/lodestar/pkg/pipeline"
	filesource "github.com/lodestar-data/lodestar/pkg/sources/file"
	"github.com/lodestar-data/lodestar/pkg/state"
)

var runCmd = &cobra.Command{
	Use:   "run <recipe>",
	Short: "Run an ingestion recipe",
	Long: `Run executes one ingestion pipeline described by a recipe file: it
streams work units from the source, emits change proposals to the sink, and,
for stateful pipelines, retracts entities that disappeared since the last run
and commits a new checkpoint.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer logger.Sync()

		recipe, err := config.Load(args[0])
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		return runRecipe(ctx, recipe, logger)
	},
}

func runRecipe(ctx context.Context, recipe *config.Recipe, logger *zap.Logger) error {
	transport, closeTransport, err := buildTransport(ctx, recipe, logger)
	if err != nil {
		return err
	}
	defer closeTransport()

	dispatcher, err := emitter.NewDispatcher(transport, logger)
	if err != nil {
		return err
	}

	var store *state.Store
	if recipe.Stateful.Enabled {
		client, err := graph.NewClient(graph.Config{
			Server:  recipe.Graph.Server,
			Token:   recipe.Graph.Token,
			Timeout: recipe.Graph.Timeout,
		}, logger)
		if err != nil {
			return err
		}
		store = state.NewStore(client, dispatcher, logger)
	}

	source, err := buildSource(recipe, logger)
	if err != nil {
		return err
	}

	snapshot, err := recipe.Snapshot()
	if err != nil {
		return err
	}
	p, err := pipeline.New(pipeline.Config{
		PipelineName:       recipe.PipelineName,
		PlatformInstanceID: recipe.PlatformInstanceID,
		JobName:            recipe.JobName,
		RunID:              recipe.RunID,
		ConfigSnapshot:     snapshot,
		Stateful: pipeline.StatefulConfig{
			Enabled:             recipe.Stateful.Enabled,
			RemoveStaleMetadata: recipe.Stateful.RemoveStaleMetadata,
		},
	}, source, dispatcher, store, nil, logger)
	if err != nil {
		return err
	}

	report, runErr := p.Run(ctx)
	printReport(report)
	return runErr
}

func buildSource(recipe *config.Recipe, logger *zap.Logger) (ingestion.Source, error) {
	switch recipe.Source.Type {
	case "file":
		return filesource.NewSource(recipe.Source.File.Path, logger)
	default:
		return nil, fmt.Errorf("unknown source type %q", recipe.Source.Type)
	}
}

func buildTransport(ctx context.Context, recipe *config.Recipe, logger *zap.Logger) (interface{}, func(), error) {
	nop := func() {}
	switch recipe.Sink.Type {
	case "rest":
		e, err := emitter.NewRestEmitter(emitter.RestConfig{
			Server:  recipe.Sink.Rest.Server,
			Token:   recipe.Sink.Rest.Token,
			Timeout: recipe.Sink.Rest.Timeout,
		}, logger)
		return e, nop, err

	case "file":
		e, err := emitter.NewFileEmitter(recipe.Sink.File.Path)
		if err != nil {
			return nil, nil, err
		}
		return e, func() { e.Close() }, nil

	case "nats":
		e, err := emitter.NewNATSEmitter(emitter.NATSConfig{
			URL:           recipe.Sink.NATS.URL,
			Name:          "lodestar-" + recipe.PipelineName,
			StreamName:    recipe.Sink.NATS.Stream,
			SubjectPrefix: recipe.Sink.NATS.SubjectPrefix,
			MaxPending:    recipe.Sink.NATS.MaxPending,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return e, func() { e.Close() }, nil

	case "kafka":
		e, err := emitter.NewKafkaEmitter(emitter.KafkaConfig{
			Brokers:  recipe.Sink.Kafka.Brokers,
			Topic:    recipe.Sink.Kafka.Topic,
			ClientID: recipe.Sink.Kafka.ClientID,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return e, func() { e.Close() }, nil

	case "mirror":
		m, err := mirror.New(mirror.Config{
			URI:      recipe.Sink.Mirror.URI,
			Username: recipe.Sink.Mirror.Username,
			Password: recipe.Sink.Mirror.Password,
			Database: recipe.Sink.Mirror.Database,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return m, func() { m.Close(ctx) }, nil

	default:
		return nil, nil, fmt.Errorf("unknown sink type %q", recipe.Sink.Type)
	}
}

func printReport(report *pipeline.RunReport) {
	if report == nil {
		return
	}
	fmt.Printf("Run %s\n", report.RunID)
	fmt.Printf("  work units: %d\n", report.WorkUnitsProduced)
	fmt.Printf("  emitted:    %d\n", report.RecordsEmitted)
	if len(report.StaleEntitiesURNs) > 0 {
		fmt.Printf("  retracted:  %d\n", len(report.StaleEntitiesURNs))
	}
	if report.CheckpointCommitted {
		fmt.Println("  checkpoint: committed")
	}
	for _, w := range report.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
	for _, f := range report.Failures {
		fmt.Printf("  failure: %s\n", f)
	}
}
