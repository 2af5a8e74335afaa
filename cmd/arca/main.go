package main

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/arca/pkg/config"
	"github.com/ajitpratap0/arca/pkg/formats/ipc"
	jsonx "github.com/ajitpratap0/arca/pkg/json"
	"github.com/ajitpratap0/arca/pkg/logger"
	"github.com/ajitpratap0/arca/pkg/metrics"
	"github.com/ajitpratap0/arca/pkg/schema"
	"github.com/ajitpratap0/arca/pkg/trace"
	"github.com/ajitpratap0/arca/pkg/walk"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := config.Default()
	var configFile string

	root := &cobra.Command{
		Use:   "arca",
		Short: "Arca - generic records to Arrow columnar arrays and back",
		Long: `Arca converts between generic records and Apache Arrow columnar arrays.
It infers schemas by sampling records, serializes record streams into Arrow
IPC files, and reads Arrow IPC files back out as JSON lines.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" {
				if err := config.Load(configFile, cfg); err != nil {
					return err
				}
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return logger.Init(logger.Config{
				Level:       cfg.Logging.Level,
				Encoding:    cfg.Logging.Encoding,
				Development: cfg.Logging.Development,
			})
		},
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to YAML configuration file")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Arca v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(newTraceCmd(cfg))
	root.AddCommand(newConvertCmd(cfg))
	root.AddCommand(newCatCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newTraceCmd infers a schema from a JSON-lines file and prints it as JSON.
func newTraceCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace [input.jsonl]",
		Short: "Infer a schema from JSON-lines records",
		Long: `Infer a columnar schema by sampling JSON-lines records from the input
file (or stdin) and print it as JSON.

Example:
  arca trace events.jsonl > schema.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := readJSONLines(args)
			if err != nil {
				return err
			}

			s, err := traceRecords(records, cfg)
			if err != nil {
				return err
			}

			out, err := jsonx.MarshalIndent(s, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	return cmd
}

// newConvertCmd serializes a JSON-lines file into an Arrow IPC file.
func newConvertCmd(cfg *config.Config) *cobra.Command {
	var schemaFile, outputFile string

	cmd := &cobra.Command{
		Use:   "convert [input.jsonl]",
		Short: "Convert JSON-lines records into an Arrow IPC file",
		Long: `Serialize JSON-lines records from the input file (or stdin) into an
Arrow IPC file. The schema is traced from the records unless --schema names
a schema JSON document.

Example:
  arca convert events.jsonl --output events.arrow`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := readJSONLines(args)
			if err != nil {
				return err
			}

			var s *schema.Schema
			if schemaFile != "" {
				data, err := os.ReadFile(schemaFile)
				if err != nil {
					return fmt.Errorf("failed to read schema file: %w", err)
				}
				if s, err = schema.ParseJSON(data); err != nil {
					return err
				}
			} else if s, err = traceRecords(records, cfg); err != nil {
				return err
			}

			out, err := os.Create(outputFile)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer out.Close()

			w, err := ipc.NewWriter(out, ipc.WriterConfig{
				Schema:              s,
				BatchSize:           cfg.Convert.BatchSize,
				IgnoreUnknownFields: cfg.Convert.IgnoreUnknownFields,
				Logger:              logger.Get(),
			})
			if err != nil {
				return err
			}
			for _, rec := range records {
				if err := w.WriteRecord(rec); err != nil {
					return err
				}
			}
			if err := w.Close(); err != nil {
				return err
			}

			logger.Info("records converted",
				zap.Int64("rows", w.RowsWritten()),
				zap.String("output", outputFile))
			return nil
		},
	}
	cmd.Flags().StringVarP(&schemaFile, "schema", "s", "", "Path to a schema JSON file (default: trace from records)")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "out.arrow", "Path to the Arrow IPC output file")
	return cmd
}

// newCatCmd reads an Arrow IPC file and prints its records as JSON lines.
func newCatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cat <input.arrow>",
		Short: "Print an Arrow IPC file as JSON-lines records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open input file: %w", err)
			}
			defer f.Close()

			r, err := ipc.NewReader(f)
			if err != nil {
				return err
			}
			defer r.Close()

			enc := jsonx.NewEncoder(os.Stdout)
			for {
				rec, err := r.Next()
				if err != nil {
					return err
				}
				if rec == nil {
					return nil
				}
				if err := enc.Encode(rec); err != nil {
					return err
				}
			}
		},
	}
	return cmd
}

func traceRecords(records []walk.Walkable, cfg *config.Config) (*schema.Schema, error) {
	opts := trace.Options{
		MaxSamples:          cfg.Trace.MaxSamples,
		StringSizeThreshold: cfg.Trace.StringSizeThreshold,
		Strict:              !cfg.Trace.Permissive,
		Logger:              logger.Get(),
	}
	if cfg.Trace.HintsFile != "" {
		data, err := os.ReadFile(cfg.Trace.HintsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read hints file: %w", err)
		}
		hints, err := schema.ParseJSON(data)
		if err != nil {
			return nil, err
		}
		opts.TypeHints = hints
	}

	timer := metrics.NewTimer()
	s, err := trace.Trace(records, opts)
	metrics.ObserveBatch("trace", len(records), timer.Stop(), err)
	return s, err
}

func readJSONLines(args []string) ([]walk.Walkable, error) {
	in := io.Reader(os.Stdin)
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return nil, fmt.Errorf("failed to open input file: %w", err)
		}
		defer f.Close()
		in = f
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return walk.JSONRecords(data), nil
}
