package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/hupe1980/ivfgo"
	"github.com/hupe1980/ivfgo/distance"
	"github.com/hupe1980/ivfgo/ivf"
)

// app carries the resolved configuration shared by all commands.
type app struct {
	configPath string
	backend    string
	path       string
	logLevel   string

	cfg Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "ivfctl",
		Short:         "Manage IVF vector indexes",
		Long:          `ivfctl trains, fills and queries named inverted file indexes persisted in a blob store.`,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.resolveConfig(cmd)
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to a TOML config file")
	root.PersistentFlags().StringVar(&a.backend, "store", "", "blob store backend (local, memory, sqlite, s3, minio)")
	root.PersistentFlags().StringVar(&a.path, "path", "", "local directory or sqlite file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		a.newTrainCmd(),
		a.newAddCmd(),
		a.newSearchCmd(),
		a.newStatsCmd(),
		a.newListCmd(),
	)
	return root
}

// resolveConfig loads the config file and applies flag overrides.
func (a *app) resolveConfig(cmd *cobra.Command) error {
	cfg, err := loadConfig(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("store") {
		cfg.Store.Backend = a.backend
	}
	if flags.Changed("path") {
		cfg.Store.Path = a.path
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	a.cfg = cfg
	return nil
}

// withRegistry opens a registry for the duration of fn and closes it after,
// persisting unsaved additions.
func (a *app) withRegistry(cmd *cobra.Command, fn func(ctx context.Context, r *ivfgo.Registry) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	r, err := a.cfg.openRegistry(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := r.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return fn(ctx, r)
}

func (a *app) newTrainCmd() *cobra.Command {
	var (
		file      string
		nlist     int
		dimension int
		metric    string
		add       bool
	)

	cmd := &cobra.Command{
		Use:   "train NAME",
		Short: "Train (or retrain) a named index",
		Long: `Trains a fresh index from the vectors in a JSON lines file and replaces
any existing index with the same name. With --add the training records are
also added to the new index.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := readRecordsFile(file)
			if err != nil {
				return err
			}

			m := a.cfg.Index.Metric
			if cmd.Flags().Changed("metric") {
				if m, err = distance.ParseMetric(metric); err != nil {
					return err
				}
			}
			if !cmd.Flags().Changed("nlist") {
				nlist = a.cfg.Index.NList
			}
			if dimension == 0 {
				dimension = len(recs[0].Vector)
			}

			vectors := make([][]float32, len(recs))
			for i, rec := range recs {
				vectors[i] = rec.Vector
			}

			return a.withRegistry(cmd, func(ctx context.Context, r *ivfgo.Registry) error {
				if err := r.CreateOrTrain(ctx, args[0], nlist, dimension, m, vectors); err != nil {
					return err
				}
				added := 0
				if add {
					for _, rec := range recs {
						if err := r.AddVector(ctx, args[0], rec.ID, rec.Vector, rec.Metadata); err != nil {
							return fmt.Errorf("adding %q: %w", rec.ID, err)
						}
						added++
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "trained %s: nlist=%d dimension=%d metric=%s vectors=%d added=%d\n",
					args[0], nlist, dimension, m, len(vectors), added)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON lines vector file (- for stdin)")
	cmd.Flags().IntVar(&nlist, "nlist", 0, "number of clusters (default from config)")
	cmd.Flags().IntVar(&dimension, "dimension", 0, "vector dimension (default from the first record)")
	cmd.Flags().StringVar(&metric, "metric", "", "scoring metric (l2, cosine, dot)")
	cmd.Flags().BoolVar(&add, "add", false, "also add the training records")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func (a *app) newAddCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Add records to a named index",
		Long: `Adds the records of a JSON lines file to a trained index. Records sent to an
untrained index are ignored.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := readRecordsFile(file)
			if err != nil {
				return err
			}
			return a.withRegistry(cmd, func(ctx context.Context, r *ivfgo.Registry) error {
				for _, rec := range recs {
					if err := r.AddVector(ctx, args[0], rec.ID, rec.Vector, rec.Metadata); err != nil {
						return fmt.Errorf("adding %q: %w", rec.ID, err)
					}
				}
				if r.State(args[0]) != ivfgo.StateTrained {
					fmt.Fprintf(cmd.OutOrStdout(), "index %s is not trained; %d records ignored\n", args[0], len(recs))
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added %d records to %s\n", len(recs), args[0])
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON lines vector file (- for stdin)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func (a *app) newSearchCmd() *cobra.Command {
	var (
		vector  string
		k       int
		nprobe  int
		filters []string
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "search NAME",
		Short: "Search a named index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := parseVector(vector)
			if err != nil {
				return fmt.Errorf("invalid --vector: %w", err)
			}
			filter, err := parseFilter(filters)
			if err != nil {
				return err
			}

			return a.withRegistry(cmd, func(ctx context.Context, r *ivfgo.Registry) error {
				var opts []func(*ivf.SearchOptions)
				if filter != nil {
					opts = append(opts, ivf.WithFilter(filter))
				}
				results, err := r.Search(ctx, args[0], query, k, nprobe, opts...)
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(cmd, results)
				}
				if len(results) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No results found.")
					return nil
				}
				for i, res := range results {
					fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%.6f\n", i+1, res.DocID, res.Score)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&vector, "vector", "v", "", "comma separated query vector")
	cmd.Flags().IntVarP(&k, "k", "k", 10, "number of results")
	cmd.Flags().IntVar(&nprobe, "nprobe", 1, "number of clusters to scan")
	cmd.Flags().StringArrayVar(&filters, "filter", nil, "metadata filter key=value (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output results as JSON")
	_ = cmd.MarkFlagRequired("vector")
	return cmd
}

func (a *app) newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats NAME",
		Short: "Show statistics of a named index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRegistry(cmd, func(ctx context.Context, r *ivfgo.Registry) error {
				st, err := r.Stats(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, statsView{
					Name:             st.Name,
					State:            st.State.String(),
					NList:            st.NList,
					Dimension:        st.Dimension,
					Metric:           st.Metric.String(),
					Generation:       st.Generation,
					TotalVectors:     st.TotalVectors,
					MinClusterSize:   st.MinClusterSize,
					MaxClusterSize:   st.MaxClusterSize,
					AvgClusterSize:   st.AvgClusterSize,
					NonEmptyClusters: st.NonEmptyClusters,
				})
			})
		},
	}
}

type statsView struct {
	Name             string  `json:"name"`
	State            string  `json:"state"`
	NList            int     `json:"nlist"`
	Dimension        int     `json:"dimension"`
	Metric           string  `json:"metric"`
	Generation       string  `json:"generation,omitempty"`
	TotalVectors     int     `json:"total_vectors"`
	MinClusterSize   int     `json:"min_cluster_size"`
	MaxClusterSize   int     `json:"max_cluster_size"`
	AvgClusterSize   float64 `json:"avg_cluster_size"`
	NonEmptyClusters int     `json:"non_empty_clusters"`
}

func (a *app) newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List persisted indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.cfg.openStore(cmd.Context())
			if err != nil {
				return err
			}
			if c, ok := store.(io.Closer); ok {
				defer c.Close()
			}

			names, err := store.List(cmd.Context(), "")
			if err != nil {
				return err
			}
			for _, n := range names {
				if name, ok := strings.CutSuffix(n, ivfgo.BlobSuffix); ok {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
			}
			return nil
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
