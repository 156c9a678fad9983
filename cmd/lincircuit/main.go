// Command lincircuit manages keys and circuits and runs evaluation workers.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/luxfi/lincircuit"
	"github.com/luxfi/lincircuit/internal/queue"
	"github.com/luxfi/lincircuit/internal/storage"
	"github.com/luxfi/lincircuit/internal/worker"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "lincircuit",
	Short: "Encrypted linear circuit evaluation",
	Long: `lincircuit evaluates XOR/XNOR circuits over encrypted bits and converts
encrypted values to and from their bits.`,
	Version:       fmt.Sprintf("%s (built %s)", version, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(circuitsCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(workerCmd)

	rootCmd.PersistentFlags().String("params", "PN10QP27", "parameter set (PN9QP27, PN10QP27, PN11QP54)")

	keygenCmd.Flags().String("out", "key.bin", "secret key output path")

	workerCmd.Flags().Int("workers", worker.DefaultConfig().Workers, "number of worker goroutines")
	workerCmd.Flags().String("redis", "localhost:6379", "Redis address")
	workerCmd.Flags().Int("redis-db", 0, "Redis database number")
	workerCmd.Flags().String("queue", "default", "queue name")
	workerCmd.Flags().String("storage", "redis", "blob storage: redis or a directory path")
	workerCmd.Flags().String("circuits", "", "directory of additional circuit files")
	workerCmd.Flags().String("key", "key.bin", "secret key path")
	workerCmd.Flags().String("metrics", ":9090", "metrics server address")
}

func paramsFromFlags(cmd *cobra.Command) (lincircuit.Parameters, error) {
	name, _ := cmd.Flags().GetString("params")
	lit, ok := lincircuit.Presets[name]
	if !ok {
		return lincircuit.Parameters{}, fmt.Errorf("unknown parameter set %q", name)
	}
	return lincircuit.NewParametersFromLiteral(lit)
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a secret key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")

		params, err := paramsFromFlags(cmd)
		if err != nil {
			return err
		}
		sk := lincircuit.NewKeyGenerator(params).GenSecretKey()
		data, err := sk.MarshalBinary()
		if err != nil {
			return err
		}
		if err := os.WriteFile(out, data, 0600); err != nil {
			return fmt.Errorf("write key: %w", err)
		}
		fmt.Printf("Secret key written to %s (N=%d, NBR=%d)\n", out, params.N(), params.NBR())
		return nil
	},
}

var circuitsCmd = &cobra.Command{
	Use:   "circuits",
	Short: "List built-in circuits",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range lincircuit.EmbeddedCircuitNames() {
			c, err := lincircuit.EmbeddedCircuit(name)
			if err != nil {
				return err
			}
			fmt.Printf("%-12s inputs=%-3d outputs=%-3d gates=%d\n",
				name, c.NumInputs(), c.NumOutputs(), c.NumGates())
		}
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Parse and validate a circuit file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		c, err := lincircuit.ParseCircuit(args[0], f)
		if err != nil {
			return err
		}
		fmt.Printf("%s: ok, inputs=%d outputs=%d gates=%d\n",
			args[0], c.NumInputs(), c.NumOutputs(), c.NumGates())
		return nil
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run evaluation workers against a Redis job queue",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorker(cmd)
	},
}

func runWorker(cmd *cobra.Command) error {
	var (
		cfg            = worker.DefaultConfig()
		redisAddr, _   = cmd.Flags().GetString("redis")
		redisDB, _     = cmd.Flags().GetInt("redis-db")
		queueName, _   = cmd.Flags().GetString("queue")
		storageFlag, _ = cmd.Flags().GetString("storage")
		circuitDir, _  = cmd.Flags().GetString("circuits")
		keyPath, _     = cmd.Flags().GetString("key")
		metricsAddr, _ = cmd.Flags().GetString("metrics")
	)
	cfg.Workers, _ = cmd.Flags().GetInt("workers")

	log.Printf("lincircuit worker starting...")
	log.Printf("  Workers: %d", cfg.Workers)
	log.Printf("  Redis: %s", redisAddr)
	log.Printf("  Storage: %s", storageFlag)
	log.Printf("  Metrics: %s", metricsAddr)

	params, err := paramsFromFlags(cmd)
	if err != nil {
		return err
	}
	keyData, err := os.ReadFile(keyPath)
	if err != nil {
		return fmt.Errorf("read key: %w", err)
	}
	sk := new(lincircuit.SecretKey)
	if err := sk.UnmarshalBinary(keyData); err != nil {
		return fmt.Errorf("load key: %w", err)
	}

	redisCfg := queue.RedisConfig{Addr: redisAddr, DB: redisDB}
	q, err := queue.NewRedisQueue(redisCfg, queueName)
	if err != nil {
		return fmt.Errorf("create queue: %w", err)
	}
	defer q.Close()

	var store storage.Storage
	if storageFlag == "redis" {
		store, err = storage.NewRedisStorage(storage.RedisConfig{Addr: redisAddr, DB: redisDB}, 24*time.Hour)
	} else {
		store, err = storage.NewFileStorage(storageFlag)
	}
	if err != nil {
		return fmt.Errorf("create storage: %w", err)
	}
	defer store.Close()

	log.Printf("Generating bootstrap key...")
	bsk := lincircuit.NewKeyGenerator(params).GenBootstrapKey(sk)
	eval := lincircuit.NewLWEEvaluator(params, bsk, sk)
	pool, err := worker.NewPool(cfg, q, store, eval, lincircuit.Loader{Dir: circuitDir})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := pool.Start(ctx); err != nil {
		return fmt.Errorf("start workers: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "# HELP lincircuit_jobs_total Total evaluation jobs\n")
		fmt.Fprintf(w, "# TYPE lincircuit_jobs_total counter\n")
		fmt.Fprintf(w, "lincircuit_jobs_total{status=\"success\"} %d\n", pool.SuccessCount())
		fmt.Fprintf(w, "lincircuit_jobs_total{status=\"failure\"} %d\n", pool.FailureCount())
		fmt.Fprintf(w, "# HELP lincircuit_blind_rotations_total Blind rotations run by lookups\n")
		fmt.Fprintf(w, "# TYPE lincircuit_blind_rotations_total counter\n")
		fmt.Fprintf(w, "lincircuit_blind_rotations_total %d\n", eval.BlindRotations())
	})

	server := &http.Server{
		Addr:              metricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Metrics server starting on %s", metricsAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Metrics server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	log.Printf("Received signal: %s", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Metrics server shutdown error: %v", err)
	}
	if err := pool.Stop(); err != nil {
		log.Printf("Worker pool shutdown error: %v", err)
	}

	log.Println("Shutdown complete")
	return nil
}
