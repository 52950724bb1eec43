package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/KirkDiggler/rpg-sheet/internal/config"
)

// options carries flag values; flags only override the environment when set
type options struct {
	document   string
	store      string
	stateDir   string
	redisAddr  string
	sqlitePath string
	key        string
	debounce   time.Duration
	envFile    string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "rpg-sheet",
		Short: "Track a character's hit points, shields and daily resources",
		Long: `rpg-sheet keeps the session state of a single character sheet: current hit points,
shield charges, spell slots, limited-use abilities and legendary resistances.
State is saved after every change and survives restarts.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.document, "document", "", "character document path (default: bundled character)")
	flags.StringVar(&opts.store, "store", config.StoreFile, "session state store: file, redis, sqlite or memory")
	flags.StringVar(&opts.stateDir, "state-dir", ".rpg-sheet", "directory for the file store")
	flags.StringVar(&opts.redisAddr, "redis-addr", "localhost:6379", "redis address for the redis store")
	flags.StringVar(&opts.sqlitePath, "sqlite-path", ".rpg-sheet/state.db", "database path for the sqlite store")
	flags.StringVar(&opts.key, "key", "velsirion-character-state", "storage key for the session state")
	flags.DurationVar(&opts.debounce, "debounce", 0, "quiet period before state is written")
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	rootCmd.AddCommand(newShowCmd(opts))
	rootCmd.AddCommand(newHitPointsCmd(opts))
	rootCmd.AddCommand(newShieldCmd(opts))
	rootCmd.AddCommand(newSlotCmd(opts))
	rootCmd.AddCommand(newAbilityCmd(opts))
	rootCmd.AddCommand(newLegendaryCmd(opts))
	rootCmd.AddCommand(newLongRestCmd(opts))
	rootCmd.AddCommand(newResetCmd(opts))
	rootCmd.AddCommand(newExportCmd(opts))
	rootCmd.AddCommand(newImportCmd(opts))

	return rootCmd
}

// load reads .env, then the environment, then applies changed flags
func (o *options) load(cmd *cobra.Command) error {
	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err == nil {
			slog.Debug("Loaded env file", "path", o.envFile)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("document") {
		cfg.Document = o.document
	}
	if flags.Changed("store") {
		cfg.Store = o.store
	}
	if flags.Changed("state-dir") {
		cfg.StateDir = o.stateDir
	}
	if flags.Changed("redis-addr") {
		cfg.Redis.Addr = o.redisAddr
	}
	if flags.Changed("sqlite-path") {
		cfg.SQLite.Path = o.sqlitePath
	}
	if flags.Changed("key") {
		cfg.Key = o.key
	}
	if flags.Changed("debounce") {
		cfg.Debounce = o.debounce
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})))

	o.cfg = cfg
	return nil
}
