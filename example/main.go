package main

import (
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/ssgreg/logf"

	"github.com/arryllopez/throttlego"
)

// Simulates a chat where users 1..5 take turns sending messages.
// Run with: go run ./example --algorithm interval
// Set --realtime to sleep between messages instead of advancing a simulated clock.

type settings struct {
	Limiter    throttlego.Config    `mapstructure:"limiter"`
	Log        throttlego.LogConfig `mapstructure:"log"`
	Users      int                  `mapstructure:"users"`
	Messages   int                  `mapstructure:"messages"`
	Pause      time.Duration        `mapstructure:"pause"`
	MinGap     time.Duration        `mapstructure:"minGap"`
	MaxGap     time.Duration        `mapstructure:"maxGap"`
	Realtime   bool                 `mapstructure:"realtime"`
	Seed       int64                `mapstructure:"seed"`
	ConfigFile string               `mapstructure:"config"`
}

// simulation moves time either on a ManualClock or by sleeping.
type simulation struct {
	clock    throttlego.Clock
	manual   *throttlego.ManualClock
	realtime bool
}

func (s simulation) wait(d time.Duration) {
	if s.realtime {
		time.Sleep(d)
		return
	}
	s.manual.Advance(d)
}

func main() {
	cfg, err := loadSettings(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, closeLogger := throttlego.NewLogger(cfg.Log)
	defer closeLogger()

	sim := simulation{realtime: cfg.Realtime}
	if cfg.Realtime {
		sim.clock = throttlego.SystemClock{}
	} else {
		sim.manual = throttlego.NewManualClock(time.Now())
		sim.clock = sim.manual
	}

	limiter, err := throttlego.New(cfg.Limiter, throttlego.WithClock(sim.clock))
	if err != nil {
		logger.Error("failed to create limiter", logf.Error(err))
		closeLogger()
		os.Exit(1)
	}
	logger.Info("simulation started",
		logf.String("algorithm", string(cfg.Limiter.Algorithm)),
		logf.Bool("realtime", cfg.Realtime),
		logf.Int64("seed", cfg.Seed))

	rng := rand.New(rand.NewSource(cfg.Seed))
	gap := func() time.Duration {
		if cfg.MaxGap <= cfg.MinGap {
			return cfg.MinGap
		}
		return cfg.MinGap + time.Duration(rng.Int63n(int64(cfg.MaxGap-cfg.MinGap)))
	}

	fmt.Printf("\n=== Message flow simulation (%s) ===\n", cfg.Limiter.Algorithm)
	runSeries(limiter, sim, cfg, 1, gap)

	fmt.Printf("\nWaiting %s...\n", cfg.Pause)
	sim.wait(cfg.Pause)

	fmt.Println("\n=== New series after the pause ===")
	runSeries(limiter, sim, cfg, cfg.Messages+1, gap)

	if counter, ok := limiter.(interface{ BlockedRequestCount() int64 }); ok {
		fmt.Printf("\nTotal blocked requests: %d\n", counter.BlockedRequestCount())
	}
}

func runSeries(limiter throttlego.MessageLimiter[string], sim simulation, cfg settings, first int, gap func() time.Duration) {
	for messageID := first; messageID < first+cfg.Messages; messageID++ {
		userID := strconv.Itoa(messageID%cfg.Users + 1)

		result := limiter.RecordMessage(userID)
		wait := limiter.TimeUntilNextAllowed(userID)

		status := "✓"
		if !result {
			status = fmt.Sprintf("× (wait %.1fs)", wait.Seconds())
		}
		fmt.Printf("Message %2d | User %s | %s\n", messageID, userID, status)

		sim.wait(gap())
	}
}

func loadSettings(args []string) (settings, error) {
	defaults := throttlego.DefaultConfig()
	logDefaults := throttlego.DefaultLogConfig()

	flags := pflag.NewFlagSet("example", pflag.ContinueOnError)
	flags.String("config", "", "optional YAML config file")
	flags.String("algorithm", string(defaults.Algorithm), "sliding_window or interval")
	flags.Duration("window", defaults.WindowSize, "sliding window size")
	flags.Int("max-requests", defaults.MaxRequests, "messages allowed per window")
	flags.Duration("min-interval", defaults.MinInterval, "minimum interval between messages")
	flags.Int("users", 5, "number of simulated users")
	flags.Int("messages", 10, "messages per series")
	flags.Duration("pause", 0, "pause between the two series (default depends on algorithm)")
	flags.Bool("realtime", false, "sleep instead of simulating time")
	flags.Int64("seed", time.Now().UnixNano(), "random seed for message gaps")
	flags.String("log-level", logDefaults.Level, "log level")
	flags.String("log-format", "text", "log format: json or text")
	if err := flags.Parse(args); err != nil {
		return settings{}, err
	}

	v := viper.New()
	v.SetEnvPrefix("THROTTLEGO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("minGap", 100*time.Millisecond)
	v.SetDefault("maxGap", time.Second)
	for key, flag := range map[string]string{
		"config":              "config",
		"limiter.algorithm":   "algorithm",
		"limiter.windowSize":  "window",
		"limiter.maxRequests": "max-requests",
		"limiter.minInterval": "min-interval",
		"users":               "users",
		"messages":            "messages",
		"pause":               "pause",
		"realtime":            "realtime",
		"seed":                "seed",
		"log.level":           "log-level",
		"log.format":          "log-format",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return settings{}, fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return settings{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg settings
	if err := v.Unmarshal(&cfg); err != nil {
		return settings{}, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Users <= 0 || cfg.Messages <= 0 {
		return settings{}, fmt.Errorf("users and messages must be positive")
	}
	if cfg.Pause == 0 {
		cfg.Pause = 4 * time.Second
		if cfg.Limiter.Algorithm == throttlego.AlgorithmInterval {
			cfg.Pause = 10 * time.Second
		}
	}
	return cfg, nil
}
