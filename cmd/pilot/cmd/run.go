package cmd

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/pilot/bridge"
	"github.com/rustyeddy/pilot/config"
	"github.com/rustyeddy/pilot/controller"
	"github.com/rustyeddy/pilot/journal"
	"github.com/rustyeddy/pilot/notify"
	"github.com/rustyeddy/pilot/opshttp"
	"github.com/rustyeddy/pilot/store"
	"github.com/rustyeddy/pilot/venue"
	"github.com/rustyeddy/pilot/venue/sim"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the controller loop",
	Long: `Start the execution controller.

With --paper the controller trades against the built-in simulated venue,
which is the supported mode for development and soak testing. The command
and heartbeat endpoints come from the config file; when unset, an
in-memory queue is used so the loop can run standalone.

Example:
  pilot run -f configs/gold.yaml --paper`,
	RunE: runRun,
}

var (
	runConfigPath string
	runPaper      bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "", "path to config file (YAML or JSON)")
	runCmd.Flags().BoolVar(&runPaper, "paper", true, "trade against the simulated venue")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if runConfigPath != "" {
		var err error
		cfg, err = config.LoadFromFile(runConfigPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}

	if !runPaper {
		return fmt.Errorf("only the paper venue is available in this build")
	}

	v := sim.New(cfg.Symbol, sim.SymbolSpec{
		Point: 0.01, Digits: 2, VolumeStep: 0.01, VolumeMin: 0.01, PointValuePerLot: 1.0,
	}, 10000)
	v.SetTick(2015.00, 2015.40)
	v.SetATR(venue.M5, 2.0)
	go feedPrices(cmd.Context(), v, 2015.00)

	var src bridge.Source
	var snk bridge.Sink
	if cfg.Bridge.CommandURL != "" {
		ws := bridge.NewWSClient("BRIDGE", cfg.Bridge.CommandURL)
		defer ws.Close()
		src, snk = ws, ws
		if cfg.Bridge.HeartbeatURL != "" && cfg.Bridge.HeartbeatURL != cfg.Bridge.CommandURL {
			hbws := bridge.NewWSClient("HB", cfg.Bridge.HeartbeatURL)
			defer hbws.Close()
			snk = hbws
		}
	} else {
		q := bridge.NewQueue(1024)
		src, snk = q, q
	}

	var jrnl journal.Journal = journal.Nop{}
	if cfg.Journal.DBPath != "" {
		j, err := journal.NewSQLite(cfg.Journal.DBPath)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer j.Close()
		jrnl = j
	}

	var latch store.FiredStore = store.NewMemory()
	if cfg.Guards.Emergency.Persist && cfg.Store.Path != "" {
		s, err := store.NewSQLite(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer s.Close()
		latch = s
	}

	acct, err := v.Account(cmd.Context())
	if err != nil {
		return err
	}

	ctrl := controller.New(*cfg, v, src, snk, jrnl, latch, acct.Login,
		controller.WithNotifier(notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)))

	if cfg.Ops.Addr != "" {
		ops := opshttp.NewServer(func() opshttp.Status {
			a, _ := v.Account(context.Background())
			st := ctrl.State()
			return opshttp.Status{
				Symbol:        cfg.Symbol,
				Magic:         cfg.Magic,
				Equity:        a.Equity,
				Balance:       a.Balance,
				DailyHalted:   ctrl.Daily().Halted(),
				CooldownUntil: ctrl.Daily().CooldownUntil(),
				TrailMode:     st.TrailMode.String(),
				TPMode:        st.TPMode.String(),
				DecodeFails:   st.DecodeFails,
				HBSendFails:   st.HBSendFails,
			}
		})
		go func() {
			log.Printf("[OPS] listening on %s", cfg.Ops.Addr)
			if err := http.ListenAndServe(cfg.Ops.Addr, ops.Router()); err != nil {
				log.Printf("[OPS] server: %v", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = ctrl.Run(ctx)
	if err == context.Canceled {
		return nil
	}
	return err
}

// feedPrices drives the paper venue with a random-walk quote and advances
// its clock in step, so the loop sees price events and day boundaries.
func feedPrices(ctx context.Context, v *sim.Venue, start float64) {
	const step = time.Second
	bid := start

	t := time.NewTicker(step)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			bid += (rand.Float64() - 0.5) * 0.40
			v.SetTick(bid, bid+0.40)
			v.Advance(step)
		}
	}
}
