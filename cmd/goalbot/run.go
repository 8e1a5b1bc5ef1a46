package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"voxelcraft.ai/goalbot/internal/agent"
	"voxelcraft.ai/goalbot/internal/bridge"
	"voxelcraft.ai/goalbot/internal/catalogs"
	"voxelcraft.ai/goalbot/internal/goal"
	"voxelcraft.ai/goalbot/internal/history"
	"voxelcraft.ai/goalbot/internal/memory"
	"voxelcraft.ai/goalbot/internal/observe"
	"voxelcraft.ai/goalbot/internal/protocol"
	"voxelcraft.ai/goalbot/internal/supervisor"
)

var (
	runWatch      bool
	runReadyWait  time.Duration
	runHistoryLen int
)

var runCmd = &cobra.Command{
	Use:   "run ITEM [QTY]",
	Short: "Connect to a world and work until QTY of ITEM is held",
	Long: `Connects the agent to the world server named in the tuning file, then
plans and executes supervised actions until the inventory holds QTY (default 1)
of ITEM. Remembered locations reported by the server are stored in the memory
database and used by the route strategy.

Example:
  goalbot run stone_pickaxe --config goalbot.yaml`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runGoal,
}

func init() {
	runCmd.Flags().BoolVar(&runWatch, "watch", true, "reload catalogs when files in the catalog directory change")
	runCmd.Flags().DurationVar(&runReadyWait, "ready-timeout", 30*time.Second, "how long to wait for the first observation")
	runCmd.Flags().IntVar(&runHistoryLen, "history", 200, "history entries kept in memory")
}

// liveSource serves goal lookups from whichever catalogs were loaded last.
type liveSource struct {
	cur atomic.Pointer[catalogs.Catalogs]
}

func newLiveSource(c *catalogs.Catalogs) *liveSource {
	s := &liveSource{}
	s.cur.Store(c)
	return s
}

func (s *liveSource) CraftRecipes(item string) []goal.Recipe { return s.cur.Load().CraftRecipes(item) }
func (s *liveSource) BlockSources(item string) []string      { return s.cur.Load().BlockSources(item) }
func (s *liveSource) HarvestTool(block string) string        { return s.cur.Load().HarvestTool(block) }
func (s *liveSource) SmeltInput(item string) string          { return s.cur.Load().SmeltInput(item) }
func (s *liveSource) AnimalSource(item string) string        { return s.cur.Load().AnimalSource(item) }

func runGoal(cmd *cobra.Command, args []string) error {
	item, qty, err := goalArgs(args)
	if err != nil {
		return err
	}
	cfg, cats, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := memory.Open(cfg.Memory.Path)
	if err != nil {
		return fmt.Errorf("open memory: %w", err)
	}
	defer store.Close()

	hw := history.NewWriter(cfg.History.Dir, cfg.Bridge.AgentName)
	defer hw.Close()
	hist := history.NewLog(hw, runHistoryLen, logger)

	mp, scrape, err := observe.InitPrometheus()
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	signals := agent.NewState()
	src := newLiveSource(cats)
	session := bridge.New(bridge.Options{
		Tuning:   cfg.Bridge,
		Catalogs: cats,
		Logger:   logger,
		Output:   signals,
		OnMemory: func(kvs []protocol.MemoryKV) {
			n, err := store.ImportKV(kvs)
			if err != nil {
				logger.Warn("some memory entries were skipped", zap.Error(err))
			}
			logger.Debug("memory imported", zap.Int("entries", n))
		},
	})
	sup := supervisor.New(session, signals, supervisor.Options{
		Tuning:  cfg.Supervisor,
		Logger:  logger,
		Metrics: metrics,
		History: hist,
	})
	planner := goal.NewPlanner(cfg.Planner, goal.Deps{
		World:   session,
		Actions: session,
		Signals: signals,
		Source:  src,
		Memory:  store,
		Runner:  sup,
		Logger:  logger,
		Metrics: metrics,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return session.Run(gctx) })

	if cfg.Metrics.Listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", scrape)
		srv := &http.Server{Addr: cfg.Metrics.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			logger.Info("serving metrics", zap.String("addr", cfg.Metrics.Listen))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
			defer c()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if runWatch {
		w, err := catalogs.NewWatcher(catalogDir, func(c *catalogs.Catalogs) {
			src.cur.Store(c)
			session.SetCatalogs(c)
			logger.Info("catalogs reloaded", zap.String("digest", c.Digest()))
		}, logger)
		if err != nil {
			logger.Warn("catalog watcher disabled", zap.Error(err))
		} else {
			w.Start(gctx)
			defer w.Stop()
		}
	}

	g.Go(func() error {
		defer cancel()
		readyCtx, c := context.WithTimeout(gctx, runReadyWait)
		err := session.WaitReady(readyCtx)
		c()
		if err != nil {
			if gctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("no observation from %s within %s", cfg.Bridge.URL, runReadyWait)
		}
		st := session.Status()
		logger.Info("world ready", zap.String("agent_id", st.AgentID), zap.Uint64("tick", st.LastObsTick))
		syncMemory(session, store)
		hist.Add("system", fmt.Sprintf("goal: %d %s", qty, item))
		if err := planner.Run(gctx, item, qty); err != nil {
			if gctx.Err() != nil {
				return nil
			}
			hist.Add("system", fmt.Sprintf("goal %s abandoned: %v", item, err))
			st := session.Status()
			logger.Warn("goal abandoned", zap.String("item", item), zap.Error(err),
				zap.Bool("connected", st.Connected), zap.Int("pending_tasks", st.Pending), zap.String("last_error", st.LastError))
			return err
		}
		hist.Add("system", fmt.Sprintf("goal reached: %d %s", qty, item))
		if err := session.Say(fmt.Sprintf("got %d %s", qty, item)); err != nil {
			logger.Debug("announce failed", zap.Error(err))
		}
		return nil
	})

	err = g.Wait()
	sup.Stop()
	return err
}

// memorySyncLimit bounds how many server memory entries are requested.
const memorySyncLimit = 64

// syncMemory pushes locally remembered locations to the server and asks for
// the server's entries, which come back through OnMemory.
func syncMemory(session *bridge.Session, store *memory.Store) {
	local, err := store.Find("")
	if err != nil {
		logger.Warn("reading memory failed", zap.Error(err))
	}
	for name, pos := range local {
		if err := session.SaveMemory(name, pos); err != nil {
			logger.Debug("memory not pushed", zap.String("name", name), zap.Error(err))
			return
		}
	}
	if err := session.LoadMemory("", memorySyncLimit); err != nil {
		logger.Debug("memory not requested", zap.Error(err))
	}
}
