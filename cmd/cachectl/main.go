// cachectl — служебная утилита для кэша: прогрев, очистка по шаблону, просмотр ключей и мониторинг Redis
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/asquebay/restaurant-order-service/internal/config"
	"github.com/asquebay/restaurant-order-service/internal/lib/logger"
	"github.com/asquebay/restaurant-order-service/internal/repository/cache"
	"github.com/asquebay/restaurant-order-service/internal/repository/postgres"
	"github.com/asquebay/restaurant-order-service/internal/service"
)

func main() {
	populate := flag.Bool("populate", false, "rebuild tables:all, order:all and kitchen_display:all from the database")
	flush := flag.String("flush", "", "delete cache keys matching the glob pattern (e.g. \"order:*\")")
	status := flag.Bool("status", false, "list cache keys with their remaining TTL")
	monitor := flag.Bool("monitor", false, "show redis server stats and every cache key with type, TTL and size")
	watch := flag.Duration("watch", 0, "with -monitor: refresh the report at this interval until interrupted")
	flag.Parse()

	if !*populate && *flush == "" && !*status && !*monitor {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.MustLoad(config.Path())
	log := logger.New(cfg.Logger.Level, cfg.Logger.Format)

	if *monitor && *watch > 0 {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := watchMonitor(ctx, cfg, *watch); err != nil {
			log.Error("cachectl failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := run(ctx, cfg, log, *populate, *flush, *status, *monitor); err != nil {
		log.Error("cachectl failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger, populate bool, flush string, status, monitor bool) error {
	rc, closeFn, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	if flush != "" {
		n, err := rc.FlushPattern(ctx, flush)
		if err != nil {
			return err
		}
		fmt.Printf("flushed %d keys matching %q\n", n, flush)
	}

	if populate {
		dbpool, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		defer dbpool.Close()
		store := postgres.NewStore(dbpool)

		tables, err := service.NewTableService(store, rc, log).Refresh(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d tables\n", service.KeyTables, len(tables))

		refresher := service.NewCacheRefresher(store, rc, log)
		refresher.RefreshAll(ctx, service.OriginScheduler)

		orders, err := refresher.Orders(ctx)
		if err != nil {
			return err
		}
		kitchen, err := refresher.KitchenDisplay(ctx, "")
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d orders\n", service.KeyOrders, len(orders))
		fmt.Printf("%s: %d orders\n", service.KeyKitchenDisplay, len(kitchen))
	}

	if status {
		keys, err := rc.Keys(ctx, "*")
		if err != nil {
			return err
		}
		if len(keys) == 0 {
			fmt.Println("cache is empty")
		}
		for _, key := range keys {
			ttl, err := rc.TTL(ctx, key)
			if err != nil {
				return err
			}
			fmt.Printf("%-24s %s\n", key, formatTTL(ttl))
		}
	}

	if monitor {
		return report(ctx, os.Stdout, rc)
	}
	return nil
}

// connect открывает Redis и проверяет, что сервер отвечает
func connect(ctx context.Context, cfg *config.Config) (*cache.Redis, func(), error) {
	// in-process кэш живёт только внутри сервиса, управлять им отсюда нечем
	if cfg.Cache.Driver != "redis" {
		return nil, nil, fmt.Errorf("cache driver %q cannot be managed externally", cfg.Cache.Driver)
	}

	client := cache.NewRedisClient(cfg.Redis)
	rc := cache.NewRedis(client, cfg.Cache.Prefix)
	if err := rc.Ping(ctx); err != nil {
		client.Close()
		return nil, nil, err
	}
	return rc, func() { client.Close() }, nil
}

func watchMonitor(ctx context.Context, cfg *config.Config, interval time.Duration) error {
	rc, closeFn, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		// очистка экрана ANSI-последовательностью
		fmt.Print("\033[H\033[2J")
		if err := report(ctx, os.Stdout, rc); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		fmt.Printf("\nrefreshing every %s, Ctrl+C to stop\n", interval)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// applicationKeys — ключи, которые пишет сервис
var applicationKeys = []string{service.KeyTables, service.KeyOrders, service.KeyKitchenDisplay}

// report печатает состояние сервера и всех ключей кэша
func report(ctx context.Context, w io.Writer, rc *cache.Redis) error {
	info, err := rc.Info(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "redis %s, memory %s, clients %s\n",
		info["redis_version"], info["used_memory_human"], info["connected_clients"])

	keys, err := rc.Keys(ctx, "*")
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "cache keys: %d\n\n", len(keys))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tTYPE\tTTL\tSIZE")
	for _, key := range keys {
		stat, err := rc.Stat(ctx, key)
		if err != nil {
			return err
		}
		size := "n/a"
		if stat.Size >= 0 {
			size = fmt.Sprintf("%d bytes", stat.Size)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", stat.Key, stat.Type, formatTTL(stat.TTL), size)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	for _, key := range applicationKeys {
		ok, err := rc.Has(ctx, key)
		if err != nil {
			return err
		}
		state := "not cached"
		if ok {
			ttl, err := rc.TTL(ctx, key)
			if err != nil {
				return err
			}
			state = "cached, " + formatTTL(ttl)
		}
		fmt.Fprintf(w, "%-20s %s\n", key, state)
	}
	return nil
}

func formatTTL(ttl time.Duration) string {
	if ttl < 0 {
		return "no expiry"
	}
	return ttl.Round(time.Second).String()
}
