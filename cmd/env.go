package main

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/storesense/internal/detect"
	"github.com/sells-group/storesense/internal/directory"
	"github.com/sells-group/storesense/internal/model"
	"github.com/sells-group/storesense/internal/provider"
	"github.com/sells-group/storesense/internal/store"
)

// env wires the directory, the confirmed-store memory and the orchestrator
// for one command invocation.
type env struct {
	dir    directory.Directory
	memory store.Memory
	orch   *detect.Orchestrator
}

func (e *env) Close() {
	if e.memory != nil {
		if err := e.memory.Close(); err != nil {
			zap.L().Warn("close memory", zap.Error(err))
		}
	}
	if e.dir != nil {
		if err := e.dir.Close(); err != nil {
			zap.L().Warn("close directory", zap.Error(err))
		}
	}
}

// providerFlags are the CLI overrides for the two signal sources. Explicit
// flags beat the config file's fixture, which beats the live providers.
type providerFlags struct {
	fixArg   string // "lat,lng"
	scanPath string // fixture JSON
	useNmcli bool
}

func initDetection(ctx context.Context, flags providerFlags) (*env, error) {
	if err := cfg.Validate("detect"); err != nil {
		return nil, err
	}

	dir, err := openDirectory(ctx)
	if err != nil {
		return nil, err
	}

	memory, err := openMemory(ctx)
	if err != nil {
		dir.Close()
		return nil, err
	}

	position, radio, err := buildProviders(flags)
	if err != nil {
		memory.Close()
		dir.Close()
		return nil, err
	}

	orch := detect.New(detect.Config{
		SearchRadiusMeters: cfg.Detection.SearchRadiusMeters,
		PositionTimeout:    time.Duration(cfg.Detection.PositionTimeoutSecs) * time.Second,
		RadioTimeout:       time.Duration(cfg.Detection.RadioTimeoutSecs) * time.Second,
		ConfirmedFloor:     cfg.Detection.ConfirmedFloor,
	}, dir, position, radio, memory)

	return &env{dir: dir, memory: memory, orch: orch}, nil
}

func openDirectory(ctx context.Context) (directory.Directory, error) {
	switch cfg.Directory.Driver {
	case "postgres":
		return directory.NewPostgres(ctx, cfg.Directory.DatabaseURL)
	case "sqlite":
		dir, err := directory.NewSQLite(cfg.Directory.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := dir.Migrate(ctx); err != nil {
			dir.Close()
			return nil, err
		}
		return dir, nil
	default:
		return nil, eris.Errorf("unknown directory driver %q", cfg.Directory.Driver)
	}
}

func openMemory(ctx context.Context) (store.Memory, error) {
	mem, err := store.NewSQLite(cfg.Memory.Path)
	if err != nil {
		return nil, err
	}
	if err := mem.Migrate(ctx); err != nil {
		mem.Close()
		return nil, err
	}
	return mem, nil
}

// buildProviders resolves the position and radio sources. Either may come
// back nil, which the orchestrator treats as that modality being absent.
func buildProviders(flags providerFlags) (provider.Position, provider.Radio, error) {
	var position provider.Position
	var radio provider.Radio

	if flags.scanPath != "" {
		fixture, err := provider.LoadFixture(flags.scanPath)
		if err != nil {
			return nil, nil, err
		}
		radio = provider.StaticRadio{Snapshot: fixture.Snapshot}
		if fixture.Fix != nil {
			position = provider.StaticPosition{Fix: fixture.Fix}
		}
	} else if cfg.Providers.FixturePath != "" {
		fixture, err := provider.LoadFixture(cfg.Providers.FixturePath)
		if err != nil {
			return nil, nil, err
		}
		radio = provider.StaticRadio{Snapshot: fixture.Snapshot}
		position = provider.StaticPosition{Fix: fixture.Fix}
	}

	if flags.fixArg != "" {
		fix, err := parseFix(flags.fixArg)
		if err != nil {
			return nil, nil, err
		}
		position = provider.StaticPosition{Fix: fix}
	}

	if flags.useNmcli {
		radio = provider.NMCLIRadio{
			Path:    cfg.Providers.NmcliPath,
			Timeout: time.Duration(cfg.Detection.RadioTimeoutSecs) * time.Second,
		}
	}

	// Live fallbacks from config when nothing explicit was given.
	if position == nil && cfg.Providers.PositionURL != "" {
		position = provider.NewHTTPPosition(cfg.Providers.PositionURL)
	}
	if radio == nil && flags.scanPath == "" && cfg.Providers.FixturePath == "" && cfg.Providers.NmcliPath != "" {
		radio = provider.NMCLIRadio{
			Path:    cfg.Providers.NmcliPath,
			Timeout: time.Duration(cfg.Detection.RadioTimeoutSecs) * time.Second,
		}
	}

	if position == nil && radio == nil {
		return nil, nil, eris.New("no position or radio source configured; pass --fix or --scan, or configure providers")
	}
	return position, radio, nil
}

// parseFix parses a "lat,lng" flag into a position fix observed now.
func parseFix(s string) (*model.PositionFix, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return nil, eris.Errorf("invalid --fix %q, want lat,lng", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return nil, eris.Errorf("invalid latitude %q", parts[0])
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil, eris.Errorf("invalid longitude %q", parts[1])
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil, eris.Errorf("coordinates out of range: %s", s)
	}
	return &model.PositionFix{
		Point:      model.GeoPoint{Lat: lat, Lng: lng},
		ObservedAt: time.Now().UTC(),
	}, nil
}
