// Package main runs the skyradar situational-awareness server.
//
// skyradar polls a dump1090/readsb ADS-B feed, enriches every contact with
// airspace, squawk, registry, and flight-state context, records history and
// derived flight events in SQLite, consumes an AIS vessel stream, caches
// NOTAMs and METARs, and serves the combined picture over HTTP along with a
// semantic question-answering endpoint.
//
// Usage:
//
//	skyradar [options]
//
// Options:
//
//	-config FILE        YAML config file (optional; flags and env override)
//	-port N             HTTP port (default: 8080, env: SKYRADAR_PORT)
//	-adsb-url URL       upstream aircraft.json URL (env: SKYRADAR_ADSB_URL)
//	-adsb-file FILE     local aircraft.json fallback (env: SKYRADAR_ADSB_FILE)
//	-airspace-dir DIR   airspace .out corpus directory
//	-ssr-file FILE      SSR squawk catalog file
//	-registry FILE      BaseStation.sqb registry database
//	-history-db FILE    history SQLite database
//	-index-path DIR     semantic index persistence directory
//	-embed-url URL      embedding service endpoint (enables /ask and /chat)
//	-notam-url URL      NOTAM feed URL (enables /api/notams)
//	-ais-key KEY        aisstream.io API key (enables AIS, env: AISSTREAM_API_KEY)
//	-nats-url URL       NATS server for alert publishing (env: NATS_URL)
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"skyradar/internal/adsb"
	"skyradar/internal/airspace"
	"skyradar/internal/ais"
	"skyradar/internal/alerts"
	"skyradar/internal/api"
	"skyradar/internal/archive"
	"skyradar/internal/basestation"
	"skyradar/internal/config"
	"skyradar/internal/history"
	"skyradar/internal/metar"
	"skyradar/internal/notam"
	"skyradar/internal/semindex"
	"skyradar/internal/ssr"
)

func main() {
	configPath := flag.String("config", envOrDefault("SKYRADAR_CONFIG", ""), "YAML config file")
	port := flag.Int("port", envOrDefaultInt("SKYRADAR_PORT", 0), "HTTP port")
	adsbURL := flag.String("adsb-url", envOrDefault("SKYRADAR_ADSB_URL", ""), "upstream aircraft.json URL")
	adsbFile := flag.String("adsb-file", envOrDefault("SKYRADAR_ADSB_FILE", ""), "local aircraft.json fallback")
	airspaceDir := flag.String("airspace-dir", "", "airspace .out corpus directory")
	ssrFile := flag.String("ssr-file", "", "SSR squawk catalog file")
	registryPath := flag.String("registry", "", "BaseStation.sqb registry database")
	historyDB := flag.String("history-db", "", "history SQLite database")
	indexPath := flag.String("index-path", "", "semantic index persistence directory")
	embedURL := flag.String("embed-url", envOrDefault("SKYRADAR_EMBED_URL", ""), "embedding service endpoint")
	notamURL := flag.String("notam-url", envOrDefault("SKYRADAR_NOTAM_URL", ""), "NOTAM feed URL")
	aisKey := flag.String("ais-key", envOrDefault("AISSTREAM_API_KEY", ""), "aisstream.io API key")
	natsURL := flag.String("nats-url", envOrDefault("NATS_URL", ""), "NATS server for alert publishing")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load[config.Config](*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		loaded.ApplyDefaults()
		cfg = loaded
	}

	// Flags and env override the file.
	if *port != 0 {
		cfg.HTTPPort = *port
	}
	if *adsbURL != "" {
		cfg.UpstreamADSBURL = *adsbURL
	}
	if *adsbFile != "" {
		cfg.UpstreamADSBFile = *adsbFile
	}
	if *airspaceDir != "" {
		cfg.AirspaceDir = *airspaceDir
	}
	if *ssrFile != "" {
		cfg.SSRFile = *ssrFile
	}
	if *registryPath != "" {
		cfg.RegistryPath = *registryPath
	}
	if *historyDB != "" {
		cfg.HistoryDB = *historyDB
	}
	if *indexPath != "" {
		cfg.IndexPath = *indexPath
	}
	if *embedURL != "" {
		cfg.EmbedURL = *embedURL
	}
	if *aisKey != "" {
		cfg.AISAPIKey = *aisKey
	}
	if *natsURL != "" {
		cfg.NATSURL = *natsURL
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Static assets. A missing corpus degrades, never aborts.
	zones, err := airspace.Load(cfg.AirspaceDir)
	if err != nil {
		log.Printf("airspace corpus unavailable (%v), running without zones", err)
		zones = airspace.NewIndex(nil)
	} else {
		log.Printf("Loaded %d airspace zones from %s", len(zones.Zones()), cfg.AirspaceDir)
	}

	catalog, err := ssr.Load(cfg.SSRFile)
	if err != nil {
		log.Printf("SSR catalog unavailable (%v), using emergency codes only", err)
		catalog = ssr.NewCatalog()
	} else {
		st := catalog.Statistics()
		log.Printf("Loaded %d SSR codes (%d alert-worthy) from %s", st.TotalCodes, st.AlertCodes, cfg.SSRFile)
	}

	var registry *basestation.Registry
	if reg, err := basestation.Open(cfg.RegistryPath); err != nil {
		log.Printf("aircraft registry unavailable: %v", err)
	} else {
		registry = reg
		defer registry.Close()
		if n, err := registry.Stats(); err == nil {
			log.Printf("Aircraft registry open: %d airframes", n)
		}
	}

	store, err := history.Open(cfg.HistoryDB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening history database: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	// Optional alert publisher.
	var publisher *alerts.Publisher
	if cfg.NATSURL != "" {
		publisher, err = alerts.Connect(cfg.NATSURL)
		if err != nil {
			log.Printf("NATS unavailable, alerts disabled: %v", err)
		} else {
			defer publisher.Close()
			log.Printf("Publishing alerts to %s", cfg.NATSURL)
		}
	}
	store.OnEvent(func(e *history.Event) {
		publisher.PublishEvent(&alerts.FlightEvent{
			Hex:    e.Hex,
			Kind:   e.Kind,
			Time:   time.Unix(e.T, 0),
			Lat:    e.Lat,
			Lon:    e.Lon,
			Alt:    e.Alt,
			Squawk: e.Squawk,
			Detail: e.Details,
		})
	})

	// Optional long-term archive.
	var arc *archive.DB
	if cfg.ClickHouse != nil {
		arc, err = archive.Open(ctx, archive.Config{
			Host:     cfg.ClickHouse.Host,
			Port:     cfg.ClickHouse.Port,
			Database: cfg.ClickHouse.Database,
			User:     cfg.ClickHouse.User,
			Password: cfg.ClickHouse.Password,
		})
		if err != nil {
			log.Printf("ClickHouse unavailable, archive disabled: %v", err)
			arc = nil
		} else if err := arc.CreateSchema(ctx); err != nil {
			log.Printf("ClickHouse schema: %v", err)
			arc = nil
		} else {
			defer arc.Close()
			log.Printf("Archiving contacts to ClickHouse at %s:%d", cfg.ClickHouse.Host, cfg.ClickHouse.Port)
		}
	}

	poller := adsb.New(adsb.Config{
		URL:      cfg.UpstreamADSBURL,
		File:     cfg.UpstreamADSBFile,
		Interval: time.Duration(cfg.PollIntervalS) * time.Second,
		Repair:   cfg.RepairEnabled(),
		Airspace: zones,
		Catalog:  catalog,
		Registry: registry,
		Store:    store,
	})
	poller.OnAlert(func(ac *adsb.Aircraft, code *ssr.Code) {
		log.Printf("ALERT %s", ssr.AlertMessage(code, ac.Flight))
		publisher.PublishAlert(&alerts.SquawkAlert{
			Hex:         ac.Hex,
			Flight:      ac.Flight,
			Squawk:      ac.Squawk,
			Description: code.Description,
			Priority:    code.Priority,
			Message:     ssr.AlertMessage(code, ac.Flight),
			Lat:         ac.Lat,
			Lon:         ac.Lon,
		})
	})
	if arc != nil {
		poller.OnContact(func(c *history.Contact) { arc.Add(ctx, c) })
	}

	metars := metar.NewFetcher(time.Duration(cfg.MetarTTLS) * time.Second)

	var notams *notam.Ingester
	if *notamURL != "" {
		notams = notam.NewIngester(&notam.HTTPSource{URL: *notamURL}, time.Duration(cfg.NotamTTLS)*time.Second)
	}

	var consumer *ais.Consumer
	if cfg.AISAPIKey != "" {
		consumer = ais.New(ais.Config{
			APIKey: cfg.AISAPIKey,
			Bounds: ais.Bounds{
				North: cfg.AISBounds.North,
				South: cfg.AISBounds.South,
				East:  cfg.AISBounds.East,
				West:  cfg.AISBounds.West,
			},
			VesselTTL: time.Duration(cfg.VesselTTLS) * time.Second,
		})
		consumer.OnShipContact(func(v *ais.Vessel) {
			sc := &history.ShipContact{
				MMSI:      v.MMSI,
				T:         v.LastUpdate.Unix(),
				Name:      v.Name,
				Lat:       v.Lat,
				Lon:       v.Lon,
				SOG:       v.SOG,
				COG:       v.COG,
				Heading:   v.Heading,
				NavStatus: v.NavStatus,
				ShipType:  v.TypeName,
			}
			if err := store.StoreShipContact(sc); err != nil {
				log.Printf("ship contact %s: %v", v.MMSI, err)
			}
		})
	}

	var index *semindex.Index
	if cfg.EmbedURL != "" {
		index = semindex.New(semindex.NewHTTPEmbedder(cfg.EmbedURL, cfg.EmbedDim), cfg.IndexPath)
	}

	snapshotter := &snapshotter{
		poller:   poller,
		metars:   metars,
		notams:   notams,
		consumer: consumer,
		store:    store,
		airports: cfg.AirportsOfInterest,
	}

	// Background tasks.
	var wg sync.WaitGroup
	run := func(name string, fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
			log.Printf("%s task stopped", name)
		}()
	}

	run("adsb", poller.Run)
	if consumer != nil {
		if err := consumer.Start(ctx); err != nil {
			log.Printf("AIS start: %v", err)
		}
		defer consumer.Stop()
		run("ais-janitor", func(ctx context.Context) {
			consumer.RunJanitor(ctx, time.Duration(cfg.VesselTTLS)*time.Second/10)
		})
	}
	if index != nil {
		run("semindex", func(ctx context.Context) {
			index.RunRebuilder(ctx, time.Duration(cfg.RebuildIntervalS)*time.Second, snapshotter.entries)
		})
	}
	if arc != nil {
		run("archive-flusher", func(ctx context.Context) { arc.RunFlusher(ctx, 10*time.Second) })
	}
	run("history-janitor", func(ctx context.Context) {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := store.DetectLostContacts(5*time.Minute, 24*time.Hour); err != nil {
					log.Printf("lost-contact pass: %v", err)
				}
				if n, err := store.Cleanup(cfg.RetentionDays); err != nil {
					log.Printf("cleanup: %v", err)
				} else if n > 0 {
					log.Printf("cleanup removed %d aged rows", n)
				}
			}
		}
	})

	server := api.New(api.Deps{
		Config:   cfg,
		Poller:   poller,
		Airspace: zones,
		Catalog:  catalog,
		Registry: registry,
		Store:    store,
		Index:    index,
		Notams:   notams,
		Metars:   metars,
		AIS:      consumer,
		BaseCtx:  ctx,
		Rebuild: func(ctx context.Context) error {
			if index == nil {
				return fmt.Errorf("semantic index disabled")
			}
			return index.Rebuild(ctx, snapshotter.entries(ctx))
		},
	})

	log.Printf("skyradar starting on port %d (poll %ds, rebuild %ds, repair %v)",
		cfg.HTTPPort, cfg.PollIntervalS, cfg.RebuildIntervalS, cfg.RepairEnabled())
	if err := server.Run(ctx, cfg.HTTPPort); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}

	stop()
	wg.Wait()
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
