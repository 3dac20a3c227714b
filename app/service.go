// Package app assembles the configured roles of a node into a running
// service.
package app

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/voltmesh/fex/api/offers"
	"github.com/voltmesh/fex/config"
	"github.com/voltmesh/fex/core/audit"
	"github.com/voltmesh/fex/core/auth"
	"github.com/voltmesh/fex/core/exchange"
	"github.com/voltmesh/fex/core/facility"
	coremetrics "github.com/voltmesh/fex/core/metrics"
	"github.com/voltmesh/fex/core/rpc"
	corestore "github.com/voltmesh/fex/core/store"
	"github.com/voltmesh/fex/infra/logger"
	"github.com/voltmesh/fex/infra/metrics"
	"github.com/voltmesh/fex/infra/mqtt"
	"github.com/voltmesh/fex/infra/store"
	"github.com/voltmesh/fex/internal/eventbus"
)

// Service orchestrates the exchange and facility roles of one node.
type Service struct {
	Exchange *exchange.Service
	Facility *facility.Service

	cfg       *config.Config
	bus       *eventbus.Bus
	log       logger.Logger
	client    *mqtt.Client
	facClient *mqtt.Client
	sqlite    *store.SQLiteStore
	auditLS   audit.LogStore
	apiSrv    *http.Server
	promSrv   *http.Server
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")
	svc := &Service{cfg: cfg, bus: eventbus.New(), log: logg}

	sink, err := buildSink(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	var entityStore interface {
		corestore.ExchangeStore
		corestore.OfferEventStore
	}
	switch cfg.Store.Backend {
	case "sqlite":
		s, err := store.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("sqlite store: %w", err)
		}
		svc.sqlite = s
		entityStore = s
	default:
		entityStore = corestore.NewMemoryStore()
	}

	auditStore, err := cfg.Audit.NewStore()
	if err != nil {
		return nil, fmt.Errorf("audit store: %w", err)
	}
	svc.auditLS = auditStore

	// Without a broker the two roles can only reach each other in-process,
	// so both have to live in this binary.
	inproc := rpc.StaticProvider{}
	if !cfg.MQTT.Enabled && !(cfg.Exchange.Enabled && cfg.Facility.Enabled) {
		return nil, fmt.Errorf("mqtt disabled: in-process wiring needs both roles enabled")
	}

	if cfg.Exchange.Enabled {
		keys, err := auth.LoadKeypair(cfg.Exchange.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("exchange keypair: %w", err)
		}
		var dir *exchange.Directory
		if cfg.MQTT.Enabled {
			client, err := mqtt.NewClient(cfg.MQTT, cfg.Exchange.UID)
			if err != nil {
				return nil, fmt.Errorf("mqtt client: %w", err)
			}
			svc.client = client
			dir = exchange.NewDirectory(mqtt.NewProvider(client))
		} else {
			dir = exchange.NewDirectory(inproc)
		}
		ex, err := exchange.NewService(cfg.Exchange, keys, dir, entityStore, svc.bus, sink, logger.New("exchange"))
		if err != nil {
			return nil, err
		}
		if auditStore != nil {
			ex.SetAuditStore(auditStore)
		}
		if svc.client != nil {
			if _, err := mqtt.ServeExchange(svc.client, ex); err != nil {
				return nil, fmt.Errorf("exchange server: %w", err)
			}
		}
		svc.Exchange = ex
	}

	if cfg.Facility.Enabled {
		keys, err := auth.LoadKeypair(cfg.Facility.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("facility keypair: %w", err)
		}
		var exchangePub *ecdsa.PublicKey
		if cfg.MQTT.Enabled {
			exchangePub, err = loadPublicKey(cfg.Facility.ExchangeKeyFile)
			if err != nil {
				return nil, fmt.Errorf("exchange public key: %w", err)
			}
		} else {
			exchangePub = svc.Exchange.PublicKey()
		}
		fac, err := facility.NewService(cfg.Facility, keys, exchangePub, entityStore, svc.bus, sink, logger.New("facility"))
		if err != nil {
			return nil, err
		}
		if auditStore != nil {
			fac.SetAuditStore(auditStore)
		}
		if cfg.MQTT.Enabled {
			// Topics are rooted at the node UID, so the facility role needs its
			// own session even when co-located with an exchange.
			client, err := mqtt.NewClient(cfg.MQTT, cfg.Facility.UID)
			if err != nil {
				return nil, fmt.Errorf("mqtt client: %w", err)
			}
			svc.facClient = client
			if _, err := mqtt.ServeFacility(client, fac); err != nil {
				return nil, fmt.Errorf("facility server: %w", err)
			}
			fac.SetExchangeConn(mqtt.NewExchangeConn(client, cfg.Facility.ExchangeUID))
		} else {
			inproc[cfg.Facility.UID] = &rpc.InProcConn{
				Handler: fac,
				Timeout: time.Duration(cfg.Exchange.RPCTimeoutSeconds) * time.Second,
			}
			fac.SetExchangeConn(&rpc.InProcExchangeConn{
				Handler: svc.Exchange,
				Timeout: time.Duration(cfg.Facility.RPCTimeoutSeconds) * time.Second,
			})
		}
		svc.Facility = fac
	}

	return svc, nil
}

func buildSink(cfg coremetrics.Config) (coremetrics.MetricsSink, error) {
	cfg.SetDefaults()
	var sinks []coremetrics.MetricsSink
	if cfg.PrometheusEnabled {
		sink, err := metrics.NewPromSink(cfg)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket))
	}
	switch len(sinks) {
	case 0:
		return coremetrics.NopSink{}, nil
	case 1:
		return sinks[0], nil
	default:
		return metrics.NewMultiSink(sinks...), nil
	}
}

func loadPublicKey(path string) (*ecdsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return auth.DecodePublicPEM(data)
}

// Run starts the HTTP surfaces and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.cfg.Metrics.PrometheusEnabled {
		srv, errCh := metrics.StartPromServer(s.cfg.Metrics.PrometheusPort)
		s.promSrv = srv
		go func() {
			if err := <-errCh; err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if s.cfg.API.Enabled && s.auditLS != nil {
		mux := http.NewServeMux()
		mux.Handle("/api/offers/logs", offers.NewLogHandler(s.auditLS, s.cfg.API.Token))
		s.apiSrv = &http.Server{Addr: fmt.Sprintf(":%d", s.cfg.API.Port), Handler: mux}
		go func() {
			if err := s.apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.log.Errorf("api server: %v", err)
			}
		}()
	}
	<-ctx.Done()
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.Exchange != nil {
		_ = s.Exchange.Close()
	}
	if s.Facility != nil {
		_ = s.Facility.Close()
	}
	if s.client != nil {
		s.client.Disconnect()
	}
	if s.facClient != nil {
		s.facClient.Disconnect()
	}
	if s.apiSrv != nil {
		_ = s.apiSrv.Close()
	}
	if s.promSrv != nil {
		_ = metrics.StopPromServer(s.promSrv)
	}
	s.bus.Close()
	if s.auditLS != nil {
		_ = s.auditLS.Close()
	}
	if s.sqlite != nil {
		return s.sqlite.Close()
	}
	return nil
}
