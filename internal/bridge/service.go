// Package bridge orchestrates the broker connections and the persisted bridge
// data (known brokers, saved commands and saved pipelines).
package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hay-kot/mqview/internal/broker"
	"github.com/hay-kot/mqview/internal/core/config"
	"github.com/hay-kot/mqview/internal/core/jsonrpc"
	"github.com/hay-kot/mqview/internal/store/jsonfile"
)

// Brokers is the subset of broker.Manager used by the service.
type Brokers interface {
	Connect(ctx context.Context, host string) error
	Remove(host string) error
	Publish(ctx context.Context, host, topic string, payload []byte) error
	Hosts() []string
	Statuses() []broker.Status
	History() ([]broker.Message, uint64)
	Close()
}

// Service implements the bridge operations requested by peers.
type Service struct {
	log       zerolog.Logger
	brokers   Brokers
	known     *jsonfile.BrokerStore
	commands  *jsonfile.NamedStore[jsonrpc.CommandParams]
	pipelines *jsonfile.NamedStore[jsonrpc.PipelineParams]
}

// New creates a new Service.
func New(
	log zerolog.Logger,
	brokers Brokers,
	known *jsonfile.BrokerStore,
	commands *jsonfile.NamedStore[jsonrpc.CommandParams],
	pipelines *jsonfile.NamedStore[jsonrpc.PipelineParams],
) *Service {
	return &Service{
		log:       log,
		brokers:   brokers,
		known:     known,
		commands:  commands,
		pipelines: pipelines,
	}
}

// NewFromConfig wires a Service with file stores under the configured data
// directory.
func NewFromConfig(log zerolog.Logger, cfg *config.Config, brokers Brokers) *Service {
	return New(
		log,
		brokers,
		jsonfile.NewBrokerStore(cfg.BrokersFile()),
		jsonfile.NewCommandStore(cfg.CommandsDir()),
		jsonfile.NewPipelineStore(cfg.PipelinesDir()),
	)
}

// Start connects to the given brokers and every remembered broker. Connection
// failures are logged and do not stop the remaining brokers.
func (s *Service) Start(ctx context.Context, extra []string) error {
	known, err := s.known.List(ctx)
	if err != nil {
		return fmt.Errorf("load known brokers: %w", err)
	}

	hosts := append(append([]string{}, extra...), known...)
	for _, host := range hosts {
		if err := s.brokers.Connect(ctx, host); err != nil {
			s.log.Warn().Err(err).Str("broker", host).Msg("initial connect failed")
		}
	}

	s.log.Info().Int("brokers", len(s.brokers.Hosts())).Msg("bridge started")
	return nil
}

// Connect remembers host and connects to it. The host is remembered even when
// the first connection attempt fails.
func (s *Service) Connect(ctx context.Context, host string) error {
	if err := config.ValidateBrokerAddr(host); err != nil {
		return err
	}

	if err := s.known.Add(ctx, host); err != nil {
		return fmt.Errorf("remember broker: %w", err)
	}

	if err := s.brokers.Connect(ctx, host); err != nil {
		s.log.Warn().Err(err).Str("broker", host).Msg("connect failed")
	}
	return nil
}

// Remove disconnects host and forgets it. ErrUnknownBroker is returned when
// the host is neither connected nor remembered.
func (s *Service) Remove(ctx context.Context, host string) error {
	errConn := s.brokers.Remove(host)
	errStore := s.known.Remove(ctx, host)

	unknown := errors.Is(errConn, broker.ErrUnknownBroker)
	missing := errors.Is(errStore, jsonfile.ErrNotFound)
	if unknown && missing {
		return errConn
	}
	if unknown {
		errConn = nil
	}
	if missing {
		errStore = nil
	}
	if err := errors.Join(errConn, errStore); err != nil {
		return err
	}

	s.log.Info().Str("broker", host).Msg("broker removed")
	return nil
}

// Publish sends payload to topic on host.
func (s *Service) Publish(ctx context.Context, host, topic, payload string) error {
	if topic == "" {
		return fmt.Errorf("publish: empty topic")
	}
	return s.brokers.Publish(ctx, host, topic, []byte(payload))
}

// Hosts returns the brokers held by the bridge.
func (s *Service) Hosts() []string {
	return s.brokers.Hosts()
}

// Statuses returns the connection state of every broker.
func (s *Service) Statuses() []broker.Status {
	return s.brokers.Statuses()
}

// History returns the retained messages for replay.
func (s *Service) History() ([]broker.Message, uint64) {
	return s.brokers.History()
}

// Commands returns all saved commands.
func (s *Service) Commands(ctx context.Context) ([]jsonrpc.CommandParams, error) {
	return s.commands.List(ctx)
}

// SaveCommand stores a command, replacing one with the same name.
func (s *Service) SaveCommand(ctx context.Context, cmd jsonrpc.CommandParams) error {
	cmd.ID = ""
	if err := s.commands.Save(ctx, cmd); err != nil {
		return fmt.Errorf("save command: %w", err)
	}
	return nil
}

// RemoveCommand deletes a saved command.
func (s *Service) RemoveCommand(ctx context.Context, name string) error {
	if err := s.commands.Delete(ctx, name); err != nil {
		return fmt.Errorf("remove command: %w", err)
	}
	return nil
}

// Pipelines returns all saved pipelines.
func (s *Service) Pipelines(ctx context.Context) ([]jsonrpc.PipelineParams, error) {
	return s.pipelines.List(ctx)
}

// SavePipeline stores a pipeline, replacing one with the same name.
func (s *Service) SavePipeline(ctx context.Context, p jsonrpc.PipelineParams) error {
	p.ID = ""
	if len(p.Pipeline) == 0 {
		return fmt.Errorf("save pipeline: %q has no steps", p.Name)
	}
	if err := s.pipelines.Save(ctx, p); err != nil {
		return fmt.Errorf("save pipeline: %w", err)
	}
	return nil
}

// RemovePipeline deletes a saved pipeline.
func (s *Service) RemovePipeline(ctx context.Context, name string) error {
	if err := s.pipelines.Delete(ctx, name); err != nil {
		return fmt.Errorf("remove pipeline: %w", err)
	}
	return nil
}

// Close disconnects every broker.
func (s *Service) Close() {
	s.brokers.Close()
}
