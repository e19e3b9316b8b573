// ABOUTME: Agent service: external collaborator records and their metrics
// ABOUTME: Metrics are recomputed on every change to the underlying counters
package agents

import (
	"context"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/openimob/imob/docstore"
	"github.com/openimob/imob/models"
	"github.com/openimob/imob/validate"
)

// CollectionAgents is the agents collection under the tenant root.
const CollectionAgents = "agents"

// Service manages agent records.
type Service struct {
	repo     *docstore.Repository[models.Agent, *models.Agent]
	validate *validator.Validate
	log      *logrus.Logger
}

// NewService wires an agent service on the given backend.
func NewService(be docstore.Backend, log *logrus.Logger, opts ...docstore.RepositoryOption) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		repo:     docstore.NewRepository[models.Agent, *models.Agent](be, CollectionAgents, append([]docstore.RepositoryOption{docstore.WithLogger(log)}, opts...)...),
		validate: validator.New(),
		log:      log,
	}
}

// Repository exposes the agent repository for list, search and subscribe.
func (s *Service) Repository() *docstore.Repository[models.Agent, *models.Agent] {
	return s.repo
}

// Create validates and persists a new agent. Email and license number are
// unique within the tenant.
func (s *Service) Create(ctx context.Context, tenantID string, agent *models.Agent) (*models.Agent, error) {
	agent.Name = strings.TrimSpace(agent.Name)
	if err := s.validate.Struct(agent); err != nil {
		return nil, &docstore.ValidationError{Field: "name", Message: "must be at least 2 characters"}
	}
	if agent.Email != "" {
		if err := validate.Email(agent.Email); err != nil {
			return nil, err
		}
	}
	if agent.Phone != "" {
		normalized, err := validate.Phone(agent.Phone)
		if err != nil {
			return nil, err
		}
		agent.Phone = normalized
	}
	agent.Metrics = ComputeMetrics(agent)

	err := s.repo.Create(ctx, tenantID, agent, docstore.CreateOptions{
		UniqueFields: []string{"email", "licenseNumber"},
	})
	if err != nil {
		return nil, err
	}
	return agent, nil
}

// Get fetches one agent.
func (s *Service) Get(ctx context.Context, tenantID, id string) (*models.Agent, error) {
	return s.repo.GetByID(ctx, tenantID, id)
}

// Update patches an agent and refreshes the derived metrics.
func (s *Service) Update(ctx context.Context, tenantID, id string, patch map[string]any) (*models.Agent, error) {
	updated, err := s.repo.Update(ctx, tenantID, id, patch)
	if err != nil {
		return nil, err
	}
	return s.refreshMetrics(ctx, tenantID, updated)
}

// Delete soft-deletes an agent.
func (s *Service) Delete(ctx context.Context, tenantID, id string) error {
	return s.repo.SoftDelete(ctx, tenantID, id)
}

// RecordInteraction appends one interaction to the agent's history.
func (s *Service) RecordInteraction(ctx context.Context, tenantID, id string, interactionType, summary string) (*models.Agent, error) {
	agent, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	interactions := append(append([]models.AgentInteraction{}, agent.Interactions...), models.AgentInteraction{
		ID:         docstore.NewLogID(),
		Type:       interactionType,
		Summary:    summary,
		OccurredAt: time.Now().UTC(),
	})
	return s.repo.Update(ctx, tenantID, id, map[string]any{
		"interactions": docstore.EncodeValue(interactions),
	})
}

// RecordDealOutcome rolls a closed deal into the agent's counters and
// recomputes the metrics.
func (s *Service) RecordDealOutcome(ctx context.Context, tenantID, id string, success bool) (*models.Agent, error) {
	agent, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if success {
		agent.SuccessfulDeals++
	} else {
		agent.FailedDeals++
	}
	agent.DealsTogether++
	agent.Metrics = ComputeMetrics(agent)
	return s.repo.Update(ctx, tenantID, id, map[string]any{
		"successfulDeals": agent.SuccessfulDeals,
		"failedDeals":     agent.FailedDeals,
		"dealsTogether":   agent.DealsTogether,
		"metrics":         docstore.EncodeValue(agent.Metrics),
	})
}

func (s *Service) refreshMetrics(ctx context.Context, tenantID string, agent *models.Agent) (*models.Agent, error) {
	metrics := ComputeMetrics(agent)
	if reflect.DeepEqual(metrics, agent.Metrics) {
		return agent, nil
	}
	return s.repo.Update(ctx, tenantID, agent.ID, map[string]any{
		"metrics": docstore.EncodeValue(metrics),
	})
}
