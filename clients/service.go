// ABOUTME: Client registry service: lifecycle, validation, dedup, counters
// ABOUTME: Quick-add vs. full-profile creation and profile-completion upkeep
package clients

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/openimob/imob/docstore"
	"github.com/openimob/imob/models"
	"github.com/openimob/imob/validate"
)

// Collection names under the tenant root.
const (
	CollectionClients       = "clients"
	CollectionOpportunities = "opportunities"
)

// Service is the client registry. All operations are scoped by the tenant
// id passed per call; the service itself holds no tenant state.
type Service struct {
	be       docstore.Backend
	repo     *docstore.Repository[models.Client, *models.Client]
	opps     *docstore.Repository[models.Opportunity, *models.Opportunity]
	validate *validator.Validate
	log      *logrus.Logger
}

// NewService wires a client registry on the given backend. Extra repository
// options (scan limits and the like) apply to every repository it opens.
func NewService(be docstore.Backend, log *logrus.Logger, opts ...docstore.RepositoryOption) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		be:       be,
		repo:     docstore.NewRepository[models.Client, *models.Client](be, CollectionClients, append([]docstore.RepositoryOption{docstore.WithLogger(log)}, opts...)...),
		opps:     docstore.NewRepository[models.Opportunity, *models.Opportunity](be, CollectionOpportunities, append([]docstore.RepositoryOption{docstore.WithGroupReads(), docstore.WithLogger(log)}, opts...)...),
		validate: validator.New(),
		log:      log,
	}
}

// Repository exposes the underlying client repository for list, search,
// count, subscribe and stats.
func (s *Service) Repository() *docstore.Repository[models.Client, *models.Client] {
	return s.repo
}

// QuickAddInput is the minimal payload for a quick-added client.
type QuickAddInput struct {
	Name  string `json:"name" validate:"required,min=2"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// QuickAdd creates a bare client record (profileComplete=false) after
// format validation and duplicate detection on phone/email.
func (s *Service) QuickAdd(ctx context.Context, tenantID string, in QuickAddInput) (*models.Client, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validate.Struct(in); err != nil {
		return nil, &docstore.ValidationError{Field: "name", Message: "must be at least 2 characters"}
	}
	if in.Phone != "" {
		normalized, err := validate.Phone(in.Phone)
		if err != nil {
			return nil, err
		}
		in.Phone = normalized
	}
	if in.Email != "" {
		if err := validate.Email(in.Email); err != nil {
			return nil, err
		}
	}

	if existing, field, err := s.CheckDuplicates(ctx, tenantID, in.Email, in.Phone, ""); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, duplicateOf(field, existing)
	}

	client := &models.Client{
		Name:       in.Name,
		Phone:      in.Phone,
		Email:      in.Email,
		IsQuickAdd: true,
	}
	client.Score = CalculateClientScore(client, nil)

	if err := s.repo.Create(ctx, tenantID, client, docstore.CreateOptions{}); err != nil {
		return nil, err
	}
	s.bumpClientCount(ctx, tenantID, 1)
	return client, nil
}

// CreateFull creates a fully validated client. Supplied active
// qualifications each get an opportunity derived; inactive ones are stored
// as-is. Derivation is best-effort: the client is not
// rolled back when a later derivation fails, it is flagged needsRepair and
// the error names the failed qualification.
func (s *Service) CreateFull(ctx context.Context, tenantID string, client *models.Client) (*models.Client, error) {
	client.Name = strings.TrimSpace(client.Name)
	if err := s.validate.Struct(client); err != nil {
		return nil, &docstore.ValidationError{Field: "name", Message: "must be at least 2 characters"}
	}
	if err := s.validateContactFields(client); err != nil {
		return nil, err
	}

	if existing, field, err := s.CheckDuplicates(ctx, tenantID, client.Email, client.Phone, client.NIF); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, duplicateOf(field, existing)
	}

	quals := client.Qualifications
	client.Qualifications = nil
	var active []models.Qualification
	for i := range quals {
		q := quals[i]
		if !q.Type.Valid() {
			return nil, &docstore.ValidationError{Field: "qualifications", Message: fmt.Sprintf("unknown type %q", q.Type)}
		}
		if q.Active {
			active = append(active, q)
			continue
		}
		// inactive qualifications are stored as supplied, no opportunity
		if q.ID == "" {
			q.ID = docstore.NewID()
		}
		q.CreatedAt = time.Now().UTC()
		client.Qualifications = append(client.Qualifications, q)
	}

	client.IsQuickAdd = false
	client.ProfileComplete = client.HasCompleteProfile()
	client.Score = CalculateClientScore(client, nil)

	if err := s.repo.Create(ctx, tenantID, client, docstore.CreateOptions{}); err != nil {
		return nil, err
	}
	s.bumpClientCount(ctx, tenantID, 1)

	var failed []string
	for i := range active {
		q := active[i]
		if _, err := s.AddQualification(ctx, tenantID, client.ID, q); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{"client": client.ID, "type": q.Type}).
				Warn("qualification derivation failed")
			failed = append(failed, string(q.Type))
		}
	}
	if len(failed) > 0 {
		if _, err := s.repo.Update(ctx, tenantID, client.ID, map[string]any{"needsRepair": true}); err != nil {
			s.log.WithError(err).Warn("could not flag client for repair")
		}
		fresh, err := s.repo.GetByID(ctx, tenantID, client.ID)
		if err != nil {
			return nil, err
		}
		return fresh, &DerivationError{ClientID: client.ID, Types: failed}
	}

	fresh, err := s.repo.GetByID(ctx, tenantID, client.ID)
	if err != nil {
		return nil, err
	}
	return fresh, nil
}

// Get fetches one client.
func (s *Service) Get(ctx context.Context, tenantID, id string) (*models.Client, error) {
	return s.repo.GetByID(ctx, tenantID, id)
}

// Update patches a client, validating changed contact and identity fields.
// When NIF, address and date of birth are all present afterwards the record
// is promoted to a complete profile. The score is recomputed when income or
// qualifications changed.
func (s *Service) Update(ctx context.Context, tenantID, id string, patch map[string]any) (*models.Client, error) {
	if err := s.validatePatch(patch); err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, tenantID, id, patch)
	if err != nil {
		return nil, err
	}

	followUp := map[string]any{}
	if updated.HasCompleteProfile() && !updated.ProfileComplete {
		followUp["profileComplete"] = true
		followUp["isQuickAdd"] = false
	}
	_, incomeChanged := patch["annualIncome"]
	_, qualsChanged := patch["qualifications"]
	if incomeChanged || qualsChanged {
		followUp["clientScore"] = docstore.EncodeValue(CalculateClientScore(updated, nil))
	}
	if len(followUp) > 0 {
		return s.repo.Update(ctx, tenantID, id, followUp)
	}
	return updated, nil
}

// Delete soft-deletes a client and releases its slot in the tenant counter.
func (s *Service) Delete(ctx context.Context, tenantID, id string) error {
	if err := s.repo.SoftDelete(ctx, tenantID, id); err != nil {
		return err
	}
	s.bumpClientCount(ctx, tenantID, -1)
	return nil
}

// RecordContact stamps the last-contact time and optional next follow-up,
// and refreshes the engagement part of the score.
func (s *Service) RecordContact(ctx context.Context, tenantID, id string, at time.Time, nextFollowUp *time.Time, interactions []models.Interaction) (*models.Client, error) {
	client, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	patch := map[string]any{
		"lastContactAt": at.UTC(),
		"clientScore":   docstore.EncodeValue(CalculateClientScore(client, interactions)),
	}
	if nextFollowUp != nil {
		patch["nextFollowUpAt"] = nextFollowUp.UTC()
	}
	return s.repo.Update(ctx, tenantID, id, patch)
}

// CheckDuplicates looks for an existing non-deleted client by email, then
// phone, then NIF. The first non-empty match wins; later fields are not
// checked once one matches. Returns the match and the matching field name.
func (s *Service) CheckDuplicates(ctx context.Context, tenantID, email, phone, nif string) (*models.Client, string, error) {
	checks := []struct {
		field string
		value string
	}{
		{"email", email},
		{"phone", phone},
		{"nif", nif},
	}
	for _, c := range checks {
		if c.value == "" {
			continue
		}
		page, err := s.repo.List(ctx, tenantID, docstore.ListOptions{
			Filters:  []docstore.Filter{{Field: c.field, Op: "==", Value: c.value}},
			PageSize: 1,
		})
		if err != nil {
			return nil, "", err
		}
		if len(page.Items) > 0 {
			return page.Items[0], c.field, nil
		}
	}
	return nil, "", nil
}

func (s *Service) validateContactFields(client *models.Client) error {
	if client.NIF != "" {
		if err := validate.NIF(client.NIF); err != nil {
			return err
		}
	}
	if client.CCNumber != "" {
		if err := validate.CCNumber(client.CCNumber); err != nil {
			return err
		}
	}
	if client.Address.PostalCode != "" {
		if err := validate.PostalCode(client.Address.PostalCode); err != nil {
			return err
		}
	}
	for _, email := range []string{client.Email, client.EmailAlt} {
		if email != "" {
			if err := validate.Email(email); err != nil {
				return err
			}
		}
	}
	if client.Phone != "" {
		normalized, err := validate.Phone(client.Phone)
		if err != nil {
			return err
		}
		client.Phone = normalized
	}
	if client.PhoneAlt != "" {
		normalized, err := validate.Phone(client.PhoneAlt)
		if err != nil {
			return err
		}
		client.PhoneAlt = normalized
	}
	return nil
}

func (s *Service) validatePatch(patch map[string]any) error {
	if v, ok := patch["nif"].(string); ok && v != "" {
		if err := validate.NIF(v); err != nil {
			return err
		}
	}
	if v, ok := patch["email"].(string); ok && v != "" {
		if err := validate.Email(v); err != nil {
			return err
		}
	}
	if v, ok := patch["phone"].(string); ok && v != "" {
		normalized, err := validate.Phone(v)
		if err != nil {
			return err
		}
		patch["phone"] = normalized
	}
	if v, ok := patch["name"].(string); ok {
		if len(strings.TrimSpace(v)) < 2 {
			return &docstore.ValidationError{Field: "name", Message: "must be at least 2 characters"}
		}
	}
	return nil
}

func duplicateOf(field string, existing *models.Client) error {
	doc, err := docstore.Encode(existing)
	if err != nil {
		doc = docstore.Document{"id": existing.ID}
	}
	var value any
	if doc != nil {
		value = doc[field]
	}
	return &docstore.DuplicateError{Field: field, Value: value, Existing: doc}
}

// bumpClientCount maintains the tenant's client counter. Counter upkeep is
// subscription bookkeeping, never a reason to fail the primary operation.
func (s *Service) bumpClientCount(ctx context.Context, tenantID string, delta int) {
	path := docstore.TenantRoot(tenantID) + "/counters/usage"
	err := s.be.RunTransaction(ctx, func(tx docstore.Tx) error {
		doc, err := tx.Get(path)
		if err == docstore.ErrNotFound {
			counters := &models.TenantCounters{}
			counters.ID = "usage"
			counters.TenantID = tenantID
			now := time.Now().UTC()
			counters.CreatedAt = now
			counters.UpdatedAt = now
			if delta > 0 {
				counters.ClientCount = delta
			}
			encoded, err := docstore.Encode(counters)
			if err != nil {
				return err
			}
			return tx.Set(path, encoded)
		}
		if err != nil {
			return err
		}
		count, _ := doc["clientCount"].(float64)
		next := int(count) + delta
		if next < 0 {
			next = 0
		}
		return tx.Update(path, map[string]any{
			"clientCount": next,
			"updatedAt":   time.Now().UTC(),
		})
	})
	if err != nil {
		s.log.WithError(err).WithField("tenant", tenantID).Warn("client counter update failed")
	}
}
