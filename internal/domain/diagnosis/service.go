package diagnosis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/growthwatch/growthwatch/internal/platform/apperr"
	"github.com/growthwatch/growthwatch/internal/platform/db"
	"github.com/growthwatch/growthwatch/internal/platform/events"
)

type cacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

type Service struct {
	symptoms   SymptomCatalog
	conditions ConditionCatalog
	rules      RuleRepository
	ruleBase   RuleBase
	sessions   SessionRepository
	recorded   RecordedSymptomRepository
	patients   PatientLookup
	tx         db.TxRunner
	cache      cacheInvalidator
	publisher  events.Publisher
	logger     zerolog.Logger
	now        func() time.Time
}

func NewService(symptoms SymptomCatalog, conditions ConditionCatalog, rules RuleRepository,
	sessions SessionRepository, recorded RecordedSymptomRepository, patients PatientLookup,
	tx db.TxRunner, logger zerolog.Logger) *Service {
	return &Service{
		symptoms:   symptoms,
		conditions: conditions,
		rules:      rules,
		ruleBase:   rules,
		sessions:   sessions,
		recorded:   recorded,
		patients:   patients,
		tx:         tx,
		publisher:  events.Nop{},
		logger:     logger.With().Str("component", "diagnosis").Logger(),
		now:        time.Now,
	}
}

// SetRuleCache routes rule base reads through c and invalidates it whenever
// rules are authored.
func (s *Service) SetRuleCache(c *CachedRuleBase) {
	s.ruleBase = c
	s.cache = c
}

func (s *Service) SetPublisher(p events.Publisher) { s.publisher = p }

// -- Inference --

// Infer records a diagnostic session for the patient and runs forward
// chaining over the reported symptom codes. Codes missing from the symptom
// catalog are dropped. At most one condition is concluded.
func (s *Service) Infer(ctx context.Context, patientID uuid.UUID, codes []string) (*InferenceResult, error) {
	if patientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required: %w", apperr.ErrValidation)
	}
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return nil, err
	}

	wm := NewWorkingMemory()
	for _, code := range normalizeCodes(codes) {
		if _, err := s.symptoms.GetByCode(ctx, code); err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				s.logger.Debug().Str("symptom_code", code).Msg("dropping unknown symptom")
				continue
			}
			return nil, fmt.Errorf("lookup symptom %s: %w", code, err)
		}
		wm.Assert(code)
	}

	rules, err := s.ruleBase.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rule base: %w", err)
	}

	var condition *Condition
	fired, ok, err := NewEngine(rules).Fire(wm, func(g RuleGroup) (bool, error) {
		c, err := s.conditions.GetByCode(ctx, g.ConditionCode)
		if errors.Is(err, apperr.ErrNotFound) {
			s.logger.Warn().Str("condition_code", g.ConditionCode).Str("group_code", g.GroupCode).
				Msg("satisfied rule group concludes an unknown condition, skipping")
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("lookup condition %s: %w", g.ConditionCode, err)
		}
		condition = c
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	facts := wm.Facts()
	session := &Session{PatientID: patientID, Status: StatusCreated}
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.sessions.Create(ctx, session); err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		for _, code := range facts {
			if err := s.recorded.Add(ctx, &RecordedSymptom{SessionID: session.ID, SymptomCode: code}); err != nil {
				return fmt.Errorf("record symptom %s: %w", code, err)
			}
		}
		if ok {
			if err := session.Conclude(fired.ConditionCode, fired.GroupCode, s.now()); err != nil {
				return err
			}
		} else if err := session.MarkInconclusive(s.now()); err != nil {
			return err
		}
		return s.sessions.SetConclusion(ctx, session)
	})
	if err != nil {
		return nil, err
	}

	result := &InferenceResult{
		SessionID:        session.ID,
		PatientID:        patientID,
		Status:           session.Status,
		RecordedSymptoms: facts,
	}
	data := map[string]interface{}{
		"session_id": session.ID.String(),
		"status":     string(session.Status),
		"symptoms":   facts,
	}
	if ok {
		result.Condition = condition
		result.FiredGroup = &fired
		data["condition_code"] = fired.ConditionCode
		data["group_code"] = fired.GroupCode
	}

	s.logger.Info().
		Str("session_id", session.ID.String()).
		Str("patient_id", patientID.String()).
		Str("status", string(session.Status)).
		Strs("symptoms", facts).
		Msg("session concluded")
	events.PublishOrLog(ctx, s.publisher, s.logger, events.NewEvent(events.TypeDiagnosisConcluded, patientID, data))

	return result, nil
}

// normalizeCodes trims, drops blanks and removes duplicates, keeping the
// first occurrence.
func normalizeCodes(codes []string) []string {
	seen := make(map[string]bool, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// -- Sessions --

func (s *Service) GetSession(ctx context.Context, id uuid.UUID) (*SessionDetail, error) {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &SessionDetail{Session: session, Symptoms: []Symptom{}}

	if session.ConditionCode != nil {
		c, err := s.conditions.GetByCode(ctx, *session.ConditionCode)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		detail.Condition = c
	}

	recorded, err := s.recorded.ListBySession(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, rs := range recorded {
		sym := Symptom{Code: rs.SymptomCode}
		if found, err := s.symptoms.GetByCode(ctx, rs.SymptomCode); err == nil {
			sym.Label = found.Label
		} else if !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		detail.Symptoms = append(detail.Symptoms, sym)
	}
	return detail, nil
}

func (s *Service) ListSessionsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Session, int, error) {
	return s.sessions.ListByPatient(ctx, patientID, limit, offset)
}

// -- Catalog --

func (s *Service) ListSymptoms(ctx context.Context) ([]*Symptom, error) {
	return s.symptoms.List(ctx)
}

func (s *Service) ListConditions(ctx context.Context) ([]*Condition, error) {
	return s.conditions.List(ctx)
}

// -- Rule authoring --

// CreateRuleGroup stores one rule per symptom of the group.
func (s *Service) CreateRuleGroup(ctx context.Context, in RuleGroupInput) (*RuleGroup, error) {
	var group *RuleGroup
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		group, err = s.writeRuleGroup(ctx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.invalidateRules(ctx)
	s.logger.Info().Str("condition_code", group.ConditionCode).Str("group_code", group.GroupCode).
		Strs("symptoms", group.Symptoms).Msg("rule group created")
	return group, nil
}

func (s *Service) writeRuleGroup(ctx context.Context, in RuleGroupInput) (*RuleGroup, error) {
	conditionCode := strings.TrimSpace(in.ConditionCode)
	groupCode := strings.TrimSpace(in.GroupCode)
	if conditionCode == "" {
		return nil, fmt.Errorf("condition_code is required: %w", apperr.ErrValidation)
	}
	if groupCode == "" {
		return nil, fmt.Errorf("group_code is required: %w", apperr.ErrValidation)
	}
	symptoms := normalizeCodes(in.SymptomCodes)
	if len(symptoms) == 0 {
		return nil, fmt.Errorf("at least one symptom is required: %w", apperr.ErrValidation)
	}

	if _, err := s.conditions.GetByCode(ctx, conditionCode); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, fmt.Errorf("unknown condition %s: %w", conditionCode, apperr.ErrValidation)
		}
		return nil, err
	}
	for _, code := range symptoms {
		if _, err := s.symptoms.GetByCode(ctx, code); err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return nil, fmt.Errorf("unknown symptom %s: %w", code, apperr.ErrValidation)
			}
			return nil, err
		}
	}

	for _, code := range symptoms {
		r := &Rule{ConditionCode: conditionCode, SymptomCode: code, GroupCode: groupCode, Note: in.Note}
		if err := s.rules.Create(ctx, r); err != nil {
			return nil, fmt.Errorf("create rule %s/%s/%s: %w", conditionCode, groupCode, code, err)
		}
	}
	sort.Strings(symptoms)
	return &RuleGroup{ConditionCode: conditionCode, GroupCode: groupCode, Symptoms: symptoms}, nil
}

// ListRuleGroups returns the authored groups ordered by group code, then
// condition code.
func (s *Service) ListRuleGroups(ctx context.Context) ([]RuleGroup, error) {
	rules, err := s.ruleBase.All(ctx)
	if err != nil {
		return nil, err
	}
	groups := GroupRules(rules)
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].GroupCode != groups[j].GroupCode {
			return groups[i].GroupCode < groups[j].GroupCode
		}
		return groups[i].ConditionCode < groups[j].ConditionCode
	})
	return groups, nil
}

// SeedCatalog upserts the catalog's symptoms and conditions and creates its
// rule groups in a single transaction.
func (s *Service) SeedCatalog(ctx context.Context, cat *Catalog) error {
	if err := cat.Validate(); err != nil {
		return err
	}
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		for i := range cat.Symptoms {
			if err := s.symptoms.Upsert(ctx, &cat.Symptoms[i]); err != nil {
				return fmt.Errorf("upsert symptom %s: %w", cat.Symptoms[i].Code, err)
			}
		}
		for i := range cat.Conditions {
			if err := s.conditions.Upsert(ctx, &cat.Conditions[i]); err != nil {
				return fmt.Errorf("upsert condition %s: %w", cat.Conditions[i].Code, err)
			}
		}
		for _, g := range cat.RuleGroups {
			if _, err := s.writeRuleGroup(ctx, g.Input()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.invalidateRules(ctx)
	s.logger.Info().
		Int("symptoms", len(cat.Symptoms)).
		Int("conditions", len(cat.Conditions)).
		Int("rule_groups", len(cat.RuleGroups)).
		Msg("catalog seeded")
	return nil
}

func (s *Service) invalidateRules(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("rule base cache invalidation failed")
	}
}
