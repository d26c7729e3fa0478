package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	approvalruledomain "github.com/smallbiznis/sellerflow/internal/approvalrule/domain"
	"github.com/smallbiznis/sellerflow/internal/authorization"
	"github.com/smallbiznis/sellerflow/internal/clock"
	"github.com/smallbiznis/sellerflow/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  approvalruledomain.Repository
}

type Service struct {
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  approvalruledomain.Repository
}

func NewService(p Params) approvalruledomain.Service {
	return &Service{
		log:   p.Log.Named("approvalrule.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) List(ctx context.Context, activeOnly bool) ([]approvalruledomain.ApprovalRule, error) {
	return s.repo.List(ctx, activeOnly)
}

func (s *Service) Get(ctx context.Context, id string) (*approvalruledomain.ApprovalRule, error) {
	ruleID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	rule, err := s.repo.FindByID(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, approvalruledomain.ErrNotFound
	}
	return rule, nil
}

func (s *Service) Create(ctx context.Context, req approvalruledomain.CreateRuleRequest) (*approvalruledomain.ApprovalRule, error) {
	name := strings.TrimSpace(req.Name)
	role, err := authorization.ParseRole(req.ApproverRole)
	if err != nil {
		return nil, approvalruledomain.ErrInvalidRole
	}
	priority, err := approvalruledomain.ParsePriority(req.Priority)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	rule := approvalruledomain.ApprovalRule{
		ID:           s.genID.Generate(),
		Code:         slug.Make(name),
		Name:         name,
		MarginMin:    req.MarginMin,
		MarginMax:    req.MarginMax,
		ApproverRole: role,
		SLAHours:     req.SLAHours,
		Priority:     priority,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}
	if rule.Steps, err = s.buildSteps(rule.ID, req.Steps); err != nil {
		return nil, err
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Insert(ctx, rule); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, approvalruledomain.ErrDuplicateCode
		}
		return nil, err
	}
	s.log.Info("approval rule created",
		zap.String("rule_id", rule.ID.String()),
		zap.String("code", rule.Code),
		zap.String("approver_role", string(rule.ApproverRole)),
		zap.Int("steps", len(rule.Steps)),
	)
	return &rule, nil
}

func (s *Service) Update(ctx context.Context, id string, req approvalruledomain.UpdateRuleRequest) (*approvalruledomain.ApprovalRule, error) {
	rule, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		rule.Name = strings.TrimSpace(*req.Name)
		rule.Code = slug.Make(rule.Name)
	}
	switch {
	case req.ClearMarginMin:
		rule.MarginMin = nil
	case req.MarginMin != nil:
		rule.MarginMin = req.MarginMin
	}
	switch {
	case req.ClearMarginMax:
		rule.MarginMax = nil
	case req.MarginMax != nil:
		rule.MarginMax = req.MarginMax
	}
	if req.ApproverRole != nil {
		role, err := authorization.ParseRole(*req.ApproverRole)
		if err != nil {
			return nil, approvalruledomain.ErrInvalidRole
		}
		rule.ApproverRole = role
	}
	if req.SLAHours != nil {
		rule.SLAHours = *req.SLAHours
	}
	if req.Priority != nil {
		priority, err := approvalruledomain.ParsePriority(*req.Priority)
		if err != nil {
			return nil, err
		}
		rule.Priority = priority
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}
	if req.Steps != nil {
		if rule.Steps, err = s.buildSteps(rule.ID, *req.Steps); err != nil {
			return nil, err
		}
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	rule.UpdatedAt = s.clock.Now().UTC()
	if err := s.repo.Update(ctx, *rule); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, approvalruledomain.ErrDuplicateCode
		}
		return nil, err
	}
	s.log.Info("approval rule updated", zap.String("rule_id", rule.ID.String()))
	return rule, nil
}

func (s *Service) RuleSet(ctx context.Context) (approvalruledomain.RuleSet, error) {
	rules, err := s.repo.List(ctx, true)
	if err != nil {
		return approvalruledomain.RuleSet{}, err
	}
	return approvalruledomain.NewRuleSet(rules), nil
}

func (s *Service) buildSteps(ruleID snowflake.ID, req []approvalruledomain.StepRequest) ([]approvalruledomain.ApprovalRuleStep, error) {
	if len(req) == 0 {
		return nil, nil
	}
	steps := make([]approvalruledomain.ApprovalRuleStep, 0, len(req))
	for i, item := range req {
		role, err := authorization.ParseRole(item.ApproverRole)
		if err != nil {
			return nil, approvalruledomain.ErrInvalidRole
		}
		steps = append(steps, approvalruledomain.ApprovalRuleStep{
			ID:           s.genID.Generate(),
			RuleID:       ruleID,
			StepOrder:    i + 1,
			ApproverRole: role,
			SLAHours:     item.SLAHours,
		})
	}
	return steps, nil
}

func parseID(raw string) (snowflake.ID, error) {
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || value <= 0 {
		return 0, approvalruledomain.ErrNotFound
	}
	return snowflake.ID(value), nil
}
