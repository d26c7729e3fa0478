package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/smallbiznis/sellerflow/internal/errs"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectQuote         = "quote"
	ObjectApproval      = "approval"
	ObjectPricing       = "pricing"
	ObjectConfiguration = "configuration"

	objectApprovalLevel = "approval_level"
)

const (
	ActionQuoteView    = "quote.view"
	ActionQuoteEdit    = "quote.edit"
	ActionQuoteSubmit  = "quote.submit"
	ActionQuoteSend    = "quote.send"
	ActionApprovalView = "approval.view"
	ActionSimulate     = "pricing.simulate"
	ActionConfigManage = "configuration.manage"
)

var (
	ErrForbidden    = errs.New(errs.ErrPermission, "forbidden")
	ErrInvalidActor = errs.New(errs.ErrPermission, "invalid_actor")
	ErrInvalidRole  = errs.New(errs.ErrValidation, "invalid_role")
)

type Service interface {
	// Authorize checks whether role may perform action on object.
	Authorize(ctx context.Context, role string, object string, action string) error
	// Satisfies reports whether actorRole is at least as senior as required.
	Satisfies(actorRole Role, required Role) (bool, error)
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

var Module = fx.Module("authorization",
	fx.Provide(NewEnforcer),
	fx.Provide(NewService),
)

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

// NewMemoryEnforcer builds an enforcer without persistence, seeded with the
// built-in hierarchy.
func NewMemoryEnforcer() (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	// each role inherits everything the role below it can do
	for i := len(roleOrder) - 1; i > 0; i-- {
		if _, err := enforcer.AddGroupingPolicy(subject(roleOrder[i]), subject(roleOrder[i-1])); err != nil {
			return err
		}
	}
	for _, role := range roleOrder {
		if _, err := enforcer.AddPolicy(subject(role), objectApprovalLevel, string(role)); err != nil {
			return err
		}
	}

	grants := []struct {
		role   Role
		object string
		action string
	}{
		{RoleVendedor, ObjectQuote, ActionQuoteView},
		{RoleVendedor, ObjectQuote, ActionQuoteEdit},
		{RoleVendedor, ObjectQuote, ActionQuoteSubmit},
		{RoleVendedor, ObjectQuote, ActionQuoteSend},
		{RoleVendedor, ObjectPricing, ActionSimulate},
		{RoleCoordenador, ObjectApproval, ActionApprovalView},
		{RoleAdmin, ObjectConfiguration, ActionConfigManage},
	}
	for _, g := range grants {
		if _, err := enforcer.AddPolicy(subject(g.role), g.object, g.action); err != nil {
			return err
		}
	}
	return nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, role string, object string, action string) error {
	parsed, err := ParseRole(role)
	if err != nil {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	action = strings.TrimSpace(action)
	if object == "" || action == "" {
		return ErrForbidden
	}

	allowed, err := s.enforcer.Enforce(subject(parsed), object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Debug("authorization denied",
			zap.String("role", string(parsed)),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) Satisfies(actorRole Role, required Role) (bool, error) {
	if !actorRole.Valid() || !required.Valid() {
		return false, ErrInvalidRole
	}
	return s.enforcer.Enforce(subject(actorRole), objectApprovalLevel, string(required))
}
