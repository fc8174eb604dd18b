package usecase

import (
	"context"
	"fmt"
	"strings"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/identity-adapter/internal/core/domain"
)

// CreateRole creates a role from submitted properties. The name is mandatory.
func (s *ManagementService) CreateRole(ctx context.Context, properties []domain.PropertyValue) (domain.ValueResult[domain.CreateResult], error) {
	if s.roles == nil {
		return domain.ValueResult[domain.CreateResult]{}, ErrRolesNotSupported
	}
	ctx, span := s.tracer.Start(ctx, "ManagementService.CreateRole")
	defer span.End()

	name, ok := propertyValue(properties, domain.PropertyName)
	if !ok || strings.TrimSpace(name) == "" {
		return domain.ValueResult[domain.CreateResult]{}, fmt.Errorf("%w: %s", ErrMissingProperty, domain.PropertyName)
	}

	meta, err := s.GetMetadata(ctx)
	if err != nil {
		return domain.ValueResult[domain.CreateResult]{}, err
	}
	createProps := meta.RoleMetadata.CreateProperties

	role := &domain.Role{Name: strings.TrimSpace(name)}
	for _, prop := range properties {
		if prop.Type == domain.PropertyName {
			continue
		}
		if res := checkDescriptor(s.validator, createProps, prop.Type, prop.Value); !res.IsSuccess() {
			return domain.FailureOf[domain.CreateResult](res), nil
		}
		res, err := SetProperty(ctx, createProps, role, prop.Type, prop.Value)
		if err != nil {
			return domain.ValueResult[domain.CreateResult]{}, err
		}
		if !res.IsSuccess() {
			return domain.FailureOf[domain.CreateResult](res), nil
		}
	}

	res, err := softResult(s.roles.Create(ctx, role))
	if err != nil {
		span.RecordError(err)
		return domain.ValueResult[domain.CreateResult]{}, fmt.Errorf("create role: %w", err)
	}
	if !res.IsSuccess() {
		return domain.FailureOf[domain.CreateResult](res), nil
	}

	s.logger.Info("role created", zap.String("role_id", role.ID), zap.String("name", role.Name))
	s.publish(ctx, "role created", func(ctx context.Context) error {
		return s.events.PublishRoleCreated(ctx, domain.RoleCreatedEvent{
			EventID:   uuid.NewString(),
			RoleID:    role.ID,
			Name:      role.Name,
			CreatedAt: s.now().UTC(),
		})
	})
	return domain.SuccessWith(domain.CreateResult{Subject: role.ID}), nil
}

// DeleteRole removes a role and its memberships.
func (s *ManagementService) DeleteRole(ctx context.Context, subject string) (domain.Result, error) {
	if s.roles == nil {
		return domain.Result{}, ErrRolesNotSupported
	}
	ctx, span := s.tracer.Start(ctx, "ManagementService.DeleteRole")
	defer span.End()

	role, res, err := s.loadRole(ctx, subject)
	if err != nil || !res.IsSuccess() {
		return res, err
	}

	res, err = softResult(s.roles.Delete(ctx, role))
	if err != nil {
		span.RecordError(err)
		return res, fmt.Errorf("delete role: %w", err)
	}
	if !res.IsSuccess() {
		return res, nil
	}

	s.logger.Info("role deleted", zap.String("role_id", role.ID))
	s.publish(ctx, "role deleted", func(ctx context.Context) error {
		return s.events.PublishRoleDeleted(ctx, domain.RoleDeletedEvent{
			EventID:   uuid.NewString(),
			RoleID:    role.ID,
			Name:      role.Name,
			DeletedAt: s.now().UTC(),
		})
	})
	return domain.Success(), nil
}

// QueryRoles pages through roles whose name contains filter.
func (s *ManagementService) QueryRoles(ctx context.Context, filter string, start, count int) (domain.ValueResult[domain.QueryResult[domain.RoleSummary]], error) {
	if s.roles == nil {
		return domain.ValueResult[domain.QueryResult[domain.RoleSummary]]{}, ErrRolesNotSupported
	}

	query := normalizeQuery(filter, start, count)
	roles, total, err := s.roles.QueryRoles(ctx, query)
	if err != nil {
		return domain.ValueResult[domain.QueryResult[domain.RoleSummary]]{}, fmt.Errorf("query roles: %w", err)
	}

	items := make([]domain.RoleSummary, 0, len(roles))
	for _, r := range roles {
		items = append(items, domain.RoleSummary{Subject: r.ID, Name: r.Name, Description: r.Description})
	}
	return domain.SuccessWith(domain.QueryResult[domain.RoleSummary]{
		Items:  items,
		Total:  total,
		Start:  query.Start,
		Count:  query.Count,
		Filter: query.Filter,
	}), nil
}

// GetRole returns the administrative view of a role, or a nil detail for an unknown subject.
func (s *ManagementService) GetRole(ctx context.Context, subject string) (domain.ValueResult[*domain.RoleDetail], error) {
	if s.roles == nil {
		return domain.ValueResult[*domain.RoleDetail]{}, ErrRolesNotSupported
	}

	role, res, err := s.loadRole(ctx, subject)
	if err != nil {
		return domain.ValueResult[*domain.RoleDetail]{}, err
	}
	if !res.IsSuccess() {
		return domain.SuccessWith[*domain.RoleDetail](nil), nil
	}

	meta, err := s.GetMetadata(ctx)
	if err != nil {
		return domain.ValueResult[*domain.RoleDetail]{}, err
	}
	props, err := propertyValues(ctx, meta.RoleMetadata.UpdateProperties, role)
	if err != nil {
		return domain.ValueResult[*domain.RoleDetail]{}, err
	}

	return domain.SuccessWith(&domain.RoleDetail{
		Subject:     role.ID,
		Name:        role.Name,
		Description: role.Description,
		Properties:  props,
	}), nil
}

// SetRoleProperty applies one update property and persists the role. Update failures are
// reported with the store's own messages.
func (s *ManagementService) SetRoleProperty(ctx context.Context, subject, propType, value string) (domain.Result, error) {
	if s.roles == nil {
		return domain.Result{}, ErrRolesNotSupported
	}

	role, res, err := s.loadRole(ctx, subject)
	if err != nil || !res.IsSuccess() {
		return res, err
	}

	meta, err := s.GetMetadata(ctx)
	if err != nil {
		return domain.Result{}, err
	}
	updateProps := meta.RoleMetadata.UpdateProperties

	if res := checkDescriptor(s.validator, updateProps, propType, value); !res.IsSuccess() {
		return res, nil
	}
	res, err = SetProperty(ctx, updateProps, role, propType, value)
	if err != nil || !res.IsSuccess() {
		return res, err
	}

	res, err = softResult(s.roles.Update(ctx, role))
	if err != nil {
		return res, fmt.Errorf("update role: %w", err)
	}
	return res, nil
}

func (s *ManagementService) loadRole(ctx context.Context, subject string) (*domain.Role, domain.Result, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, domain.Result{}, ErrSubjectRequired
	}

	role, err := s.roles.FindByID(ctx, subject)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.Failure(invalidSubjectMessage), nil
		}
		return nil, domain.Result{}, fmt.Errorf("lookup role: %w", err)
	}
	return role, domain.Success(), nil
}
