package service

import (
	"context"
	"strings"

	"github.com/louisbranch/governing.space/internal/platform/id"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/organization"
)

// CreateOrganizationInput describes a new organization. An empty ID is
// generated.
type CreateOrganizationInput struct {
	ID            string
	Name          string
	AccessModel   organization.AccessModel
	MembershipFee int64
	MemberLimit   int64
	// Settings default to organization.DefaultSettings when nil.
	Settings *organization.Settings
	Managers []string
}

// CreateOrganization registers an organization owned by the caller.
func (s *Service) CreateOrganization(ctx context.Context, in CreateOrganizationInput) (organization.Organization, error) {
	orgID := strings.TrimSpace(in.ID)
	if orgID == "" {
		generated, err := id.NewID()
		if err != nil {
			return organization.Organization{}, err
		}
		orgID = generated
	}
	events, err := s.execute(ctx, envelope{
		Type:       organization.CommandTypeCreate,
		EntityType: organization.EntityTypeOrganization,
		EntityID:   orgID,
		Payload: organization.CreatePayload{
			OrganizationID: orgID,
			Name:           in.Name,
			AccessModel:    in.AccessModel,
			MembershipFee:  in.MembershipFee,
			MemberLimit:    in.MemberLimit,
			Settings:       in.Settings,
			Managers:       in.Managers,
		},
	})
	if err != nil {
		return organization.Organization{}, err
	}
	created, err := mustPayloadOf[organization.CreatedPayload](events, organization.EventTypeCreated)
	if err != nil {
		return organization.Organization{}, err
	}
	return created.Organization, nil
}

// ActivateOrganization opens an organization for governance. Requires the
// activate_organization capability.
func (s *Service) ActivateOrganization(ctx context.Context, orgID string) error {
	_, err := s.execute(ctx, envelope{
		Type:           organization.CommandTypeActivate,
		OrganizationID: orgID,
		EntityType:     organization.EntityTypeOrganization,
		EntityID:       orgID,
	})
	return err
}

// DissolveOrganization closes an organization for good.
func (s *Service) DissolveOrganization(ctx context.Context, orgID string) error {
	_, err := s.execute(ctx, envelope{
		Type:           organization.CommandTypeDissolve,
		OrganizationID: orgID,
		EntityType:     organization.EntityTypeOrganization,
		EntityID:       orgID,
	})
	return err
}

// DepositTreasury moves tokens from the caller's wallet into the organization treasury.
func (s *Service) DepositTreasury(ctx context.Context, orgID string, amount int64) error {
	_, err := s.execute(ctx, envelope{
		Type:           organization.CommandTypeDepositTreasury,
		OrganizationID: orgID,
		Payload:        organization.DepositPayload{Amount: amount},
	})
	return err
}
