package service

import (
	"context"

	"github.com/louisbranch/governing.space/internal/services/governance/domain/command"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/membership"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/reputation"
)

// AddMemberInput describes an admission. An empty Account admits the caller.
type AddMemberInput struct {
	Account      string
	Tier         membership.Tier
	InitialStake int64
}

// AddMember admits an account into an organization and returns the member.
func (s *Service) AddMember(ctx context.Context, orgID string, in AddMemberInput) (membership.Member, error) {
	events, err := s.execute(ctx, envelope{
		Type:           membership.CommandTypeAdd,
		OrganizationID: orgID,
		EntityType:     membership.EntityTypeMember,
		EntityID:       in.Account,
		Payload: membership.AddPayload{
			Account:      in.Account,
			Tier:         in.Tier,
			InitialStake: in.InitialStake,
		},
	})
	if err != nil {
		return membership.Member{}, err
	}
	added, err := mustPayloadOf[membership.AddedPayload](events, membership.EventTypeAdded)
	if err != nil {
		return membership.Member{}, err
	}
	return added.Member, nil
}

// RemoveMember removes a member, unwinding every delegation that touches it.
func (s *Service) RemoveMember(ctx context.Context, orgID, account string) error {
	return s.memberCommand(ctx, membership.CommandTypeRemove, orgID, account)
}

// UpdateMemberTier moves a member to tier.
func (s *Service) UpdateMemberTier(ctx context.Context, orgID, account string, tier membership.Tier) error {
	_, err := s.execute(ctx, envelope{
		Type:           membership.CommandTypeUpdateTier,
		OrganizationID: orgID,
		EntityType:     membership.EntityTypeMember,
		EntityID:       account,
		Payload:        membership.TierPayload{Account: account, Tier: tier},
	})
	return err
}

// PauseMember suspends a member's voting power at its own or a manager's request.
func (s *Service) PauseMember(ctx context.Context, orgID, account string) error {
	return s.memberCommand(ctx, membership.CommandTypePause, orgID, account)
}

// ResumeMember reverses PauseMember.
func (s *Service) ResumeMember(ctx context.Context, orgID, account string) error {
	return s.memberCommand(ctx, membership.CommandTypeResume, orgID, account)
}

// SuspendMember is the manager-imposed pause.
func (s *Service) SuspendMember(ctx context.Context, orgID, account string) error {
	return s.memberCommand(ctx, membership.CommandTypeSuspend, orgID, account)
}

// ReactivateMember reverses SuspendMember.
func (s *Service) ReactivateMember(ctx context.Context, orgID, account string) error {
	return s.memberCommand(ctx, membership.CommandTypeReactivate, orgID, account)
}

func (s *Service) memberCommand(ctx context.Context, t command.Type, orgID, account string) error {
	_, err := s.execute(ctx, envelope{
		Type:           t,
		OrganizationID: orgID,
		EntityType:     membership.EntityTypeMember,
		EntityID:       account,
		Payload:        membership.AccountPayload{Account: account},
	})
	return err
}

// DelegateVotingPower lends amount of the caller's base power to another member.
func (s *Service) DelegateVotingPower(ctx context.Context, orgID, to string, amount int64) error {
	_, err := s.execute(ctx, envelope{
		Type:           membership.CommandTypeDelegate,
		OrganizationID: orgID,
		Payload:        membership.DelegatePayload{To: to, Amount: amount},
	})
	return err
}

// UndelegateVotingPower returns amount previously delegated to another member.
func (s *Service) UndelegateVotingPower(ctx context.Context, orgID, to string, amount int64) error {
	_, err := s.execute(ctx, envelope{
		Type:           membership.CommandTypeUndelegate,
		OrganizationID: orgID,
		Payload:        membership.DelegatePayload{To: to, Amount: amount},
	})
	return err
}

// UpdateReputation adjusts a member's score by delta and returns the new
// score. Out-of-range results are rejected, never clamped.
func (s *Service) UpdateReputation(ctx context.Context, orgID, account string, delta int64, reasonHash string) (int64, error) {
	events, err := s.execute(ctx, envelope{
		Type:           membership.CommandTypeUpdateReputation,
		OrganizationID: orgID,
		EntityType:     reputation.EntityTypeReputation,
		EntityID:       account,
		Payload:        membership.ReputationPayload{Account: account, Delta: delta, ReasonHash: reasonHash},
	})
	if err != nil {
		return 0, err
	}
	updated, err := mustPayloadOf[reputation.UpdatedPayload](events, reputation.EventTypeUpdated)
	if err != nil {
		return 0, err
	}
	return updated.After, nil
}
