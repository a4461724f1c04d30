package organization

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/louisbranch/governing.space/internal/platform/errors"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/authz"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/command"
	"github.com/louisbranch/governing.space/internal/services/governance/domain/staking"
)

// View is the read-only state an organization decision consults.
type View struct {
	Organizations *State
	Staking       *staking.State
}

// Decide returns the decision for an organization command.
func Decide(params Params, v View, cmd command.Command, now func() time.Time) command.Decision {
	if now == nil {
		now = time.Now
	}
	at := now().UTC()
	switch cmd.Type {
	case CommandTypeCreate:
		return decideCreate(params, v, cmd, at)
	case CommandTypeActivate:
		return decideActivate(v, cmd, at)
	case CommandTypeDissolve:
		return decideDissolve(v, cmd, at)
	case CommandTypeDepositTreasury:
		return decideDeposit(v, cmd, at)
	default:
		return command.Rejectf(command.RejectionCodeCommandTypeUnsupported, fmt.Sprintf("command type %s is not supported by organization", cmd.Type))
	}
}

func decideCreate(params Params, v View, cmd command.Command, now time.Time) command.Decision {
	payload, rejected := command.Decode[CreatePayload](cmd)
	if rejected != nil {
		return *rejected
	}
	orgID := strings.TrimSpace(payload.OrganizationID)
	if orgID == "" {
		orgID = cmd.OrganizationID
	}
	if orgID == "" || strings.Contains(orgID, "/") {
		return command.Rejectf(apperrors.CodeInvalidArgument, "organization id is required and must not contain '/'")
	}
	if _, exists := v.Organizations.Get(orgID); exists {
		return command.Reject(command.Rejection{
			Code:     apperrors.CodeOrganizationAlreadyExists,
			Message:  "organization already exists",
			Metadata: map[string]string{"OrganizationID": orgID},
		})
	}
	if !payload.AccessModel.Valid() {
		return settingsRejection("access model is invalid")
	}
	if payload.MemberLimit <= 0 {
		return settingsRejection("member limit must be positive")
	}
	if payload.MembershipFee < 0 {
		return settingsRejection("membership fee must be non-negative")
	}
	settings := DefaultSettings()
	if payload.Settings != nil {
		settings = *payload.Settings
	}
	if err := settings.Validate(); err != nil {
		return settingsRejection(err.Error())
	}
	// Stake already reserved by the creator's other organizations does not count.
	stake := v.Staking.Unlocked(cmd.ActorID, staking.PurposeDAOCreation)
	if stake < params.MinCreationStake {
		return command.Reject(command.Rejection{
			Code:     apperrors.CodeOrganizationCreationStake,
			Message:  "creation stake below minimum",
			Metadata: map[string]string{"Required": strconv.FormatInt(params.MinCreationStake, 10)},
		})
	}

	org := Organization{
		ID:            orgID,
		Name:          strings.TrimSpace(payload.Name),
		Creator:       cmd.ActorID,
		Managers:      normalizeManagers(payload.Managers, cmd.ActorID),
		AccessModel:   payload.AccessModel,
		MembershipFee: payload.MembershipFee,
		MemberLimit:   payload.MemberLimit,
		Status:        StatusCreated,
		CreationStake: stake,
		LockedStake:   params.MinCreationStake,
		Settings:      settings,
		CreatedAt:     now,
	}
	em := command.NewEmitter(cmd, now).ForOrganization(orgID)
	em.Emit(EventTypeCreated, EntityTypeOrganization, orgID, CreatedPayload{Organization: org})
	if org.LockedStake > 0 {
		em.Emit(staking.EventTypeStakeLocked, staking.EntityTypePosition, org.Creator, creationLock(org))
	}
	return em.Decision()
}

func decideActivate(v View, cmd command.Command, now time.Time) command.Decision {
	org, d := lookup(v, cmd.OrganizationID)
	if d != nil {
		return *d
	}
	if org.Status != StatusCreated {
		return transitionRejection(org.Status, StatusActive)
	}
	em := command.NewEmitter(cmd, now)
	em.Emit(EventTypeActivated, EntityTypeOrganization, org.ID, TransitionPayload{From: org.Status, To: StatusActive})
	return em.Decision()
}

func decideDissolve(v View, cmd command.Command, now time.Time) command.Decision {
	org, d := lookup(v, cmd.OrganizationID)
	if d != nil {
		return *d
	}
	if !org.IsManager(cmd.ActorID) && !cmd.Has(authz.CapabilityEmergency) {
		return command.Rejectf(apperrors.CodeOrganizationNotManager, "only managers may dissolve the organization")
	}
	if org.Status == StatusDissolved {
		return transitionRejection(org.Status, StatusDissolved)
	}
	em := command.NewEmitter(cmd, now)
	em.Emit(EventTypeDissolved, EntityTypeOrganization, org.ID, TransitionPayload{From: org.Status, To: StatusDissolved})
	if org.LockedStake > 0 {
		em.Emit(staking.EventTypeStakeReleased, staking.EntityTypePosition, org.Creator, creationLock(org))
	}
	return em.Decision()
}

func creationLock(org Organization) staking.StakeLockPayload {
	return staking.StakeLockPayload{
		OrganizationID: org.ID,
		Account:        org.Creator,
		Purpose:        staking.PurposeDAOCreation,
		Amount:         org.LockedStake,
	}
}

func decideDeposit(v View, cmd command.Command, now time.Time) command.Decision {
	payload, rejected := command.Decode[DepositPayload](cmd)
	if rejected != nil {
		return *rejected
	}
	org, d := lookup(v, cmd.OrganizationID)
	if d != nil {
		return *d
	}
	if org.Status == StatusDissolved {
		return command.Rejectf(apperrors.CodeOrganizationDissolved, "organization is dissolved")
	}
	if payload.Amount <= 0 {
		return command.Rejectf(apperrors.CodeStakeAmountInvalid, "deposit amount must be positive")
	}
	if v.Staking.Balance(cmd.ActorID) < payload.Amount {
		return command.Rejectf(apperrors.CodeStakeInsufficientBalance, "wallet balance is below deposit amount")
	}
	em := command.NewEmitter(cmd, now)
	em.Emit(staking.EventTypeTreasuryDeposited, staking.EntityTypeTreasury, org.ID, staking.TreasuryMovedPayload{
		OrganizationID: org.ID,
		Account:        cmd.ActorID,
		Amount:         payload.Amount,
	})
	return em.Decision()
}

func lookup(v View, orgID string) (Organization, *command.Decision) {
	org, ok := v.Organizations.Get(orgID)
	if !ok {
		d := command.Reject(command.Rejection{
			Code:     apperrors.CodeOrganizationNotFound,
			Message:  "organization not found",
			Metadata: map[string]string{"OrganizationID": orgID},
		})
		return Organization{}, &d
	}
	return org, nil
}

// RequireActive looks up an organization that must be active for the decision.
func RequireActive(s *State, orgID string) (Organization, *command.Rejection) {
	org, ok := s.Get(orgID)
	if !ok {
		return Organization{}, &command.Rejection{
			Code:     apperrors.CodeOrganizationNotFound,
			Message:  "organization not found",
			Metadata: map[string]string{"OrganizationID": orgID},
		}
	}
	switch org.Status {
	case StatusDissolved:
		return org, &command.Rejection{Code: apperrors.CodeOrganizationDissolved, Message: "organization is dissolved"}
	case StatusActive:
		return org, nil
	default:
		return org, &command.Rejection{Code: apperrors.CodeOrganizationNotActive, Message: "organization is not active"}
	}
}

func settingsRejection(reason string) command.Decision {
	return command.Reject(command.Rejection{
		Code:     apperrors.CodeOrganizationSettingsInvalid,
		Message:  "organization settings invalid: " + reason,
		Metadata: map[string]string{"Reason": reason},
	})
}

func transitionRejection(from, to Status) command.Decision {
	return command.Reject(command.Rejection{
		Code:     apperrors.CodeOrganizationInvalidTransition,
		Message:  fmt.Sprintf("organization cannot move from %s to %s", from, to),
		Metadata: map[string]string{"From": string(from), "To": string(to)},
	})
}

func normalizeManagers(managers []string, creator string) []string {
	out := make([]string, 0, len(managers))
	for _, m := range managers {
		m = strings.TrimSpace(m)
		if m == "" || m == creator || slices.Contains(out, m) {
			continue
		}
		out = append(out, m)
	}
	slices.Sort(out)
	return out
}
