package core

import (
	"context"
	"strings"

	"medconnect/pkg/domain"
)

// CommunityInput describes a new community.
type CommunityInput struct {
	Name        string
	Description string
	Category    string
	IsPrivate   bool
	Tags        []string
	Moderators  []string
}

// CreateCommunity registers an empty community.
func (s *Service) CreateCommunity(ctx context.Context, input CommunityInput) (domain.Community, domain.Result, error) {
	var created domain.Community
	name := strings.TrimSpace(input.Name)
	if name == "" {
		err := domain.ValidationError{Field: "name", Message: "is required"}
		_, done := s.instrument(ctx, "create_community")
		done(err)
		return created, domain.Result{}, err
	}
	res, err := s.run(ctx, "create_community", func(tx domain.Transaction) error {
		var err error
		created, err = tx.CreateCommunity(domain.Community{
			Name:         name,
			Description:  strings.TrimSpace(input.Description),
			Category:     strings.TrimSpace(input.Category),
			IsPrivate:    input.IsPrivate,
			Tags:         append([]string(nil), input.Tags...),
			Moderators:   append([]string(nil), input.Moderators...),
			LastActivity: s.clock.Now(),
		})
		return err
	})
	return created, res, err
}

// JoinCommunity increments the member count of communityID by one. Repeated
// joins by the same user are counted again.
func (s *Service) JoinCommunity(ctx context.Context, userID, communityID string) (domain.Community, domain.Result, error) {
	return s.adjustMembers(ctx, "join_community", userID, communityID, 1)
}

// LeaveCommunity decrements the member count of communityID, never below zero.
func (s *Service) LeaveCommunity(ctx context.Context, userID, communityID string) (domain.Community, domain.Result, error) {
	return s.adjustMembers(ctx, "leave_community", userID, communityID, -1)
}

func (s *Service) adjustMembers(ctx context.Context, operation, userID, communityID string, delta int) (domain.Community, domain.Result, error) {
	var updated domain.Community
	if strings.TrimSpace(userID) == "" {
		err := domain.ValidationError{Field: "user_id", Message: "is required"}
		_, done := s.instrument(ctx, operation)
		done(err)
		return updated, domain.Result{}, err
	}
	res, err := s.run(ctx, operation, func(tx domain.Transaction) error {
		if _, ok := tx.FindCommunity(communityID); !ok {
			return domain.NotFoundError{Entity: domain.EntityCommunity, ID: communityID}
		}
		var err error
		updated, err = tx.UpdateCommunity(communityID, func(c *domain.Community) error {
			c.MemberCount = max(c.MemberCount+delta, 0)
			c.LastActivity = s.clock.Now()
			return nil
		})
		return err
	})
	return updated, res, err
}

// ListCommunities returns every community in creation order.
func (s *Service) ListCommunities(ctx context.Context) ([]domain.Community, error) {
	var communities []domain.Community
	err := s.view(ctx, "list_communities", func(v domain.TransactionView) error {
		communities = v.ListCommunities()
		return nil
	})
	return communities, err
}
