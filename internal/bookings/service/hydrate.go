package service

import (
	"context"

	"labbook/pkg/model"
)

// hydrate attaches lab and user display fields. Lookup failures are logged
// and leave the bookings bare.
func (s *bookingService) hydrate(ctx context.Context, bookings []*model.Booking) {
	s.hydrateLabs(ctx, bookings)
	s.hydrateUsers(ctx, bookings)
}

func (s *bookingService) hydrateLabs(ctx context.Context, bookings []*model.Booking) {
	ids := collectIDs(bookings, func(b *model.Booking) string { return b.LabID })
	if len(ids) == 0 {
		return
	}

	labs, err := s.labs.FindByIDs(ctx, ids)
	if err != nil {
		s.cfg.Log.Warn("Failed to load labs for bookings", "count", len(ids), "error", err)
		return
	}
	for _, b := range bookings {
		if lab, ok := labs[b.LabID]; ok {
			b.Lab = lab.Summary()
		}
	}
}

func (s *bookingService) hydrateUsers(ctx context.Context, bookings []*model.Booking) {
	ids := collectIDs(bookings, func(b *model.Booking) string { return b.UserID })
	if len(ids) == 0 {
		return
	}

	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		s.cfg.Log.Warn("Failed to load users for bookings", "count", len(ids), "error", err)
		return
	}
	for _, b := range bookings {
		if user, ok := users[b.UserID]; ok {
			b.User = user.Summary()
		}
	}
}

func collectIDs(bookings []*model.Booking, id func(*model.Booking) string) []string {
	seen := make(map[string]struct{}, len(bookings))
	var ids []string
	for _, b := range bookings {
		v := id(b)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		ids = append(ids, v)
	}
	return ids
}
