package application

import (
	"context"
	"time"
)

// InviteSweeper expires group invites past their deadline
type InviteSweeper struct {
	uowFactory UnitOfWorkFactory
	build      ServiceBuilder
	now        func() time.Time
}

// NewInviteSweeper creates a new invite sweeper
func NewInviteSweeper(uowFactory UnitOfWorkFactory, build ServiceBuilder) *InviteSweeper {
	return &InviteSweeper{
		uowFactory: uowFactory,
		build:      build,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ExpireOverdue expires pending and ready invites past their deadline and
// returns how many changed
func (s *InviteSweeper) ExpireOverdue(ctx context.Context) (int, error) {
	var expired int
	err := runInUnitOfWork(ctx, s.uowFactory, s.build, func(uow UnitOfWork, svc *Services) error {
		var err error
		expired, err = svc.Invites.ExpireOverdue(ctx, s.now())
		return err
	})
	if err != nil {
		return 0, err
	}
	return expired, nil
}
