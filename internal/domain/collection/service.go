package collection

import (
	"context"

	"dairyops/internal/core/apperror"
	appctx "dairyops/internal/core/context"
	"dairyops/internal/core/tx"
	"dairyops/pkg/logger"
)

// Service manages window overrides and keeps the resolver current.
type Service struct {
	store    OverrideStore
	resolver *Resolver
	txm      tx.Manager
	notifier ChangeNotifier
}

// NewService creates the override service. notifier may be nil.
func NewService(store OverrideStore, resolver *Resolver, txm tx.Manager, notifier ChangeNotifier) *Service {
	return &Service{store: store, resolver: resolver, txm: txm, notifier: notifier}
}

// Resolver returns the resolver kept in sync by this service.
func (s *Service) Resolver() *Resolver { return s.resolver }

// ListWindows returns the effective windows.
func (s *Service) ListWindows(ctx context.Context) ([]Window, error) {
	return s.resolver.Windows(ctx)
}

// SetOverride stores new bounds for a session and invalidates cached windows.
func (s *Service) SetOverride(ctx context.Context, session Session, start, end TimeOfDay) (*Override, error) {
	o := &Override{
		SessionKey: session,
		StartTime:  start.String(),
		EndTime:    end.String(),
		UpdatedBy:  appctx.GetOperatorID(ctx),
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.UpsertOverride(ctx, o); err != nil {
			return err
		}
		return s.notify(ctx)
	})
	if err != nil {
		return nil, err
	}
	s.resolver.Invalidate()

	logger.Info(ctx, "collection window overridden",
		"session", session, "start", o.StartTime, "end", o.EndTime)
	return o, nil
}

// DeleteOverride restores the default bounds of a session.
func (s *Service) DeleteOverride(ctx context.Context, session Session) error {
	if !session.Valid() {
		return apperror.NewValidation("Unknown collection session").WithDetail("session_key", session)
	}
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.DeleteOverride(ctx, session); err != nil {
			return err
		}
		return s.notify(ctx)
	})
	if err != nil {
		return err
	}
	s.resolver.Invalidate()

	logger.Info(ctx, "collection window override removed", "session", session)
	return nil
}

func (s *Service) notify(ctx context.Context) error {
	if s.notifier == nil {
		return nil
	}
	return s.notifier.NotifyWindowsChanged(ctx)
}
