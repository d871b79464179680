package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/darkodi/whatsapp-redirect/internal/logger"
	"github.com/darkodi/whatsapp-redirect/internal/model"
	"github.com/darkodi/whatsapp-redirect/internal/repository"
	"github.com/darkodi/whatsapp-redirect/internal/validator"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrLinkExists       = errors.New("link name already in use by this owner")
	ErrNumberExists     = errors.New("number already registered for this owner")
	ErrLastActiveNumber = errors.New("owner must keep at least one active number")
)

// LinkAdmin is the write side of link management
type LinkAdmin interface {
	GetByID(ctx context.Context, id int64) (*model.CustomLink, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]model.CustomLink, error)
	Create(ctx context.Context, link *model.CustomLink) error
	SetActive(ctx context.Context, linkID int64, active bool) error
}

// NumberAdmin is the write side of number management
type NumberAdmin interface {
	GetByID(ctx context.Context, id int64) (*model.PhoneNumber, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]model.PhoneNumber, error)
	FindActiveByOwner(ctx context.Context, ownerID int64) ([]model.PhoneNumber, error)
	Create(ctx context.Context, n *model.PhoneNumber) error
	SetActive(ctx context.Context, numberID int64, active bool) error
	Delete(ctx context.Context, numberID int64) error
}

// LinkInvalidator drops cached link resolutions
type LinkInvalidator interface {
	DeleteLink(ctx context.Context, key model.LinkKey) error
}

// AdminService manages an owner's links and numbers
type AdminService struct {
	links     LinkAdmin
	numbers   NumberAdmin
	validator *validator.LinkValidator
	cache     LinkInvalidator
	log       *logger.Logger
}

// NewAdminService creates an admin service. cache may be nil.
func NewAdminService(links LinkAdmin, numbers NumberAdmin, v *validator.LinkValidator, cache LinkInvalidator, log *logger.Logger) *AdminService {
	if v == nil {
		v = validator.NewLinkValidator()
	}
	return &AdminService{links: links, numbers: numbers, validator: v, cache: cache, log: log}
}

// AddNumber registers an active number for owner
func (s *AdminService) AddNumber(ctx context.Context, ownerID int64, phone, description string) (*model.PhoneNumber, error) {
	digits, appErr := s.validator.ValidatePhone(phone)
	if appErr != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, appErr.Details)
	}

	existing, err := s.numbers.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list numbers: %w", err)
	}
	for _, n := range existing {
		if n.Phone == digits {
			return nil, ErrNumberExists
		}
	}

	n := &model.PhoneNumber{OwnerID: ownerID, Phone: digits, Description: description, IsActive: true}
	if err := s.numbers.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("create number: %w", err)
	}
	s.log.Info("number added", "owner_id", ownerID, "number_id", n.ID)
	return n, nil
}

// AddLink creates an active link for owner
func (s *AdminService) AddLink(ctx context.Context, ownerID int64, name, message string) (*model.CustomLink, error) {
	if appErr := s.validator.ValidateLinkName(name); appErr != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, appErr.Details)
	}

	link := &model.CustomLink{OwnerID: ownerID, Name: name, Message: message, IsActive: true}
	if err := s.links.Create(ctx, link); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrLinkExists
		}
		return nil, fmt.Errorf("create link: %w", err)
	}
	s.log.Info("link added", "owner_id", ownerID, "link_id", link.ID, "link", name)
	return link, nil
}

// SetLinkActive toggles a link and drops its cached resolutions
func (s *AdminService) SetLinkActive(ctx context.Context, linkID int64, active bool) error {
	link, err := s.links.GetByID(ctx, linkID)
	if err != nil {
		return fmt.Errorf("get link %d: %w", linkID, err)
	}
	if err := s.links.SetActive(ctx, linkID, active); err != nil {
		return fmt.Errorf("update link %d: %w", linkID, err)
	}
	s.invalidate(ctx, link)
	s.log.Info("link updated", "link_id", linkID, "active", active)
	return nil
}

// SetNumberActive toggles a number. The owner's last active number cannot be
// deactivated.
func (s *AdminService) SetNumberActive(ctx context.Context, numberID int64, active bool) error {
	n, err := s.numbers.GetByID(ctx, numberID)
	if err != nil {
		return fmt.Errorf("get number %d: %w", numberID, err)
	}
	if !active && n.IsActive {
		if err := s.ensureNotLastActive(ctx, n); err != nil {
			return err
		}
	}
	if err := s.numbers.SetActive(ctx, numberID, active); err != nil {
		return fmt.Errorf("update number %d: %w", numberID, err)
	}
	s.log.Info("number updated", "number_id", numberID, "active", active)
	return nil
}

// DeleteNumber removes a number. Its redirect log rows stay behind as orphans.
func (s *AdminService) DeleteNumber(ctx context.Context, numberID int64) error {
	n, err := s.numbers.GetByID(ctx, numberID)
	if err != nil {
		return fmt.Errorf("get number %d: %w", numberID, err)
	}
	if n.IsActive {
		if err := s.ensureNotLastActive(ctx, n); err != nil {
			return err
		}
	}
	if err := s.numbers.Delete(ctx, numberID); err != nil {
		return fmt.Errorf("delete number %d: %w", numberID, err)
	}
	s.log.Info("number deleted", "number_id", numberID, "owner_id", n.OwnerID)
	return nil
}

func (s *AdminService) ListNumbers(ctx context.Context, ownerID int64) ([]model.PhoneNumber, error) {
	return s.numbers.ListByOwner(ctx, ownerID)
}

func (s *AdminService) ListLinks(ctx context.Context, ownerID int64) ([]model.CustomLink, error) {
	return s.links.ListByOwner(ctx, ownerID)
}

func (s *AdminService) ensureNotLastActive(ctx context.Context, n *model.PhoneNumber) error {
	active, err := s.numbers.FindActiveByOwner(ctx, n.OwnerID)
	if err != nil {
		return fmt.Errorf("load active numbers: %w", err)
	}
	if len(active) <= 1 {
		return ErrLastActiveNumber
	}
	return nil
}

// invalidate drops both keys a link can be resolved by
func (s *AdminService) invalidate(ctx context.Context, link *model.CustomLink) {
	if s.cache == nil {
		return
	}
	owner := link.OwnerID
	for _, key := range []model.LinkKey{{Name: link.Name}, {Name: link.Name, OwnerID: &owner}} {
		if err := s.cache.DeleteLink(ctx, key); err != nil {
			s.log.Warn("cache invalidation failed", "link", key.String(), "error", err)
		}
	}
}
