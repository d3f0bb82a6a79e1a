package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/workeasy-api/internal/models"
	"github.com/noah-isme/workeasy-api/internal/repository"
	appErrors "github.com/noah-isme/workeasy-api/pkg/errors"
	"github.com/noah-isme/workeasy-api/pkg/jobs"
)

// inviteAlphabet omits characters that are easy to misread (0/O, 1/I/L).
const inviteAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const inviteCodeAttempts = 3

type invitationStore interface {
	Create(ctx context.Context, inv *models.Invitation) error
	GetByID(ctx context.Context, id string) (*models.Invitation, error)
	ListByStore(ctx context.Context, storeID string) ([]models.Invitation, error)
	Delete(ctx context.Context, id, storeID string) error
	Accept(ctx context.Context, code, userID string, now time.Time) (*models.AcceptInvitationResult, error)
}

type invitationDirectory interface {
	RequireManager(ctx context.Context, storeID, userID string) error
	GetStore(ctx context.Context, storeID string) (*models.Store, error)
	ForgetUser(ctx context.Context, storeID, userID string)
}

// Mailer delivers invitation mails.
type Mailer interface {
	SendInvitation(ctx context.Context, mail models.InvitationMail) error
}

// LogMailer is the default Mailer; it records deliveries in the log.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer constructs a LogMailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

// SendInvitation implements Mailer.
func (m *LogMailer) SendInvitation(_ context.Context, mail models.InvitationMail) error {
	m.logger.Info("invitation mail delivered",
		zap.String("invitation_id", mail.InvitationID),
		zap.String("store_id", mail.StoreID),
		zap.String("to", mail.To),
		zap.String("role", string(mail.Role)),
	)
	return nil
}

// InvitationConfig tunes invitation defaults.
type InvitationConfig struct {
	DefaultTTL time.Duration
	CodeLength int
}

// InvitationService issues and redeems store invitations.
type InvitationService struct {
	repo      invitationStore
	directory invitationDirectory
	queue     jobEnqueuer
	mailer    Mailer
	validator *validator.Validate
	logger    *zap.Logger
	cfg       InvitationConfig
	now       func() time.Time
}

// NewInvitationService constructs an InvitationService.
func NewInvitationService(repo invitationStore, directory invitationDirectory, queue jobEnqueuer, mailer Mailer, validate *validator.Validate, logger *zap.Logger, cfg InvitationConfig) *InvitationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if mailer == nil {
		mailer = NewLogMailer(logger)
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 7 * 24 * time.Hour
	}
	if cfg.CodeLength < 6 {
		cfg.CodeLength = 8
	}
	return &InvitationService{
		repo:      repo,
		directory: directory,
		queue:     queue,
		mailer:    mailer,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Create issues an invitation for storeID. Managers only.
func (s *InvitationService) Create(ctx context.Context, callerID, storeID string, input models.CreateInvitationInput) (*models.Invitation, error) {
	if err := s.directory.RequireManager(ctx, storeID, callerID); err != nil {
		return nil, err
	}
	input.InviteeEmail = normalizeEmail(input.InviteeEmail)
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid invitation payload")
	}

	now := s.now().UTC()
	expiresAt := input.ExpiresAt.UTC()
	if input.ExpiresAt.IsZero() {
		expiresAt = now.Add(s.cfg.DefaultTTL)
	}
	if !expiresAt.After(now) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "만료 시간은 현재 이후여야 합니다.")
	}

	inv := &models.Invitation{
		StoreID:      storeID,
		InviterID:    callerID,
		InviteeEmail: input.InviteeEmail,
		Role:         input.Role,
		MaxUses:      input.MaxUses,
		ExpiresAt:    &expiresAt,
		CreatedAt:    now,
	}
	if inv.Role == "" {
		inv.Role = models.RoleStaff
	}
	if inv.MaxUses <= 0 {
		inv.MaxUses = 1
	}

	for attempt := 1; ; attempt++ {
		code, err := generateInviteCode(s.cfg.CodeLength)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "초대 코드 생성에 실패했습니다")
		}
		inv.ID = ""
		inv.Code = code
		err = s.repo.Create(ctx, inv)
		if err == nil {
			break
		}
		if !repository.IsUniqueViolation(err) || attempt >= inviteCodeAttempts {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "초대 생성에 실패했습니다")
		}
		s.logger.Debug("invitation code collision, regenerating", zap.Int("attempt", attempt))
	}

	s.logger.Info("invitation created", zap.String("invitation_id", inv.ID), zap.String("store_id", storeID))
	return inv, nil
}

// List returns the store's invitations, newest first. Managers only.
func (s *InvitationService) List(ctx context.Context, callerID, storeID string) ([]models.Invitation, error) {
	if err := s.directory.RequireManager(ctx, storeID, callerID); err != nil {
		return nil, err
	}
	items, err := s.repo.ListByStore(ctx, storeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "초대 목록을 불러오지 못했습니다")
	}
	if items == nil {
		items = []models.Invitation{}
	}
	return items, nil
}

// Delete revokes an invitation. Managers only.
func (s *InvitationService) Delete(ctx context.Context, callerID, storeID, id string) error {
	if err := s.directory.RequireManager(ctx, storeID, callerID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id, storeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "초대를 찾을 수 없습니다.")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "초대 삭제에 실패했습니다")
	}
	return nil
}

// Accept redeems code for the caller and returns the resulting membership.
func (s *InvitationService) Accept(ctx context.Context, callerID, code string) (*models.AcceptInvitationResult, error) {
	if callerID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, appErrors.ErrInvalidInvitation
	}

	result, err := s.repo.Accept(ctx, code, callerID, s.now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrInvitationUnusable) {
			return nil, appErrors.ErrInvalidInvitation
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "초대 수락에 실패했습니다")
	}

	s.directory.ForgetUser(ctx, result.StoreID, callerID)
	s.logger.Info("invitation accepted", zap.String("store_id", result.StoreID), zap.String("user_id", callerID))
	return result, nil
}

// Send queues delivery of an invitation mail. The invitation must carry an invitee email.
func (s *InvitationService) Send(ctx context.Context, callerID, invitationID string) error {
	if strings.TrimSpace(invitationID) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "invitationId is required")
	}
	inv, err := s.repo.GetByID(ctx, invitationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "초대를 찾을 수 없습니다.")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "초대 정보를 불러오지 못했습니다")
	}
	if err := s.directory.RequireManager(ctx, inv.StoreID, callerID); err != nil {
		return err
	}
	if inv.InviteeEmail == nil || *inv.InviteeEmail == "" {
		return appErrors.Clone(appErrors.ErrValidation, "이메일이 없는 초대입니다.")
	}

	store, err := s.directory.GetStore(ctx, inv.StoreID)
	if err != nil {
		return err
	}
	mail := models.InvitationMail{
		InvitationID: inv.ID,
		StoreID:      inv.StoreID,
		StoreName:    store.Name,
		To:           *inv.InviteeEmail,
		Code:         inv.Code,
		Role:         inv.Role,
		ExpiresAt:    inv.ExpiresAt,
	}

	if s.queue == nil {
		return s.deliver(ctx, mail)
	}
	if err := s.queue.Enqueue(jobs.Job{Type: JobTypeInvitationMail, Payload: mail}); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "초대 메일 발송에 실패했습니다")
	}
	return nil
}

// HandleMail is the job handler delivering invitation mails.
func (s *InvitationService) HandleMail(ctx context.Context, job jobs.Job) error {
	mail, ok := job.Payload.(models.InvitationMail)
	if !ok {
		s.logger.Error("unexpected invitation job payload", zap.String("job_id", job.ID))
		return nil
	}
	return s.deliver(ctx, mail)
}

func (s *InvitationService) deliver(ctx context.Context, mail models.InvitationMail) error {
	if err := s.mailer.SendInvitation(ctx, mail); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "초대 메일 발송에 실패했습니다")
	}
	return nil
}

func generateInviteCode(length int) (string, error) {
	limit := big.NewInt(int64(len(inviteAlphabet)))
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b.WriteByte(inviteAlphabet[n.Int64()])
	}
	return b.String(), nil
}

func normalizeEmail(email *string) *string {
	if email == nil {
		return nil
	}
	trimmed := strings.ToLower(strings.TrimSpace(*email))
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
