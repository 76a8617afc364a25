package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/academy-checkin-api/internal/models"
	appErrors "github.com/noah-isme/academy-checkin-api/pkg/errors"
)

const embeddingsCacheKey = "biometric:embeddings"

type biometricRepository interface {
	ListActiveEmbeddings(ctx context.Context) ([]models.EmbeddingEntry, error)
	FindByStudent(ctx context.Context, studentID string) (*models.FaceEmbedding, error)
	Upsert(ctx context.Context, embedding *models.FaceEmbedding) error
	Deactivate(ctx context.Context, studentID string) error
	InsertAttempt(ctx context.Context, attempt *models.BiometricAttempt) error
	ListAttempts(ctx context.Context, limit int) ([]models.BiometricAttempt, error)
}

type matcherStudentDirectory interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

type embeddingCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type attemptLimiter interface {
	Allow(ctx context.Context, studentID string) (bool, time.Duration, error)
	Record(ctx context.Context, studentID string) error
}

type matcherMetrics interface {
	ObserveMatch(result models.AttemptResult, similarity float64)
}

// MatcherConfig tunes the nearest-neighbor match.
type MatcherConfig struct {
	// Threshold is the minimum similarity for a positive match.
	Threshold float64
	// MaxDistance is the distance at which similarity reaches zero.
	MaxDistance float64
	// EmbeddingDim is the required descriptor length.
	EmbeddingDim int
	// CacheTTL bounds staleness of the cached embedding table.
	CacheTTL time.Duration
}

// MatcherService performs 1:N face identification over the enrolled
// embedding table. The scan is linear; at academy scale (hundreds of
// students) that beats maintaining an approximate index.
type MatcherService struct {
	repo      biometricRepository
	students  matcherStudentDirectory
	cache     embeddingCache
	limiter   attemptLimiter
	metrics   matcherMetrics
	validator *validator.Validate
	logger    *zap.Logger
	config    MatcherConfig
}

// NewMatcherService constructs a MatcherService. Cache, limiter and
// metrics may be nil; matching then runs uncached and unthrottled.
func NewMatcherService(repo biometricRepository, students matcherStudentDirectory, cache embeddingCache, limiter attemptLimiter, metrics matcherMetrics, validate *validator.Validate, logger *zap.Logger, config MatcherConfig) *MatcherService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.MaxDistance <= 0 {
		config.MaxDistance = 0.6
	}
	if config.Threshold <= 0 {
		config.Threshold = 0.65
	}
	if config.EmbeddingDim <= 0 {
		config.EmbeddingDim = 128
	}
	return &MatcherService{
		repo:      repo,
		students:  students,
		cache:     cache,
		limiter:   limiter,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		config:    config,
	}
}

// EuclideanDistance returns the L2 distance between two descriptors of
// equal length.
func EuclideanDistance(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("descriptor length mismatch: %d vs %d", len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// DistanceToSimilarity maps a distance onto [0, 1]. Zero distance maps
// to 1; distances at or beyond MaxDistance clamp to 0, so outlier
// descriptors from any numeric domain stay in range. Rounded to two
// decimals for stable presentation.
func (s *MatcherService) DistanceToSimilarity(distance float64) float64 {
	similarity := 1 - distance/s.config.MaxDistance
	if similarity < 0 {
		similarity = 0
	}
	if similarity > 1 {
		similarity = 1
	}
	return math.Round(similarity*100) / 100
}

// nonFiniteIndex returns the position of the first NaN or infinite
// element, or -1 when every element is finite. A single poisoned value
// would make every distance computation meaningless, so descriptors are
// rejected whole at the boundary.
func nonFiniteIndex(descriptor []float64) int {
	for i, v := range descriptor {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return i
		}
	}
	return -1
}

// ConfidenceFor bands a similarity score.
func ConfidenceFor(similarity float64) models.MatchConfidence {
	switch {
	case similarity >= 0.85:
		return models.ConfidenceExcellent
	case similarity >= 0.75:
		return models.ConfidenceGood
	case similarity >= 0.65:
		return models.ConfidenceFair
	case similarity >= 0.50:
		return models.ConfidencePoor
	default:
		return models.ConfidenceFailed
	}
}

// ListEmbeddings returns the enrolled embedding table, cached for
// MatcherConfig.CacheTTL.
func (s *MatcherService) ListEmbeddings(ctx context.Context) ([]models.EmbeddingEntry, error) {
	if s.cache != nil {
		var cached []models.EmbeddingEntry
		if err := s.cache.Get(ctx, embeddingsCacheKey, &cached); err == nil {
			return cached, nil
		} else if !appErrors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("embedding cache read failed", zap.Error(err))
		}
	}

	entries, err := s.repo.ListActiveEmbeddings(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load embeddings")
	}
	if entries == nil {
		entries = []models.EmbeddingEntry{}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, embeddingsCacheKey, entries, s.config.CacheTTL); err != nil {
			s.logger.Warn("embedding cache write failed", zap.Error(err))
		}
	}
	return entries, nil
}

// FindMatch scans the embedding table for the nearest enrolled student.
// It returns the best match when similarity clears the threshold, a
// retry-after duration when the claimed student is throttled, or a typed
// error otherwise. The audit row is written best effort either way.
func (s *MatcherService) FindMatch(ctx context.Context, req models.MatchRequest) (*models.MatchResult, time.Duration, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid match payload")
	}
	if len(req.Descriptor) != s.config.EmbeddingDim {
		return nil, 0, appErrors.Clone(appErrors.ErrDimensionMismatch,
			fmt.Sprintf("descriptor must have %d dimensions, got %d", s.config.EmbeddingDim, len(req.Descriptor)))
	}
	if i := nonFiniteIndex(req.Descriptor); i >= 0 {
		return nil, 0, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("descriptor element %d is not a finite number", i))
	}

	if s.limiter != nil && req.StudentID != nil {
		allowed, retryAfter, err := s.limiter.Allow(ctx, *req.StudentID)
		if err != nil {
			// The throttle protects UX, not authentication. Fail open.
			s.logger.Warn("attempt limiter unavailable", zap.Error(err))
		} else if !allowed {
			seconds := int(math.Ceil(retryAfter.Seconds()))
			return nil, retryAfter, appErrors.Clone(appErrors.ErrRateLimited,
				fmt.Sprintf("too many biometric attempts, try again in %ds", seconds))
		}
		if err == nil {
			if err := s.limiter.Record(ctx, *req.StudentID); err != nil {
				s.logger.Warn("failed to record attempt", zap.Error(err))
			}
		}
	}

	threshold := s.config.Threshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	entries, err := s.ListEmbeddings(ctx)
	if err != nil {
		return nil, 0, err
	}
	if len(entries) == 0 {
		s.logAttempt(ctx, req, nil, 0, models.AttemptError, "no embeddings enrolled")
		return nil, 0, appErrors.Clone(appErrors.ErrNoEmbedding, "no face embeddings enrolled")
	}

	var best *models.EmbeddingEntry
	bestDistance := math.Inf(1)
	for i := range entries {
		entry := &entries[i]
		if len(entry.Descriptor) != len(req.Descriptor) {
			s.logger.Warn("skipping embedding with wrong dimensions",
				zap.String("student_id", entry.StudentID),
				zap.Int("dimensions", len(entry.Descriptor)))
			continue
		}
		distance, err := EuclideanDistance(req.Descriptor, entry.Descriptor)
		if err != nil {
			continue
		}
		if distance < bestDistance {
			bestDistance = distance
			best = entry
		}
	}
	if best == nil {
		s.logAttempt(ctx, req, nil, 0, models.AttemptError, "no comparable embeddings")
		return nil, 0, appErrors.Clone(appErrors.ErrNoEmbedding, "no comparable embeddings enrolled")
	}

	similarity := s.DistanceToSimilarity(bestDistance)
	if s.metrics != nil {
		result := models.AttemptSuccess
		if similarity < threshold {
			result = models.AttemptNoMatch
		}
		s.metrics.ObserveMatch(result, similarity)
	}

	if similarity < threshold {
		s.logAttempt(ctx, req, &best.StudentID, similarity, models.AttemptNoMatch, "")
		return nil, 0, appErrors.Clone(appErrors.ErrNoFaceMatch,
			fmt.Sprintf("best similarity %.2f below threshold %.2f", similarity, threshold))
	}

	s.logAttempt(ctx, req, &best.StudentID, similarity, models.AttemptSuccess, "")
	return &models.MatchResult{
		StudentID:    best.StudentID,
		StudentName:  best.StudentName,
		Registration: best.Registration,
		PhotoURL:     best.PhotoURL,
		Similarity:   similarity,
		Distance:     math.Round(bestDistance*10000) / 10000,
		Confidence:   ConfidenceFor(similarity),
	}, 0, nil
}

// SaveEmbedding enrolls or replaces a student's reference descriptor
// and invalidates the cached table.
func (s *MatcherService) SaveEmbedding(ctx context.Context, studentID string, upload models.EmbeddingUpload) (*models.FaceEmbedding, error) {
	if err := s.validator.Struct(upload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid embedding payload")
	}
	if len(upload.Descriptor) != s.config.EmbeddingDim {
		return nil, appErrors.Clone(appErrors.ErrDimensionMismatch,
			fmt.Sprintf("descriptor must have %d dimensions, got %d", s.config.EmbeddingDim, len(upload.Descriptor)))
	}
	if i := nonFiniteIndex(upload.Descriptor); i >= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("descriptor element %d is not a finite number", i))
	}
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrStudentNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch student")
	}

	embedding := &models.FaceEmbedding{
		StudentID:    studentID,
		Descriptor:   upload.Descriptor,
		PhotoURL:     upload.PhotoURL,
		QualityScore: upload.QualityScore,
		Active:       true,
	}
	if err := s.repo.Upsert(ctx, embedding); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save embedding")
	}
	s.invalidateCache(ctx)
	return embedding, nil
}

// RemoveEmbedding withdraws a student from matching.
func (s *MatcherService) RemoveEmbedding(ctx context.Context, studentID string) error {
	if err := s.repo.Deactivate(ctx, studentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove embedding")
	}
	s.invalidateCache(ctx)
	return nil
}

// GetEmbedding returns a student's enrolled descriptor.
func (s *MatcherService) GetEmbedding(ctx context.Context, studentID string) (*models.FaceEmbedding, error) {
	embedding, err := s.repo.FindByStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNoEmbedding, "student has no enrolled embedding")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch embedding")
	}
	return embedding, nil
}

// ReportAttempt stores a kiosk-reported match attempt. The write is
// best effort: the kiosk gets an ack even when persistence fails, so a
// flaky audit table never stalls the check-in flow.
func (s *MatcherService) ReportAttempt(ctx context.Context, report models.AttemptReport) error {
	if err := s.validator.Struct(report); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attempt payload")
	}

	result := models.AttemptNoMatch
	if report.Success {
		result = models.AttemptSuccess
	}
	attempt := &models.BiometricAttempt{
		StudentID:  report.StudentID,
		Similarity: report.Similarity,
		Confidence: string(ConfidenceFor(report.Similarity)),
		Method:     models.MethodBiometric,
		Result:     result,
		IPAddress:  report.IPAddress,
		UserAgent:  report.UserAgent,
	}
	if report.Timestamp != nil {
		attempt.AttemptedAt = *report.Timestamp
	}
	if err := s.repo.InsertAttempt(ctx, attempt); err != nil {
		s.logger.Warn("failed to persist reported attempt", zap.Error(err))
	}
	return nil
}

// RecentAttempts returns the newest audit rows.
func (s *MatcherService) RecentAttempts(ctx context.Context, limit int) ([]models.BiometricAttempt, error) {
	attempts, err := s.repo.ListAttempts(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attempts")
	}
	if attempts == nil {
		attempts = []models.BiometricAttempt{}
	}
	return attempts, nil
}

// ClassifyCameraError maps a browser getUserMedia failure onto the
// stable camera error taxonomy.
func ClassifyCameraError(report models.CameraErrorReport) models.CameraErrorClassification {
	name := strings.TrimSpace(report.ErrorName)
	lowered := strings.ToLower(name)

	var code models.CameraErrorCode
	switch {
	case name == "NotAllowedError" || name == "PermissionDeniedError":
		code = models.CameraPermissionDenied
	case name == "NotFoundError" || name == "DevicesNotFoundError":
		code = models.CameraNotFound
	case name == "NotReadableError" || name == "TrackStartError":
		code = models.CameraInUse
	case name == "OverconstrainedError" || name == "ConstraintNotSatisfiedError":
		code = models.CameraUnsupported
	case strings.Contains(lowered, "timeout"):
		code = models.CameraTimeout
	default:
		code = models.CameraUnknown
	}

	return models.CameraErrorClassification{Code: code, Guidance: cameraGuidance(code)}
}

func cameraGuidance(code models.CameraErrorCode) string {
	switch code {
	case models.CameraPermissionDenied:
		return "allow camera access in the browser settings and reload"
	case models.CameraNotFound:
		return "no camera detected, connect one or use manual check-in"
	case models.CameraInUse:
		return "camera is in use by another application, close it and retry"
	case models.CameraUnsupported:
		return "camera does not support the requested resolution, try another device"
	case models.CameraTimeout:
		return "camera took too long to start, retry or restart the device"
	default:
		return "unexpected camera failure, retry or use manual check-in"
	}
}

func (s *MatcherService) logAttempt(ctx context.Context, req models.MatchRequest, detected *string, similarity float64, result models.AttemptResult, errMsg string) {
	attempt := &models.BiometricAttempt{
		StudentID:         req.StudentID,
		DetectedStudentID: detected,
		Similarity:        similarity,
		Confidence:        string(ConfidenceFor(similarity)),
		Method:            models.MethodBiometric,
		Result:            result,
		IPAddress:         req.IPAddress,
		UserAgent:         req.UserAgent,
	}
	if errMsg != "" {
		attempt.ErrorMessage = &errMsg
	}
	if err := s.repo.InsertAttempt(ctx, attempt); err != nil {
		s.logger.Warn("failed to persist biometric attempt", zap.Error(err))
	}
}

func (s *MatcherService) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, embeddingsCacheKey+"*"); err != nil {
		s.logger.Warn("failed to invalidate embedding cache", zap.Error(err))
	}
}
