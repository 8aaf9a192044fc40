// Package service contains business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"agora/internal/config"
	"agora/internal/docstore"
	"agora/internal/models"
	"agora/internal/observability"
	"agora/internal/repository"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
)

// VoteLedgerConfig selects the write protocol and the duplicate-vote behaviour.
type VoteLedgerConfig struct {
	// Consistency is config.ConsistencyVersioned or config.ConsistencyTwoStep.
	Consistency string
	// MaxAttempts bounds versioned retries lost to a concurrent change of the same user's vote.
	MaxAttempts int
	// RetryBudget bounds the total time a versioned call spends backing off.
	RetryBudget time.Duration
	// Duplicates maps an item kind to what a repeated same-direction vote does.
	Duplicates map[models.ItemKind]models.DuplicateVotePolicy
}

// DefaultVoteLedgerConfig returns the versioned protocol with posts ignoring and comments
// rejecting repeated votes.
func DefaultVoteLedgerConfig() VoteLedgerConfig {
	return VoteLedgerConfig{
		Consistency: config.ConsistencyVersioned,
		MaxAttempts: 5,
		RetryBudget: 3 * time.Second,
		Duplicates: map[models.ItemKind]models.DuplicateVotePolicy{
			models.ItemPost:    models.DuplicateIgnore,
			models.ItemComment: models.DuplicateConflict,
		},
	}
}

// VoteLedgerConfigFrom reads the ledger settings from the application config.
func VoteLedgerConfigFrom(cfg *config.Config) VoteLedgerConfig {
	return VoteLedgerConfig{
		Consistency: cfg.VoteConsistency,
		MaxAttempts: cfg.VoteMaxAttempts,
		RetryBudget: cfg.VoteRetryBudget(),
		Duplicates: map[models.ItemKind]models.DuplicateVotePolicy{
			models.ItemPost:    models.DuplicateVotePolicy(cfg.PostDuplicateVote),
			models.ItemComment: models.DuplicateVotePolicy(cfg.CommentDuplicateVote),
		},
	}
}

// VoteResult is the outcome of a ledger call. Item state is observed by re-reading.
type VoteResult struct {
	Message string
	// Changed is false when the call was an ignored duplicate.
	Changed bool
}

// VoteLedger keeps per-item voter sets and counters consistent: a user holds at most one
// vote per item, counters match the set sizes and never go negative.
type VoteLedger struct {
	repos map[models.ItemKind]repository.VoteRepository
	cfg   VoteLedgerConfig
}

// NewVoteLedger creates a ledger over the post and comment vote repositories.
func NewVoteLedger(posts, comments repository.VoteRepository, cfg VoteLedgerConfig) *VoteLedger {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.RetryBudget <= 0 {
		cfg.RetryBudget = 3 * time.Second
	}
	if cfg.Consistency == "" {
		cfg.Consistency = config.ConsistencyVersioned
	}
	return &VoteLedger{
		repos: map[models.ItemKind]repository.VoteRepository{
			models.ItemPost:    posts,
			models.ItemComment: comments,
		},
		cfg: cfg,
	}
}

const (
	actionApply  = "apply"
	actionRemove = "remove"
)

var errVoteContention = models.NewConflictError("vote contention, retry")

// Apply records username's vote in direction d on the item, moving an opposite vote if the
// user holds one.
func (l *VoteLedger) Apply(ctx context.Context, kind models.ItemKind, id, username string, d models.VoteDirection) (result *VoteResult, err error) {
	ctx, span := observability.GetTraceLayer().TraceServiceCall(ctx, "VoteLedger", "Apply")
	observability.AddTraceAttributesToContext(ctx,
		attribute.String("vote.kind", string(kind)),
		attribute.String("vote.direction", string(d)),
	)
	defer func() {
		l.record(kind, d, actionApply, result, err)
		observability.EndSpan(span, err)
	}()

	repo, err := l.repo(kind)
	if err != nil {
		return nil, err
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, models.NewValidationError("Username is required")
	}
	failMsg := fmt.Sprintf("Failed to %s %s", d.Noun(), kind)

	if l.cfg.Consistency == config.ConsistencyTwoStep {
		return l.applyTwoStep(ctx, repo, kind, id, username, d, failMsg)
	}

	return l.versioned(ctx, repo, kind, id, username, failMsg, func(voters *models.Voters) (*docstore.Patch, *VoteResult, error) {
		if voters.Has(d, username) {
			result, err := l.duplicate(kind, d)
			return nil, result, err
		}

		patch := docstore.NewPatch()
		opposite := d.Opposite()
		if voters.Has(opposite, username) {
			patch.UnsetKey(repository.VoterField(opposite), username).
				Set(repository.CounterField(opposite), clampCount(countVoters(voters.Set(opposite))-1))
		}
		patch.SetKey(repository.VoterField(d), username, true).
			Set(repository.CounterField(d), countVoters(voters.Set(d))+1)
		return patch, &VoteResult{Message: appliedMessage(kind, d), Changed: true}, nil
	})
}

// applyTwoStep runs the compensation and the primary write as two unconditional patches.
// A failure between them leaves the item under-counted, never over-counted.
func (l *VoteLedger) applyTwoStep(ctx context.Context, repo repository.VoteRepository, kind models.ItemKind, id, username string, d models.VoteDirection, failMsg string) (*VoteResult, error) {
	voters, _, err := repo.GetVoters(ctx, id)
	if err != nil {
		return nil, l.storeError(kind, err, failMsg)
	}
	if voters.Has(d, username) {
		return l.duplicate(kind, d)
	}

	opposite := d.Opposite()
	if voters.Has(opposite, username) {
		compensate := docstore.NewPatch().
			UnsetKey(repository.VoterField(opposite), username)
		if voters.Count(opposite) > 0 {
			compensate.Increment(repository.CounterField(opposite), -1)
		}
		if err := repo.PatchVotes(ctx, id, compensate); err != nil {
			return nil, l.storeError(kind, err, failMsg)
		}
	}

	primary := docstore.NewPatch().
		SetKey(repository.VoterField(d), username, true).
		Increment(repository.CounterField(d), 1)
	if err := repo.PatchVotes(ctx, id, primary); err != nil {
		return nil, l.storeError(kind, err, failMsg)
	}
	return &VoteResult{Message: appliedMessage(kind, d), Changed: true}, nil
}

// Remove withdraws username's vote in direction d. Removing a vote the user does not hold is
// a validation error.
func (l *VoteLedger) Remove(ctx context.Context, kind models.ItemKind, id, username string, d models.VoteDirection) (result *VoteResult, err error) {
	ctx, span := observability.GetTraceLayer().TraceServiceCall(ctx, "VoteLedger", "Remove")
	observability.AddTraceAttributesToContext(ctx,
		attribute.String("vote.kind", string(kind)),
		attribute.String("vote.direction", string(d)),
	)
	defer func() {
		l.record(kind, d, actionRemove, result, err)
		observability.EndSpan(span, err)
	}()

	repo, err := l.repo(kind)
	if err != nil {
		return nil, err
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, models.NewValidationError("Username is required")
	}
	failMsg := fmt.Sprintf("Failed to remove %s", d.Noun())
	notHeld := models.NewValidationError(fmt.Sprintf("User has not %sd this %s", d.Noun(), kind))

	if l.cfg.Consistency == config.ConsistencyTwoStep {
		voters, _, err := repo.GetVoters(ctx, id)
		if err != nil {
			return nil, l.storeError(kind, err, failMsg)
		}
		if !voters.Has(d, username) {
			return nil, notHeld
		}
		patch := docstore.NewPatch().UnsetKey(repository.VoterField(d), username)
		if voters.Count(d) > 0 {
			patch.Increment(repository.CounterField(d), -1)
		}
		if err := repo.PatchVotes(ctx, id, patch); err != nil {
			return nil, l.storeError(kind, err, failMsg)
		}
		return &VoteResult{Message: removedMessage(d), Changed: true}, nil
	}

	return l.versioned(ctx, repo, kind, id, username, failMsg, func(voters *models.Voters) (*docstore.Patch, *VoteResult, error) {
		if !voters.Has(d, username) {
			return nil, nil, notHeld
		}
		patch := docstore.NewPatch().
			UnsetKey(repository.VoterField(d), username).
			Set(repository.CounterField(d), clampCount(countVoters(voters.Set(d))-1))
		return patch, &VoteResult{Message: removedMessage(d), Changed: true}, nil
	})
}

// votePlan turns a fresh read of an item's voters into the conditional patch to write. A nil
// patch ends the call with the returned result and error.
type votePlan func(voters *models.Voters) (*docstore.Patch, *VoteResult, error)

// versioned reads the item, plans a patch and writes it conditioned on the version read. A
// write that loses to another writer backs off with jitter and replans. Only retries where
// username's own vote changed between reads count against MaxAttempts; races with other
// voters are bounded by RetryBudget.
func (l *VoteLedger) versioned(ctx context.Context, repo repository.VoteRepository, kind models.ItemKind, id, username, failMsg string, plan votePlan) (*VoteResult, error) {
	var (
		reads, lost int
		own         models.VoteDirection
	)
	attempt := func() (*VoteResult, error) {
		voters, version, err := repo.GetVoters(ctx, id)
		if err != nil {
			return nil, backoff.Permanent(l.storeError(kind, err, failMsg))
		}
		held := heldDirection(voters, username)
		if reads > 0 && held != own {
			lost++
			if lost >= l.cfg.MaxAttempts {
				return nil, backoff.Permanent(errVoteContention)
			}
		}
		reads++
		own = held

		patch, result, err := plan(voters)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		if patch == nil {
			return result, nil
		}

		err = repo.PatchVotes(ctx, id, patch, docstore.IfVersion(version))
		if errors.Is(err, docstore.ErrVersionConflict) {
			observability.VoteRetries.WithLabelValues(string(kind)).Inc()
			return nil, err
		}
		if err != nil {
			return nil, backoff.Permanent(l.storeError(kind, err, failMsg))
		}
		return result, nil
	}

	result, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(docstore.NewContentionBackOff()),
		backoff.WithMaxElapsedTime(l.cfg.RetryBudget),
	)
	observability.AddTraceAttributesToContext(ctx,
		attribute.Int("vote.attempts", reads),
		attribute.Int("vote.lost_races", lost),
	)
	if errors.Is(err, docstore.ErrVersionConflict) {
		return nil, errVoteContention
	}
	if err != nil && !errors.As(err, new(*models.AppError)) {
		return nil, models.NewInternalError(failMsg, err)
	}
	return result, err
}

// heldDirection is the vote username holds on the item, or "" for none.
func heldDirection(voters *models.Voters, username string) models.VoteDirection {
	switch {
	case voters.Has(models.VoteUp, username):
		return models.VoteUp
	case voters.Has(models.VoteDown, username):
		return models.VoteDown
	}
	return ""
}

func (l *VoteLedger) repo(kind models.ItemKind) (repository.VoteRepository, error) {
	repo, ok := l.repos[kind]
	if !ok || repo == nil {
		return nil, models.NewInternalError("", fmt.Errorf("no vote repository for %q", kind))
	}
	return repo, nil
}

func (l *VoteLedger) duplicate(kind models.ItemKind, d models.VoteDirection) (*VoteResult, error) {
	msg := fmt.Sprintf("User has already %sd this %s.", d.Noun(), kind)
	if l.cfg.Duplicates[kind] == models.DuplicateConflict {
		return nil, models.NewConflictError(msg)
	}
	return &VoteResult{Message: msg}, nil
}

func (l *VoteLedger) storeError(kind models.ItemKind, err error, failMsg string) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return models.NewNotFoundError(notFoundMessage(kind))
	}
	return models.NewInternalError(failMsg, err)
}

func (l *VoteLedger) record(kind models.ItemKind, d models.VoteDirection, action string, result *VoteResult, err error) {
	outcome := "applied"
	switch {
	case err != nil:
		outcome = errorOutcome(err)
	case result != nil && !result.Changed:
		outcome = "duplicate"
	}
	observability.VotesTotal.WithLabelValues(string(kind), string(d), action, outcome).Inc()
}

func errorOutcome(err error) string {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		return "error"
	}
	switch appErr.Code {
	case models.CodeValidation:
		return "rejected"
	case models.CodeNotFound:
		return "not_found"
	case models.CodeConflict:
		return "conflict"
	default:
		return "error"
	}
}

func appliedMessage(kind models.ItemKind, d models.VoteDirection) string {
	return fmt.Sprintf("%s %sd successfully", itemNoun(kind), d.Noun())
}

func removedMessage(d models.VoteDirection) string {
	noun := d.Noun()
	return strings.ToUpper(noun[:1]) + noun[1:] + " removed successfully"
}

func notFoundMessage(kind models.ItemKind) string {
	return itemNoun(kind) + " not found"
}

// itemNoun is the capitalised kind used at the start of messages ("Post", "Comment").
func itemNoun(kind models.ItemKind) string {
	s := string(kind)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// countVoters counts the users holding a vote in set.
func countVoters(set map[string]bool) int {
	n := 0
	for _, v := range set {
		if v {
			n++
		}
	}
	return n
}

func clampCount(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
