package stepauth

import (
	"context"

	"github.com/halcyonlabs/stepauth/pow"
)

// ProofOfWork reports the user's stored proof-of-work token with its
// recomputed difficulty and solve estimates. Difficulty is derived from
// the token on every call, never persisted.
func (e *Engine) ProofOfWork(ctx context.Context, userID string) (*ProofOfWorkStatus, error) {
	user, err := e.activeUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return e.proofOfWorkStatus(user.ProofOfWork), nil
}

// SubmitProofOfWork stores a candidate token if its difficulty meets or
// exceeds the stored token's difficulty. The floor only ever rises;
// ignorePrevious resets it.
func (e *Engine) SubmitProofOfWork(ctx context.Context, userID, token string, ignorePrevious bool) (*ProofOfWorkStatus, error) {
	user, err := e.activeUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	candidate := pow.Difficulty(token)
	if !ignorePrevious && user.ProofOfWork != nil {
		if candidate < pow.Difficulty(*user.ProofOfWork) {
			e.metricInc(MetricProofOfWorkRejected)
			e.emitAudit(ctx, auditEventProofOfWorkRejected, false, userID, "", ErrProofOfWorkTooWeak, nil)
			return nil, ErrProofOfWorkTooWeak
		}
	}

	if err := e.users.UpdateProofOfWork(ctx, userID, &token); err != nil {
		return nil, internalErr(err)
	}

	e.metricInc(MetricProofOfWorkAccepted)
	e.emitAudit(ctx, auditEventProofOfWorkAccepted, true, userID, "", nil, nil)
	return e.proofOfWorkStatus(&token), nil
}

func (e *Engine) proofOfWorkStatus(token *string) *ProofOfWorkStatus {
	status := &ProofOfWorkStatus{Token: token}
	if token != nil {
		status.Difficulty = pow.Difficulty(*token)
		status.EstimatedWork = pow.EstimateWork(status.Difficulty)
		status.EstimatedDuration = pow.EstimateDuration(status.Difficulty, e.config.ProofOfWork.HashingSpeed)
	}
	return status
}
