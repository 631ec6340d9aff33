package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"orders-wallet-service/internal/domain"
	"orders-wallet-service/internal/repository"
	"orders-wallet-service/internal/xerrors"
)

// Operation kinds recorded with each idempotency key.
const (
	OpCreateOrder    = "CREATE_ORDER"
	OpCapturePayment = "CAPTURE_PAYMENT"
	OpRefundOrder    = "REFUND_ORDER"
	OpDepositFunds   = "DEPOSIT_FUNDS"
)

type IdempotencyUsecase struct {
	repo   repository.IdempotencyRepository
	logger *zap.Logger
}

func NewIdempotencyUsecase(repo repository.IdempotencyRepository, logger *zap.Logger) *IdempotencyUsecase {
	return &IdempotencyUsecase{repo: repo, logger: logger}
}

// RequestHash is a stable content hash over the normalized request payload.
func RequestHash(request any) string {
	data, _ := json.Marshal(request)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Execute makes a mutating command safe to retry. A replay with the same
// (key, actor, operation) and identical payload returns the cached response
// verbatim without re-executing fn; the same key with a different payload is
// rejected with ErrDuplicateRequest. The record is persisted only after fn
// succeeds.
func (uc *IdempotencyUsecase) Execute(
	ctx context.Context,
	key, actorID, operation string,
	request any,
	fn func(ctx context.Context) (any, error),
) (json.RawMessage, error) {
	if key == "" {
		result, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(result)
	}

	hash := RequestHash(request)

	existing, err := uc.repo.Get(ctx, key, actorID, operation)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.RequestHash == hash {
			return existing.ResponsePayload, nil
		}
		return nil, xerrors.ErrDuplicateRequest
	}

	result, err := fn(ctx)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal command response: %w", err)
	}

	insertErr := uc.repo.Insert(ctx, &domain.IdempotencyRecord{
		Key:             key,
		ActorID:         actorID,
		Operation:       operation,
		RequestHash:     hash,
		ResponsePayload: payload,
	})
	if insertErr != nil {
		// A concurrent retry with the same key may have won the insert race.
		// The unique constraint is the arbiter: re-read and replay its cached
		// response when the payload matches.
		if errors.Is(insertErr, xerrors.ErrDuplicateRequest) {
			winner, getErr := uc.repo.Get(ctx, key, actorID, operation)
			if getErr == nil && winner != nil {
				if winner.RequestHash == hash {
					return winner.ResponsePayload, nil
				}
				return nil, xerrors.ErrDuplicateRequest
			}
		}
		// Returning the response without the record would disarm the key: the
		// next retry of this command would execute it again. Fail instead and
		// let the caller see an unknown outcome.
		uc.logger.Error("failed to save idempotency record",
			zap.String("key", key), zap.String("operation", operation), zap.Error(insertErr))
		return nil, fmt.Errorf("failed to save idempotency record: %w", insertErr)
	}
	return payload, nil
}
