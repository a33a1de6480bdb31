package evm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/totegamma/factguard/internal/domain"
)

// revert reasons emitted by the contract's require statements
var revertCodes = map[string]domain.ErrorCode{
	"Unauthorized":      domain.CodeUnauthorized,
	"FactAlreadyExists": domain.CodeAlreadyExists,
	"FactIdConflict":    domain.CodeIdentifierConflict,
	"InvalidTimestamp":  domain.CodeInvalidTimestamp,
	"InvalidVersion":    domain.CodeInvalidVersion,
	"FactNotFound":      domain.CodeNotFound,
	"NoOp":              domain.CodeNoOp,
	"InvalidTransition": domain.CodeInvalidTransition,
	"InvalidIdentity":   domain.CodeInvalidIdentity,
	"Ownable":           domain.CodeUnauthorized,
}

const revertMarker = "execution reverted"

// classify maps a node error onto the registry taxonomy. Reverts are definite
// rejections; anything else leaves the outcome unknown and becomes a transport error.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	msg := err.Error()
	idx := strings.Index(msg, revertMarker)
	if idx < 0 {
		return domain.Transport(op, err)
	}

	reason := strings.TrimSpace(strings.TrimPrefix(msg[idx+len(revertMarker):], ":"))
	for prefix, code := range revertCodes {
		if strings.HasPrefix(reason, prefix) {
			return domain.NewError(code, "%s", reason)
		}
	}
	return fmt.Errorf("%s reverted: %w", op, err)
}
