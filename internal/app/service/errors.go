package service

import (
	"errors"

	"codequest/internal/common"
)

func isNotFound(err error) bool { return errors.Is(err, common.ErrNotFound) }
func isConflict(err error) bool { return errors.Is(err, common.ErrConflict) }
